package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType defines the kind of balance movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeStake      TransactionType = "stake"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeWin        TransactionType = "win"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// Wallet holds an account's balances. Deposits and winnings are tracked
// separately because only winnings can be withdrawn.
type Wallet struct {
	AccountID      string          `json:"account_id"`
	DepositBalance decimal.Decimal `json:"deposit_balance"`
	WinBalance     decimal.Decimal `json:"win_balance"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Total is the spendable balance.
func (w Wallet) Total() decimal.Decimal {
	return w.DepositBalance.Add(w.WinBalance)
}

// Transaction is an immutable ledger row.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     string          `json:"account_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description"`
	RoundSeq      *uint64         `json:"round_seq,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Winner is the permanent record of a settled prize.
type Winner struct {
	ID        uuid.UUID       `json:"id"`
	AccountID string          `json:"account_id"`
	CardID    int             `json:"card_id"`
	Prize     decimal.Decimal `json:"prize"`
	RoundSeq  uint64          `json:"round_seq"`
	CreatedAt time.Time       `json:"created_at"`
}
