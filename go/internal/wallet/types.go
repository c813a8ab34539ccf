package wallet

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidAccount    = errors.New("account id is required")
	ErrNotEligible       = errors.New("not eligible to withdraw")
)

// WithdrawalPolicy holds the thresholds an account must meet before
// winnings can leave the wallet.
type WithdrawalPolicy struct {
	MinTotalBalance      decimal.Decimal
	MinQualifyingDeposit decimal.Decimal
	MinWins              int
}

// DefaultWithdrawalPolicy returns the production thresholds.
func DefaultWithdrawalPolicy() WithdrawalPolicy {
	return WithdrawalPolicy{
		MinTotalBalance:      decimal.NewFromInt(100),
		MinQualifyingDeposit: decimal.NewFromInt(100),
		MinWins:              2,
	}
}

// Eligibility is the outcome of a withdrawal check. Reasons is empty when
// Eligible is true.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Balance is the wallet view returned to clients.
type Balance struct {
	AccountID      string          `json:"accountId"`
	DepositBalance decimal.Decimal `json:"depositBalance"`
	WinBalance     decimal.Decimal `json:"winBalance"`
	Total          decimal.Decimal `json:"total"`
}
