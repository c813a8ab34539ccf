package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MutateFunc changes a locked wallet in place and returns the ledger row
// describing the change. Returning an error aborts without persisting.
type MutateFunc func(w *models.Wallet) (*models.Transaction, error)

// WalletRepository defines what the app layer needs from the repository
type WalletRepository interface {
	Apply(ctx context.Context, accountID string, fn MutateFunc) (*models.Wallet, error)
	GetWallet(ctx context.Context, accountID string) (*models.Wallet, error)
	ListTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error)
	InsertWinner(ctx context.Context, w models.Winner) error
	CountWins(ctx context.Context, accountID string) (int, error)
	CountDepositsAtLeast(ctx context.Context, accountID string, amount decimal.Decimal) (int, error)
}

// App is the wallet ledger. It is the only code path that moves money.
type App struct {
	repo   WalletRepository
	clock  clockwork.Clock
	policy WithdrawalPolicy
}

// NewApp creates a new wallet App
func NewApp(repo WalletRepository, clock clockwork.Clock, policy WithdrawalPolicy) *App {
	return &App{
		repo:   repo,
		clock:  clock,
		policy: policy,
	}
}

func validate(accountID string, amount decimal.Decimal) error {
	if strings.TrimSpace(accountID) == "" {
		return ErrInvalidAccount
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (a *App) newTransaction(w *models.Wallet, t models.TransactionType, amount, before decimal.Decimal, desc string, roundSeq *uint64, meta map[string]string) *models.Transaction {
	now := a.clock.Now().UTC()
	w.UpdatedAt = now
	tx := &models.Transaction{
		ID:            uuid.New(),
		AccountID:     w.AccountID,
		Type:          t,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  w.Total(),
		Description:   desc,
		RoundSeq:      roundSeq,
		CreatedAt:     now,
	}
	if len(meta) > 0 {
		// map[string]string always marshals
		tx.Metadata, _ = json.Marshal(meta)
	}
	return tx
}

// Debit takes a stake, drawing on deposits before winnings. It returns the
// new total balance.
func (a *App) Debit(ctx context.Context, accountID string, amount decimal.Decimal, roundSeq uint64) (decimal.Decimal, error) {
	if err := validate(accountID, amount); err != nil {
		return decimal.Zero, err
	}
	w, err := a.repo.Apply(ctx, accountID, func(w *models.Wallet) (*models.Transaction, error) {
		before := w.Total()
		if before.LessThan(amount) {
			return nil, fmt.Errorf("balance %s below stake %s: %w", before, amount, ErrInsufficientFunds)
		}
		fromDeposit := decimal.Min(w.DepositBalance, amount)
		fromWin := amount.Sub(fromDeposit)
		w.DepositBalance = w.DepositBalance.Sub(fromDeposit)
		w.WinBalance = w.WinBalance.Sub(fromWin)
		return a.newTransaction(w, models.TransactionTypeStake, amount, before,
			fmt.Sprintf("Stake for round #%d", roundSeq), &roundSeq,
			map[string]string{"from_deposit": fromDeposit.String(), "from_win": fromWin.String()}), nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit %s: %w", accountID, err)
	}
	log.Debug().Str("account_id", accountID).Str("amount", amount.String()).Uint64("round", roundSeq).Msg("stake debited")
	return w.Total(), nil
}

// Credit pays a prize into the winnings balance.
func (a *App) Credit(ctx context.Context, accountID string, amount decimal.Decimal, roundSeq uint64) (decimal.Decimal, error) {
	if err := validate(accountID, amount); err != nil {
		return decimal.Zero, err
	}
	w, err := a.repo.Apply(ctx, accountID, func(w *models.Wallet) (*models.Transaction, error) {
		before := w.Total()
		w.WinBalance = w.WinBalance.Add(amount)
		return a.newTransaction(w, models.TransactionTypeWin, amount, before,
			fmt.Sprintf("Won round #%d", roundSeq), &roundSeq, nil), nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit %s: %w", accountID, err)
	}
	log.Info().Str("account_id", accountID).Str("amount", amount.String()).Uint64("round", roundSeq).Msg("prize credited")
	return w.Total(), nil
}

// Refund returns a stake to the deposit balance.
func (a *App) Refund(ctx context.Context, accountID string, amount decimal.Decimal, roundSeq uint64) (decimal.Decimal, error) {
	if err := validate(accountID, amount); err != nil {
		return decimal.Zero, err
	}
	w, err := a.repo.Apply(ctx, accountID, func(w *models.Wallet) (*models.Transaction, error) {
		before := w.Total()
		w.DepositBalance = w.DepositBalance.Add(amount)
		return a.newTransaction(w, models.TransactionTypeRefund, amount, before,
			fmt.Sprintf("Refund for round #%d", roundSeq), &roundSeq, nil), nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to refund %s: %w", accountID, err)
	}
	log.Info().Str("account_id", accountID).Str("amount", amount.String()).Uint64("round", roundSeq).Msg("stake refunded")
	return w.Total(), nil
}

// Deposit credits an approved deposit.
func (a *App) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if err := validate(accountID, amount); err != nil {
		return decimal.Zero, err
	}
	if description == "" {
		description = "Deposit"
	}
	w, err := a.repo.Apply(ctx, accountID, func(w *models.Wallet) (*models.Transaction, error) {
		before := w.Total()
		w.DepositBalance = w.DepositBalance.Add(amount)
		return a.newTransaction(w, models.TransactionTypeDeposit, amount, before, description, nil, nil), nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to deposit for %s: %w", accountID, err)
	}
	return w.Total(), nil
}

// RecordWin appends the permanent winner record used by withdrawal checks.
// A zero prize is allowed; the win still counts.
func (a *App) RecordWin(ctx context.Context, accountID string, cardID int, prize decimal.Decimal, roundSeq uint64, at time.Time) error {
	if strings.TrimSpace(accountID) == "" {
		return ErrInvalidAccount
	}
	if prize.IsNegative() {
		return ErrInvalidAmount
	}
	err := a.repo.InsertWinner(ctx, models.Winner{
		ID:        uuid.New(),
		AccountID: accountID,
		CardID:    cardID,
		Prize:     prize,
		RoundSeq:  roundSeq,
		CreatedAt: at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to record win for %s: %w", accountID, err)
	}
	return nil
}

// Balance reads the current total balance.
func (a *App) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	w, err := a.GetWallet(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Total, nil
}

// GetWallet reads both balances.
func (a *App) GetWallet(ctx context.Context, accountID string) (*Balance, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, ErrInvalidAccount
	}
	w, err := a.repo.GetWallet(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &Balance{
		AccountID:      w.AccountID,
		DepositBalance: w.DepositBalance,
		WinBalance:     w.WinBalance,
		Total:          w.Total(),
	}, nil
}

// ListTransactions returns the newest transactions first.
func (a *App) ListTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, ErrInvalidAccount
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return a.repo.ListTransactions(ctx, accountID, limit)
}

// CheckWithdrawal evaluates every withdrawal rule and reports all that fail.
func (a *App) CheckWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal) (*Eligibility, error) {
	if err := validate(accountID, amount); err != nil {
		return nil, err
	}
	w, err := a.repo.GetWallet(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	deposits, err := a.repo.CountDepositsAtLeast(ctx, accountID, a.policy.MinQualifyingDeposit)
	if err != nil {
		return nil, err
	}
	wins, err := a.repo.CountWins(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return a.policy.evaluate(*w, amount, deposits, wins), nil
}

func (p WithdrawalPolicy) evaluate(w models.Wallet, amount decimal.Decimal, deposits, wins int) *Eligibility {
	var reasons []string
	if w.Total().LessThan(p.MinTotalBalance) {
		reasons = append(reasons, fmt.Sprintf("balance must be at least %s", p.MinTotalBalance))
	}
	if w.WinBalance.LessThan(amount) {
		reasons = append(reasons, "only winnings can be withdrawn")
	}
	if deposits < 1 {
		reasons = append(reasons, fmt.Sprintf("at least one deposit of %s or more is required", p.MinQualifyingDeposit))
	}
	if wins < p.MinWins {
		reasons = append(reasons, fmt.Sprintf("at least %d wins are required", p.MinWins))
	}
	return &Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}
}

// Withdraw removes winnings after the eligibility rules pass. The balance
// rules are re-checked under the wallet lock.
func (a *App) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	elig, err := a.CheckWithdrawal(ctx, accountID, amount)
	if err != nil {
		return decimal.Zero, err
	}
	if !elig.Eligible {
		return decimal.Zero, fmt.Errorf("%s: %w", strings.Join(elig.Reasons, "; "), ErrNotEligible)
	}
	if description == "" {
		description = "Withdrawal"
	}
	w, err := a.repo.Apply(ctx, accountID, func(w *models.Wallet) (*models.Transaction, error) {
		before := w.Total()
		if before.LessThan(a.policy.MinTotalBalance) || w.WinBalance.LessThan(amount) {
			return nil, fmt.Errorf("winnings below %s: %w", amount, ErrInsufficientFunds)
		}
		w.WinBalance = w.WinBalance.Sub(amount)
		return a.newTransaction(w, models.TransactionTypeWithdrawal, amount, before, description, nil, nil), nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to withdraw for %s: %w", accountID, err)
	}
	log.Info().Str("account_id", accountID).Str("amount", amount.String()).Msg("withdrawal recorded")
	return w.Total(), nil
}
