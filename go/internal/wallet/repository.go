package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/sqlutil"
	"github.com/shopspring/decimal"
)

// Repository persists wallets on Postgres through database/sql.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Postgres wallet repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ WalletRepository = (*Repository)(nil)

// Apply locks the wallet row for the duration of fn.
func (r *Repository) Apply(ctx context.Context, accountID string, fn MutateFunc) (*models.Wallet, error) {
	var out *models.Wallet
	err := sqlutil.Run(ctx, r.db, newQueries, func(q *queries) error {
		if err := q.ensureWallet(ctx, accountID); err != nil {
			return fmt.Errorf("failed to ensure wallet: %w", err)
		}
		w, err := q.lockWallet(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}
		tx, err := fn(w)
		if err != nil {
			return err
		}
		if err := q.updateWallet(ctx, w); err != nil {
			return fmt.Errorf("failed to update wallet: %w", err)
		}
		if err := q.insertTransaction(ctx, tx); err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetWallet returns a zero wallet for accounts that have never transacted.
func (r *Repository) GetWallet(ctx context.Context, accountID string) (*models.Wallet, error) {
	w, err := newReadQueries(r.db).getWallet(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Wallet{AccountID: accountID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func (r *Repository) ListTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	txs, err := newReadQueries(r.db).listTransactions(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (r *Repository) InsertWinner(ctx context.Context, w models.Winner) error {
	if err := newReadQueries(r.db).insertWinner(ctx, w); err != nil {
		return fmt.Errorf("failed to insert winner: %w", err)
	}
	return nil
}

func (r *Repository) CountWins(ctx context.Context, accountID string) (int, error) {
	n, err := newReadQueries(r.db).countWins(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to count wins: %w", err)
	}
	return n, nil
}

func (r *Repository) CountDepositsAtLeast(ctx context.Context, accountID string, amount decimal.Decimal) (int, error) {
	n, err := newReadQueries(r.db).countDepositsAtLeast(ctx, accountID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to count deposits: %w", err)
	}
	return n, nil
}
