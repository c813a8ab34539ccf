package wallet

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/sqlutil"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

func newQueries(tx *sql.Tx) *queries {
	return &queries{db: tx}
}

func newReadQueries(db *sql.DB) *queries {
	return &queries{db: db}
}

const ensureWallet = `
INSERT INTO wallets (account_id) VALUES ($1)
ON CONFLICT (account_id) DO NOTHING`

func (q *queries) ensureWallet(ctx context.Context, accountID string) error {
	_, err := q.db.ExecContext(ctx, ensureWallet, accountID)
	return err
}

const lockWallet = `
SELECT account_id, deposit_balance, win_balance, updated_at
FROM wallets WHERE account_id = $1
FOR UPDATE`

func (q *queries) lockWallet(ctx context.Context, accountID string) (*models.Wallet, error) {
	var w models.Wallet
	err := q.db.QueryRowContext(ctx, lockWallet, accountID).
		Scan(&w.AccountID, &w.DepositBalance, &w.WinBalance, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

const getWallet = `
SELECT account_id, deposit_balance, win_balance, updated_at
FROM wallets WHERE account_id = $1`

func (q *queries) getWallet(ctx context.Context, accountID string) (*models.Wallet, error) {
	var w models.Wallet
	err := q.db.QueryRowContext(ctx, getWallet, accountID).
		Scan(&w.AccountID, &w.DepositBalance, &w.WinBalance, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

const updateWallet = `
UPDATE wallets SET deposit_balance = $2, win_balance = $3, updated_at = $4
WHERE account_id = $1`

func (q *queries) updateWallet(ctx context.Context, w *models.Wallet) error {
	res, err := q.db.ExecContext(ctx, updateWallet, w.AccountID, w.DepositBalance, w.WinBalance, w.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("expected 1 wallet row updated, got %d", n)
	}
	return nil
}

const insertTransaction = `
INSERT INTO transactions (
  id, account_id, type, amount, balance_before, balance_after,
  description, round_seq, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

func (q *queries) insertTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		t.ID, t.AccountID, string(t.Type), t.Amount, t.BalanceBefore, t.BalanceAfter,
		sqlutil.ToNullString(t.Description), sqlutil.ToNullInt64(t.RoundSeq), sqlutil.ToNullRawMessage(t.Metadata), t.CreatedAt,
	)
	return err
}

const listTransactions = `
SELECT id, account_id, type, amount, balance_before, balance_after,
       description, round_seq, metadata, created_at
FROM transactions
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2`

func (q *queries) listTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var (
			t        models.Transaction
			txType   string
			desc     sql.NullString
			seq      sql.NullInt64
			metadata pqtype.NullRawMessage
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &txType, &t.Amount, &t.BalanceBefore,
			&t.BalanceAfter, &desc, &seq, &metadata, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = models.TransactionType(txType)
		t.Description = sqlutil.FromNullString(desc, "")
		t.RoundSeq = sqlutil.FromNullInt64(seq)
		t.Metadata = sqlutil.FromNullRawMessage(metadata)
		out = append(out, t)
	}
	return out, rows.Err()
}

const insertWinner = `
INSERT INTO winners (id, account_id, card_id, prize, round_seq, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`

func (q *queries) insertWinner(ctx context.Context, w models.Winner) error {
	id := w.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := q.db.ExecContext(ctx, insertWinner, id, w.AccountID, w.CardID, w.Prize, int64(w.RoundSeq), w.CreatedAt)
	return err
}

const countWins = `SELECT COUNT(*) FROM winners WHERE account_id = $1`

func (q *queries) countWins(ctx context.Context, accountID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countWins, accountID).Scan(&n)
	return n, err
}

const countDepositsAtLeast = `
SELECT COUNT(*) FROM transactions
WHERE account_id = $1 AND type = 'deposit' AND amount >= $2`

func (q *queries) countDepositsAtLeast(ctx context.Context, accountID string, amount decimal.Decimal) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countDepositsAtLeast, accountID, amount).Scan(&n)
	return n, err
}
