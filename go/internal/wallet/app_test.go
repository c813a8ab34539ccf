package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newTestApp(t *testing.T) (*App, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	return NewApp(repo, clock, DefaultWithdrawalPolicy()), repo
}

func TestDebit_DepositFirstThenWinnings(t *testing.T) {
	ctx := context.Background()
	app, repo := newTestApp(t)

	_, err := app.Deposit(ctx, "alice", d(6), "")
	require.NoError(t, err)
	_, err = app.Credit(ctx, "alice", d(20), 1)
	require.NoError(t, err)

	bal, err := app.Debit(ctx, "alice", d(10), 2)
	require.NoError(t, err)
	assert.True(t, d(16).Equal(bal), "got %s", bal)

	w, err := repo.GetWallet(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(w.DepositBalance))
	assert.True(t, d(16).Equal(w.WinBalance))

	txs, err := app.ListTransactions(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	var stake *models.Transaction
	for i := range txs {
		if txs[i].Type == models.TransactionTypeStake {
			stake = &txs[i]
		}
	}
	require.NotNil(t, stake)
	assert.True(t, d(26).Equal(stake.BalanceBefore))
	assert.True(t, d(16).Equal(stake.BalanceAfter))
	require.NotNil(t, stake.RoundSeq)
	assert.Equal(t, uint64(2), *stake.RoundSeq)
	assert.JSONEq(t, `{"from_deposit":"6","from_win":"4"}`, string(stake.Metadata))
}

func TestDebit_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t)

	_, err := app.Deposit(ctx, "bob", d(5), "")
	require.NoError(t, err)

	_, err = app.Debit(ctx, "bob", d(10), 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	bal, err := app.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, d(5).Equal(bal))

	txs, err := app.ListTransactions(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "failed debit must not write a transaction")
}

func TestDebit_UnknownAccountHasNoFunds(t *testing.T) {
	app, _ := newTestApp(t)
	_, err := app.Debit(context.Background(), "ghost", d(10), 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t)

	_, err := app.Debit(ctx, "", d(10), 1)
	assert.ErrorIs(t, err, ErrInvalidAccount)
	_, err = app.Credit(ctx, "alice", decimal.Zero, 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = app.Refund(ctx, "alice", d(-1), 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRefund_ReturnsToDepositBalance(t *testing.T) {
	ctx := context.Background()
	app, repo := newTestApp(t)

	_, err := app.Deposit(ctx, "carol", d(10), "")
	require.NoError(t, err)
	_, err = app.Debit(ctx, "carol", d(10), 4)
	require.NoError(t, err)
	bal, err := app.Refund(ctx, "carol", d(10), 4)
	require.NoError(t, err)
	assert.True(t, d(10).Equal(bal))

	w, _ := repo.GetWallet(ctx, "carol")
	assert.True(t, d(10).Equal(w.DepositBalance))
	assert.True(t, decimal.Zero.Equal(w.WinBalance))
}

func TestDebit_ConcurrentSameAccountNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t)
	_, err := app.Deposit(ctx, "dave", d(50), "")
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := app.Debit(ctx, "dave", d(10), 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	bal, err := app.Balance(ctx, "dave")
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(bal))
}

func TestCheckWithdrawal(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t)
	now := time.Now()

	e, err := app.CheckWithdrawal(ctx, "erin", d(50))
	require.NoError(t, err)
	assert.False(t, e.Eligible)
	assert.Len(t, e.Reasons, 4)

	_, err = app.Deposit(ctx, "erin", d(100), "")
	require.NoError(t, err)
	_, err = app.Credit(ctx, "erin", d(60), 1)
	require.NoError(t, err)
	require.NoError(t, app.RecordWin(ctx, "erin", 7, d(60), 1, now))

	e, err = app.CheckWithdrawal(ctx, "erin", d(50))
	require.NoError(t, err)
	assert.False(t, e.Eligible)
	assert.Equal(t, []string{"at least 2 wins are required"}, e.Reasons)

	_, err = app.Withdraw(ctx, "erin", d(50), "")
	assert.ErrorIs(t, err, ErrNotEligible)

	require.NoError(t, app.RecordWin(ctx, "erin", 8, d(16), 2, now))
	e, err = app.CheckWithdrawal(ctx, "erin", d(50))
	require.NoError(t, err)
	assert.True(t, e.Eligible)
	assert.Empty(t, e.Reasons)

	e, err = app.CheckWithdrawal(ctx, "erin", d(70))
	require.NoError(t, err)
	assert.False(t, e.Eligible)
	assert.Equal(t, []string{"only winnings can be withdrawn"}, e.Reasons)

	bal, err := app.Withdraw(ctx, "erin", d(50), "")
	require.NoError(t, err)
	assert.True(t, d(110).Equal(bal))
}

func TestListTransactions_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	clock := clockwork.NewFakeClock()
	app := NewApp(repo, clock, DefaultWithdrawalPolicy())

	_, err := app.Deposit(ctx, "fay", d(10), "first")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = app.Deposit(ctx, "fay", d(10), "second")
	require.NoError(t, err)

	txs, err := app.ListTransactions(ctx, "fay", 1)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "second", txs[0].Description)
}

func TestRecordWin_ZeroPrizeCounts(t *testing.T) {
	ctx := context.Background()
	app, repo := newTestApp(t)

	require.NoError(t, app.RecordWin(ctx, "gus", 3, decimal.Zero, 1, time.Now()))
	assert.ErrorIs(t, app.RecordWin(ctx, "gus", 3, d(-1), 2, time.Now()), ErrInvalidAmount)

	wins, err := repo.CountWins(ctx, "gus")
	require.NoError(t, err)
	assert.Equal(t, 1, wins)
}
