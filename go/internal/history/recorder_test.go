package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResults struct {
	n   int
	err error
}

func (f *fakeResults) Exec() (pgconn.CommandTag, error) {
	f.n++
	if f.err != nil && f.n == 2 {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}
func (f *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (f *fakeResults) QueryRow() pgx.Row        { return nil }
func (f *fakeResults) Close() error             { return nil }

type fakeDB struct {
	mu      sync.Mutex
	batches []*pgx.Batch
	err     error
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
	return &fakeResults{err: f.err}
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) sent() []*pgx.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*pgx.Batch(nil), f.batches...)
}

func record(status models.RoundStatus) models.RoundRecord {
	return models.RoundRecord{
		ID:          uuid.MustParse("6f1c1a52-3b1e-4d8e-9d2c-0a4f6f4f3e11"),
		Seq:         3,
		Status:      status,
		Stake:       decimal.NewFromInt(10),
		PrizePool:   decimal.NewFromInt(16),
		PlayerCount: 2,
		Participants: []models.RoundParticipant{
			{AccountID: "alice", DisplayName: "Alice", CardID: 1},
			{AccountID: "bob", DisplayName: "Bob", CardID: 2},
		},
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecorder_WritesRoundAndParticipants(t *testing.T) {
	db := &fakeDB{}
	r := NewRecorder(db, 8)

	r.RoundStarted(record(models.RoundStatusPlaying))
	won := record(models.RoundStatusWon)
	winner, cardID := "alice", 1
	ended := won.StartedAt.Add(40 * time.Second)
	won.WinnerAccountID, won.WinningCardID, won.EndedAt = &winner, &cardID, &ended
	won.CalledNumbers = []int{5, 20, 35}
	r.RoundFinished(won)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.Eventually(t, func() bool { return len(db.sent()) == 2 }, time.Second, 5*time.Millisecond)
	batches := db.sent()

	started := batches[0].QueuedQueries
	require.Len(t, started, 3)
	assert.Equal(t, upsertRound, started[0].SQL)
	assert.Equal(t, "playing", started[0].Arguments[2])
	assert.Equal(t, []int{}, started[0].Arguments[8])
	assert.Equal(t, insertParticipant, started[1].SQL)
	assert.Equal(t, []any{won.ID, "alice", "Alice", 1}, started[1].Arguments)

	finished := batches[1].QueuedQueries[0].Arguments
	assert.Equal(t, "won", finished[2])
	assert.Equal(t, &winner, finished[6])
	assert.Equal(t, []int{5, 20, 35}, finished[8])
	assert.Equal(t, &ended, finished[10])
}

func TestRecorder_SaveReportsStatementError(t *testing.T) {
	db := &fakeDB{err: errors.New("duplicate key")}
	r := NewRecorder(db, 1)

	err := r.save(context.Background(), record(models.RoundStatusPlaying))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch statement 1")
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	db := &fakeDB{}
	r := NewRecorder(db, 1)

	r.RoundStarted(record(models.RoundStatusPlaying))
	r.RoundFinished(record(models.RoundStatusExhausted))
	assert.Len(t, r.queue, 1)

	// cancelled before start: the queue is still flushed
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))
	require.Len(t, db.sent(), 1)
	assert.Equal(t, "playing", db.sent()[0].QueuedQueries[0].Arguments[2])
}
