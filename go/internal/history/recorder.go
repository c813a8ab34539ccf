// Package history archives finished and in-flight rounds to Postgres.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/rs/zerolog/log"
)

// db is the subset of *pgxpool.Pool the recorder uses.
type db interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Recorder is a room.Archive that writes rounds from a background worker so
// the room never waits on the database.
type Recorder struct {
	db    db
	queue chan models.RoundRecord
}

func NewRecorder(pool db, queueSize int) *Recorder {
	return &Recorder{db: pool, queue: make(chan models.RoundRecord, queueSize)}
}

func (r *Recorder) RoundStarted(rec models.RoundRecord)  { r.enqueue(rec) }
func (r *Recorder) RoundFinished(rec models.RoundRecord) { r.enqueue(rec) }

func (r *Recorder) enqueue(rec models.RoundRecord) {
	select {
	case r.queue <- rec:
	default:
		log.Warn().
			Str("round_id", rec.ID.String()).
			Str("status", string(rec.Status)).
			Msg("history queue full, dropping round record")
	}
}

// Run writes queued records until ctx is cancelled, then drains what is
// left with a fresh context.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case rec := <-r.queue:
			r.write(ctx, rec)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case rec := <-r.queue:
			r.write(context.Background(), rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec models.RoundRecord) {
	if err := r.save(ctx, rec); err != nil {
		log.Error().
			Err(err).
			Str("round_id", rec.ID.String()).
			Uint64("round", rec.Seq).
			Str("status", string(rec.Status)).
			Msg("failed to archive round")
		return
	}
	log.Debug().
		Str("round_id", rec.ID.String()).
		Str("status", string(rec.Status)).
		Msg("round archived")
}

const upsertRound = `
INSERT INTO rounds (
  id, seq, status, stake, prize_pool, player_count,
  winner_account_id, winning_card_id, called_numbers, started_at, ended_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status            = EXCLUDED.status,
  winner_account_id = EXCLUDED.winner_account_id,
  winning_card_id   = EXCLUDED.winning_card_id,
  called_numbers    = EXCLUDED.called_numbers,
  ended_at          = EXCLUDED.ended_at`

const insertParticipant = `
INSERT INTO round_participants (round_id, account_id, display_name, card_id)
VALUES ($1,$2,$3,$4)
ON CONFLICT (round_id, account_id) DO NOTHING`

// save upserts the round row and its participants in one round trip.
func (r *Recorder) save(ctx context.Context, rec models.RoundRecord) error {
	called := rec.CalledNumbers
	if called == nil {
		called = []int{}
	}

	b := &pgx.Batch{}
	b.Queue(upsertRound,
		rec.ID, int64(rec.Seq), string(rec.Status), rec.Stake, rec.PrizePool, rec.PlayerCount,
		rec.WinnerAccountID, rec.WinningCardID, called, rec.StartedAt, rec.EndedAt,
	)
	for _, p := range rec.Participants {
		b.Queue(insertParticipant, rec.ID, p.AccountID, p.DisplayName, p.CardID)
	}

	br := r.db.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return br.Close()
}

// Recent lists the newest rounds without participants.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.RoundRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, seq, status, stake, prize_pool, player_count,
		       winner_account_id, winning_card_id, called_numbers, started_at, ended_at
		FROM rounds
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []models.RoundRecord
	for rows.Next() {
		var (
			rec    models.RoundRecord
			seq    int64
			status string
		)
		if err := rows.Scan(
			&rec.ID, &seq, &status, &rec.Stake, &rec.PrizePool, &rec.PlayerCount,
			&rec.WinnerAccountID, &rec.WinningCardID, &rec.CalledNumbers, &rec.StartedAt, &rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rec.Seq = uint64(seq)
		rec.Status = models.RoundStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return out, nil
}
