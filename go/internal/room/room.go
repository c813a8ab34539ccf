// Package room runs the single bingo room: the session table, the
// selection/playing state machine, number draws and win settlement.
//
// Every mutation happens under Room.mu. Events are handed to the
// Broadcaster while the lock is held, so all connections observe them in
// the order the room produced them.
package room

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bingo/go/internal/card"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Ledger defines what the room needs from the wallet. It is the only way the
// room moves money.
type Ledger interface {
	Debit(ctx context.Context, accountID string, amount decimal.Decimal, roundSeq uint64) (decimal.Decimal, error)
	Credit(ctx context.Context, accountID string, amount decimal.Decimal, roundSeq uint64) (decimal.Decimal, error)
	Refund(ctx context.Context, accountID string, amount decimal.Decimal, roundSeq uint64) (decimal.Decimal, error)
	RecordWin(ctx context.Context, accountID string, cardID int, prize decimal.Decimal, roundSeq uint64, at time.Time) error
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// Broadcaster delivers events to connections. Implementations must preserve
// call order across all four methods.
type Broadcaster interface {
	Broadcast(ev *Event)
	SendTo(connID string, ev *Event)
	SendExcept(connID string, ev *Event)
	// Drop closes a connection that has been replaced.
	Drop(connID string)
}

// Archive records played rounds. Calls must not block.
type Archive interface {
	RoundStarted(rec models.RoundRecord)
	RoundFinished(rec models.RoundRecord)
}

type noopArchive struct{}

func (noopArchive) RoundStarted(models.RoundRecord)  {}
func (noopArchive) RoundFinished(models.RoundRecord) {}

type round struct {
	id        uuid.UUID
	seq       uint64
	pool      []int
	called    []int
	seats     map[string]*seat // by account
	holders   map[int]string   // card -> account
	staked    int              // seats when play began
	prizePool decimal.Decimal
	settled   bool
	startedAt time.Time
}

// Room is the round aggregate.
type Room struct {
	mu sync.Mutex

	cfg     Config
	clock   clockwork.Clock
	catalog *card.Catalog
	ledger  Ledger
	out     Broadcaster
	archive Archive
	shuffle Shuffler

	ctx     context.Context
	running bool

	phase     Phase
	countdown int
	round     *round
	sessions  map[string]*Session // by connection
	accounts  map[string]string   // account -> connection

	ticker     clockwork.Ticker
	tickerStop chan struct{}
	tickerGen  uint64

	timers  map[uint64]clockwork.Timer
	timerID uint64
}

// Option configures a Room.
type Option func(*Room)

func WithClock(c clockwork.Clock) Option { return func(r *Room) { r.clock = c } }

func WithArchive(a Archive) Option { return func(r *Room) { r.archive = a } }

func WithShuffler(s Shuffler) Option { return func(r *Room) { r.shuffle = s } }

// New creates a room in the selection phase. Timers start with Run.
func New(cfg Config, catalog *card.Catalog, ledger Ledger, out Broadcaster, opts ...Option) (*Room, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Room{
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		catalog:  catalog,
		ledger:   ledger,
		out:      out,
		archive:  noopArchive{},
		ctx:      context.Background(),
		sessions: make(map[string]*Session),
		accounts: make(map[string]string),
		timers:   make(map[uint64]clockwork.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.shuffle == nil {
		r.shuffle = NewShuffler()
	}
	r.phase = PhaseSelection
	r.countdown = cfg.Countdown
	r.round = r.newRound(1)
	return r, nil
}

func (r *Room) newRound(seq uint64) *round {
	return &round{
		id:      uuid.New(),
		seq:     seq,
		seats:   make(map[string]*seat),
		holders: make(map[int]string),
	}
}

// Run drives the room's clock until ctx is cancelled.
func (r *Room) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.running = true
	r.ctx = ctx
	if r.phase == PhasePlaying && !r.round.settled {
		r.startTicker(r.cfg.DrawInterval, r.drawTick)
	} else if r.phase == PhaseSelection {
		r.startTicker(r.cfg.SelectionTick, r.selectionTick)
	}
	r.mu.Unlock()

	log.Info().
		Int("countdown", r.cfg.Countdown).
		Dur("draw_interval", r.cfg.DrawInterval).
		Str("stake", r.cfg.Stake.String()).
		Msg("room started")

	<-ctx.Done()

	r.mu.Lock()
	r.running = false
	r.stopTicker()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.ctx = context.Background()
	r.mu.Unlock()

	log.Info().Msg("room stopped")
	return nil
}

// startTicker replaces the phase ticker. The previous ticker is stopped
// under the same lock, and a tick from it that already fired is discarded
// by the generation check.
func (r *Room) startTicker(d time.Duration, step func()) {
	r.stopTicker()
	if !r.running {
		return
	}
	r.tickerGen++
	gen := r.tickerGen
	t := r.clock.NewTicker(d)
	stop := make(chan struct{})
	r.ticker, r.tickerStop = t, stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-t.Chan():
				r.mu.Lock()
				if r.running && r.tickerGen == gen {
					step()
				}
				r.mu.Unlock()
			}
		}
	}()
}

func (r *Room) stopTicker() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	close(r.tickerStop)
	r.ticker, r.tickerStop = nil, nil
	r.tickerGen++
}

// after runs fn under the room lock once d has elapsed, unless the room
// stops first.
func (r *Room) after(d time.Duration, fn func()) {
	r.timerID++
	id := r.timerID
	r.timers[id] = r.clock.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, pending := r.timers[id]; !pending {
			return
		}
		delete(r.timers, id)
		fn()
	})
}

func (r *Room) event(t EventType, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Round:     r.round.seq,
		Timestamp: r.clock.Now().UTC(),
		Data:      data,
	}
}

func (r *Room) broadcast(t EventType, data any) {
	r.out.Broadcast(r.event(t, data))
}

func (r *Room) sendTo(connID string, t EventType, data any) {
	r.out.SendTo(connID, r.event(t, data))
}

func (r *Room) sendAccount(accountID string, t EventType, data any) {
	if connID, ok := r.accounts[accountID]; ok {
		r.sendTo(connID, t, data)
	}
}

func (r *Room) reject(connID, action string, err error) error {
	r.sendTo(connID, EventActionRejected, ActionRejectedPayload{Action: action, Reason: reason(err)})
	log.Debug().Err(err).Str("conn_id", connID).Str("action", action).Msg("action rejected")
	return err
}

func (r *Room) takenCards() []int {
	out := make([]int, 0, len(r.round.holders))
	for id := range r.round.holders {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (r *Room) calledCopy() []int {
	out := make([]int, len(r.round.called))
	copy(out, r.round.called)
	return out
}

func (r *Room) currentPrize() decimal.Decimal {
	if r.phase == PhasePlaying {
		return r.round.prizePool
	}
	return r.cfg.Prize(len(r.round.seats))
}

func (r *Room) selectionSnapshot() SelectionSnapshotPayload {
	return SelectionSnapshotPayload{
		TakenCardIDs:       r.takenCards(),
		PlayerCount:        len(r.round.seats),
		EstimatedPrizePool: r.cfg.Prize(len(r.round.seats)),
	}
}

func (r *Room) record(status models.RoundStatus) models.RoundRecord {
	rec := models.RoundRecord{
		ID:            r.round.id,
		Seq:           r.round.seq,
		Status:        status,
		Stake:         r.cfg.Stake,
		PrizePool:     r.round.prizePool,
		PlayerCount:   r.round.staked,
		CalledNumbers: r.calledCopy(),
		StartedAt:     r.round.startedAt,
	}
	for _, st := range r.round.seats {
		rec.Participants = append(rec.Participants, models.RoundParticipant{
			AccountID:   st.accountID,
			DisplayName: st.displayName,
			CardID:      st.cardID,
		})
	}
	sort.Slice(rec.Participants, func(i, j int) bool {
		return rec.Participants[i].CardID < rec.Participants[j].CardID
	})
	return rec
}

// State is a point-in-time view of the room.
type State struct {
	Phase        Phase           `json:"phase"`
	Round        uint64          `json:"round"`
	SecondsLeft  int             `json:"secondsLeft"`
	TakenCardIDs []int           `json:"takenCardIds"`
	PlayerCount  int             `json:"playerCount"`
	PrizePool    decimal.Decimal `json:"prizePool"`
	CalledSoFar  []int           `json:"calledSoFar"`
	Remaining    int             `json:"remaining"`
	Settled      bool            `json:"settled"`
	Connections  int             `json:"connections"`
	Stake        decimal.Decimal `json:"stake"`
}

// Snapshot returns the current state.
func (r *Room) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		Phase:        r.phase,
		Round:        r.round.seq,
		SecondsLeft:  r.countdown,
		TakenCardIDs: r.takenCards(),
		PlayerCount:  len(r.round.seats),
		PrizePool:    r.currentPrize(),
		CalledSoFar:  r.calledCopy(),
		Remaining:    len(r.round.pool),
		Settled:      r.round.settled,
		Connections:  len(r.sessions),
		Stake:        r.cfg.Stake,
	}
}

// Announce broadcasts an operator message in order with round events.
func (r *Room) Announce(ctx context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast(EventAnnouncement, AnnouncementPayload{Message: message})
}

// NotifyBalance pushes a fresh balance to the account's connection after a
// change made outside the room.
func (r *Room) NotifyBalance(ctx context.Context, accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[accountID]; !ok {
		return
	}
	bal, err := r.ledger.Balance(ctx, accountID)
	if err != nil {
		log.Error().Err(err).Str("account_id", accountID).Msg("failed to read balance")
		return
	}
	r.sendAccount(accountID, EventBalanceUpdated, BalanceUpdatedPayload{AccountID: accountID, Balance: bal})
}
