package room

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bingo/go/internal/card"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	mode string // all, to, except
	conn string
	ev   *Event
}

type recorder struct {
	mu      sync.Mutex
	out     []delivery
	dropped []string
}

func (r *recorder) add(d delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, d)
}

func (r *recorder) Broadcast(ev *Event)                 { r.add(delivery{mode: "all", ev: ev}) }
func (r *recorder) SendTo(connID string, ev *Event)     { r.add(delivery{mode: "to", conn: connID, ev: ev}) }
func (r *recorder) SendExcept(connID string, ev *Event) { r.add(delivery{mode: "except", conn: connID, ev: ev}) }

func (r *recorder) Drop(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, connID)
}

func (r *recorder) all() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]delivery, len(r.out))
	copy(out, r.out)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = nil
}

// broadcasts lists the types of events sent to everyone, in order.
func (r *recorder) broadcasts() []EventType {
	var out []EventType
	for _, d := range r.all() {
		if d.mode == "all" {
			out = append(out, d.ev.Type)
		}
	}
	return out
}

// received returns what conn saw, in order.
func (r *recorder) received(conn string) []*Event {
	var out []*Event
	for _, d := range r.all() {
		switch {
		case d.mode == "all",
			d.mode == "to" && d.conn == conn,
			d.mode == "except" && d.conn != conn:
			out = append(out, d.ev)
		}
	}
	return out
}

func (r *recorder) last(conn string, t EventType) *Event {
	evs := r.received(conn)
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == t {
			return evs[i]
		}
	}
	return nil
}

func (r *recorder) count(conn string, t EventType) int {
	n := 0
	for _, ev := range r.received(conn) {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type archiveRecorder struct {
	mu       sync.Mutex
	started  []models.RoundRecord
	finished []models.RoundRecord
}

func (a *archiveRecorder) RoundStarted(rec models.RoundRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = append(a.started, rec)
}

func (a *archiveRecorder) RoundFinished(rec models.RoundRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished = append(a.finished, rec)
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	room    *Room
	clock   *clockwork.FakeClock
	out     *recorder
	archive *archiveRecorder
	wallet  *wallet.App
	repo    *wallet.MemoryRepository
	cards   *card.Catalog
	cfg     Config
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Countdown = 3
	return cfg
}

func newHarness(t *testing.T, cfg Config, draws ...int) *harness {
	t.Helper()
	cards, err := card.Generate(card.DefaultCount, 1)
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := wallet.NewMemoryRepository()
	w := wallet.NewApp(repo, clock, wallet.DefaultWithdrawalPolicy())
	out := &recorder{}
	arch := &archiveRecorder{}
	r, err := New(cfg, cards, w, out, WithClock(clock), WithArchive(arch), WithShuffler(drawOrder(draws...)))
	require.NoError(t, err)
	return &harness{
		t:       t,
		ctx:     context.Background(),
		room:    r,
		clock:   clock,
		out:     out,
		archive: arch,
		wallet:  w,
		repo:    repo,
		cards:   cards,
		cfg:     cfg,
	}
}

// drawOrder arranges the pool so that first is drawn before anything else,
// then the remaining numbers from 75 down.
func drawOrder(first ...int) Shuffler {
	return func(pool []int) {
		used := make(map[int]bool, len(first))
		for _, n := range first {
			used[n] = true
		}
		var rest []int
		for n := 1; n <= card.MaxNumber; n++ {
			if !used[n] {
				rest = append(rest, n)
			}
		}
		sort.Ints(rest)
		out := rest
		for i := len(first) - 1; i >= 0; i-- {
			out = append(out, first[i])
		}
		copy(pool, out)
	}
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func (h *harness) join(conn, account string, balance int64) {
	h.t.Helper()
	if balance > 0 {
		_, err := h.wallet.Deposit(h.ctx, account, d(balance), "")
		require.NoError(h.t, err)
	}
	require.NoError(h.t, h.room.Identify(h.ctx, conn, account, ""))
}

func (h *harness) seat(conn, account string, cardID int) {
	h.t.Helper()
	h.join(conn, account, 100)
	require.NoError(h.t, h.room.SelectCard(h.ctx, conn, cardID))
}

func (h *harness) locked(fn func()) {
	h.room.mu.Lock()
	defer h.room.mu.Unlock()
	fn()
}

func (h *harness) tick() { h.locked(h.room.selectionTick) }

func (h *harness) closeCountdown() {
	for i := 0; i < h.cfg.Countdown; i++ {
		h.tick()
	}
}

func (h *harness) draw(n int) {
	for i := 0; i < n; i++ {
		h.locked(h.room.drawTick)
	}
}

func (h *harness) balance(account string) decimal.Decimal {
	h.t.Helper()
	b, err := h.wallet.Balance(h.ctx, account)
	require.NoError(h.t, err)
	return b
}

// verdict advances past the claim delay and waits for the claimant's answer.
func (h *harness) verdict(conn string) *Event {
	h.t.Helper()
	before := h.out.count(conn, EventClaimRejected) + h.out.count(conn, EventWinnerAnnounced)
	h.clock.Advance(h.cfg.ClaimVerifyDelay)
	require.Eventually(h.t, func() bool {
		return h.out.count(conn, EventClaimRejected)+h.out.count(conn, EventWinnerAnnounced) > before
	}, time.Second, 5*time.Millisecond)
	evs := h.out.received(conn)
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == EventClaimRejected || evs[i].Type == EventWinnerAnnounced {
			return evs[i]
		}
	}
	return nil
}

func rowNumbers(c card.Card, row int) []int {
	var out []int
	for col := 0; col < card.Size; col++ {
		if v := c.Grid[row][col]; v != card.FreeCell {
			out = append(out, v)
		}
	}
	return out
}

func testCard(t *testing.T, id int) card.Card {
	t.Helper()
	cards, err := card.Generate(card.DefaultCount, 1)
	require.NoError(t, err)
	c, err := cards.Get(id)
	require.NoError(t, err)
	return c
}
