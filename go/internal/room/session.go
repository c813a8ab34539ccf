package room

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Session binds a live connection to an account. Card ownership, the
// stake-paid flag and a pending claim live on the round's seat for the
// account, so a reconnect picks them back up.
type Session struct {
	ConnID      string
	AccountID   string
	DisplayName string
	JoinedAt    time.Time
}

// SessionView is a read-only copy of a session with its seat state.
type SessionView struct {
	ConnID       string `json:"connId"`
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	CardID       int    `json:"cardId,omitempty"`
	StakePaid    bool   `json:"stakePaid"`
	ClaimPending bool   `json:"claimPending"`
}

// seat exists for an account once it has paid the stake in the current round.
type seat struct {
	accountID    string
	displayName  string
	cardID       int
	claimPending bool
}

func defaultDisplayName(accountID string) string {
	suffix := accountID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "Player_" + suffix
}

// Identify binds connID to accountID. A second connection for the same
// account replaces the first one.
func (r *Room) Identify(ctx context.Context, connID, accountID, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accountID = strings.TrimSpace(accountID)
	displayName = strings.TrimSpace(displayName)
	if accountID == "" {
		return r.reject(connID, "identify", ErrInvalidAccount)
	}

	if s, ok := r.sessions[connID]; ok {
		if s.AccountID != accountID {
			return r.reject(connID, "identify", ErrAlreadyIdentified)
		}
		if displayName != "" {
			s.DisplayName = displayName
		}
		r.sendState(ctx, s)
		return nil
	}

	if displayName == "" {
		displayName = defaultDisplayName(accountID)
	}

	if prev, ok := r.accounts[accountID]; ok && prev != connID {
		delete(r.sessions, prev)
		r.out.Drop(prev)
		log.Info().
			Str("account_id", accountID).
			Str("old_conn_id", prev).
			Str("conn_id", connID).
			Msg("replaced existing session")
	}

	s := &Session{
		ConnID:      connID,
		AccountID:   accountID,
		DisplayName: displayName,
		JoinedAt:    r.clock.Now(),
	}
	r.sessions[connID] = s
	r.accounts[accountID] = connID
	if st, ok := r.round.seats[accountID]; ok {
		st.displayName = displayName
	}

	log.Info().
		Str("conn_id", connID).
		Str("account_id", accountID).
		Uint64("round", r.round.seq).
		Msg("session identified")

	r.sendState(ctx, s)
	return nil
}

// Disconnect removes the connection's session. During selection a held card
// is released and its stake refunded; once play started the seat stays and
// settles as if the player were present.
func (r *Room) Disconnect(ctx context.Context, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return
	}
	delete(r.sessions, connID)
	if r.accounts[s.AccountID] == connID {
		delete(r.accounts, s.AccountID)
	}

	log.Info().
		Str("conn_id", connID).
		Str("account_id", s.AccountID).
		Str("phase", string(r.phase)).
		Msg("session disconnected")

	if r.phase != PhaseSelection {
		return
	}
	st, ok := r.round.seats[s.AccountID]
	if !ok {
		return
	}
	if _, err := r.ledger.Refund(ctx, s.AccountID, r.cfg.Stake, r.round.seq); err != nil {
		// keep the seat so the refund is retried when the countdown closes
		log.Error().Err(err).Str("account_id", s.AccountID).Msg("failed to refund stake on disconnect")
		return
	}
	r.releaseSeat(st)
	r.broadcast(EventSelectionSnapshot, r.selectionSnapshot())
}

// Sessions lists live sessions ordered by join time.
func (r *Room) Sessions() []SessionView {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SessionView, 0, len(r.sessions))
	for _, s := range r.sessions {
		v := SessionView{
			ConnID:      s.ConnID,
			AccountID:   s.AccountID,
			DisplayName: s.DisplayName,
		}
		if st, ok := r.round.seats[s.AccountID]; ok {
			v.CardID = st.cardID
			v.StakePaid = true
			v.ClaimPending = st.claimPending
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.sessions[out[i].ConnID].JoinedAt.Before(r.sessions[out[j].ConnID].JoinedAt)
	})
	return out
}

func (r *Room) releaseSeat(st *seat) {
	delete(r.round.holders, st.cardID)
	delete(r.round.seats, st.accountID)
}

func (r *Room) sendState(ctx context.Context, s *Session) {
	p := RoundStatePayload{
		Phase:        r.phase,
		SecondsLeft:  r.countdown,
		TakenCardIDs: r.takenCards(),
		PlayerCount:  len(r.round.seats),
		PrizePool:    r.currentPrize(),
		CalledSoFar:  r.calledCopy(),
		DisplayName:  s.DisplayName,
	}
	if st, ok := r.round.seats[s.AccountID]; ok {
		p.CardID = st.cardID
		p.StakePaid = true
	}
	if bal, err := r.ledger.Balance(ctx, s.AccountID); err != nil {
		log.Warn().Err(err).Str("account_id", s.AccountID).Msg("balance unavailable for round state")
	} else {
		p.Balance = &bal
	}
	r.sendTo(s.ConnID, EventRoundState, p)
}

func (r *Room) session(connID string) (*Session, error) {
	s, ok := r.sessions[connID]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", connID, ErrNotIdentified)
	}
	return s, nil
}
