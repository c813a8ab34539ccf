package room

import (
	"context"
	"fmt"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SelectCard claims cardID for the connection's account. The first card in a
// round costs the stake; switching cards afterwards is free.
func (r *Room) SelectCard(ctx context.Context, connID string, cardID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	const action = "select_card"
	s, err := r.session(connID)
	if err != nil {
		return r.reject(connID, action, err)
	}
	if r.phase != PhaseSelection {
		return r.reject(connID, action, ErrRoundInProgress)
	}
	if !r.catalog.Has(cardID) {
		return r.reject(connID, action, fmt.Errorf("card %d: %w", cardID, ErrUnknownCard))
	}
	if holder, taken := r.round.holders[cardID]; taken && holder != s.AccountID {
		return r.reject(connID, action, fmt.Errorf("card %d: %w", cardID, ErrCardTaken))
	}

	st, paid := r.round.seats[s.AccountID]
	confirm := CardConfirmedPayload{CardID: cardID}
	if !paid {
		bal, err := r.ledger.Debit(ctx, s.AccountID, r.cfg.Stake, r.round.seq)
		if err != nil {
			log.Warn().
				Err(err).
				Str("account_id", s.AccountID).
				Int("card_id", cardID).
				Msg("stake debit failed")
			return r.reject(connID, action, err)
		}
		st = &seat{accountID: s.AccountID, displayName: s.DisplayName}
		r.round.seats[s.AccountID] = st
		confirm.StakeCharged = true
		confirm.Balance = &bal
	} else {
		if st.cardID == cardID {
			r.sendTo(connID, EventCardConfirmed, confirm)
			return nil
		}
		delete(r.round.holders, st.cardID)
		if bal, err := r.ledger.Balance(ctx, s.AccountID); err == nil {
			confirm.Balance = &bal
		}
	}
	st.cardID = cardID
	r.round.holders[cardID] = s.AccountID

	log.Debug().
		Str("account_id", s.AccountID).
		Int("card_id", cardID).
		Bool("stake_charged", confirm.StakeCharged).
		Uint64("round", r.round.seq).
		Msg("card selected")

	r.sendTo(connID, EventCardConfirmed, confirm)
	r.broadcast(EventSelectionSnapshot, r.selectionSnapshot())
	return nil
}

// selectionTick advances the countdown and closes selection at zero.
func (r *Room) selectionTick() {
	if r.phase != PhaseSelection {
		return
	}
	if r.countdown > 0 {
		r.countdown--
	}
	r.broadcast(EventCountdown, CountdownPayload{SecondsLeft: r.countdown, Phase: r.phase})
	if r.countdown > 0 {
		return
	}
	r.closeSelection()
}

func (r *Room) closeSelection() {
	n := len(r.round.seats)
	switch {
	case n >= r.cfg.MinPlayers:
		r.startPlaying()
	case n > 0:
		r.cancelRound()
	default:
		r.countdown = r.cfg.Countdown
		r.broadcast(EventCountdown, CountdownPayload{SecondsLeft: r.countdown, Phase: r.phase})
	}
}

// cancelRound refunds every seat of an undersized round and reopens
// selection for the same round.
func (r *Room) cancelRound() {
	for _, st := range r.seatsByCard() {
		if _, err := r.ledger.Refund(r.ctx, st.accountID, r.cfg.Stake, r.round.seq); err != nil {
			log.Error().Err(err).Str("account_id", st.accountID).Msg("failed to refund stake")
			continue
		}
		r.releaseSeat(st)
		r.broadcast(EventStakeRefunded, StakeRefundedPayload{AccountID: st.accountID, Amount: r.cfg.Stake})
	}
	r.broadcast(EventRoundCancelled, RoundCancelledPayload{
		Reason: fmt.Sprintf("at least %d players are needed to start", r.cfg.MinPlayers),
	})
	r.countdown = r.cfg.Countdown
	r.broadcast(EventSelectionSnapshot, r.selectionSnapshot())

	log.Info().Uint64("round", r.round.seq).Msg("round cancelled, not enough players")
}

func (r *Room) startPlaying() {
	rd := r.round
	r.phase = PhasePlaying
	rd.staked = len(rd.seats)
	rd.prizePool = r.cfg.Prize(rd.staked)
	rd.startedAt = r.clock.Now().UTC()
	rd.pool = newPool()
	r.shuffle(rd.pool)
	rd.called = make([]int, 0, len(rd.pool))

	r.broadcast(EventRoundStarted, RoundStartedPayload{PlayerCount: rd.staked, PrizePool: rd.prizePool})
	r.archive.RoundStarted(r.record(models.RoundStatusPlaying))
	r.startTicker(r.cfg.DrawInterval, r.drawTick)

	log.Info().
		Uint64("round", rd.seq).
		Int("players", rd.staked).
		Str("prize_pool", rd.prizePool.String()).
		Msg("round started")
}

// beginSelection discards the finished round and opens the next one.
func (r *Room) beginSelection(afterWin bool) {
	r.stopTicker()
	r.round = r.newRound(r.round.seq + 1)
	r.phase = PhaseSelection
	r.countdown = r.cfg.Countdown
	if afterWin {
		r.broadcast(EventRoundReset, RoundResetPayload{SecondsLeft: r.countdown})
	}
	r.broadcast(EventSelectionSnapshot, SelectionSnapshotPayload{
		TakenCardIDs:       []int{},
		EstimatedPrizePool: decimal.Zero,
	})
	r.startTicker(r.cfg.SelectionTick, r.selectionTick)
}

func (r *Room) seatsByCard() []*seat {
	out := make([]*seat, 0, len(r.round.seats))
	for _, id := range r.takenCards() {
		out = append(out, r.round.seats[r.round.holders[id]])
	}
	return out
}
