package room

import (
	"context"
	"fmt"

	"github.com/mcdev12/bingo/go/internal/card"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// drawTick calls the next number, or ends the round once the pool is empty.
func (r *Room) drawTick() {
	rd := r.round
	if r.phase != PhasePlaying || rd.settled {
		return
	}
	if len(rd.pool) == 0 {
		r.finishExhausted()
		return
	}
	n := rd.pool[len(rd.pool)-1]
	rd.pool = rd.pool[:len(rd.pool)-1]
	rd.called = append(rd.called, n)
	r.broadcast(EventNumberDrawn, NumberDrawnPayload{Number: n, CalledSoFar: r.calledCopy()})
}

func (r *Room) finishExhausted() {
	r.stopTicker()
	rec := r.record(models.RoundStatusExhausted)
	now := r.clock.Now().UTC()
	rec.EndedAt = &now
	r.archive.RoundFinished(rec)
	r.broadcast(EventRoundEnded, RoundEndedPayload{Reason: "all numbers called", CalledSoFar: r.calledCopy()})

	log.Info().Uint64("round", r.round.seq).Msg("round ended without a winner")
	r.beginSelection(false)
}

// ClaimWin starts verification of the caller's card. The verdict comes after
// the configured delay; draws continue meanwhile.
func (r *Room) ClaimWin(ctx context.Context, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.session(connID)
	if err != nil {
		return r.rejectClaim(connID, err)
	}
	if r.phase != PhasePlaying {
		return r.rejectClaim(connID, ErrRoundNotPlaying)
	}
	if r.round.settled {
		return r.rejectClaim(connID, ErrRoundEnded)
	}
	st, ok := r.round.seats[s.AccountID]
	if !ok {
		return r.rejectClaim(connID, ErrNoCard)
	}
	if st.claimPending {
		return r.rejectClaim(connID, ErrClaimPending)
	}

	st.claimPending = true
	r.broadcast(EventClaimChecking, ClaimCheckingPayload{ClaimantName: s.DisplayName})

	seq, accountID := r.round.seq, s.AccountID
	r.after(r.cfg.ClaimVerifyDelay, func() { r.resolveClaim(seq, accountID) })

	log.Info().
		Str("account_id", accountID).
		Uint64("round", seq).
		Msg("claim received")
	return nil
}

// rejectClaim answers a claim that cannot be checked. Only the claimant is
// told.
func (r *Room) rejectClaim(connID string, err error) error {
	r.sendTo(connID, EventClaimRejected, ClaimRejectedPayload{ClaimantIsRecipient: true, Reason: reason(err)})
	log.Debug().Err(err).Str("conn_id", connID).Str("action", "claim_win").Msg("action rejected")
	return err
}

// resolveClaim checks a claim against the server's call history. The claim
// belongs to the account, so the verdict reaches whichever connection the
// account holds now. Must be called with the lock held.
func (r *Room) resolveClaim(seq uint64, accountID string) {
	connID, online := r.accounts[accountID]
	rd := r.round
	if rd.seq != seq || rd.settled || r.phase != PhasePlaying {
		if online {
			r.sendTo(connID, EventClaimRejected, ClaimRejectedPayload{
				ClaimantIsRecipient: true,
				Reason:              ErrRoundEnded.Error(),
			})
		}
		return
	}

	st, ok := rd.seats[accountID]
	if !ok {
		if online {
			r.sendTo(connID, EventClaimRejected, ClaimRejectedPayload{ClaimantIsRecipient: true, Reason: ErrNoCard.Error()})
		}
		return
	}
	st.claimPending = false

	cd, err := r.catalog.Get(st.cardID)
	if err != nil {
		log.Error().Err(err).Int("card_id", st.cardID).Msg("seated card missing from catalog")
		if online {
			r.sendTo(connID, EventClaimRejected, ClaimRejectedPayload{ClaimantIsRecipient: true, Reason: ErrUnknownCard.Error()})
		}
		return
	}

	if !card.HasBingo(cd.Grid, rd.called) {
		others := r.event(EventClaimRejected, ClaimRejectedPayload{
			ClaimantName: st.displayName,
			Reason:       "claim did not verify",
		})
		if online {
			r.out.SendExcept(connID, others)
			r.sendTo(connID, EventClaimRejected, ClaimRejectedPayload{
				ClaimantIsRecipient: true,
				ClaimantName:        st.displayName,
				Reason:              fmt.Sprintf("%s %d", ErrNoWinningPattern.Error(), cd.ID),
			})
		} else {
			r.out.Broadcast(others)
		}
		log.Info().
			Str("account_id", accountID).
			Int("card_id", cd.ID).
			Int("called", len(rd.called)).
			Bool("online", online).
			Msg("claim rejected")
		return
	}

	r.settle(st, cd)
}

// settle pays a verified winner. Draws are halted before any money moves.
func (r *Room) settle(st *seat, cd card.Card) {
	rd := r.round
	rd.settled = true
	r.stopTicker()

	prize := rd.prizePool
	now := r.clock.Now().UTC()
	bal, paid := r.payWinner(r.ctx, st.accountID, cd.ID)

	r.broadcast(EventWinnerAnnounced, WinnerAnnouncedPayload{
		AccountID:    st.accountID,
		DisplayName:  st.displayName,
		CardID:       cd.ID,
		WinningLines: card.WinningLines(cd.Grid, rd.called),
		Prize:        prize,
	})
	if paid {
		r.sendAccount(st.accountID, EventBalanceUpdated, BalanceUpdatedPayload{AccountID: st.accountID, Balance: bal})
	}

	rec := r.record(models.RoundStatusWon)
	winner := st.accountID
	rec.WinnerAccountID = &winner
	rec.WinningCardID = &cd.ID
	rec.EndedAt = &now
	r.archive.RoundFinished(rec)

	log.Info().
		Str("account_id", st.accountID).
		Int("card_id", cd.ID).
		Str("prize", prize.String()).
		Uint64("round", rd.seq).
		Int("called", len(rd.called)).
		Msg("winner settled")

	seq := rd.seq
	r.after(r.cfg.ResetDelay, func() {
		if r.round.seq == seq {
			r.beginSelection(true)
		}
	})
}

// payWinner credits the prize and appends the winner record. A failed
// credit is logged for manual settlement; the round still ends. A prize that
// floors to zero is recorded without a credit.
func (r *Room) payWinner(ctx context.Context, accountID string, cardID int) (decimal.Decimal, bool) {
	rd := r.round
	if !rd.prizePool.IsPositive() {
		// nothing to credit, the win still counts toward withdrawal rules
		if err := r.ledger.RecordWin(ctx, accountID, cardID, rd.prizePool, rd.seq, r.clock.Now()); err != nil {
			log.Error().Err(err).Str("account_id", accountID).Uint64("round", rd.seq).Msg("failed to record win")
		}
		return decimal.Zero, false
	}
	bal, err := r.ledger.Credit(ctx, accountID, rd.prizePool, rd.seq)
	if err != nil {
		log.Error().
			Err(err).
			Str("account_id", accountID).
			Str("amount", rd.prizePool.String()).
			Uint64("round", rd.seq).
			Msg("prize credit failed, needs manual settlement")
		return decimal.Zero, false
	}
	if err := r.ledger.RecordWin(ctx, accountID, cardID, rd.prizePool, rd.seq, r.clock.Now()); err != nil {
		log.Error().Err(err).Str("account_id", accountID).Uint64("round", rd.seq).Msg("failed to record win")
	}
	return bal, true
}
