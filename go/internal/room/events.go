package room

import (
	"time"

	"github.com/mcdev12/bingo/go/internal/card"
	"github.com/shopspring/decimal"
)

// Event is the envelope every outbound message travels in.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Round     uint64    `json:"round"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// EventType represents the type of room event
type EventType string

const (
	EventCountdown         EventType = "countdown"
	EventSelectionSnapshot EventType = "selection_snapshot"
	EventRoundStarted      EventType = "round_started"
	EventNumberDrawn       EventType = "number_drawn"
	EventClaimChecking     EventType = "claim_checking"
	EventClaimRejected     EventType = "claim_rejected"
	EventWinnerAnnounced   EventType = "winner_announced"
	EventRoundReset        EventType = "round_reset"
	EventStakeRefunded     EventType = "stake_refunded"
	EventRoundCancelled    EventType = "round_cancelled"
	EventRoundEnded        EventType = "round_ended"

	// Sent to a single connection.
	EventActionRejected EventType = "action_rejected"
	EventCardConfirmed  EventType = "card_confirmed"
	EventRoundState     EventType = "round_state"
	EventBalanceUpdated EventType = "balance_updated"

	EventAnnouncement EventType = "announcement"
)

// Phase is the round phase.
type Phase string

const (
	PhaseSelection Phase = "selection"
	PhasePlaying   Phase = "playing"
)

type CountdownPayload struct {
	SecondsLeft int   `json:"secondsLeft"`
	Phase       Phase `json:"phase"`
}

type SelectionSnapshotPayload struct {
	TakenCardIDs       []int           `json:"takenCardIds"`
	PlayerCount        int             `json:"playerCount"`
	EstimatedPrizePool decimal.Decimal `json:"estimatedPrizePool"`
}

type RoundStartedPayload struct {
	PlayerCount int             `json:"playerCount"`
	PrizePool   decimal.Decimal `json:"prizePool"`
}

type NumberDrawnPayload struct {
	Number      int   `json:"number"`
	CalledSoFar []int `json:"calledSoFar"`
}

type ClaimCheckingPayload struct {
	ClaimantName string `json:"claimantName"`
}

type ClaimRejectedPayload struct {
	ClaimantIsRecipient bool   `json:"claimantIsRecipient"`
	ClaimantName        string `json:"claimantName,omitempty"`
	Reason              string `json:"reason"`
}

type WinnerAnnouncedPayload struct {
	AccountID    string          `json:"accountId"`
	DisplayName  string          `json:"displayName"`
	CardID       int             `json:"cardId"`
	WinningLines []card.Line     `json:"winningLines"`
	Prize        decimal.Decimal `json:"prize"`
}

type RoundResetPayload struct {
	SecondsLeft int `json:"secondsLeft"`
}

type StakeRefundedPayload struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
}

type RoundCancelledPayload struct {
	Reason string `json:"reason"`
}

type RoundEndedPayload struct {
	Reason      string `json:"reason"`
	CalledSoFar []int  `json:"calledSoFar"`
}

type ActionRejectedPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type CardConfirmedPayload struct {
	CardID       int              `json:"cardId"`
	StakeCharged bool             `json:"stakeCharged"`
	Balance      *decimal.Decimal `json:"balance,omitempty"`
}

// RoundStatePayload brings a newly identified connection up to date.
type RoundStatePayload struct {
	Phase        Phase            `json:"phase"`
	SecondsLeft  int              `json:"secondsLeft"`
	TakenCardIDs []int            `json:"takenCardIds"`
	PlayerCount  int              `json:"playerCount"`
	PrizePool    decimal.Decimal  `json:"prizePool"`
	CalledSoFar  []int            `json:"calledSoFar"`
	CardID       int              `json:"cardId,omitempty"`
	StakePaid    bool             `json:"stakePaid"`
	DisplayName  string           `json:"displayName"`
	Balance      *decimal.Decimal `json:"balance,omitempty"`
}

type BalanceUpdatedPayload struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
}

type AnnouncementPayload struct {
	Message string `json:"message"`
}
