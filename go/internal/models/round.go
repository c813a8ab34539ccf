package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoundStatus defines how far an archived round got.
type RoundStatus string

const (
	RoundStatusPlaying   RoundStatus = "playing"
	RoundStatusWon       RoundStatus = "won"
	RoundStatusExhausted RoundStatus = "exhausted"
)

// RoundRecord is the archived view of a played round.
type RoundRecord struct {
	ID              uuid.UUID          `json:"id"`
	Seq             uint64             `json:"seq"`
	Status          RoundStatus        `json:"status"`
	Stake           decimal.Decimal    `json:"stake"`
	PrizePool       decimal.Decimal    `json:"prize_pool"`
	PlayerCount     int                `json:"player_count"`
	WinnerAccountID *string            `json:"winner_account_id,omitempty"`
	WinningCardID   *int               `json:"winning_card_id,omitempty"`
	CalledNumbers   []int              `json:"called_numbers"`
	Participants    []RoundParticipant `json:"participants,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
	EndedAt         *time.Time         `json:"ended_at,omitempty"`
}

// RoundParticipant is one staked seat in a round.
type RoundParticipant struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	CardID      int    `json:"card_id"`
}
