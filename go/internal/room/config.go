package room

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the rules of the room.
type Config struct {
	// Countdown is the number of selection ticks before a round may start.
	Countdown        int
	SelectionTick    time.Duration
	DrawInterval     time.Duration
	ClaimVerifyDelay time.Duration
	ResetDelay       time.Duration
	MinPlayers       int
	Stake            decimal.Decimal
	PayoutFraction   decimal.Decimal
}

// DefaultConfig returns the production rules.
func DefaultConfig() Config {
	return Config{
		Countdown:        45,
		SelectionTick:    time.Second,
		DrawInterval:     2 * time.Second,
		ClaimVerifyDelay: 3 * time.Second,
		ResetDelay:       4 * time.Second,
		MinPlayers:       2,
		Stake:            decimal.NewFromInt(10),
		PayoutFraction:   decimal.RequireFromString("0.8"),
	}
}

// Validate rejects rules the state machine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Countdown <= 0:
		return fmt.Errorf("countdown must be positive, got %d", c.Countdown)
	case c.SelectionTick <= 0, c.DrawInterval <= 0:
		return fmt.Errorf("tick intervals must be positive")
	case c.ClaimVerifyDelay < 0, c.ResetDelay < 0:
		return fmt.Errorf("delays must not be negative")
	case c.MinPlayers < 2:
		return fmt.Errorf("min players must be at least 2, got %d", c.MinPlayers)
	case !c.Stake.IsPositive():
		return fmt.Errorf("stake must be positive, got %s", c.Stake)
	case !c.PayoutFraction.IsPositive() || c.PayoutFraction.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("payout fraction must be in (0, 1], got %s", c.PayoutFraction)
	}
	return nil
}

// Prize is floor(players x stake x payout fraction).
func (c Config) Prize(players int) decimal.Decimal {
	return c.Stake.
		Mul(decimal.NewFromInt(int64(players))).
		Mul(c.PayoutFraction).
		Floor()
}
