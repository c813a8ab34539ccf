package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/bingo/go/internal/room"
	"github.com/mcdev12/bingo/go/internal/stream"
	"github.com/mcdev12/bingo/go/internal/wallet"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration: environment first, room rules from an
// optional YAML file.
type Config struct {
	Port     string
	LogLevel string

	// Ledger is "postgres" or "memory". The memory ledger is for local play
	// and starts with DevAccounts.
	Ledger      string
	DevAccounts map[string]decimal.Decimal
	Migrate     bool

	Room       room.Config
	Withdrawal wallet.WithdrawalPolicy

	CardsFile string
	CardCount int
	CardSeed  uint64

	// empty disables the event stream
	NatsURL string
	Stream  stream.Config
}

type fileConfig struct {
	Room struct {
		Countdown        int           `yaml:"countdown"`
		SelectionTick    time.Duration `yaml:"selection_tick"`
		DrawInterval     time.Duration `yaml:"draw_interval"`
		ClaimVerifyDelay time.Duration `yaml:"claim_verify_delay"`
		ResetDelay       time.Duration `yaml:"reset_delay"`
		MinPlayers       int           `yaml:"min_players"`
		Stake            string        `yaml:"stake"`
		PayoutFraction   string        `yaml:"payout_fraction"`
	} `yaml:"room"`
	Withdrawal struct {
		MinTotalBalance      string `yaml:"min_total_balance"`
		MinQualifyingDeposit string `yaml:"min_qualifying_deposit"`
		MinWins              int    `yaml:"min_wins"`
	} `yaml:"withdrawal"`
	Cards struct {
		File  string `yaml:"file"`
		Count int    `yaml:"count"`
		Seed  uint64 `yaml:"seed"`
	} `yaml:"cards"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Ledger:     getEnv("LEDGER", "postgres"),
		Migrate:    getEnv("DB_MIGRATE", "false") == "true",
		Room:       room.DefaultConfig(),
		Withdrawal: wallet.DefaultWithdrawalPolicy(),
		CardCount:  100,
		CardSeed:   1,
		NatsURL:    os.Getenv("NATS_URL"),
		Stream:     stream.DefaultConfig(),
	}
	if cfg.Ledger != "postgres" && cfg.Ledger != "memory" {
		return nil, fmt.Errorf("LEDGER must be postgres or memory, got %q", cfg.Ledger)
	}

	if path := os.Getenv("ROOM_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.applyFile(data); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.CardsFile = getEnv("CARDS_FILE", cfg.CardsFile)
	cfg.CardCount = getEnvAsInt("CARD_COUNT", cfg.CardCount)
	if v := os.Getenv("CARD_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CARD_SEED: %w", err)
		}
		cfg.CardSeed = seed
	}
	if cfg.NatsURL != "" {
		cfg.Stream.URL = cfg.NatsURL
	}

	accounts, err := parseDevAccounts(os.Getenv("DEV_ACCOUNTS"))
	if err != nil {
		return nil, err
	}
	cfg.DevAccounts = accounts

	if err := cfg.Room.Validate(); err != nil {
		return nil, fmt.Errorf("invalid room rules: %w", err)
	}
	return cfg, nil
}

// applyFile overlays the non-zero values of a YAML config.
func (c *Config) applyFile(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	r := &c.Room
	if fc.Room.Countdown != 0 {
		r.Countdown = fc.Room.Countdown
	}
	for _, d := range []struct {
		dst *time.Duration
		src time.Duration
	}{
		{&r.SelectionTick, fc.Room.SelectionTick},
		{&r.DrawInterval, fc.Room.DrawInterval},
		{&r.ClaimVerifyDelay, fc.Room.ClaimVerifyDelay},
		{&r.ResetDelay, fc.Room.ResetDelay},
	} {
		if d.src != 0 {
			*d.dst = d.src
		}
	}
	if fc.Room.MinPlayers != 0 {
		r.MinPlayers = fc.Room.MinPlayers
	}

	w := &c.Withdrawal
	if fc.Withdrawal.MinWins != 0 {
		w.MinWins = fc.Withdrawal.MinWins
	}
	for _, m := range []struct {
		name string
		dst  *decimal.Decimal
		src  string
	}{
		{"room.stake", &r.Stake, fc.Room.Stake},
		{"room.payout_fraction", &r.PayoutFraction, fc.Room.PayoutFraction},
		{"withdrawal.min_total_balance", &w.MinTotalBalance, fc.Withdrawal.MinTotalBalance},
		{"withdrawal.min_qualifying_deposit", &w.MinQualifyingDeposit, fc.Withdrawal.MinQualifyingDeposit},
	} {
		if m.src == "" {
			continue
		}
		v, err := decimal.NewFromString(m.src)
		if err != nil {
			return fmt.Errorf("%s: %w", m.name, err)
		}
		*m.dst = v
	}

	if fc.Cards.File != "" {
		c.CardsFile = fc.Cards.File
	}
	if fc.Cards.Count != 0 {
		c.CardCount = fc.Cards.Count
	}
	if fc.Cards.Seed != 0 {
		c.CardSeed = fc.Cards.Seed
	}
	return nil
}

// parseDevAccounts reads "alice:100,bob:50".
func parseDevAccounts(s string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, amount, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid DEV_ACCOUNTS entry %q", part)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil || !v.IsPositive() {
			return nil, fmt.Errorf("invalid DEV_ACCOUNTS balance for %s", id)
		}
		out[strings.TrimSpace(id)] = v
	}
	return out, nil
}
