package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// BalanceNotifier is told when an account's balance changed outside the room,
// e.g. after a deposit was approved.
type BalanceNotifier interface {
	NotifyBalance(ctx context.Context, accountID string)
}

type ListenerConfig struct {
	DatabaseURL   string // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string // Channel name to LISTEN on
	PingInterval  time.Duration
	MinReconnect  time.Duration
	MaxReconnect  time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel: "wallet_events",
		PingInterval:  90 * time.Second,
		MinReconnect:  10 * time.Second,
		MaxReconnect:  time.Minute,
	}
}

// Listener relays Postgres notifications whose payload is an account id.
type Listener struct {
	listener *pq.Listener
	notifier BalanceNotifier
	cfg      ListenerConfig
}

func NewListener(notifier BalanceNotifier, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnect,
		cfg.MaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("wallet listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for wallet notifications")

	return &Listener{
		listener: l,
		notifier: notifier,
		cfg:      cfg,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("wallet listener shutting down")
			return l.listener.Close()
		case note := <-l.listener.Notify:
			if note == nil {
				// connection was re-established; missed notifications are not replayed
				continue
			}
			l.handleNotification(ctx, note.Extra)
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping wallet listener")
			}
		}
	}
}

func (l *Listener) handleNotification(ctx context.Context, extra string) {
	accountID := strings.TrimSpace(extra)
	if accountID == "" {
		log.Warn().Msg("wallet notification without account id")
		return
	}
	log.Debug().Str("account_id", accountID).Msg("wallet balance changed")
	l.notifier.NotifyBalance(ctx, accountID)
}
