package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bingo/go/internal/card"
	"github.com/mcdev12/bingo/go/internal/dbconfig"
	"github.com/mcdev12/bingo/go/internal/gateway"
	"github.com/mcdev12/bingo/go/internal/history"
	"github.com/mcdev12/bingo/go/internal/room"
	"github.com/mcdev12/bingo/go/internal/stream"
	"github.com/mcdev12/bingo/go/internal/wallet"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Services holds everything main starts and stops.
type Services struct {
	Room      *room.Room
	Gateway   *gateway.Service
	Wallet    *wallet.Service
	Listener  *wallet.Listener
	History   *history.Recorder
	Publisher *stream.Publisher
	Control   *stream.ControlConsumer

	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupCatalog(cfg *Config) (*card.Catalog, error) {
	if cfg.CardsFile != "" {
		return card.LoadFile(cfg.CardsFile)
	}
	return card.Generate(cfg.CardCount, cfg.CardSeed)
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Storage → Wallet app → Room ← Gateway, Stream, History
	s := &Services{}
	clock := clockwork.NewRealClock()

	catalog, err := setupCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	log.Info().Int("cards", catalog.Len()).Msg("card catalog ready")

	// Wallet
	var (
		walletRepo wallet.WalletRepository
		pool       *pgxpool.Pool
	)
	dbCfg := dbconfig.NewConfigFromEnv()
	if cfg.Ledger == "postgres" {
		pool, err = setupPool(ctx, dbCfg, cfg.Migrate)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)

		database, err := setupDatabase(ctx, dbCfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { database.Close() })
		walletRepo = wallet.NewRepository(database)
	} else {
		walletRepo = wallet.NewMemoryRepository()
		log.Warn().Msg("using in-memory ledger, balances are lost on restart")
	}
	walletApp := wallet.NewApp(walletRepo, clock, cfg.Withdrawal)
	for account, amount := range cfg.DevAccounts {
		if _, err := walletApp.Deposit(ctx, account, amount, "dev account"); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to seed %s: %w", account, err)
		}
	}
	s.Wallet = wallet.NewService(walletApp)

	// History
	var hist gateway.HistoryProvider
	opts := []room.Option{room.WithClock(clock)}
	if pool != nil {
		s.History = history.NewRecorder(pool, 256)
		hist = s.History
		opts = append(opts, room.WithArchive(s.History))
	}

	// Gateway, optionally teed into JetStream
	s.Gateway = gateway.NewService(gateway.DefaultConfig(), catalog, hist)
	var out room.Broadcaster = s.Gateway.Broadcaster()
	var js jetstreamConn
	if cfg.NatsURL != "" {
		js, err = connectStream(ctx, cfg.Stream)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, js.nc.Close)
		s.Publisher = stream.NewPublisher(js.js, cfg.Stream)
		out = stream.NewTee(out, s.Publisher)
	}

	// Room
	s.Room, err = room.New(cfg.Room, catalog, walletApp, out, opts...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	s.Gateway.Attach(s.Room)

	if js.js != nil {
		s.Control, err = stream.NewControlConsumer(ctx, js.js, s.Room, cfg.Stream)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	if cfg.Ledger == "postgres" {
		lcfg := wallet.DefaultListenerConfig()
		lcfg.DatabaseURL = dbCfg.DSN()
		s.Listener, err = wallet.NewListener(s.Room, lcfg)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

type jetstreamConn struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func connectStream(ctx context.Context, cfg stream.Config) (jetstreamConn, error) {
	nc, js, err := stream.Connect(cfg)
	if err != nil {
		return jetstreamConn{}, err
	}
	if err := stream.EnsureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return jetstreamConn{}, err
	}
	return jetstreamConn{nc: nc, js: js}, nil
}
