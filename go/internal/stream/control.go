package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Controller is what operator commands act on.
type Controller interface {
	Announce(ctx context.Context, message string)
	NotifyBalance(ctx context.Context, accountID string)
}

var errBadCommand = errors.New("bad control command")

type announceCommand struct {
	Message string `json:"message"`
}

type balanceCommand struct {
	AccountID string `json:"accountId"`
}

// ControlConsumer applies operator commands published to the control stream:
// <prefix>.announce {"message"} and <prefix>.balance {"accountId"}.
type ControlConsumer struct {
	controller Controller
	consumer   jetstream.Consumer
	config     Config
}

// NewControlConsumer ensures the control stream and a durable consumer on it.
func NewControlConsumer(ctx context.Context, js jetstream.JetStream, controller Controller, cfg Config) (*ControlConsumer, error) {
	err := ensure(ctx, js, jetstream.StreamConfig{
		Name:        cfg.ControlStream,
		Description: "Bingo operator commands",
		Subjects:    []string{cfg.ControlPrefix + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure control stream: %w", err)
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.ControlStream, jetstream.ConsumerConfig{
		Name:          cfg.ConsumerName,
		Durable:       cfg.ConsumerName,
		Description:   "Bingo room operator commands",
		FilterSubject: cfg.ControlPrefix + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    cfg.MaxDeliver,
		AckWait:       cfg.AckWait,
		MaxAckPending: cfg.MaxAckPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", cfg.ConsumerName).
		Str("stream", cfg.ControlStream).
		Msg("control consumer ready")

	return &ControlConsumer{controller: controller, consumer: consumer, config: cfg}, nil
}

// Start consumes commands until ctx is cancelled.
func (c *ControlConsumer) Start(ctx context.Context) error {
	messageCh := make(chan jetstream.Msg, 16)
	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("control consumer shutting down")
			return nil
		case msg := <-messageCh:
			err := c.processMessage(ctx, msg.Subject(), msg.Data())
			switch {
			case errors.Is(err, errBadCommand):
				// redelivery cannot fix it
				log.Warn().Err(err).Str("subject", msg.Subject()).Msg("discarding control command")
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to TERM message")
				}
			case err != nil:
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process control command")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
			default:
				if ackErr := msg.Ack(); ackErr != nil {
					log.Error().Err(ackErr).Msg("failed to ACK message")
				}
			}
		}
	}
}

func (c *ControlConsumer) processMessage(ctx context.Context, subject string, data []byte) error {
	command := strings.TrimPrefix(subject, c.config.ControlPrefix+".")
	switch command {
	case "announce":
		var cmd announceCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return fmt.Errorf("%w: %v", errBadCommand, err)
		}
		msg := strings.TrimSpace(cmd.Message)
		if msg == "" {
			return fmt.Errorf("%w: empty announcement", errBadCommand)
		}
		c.controller.Announce(ctx, msg)
		log.Info().Str("message", msg).Msg("announcement relayed")

	case "balance":
		var cmd balanceCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return fmt.Errorf("%w: %v", errBadCommand, err)
		}
		if cmd.AccountID == "" {
			return fmt.Errorf("%w: account id is required", errBadCommand)
		}
		c.controller.NotifyBalance(ctx, cmd.AccountID)

	default:
		return fmt.Errorf("%w: unknown subject %s", errBadCommand, subject)
	}
	return nil
}
