package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mcdev12/bingo/go/internal/room"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// msgPublisher is the part of jetstream.JetStream the publisher uses.
type msgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher mirrors round events to JetStream. Events are queued by the room
// and published from a single worker so their order on the stream matches
// the room's.
type Publisher struct {
	js     msgPublisher
	config Config
	queue  chan *room.Event
}

func NewPublisher(js msgPublisher, cfg Config) *Publisher {
	return &Publisher{
		js:     js,
		config: cfg,
		queue:  make(chan *room.Event, cfg.QueueSize),
	}
}

// EnsureStream creates the event stream, or updates it when its limits
// changed.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg Config) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Bingo round events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}
	return ensure(ctx, js, sc)
}

func ensure(ctx context.Context, js jetstream.JetStream, sc jetstream.StreamConfig) error {
	stream, err := js.Stream(ctx, sc.Name)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err = js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream %s: %w", sc.Name, err)
		}
		log.Info().Str("stream", sc.Name).Msg("created JetStream stream")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get stream %s: %w", sc.Name, err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream %s: %w", sc.Name, err)
		}
		log.Info().Str("stream", sc.Name).Msg("updated JetStream stream")
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}

// Enqueue hands an event to the worker. It never blocks the room: when the
// queue is full the event is dropped from the stream.
func (p *Publisher) Enqueue(ev *room.Event) {
	select {
	case p.queue <- ev:
	default:
		log.Warn().
			Str("event_id", ev.ID).
			Str("event_type", string(ev.Type)).
			Msg("event stream queue full, dropping event")
	}
}

// Run publishes queued events until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	log.Info().
		Str("stream", p.config.StreamName).
		Str("subject_prefix", p.config.SubjectPrefix).
		Msg("event publisher started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Int("pending", len(p.queue)).Msg("event publisher stopped")
			return nil
		case ev := <-p.queue:
			if err := p.publishWithRetry(ctx, ev); err != nil {
				log.Error().
					Err(err).
					Str("event_id", ev.ID).
					Str("event_type", string(ev.Type)).
					Msg("giving up on event")
			}
		}
	}
}

func (p *Publisher) publishWithRetry(ctx context.Context, ev *room.Event) error {
	var err error
	for attempt := 1; attempt <= p.config.MaxRetries+1; attempt++ {
		if err = p.publish(ctx, ev); err == nil {
			return nil
		}
		log.Warn().
			Err(err).
			Str("event_id", ev.ID).
			Int("attempt", attempt).
			Msg("publish failed")

		t := time.NewTimer(p.config.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, ev *room.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", p.config.SubjectPrefix, ev.Type)

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(ev.Type)},
			"Event-ID":   []string{ev.ID},
			"Round":      []string{strconv.FormatUint(ev.Round, 10)},
		},
	},
		jetstream.WithMsgID(ev.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", ev.ID).
		Uint64("sequence", ack.Sequence).
		Msg("published to JetStream")
	return nil
}
