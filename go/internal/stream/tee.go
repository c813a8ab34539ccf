package stream

import "github.com/mcdev12/bingo/go/internal/room"

// mirrored lists the broadcast events that leave the process.
var mirrored = map[room.EventType]bool{
	room.EventRoundStarted:    true,
	room.EventNumberDrawn:     true,
	room.EventWinnerAnnounced: true,
	room.EventRoundEnded:      true,
	room.EventRoundReset:      true,
	room.EventRoundCancelled:  true,
	room.EventStakeRefunded:   true,
}

// Sink accepts events without blocking.
type Sink interface {
	Enqueue(ev *room.Event)
}

// Tee is a room.Broadcaster that delivers to the connections and copies
// round lifecycle events to a Sink.
type Tee struct {
	room.Broadcaster
	sink Sink
}

func NewTee(out room.Broadcaster, sink Sink) *Tee {
	return &Tee{Broadcaster: out, sink: sink}
}

func (t *Tee) Broadcast(ev *room.Event) {
	t.Broadcaster.Broadcast(ev)
	if mirrored[ev.Type] {
		t.sink.Enqueue(ev)
	}
}
