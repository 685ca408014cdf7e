package rtcoordinator

import (
	"sync"
	"time"
)

// EventKind enumerates notifications the coordinator emits on top of what
// the individual TPCs and the bridge channel already expose, per spec.md
// §4.5.
type EventKind int

const (
	// EventLastNChanged fires whenever set_last_n actually changes the
	// cached value.
	EventLastNChanged EventKind = iota
	// EventForwardedSourcesChanged carries the entering/leaving diff
	// computed against the previously cached forwarded-sources set.
	EventForwardedSourcesChanged
	// EventDataChannelClosed is the one-shot retries-exhausted
	// notification forwarded from the owned bridge channel.
	EventDataChannelClosed
)

// Event is the single dispatched event type for the coordinator.
type Event struct {
	Kind EventKind

	LastN int

	Leaving  []string
	Entering []string
	At       time.Time

	Code   int
	Reason string
}

// bus is the same subscribe/unsubscribe fan-out used by package tpc and
// package bridge, kept as a private copy per package so each leaf stays
// free of a shared "eventbus" dependency.
type bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func newBus() *bus {
	return &bus{subs: map[int]chan Event{}}
}

func (b *bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

func (b *bus) emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
