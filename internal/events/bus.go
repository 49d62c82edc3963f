// Package events provides the typed notification channel between the state
// container and its subscribers. Event kinds form a closed enum; listener
// failures are caught and logged, never propagated to the mutating caller.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagdeck/internal/flags"
)

// Kind identifies what changed.
type Kind string

const (
	KindFlagAdded          Kind = "flag-added"
	KindFlagUpdated        Kind = "flag-updated"
	KindFlagRemoved        Kind = "flag-removed"
	KindFlagsReplaced      Kind = "flags-replaced"
	KindOverrideSet        Kind = "override-set"
	KindOverrideRemoved    Kind = "override-removed"
	KindOverridesCleared   Kind = "overrides-cleared"
	KindSegmentsUpdated    Kind = "segments-updated"
	KindExperimentsUpdated Kind = "experiments-updated"
	KindContextUpdated     Kind = "context-updated"
	KindFlagEvaluated      Kind = "flag-evaluated"
)

// Event is the payload delivered to listeners.
type Event struct {
	Kind       Kind              `json:"kind"`
	FlagID     string            `json:"flagId,omitempty"`
	Evaluation *flags.Evaluation `json:"evaluation,omitempty"`
	At         time.Time         `json:"at"`
}

// Listener receives events synchronously, in emission order.
type Listener func(Event)

// Bus dispatches events to registered listeners.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]Listener
	log  zerolog.Logger
}

// NewBus creates a bus that logs listener failures to the given logger.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{subs: make(map[int]Listener), log: log}
}

// Subscribe registers a listener and returns an unsubscribe func.
func (b *Bus) Subscribe(fn Listener) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Emit delivers the event to every listener. A panicking listener is
// recovered and logged; remaining listeners still run.
func (b *Bus) Emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.Lock()
	listeners := make([]Listener, 0, len(b.subs))
	for _, fn := range b.subs {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		b.deliver(fn, ev)
	}
}

func (b *Bus) deliver(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn().
				Str("event", string(ev.Kind)).
				Str("flagId", ev.FlagID).
				Any("panic", r).
				Msg("event listener panicked")
		}
	}()
	fn(ev)
}
