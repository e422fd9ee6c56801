package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an event category.
type Kind string

const (
	KindConnected       Kind = "connected"
	KindDisconnected    Kind = "disconnected"
	KindError           Kind = "error"
	KindPrice           Kind = "price"
	KindStalePrice      Kind = "stale_price"
	KindSignificantMove Kind = "significant_move"
	KindOrderbook       Kind = "orderbook"
	KindTrade           Kind = "trade"
	KindUnknownMessage  Kind = "unknown_message"
	KindParseError      Kind = "parse_error"
)

// Event is a single occurrence delivered to handlers.
// Data holds the kind-specific payload: model.PriceUpdate for KindPrice,
// model.StaleSignal for KindStalePrice, an error for KindError, and so on.
type Event struct {
	Kind Kind
	Data any
	At   time.Time
}

// Handler receives dispatched events.
type Handler func(Event)

// Registration identifies a registered handler and is the argument to Off.
type Registration struct {
	kind Kind
	id   uuid.UUID
}

// Kind returns the event kind the registration is bound to.
func (r Registration) Kind() Kind { return r.kind }

type handlerEntry struct {
	id uuid.UUID
	fn Handler
}

// Dispatcher fans events out to registered handlers, keyed by kind.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[Kind][]handlerEntry
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[Kind][]handlerEntry),
	}
}

// On registers a handler for the given kind and returns a handle usable
// with Off. Handlers for a kind run in registration order.
func (d *Dispatcher) On(kind Kind, fn Handler) Registration {
	id := uuid.New()

	d.mu.Lock()
	d.handlers[kind] = append(d.handlers[kind], handlerEntry{id: id, fn: fn})
	d.mu.Unlock()

	return Registration{kind: kind, id: id}
}

// Off removes a previously registered handler. Unknown handles are ignored.
func (d *Dispatcher) Off(reg Registration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.handlers[reg.kind]
	for i, e := range entries {
		if e.id == reg.id {
			d.handlers[reg.kind] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Emit delivers an event synchronously to every handler registered for its
// kind. Delivery order is registration order. A handler panic is recovered
// so the remaining handlers still run.
func (d *Dispatcher) Emit(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	d.mu.Lock()
	entries := d.handlers[evt.Kind]
	snapshot := make([]handlerEntry, len(entries))
	copy(snapshot, entries)
	d.mu.Unlock()

	for _, e := range snapshot {
		d.safeCall(e.fn, evt)
	}
}

// HandlerCount returns the number of handlers registered for a kind.
func (d *Dispatcher) HandlerCount(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[kind])
}

func (d *Dispatcher) safeCall(fn Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				"kind", evt.Kind,
				"panic", r,
			)
		}
	}()
	fn(evt)
}
