package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_OrderedDelivery(t *testing.T) {
	d := NewDispatcher(nil)

	var order []int
	d.On(KindPrice, func(Event) { order = append(order, 1) })
	d.On(KindPrice, func(Event) { order = append(order, 2) })
	d.On(KindPrice, func(Event) { order = append(order, 3) })

	d.Emit(Event{Kind: KindPrice})

	assert.Equal(t, []int{1, 2, 3}, order, "handlers should run in registration order")
}

func TestDispatcher_OnlyMatchingKind(t *testing.T) {
	d := NewDispatcher(nil)

	priceCalls := 0
	tradeCalls := 0
	d.On(KindPrice, func(Event) { priceCalls++ })
	d.On(KindTrade, func(Event) { tradeCalls++ })

	d.Emit(Event{Kind: KindPrice})
	d.Emit(Event{Kind: KindPrice})

	assert.Equal(t, 2, priceCalls)
	assert.Equal(t, 0, tradeCalls)
}

func TestDispatcher_Off(t *testing.T) {
	d := NewDispatcher(nil)

	calls := 0
	reg := d.On(KindConnected, func(Event) { calls++ })

	d.Emit(Event{Kind: KindConnected})
	d.Off(reg)
	d.Emit(Event{Kind: KindConnected})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, d.HandlerCount(KindConnected))

	// Removing twice is harmless.
	d.Off(reg)
}

func TestDispatcher_PanicDoesNotStopLaterHandlers(t *testing.T) {
	d := NewDispatcher(nil)

	var reached bool
	d.On(KindError, func(Event) { panic("boom") })
	d.On(KindError, func(Event) { reached = true })

	assert.NotPanics(t, func() {
		d.Emit(Event{Kind: KindError})
	})
	assert.True(t, reached, "handler after the panicking one should still run")

	// Dispatcher state stays usable after a panic.
	d.Emit(Event{Kind: KindError})
	assert.Equal(t, 2, d.HandlerCount(KindError))
}

func TestDispatcher_EmitSetsTimestamp(t *testing.T) {
	d := NewDispatcher(nil)

	var got Event
	d.On(KindTrade, func(evt Event) { got = evt })
	d.Emit(Event{Kind: KindTrade})

	assert.False(t, got.At.IsZero(), "Emit should stamp events with no At set")
}

func TestDispatcher_OffMiddleHandlerKeepsOrder(t *testing.T) {
	d := NewDispatcher(nil)

	var order []string
	d.On(KindPrice, func(Event) { order = append(order, "a") })
	regB := d.On(KindPrice, func(Event) { order = append(order, "b") })
	d.On(KindPrice, func(Event) { order = append(order, "c") })

	d.Off(regB)
	d.Emit(Event{Kind: KindPrice})

	assert.Equal(t, []string{"a", "c"}, order)
}
