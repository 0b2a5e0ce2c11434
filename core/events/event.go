package events

import "limitlesswork/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Typed events can render themselves into the generic representation sent to
// subscribers and the audit log.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

type generic struct {
	evt *types.Event
}

func (g generic) EventType() string {
	if g.evt == nil {
		return ""
	}
	return g.evt.Type
}

func (g generic) Event() *types.Event { return g.evt }

// Wrap adapts a generic event to the Typed interface.
func Wrap(evt *types.Event) Typed { return generic{evt: evt} }

// Render returns the generic form of e, or nil when e cannot render itself.
func Render(e Event) *types.Event {
	if typed, ok := e.(Typed); ok {
		return typed.Event()
	}
	return nil
}

// Multi fans a single event out to several emitters in order.
type Multi []Emitter

// Emit implements the Emitter interface.
func (m Multi) Emit(e Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(e)
		}
	}
}
