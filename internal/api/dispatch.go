package api

import "context"

// Handler handles one event
type Handler func(Event)

// Dispatcher routes events to handlers registered per event type. Handlers
// for one type run in registration order on the dispatcher's goroutine.
type Dispatcher struct {
	handlers map[EventType][]Handler
	fallback Handler
}

// NewDispatcher creates an empty dispatch table
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventType][]Handler)}
}

// On registers h for events of type t
func (d *Dispatcher) On(t EventType, h Handler) *Dispatcher {
	d.handlers[t] = append(d.handlers[t], h)
	return d
}

// Otherwise registers the handler for events with no specific handler
func (d *Dispatcher) Otherwise(h Handler) *Dispatcher {
	d.fallback = h
	return d
}

// Dispatch routes a single event
func (d *Dispatcher) Dispatch(ev Event) {
	hs := d.handlers[ev.Type]
	if len(hs) == 0 {
		if d.fallback != nil {
			d.fallback(ev)
		}
		return
	}
	for _, h := range hs {
		h(ev)
	}
}

// Run consumes events until the channel closes or ctx is done
func (d *Dispatcher) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.Dispatch(ev)
		}
	}
}
