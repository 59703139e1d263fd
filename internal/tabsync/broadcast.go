package tabsync

import (
	"errors"
	"sync"
)

// ChannelName scopes the broadcast bus; every tab of the application joins
// the same name.
const ChannelName = "petrel-call-surface"

// Bus is the primary transport: an in-process broadcast primitive. Messages
// are plain structured values, and an endpoint never receives its own sends,
// so no staleness filtering is strictly required on this path.
type Bus struct {
	name string

	mu        sync.RWMutex
	endpoints map[*BusEndpoint]struct{}
}

// NewBus creates a broadcast bus with the given channel name.
func NewBus(name string) *Bus {
	return &Bus{
		name:      name,
		endpoints: make(map[*BusEndpoint]struct{}),
	}
}

// Name returns the channel name the bus was created with.
func (b *Bus) Name() string { return b.name }

// Endpoint joins the bus. Each tab holds exactly one endpoint.
func (b *Bus) Endpoint() *BusEndpoint {
	e := &BusEndpoint{bus: b}
	b.mu.Lock()
	b.endpoints[e] = struct{}{}
	b.mu.Unlock()
	return e
}

// publish delivers msg to every endpoint except from.
func (b *Bus) publish(msg Message, from *BusEndpoint) {
	b.mu.RLock()
	targets := make([]*BusEndpoint, 0, len(b.endpoints))
	for e := range b.endpoints {
		if e != from {
			targets = append(targets, e)
		}
	}
	b.mu.RUnlock()

	for _, e := range targets {
		e.deliver(msg)
	}
}

func (b *Bus) remove(e *BusEndpoint) {
	b.mu.Lock()
	delete(b.endpoints, e)
	b.mu.Unlock()
}

var errEndpointClosed = errors.New("bus endpoint closed")

// BusEndpoint is one tab's connection to the bus. It implements Transport.
type BusEndpoint struct {
	bus *Bus

	mu     sync.RWMutex
	fns    []func(Message)
	closed bool
}

func (e *BusEndpoint) Send(msg Message) error {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return errEndpointClosed
	}
	e.bus.publish(msg, e)
	return nil
}

func (e *BusEndpoint) Subscribe(fn func(Message)) (cancel func()) {
	e.mu.Lock()
	e.fns = append(e.fns, fn)
	idx := len(e.fns) - 1
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			e.fns[idx] = nil
			e.mu.Unlock()
		})
	}
}

func (e *BusEndpoint) deliver(msg Message) {
	e.mu.RLock()
	fns := make([]func(Message), len(e.fns))
	copy(fns, e.fns)
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return
	}
	for _, fn := range fns {
		if fn != nil {
			fn(msg)
		}
	}
}

func (e *BusEndpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.bus.remove(e)
	return nil
}
