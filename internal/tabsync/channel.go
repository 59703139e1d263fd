package tabsync

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Transport moves messages between tab endpoints. Implementations: the
// in-process broadcast bus (primary) and the storage-key fallback.
type Transport interface {
	// Send dispatches a message to every other endpoint on the transport.
	Send(Message) error
	// Subscribe registers fn for inbound messages. The returned cancel
	// deregisters it.
	Subscribe(fn func(Message)) (cancel func())
	Close() error
}

// Channel is one tab's sync endpoint. It owns the reentrancy guard that
// breaks feedback loops: while an inbound message is being applied, Send is
// a no-op, so a handler that mutates local state cannot rebroadcast the
// change it is applying.
type Channel struct {
	transport Transport // nil when no transport is available

	// applying is the reentrancy guard. Set for the duration of handler
	// dispatch, cleared via defer so a panicking handler cannot leave it
	// stuck.
	applying atomic.Bool

	mu       sync.RWMutex
	handlers []func(Message)
	cancel   func()
	closed   bool
}

// NewChannel builds a channel on the first usable transport. Pass nil for a
// transport that could not be constructed. With neither transport the
// channel degrades to single-tab operation: Send does nothing and no
// messages arrive. That is an accepted degradation, not an error.
func NewChannel(primary, fallback Transport) *Channel {
	c := &Channel{}
	switch {
	case primary != nil:
		c.transport = primary
	case fallback != nil:
		c.transport = fallback
	default:
		log.Printf("SYNC: no transport available, running single-tab")
		return c
	}
	c.cancel = c.transport.Subscribe(c.dispatch)
	return c
}

// Send broadcasts a message of the given kind to the other tabs. Inside an
// inbound-message handler it is a no-op.
func (c *Channel) Send(kind string, data any) {
	if c.applying.Load() {
		return
	}
	if c.transport == nil {
		return
	}
	if err := c.transport.Send(NewMessage(kind, data)); err != nil {
		log.Printf("SYNC: send %s failed: %v", kind, err)
	}
}

// OnMessage registers a handler for inbound messages. Handlers run with the
// reentrancy guard set.
func (c *Channel) OnMessage(fn func(Message)) {
	c.mu.Lock()
	c.handlers = append(c.handlers, fn)
	c.mu.Unlock()
}

func (c *Channel) dispatch(msg Message) {
	// Both transports get the staleness filter. The bus never replays old
	// messages, but the filter is cheap and the storage path needs it.
	if msg.Stale(time.Now()) {
		log.Printf("SYNC: dropping stale %s (%.1fs old)", msg.Kind,
			float64(time.Now().UnixMilli()-msg.Timestamp)/1000)
		return
	}

	c.mu.RLock()
	handlers := make([]func(Message), len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	c.applying.Store(true)
	defer c.applying.Store(false)
	for _, fn := range handlers {
		fn(msg)
	}
}

// Connected reports whether a transport is attached.
func (c *Channel) Connected() bool { return c.transport != nil }

// Close detaches the channel from its transport.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
}
