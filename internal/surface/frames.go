package surface

import (
	"sync"
	"time"
)

// Frames schedules at-most-one pending callback per frame. Mid-gesture
// pointer moves are coalesced through it so visual updates happen once per
// frame no matter how fast events arrive.
type Frames interface {
	// Request schedules fn for the next frame. If a callback is already
	// pending, fn replaces it; only the latest runs.
	Request(fn func())
	Stop()
}

const frameInterval = 16 * time.Millisecond

// TickerFrames drives callbacks off a wall-clock ticker at roughly display
// refresh rate.
type TickerFrames struct {
	mu      sync.Mutex
	pending func()
	ticker  *time.Ticker
	done    chan struct{}
	once    sync.Once
}

func NewTickerFrames() *TickerFrames {
	f := &TickerFrames{
		ticker: time.NewTicker(frameInterval),
		done:   make(chan struct{}),
	}
	go f.loop()
	return f
}

func (f *TickerFrames) loop() {
	for {
		select {
		case <-f.done:
			return
		case <-f.ticker.C:
			f.mu.Lock()
			fn := f.pending
			f.pending = nil
			f.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	}
}

func (f *TickerFrames) Request(fn func()) {
	f.mu.Lock()
	f.pending = fn
	f.mu.Unlock()
}

func (f *TickerFrames) Stop() {
	f.once.Do(func() {
		f.ticker.Stop()
		close(f.done)
	})
}

// ManualFrames runs nothing until Pump is called. Tests use it to step
// gestures deterministically.
type ManualFrames struct {
	mu      sync.Mutex
	pending func()
}

func NewManualFrames() *ManualFrames { return &ManualFrames{} }

func (f *ManualFrames) Request(fn func()) {
	f.mu.Lock()
	f.pending = fn
	f.mu.Unlock()
}

// Pump runs the pending callback, if any, and reports whether one ran.
func (f *ManualFrames) Pump() bool {
	f.mu.Lock()
	fn := f.pending
	f.pending = nil
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

func (f *ManualFrames) Stop() {}
