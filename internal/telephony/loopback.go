package telephony

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Loopback is an in-memory Client. It answers the Client interface without
// a provider: every verb updates a local leg and emits the event the real
// provider would. The demo build runs on it, and tests drive incoming
// traffic through Ring and RemoteHangUp.
type Loopback struct {
	mu   sync.Mutex
	legs map[string]*LegEvent

	listenerMu sync.RWMutex
	listeners  map[chan *LegEvent]struct{}

	closed bool
}

func NewLoopback() *Loopback {
	return &Loopback{
		legs:      make(map[string]*LegEvent),
		listeners: make(map[chan *LegEvent]struct{}),
	}
}

// Ring simulates an incoming call and returns its session id.
func (l *Loopback) Ring(name, number string) string {
	id := uuid.NewString()
	l.set(&LegEvent{
		SessionID:    id,
		State:        LegRinging,
		Direction:    Inbound,
		RemoteName:   name,
		RemoteNumber: number,
	})
	return id
}

// RemoteHangUp simulates the far end ending the call.
func (l *Loopback) RemoteHangUp(sessionID string) {
	l.update(sessionID, func(e *LegEvent) { e.State = LegEnded })
}

// RemoteAnswer simulates the far end picking up an outbound call.
func (l *Loopback) RemoteAnswer(sessionID string) {
	l.update(sessionID, func(e *LegEvent) { e.State = LegActive })
}

func (l *Loopback) PlaceCall(ctx context.Context, number string) (string, error) {
	id := uuid.NewString()
	l.set(&LegEvent{
		SessionID:    id,
		State:        LegRinging,
		Direction:    Outbound,
		RemoteNumber: number,
	})
	return id, nil
}

func (l *Loopback) Answer(sessionID string) error {
	return l.update(sessionID, func(e *LegEvent) { e.State = LegActive })
}

func (l *Loopback) HangUp(sessionID string) error {
	return l.update(sessionID, func(e *LegEvent) { e.State = LegEnded })
}

func (l *Loopback) Mute(sessionID string) error {
	return l.update(sessionID, func(e *LegEvent) { e.Muted = true })
}

func (l *Loopback) Unmute(sessionID string) error {
	return l.update(sessionID, func(e *LegEvent) { e.Muted = false })
}

func (l *Loopback) Hold(sessionID string) error {
	return l.update(sessionID, func(e *LegEvent) { e.Held = true })
}

func (l *Loopback) Unhold(sessionID string) error {
	return l.update(sessionID, func(e *LegEvent) { e.Held = false })
}

func (l *Loopback) SendTone(sessionID, tone string) error {
	// Tones have no state to reflect; just check the leg exists.
	return l.update(sessionID, func(e *LegEvent) {})
}

func (l *Loopback) StartRecording(sessionID string) error {
	return l.update(sessionID, func(e *LegEvent) { e.Recording = true })
}

func (l *Loopback) StopRecording(sessionID string) error {
	return l.update(sessionID, func(e *LegEvent) { e.Recording = false })
}

func (l *Loopback) Subscribe() (ch chan *LegEvent, cancel func()) {
	ch = make(chan *LegEvent, 64)

	l.listenerMu.Lock()
	l.listeners[ch] = struct{}{}
	l.listenerMu.Unlock()

	cancel = func() {
		l.listenerMu.Lock()
		if _, ok := l.listeners[ch]; ok {
			delete(l.listeners, ch)
			close(ch)
		}
		l.listenerMu.Unlock()
	}
	return ch, cancel
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.legs = make(map[string]*LegEvent)
	l.mu.Unlock()
	return nil
}

func (l *Loopback) set(e *LegEvent) {
	l.mu.Lock()
	l.legs[e.SessionID] = e
	cp := *e
	l.mu.Unlock()
	l.emit(&cp)
}

func (l *Loopback) update(sessionID string, fn func(*LegEvent)) error {
	l.mu.Lock()
	e, ok := l.legs[sessionID]
	if !ok {
		l.mu.Unlock()
		return ErrNoMediaLeg
	}
	fn(e)
	if e.State == LegEnded {
		delete(l.legs, sessionID)
	}
	cp := *e
	l.mu.Unlock()
	l.emit(&cp)
	return nil
}

func (l *Loopback) emit(e *LegEvent) {
	l.listenerMu.RLock()
	for ch := range l.listeners {
		select {
		case ch <- e:
		default:
		}
	}
	l.listenerMu.RUnlock()
}
