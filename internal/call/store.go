package call

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hvermaas/petrel/internal/tabsync"
	"github.com/hvermaas/petrel/internal/telephony"
)

// Store holds the one call session a tab renders. Provider leg events come
// in through ApplyLeg, which updates the session and announces every
// transition on the sync channel. Mirror tabs receive those announcements
// through ApplySync, which updates the session without ever touching the
// provider. Both paths are idempotent, so replays and echoes settle on the
// same state.
type Store struct {
	client telephony.Client
	sync   *tabsync.Channel

	mu      sync.RWMutex
	session Session
	// owner is set while this tab holds the media leg. Only the owner may
	// issue provider verbs.
	owner bool
	// pendingName carries the counterparty name chosen at dial time until
	// leg events for the session start arriving.
	pendingName string

	listenerMu sync.RWMutex
	listeners  map[chan *Session]struct{}
}

func NewStore(client telephony.Client, ch *tabsync.Channel) *Store {
	return &Store{
		client:    client,
		sync:      ch,
		listeners: make(map[chan *Session]struct{}),
	}
}

// Current returns a snapshot of the session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Owner reports whether this tab holds the media leg.
func (s *Store) Owner() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Subscribe returns a channel that receives a session snapshot after every
// change.
func (s *Store) Subscribe() (ch chan *Session, cancel func()) {
	ch = make(chan *Session, 16)

	s.listenerMu.Lock()
	s.listeners[ch] = struct{}{}
	s.listenerMu.Unlock()

	cancel = func() {
		s.listenerMu.Lock()
		if _, ok := s.listeners[ch]; ok {
			delete(s.listeners, ch)
			close(ch)
		}
		s.listenerMu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify(snap Session) {
	s.listenerMu.RLock()
	for ch := range s.listeners {
		cp := snap
		select {
		case ch <- &cp:
		default:
		}
	}
	s.listenerMu.RUnlock()
}

// ApplyLeg folds a provider event into the session and announces the
// resulting transitions to the other tabs. Events for a different session
// are ignored while a call is in progress; the surface shows one call at a
// time.
func (s *Store) ApplyLeg(evt *telephony.LegEvent) {
	s.mu.Lock()
	if !s.session.Idle() && s.session.ID != evt.SessionID {
		s.mu.Unlock()
		log.Printf("CALL: ignoring leg event for %s during session %s", evt.SessionID, s.session.ID)
		return
	}

	prev := s.session
	status := MapLeg(evt)

	s.owner = true
	s.session.ID = evt.SessionID
	s.session.Status = status
	s.session.Flags = Flags{Muted: evt.Muted, OnHold: evt.Held, Recording: evt.Recording}
	if evt.RemoteName != "" {
		s.session.Counterparty.Name = evt.RemoteName
	} else if s.pendingName != "" {
		s.session.Counterparty.Name = s.pendingName
	}
	if evt.RemoteNumber != "" {
		s.session.Counterparty.Address = evt.RemoteNumber
	}
	if status == StatusActive && evt.State == telephony.LegActive && s.session.StartedAt.IsZero() {
		s.session.StartedAt = time.Now()
	}
	snap := s.session
	s.mu.Unlock()

	s.announce(prev, snap)
	s.notify(snap)
	if status == StatusEnded {
		s.reset()
	}
}

// announce turns a session transition into sync messages. Flag changes are
// announced individually so mirrors can apply them idempotently.
func (s *Store) announce(prev, cur Session) {
	if s.sync == nil {
		return
	}
	payload := tabsync.CallPayload{
		SessionID: cur.ID,
		Name:      cur.Counterparty.Name,
		Address:   cur.Counterparty.Address,
	}
	switch {
	case cur.Status == StatusIncoming && prev.Status != StatusIncoming:
		s.sync.Send(tabsync.KindCallIncoming, payload)
	case cur.Status == StatusActive && prev.Status != StatusActive:
		s.sync.Send(tabsync.KindCallAnswered, payload)
	case cur.Status == StatusEnded && prev.Status != StatusEnded:
		s.sync.Send(tabsync.KindCallEnded, payload)
	}

	flagActions := []struct {
		was, is bool
		on, off string
	}{
		{prev.Flags.Muted, cur.Flags.Muted, tabsync.ActionMute, tabsync.ActionUnmute},
		{prev.Flags.OnHold, cur.Flags.OnHold, tabsync.ActionHold, tabsync.ActionUnhold},
		{prev.Flags.Recording, cur.Flags.Recording, tabsync.ActionRecordStart, tabsync.ActionRecordStop},
	}
	for _, f := range flagActions {
		if f.was == f.is {
			continue
		}
		action := f.off
		if f.is {
			action = f.on
		}
		s.sync.Send(tabsync.KindCallAction, tabsync.ActionPayload{SessionID: cur.ID, Action: action})
	}
}

// ApplySync folds an announcement from another tab into the local session.
// It never talks to the provider and applying the same message twice is a
// no-op.
func (s *Store) ApplySync(msg tabsync.Message) {
	switch msg.Kind {
	case tabsync.KindCallIncoming, tabsync.KindCallAnswered, tabsync.KindCallEnded:
		var p tabsync.CallPayload
		if err := msg.DecodeData(&p); err != nil {
			log.Printf("CALL: bad %s payload: %v", msg.Kind, err)
			return
		}
		s.applySyncState(msg.Kind, p)
	case tabsync.KindCallAction:
		var p tabsync.ActionPayload
		if err := msg.DecodeData(&p); err != nil {
			log.Printf("CALL: bad action payload: %v", err)
			return
		}
		s.applySyncAction(p)
	}
}

func (s *Store) applySyncState(kind string, p tabsync.CallPayload) {
	s.mu.Lock()
	if !s.session.Idle() && s.session.ID != p.SessionID {
		s.mu.Unlock()
		return
	}
	s.session.ID = p.SessionID
	if p.Name != "" {
		s.session.Counterparty.Name = p.Name
	}
	if p.Address != "" {
		s.session.Counterparty.Address = p.Address
	}
	switch kind {
	case tabsync.KindCallIncoming:
		s.session.Status = StatusIncoming
	case tabsync.KindCallAnswered:
		s.session.Status = StatusActive
		if s.session.StartedAt.IsZero() {
			s.session.StartedAt = time.Now()
		}
	case tabsync.KindCallEnded:
		s.session.Status = StatusEnded
	}
	snap := s.session
	s.mu.Unlock()

	s.notify(snap)
	if snap.Status == StatusEnded {
		s.reset()
	}
}

func (s *Store) applySyncAction(p tabsync.ActionPayload) {
	s.mu.Lock()
	if s.session.ID != p.SessionID {
		s.mu.Unlock()
		return
	}
	switch p.Action {
	case tabsync.ActionMute:
		s.session.Flags.Muted = true
	case tabsync.ActionUnmute:
		s.session.Flags.Muted = false
	case tabsync.ActionHold:
		s.session.Flags.OnHold = true
	case tabsync.ActionUnhold:
		s.session.Flags.OnHold = false
	case tabsync.ActionRecordStart:
		s.session.Flags.Recording = true
	case tabsync.ActionRecordStop:
		s.session.Flags.Recording = false
	default:
		s.mu.Unlock()
		log.Printf("CALL: unknown sync action %q", p.Action)
		return
	}
	snap := s.session
	s.mu.Unlock()
	s.notify(snap)
}

// reset clears the session back to idle after the ended notification has
// gone out.
func (s *Store) reset() {
	s.mu.Lock()
	s.session = Session{}
	s.owner = false
	s.pendingName = ""
	snap := s.session
	s.mu.Unlock()
	s.notify(snap)
}

// PlaceCall dials out. The tab that dials becomes the leg owner; leg events
// drive the session from here.
func (s *Store) PlaceCall(ctx context.Context, name, number string) (string, error) {
	s.mu.Lock()
	if !s.session.Idle() {
		s.mu.Unlock()
		return "", fmt.Errorf("call in progress: %s", s.session.ID)
	}
	s.mu.Unlock()

	id, err := s.client.PlaceCall(ctx, number)
	if err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}
	s.mu.Lock()
	s.owner = true
	s.pendingName = name
	s.mu.Unlock()
	return id, nil
}

// leg returns the session id when this tab may issue provider verbs.
func (s *Store) leg() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.owner || s.session.Idle() {
		return "", telephony.ErrNoMediaLeg
	}
	return s.session.ID, nil
}

func (s *Store) Answer() error         { return s.verb(s.client.Answer) }
func (s *Store) HangUp() error         { return s.verb(s.client.HangUp) }
func (s *Store) Mute() error           { return s.verb(s.client.Mute) }
func (s *Store) Unmute() error         { return s.verb(s.client.Unmute) }
func (s *Store) Hold() error           { return s.verb(s.client.Hold) }
func (s *Store) Unhold() error         { return s.verb(s.client.Unhold) }
func (s *Store) StartRecording() error { return s.verb(s.client.StartRecording) }
func (s *Store) StopRecording() error  { return s.verb(s.client.StopRecording) }

func (s *Store) SendTone(tone string) error {
	id, err := s.leg()
	if err != nil {
		return err
	}
	return s.client.SendTone(id, tone)
}

func (s *Store) verb(do func(string) error) error {
	id, err := s.leg()
	if err != nil {
		return err
	}
	return do(id)
}
