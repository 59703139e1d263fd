// Package tabsync delivers state-change messages between the browsing
// contexts ("tabs") that show the call surface. Every tab keeps its own copy
// of the session; tabsync exists to make those copies agree. Delivery is
// best-effort: receivers must apply every message kind idempotently, because
// nothing stronger than wall-clock staleness filtering orders the stream.
package tabsync

import (
	"encoding/json"
	"time"
)

// Message kinds.
const (
	KindCallIncoming   = "call-incoming"
	KindCallAnswered   = "call-answered"
	KindCallEnded      = "call-ended"
	KindCallAction     = "call-action"
	KindPositionUpdate = "position-update"
	KindSizeUpdate     = "size-update"
)

// Call action payload values.
const (
	ActionMute        = "mute"
	ActionUnmute      = "unmute"
	ActionHold        = "hold"
	ActionUnhold      = "unhold"
	ActionRecordStart = "record-start"
	ActionRecordStop  = "record-stop"
)

// StalenessWindow is how far behind the receiver's clock a message may be
// before it is dropped. A tab resumed from a long freeze (or the
// back-forward cache) must not replay stale transitions.
const StalenessWindow = 5 * time.Second

// Message is the wire unit exchanged between tabs. Timestamp is the sender's
// local emission time in milliseconds.
type Message struct {
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// CallPayload describes the session a call-incoming / call-answered /
// call-ended message refers to.
type CallPayload struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name,omitempty"`
	Address   string `json:"address"`
}

// ActionPayload carries one call-action.
type ActionPayload struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
}

// PositionPayload carries a committed surface position.
type PositionPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SizePayload carries a committed surface width. Height is per-tab and never
// travels between tabs.
type SizePayload struct {
	Width int `json:"width"`
}

// NewMessage stamps a message with the sender's current clock.
func NewMessage(kind string, data any) Message {
	return Message{Kind: kind, Timestamp: time.Now().UnixMilli(), Data: data}
}

// Stale reports whether the message is older than the staleness window
// relative to now.
func (m Message) Stale(now time.Time) bool {
	return now.UnixMilli()-m.Timestamp > StalenessWindow.Milliseconds()
}

// DecodeData unmarshals the payload into v. The payload may be a typed
// struct (in-process delivery) or a decoded JSON map (storage fallback), so
// it is round-tripped through JSON either way.
func (m Message) DecodeData(v any) error {
	b, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
