// Package telephony talks to the softphone provider. It owns the media leg:
// the provider's websocket event socket, the command verbs, and the
// normalization of provider state names into the three leg states the rest
// of the app reasons about. Exactly one tab holds a live media leg; every
// other tab mirrors it over the sync channel.
package telephony

import (
	"context"
	"errors"
)

// LegState is the normalized state of a media leg.
type LegState string

const (
	LegRinging LegState = "ringing"
	LegActive  LegState = "active"
	LegEnded   LegState = "ended"
)

// Direction distinguishes who initiated the leg.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// LegEvent is one normalized update about a media leg.
type LegEvent struct {
	SessionID    string    `json:"session_id"`
	State        LegState  `json:"state"`
	Direction    Direction `json:"direction"`
	Muted        bool      `json:"muted"`
	Held         bool      `json:"held"`
	Recording    bool      `json:"recording"`
	RemoteName   string    `json:"remote_name"`
	RemoteNumber string    `json:"remote_number"`
}

// ErrNoMediaLeg is returned when an action needs a live provider leg and
// this tab does not hold one.
var ErrNoMediaLeg = errors.New("telephony: no media leg in this tab")

// ErrNotConnected is returned for commands issued while the event socket is
// down and reconnection has not yet succeeded.
var ErrNotConnected = errors.New("telephony: provider socket not connected")

// Client is a connection to the softphone provider. All commands act on the
// session identified by sessionID; commands against unknown sessions fail
// at the provider and surface as errors here.
type Client interface {
	// PlaceCall starts an outbound leg and returns the provider session id.
	PlaceCall(ctx context.Context, number string) (string, error)
	Answer(sessionID string) error
	HangUp(sessionID string) error
	Mute(sessionID string) error
	Unmute(sessionID string) error
	Hold(sessionID string) error
	Unhold(sessionID string) error
	SendTone(sessionID, tone string) error
	StartRecording(sessionID string) error
	StopRecording(sessionID string) error

	// Subscribe returns a channel of normalized leg events. cancel stops
	// delivery and closes the channel.
	Subscribe() (ch chan *LegEvent, cancel func())

	Close() error
}

// NormalizeState maps a provider state name to a LegState plus the held
// flag. Providers report "held" as its own state; the surface treats a held
// call as active with the hold flag set. Unknown states map to ("", false)
// and should be dropped by the caller.
func NormalizeState(raw string) (LegState, bool) {
	switch raw {
	case "new", "requesting", "trying", "early", "ringing":
		return LegRinging, false
	case "answered", "active", "connected":
		return LegActive, false
	case "held":
		return LegActive, true
	case "hangup", "destroy", "done", "ended":
		return LegEnded, false
	default:
		return "", false
	}
}
