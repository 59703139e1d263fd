// Package call tracks the live call session as the surface presents it.
// Each tab has one Store; the tab holding the media leg feeds it provider
// events, every other tab feeds it sync messages, and both converge on the
// same Session value.
package call

import "github.com/hvermaas/petrel/internal/telephony"

// Status is the surface-level call status. It is a projection of the media
// leg: the leg knows about direction, the surface only cares whether the
// user still has to pick up.
type Status string

const (
	// StatusIdle means no call; the surface is hidden.
	StatusIdle Status = "idle"
	// StatusIncoming means an inbound leg is ringing and unanswered.
	StatusIncoming Status = "incoming"
	// StatusActive covers answered calls and outbound calls that are still
	// ringing out; both show the in-call controls.
	StatusActive Status = "active"
	// StatusEnded is the short terminal state before the store resets to
	// idle.
	StatusEnded Status = "ended"
)

// MapLeg projects a leg event onto a surface status. A nil leg is idle.
func MapLeg(leg *telephony.LegEvent) Status {
	if leg == nil {
		return StatusIdle
	}
	switch leg.State {
	case telephony.LegRinging:
		if leg.Direction == telephony.Inbound {
			return StatusIncoming
		}
		return StatusActive
	case telephony.LegActive:
		return StatusActive
	case telephony.LegEnded:
		return StatusEnded
	default:
		return StatusIdle
	}
}
