package call

import "time"

// Counterparty identifies the remote end of a call.
type Counterparty struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Flags are the user-toggled leg states shown on the surface.
type Flags struct {
	Muted     bool `json:"muted"`
	OnHold    bool `json:"on_hold"`
	Recording bool `json:"recording"`
}

// Session is the full surface-level view of the current call. The zero
// value is the idle session.
type Session struct {
	ID           string       `json:"id"`
	Status       Status       `json:"status"`
	Counterparty Counterparty `json:"counterparty"`
	Flags        Flags        `json:"flags"`
	StartedAt    time.Time    `json:"started_at,omitempty"`
}

// Elapsed returns how long the call has been active, zero before answer.
func (s Session) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() || s.Status != StatusActive {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// Idle reports whether no call is in progress.
func (s Session) Idle() bool { return s.Status == StatusIdle || s.Status == "" }
