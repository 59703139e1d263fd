// Package popout moves the call surface into its own window. The
// coordinator owns the episode state machine: arming while a drag crosses
// the viewport edge, opening the window on release, handshaking with it,
// and pulling the surface back when the window closes or asks to.
package popout

import (
	"log"
	"sync"
	"time"
)

// State is the pop-out episode state.
type State string

const (
	// StateDocked means the surface renders inside the tab.
	StateDocked State = "docked"
	// StateArmed means a live drag is past the out-of-bounds threshold;
	// releasing now opens the window.
	StateArmed State = "zone-armed"
	// StatePoppedOut means the dedicated window holds the surface and the
	// tab renders a placeholder.
	StatePoppedOut State = "popped-out"
)

// Message types spoken between the tab and the pop-out window.
const (
	MsgInit         = "init"
	MsgReady        = "ready"
	MsgState        = "state"
	MsgCallAction   = "call-action"
	MsgRequestClose = "request-close"
)

// WindowMessage is one frame of the tab / pop-out window protocol.
type WindowMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Window is an open pop-out window.
type Window interface {
	// Post delivers a message to the window. Best effort.
	Post(msg WindowMessage) error
	// Closed reports whether the user has closed the window. Polled; there
	// is no close notification.
	Closed() bool
	Close()
	Focus()
}

// Opener creates pop-out windows. Open returns an error when the platform
// refuses, e.g. a popup blocker.
type Opener interface {
	Open(sessionID string) (Window, error)
}

// Handshake and liveness tuning.
const (
	defaultRetryInterval    = 250 * time.Millisecond
	defaultHandshakeTimeout = 5 * time.Second
	defaultPollInterval     = 500 * time.Millisecond
)

// Config overrides the coordinator's timers. Zero values keep the defaults;
// tests shrink them.
type Config struct {
	RetryInterval    time.Duration
	HandshakeTimeout time.Duration
	PollInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return c
}

// Callbacks are the coordinator's outputs. All are optional and fire
// without the coordinator lock held.
type Callbacks struct {
	// OnState fires on every episode state change.
	OnState func(State)
	// OnReady fires once per episode when the window completes the
	// handshake; the tab pushes the current call state in response.
	OnReady func(sessionID string)
	// OnAction fires for call actions performed inside the window.
	OnAction func(sessionID, action string)
}

// Coordinator runs pop-out episodes. One episode at a time: a second
// CreatePopOut while a window is open or opening is a no-op.
type Coordinator struct {
	opener Opener
	origin string
	cfg    Config
	cb     Callbacks

	mu        sync.Mutex
	state     State
	win       Window
	sessionID string
	// opening guards the handshake phase so an episode starts at most one
	// window.
	opening bool
	readyCh chan struct{}
	// docked collapses the many ways an episode can end into one
	// notification.
	docked *sync.Once
}

func New(opener Opener, origin string, cfg Config, cb Callbacks) *Coordinator {
	return &Coordinator{
		opener: opener,
		origin: origin,
		cfg:    cfg.withDefaults(),
		cb:     cb,
		state:  StateDocked,
	}
}

// CurrentState returns the episode state.
func (c *Coordinator) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PoppedOut reports whether the dedicated window holds the surface.
func (c *Coordinator) PoppedOut() bool { return c.CurrentState() == StatePoppedOut }

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	if c.cb.OnState != nil {
		c.cb.OnState(s)
	}
}

// Arm toggles the armed state while a drag is in flight. Ignored once
// popped out.
func (c *Coordinator) Arm(outOfBounds bool) {
	c.mu.Lock()
	if c.state == StatePoppedOut || c.opening {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	if outOfBounds {
		c.setState(StateArmed)
	} else {
		c.setState(StateDocked)
	}
}

// CreatePopOut opens the dedicated window for sessionID and starts the
// handshake. A refused open, e.g. a popup blocker, docks the surface again
// without surfacing an error to the user.
func (c *Coordinator) CreatePopOut(sessionID string) {
	c.mu.Lock()
	if c.state == StatePoppedOut || c.opening {
		c.mu.Unlock()
		return
	}
	c.opening = true
	c.sessionID = sessionID
	c.readyCh = make(chan struct{})
	readyCh := c.readyCh
	c.mu.Unlock()

	win, err := c.opener.Open(sessionID)
	if err != nil {
		log.Printf("POP: window open refused: %v", err)
		c.mu.Lock()
		c.opening = false
		c.mu.Unlock()
		c.setState(StateDocked)
		return
	}

	c.mu.Lock()
	c.win = win
	c.mu.Unlock()
	go c.handshake(win, sessionID, readyCh)
}

// handshake resends init until the window answers ready or the deadline
// passes. The window's script may not be loaded for the first sends; that
// is why it retries.
func (c *Coordinator) handshake(win Window, sessionID string, readyCh chan struct{}) {
	ticker := time.NewTicker(c.cfg.RetryInterval)
	defer ticker.Stop()
	deadline := time.After(c.cfg.HandshakeTimeout)

	post := func() {
		if err := win.Post(WindowMessage{Type: MsgInit, SessionID: sessionID, Timestamp: time.Now().UnixMilli()}); err != nil {
			log.Printf("POP: init post failed: %v", err)
		}
	}
	post()

	for {
		select {
		case <-readyCh:
			c.mu.Lock()
			c.opening = false
			c.docked = &sync.Once{}
			c.mu.Unlock()
			c.setState(StatePoppedOut)
			if c.cb.OnReady != nil {
				c.cb.OnReady(sessionID)
			}
			go c.watchLiveness(win)
			return
		case <-deadline:
			// The window stays open showing its own empty state; the
			// surface just never hands off to it.
			log.Printf("POP: handshake timed out, keeping surface docked")
			c.mu.Lock()
			c.opening = false
			c.win = nil
			c.mu.Unlock()
			c.setState(StateDocked)
			return
		case <-ticker.C:
			post()
		}
	}
}

// watchLiveness polls the window because closing it fires no event in the
// tab. The dock transition runs exactly once per episode no matter which
// path triggers it.
func (c *Coordinator) watchLiveness(win Window) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		current := c.win
		c.mu.Unlock()
		if current != win {
			return
		}
		if win.Closed() {
			c.dock(win, false)
			return
		}
	}
}

// dock ends the episode: the surface goes back into the tab. With closeWin
// set the window is closed as well; otherwise it already is.
func (c *Coordinator) dock(win Window, closeWin bool) {
	c.mu.Lock()
	if c.win != win || c.docked == nil {
		c.mu.Unlock()
		return
	}
	once := c.docked
	c.mu.Unlock()

	once.Do(func() {
		if closeWin {
			win.Close()
		}
		c.mu.Lock()
		c.win = nil
		c.docked = nil
		c.sessionID = ""
		c.mu.Unlock()
		c.setState(StateDocked)
	})
}

// ReturnToMain pulls the surface back into the tab. Safe to call when
// already docked.
func (c *Coordinator) ReturnToMain() {
	c.mu.Lock()
	win := c.win
	c.mu.Unlock()
	if win == nil {
		return
	}
	c.dock(win, true)
}

// Focus raises the pop-out window. Best effort; no-op when docked.
func (c *Coordinator) Focus() {
	c.mu.Lock()
	win := c.win
	state := c.state
	c.mu.Unlock()
	if state == StatePoppedOut && win != nil {
		win.Focus()
	}
}

// PushState forwards a state payload to the window, used after call
// transitions while popped out.
func (c *Coordinator) PushState(payload any) {
	c.mu.Lock()
	win := c.win
	sessionID := c.sessionID
	state := c.state
	c.mu.Unlock()
	if state != StatePoppedOut || win == nil {
		return
	}
	if err := win.Post(WindowMessage{Type: MsgState, SessionID: sessionID, Payload: payload, Timestamp: time.Now().UnixMilli()}); err != nil {
		log.Printf("POP: state post failed: %v", err)
	}
}

// HandleMessage processes a message from the window. Messages from any
// other origin are dropped.
func (c *Coordinator) HandleMessage(origin string, msg WindowMessage) {
	if origin != c.origin {
		log.Printf("POP: dropping message from foreign origin %q", origin)
		return
	}
	switch msg.Type {
	case MsgReady:
		c.mu.Lock()
		if c.opening && c.readyCh != nil {
			close(c.readyCh)
			c.readyCh = nil
		}
		c.mu.Unlock()
	case MsgRequestClose:
		c.ReturnToMain()
	case MsgCallAction:
		if c.cb.OnAction != nil {
			c.cb.OnAction(msg.SessionID, msg.Action)
		}
	default:
		log.Printf("POP: unknown window message %q", msg.Type)
	}
}
