package telephony

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Reconnect tuning. Delay grows exponentially from reconnectBase to
// reconnectCap with +-30% jitter so a fleet of clients does not stampede a
// recovering provider.
const (
	reconnectBase     = 1 * time.Second
	reconnectCap      = 30 * time.Second
	reconnectJitter   = 0.3
	reconnectAttempts = 5
)

// command is the wire shape of every verb sent to the provider.
type command struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Number    string `json:"number,omitempty"`
	Tone      string `json:"tone,omitempty"`
}

// wireEvent is the wire shape of provider notifications. State is the
// provider's own vocabulary and goes through NormalizeState.
type wireEvent struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	State        string `json:"state"`
	Direction    string `json:"direction"`
	Muted        bool   `json:"muted"`
	Recording    bool   `json:"recording"`
	RemoteName   string `json:"remote_name"`
	RemoteNumber string `json:"remote_number"`
}

// WSClient is the production Client: a single websocket to the provider's
// event socket, commands written as JSON frames, events read in a loop that
// reconnects with backoff when the socket drops.
type WSClient struct {
	url string

	writeMu sync.Mutex
	conn    *websocket.Conn

	listenerMu sync.RWMutex
	listeners  map[chan *LegEvent]struct{}

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Dial connects to the provider event socket at url and starts the read
// loop.
func Dial(ctx context.Context, url string) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial provider %s: %w", url, err)
	}
	c := &WSClient{
		url:       url,
		conn:      conn,
		listeners: make(map[chan *LegEvent]struct{}),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) send(cmd command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Type, err)
	}
	return nil
}

// PlaceCall starts an outbound leg. The session id is minted client-side
// and echoed by the provider in every event for the leg.
func (c *WSClient) PlaceCall(ctx context.Context, number string) (string, error) {
	id := uuid.NewString()
	if err := c.send(command{Type: "invite", SessionID: id, Number: number}); err != nil {
		return "", err
	}
	return id, nil
}

func (c *WSClient) Answer(sessionID string) error {
	return c.send(command{Type: "answer", SessionID: sessionID})
}

func (c *WSClient) HangUp(sessionID string) error {
	return c.send(command{Type: "hangup", SessionID: sessionID})
}

func (c *WSClient) Mute(sessionID string) error {
	return c.send(command{Type: "mute", SessionID: sessionID})
}

func (c *WSClient) Unmute(sessionID string) error {
	return c.send(command{Type: "unmute", SessionID: sessionID})
}

func (c *WSClient) Hold(sessionID string) error {
	return c.send(command{Type: "hold", SessionID: sessionID})
}

func (c *WSClient) Unhold(sessionID string) error {
	return c.send(command{Type: "unhold", SessionID: sessionID})
}

func (c *WSClient) SendTone(sessionID, tone string) error {
	return c.send(command{Type: "dtmf", SessionID: sessionID, Tone: tone})
}

func (c *WSClient) StartRecording(sessionID string) error {
	return c.send(command{Type: "record-start", SessionID: sessionID})
}

func (c *WSClient) StopRecording(sessionID string) error {
	return c.send(command{Type: "record-stop", SessionID: sessionID})
}

// Subscribe returns a channel that receives normalized leg events.
func (c *WSClient) Subscribe() (ch chan *LegEvent, cancel func()) {
	ch = make(chan *LegEvent, 64)

	c.listenerMu.Lock()
	c.listeners[ch] = struct{}{}
	c.listenerMu.Unlock()

	cancel = func() {
		c.listenerMu.Lock()
		if _, ok := c.listeners[ch]; ok {
			delete(c.listeners, ch)
			close(ch)
		}
		c.listenerMu.Unlock()
	}
	return ch, cancel
}

func (c *WSClient) readLoop() {
	for {
		c.writeMu.Lock()
		conn := c.conn
		c.writeMu.Unlock()
		if conn == nil {
			return
		}

		var evt wireEvent
		if err := conn.ReadJSON(&evt); err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			log.Printf("TEL: event socket dropped: %v", err)
			if !c.reconnect() {
				return
			}
			continue
		}
		if evt.Type != "leg-update" {
			continue
		}
		c.deliver(&evt)
	}
}

func (c *WSClient) deliver(evt *wireEvent) {
	state, held := NormalizeState(evt.State)
	if state == "" {
		log.Printf("TEL: dropping unknown leg state %q for %s", evt.State, evt.SessionID)
		return
	}
	leg := &LegEvent{
		SessionID:    evt.SessionID,
		State:        state,
		Direction:    Direction(evt.Direction),
		Muted:        evt.Muted,
		Held:         held,
		Recording:    evt.Recording,
		RemoteName:   evt.RemoteName,
		RemoteNumber: evt.RemoteNumber,
	}
	c.listenerMu.RLock()
	for ch := range c.listeners {
		select {
		case ch <- leg:
		default:
			// Slow subscriber; drop rather than block the read loop.
		}
	}
	c.listenerMu.RUnlock()
}

// reconnect redials with exponential backoff. Returns false when the
// attempt budget runs out or the client was closed.
func (c *WSClient) reconnect() bool {
	for attempt := 0; attempt < reconnectAttempts; attempt++ {
		delay := reconnectDelay(attempt)
		log.Printf("TEL: reconnect attempt %d/%d in %s", attempt+1, reconnectAttempts, delay)
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			log.Printf("TEL: reconnect failed: %v", err)
			continue
		}
		c.writeMu.Lock()
		c.conn = conn
		c.writeMu.Unlock()
		log.Printf("TEL: event socket reconnected")
		return true
	}
	log.Printf("TEL: giving up after %d reconnect attempts", reconnectAttempts)
	return false
}

// reconnectDelay computes the backoff for the given zero-based attempt.
func reconnectDelay(attempt int) time.Duration {
	d := reconnectBase << attempt
	if d > reconnectCap {
		d = reconnectCap
	}
	jitter := 1 + reconnectJitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * jitter)
}

// Close shuts the socket down. Safe to call more than once.
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.writeMu.Lock()
	conn := c.conn
	c.conn = nil
	c.writeMu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
