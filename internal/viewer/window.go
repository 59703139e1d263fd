package viewer

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hvermaas/petrel/internal/popout"
	"github.com/hvermaas/petrel/internal/util"
)

// wsWindow is a pop-out window reached over a websocket. The coordinator
// posts into it; the window page posts back through the same socket. Until
// the page connects, posts fail and the coordinator's handshake retries
// cover the gap.
type wsWindow struct {
	token string

	mu       sync.Mutex
	conn     *websocket.Conn
	detached bool // conn was attached once and has gone away
}

func (w *wsWindow) Post(msg popout.WindowMessage) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("window %s not connected", w.token)
	}
	return conn.WriteJSON(msg)
}

func (w *wsWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.detached
}

func (w *wsWindow) Close() {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.detached = true
	w.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (w *wsWindow) Focus() {
	// The page raises itself on this message; nothing more the server can
	// do for a browser window.
	_ = w.Post(popout.WindowMessage{Type: "focus"})
}

// Attach binds the page socket to the window.
func (w *wsWindow) Attach(conn *websocket.Conn) {
	w.mu.Lock()
	w.conn = conn
	w.detached = false
	w.mu.Unlock()
}

// Detach marks the window gone; the liveness poll docks the surface.
func (w *wsWindow) Detach() {
	w.mu.Lock()
	w.conn = nil
	w.detached = true
	w.mu.Unlock()
}

// WindowRegistry matches pop-out window sockets to the wsWindow handed to
// the coordinator. The token in the window URL is the match key.
type WindowRegistry struct {
	mu      sync.Mutex
	windows map[string]*wsWindow
}

func NewWindowRegistry() *WindowRegistry {
	return &WindowRegistry{windows: make(map[string]*wsWindow)}
}

func (r *WindowRegistry) create(token string) *wsWindow {
	w := &wsWindow{token: token}
	r.mu.Lock()
	r.windows[token] = w
	r.mu.Unlock()
	return w
}

// Lookup returns the window for a token, used when its socket connects.
func (r *WindowRegistry) Lookup(token string) (*wsWindow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[token]
	return w, ok
}

func (r *WindowRegistry) remove(token string) {
	r.mu.Lock()
	delete(r.windows, token)
	r.mu.Unlock()
}

// BrowserOpener opens the pop-out page in the default browser. The token
// ties the opened page back to the wsWindow the coordinator polls.
type BrowserOpener struct {
	BaseURL  string
	Registry *WindowRegistry

	// OpenURL launches the platform browser. Tests override it.
	OpenURL func(string) error
}

func (o *BrowserOpener) Open(sessionID string) (popout.Window, error) {
	openURL := o.OpenURL
	if openURL == nil {
		openURL = util.OpenURL
	}
	token := uuid.NewString()
	target := fmt.Sprintf("%s/call-window?session=%s&token=%s",
		o.BaseURL, url.QueryEscape(sessionID), url.QueryEscape(token))

	win := o.Registry.create(token)
	if err := openURL(target); err != nil {
		o.Registry.remove(token)
		return nil, fmt.Errorf("open call window: %w", err)
	}
	return win, nil
}
