package viewer

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hvermaas/petrel/internal/call"
	"github.com/hvermaas/petrel/internal/popout"
	"github.com/hvermaas/petrel/internal/prefs"
	"github.com/hvermaas/petrel/internal/surface"
	"github.com/hvermaas/petrel/internal/tab"
	"github.com/hvermaas/petrel/internal/tabsync"
	"github.com/hvermaas/petrel/internal/telephony"
)

type nullOpener struct{}

func (nullOpener) Open(sessionID string) (popout.Window, error) { return nil, http.ErrNotSupported }

type fixture struct {
	srv *httptest.Server
	lb  *telephony.Loopback
	t   *tab.Tab
	bus *tabsync.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := tabsync.NewBus(tabsync.ChannelName)
	ch := tabsync.NewChannel(bus.Endpoint(), nil)
	t.Cleanup(ch.Close)

	store, err := prefs.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open prefs: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	lb := telephony.NewLoopback()
	tb := tab.New(tab.Options{
		Client: lb, Sync: ch, Prefs: store, Opener: nullOpener{}, Origin: "http://127.0.0.1",
		Viewport: surface.Viewport{Width: 1920, Height: 1080},
		Frames:   surface.NewManualFrames(),
		OwnsLeg:  true,
	})
	t.Cleanup(tb.Close)

	srv := httptest.NewServer(Handler(Viewer{
		Tab:     tb,
		Bus:     bus,
		Prefs:   store,
		Logs:    NewLogBuffer(100),
		Windows: NewWindowRegistry(),
		// With an empty base URL only clients without an Origin header
		// pass the socket origin check; the test dialer sends none.
		BaseURL: "",
	}))
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, lb: lb, t: tb, bus: bus}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSessionEndpointStartsIdle(t *testing.T) {
	f := newFixture(t)
	var sess call.Session
	getJSON(t, f.srv.URL+"/api/call/session", &sess)
	if !sess.Idle() {
		t.Fatalf("expected idle session, got %+v", sess)
	}
}

func TestAnswerOverREST(t *testing.T) {
	f := newFixture(t)
	f.lb.Ring("A. de Vries", "+31612345678")
	waitFor(t, func() bool { return f.t.Store().Current().Status == call.StatusIncoming }, "incoming call")

	resp := postJSON(t, f.srv.URL+"/api/call/answer", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer: status %d", resp.StatusCode)
	}
	var sess call.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatalf("decode answer response: %v", err)
	}
	if sess.Status != call.StatusActive {
		t.Fatalf("expected active after answer, got %+v", sess)
	}
}

func TestActionsWithoutLegConflict(t *testing.T) {
	f := newFixture(t)
	resp := postJSON(t, f.srv.URL+"/api/call/mute", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 without a call, got %d", resp.StatusCode)
	}
}

func TestPlaceCallValidatesNumber(t *testing.T) {
	f := newFixture(t)
	resp := postJSON(t, f.srv.URL+"/api/call/place", `{"name":"X"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without a number, got %d", resp.StatusCode)
	}
}

func TestViewportEndpointClampsSurface(t *testing.T) {
	f := newFixture(t)
	resp := postJSON(t, f.srv.URL+"/api/surface/viewport", `{"width":800,"height":600}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("viewport: status %d", resp.StatusCode)
	}
	pos := f.t.Surface().Position()
	size := f.t.Surface().Size()
	if pos.X+size.Width > 800 || pos.Y+size.Height > 600 {
		t.Fatalf("surface not clamped into new viewport: %+v %+v", pos, size)
	}
}

func TestSyncSocketJoinsTheBus(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/sync"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial sync socket: %v", err)
	}
	defer conn.Close()

	msg := tabsync.NewMessage(tabsync.KindPositionUpdate, tabsync.PositionPayload{X: 30, Y: 40})
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write sync message: %v", err)
	}
	waitFor(t, func() bool {
		return f.t.Surface().Position() == (surface.Point{X: 30, Y: 40})
	}, "position applied from browser tab")
}

func TestSyncSocketRefusesForeignOrigin(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/sync"
	h := http.Header{}
	h.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, h)
	if err == nil {
		t.Fatal("expected the cross-origin upgrade to fail")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSurfacePageServedAtRoot(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/")
	if err != nil {
		t.Fatalf("get /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("/: content type %q", ct)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, resp.Body); err != nil {
		t.Fatalf("read /: %v", err)
	}
	// The page must wire the gesture routes, or the surface cannot move.
	for _, needle := range []string{"/api/surface/pointer", "/api/surface/resize", "/ws/sync", "/api/call/events"} {
		if !strings.Contains(b.String(), needle) {
			t.Fatalf("/ page does not reference %s", needle)
		}
	}

	other, err := http.Get(f.srv.URL + "/nothing-here")
	if err != nil {
		t.Fatalf("get /nothing-here: %v", err)
	}
	defer other.Body.Close()
	if other.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 off the root, got %d", other.StatusCode)
	}
}

func TestDragOverGestureRoutes(t *testing.T) {
	f := newFixture(t)

	var kinds []string
	var mu sync.Mutex
	ep := f.bus.Endpoint()
	cancel := ep.Subscribe(func(m tabsync.Message) {
		mu.Lock()
		kinds = append(kinds, m.Kind)
		mu.Unlock()
	})
	defer cancel()

	// Default mount: top-right of 1920x1080 with a 600-wide card.
	postJSON(t, f.srv.URL+"/api/surface/pointer", `{"phase":"down","x":1300,"y":30,"on_handle":true}`)
	postJSON(t, f.srv.URL+"/api/surface/pointer", `{"phase":"move","x":1200,"y":80}`)
	resp := postJSON(t, f.srv.URL+"/api/surface/pointer", `{"phase":"up","x":1100,"y":130}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pointer up: status %d", resp.StatusCode)
	}

	pos := f.t.Surface().Position()
	if pos.X != 1096 || pos.Y != 124 {
		t.Fatalf("expected committed position (1096, 124), got %+v", pos)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, k := range kinds {
			if k == tabsync.KindPositionUpdate {
				return true
			}
		}
		return false
	}, "position broadcast")
}

func TestResizeOverGestureRoutes(t *testing.T) {
	f := newFixture(t)

	// East handle sits on the card's right edge: x = 1296 + 600.
	postJSON(t, f.srv.URL+"/api/surface/resize", `{"phase":"down","dir":"e","x":1896,"y":400}`)
	resp := postJSON(t, f.srv.URL+"/api/surface/resize", `{"phase":"up","x":2091,"y":400}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resize up: status %d", resp.StatusCode)
	}

	// +195 gives 795, which snaps to the preferred 800.
	if got := f.t.Surface().Size().Width; got != 800 {
		t.Fatalf("expected committed width 800, got %d", got)
	}

	bad := postJSON(t, f.srv.URL+"/api/surface/resize", `{"phase":"down","dir":"x","x":0,"y":0}`)
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown handle, got %d", bad.StatusCode)
	}
}

func TestSurfaceSnapshotEndpoint(t *testing.T) {
	f := newFixture(t)
	var out map[string]any
	getJSON(t, f.srv.URL+"/api/surface", &out)
	for _, key := range []string{"position", "size", "viewport", "card_layout", "density"} {
		if _, ok := out[key]; !ok {
			t.Fatalf("surface snapshot missing %q: %v", key, out)
		}
	}
}
