package routes

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hvermaas/petrel/internal/prefs"
	"github.com/hvermaas/petrel/internal/tab"
	"github.com/hvermaas/petrel/internal/tabsync"
)

type Logs interface {
	ServeLogsJSON(w http.ResponseWriter, r *http.Request)
	ServeLogsSSE(w http.ResponseWriter, r *http.Request)
}

// WindowConn is a registered pop-out window awaiting or holding its page
// socket.
type WindowConn interface {
	Attach(conn *websocket.Conn)
	Detach()
}

type Deps struct {
	Tab     *tab.Tab
	Bus     *tabsync.Bus
	Prefs   *prefs.Store
	Logs    Logs
	BaseURL string

	// Window resolves a pop-out token to the window the coordinator is
	// polling. Nil disables the pop-out socket.
	Window func(token string) (WindowConn, bool)
}

func Register(mux *http.ServeMux, d Deps) {
	registerPageRoutes(mux, d)
	registerCallRoutes(mux, d)
	registerSurfaceRoutes(mux, d)
	registerSyncRoutes(mux, d)
	registerPopoutRoutes(mux, d)

	if d.Logs != nil {
		handleGet(mux, "/api/logs", d.Logs.ServeLogsJSON)
		handleGet(mux, "/api/logs/stream", d.Logs.ServeLogsSSE)
	}
}
