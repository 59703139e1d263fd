// Package viewer serves the local HTTP surface: the call API for the
// embedded softphone UI, the websocket bridges for extra browser tabs and
// the pop-out window, and the log endpoints.
package viewer

import (
	"net/http"

	"github.com/hvermaas/petrel/internal/prefs"
	"github.com/hvermaas/petrel/internal/tab"
	"github.com/hvermaas/petrel/internal/tabsync"
	"github.com/hvermaas/petrel/internal/viewer/routes"
)

type Viewer struct {
	Tab     *tab.Tab
	Bus     *tabsync.Bus
	Prefs   *prefs.Store
	Logs    *LogBuffer
	Windows *WindowRegistry

	// BaseURL is the canonical origin, e.g. http://127.0.0.1:8099. Window
	// and sync sockets from any other origin are refused.
	BaseURL string
}

// Handler builds the route tree. Split from Start so tests can drive it
// through httptest.
func Handler(v Viewer) http.Handler {
	mux := http.NewServeMux()

	deps := routes.Deps{
		Tab:     v.Tab,
		Bus:     v.Bus,
		Prefs:   v.Prefs,
		Logs:    v.Logs,
		BaseURL: v.BaseURL,
	}
	if v.Windows != nil {
		deps.Window = func(token string) (routes.WindowConn, bool) {
			w, ok := v.Windows.Lookup(token)
			if !ok {
				return nil, false
			}
			return w, true
		}
	}
	routes.Register(mux, deps)
	return noCache(mux)
}

func Start(addr string, v Viewer) error {
	return http.ListenAndServe(addr, Handler(v))
}
