package routes

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hvermaas/petrel/internal/tabsync"
)

// syncUpgrader refuses cross-origin sockets. An empty Origin header is a
// non-browser client on the loopback, which is fine.
func syncUpgrader(baseURL string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == baseURL
		},
	}
}

// registerSyncRoutes bridges browser tabs onto the in-process sync bus.
// Each socket becomes a bus endpoint: frames from the tab fan out to every
// other participant, and every other participant's messages are written
// back down the socket.
func registerSyncRoutes(mux *http.ServeMux, d Deps) {
	if d.Bus == nil {
		return
	}
	upgrader := syncUpgrader(d.BaseURL)

	mux.HandleFunc("/ws/sync", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("SYNC: upgrade failed: %v", err)
			return
		}

		endpoint := d.Bus.Endpoint()
		cancel := endpoint.Subscribe(func(msg tabsync.Message) {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("SYNC: tab socket write failed: %v", err)
			}
		})
		defer func() {
			cancel()
			endpoint.Close()
			conn.Close()
		}()

		for {
			var msg tabsync.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if err := endpoint.Send(msg); err != nil {
				return
			}
		}
	})
}
