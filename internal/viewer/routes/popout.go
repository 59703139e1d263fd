package routes

import (
	"html/template"
	"log"
	"net/http"

	"github.com/hvermaas/petrel/internal/popout"
)

// registerPopoutRoutes serves the pop-out window page and its socket. The
// page holds the full call surface; everything it does flows back to the
// opening tab through /ws/popout.
func registerPopoutRoutes(mux *http.ServeMux, d Deps) {
	if d.Window == nil {
		return
	}
	upgrader := syncUpgrader(d.BaseURL)

	handleGet(mux, "/call-window", func(w http.ResponseWriter, r *http.Request) {
		session := r.URL.Query().Get("session")
		token := r.URL.Query().Get("token")
		if session == "" || token == "" {
			http.Error(w, "missing session or token", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := callWindowPage.Execute(w, map[string]string{
			"Session": session,
			"Token":   token,
		}); err != nil {
			log.Printf("POP: render call window: %v", err)
		}
	})

	mux.HandleFunc("/ws/popout", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		win, ok := d.Window(token)
		if !ok {
			http.Error(w, "unknown window token", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("POP: upgrade failed: %v", err)
			return
		}
		win.Attach(conn)
		defer win.Detach()

		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = d.BaseURL
		}
		for {
			var msg popout.WindowMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			d.Tab.PopOut().HandleMessage(origin, msg)
		}
	})
}

// callWindowPage is the standalone surface. It answers init with ready,
// renders pushed state, and relays call actions and its own close request.
var callWindowPage = template.Must(template.New("call-window").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Call</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #10141a; color: #e8ecf1; }
main { padding: 16px; }
#status { font-size: 13px; opacity: .7; }
#name { font-size: 20px; margin: 8px 0 2px; }
#number { font-size: 14px; opacity: .8; }
.actions { margin-top: 16px; display: flex; gap: 8px; flex-wrap: wrap; }
button { padding: 8px 14px; border: 0; border-radius: 6px; cursor: pointer; }
</style>
</head>
<body>
<main>
  <div id="status">connecting</div>
  <div id="name"></div>
  <div id="number"></div>
  <div class="actions">
    <button data-action="answer">Answer</button>
    <button data-action="mute">Mute</button>
    <button data-action="unmute">Unmute</button>
    <button data-action="hold">Hold</button>
    <button data-action="unhold">Unhold</button>
    <button data-action="hangup">Hang up</button>
    <button id="return">Return to tab</button>
  </div>
</main>
<script>
const session = {{.Session}};
const token = {{.Token}};
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws/popout?token=" + encodeURIComponent(token));
const send = (msg) => ws.readyState === WebSocket.OPEN && ws.send(JSON.stringify({ ...msg, session_id: session, timestamp: Date.now() }));

ws.onmessage = (evt) => {
  const msg = JSON.parse(evt.data);
  if (msg.type === "init") {
    send({ type: "ready" });
    document.getElementById("status").textContent = "ready";
  } else if (msg.type === "state" && msg.payload) {
    document.getElementById("status").textContent = msg.payload.status || "";
    document.getElementById("name").textContent = (msg.payload.counterparty || {}).name || "";
    document.getElementById("number").textContent = (msg.payload.counterparty || {}).address || "";
  } else if (msg.type === "focus") {
    window.focus();
  }
};
for (const btn of document.querySelectorAll("button[data-action]")) {
  btn.onclick = () => send({ type: "call-action", action: btn.dataset.action });
}
document.getElementById("return").onclick = () => send({ type: "request-close" });
window.addEventListener("beforeunload", () => send({ type: "request-close" }));
</script>
</body>
</html>
`))
