package routes

import (
	"html/template"
	"log"
	"net/http"
)

// registerPageRoutes serves the main surface page. It hosts the floating
// call card: the header is the drag handle, the card edges are the resize
// handles, and every gesture flows to the tab through the surface routes.
func registerPageRoutes(mux *http.ServeMux, d Deps) {
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := surfacePage.Execute(w, nil); err != nil {
			log.Printf("TAB: render surface page: %v", err)
		}
	})
}

// surfacePage renders the floating call card. Geometry comes from
// /api/surface, gestures go to /api/surface/pointer and /api/surface/resize,
// call state streams over /api/call/events, and commits from other tabs
// arrive on /ws/sync.
var surfacePage = template.Must(template.New("surface").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Petrel</title>
<style>
body { margin: 0; height: 100vh; background: #0f1115; color: #e6e9ef; font-family: system-ui, sans-serif; overflow: hidden; }
#card { position: absolute; background: #151924; border-radius: 10px; box-shadow: 0 8px 30px rgba(0,0,0,.45); user-select: none; }
#handle { padding: 10px 14px; cursor: grab; background: #1b2130; border-radius: 10px 10px 0 0; font-size: 13px; }
#card.oob { outline: 2px dashed #7aa2ff; }
#body { padding: 14px; }
#status { font-size: 12px; opacity: .7; }
#name { font-size: 18px; margin: 6px 0 2px; }
#number { font-size: 13px; opacity: .8; }
.actions { margin-top: 12px; display: flex; gap: 6px; flex-wrap: wrap; }
button { padding: 6px 12px; border: 0; border-radius: 6px; cursor: pointer; }
input { padding: 6px 8px; border: 0; border-radius: 6px; background: #0f1115; color: inherit; }
.edge { position: absolute; }
.edge[data-dir=n] { top: -4px; left: 8px; right: 8px; height: 8px; cursor: ns-resize; }
.edge[data-dir=s] { bottom: -4px; left: 8px; right: 8px; height: 8px; cursor: ns-resize; }
.edge[data-dir=e] { right: -4px; top: 8px; bottom: 8px; width: 8px; cursor: ew-resize; }
.edge[data-dir=w] { left: -4px; top: 8px; bottom: 8px; width: 8px; cursor: ew-resize; }
.edge[data-dir=ne] { top: -4px; right: -4px; width: 12px; height: 12px; cursor: nesw-resize; }
.edge[data-dir=nw] { top: -4px; left: -4px; width: 12px; height: 12px; cursor: nwse-resize; }
.edge[data-dir=se] { bottom: -4px; right: -4px; width: 12px; height: 12px; cursor: nwse-resize; }
.edge[data-dir=sw] { bottom: -4px; left: -4px; width: 12px; height: 12px; cursor: nesw-resize; }
</style>
</head>
<body>
<div id="card">
  <div class="edge" data-dir="n"></div><div class="edge" data-dir="s"></div>
  <div class="edge" data-dir="e"></div><div class="edge" data-dir="w"></div>
  <div class="edge" data-dir="ne"></div><div class="edge" data-dir="nw"></div>
  <div class="edge" data-dir="se"></div><div class="edge" data-dir="sw"></div>
  <div id="handle">Petrel</div>
  <div id="body">
    <div id="status">idle</div>
    <div id="name"></div>
    <div id="number"></div>
    <div class="actions">
      <input id="dial" placeholder="Number">
      <button data-action="place">Call</button>
      <button data-action="answer">Answer</button>
      <button data-action="mute">Mute</button>
      <button data-action="unmute">Unmute</button>
      <button data-action="hold">Hold</button>
      <button data-action="unhold">Unhold</button>
      <button data-action="hangup">Hang up</button>
    </div>
  </div>
</div>
<script>
const card = document.getElementById("card");
const post = (url, body) => fetch(url, { method: "POST", headers: { "Content-Type": "application/json" }, body: JSON.stringify(body) }).then(r => r.ok ? r.json() : null);

function render(geo) {
  if (!geo) return;
  if (geo.position) { card.style.left = geo.position.x + "px"; card.style.top = geo.position.y + "px"; }
  if (geo.size) { card.style.width = geo.size.width + "px"; card.style.height = geo.size.height + "px"; }
}

async function mount() {
  await post("/api/surface/viewport", { width: window.innerWidth, height: window.innerHeight });
  render(await fetch("/api/surface").then(r => r.json()));
}
window.addEventListener("resize", () => post("/api/surface/viewport", { width: window.innerWidth, height: window.innerHeight }).then(mount));

// One gesture at a time: moves stream while a pointer is down, the server
// coalesces them per frame.
let gesture = null; // "drag" | "resize"
document.getElementById("handle").addEventListener("pointerdown", (e) => {
  gesture = "drag";
  post("/api/surface/pointer", { phase: "down", x: e.clientX, y: e.clientY, on_handle: true });
});
for (const edge of document.querySelectorAll(".edge")) {
  edge.addEventListener("pointerdown", (e) => {
    e.stopPropagation();
    gesture = "resize";
    post("/api/surface/resize", { phase: "down", dir: edge.dataset.dir, x: e.clientX, y: e.clientY });
  });
}
window.addEventListener("pointermove", (e) => {
  if (!gesture) return;
  const url = gesture === "drag" ? "/api/surface/pointer" : "/api/surface/resize";
  post(url, { phase: "move", x: e.clientX, y: e.clientY }).then(render);
});
window.addEventListener("pointerup", async (e) => {
  if (!gesture) return;
  const url = gesture === "drag" ? "/api/surface/pointer" : "/api/surface/resize";
  gesture = null;
  render(await post(url, { phase: "up", x: e.clientX, y: e.clientY }));
  render(await fetch("/api/surface").then(r => r.json()));
});

// Call state over SSE; geometry commits from other tabs over the sync bus.
const events = new EventSource("/api/call/events");
events.onmessage = (evt) => {
  const s = JSON.parse(evt.data);
  document.getElementById("status").textContent = s.status || "idle";
  document.getElementById("name").textContent = (s.counterparty || {}).name || "";
  document.getElementById("number").textContent = (s.counterparty || {}).address || "";
};
const sync = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws/sync");
sync.onmessage = (evt) => {
  const msg = JSON.parse(evt.data);
  if (msg.kind === "position-update" || msg.kind === "size-update") {
    fetch("/api/surface").then(r => r.json()).then(render);
  }
};

for (const btn of document.querySelectorAll("button[data-action]")) {
  btn.onclick = () => {
    const action = btn.dataset.action;
    if (action === "place") {
      post("/api/call/place", { number: document.getElementById("dial").value });
      return;
    }
    post("/api/call/" + action, {});
  };
}

mount();
</script>
</body>
</html>
`))
