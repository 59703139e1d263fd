package routes

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hvermaas/petrel/internal/prefs"
	"github.com/hvermaas/petrel/internal/surface"
)

// resizeDirs maps the wire names of the eight resize handles.
var resizeDirs = map[string]surface.Direction{
	"n": surface.North, "s": surface.South, "e": surface.East, "w": surface.West,
	"ne": surface.NorthEast, "nw": surface.NorthWest,
	"se": surface.SouthEast, "sw": surface.SouthWest,
}

// registerSurfaceRoutes exposes surface geometry and layout preferences.
func registerSurfaceRoutes(mux *http.ServeMux, d Deps) {
	// GET /api/surface — geometry plus layout prefs in one shot for mount.
	handleGet(mux, "/api/surface", func(w http.ResponseWriter, r *http.Request) {
		st := d.Tab.Surface()
		writeJSON(w, map[string]any{
			"position":    st.Position(),
			"size":        st.Size(),
			"viewport":    st.Viewport(),
			"card_layout": d.Prefs.CardLayout(),
			"density":     d.Prefs.Density(),
			"popped_out":  d.Tab.PopOut().PoppedOut(),
			"pref_widths": surface.PreferredWidths,
		})
	})

	// POST /api/surface/viewport — the hosting window resized.
	handlePost(mux, "/api/surface/viewport", func(w http.ResponseWriter, r *http.Request, req struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}) {
		if req.Width <= 0 || req.Height <= 0 {
			http.Error(w, "bad viewport", http.StatusBadRequest)
			return
		}
		d.Tab.SetViewport(surface.Viewport{Width: req.Width, Height: req.Height})
		writeJSON(w, map[string]string{"status": "ok"})
	})

	// POST /api/surface/pointer — drag gesture events from the hosting
	// page. The controller coalesces moves per frame; the route just
	// forwards them.
	handlePost(mux, "/api/surface/pointer", func(w http.ResponseWriter, r *http.Request, req struct {
		Phase    string `json:"phase"`
		X        int    `json:"x"`
		Y        int    `json:"y"`
		OnHandle bool   `json:"on_handle"`
	}) {
		p := surface.Point{X: req.X, Y: req.Y}
		switch req.Phase {
		case "down":
			d.Tab.PointerDown(p, req.OnHandle)
		case "move":
			d.Tab.PointerMove(p)
		case "up":
			d.Tab.PointerUp(p)
		default:
			http.Error(w, "bad phase", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"position": d.Tab.Surface().Position()})
	})

	// POST /api/surface/resize — resize gesture events; down carries the
	// handle direction.
	handlePost(mux, "/api/surface/resize", func(w http.ResponseWriter, r *http.Request, req struct {
		Phase string `json:"phase"`
		Dir   string `json:"dir"`
		X     int    `json:"x"`
		Y     int    `json:"y"`
	}) {
		p := surface.Point{X: req.X, Y: req.Y}
		switch req.Phase {
		case "down":
			dir, ok := resizeDirs[req.Dir]
			if !ok {
				http.Error(w, "bad direction", http.StatusBadRequest)
				return
			}
			d.Tab.ResizeDown(dir, p)
		case "move":
			d.Tab.ResizeMove(p)
		case "up":
			d.Tab.ResizeUp(p)
		default:
			http.Error(w, "bad phase", http.StatusBadRequest)
			return
		}
		st := d.Tab.Surface()
		writeJSON(w, map[string]any{"position": st.Position(), "size": st.Size()})
	})

	// POST /api/surface/reset — back to the default mount position.
	handlePost(mux, "/api/surface/reset", func(w http.ResponseWriter, r *http.Request, _ struct{}) {
		d.Tab.ResetPosition()
		writeJSON(w, d.Tab.Surface().Position())
	})

	// POST /api/surface/layout
	handlePost(mux, "/api/surface/layout", func(w http.ResponseWriter, r *http.Request, req struct {
		CardLayout string `json:"card_layout"`
		Density    string `json:"density"`
	}) {
		if req.CardLayout != "" {
			if err := d.Prefs.SetCardLayout(req.CardLayout); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if req.Density != "" {
			if err := d.Prefs.SetDensity(req.Density); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		writeJSON(w, map[string]string{
			"card_layout": d.Prefs.CardLayout(),
			"density":     d.Prefs.Density(),
		})
	})

	// GET /api/surface/prefs — persisted values only, ErrNotSet surfaces
	// as null so the client knows to use defaults.
	handleGet(mux, "/api/surface/prefs", func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{
			"card_layout": d.Prefs.CardLayout(),
			"density":     d.Prefs.Density(),
		}
		if p, err := d.Prefs.Position(); err == nil {
			out["position"] = p
		} else if !errors.Is(err, prefs.ErrNotSet) {
			http.Error(w, fmt.Sprintf("read prefs: %v", err), http.StatusInternalServerError)
			return
		}
		if wd, err := d.Prefs.Width(); err == nil {
			out["width"] = wd
		} else if !errors.Is(err, prefs.ErrNotSet) {
			http.Error(w, fmt.Sprintf("read prefs: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, out)
	})
}
