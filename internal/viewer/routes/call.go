package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hvermaas/petrel/internal/call"
	"github.com/hvermaas/petrel/internal/telephony"
)

// registerCallRoutes exposes the call session and its actions to the
// softphone UI.
func registerCallRoutes(mux *http.ServeMux, d Deps) {
	store := d.Tab.Store()

	// GET /api/call/session — current session snapshot.
	handleGet(mux, "/api/call/session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, store.Current())
	})

	// POST /api/call/place
	handlePost(mux, "/api/call/place", func(w http.ResponseWriter, r *http.Request, req struct {
		Name   string `json:"name"`
		Number string `json:"number"`
	}) {
		if req.Number == "" {
			http.Error(w, "missing number", http.StatusBadRequest)
			return
		}
		id, err := d.Tab.PlaceCall(r.Context(), req.Name, req.Number)
		if err != nil {
			http.Error(w, fmt.Sprintf("place call failed: %v", err), http.StatusConflict)
			return
		}
		writeJSON(w, map[string]string{"status": "placed", "session_id": id})
	})

	actions := map[string]func() error{
		"answer":       store.Answer,
		"hangup":       store.HangUp,
		"mute":         store.Mute,
		"unmute":       store.Unmute,
		"hold":         store.Hold,
		"unhold":       store.Unhold,
		"record-start": store.StartRecording,
		"record-stop":  store.StopRecording,
	}
	for name, action := range actions {
		do := action
		handlePost(mux, "/api/call/"+name, func(w http.ResponseWriter, r *http.Request, _ struct{}) {
			if err := do(); err != nil {
				writeActionError(w, err)
				return
			}
			writeJSON(w, store.Current())
		})
	}

	// POST /api/call/dtmf
	handlePost(mux, "/api/call/dtmf", func(w http.ResponseWriter, r *http.Request, req struct {
		Tone string `json:"tone"`
	}) {
		if req.Tone == "" {
			http.Error(w, "missing tone", http.StatusBadRequest)
			return
		}
		if err := store.SendTone(req.Tone); err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "sent"})
	})

	// GET /api/call/events — session snapshots over SSE.
	handleGet(mux, "/api/call/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		sseHeaders(w)

		sessions, cancel := store.Subscribe()
		defer cancel()

		writeSessionSSE(w, store.Current())
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case sess, ok := <-sessions:
				if !ok {
					return
				}
				writeSessionSSE(w, *sess)
				flusher.Flush()
			}
		}
	})
}

func writeActionError(w http.ResponseWriter, err error) {
	if errors.Is(err, telephony.ErrNoMediaLeg) {
		http.Error(w, "no media leg in this tab", http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeSessionSSE(w http.ResponseWriter, sess call.Session) {
	b, _ := json.Marshal(sess)
	_, _ = w.Write([]byte("event: session\n"))
	_, _ = w.Write([]byte("data: " + string(b) + "\n\n"))
}
