// Package tab assembles one tab's view of the call surface: the call store,
// the geometry controllers, the sync channel, persisted preferences and the
// pop-out coordinator, wired so every piece hears the others.
package tab

import (
	"context"
	"errors"
	"log"

	"github.com/hvermaas/petrel/internal/call"
	"github.com/hvermaas/petrel/internal/popout"
	"github.com/hvermaas/petrel/internal/prefs"
	"github.com/hvermaas/petrel/internal/surface"
	"github.com/hvermaas/petrel/internal/tabsync"
	"github.com/hvermaas/petrel/internal/telephony"
)

const (
	defaultWidth  = 600
	defaultHeight = 640
)

// Options configures a Tab. Client, Sync and Prefs are required; the rest
// has working defaults.
type Options struct {
	Client   telephony.Client
	Sync     *tabsync.Channel
	Prefs    *prefs.Store
	Opener   popout.Opener
	Origin   string
	Viewport surface.Viewport
	Frames   surface.Frames
	Pop      popout.Config

	// OwnsLeg makes this tab subscribe to provider events. The tab holding
	// the media leg sets it; mirror tabs follow the sync channel only.
	OwnsLeg bool
}

// Tab is one open CRM tab with a mounted call surface.
type Tab struct {
	store  *call.Store
	sync   *tabsync.Channel
	prefs  *prefs.Store
	state  *surface.State
	drag   *surface.DragController
	resize *surface.ResizeController
	pop    *popout.Coordinator
	frames surface.Frames

	legCancel     func()
	sessionCancel func()
	done          chan struct{}
}

func New(opts Options) *Tab {
	if opts.Frames == nil {
		opts.Frames = surface.NewTickerFrames()
	}
	if opts.Viewport == (surface.Viewport{}) {
		opts.Viewport = surface.Viewport{Width: 1920, Height: 1080}
	}

	size := surface.Size{Width: defaultWidth, Height: defaultHeight}
	if w, err := opts.Prefs.Width(); err == nil {
		size.Width = w
	}
	pos := surface.DefaultPosition(opts.Viewport, size)
	if p, err := opts.Prefs.Position(); err == nil {
		pos = surface.ClampPosition(p, size, opts.Viewport)
	}

	t := &Tab{
		sync:   opts.Sync,
		prefs:  opts.Prefs,
		state:  surface.NewState(pos, size, opts.Viewport),
		frames: opts.Frames,
		done:   make(chan struct{}),
	}
	t.store = call.NewStore(opts.Client, opts.Sync)

	t.pop = popout.New(opts.Opener, opts.Origin, opts.Pop, popout.Callbacks{
		OnReady:  t.pushCallState,
		OnAction: t.applyWindowAction,
	})

	t.drag = surface.NewDragController(t.state, opts.Frames,
		t.commitPosition,
		t.pop.Arm,
		t.releaseOutOfBounds,
	)
	t.resize = surface.NewResizeController(t.state, opts.Frames, t.commitSize)

	opts.Sync.OnMessage(t.handleSync)

	// The store feeds the pop-out window so it tracks call transitions.
	sessions, cancel := t.store.Subscribe()
	t.sessionCancel = cancel
	go t.followSessions(sessions)

	if opts.OwnsLeg {
		events, cancel := opts.Client.Subscribe()
		t.legCancel = cancel
		go t.followLeg(events)
	}
	return t
}

// Store exposes the call store for the UI layer.
func (t *Tab) Store() *call.Store { return t.store }

// Surface exposes the geometry state for rendering.
func (t *Tab) Surface() *surface.State { return t.state }

// PopOut exposes the pop-out coordinator, mainly for window message
// routing.
func (t *Tab) PopOut() *popout.Coordinator { return t.pop }

func (t *Tab) followLeg(events chan *telephony.LegEvent) {
	for {
		select {
		case <-t.done:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			t.store.ApplyLeg(evt)
		}
	}
}

func (t *Tab) followSessions(sessions chan *call.Session) {
	for {
		select {
		case <-t.done:
			return
		case sess, ok := <-sessions:
			if !ok {
				return
			}
			t.pop.PushState(sess)
			if sess.Idle() {
				t.pop.ReturnToMain()
			}
		}
	}
}

// handleSync routes inbound sync messages to the piece that mirrors them.
func (t *Tab) handleSync(msg tabsync.Message) {
	switch msg.Kind {
	case tabsync.KindCallIncoming, tabsync.KindCallAnswered, tabsync.KindCallEnded, tabsync.KindCallAction:
		t.store.ApplySync(msg)
	case tabsync.KindPositionUpdate:
		var p tabsync.PositionPayload
		if err := msg.DecodeData(&p); err != nil {
			log.Printf("TAB: bad position payload: %v", err)
			return
		}
		t.drag.ApplyRemote(surface.Point{X: p.X, Y: p.Y})
	case tabsync.KindSizeUpdate:
		var p tabsync.SizePayload
		if err := msg.DecodeData(&p); err != nil {
			log.Printf("TAB: bad size payload: %v", err)
			return
		}
		t.resize.ApplyRemoteWidth(p.Width)
	default:
		log.Printf("TAB: unknown sync message %q", msg.Kind)
	}
}

// commitPosition runs at drag end: persist, then tell the other tabs.
func (t *Tab) commitPosition(p surface.Point) {
	if err := t.prefs.SetPosition(p); err != nil {
		log.Printf("TAB: persist position: %v", err)
	}
	t.sync.Send(tabsync.KindPositionUpdate, tabsync.PositionPayload{X: p.X, Y: p.Y})
}

// commitSize runs at resize end. Width is shared; a west or north resize
// also commits the compensated position.
func (t *Tab) commitSize(size surface.Size, pos surface.Point, moved bool) {
	if err := t.prefs.SetWidth(size.Width); err != nil {
		log.Printf("TAB: persist width: %v", err)
	}
	t.sync.Send(tabsync.KindSizeUpdate, tabsync.SizePayload{Width: size.Width})
	if moved {
		t.commitPosition(pos)
	}
}

// releaseOutOfBounds runs when a drag ends past the viewport edge: the
// surface leaves the tab for its own window.
func (t *Tab) releaseOutOfBounds(at surface.Point) {
	sess := t.store.Current()
	if sess.Idle() {
		// Nothing to pop out; disarm and stay docked.
		t.pop.Arm(false)
		return
	}
	t.pop.CreatePopOut(sess.ID)
}

// pushCallState answers the pop-out window's ready with the current call.
func (t *Tab) pushCallState(sessionID string) {
	t.pop.PushState(t.store.Current())
}

// applyWindowAction executes a call action performed in the pop-out
// window. Without the media leg in this tab the action is dropped; the
// owning tab's window would have it.
func (t *Tab) applyWindowAction(sessionID, action string) {
	var err error
	switch action {
	case "answer":
		err = t.store.Answer()
	case "hangup":
		err = t.store.HangUp()
	case tabsync.ActionMute:
		err = t.store.Mute()
	case tabsync.ActionUnmute:
		err = t.store.Unmute()
	case tabsync.ActionHold:
		err = t.store.Hold()
	case tabsync.ActionUnhold:
		err = t.store.Unhold()
	case tabsync.ActionRecordStart:
		err = t.store.StartRecording()
	case tabsync.ActionRecordStop:
		err = t.store.StopRecording()
	default:
		log.Printf("TAB: unknown window action %q", action)
		return
	}
	if errors.Is(err, telephony.ErrNoMediaLeg) {
		log.Printf("TAB: window action %q needs the media leg", action)
	} else if err != nil {
		log.Printf("TAB: window action %q: %v", action, err)
	}
}

// PointerDown starts a drag when the press lands on the handle. While the
// surface lives in the pop-out window the tab shows a placeholder; pressing
// it focuses the window instead.
func (t *Tab) PointerDown(p surface.Point, onHandle bool) {
	if t.pop.PoppedOut() {
		t.pop.Focus()
		return
	}
	t.drag.PointerDown(p, onHandle)
}

func (t *Tab) PointerMove(p surface.Point) { t.drag.PointerMove(p) }
func (t *Tab) PointerUp(p surface.Point)   { t.drag.PointerUp(p) }

// ResizeDown starts a resize from one of the eight handles.
func (t *Tab) ResizeDown(dir surface.Direction, p surface.Point) {
	if t.pop.PoppedOut() {
		return
	}
	t.resize.PointerDown(dir, p)
}

func (t *Tab) ResizeMove(p surface.Point) { t.resize.PointerMove(p) }
func (t *Tab) ResizeUp(p surface.Point)   { t.resize.PointerUp(p) }

// SetViewport records a host window resize.
func (t *Tab) SetViewport(vp surface.Viewport) { t.state.SetViewport(vp) }

// ResetPosition aborts any gesture and puts the surface back at the
// default mount position, shared with the other tabs.
func (t *Tab) ResetPosition() {
	t.drag.Reset()
	t.resize.Reset()
	p := surface.DefaultPosition(t.state.Viewport(), t.state.Size())
	t.state.SetPosition(p)
	t.commitPosition(p)
}

// PlaceCall dials from this tab, making it the leg owner.
func (t *Tab) PlaceCall(ctx context.Context, name, number string) (string, error) {
	return t.store.PlaceCall(ctx, name, number)
}

// Close tears the tab down. The pop-out window, if any, is pulled back
// first so the call UI is not orphaned.
func (t *Tab) Close() {
	select {
	case <-t.done:
		return
	default:
	}
	t.pop.ReturnToMain()
	close(t.done)
	if t.legCancel != nil {
		t.legCancel()
	}
	if t.sessionCancel != nil {
		t.sessionCancel()
	}
	t.frames.Stop()
}
