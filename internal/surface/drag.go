package surface

import "sync"

// dragGesture is the snapshot taken at pointer-down. nil means no drag is
// in flight.
type dragGesture struct {
	startPointer Point
	startPos     Point
	lastPointer  Point
	oob          bool
}

// DragController tracks a pointer drag on the surface's handle. Mid-gesture
// the surface follows the pointer freely, including past viewport edges; on
// release the position is clamped, edge-snapped and committed. Crossing the
// out-of-bounds threshold is reported both ways so the pop-out affordance
// can arm and disarm while the drag is still live.
type DragController struct {
	state  *State
	frames Frames

	// onCommit fires once per completed drag with the final position.
	onCommit func(Point)
	// onOutOfBounds fires when the out-of-bounds condition changes.
	onOutOfBounds func(bool)
	// onReleaseOutOfBounds fires instead of onCommit when the pointer is
	// released past the threshold. The pre-gesture position is untouched.
	onReleaseOutOfBounds func(Point)

	// mu guards gesture and its fields: pointer events arrive on the
	// caller's goroutine while the frame scheduler applies on its own.
	mu      sync.Mutex
	gesture *dragGesture
}

func NewDragController(state *State, frames Frames, onCommit func(Point), onOutOfBounds func(bool), onReleaseOutOfBounds func(Point)) *DragController {
	return &DragController{
		state:                state,
		frames:               frames,
		onCommit:             onCommit,
		onOutOfBounds:        onOutOfBounds,
		onReleaseOutOfBounds: onReleaseOutOfBounds,
	}
}

// Dragging reports whether a gesture is in flight.
func (d *DragController) Dragging() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gesture != nil
}

// PointerDown begins a drag when the pointer lands on the drag handle.
// Presses elsewhere on the surface are ignored so buttons and text stay
// interactive.
func (d *DragController) PointerDown(p Point, onHandle bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !onHandle || d.gesture != nil {
		return
	}
	d.gesture = &dragGesture{
		startPointer: p,
		startPos:     d.state.Position(),
		lastPointer:  p,
	}
}

// PointerMove records the latest pointer position and schedules a
// once-per-frame visual update.
func (d *DragController) PointerMove(p Point) {
	d.mu.Lock()
	g := d.gesture
	if g == nil {
		d.mu.Unlock()
		return
	}
	g.lastPointer = p
	d.mu.Unlock()

	d.frames.Request(func() {
		d.mu.Lock()
		// The gesture may have ended between scheduling and the frame.
		if d.gesture != g {
			d.mu.Unlock()
			return
		}
		changed, oob := d.applyLocked(g)
		d.mu.Unlock()
		if changed && d.onOutOfBounds != nil {
			d.onOutOfBounds(oob)
		}
	})
}

// applyLocked moves the surface to the gesture's candidate position and
// updates the out-of-bounds flag. Caller holds d.mu; the returned change
// flag lets the caller notify after unlocking.
func (d *DragController) applyLocked(g *dragGesture) (changed, oob bool) {
	pos := Point{
		X: g.startPos.X + g.lastPointer.X - g.startPointer.X,
		Y: g.startPos.Y + g.lastPointer.Y - g.startPointer.Y,
	}
	d.state.SetPosition(pos)
	oob = OutOfBounds(pos, d.state.Size(), d.state.Viewport(), OutOfBoundsThreshold)
	if oob != g.oob {
		g.oob = oob
		changed = true
	}
	return changed, oob
}

// PointerUp ends the drag. In bounds, the position is clamped into the
// viewport, snapped to nearby edges and committed. Out of bounds, nothing
// is committed; the release position goes to onReleaseOutOfBounds and the
// surface restores its pre-gesture position.
func (d *DragController) PointerUp(p Point) {
	d.mu.Lock()
	g := d.gesture
	if g == nil {
		d.mu.Unlock()
		return
	}
	g.lastPointer = p
	changed, oob := d.applyLocked(g) // final pointer position wins over any pending frame
	d.gesture = nil

	var final Point
	if g.oob {
		d.state.SetPosition(g.startPos)
	} else {
		size, vp := d.state.Size(), d.state.Viewport()
		final = SnapToEdges(ClampPosition(d.state.Position(), size, vp), size, vp)
		d.state.SetPosition(final)
	}
	d.mu.Unlock()

	if changed && d.onOutOfBounds != nil {
		d.onOutOfBounds(oob)
	}
	if g.oob {
		if d.onReleaseOutOfBounds != nil {
			d.onReleaseOutOfBounds(p)
		}
		return
	}
	if d.onCommit != nil {
		d.onCommit(final)
	}
}

// Reset aborts any in-flight gesture and restores the pre-gesture position
// without committing.
func (d *DragController) Reset() {
	d.mu.Lock()
	g := d.gesture
	if g == nil {
		d.mu.Unlock()
		return
	}
	d.gesture = nil
	d.state.SetPosition(g.startPos)
	d.mu.Unlock()
	if g.oob && d.onOutOfBounds != nil {
		d.onOutOfBounds(false)
	}
}

// ApplyRemote mirrors a position committed by another tab. Ignored while a
// local drag is in flight; the local gesture wins and recommits on release.
func (d *DragController) ApplyRemote(p Point) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gesture != nil {
		return
	}
	size, vp := d.state.Size(), d.state.Viewport()
	d.state.SetPosition(ClampPosition(p, size, vp))
}
