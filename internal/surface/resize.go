package surface

import "sync"

// Direction names a resize handle by the edge or corner it sits on.
type Direction string

const (
	North     Direction = "n"
	South     Direction = "s"
	East      Direction = "e"
	West      Direction = "w"
	NorthEast Direction = "ne"
	NorthWest Direction = "nw"
	SouthEast Direction = "se"
	SouthWest Direction = "sw"
)

func (d Direction) hasNorth() bool { return d == North || d == NorthEast || d == NorthWest }
func (d Direction) hasSouth() bool { return d == South || d == SouthEast || d == SouthWest }
func (d Direction) hasEast() bool  { return d == East || d == NorthEast || d == SouthEast }
func (d Direction) hasWest() bool  { return d == West || d == NorthWest || d == SouthWest }

type resizeGesture struct {
	dir          Direction
	startPointer Point
	startPos     Point
	startSize    Size
	lastPointer  Point
}

// ResizeController tracks a resize gesture from any of the eight handles.
// Handles on the west or north edge move the position as well as the size
// so the opposite edge stays fixed under the pointer. Dimensions are
// clamped before position compensation, so hitting a size limit never
// drags the anchored edge. The committed width snaps to the nearest
// preferred width.
type ResizeController struct {
	state  *State
	frames Frames

	// onCommit fires once per completed resize with the final size, plus
	// the final position when compensation moved the surface.
	onCommit func(Size, Point, bool)

	// mu guards gesture: pointer events arrive on the caller's goroutine
	// while the frame scheduler applies on its own.
	mu      sync.Mutex
	gesture *resizeGesture
}

func NewResizeController(state *State, frames Frames, onCommit func(size Size, pos Point, moved bool)) *ResizeController {
	return &ResizeController{state: state, frames: frames, onCommit: onCommit}
}

// Resizing reports whether a gesture is in flight.
func (r *ResizeController) Resizing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gesture != nil
}

// PointerDown begins a resize from the given handle.
func (r *ResizeController) PointerDown(dir Direction, p Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gesture != nil {
		return
	}
	r.gesture = &resizeGesture{
		dir:          dir,
		startPointer: p,
		startPos:     r.state.Position(),
		startSize:    r.state.Size(),
		lastPointer:  p,
	}
}

// PointerMove records the latest pointer position and schedules a
// once-per-frame geometry update.
func (r *ResizeController) PointerMove(p Point) {
	r.mu.Lock()
	g := r.gesture
	if g == nil {
		r.mu.Unlock()
		return
	}
	g.lastPointer = p
	r.mu.Unlock()

	r.frames.Request(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gesture != g {
			return
		}
		r.applyLocked(g, false)
	})
}

// applyLocked recomputes size and position from the gesture snapshot and
// the latest pointer. With snap set, the width additionally snaps to the
// nearest preferred width before compensation. Caller holds r.mu.
func (r *ResizeController) applyLocked(g *resizeGesture, snap bool) (Size, Point, bool) {
	dx := g.lastPointer.X - g.startPointer.X
	dy := g.lastPointer.Y - g.startPointer.Y

	w, h := g.startSize.Width, g.startSize.Height
	switch {
	case g.dir.hasEast():
		w = g.startSize.Width + dx
	case g.dir.hasWest():
		w = g.startSize.Width - dx
	}
	switch {
	case g.dir.hasSouth():
		h = g.startSize.Height + dy
	case g.dir.hasNorth():
		h = g.startSize.Height - dy
	}

	w = ClampWidth(w)
	h = ClampHeight(h)
	if snap {
		w = SnapWidth(w, PreferredWidths)
	}

	// Anchored-edge compensation uses the clamped dimensions so the far
	// edge never moves, even when the pointer overshoots a limit.
	pos, moved := g.startPos, false
	if g.dir.hasWest() {
		pos.X = g.startPos.X + g.startSize.Width - w
		moved = moved || pos.X != g.startPos.X
	}
	if g.dir.hasNorth() {
		pos.Y = g.startPos.Y + g.startSize.Height - h
		moved = moved || pos.Y != g.startPos.Y
	}

	size := Size{Width: w, Height: h}
	r.state.SetSize(size)
	r.state.SetPosition(pos)
	return size, pos, moved
}

// PointerUp ends the resize, snaps the width and commits the final
// geometry.
func (r *ResizeController) PointerUp(p Point) {
	r.mu.Lock()
	g := r.gesture
	if g == nil {
		r.mu.Unlock()
		return
	}
	g.lastPointer = p
	r.gesture = nil
	size, pos, moved := r.applyLocked(g, true)
	r.mu.Unlock()

	if r.onCommit != nil {
		r.onCommit(size, pos, moved)
	}
}

// Reset aborts any in-flight gesture and restores the pre-gesture geometry
// without committing.
func (r *ResizeController) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.gesture
	if g == nil {
		return
	}
	r.gesture = nil
	r.state.SetSize(g.startSize)
	r.state.SetPosition(g.startPos)
}

// ApplyRemoteWidth mirrors a width committed by another tab. Height is
// per-tab and untouched. Ignored while a local resize is in flight.
func (r *ResizeController) ApplyRemoteWidth(w int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gesture != nil {
		return
	}
	size := r.state.Size()
	size.Width = ClampWidth(w)
	r.state.SetSize(size)
	r.state.SetPosition(ClampPosition(r.state.Position(), size, r.state.Viewport()))
}
