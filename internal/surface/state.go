package surface

import "sync"

// State holds the surface's current geometry. Controllers mutate it
// mid-gesture for local rendering; committed values are reported through
// their callbacks.
type State struct {
	mu   sync.RWMutex
	pos  Point
	size Size
	vp   Viewport
}

func NewState(pos Point, size Size, vp Viewport) *State {
	return &State{pos: pos, size: size, vp: vp}
}

func (s *State) Position() Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pos
}

func (s *State) SetPosition(p Point) {
	s.mu.Lock()
	s.pos = p
	s.mu.Unlock()
}

func (s *State) Size() Size {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *State) SetSize(sz Size) {
	s.mu.Lock()
	s.size = sz
	s.mu.Unlock()
}

func (s *State) Viewport() Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vp
}

// SetViewport records a host window resize and clamps the surface back into
// view if the shrink pushed it out.
func (s *State) SetViewport(vp Viewport) {
	s.mu.Lock()
	s.vp = vp
	s.pos = ClampPosition(s.pos, s.size, vp)
	s.mu.Unlock()
}
