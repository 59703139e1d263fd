// Package surface implements free positioning and resizing of the floating
// call surface: pointer-tracked drag with edge snapping and out-of-bounds
// detection, and eight-handle resize with position compensation. All
// mid-gesture state is local to the tab; only gesture-end commits reach the
// cross-tab store.
package surface

// Gesture tuning. Distances are viewport pixels.
const (
	// OutOfBoundsThreshold is how far past a viewport edge a dragged surface
	// must travel before the pop-out coordinator is signaled.
	OutOfBoundsThreshold = 50

	// EdgeSnapThreshold pins a committed position exactly to an edge when it
	// lands this close to one.
	EdgeSnapThreshold = 20

	// WidthSnapThreshold pins a committed width to the nearest preferred
	// width when it lands this close to one.
	WidthSnapThreshold = 30

	MinWidth  = 320
	MaxWidth  = 1400
	MinHeight = 360
	MaxHeight = 1000

	// DefaultMargin offsets the default mount position from the top-right
	// viewport corner.
	DefaultMargin = 24
)

// PreferredWidths are the snap targets for resize commits.
var PreferredWidths = []int{420, 600, 800, 1000, 1200}

// Point is a position in viewport pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a surface extent in pixels. Width is the shared, persisted
// dimension; height stays per-tab.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Viewport is the visible extent of the hosting window.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultPosition computes the mount position: top-right with a fixed
// margin. Used when no position has ever been committed ("default"
// sentinel) and by the reset action.
func DefaultPosition(vp Viewport, s Size) Point {
	x := vp.Width - s.Width - DefaultMargin
	if x < 0 {
		x = 0
	}
	return Point{X: x, Y: DefaultMargin}
}

// ClampPosition forces p into [0, viewport-surface] on both axes.
func ClampPosition(p Point, s Size, vp Viewport) Point {
	return Point{
		X: clampInt(p.X, 0, maxInt(0, vp.Width-s.Width)),
		Y: clampInt(p.Y, 0, maxInt(0, vp.Height-s.Height)),
	}
}

// SnapToEdges pins an already-clamped position exactly to any edge it lands
// within EdgeSnapThreshold of.
func SnapToEdges(p Point, s Size, vp Viewport) Point {
	maxX := maxInt(0, vp.Width-s.Width)
	maxY := maxInt(0, vp.Height-s.Height)
	if p.X <= EdgeSnapThreshold {
		p.X = 0
	} else if maxX-p.X <= EdgeSnapThreshold {
		p.X = maxX
	}
	if p.Y <= EdgeSnapThreshold {
		p.Y = 0
	} else if maxY-p.Y <= EdgeSnapThreshold {
		p.Y = maxY
	}
	return p
}

// OutOfBounds reports whether the surface at p extends more than threshold
// past any viewport edge.
func OutOfBounds(p Point, s Size, vp Viewport, threshold int) bool {
	if p.X < -threshold || p.Y < -threshold {
		return true
	}
	if p.X+s.Width > vp.Width+threshold {
		return true
	}
	if p.Y+s.Height > vp.Height+threshold {
		return true
	}
	return false
}

// SnapWidth pins w to the nearest preferred width within
// WidthSnapThreshold, or returns it unchanged.
func SnapWidth(w int, preferred []int) int {
	best, bestDist := w, WidthSnapThreshold+1
	for _, p := range preferred {
		d := absInt(w - p)
		if d <= WidthSnapThreshold && d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

// ClampWidth forces w into [MinWidth, MaxWidth].
func ClampWidth(w int) int { return clampInt(w, MinWidth, MaxWidth) }

// ClampHeight forces h into [MinHeight, MaxHeight].
func ClampHeight(h int) int { return clampInt(h, MinHeight, MaxHeight) }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
