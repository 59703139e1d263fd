package surface

import (
	"sync"
	"testing"
	"time"
)

func newDragFixture(t *testing.T) (*State, *ManualFrames, *DragController, *[]Point, *[]bool, *[]Point) {
	t.Helper()
	state := NewState(Point{X: 400, Y: 200}, Size{Width: 900, Height: 700}, Viewport{Width: 1920, Height: 1080})
	frames := NewManualFrames()
	var commits []Point
	var oobChanges []bool
	var releases []Point
	ctrl := NewDragController(state, frames,
		func(p Point) { commits = append(commits, p) },
		func(oob bool) { oobChanges = append(oobChanges, oob) },
		func(p Point) { releases = append(releases, p) },
	)
	return state, frames, ctrl, &commits, &oobChanges, &releases
}

func TestDragIgnoresPressOffHandle(t *testing.T) {
	_, _, ctrl, commits, _, _ := newDragFixture(t)
	ctrl.PointerDown(Point{X: 500, Y: 300}, false)
	if ctrl.Dragging() {
		t.Fatal("press off the handle must not start a drag")
	}
	ctrl.PointerUp(Point{X: 500, Y: 300})
	if len(*commits) != 0 {
		t.Fatalf("expected no commits, got %+v", *commits)
	}
}

func TestDragCommitsClampedPosition(t *testing.T) {
	state, frames, ctrl, commits, _, _ := newDragFixture(t)
	ctrl.PointerDown(Point{X: 450, Y: 250}, true)
	// Drag left so the surface sits at x=-40: past the edge but inside the
	// pop-out threshold.
	ctrl.PointerMove(Point{X: 10, Y: 250})
	frames.Pump()
	if got := state.Position().X; got != -40 {
		t.Fatalf("expected mid-gesture x=-40, got %d", got)
	}
	ctrl.PointerUp(Point{X: 10, Y: 250})
	if len(*commits) != 1 {
		t.Fatalf("expected one commit, got %+v", *commits)
	}
	if got := (*commits)[0]; got.X != 0 || got.Y != 200 {
		t.Fatalf("expected commit at (0, 200), got %+v", got)
	}
	if state.Position() != (*commits)[0] {
		t.Fatalf("state and commit disagree: %+v vs %+v", state.Position(), (*commits)[0])
	}
}

func TestDragPastThresholdSignalsAndDoesNotCommit(t *testing.T) {
	state, frames, ctrl, commits, oobChanges, releases := newDragFixture(t)
	ctrl.PointerDown(Point{X: 450, Y: 250}, true)
	ctrl.PointerMove(Point{X: -30, Y: 250}) // x=-80, 30px past the threshold
	frames.Pump()
	if len(*oobChanges) != 1 || !(*oobChanges)[0] {
		t.Fatalf("expected one out-of-bounds arm, got %+v", *oobChanges)
	}
	ctrl.PointerUp(Point{X: -30, Y: 250})
	if len(*commits) != 0 {
		t.Fatalf("out-of-bounds release must not commit, got %+v", *commits)
	}
	if len(*releases) != 1 {
		t.Fatalf("expected one out-of-bounds release, got %+v", *releases)
	}
	if got := state.Position(); got.X != 400 || got.Y != 200 {
		t.Fatalf("expected pre-gesture position restored, got %+v", got)
	}
}

func TestDragOutOfBoundsDisarmsOnReturn(t *testing.T) {
	_, frames, ctrl, _, oobChanges, _ := newDragFixture(t)
	ctrl.PointerDown(Point{X: 450, Y: 250}, true)
	ctrl.PointerMove(Point{X: -30, Y: 250})
	frames.Pump()
	ctrl.PointerMove(Point{X: 450, Y: 250})
	frames.Pump()
	want := []bool{true, false}
	if len(*oobChanges) != 2 || (*oobChanges)[0] != want[0] || (*oobChanges)[1] != want[1] {
		t.Fatalf("expected arm then disarm, got %+v", *oobChanges)
	}
}

func TestDragEdgeSnap(t *testing.T) {
	cases := []struct {
		name  string
		endX  int
		wantX int
	}{
		{"inside threshold snaps", 15, 0},
		{"outside threshold stays", 25, 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, frames, ctrl, commits, _, _ := newDragFixture(t)
			ctrl.PointerDown(Point{X: 450, Y: 250}, true)
			ctrl.PointerMove(Point{X: 450 + tc.endX - 400, Y: 250})
			frames.Pump()
			ctrl.PointerUp(Point{X: 450 + tc.endX - 400, Y: 250})
			if len(*commits) != 1 {
				t.Fatalf("expected one commit, got %+v", *commits)
			}
			if got := (*commits)[0].X; got != tc.wantX {
				t.Fatalf("expected committed x=%d, got %d", tc.wantX, got)
			}
		})
	}
}

func TestDragCoalescesMovesPerFrame(t *testing.T) {
	state, frames, ctrl, _, _, _ := newDragFixture(t)
	ctrl.PointerDown(Point{X: 450, Y: 250}, true)
	ctrl.PointerMove(Point{X: 460, Y: 250})
	ctrl.PointerMove(Point{X: 470, Y: 250})
	ctrl.PointerMove(Point{X: 480, Y: 250})
	if got := state.Position().X; got != 400 {
		t.Fatalf("position must not change before the frame, got %d", got)
	}
	if !frames.Pump() {
		t.Fatal("expected a pending frame")
	}
	if got := state.Position().X; got != 430 {
		t.Fatalf("expected latest move applied, got x=%d", got)
	}
	if frames.Pump() {
		t.Fatal("expected no second pending frame")
	}
}

func TestDragResetRestoresWithoutCommit(t *testing.T) {
	state, frames, ctrl, commits, _, _ := newDragFixture(t)
	ctrl.PointerDown(Point{X: 450, Y: 250}, true)
	ctrl.PointerMove(Point{X: 600, Y: 400})
	frames.Pump()
	ctrl.Reset()
	if len(*commits) != 0 {
		t.Fatalf("reset must not commit, got %+v", *commits)
	}
	if got := state.Position(); got.X != 400 || got.Y != 200 {
		t.Fatalf("expected pre-gesture position, got %+v", got)
	}
	if ctrl.Dragging() {
		t.Fatal("reset must end the gesture")
	}
}

func TestDragSurvivesTickerFramesUnderConcurrentMoves(t *testing.T) {
	state := NewState(Point{X: 400, Y: 200}, Size{Width: 900, Height: 700}, Viewport{Width: 1920, Height: 1080})
	frames := NewTickerFrames()
	defer frames.Stop()

	var mu sync.Mutex
	var commits []Point
	ctrl := NewDragController(state, frames,
		func(p Point) {
			mu.Lock()
			commits = append(commits, p)
			mu.Unlock()
		},
		nil, nil,
	)

	ctrl.PointerDown(Point{X: 450, Y: 250}, true)

	// Moves arrive from another goroutine while the ticker applies frames
	// on its own; only the synchronization inside the controller keeps the
	// gesture snapshot consistent.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			ctrl.PointerMove(Point{X: 450 + i, Y: 250 + i/2})
			time.Sleep(time.Millisecond)
		}
	}()
	wg.Wait()

	ctrl.PointerUp(Point{X: 650, Y: 350})

	mu.Lock()
	defer mu.Unlock()
	if len(commits) != 1 {
		t.Fatalf("expected one commit, got %+v", commits)
	}
	// Release wins over any frame still in flight: down at (450,250),
	// up at (650,350) moves the surface by (200,100).
	if got := commits[0]; got.X != 600 || got.Y != 300 {
		t.Fatalf("expected commit at (600, 300), got %+v", got)
	}
	if state.Position() != commits[0] {
		t.Fatalf("state and commit disagree: %+v vs %+v", state.Position(), commits[0])
	}
}

func TestDragIgnoresRemoteDuringGesture(t *testing.T) {
	state, frames, ctrl, _, _, _ := newDragFixture(t)
	ctrl.PointerDown(Point{X: 450, Y: 250}, true)
	ctrl.PointerMove(Point{X: 500, Y: 250})
	frames.Pump()
	ctrl.ApplyRemote(Point{X: 0, Y: 0})
	if got := state.Position().X; got != 450 {
		t.Fatalf("remote position must not override a live drag, got x=%d", got)
	}
	ctrl.PointerUp(Point{X: 500, Y: 250})
	ctrl.ApplyRemote(Point{X: 100, Y: 100})
	if got := state.Position(); got.X != 100 || got.Y != 100 {
		t.Fatalf("expected remote position applied after release, got %+v", got)
	}
}
