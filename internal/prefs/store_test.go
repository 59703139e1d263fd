package prefs

import (
	"errors"
	"testing"

	"github.com/hvermaas/petrel/internal/surface"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUnsetKeysReportNotSet(t *testing.T) {
	s := openStore(t)
	if _, err := s.Position(); !errors.Is(err, ErrNotSet) {
		t.Fatalf("expected ErrNotSet for position, got %v", err)
	}
	if _, err := s.Width(); !errors.Is(err, ErrNotSet) {
		t.Fatalf("expected ErrNotSet for width, got %v", err)
	}
	if got := s.CardLayout(); got != LayoutExpanded {
		t.Fatalf("expected expanded default, got %q", got)
	}
	if got := s.Density(); got != DensityComfortable {
		t.Fatalf("expected comfortable default, got %q", got)
	}
}

func TestPositionRoundTrip(t *testing.T) {
	s := openStore(t)
	want := surface.Point{X: 120, Y: 48}
	if err := s.SetPosition(want); err != nil {
		t.Fatalf("set position: %v", err)
	}
	got, err := s.Position()
	if err != nil {
		t.Fatalf("read position: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestWidthClampedOnWrite(t *testing.T) {
	s := openStore(t)
	if err := s.SetWidth(5000); err != nil {
		t.Fatalf("set width: %v", err)
	}
	got, err := s.Width()
	if err != nil {
		t.Fatalf("read width: %v", err)
	}
	if got != surface.MaxWidth {
		t.Fatalf("expected width clamped to %d, got %d", surface.MaxWidth, got)
	}
}

func TestInvalidLayoutValuesRejected(t *testing.T) {
	s := openStore(t)
	if err := s.SetCardLayout("sideways"); err == nil {
		t.Fatal("expected an error for an unknown layout")
	}
	if err := s.SetDensity("dense"); err == nil {
		t.Fatal("expected an error for an unknown density")
	}
	if err := s.SetCardLayout(LayoutCompact); err != nil {
		t.Fatalf("set layout: %v", err)
	}
	if got := s.CardLayout(); got != LayoutCompact {
		t.Fatalf("expected compact, got %q", got)
	}
}

func TestChangeListenersFire(t *testing.T) {
	s := openStore(t)
	var keys []string
	s.OnChange(func(key string) { keys = append(keys, key) })

	if err := s.SetWidth(800); err != nil {
		t.Fatalf("set width: %v", err)
	}
	if err := s.SetPosition(surface.Point{X: 10, Y: 10}); err != nil {
		t.Fatalf("set position: %v", err)
	}
	if len(keys) != 2 || keys[0] != KeyWidth || keys[1] != KeyPosition {
		t.Fatalf("unexpected change notifications: %v", keys)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := openStore(t)
	if err := s.SetWidth(800); err != nil {
		t.Fatalf("set width: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := s.Width(); !errors.Is(err, ErrNotSet) {
		t.Fatalf("expected ErrNotSet after reset, got %v", err)
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SetWidth(600); err != nil {
		t.Fatalf("set width: %v", err)
	}
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Width()
	if err != nil {
		t.Fatalf("read width: %v", err)
	}
	if got != 600 {
		t.Fatalf("expected 600 after reopen, got %d", got)
	}
}
