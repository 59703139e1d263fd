// Package prefs persists surface preferences: committed position, shared
// width, card layout and density. Values survive restarts and are the seed
// every new tab starts from.
package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hvermaas/petrel/internal/surface"
)

// Namespace prefixes every key so the table can host other preference
// groups later.
const Namespace = "petrel.surface"

// Preference keys.
const (
	KeyPosition   = "position"
	KeyWidth      = "width"
	KeyCardLayout = "card-layout"
	KeyDensity    = "layout-density"
)

// Card layout values.
const (
	LayoutCompact  = "compact"
	LayoutExpanded = "expanded"
)

// Density values.
const (
	DensityComfortable = "comfortable"
	DensityCondensed   = "condensed"
)

// ErrNotSet is returned for keys that have never been written. Callers
// fall back to defaults, e.g. the top-right mount position.
var ErrNotSet = errors.New("prefs: not set")

// Store is a SQLite-backed preference store. Writes notify registered
// listeners so open tabs can follow preference changes made elsewhere in
// the app.
type Store struct {
	db   *sql.DB
	path string

	listenerMu sync.RWMutex
	listeners  []func(key string)
}

// Open opens or creates the preference database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}
	path := filepath.Join(dir, "prefs.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open prefs database: %w", err)
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure prefs database: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS prefs (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create prefs table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// OnChange registers a listener fired after every successful write.
func (s *Store) OnChange(fn func(key string)) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenerMu.Unlock()
}

func (s *Store) notify(key string) {
	s.listenerMu.RLock()
	fns := make([]func(string), len(s.listeners))
	copy(fns, s.listeners)
	s.listenerMu.RUnlock()
	for _, fn := range fns {
		fn(key)
	}
}

func (s *Store) get(key string) (string, error) {
	var v string
	err := s.db.QueryRow(
		`SELECT value FROM prefs WHERE namespace = ? AND key = ?`, Namespace, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotSet
	}
	if err != nil {
		return "", fmt.Errorf("read pref %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO prefs (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, Namespace, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write pref %s: %w", key, err)
	}
	s.notify(key)
	return nil
}

// Position returns the last committed surface position.
func (s *Store) Position() (surface.Point, error) {
	v, err := s.get(KeyPosition)
	if err != nil {
		return surface.Point{}, err
	}
	var p surface.Point
	if _, err := fmt.Sscanf(v, "%d,%d", &p.X, &p.Y); err != nil {
		return surface.Point{}, fmt.Errorf("parse position %q: %w", v, err)
	}
	return p, nil
}

// SetPosition stores a committed surface position.
func (s *Store) SetPosition(p surface.Point) error {
	return s.set(KeyPosition, fmt.Sprintf("%d,%d", p.X, p.Y))
}

// Width returns the shared surface width.
func (s *Store) Width() (int, error) {
	v, err := s.get(KeyWidth)
	if err != nil {
		return 0, err
	}
	var w int
	if _, err := fmt.Sscanf(v, "%d", &w); err != nil {
		return 0, fmt.Errorf("parse width %q: %w", v, err)
	}
	return w, nil
}

// SetWidth stores the shared surface width, clamped to the allowed range.
func (s *Store) SetWidth(w int) error {
	clamped := surface.ClampWidth(w)
	if clamped != w {
		log.Printf("PREFS: clamping width %d to %d", w, clamped)
	}
	return s.set(KeyWidth, fmt.Sprintf("%d", clamped))
}

// CardLayout returns the stored card layout, defaulting to expanded.
func (s *Store) CardLayout() string {
	v, err := s.get(KeyCardLayout)
	if err != nil {
		return LayoutExpanded
	}
	return v
}

func (s *Store) SetCardLayout(layout string) error {
	if layout != LayoutCompact && layout != LayoutExpanded {
		return fmt.Errorf("unknown card layout %q", layout)
	}
	return s.set(KeyCardLayout, layout)
}

// Density returns the stored layout density, defaulting to comfortable.
func (s *Store) Density() string {
	v, err := s.get(KeyDensity)
	if err != nil {
		return DensityComfortable
	}
	return v
}

func (s *Store) SetDensity(density string) error {
	if density != DensityComfortable && density != DensityCondensed {
		return fmt.Errorf("unknown layout density %q", density)
	}
	return s.set(KeyDensity, density)
}

// Reset removes all surface preferences; the next tab mounts at the
// default position again.
func (s *Store) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM prefs WHERE namespace = ?`, Namespace); err != nil {
		return fmt.Errorf("reset prefs: %w", err)
	}
	s.notify("")
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
