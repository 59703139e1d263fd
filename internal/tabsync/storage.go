package tabsync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// StorageKey is the well-known key file the fallback transport writes to.
const StorageKey = "petrel-sync.json"

// clearDelay is how long a written payload lingers before the key is
// cleared. File watchers, unlike storage events, do not deliver the value
// with the notification, so readers need a moment to pick the payload up
// before the key can carry the next message.
const clearDelay = 100 * time.Millisecond

// storageEnvelope wraps a message on the key file. From identifies the
// writing transport so it can drop its own writes when the watcher echoes
// them back; ID deduplicates the multiple filesystem events one write
// produces (create followed by write).
type storageEnvelope struct {
	ID      string  `json:"id"`
	From    string  `json:"from"`
	Message Message `json:"message"`
}

// StorageTransport is the fallback transport: write the serialized message
// to a well-known key file, then clear it. Other tabs observe the write via
// a filesystem watcher. The writer's own watcher fires too, so every
// envelope carries the writer's identity and inbound envelopes from self
// are dropped.
type StorageTransport struct {
	id      string
	path    string
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	fns      []func(Message)
	lastSeen string // envelope id last dispatched, drops duplicate events
	closed   chan struct{}
}

// NewStorageTransport watches the key file in dir, creating dir if needed.
func NewStorageTransport(dir string) (*StorageTransport, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sync dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch sync dir: %w", err)
	}

	t := &StorageTransport{
		id:      uuid.NewString(),
		path:    filepath.Join(dir, StorageKey),
		watcher: watcher,
		closed:  make(chan struct{}),
	}
	go t.watchLoop()
	return t, nil
}

func (t *StorageTransport) Send(msg Message) error {
	env := storageEnvelope{
		ID:      uuid.NewString(),
		From:    t.id,
		Message: msg,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal sync message: %w", err)
	}

	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("write sync key: %w", err)
	}

	// Clear the key after the linger so the same key can carry the next
	// message without readers needing to diff values.
	path := t.path
	time.AfterFunc(clearDelay, func() {
		if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, data) {
			_ = os.Remove(path)
		}
	})
	return nil
}

func (t *StorageTransport) Subscribe(fn func(Message)) (cancel func()) {
	t.mu.Lock()
	t.fns = append(t.fns, fn)
	idx := len(t.fns) - 1
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.fns[idx] = nil
			t.mu.Unlock()
		})
	}
}

func (t *StorageTransport) watchLoop() {
	for {
		select {
		case <-t.closed:
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != StorageKey {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			t.consume()
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("SYNC: storage watcher error: %v", err)
		}
	}
}

func (t *StorageTransport) consume() {
	data, err := os.ReadFile(t.path)
	if err != nil || len(data) == 0 {
		// Key already cleared; the message is lost to this tab. Best-effort
		// delivery is the contract on this path.
		return
	}

	var env storageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("SYNC: bad payload on storage key: %v", err)
		return
	}
	if env.From == t.id {
		// Our own write observed through the watcher.
		return
	}

	t.mu.Lock()
	if env.ID == t.lastSeen {
		// One write surfaces as several filesystem events; dispatch once.
		t.mu.Unlock()
		return
	}
	t.lastSeen = env.ID
	fns := make([]func(Message), len(t.fns))
	copy(fns, t.fns)
	t.mu.Unlock()

	for _, fn := range fns {
		if fn != nil {
			fn(env.Message)
		}
	}
}

func (t *StorageTransport) Close() error {
	t.mu.Lock()
	select {
	case <-t.closed:
		t.mu.Unlock()
		return nil
	default:
		close(t.closed)
	}
	t.mu.Unlock()
	return t.watcher.Close()
}
