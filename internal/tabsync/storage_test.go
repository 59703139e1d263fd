package tabsync

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func keyExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, StorageKey))
	return err == nil
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStorageTransportDeliversAcrossWatchers(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewStorageTransport(dir)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	defer writer.Close()
	reader, err := NewStorageTransport(dir)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer reader.Close()

	var mu sync.Mutex
	var got []Message
	reader.Subscribe(func(m Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})

	if err := writer.Send(NewMessage(KindSizeUpdate, SizePayload{Width: 640})); err != nil {
		t.Fatalf("send: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "storage delivery")

	mu.Lock()
	defer mu.Unlock()
	if got[0].Kind != KindSizeUpdate {
		t.Fatalf("wrong kind: %s", got[0].Kind)
	}
	var p SizePayload
	if err := got[0].DecodeData(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Width != 640 {
		t.Fatalf("width = %d, want 640", p.Width)
	}
}

func TestStorageTransportSwallowsOwnEcho(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewStorageTransport(dir)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	defer writer.Close()
	reader, err := NewStorageTransport(dir)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer reader.Close()

	var mu sync.Mutex
	selfCount, peerCount := 0, 0
	writer.Subscribe(func(Message) {
		mu.Lock()
		selfCount++
		mu.Unlock()
	})
	reader.Subscribe(func(Message) {
		mu.Lock()
		peerCount++
		mu.Unlock()
	})

	if err := writer.Send(NewMessage(KindCallAnswered, CallPayload{SessionID: "s1", Address: "x"})); err != nil {
		t.Fatalf("send: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return peerCount == 1
	}, "peer delivery")

	// Give the writer's own watcher time to fire before asserting. One
	// write raises several filesystem events; none may reach the writer
	// and the peer must see the message exactly once.
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if selfCount != 0 {
		t.Fatalf("writer saw its own message %d time(s)", selfCount)
	}
	if peerCount != 1 {
		t.Fatalf("peer saw the message %d time(s), want 1", peerCount)
	}
}

func TestStorageTransportBackToBackSendsNeverEcho(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewStorageTransport(dir)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	defer writer.Close()
	reader, err := NewStorageTransport(dir)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer reader.Close()

	var mu sync.Mutex
	selfCount, peerCount := 0, 0
	writer.Subscribe(func(Message) {
		mu.Lock()
		selfCount++
		mu.Unlock()
	})
	reader.Subscribe(func(Message) {
		mu.Lock()
		peerCount++
		mu.Unlock()
	})

	// The second write lands before the watcher echoes the first one back.
	if err := writer.Send(NewMessage(KindPositionUpdate, PositionPayload{X: 10, Y: 20})); err != nil {
		t.Fatalf("send 1: %v", err)
	}
	if err := writer.Send(NewMessage(KindPositionUpdate, PositionPayload{X: 30, Y: 40})); err != nil {
		t.Fatalf("send 2: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return peerCount >= 1
	}, "peer delivery")

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if selfCount != 0 {
		t.Fatalf("writer saw its own messages %d time(s)", selfCount)
	}
}

func TestStorageKeyClearedAfterLinger(t *testing.T) {
	dir := t.TempDir()
	tr, err := NewStorageTransport(dir)
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	defer tr.Close()

	if err := tr.Send(NewMessage(KindCallEnded, nil)); err != nil {
		t.Fatalf("send: %v", err)
	}

	waitFor(t, func() bool {
		return !keyExists(dir)
	}, "key cleanup")
}
