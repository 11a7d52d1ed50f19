package monitor

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func waitForEvent(t *testing.T, events *[]FileEvent, mu *sync.Mutex, want int) []FileEvent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		if len(*events) >= want {
			snapshot := make([]FileEvent, len(*events))
			copy(snapshot, *events)
			mu.Unlock()
			return snapshot
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d events", want)
	return nil
}

func TestMonitorDeliversCreateEvent(t *testing.T) {
	m, err := NewInvalidationMonitor(nil)
	if err != nil {
		t.Fatalf("Failed to create monitor: %v", err)
	}
	defer m.Close()

	var mu sync.Mutex
	var events []FileEvent
	m.OnChange(func(e FileEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	dir := t.TempDir()
	if err := m.Watch(dir); err != nil {
		t.Fatalf("Failed to watch directory: %v", err)
	}

	path := filepath.Join(dir, "created.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := waitForEvent(t, &events, &mu, 1)
	if got[0].Path != path {
		t.Errorf("Expected event for %s, got %s", path, got[0].Path)
	}
	if got[0].Type != "create" && got[0].Type != "modify" {
		t.Errorf("Expected create or modify event, got %s", got[0].Type)
	}
}

func TestMonitorDebouncesWriteBurst(t *testing.T) {
	m, err := NewInvalidationMonitor(nil)
	if err != nil {
		t.Fatalf("Failed to create monitor: %v", err)
	}
	defer m.Close()
	m.debounceDelay = 200 * time.Millisecond

	dir := t.TempDir()
	path := filepath.Join(dir, "burst.txt")
	if err := os.WriteFile(path, []byte("start"), 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var events []FileEvent
	m.OnChange(func(e FileEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	if err := m.Watch(dir); err != nil {
		t.Fatalf("Failed to watch directory: %v", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if _, err := f.WriteString("more"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.Close()

	waitForEvent(t, &events, &mu, 1)
	time.Sleep(400 * time.Millisecond)

	mu.Lock()
	count := len(events)
	mu.Unlock()
	if count > 2 {
		t.Errorf("Expected the burst to coalesce, got %d events", count)
	}
}

func TestMonitorWatchMissingDirectory(t *testing.T) {
	m, err := NewInvalidationMonitor(nil)
	if err != nil {
		t.Fatalf("Failed to create monitor: %v", err)
	}
	defer m.Close()

	if err := m.Watch(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Error("Expected error watching a missing directory")
	}
}

func TestMonitorCloseIsSafe(t *testing.T) {
	m, err := NewInvalidationMonitor(nil)
	if err != nil {
		t.Fatalf("Failed to create monitor: %v", err)
	}
	if err := m.Watch(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Expected clean close, got %v", err)
	}
}
