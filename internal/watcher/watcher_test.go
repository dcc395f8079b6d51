package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func collectPaths() (func(string), func() []string) {
	var mu sync.Mutex
	var paths []string
	add := func(p string) {
		mu.Lock()
		paths = append(paths, p)
		mu.Unlock()
	}
	get := func() []string {
		mu.Lock()
		defer mu.Unlock()
		out := make([]string, len(paths))
		copy(out, paths)
		return out
	}
	return add, get
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcherIngestsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pre.txt"), []byte("existing"), 0644); err != nil {
		t.Fatal(err)
	}
	onFile, got := collectPaths()
	w := New(dir, []string{"txt"}, onFile, nil, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	waitFor(t, func() bool { return len(got()) == 1 })
	if filepath.Base(got()[0]) != "pre.txt" {
		t.Errorf("got %v", got())
	}
}

func TestWatcherPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	onFile, got := collectPaths()
	w := New(dir, []string{"txt", "md"}, onFile, nil, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "dropped.md"), []byte("new doc"), 0644); err != nil {
		t.Fatal(err)
	}
	// Filtered extension is ignored.
	if err := os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0}, 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(got()) >= 1 })
	for _, p := range got() {
		if filepath.Base(p) == "skip.bin" {
			t.Errorf("filtered extension was ingested: %v", got())
		}
	}
}

func TestWatcherRemoveCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(path, []byte("bye"), 0644); err != nil {
		t.Fatal(err)
	}
	onFile, _ := collectPaths()
	onRemove, removed := collectPaths()
	w := New(dir, nil, onFile, onRemove, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(removed()) == 1 })
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w := New(t.TempDir(), nil, func(string) {}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
	w.Stop()
}
