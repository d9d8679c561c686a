package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rjeczalik/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifestly/manifestly-go/internal/manifest"
)

type fakeEvent struct {
	path  string
	event notify.Event
}

func (f fakeEvent) Event() notify.Event { return f.event }
func (f fakeEvent) Path() string        { return f.path }
func (f fakeEvent) Sys() interface{}    { return nil }

func startWatcher(t *testing.T, timeout time.Duration) *Watcher {
	t.Helper()
	w := NewWatcher(t.TempDir())
	w.SetDebounceTimeout(timeout)
	require.NoError(t, w.Start(context.Background()))
	return w
}

func waitEvent(t *testing.T, w *Watcher) notify.EventInfo {
	t.Helper()
	select {
	case event, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestWatcherDebounceCollapsesBursts(t *testing.T) {
	w := startWatcher(t, 20*time.Millisecond)
	defer w.Stop()

	for i := 0; i < 5; i++ {
		w.debounceEvent(fakeEvent{path: "/tree/a.txt", event: notify.Write})
	}

	event := waitEvent(t, w)
	assert.Equal(t, "/tree/a.txt", event.Path())

	select {
	case extra := <-w.Events():
		t.Fatalf("unexpected second event for %s", extra.Path())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherDebouncePerPath(t *testing.T) {
	w := startWatcher(t, 20*time.Millisecond)
	defer w.Stop()

	w.debounceEvent(fakeEvent{path: "/tree/a.txt", event: notify.Write})
	w.debounceEvent(fakeEvent{path: "/tree/b.txt", event: notify.Write})

	seen := map[string]bool{}
	seen[waitEvent(t, w).Path()] = true
	seen[waitEvent(t, w).Path()] = true

	assert.True(t, seen["/tree/a.txt"])
	assert.True(t, seen["/tree/b.txt"])
}

func TestWatcherStopFlushesPending(t *testing.T) {
	w := startWatcher(t, time.Hour)

	w.debounceEvent(fakeEvent{path: "/tree/pending.txt", event: notify.Write})
	w.Stop()

	event, ok := <-w.Events()
	require.True(t, ok, "pending event should flush on stop")
	assert.Equal(t, "/tree/pending.txt", event.Path())

	_, ok = <-w.Events()
	assert.False(t, ok, "events channel should close after stop")
}

func TestWatcherFilterDropsEvents(t *testing.T) {
	w := NewWatcher(t.TempDir())
	w.SetDebounceTimeout(20 * time.Millisecond)
	w.Filter(func(path string) bool {
		return filepath.Base(path) == "dropped.txt"
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.rawEvents <- fakeEvent{path: "/tree/dropped.txt", event: notify.Write}
	w.rawEvents <- fakeEvent{path: "/tree/kept.txt", event: notify.Write}

	event := waitEvent(t, w)
	assert.Equal(t, "/tree/kept.txt", event.Path())
}

func TestIgnoreEvent(t *testing.T) {
	dir := t.TempDir()
	m, err := manifest.Open(context.Background(), dir)
	require.NoError(t, err)
	m.Ignore().Add("build")

	root := m.Root()
	assert.True(t, ignoreEvent(m, filepath.Join(dir, ".manifestly.json")))
	assert.True(t, ignoreEvent(m, filepath.Join(dir, ".manifestlyignore")))
	assert.True(t, ignoreEvent(m, filepath.Join(dir, "build", "out.txt")))
	assert.True(t, ignoreEvent(m, dir), "root itself carries no relative path")
	assert.False(t, ignoreEvent(m, filepath.Join(dir, "kept.txt")))
	assert.NotEmpty(t, root)
}

func TestDaemonRefreshesOnInterval(t *testing.T) {
	dir := t.TempDir()
	m, err := manifest.Open(context.Background(), dir)
	require.NoError(t, err)

	d := NewDaemon(m, 50*time.Millisecond)
	counts := make(chan int, 16)
	d.OnRefresh(func(m *manifest.Manifest) {
		select {
		case counts <- m.Len():
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644))

	deadline := time.After(3 * time.Second)
	tracked := 0
	for tracked == 0 {
		select {
		case n := <-counts:
			tracked = n
		case <-deadline:
			t.Fatal("daemon never picked up the new file")
		}
	}
	assert.Equal(t, 1, tracked)

	cancel()
	require.NoError(t, <-done)

	assert.Contains(t, m.Entries(), "a.txt")
}
