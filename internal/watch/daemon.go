package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/manifestly/manifestly-go/internal/manifest"
)

const DefaultRefreshInterval = 5 * time.Minute

// Daemon keeps a manifest current while its tree changes on disk.
// Debounced events trigger a refresh, and a timer forces a full
// refresh at a fixed interval to catch anything the watcher missed.
type Daemon struct {
	manifest  *manifest.Manifest
	watcher   *Watcher
	interval  time.Duration
	refreshMu sync.Mutex
	onRefresh func(*manifest.Manifest)
}

func NewDaemon(m *manifest.Manifest, interval time.Duration) *Daemon {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	w := NewWatcher(m.Root())
	w.Filter(func(path string) bool {
		return ignoreEvent(m, path)
	})
	return &Daemon{
		manifest: m,
		watcher:  w,
		interval: interval,
	}
}

// OnRefresh installs a callback invoked after every successful refresh.
func (d *Daemon) OnRefresh(fn func(*manifest.Manifest)) {
	d.onRefresh = fn
}

// Run blocks until the context is cancelled or the watcher fails.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.watcher.Start(ctx); err != nil {
		return err
	}
	defer d.watcher.Stop()

	// bring the manifest up to date before reacting to events
	d.refresh(ctx, "startup")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-d.watcher.Events():
				if !ok {
					return nil
				}
				slog.Info("change detected", "path", event.Path(), "event", event.Event())
				d.refresh(ctx, "event")
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				d.refresh(ctx, "interval")
			}
		}
	})

	return g.Wait()
}

func (d *Daemon) refresh(ctx context.Context, reason string) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	start := time.Now()
	if err := d.manifest.Refresh(ctx); err != nil {
		slog.Error("refresh failed", "reason", reason, "error", err)
		return
	}
	slog.Debug("refreshed manifest",
		"reason", reason,
		"files", d.manifest.Len(),
		"took", time.Since(start),
	)
	if d.onRefresh != nil {
		d.onRefresh(d.manifest)
	}
}

// ignoreEvent drops events for paths the manifest itself would not
// track, including writes to its own backing file.
func ignoreEvent(m *manifest.Manifest, absPath string) bool {
	root := m.Root()
	rel := strings.TrimPrefix(filepath.ToSlash(absPath), root)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return true
	}
	return m.Ignore().Match(rel)
}
