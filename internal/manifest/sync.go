package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/manifestly/manifestly-go/internal/store"
)

type OpType string

const (
	OpCopy   OpType = "copy"
	OpDelete OpType = "delete"
	OpSkip   OpType = "skip"
)

// Op describes one step a sync run takes against the target tree.
// Bytes is the copied size; zero for deletes, skips and dry runs.
type Op struct {
	Type   OpType
	Path   string
	Digest string
	Bytes  int64
}

type syncOptions struct {
	dryRun   bool
	observer func(Op)
}

type SyncOption func(*syncOptions)

// WithDryRun reports the operations a sync would perform without
// touching the target tree or its manifest.
func WithDryRun(dry bool) SyncOption {
	return func(o *syncOptions) { o.dryRun = dry }
}

// WithObserver streams every operation to fn as it happens.
func WithObserver(fn func(Op)) SyncOption {
	return func(o *syncOptions) { o.observer = fn }
}

func (o *syncOptions) notify(op Op) {
	if o.observer != nil {
		o.observer(op)
	}
}

// Sync makes the target tree match the manifest: added and changed
// files are copied over, removed ones deleted. A source file that
// vanished since generation is reported and skipped; everything else
// that fails aborts the run. Afterwards the target manifest is
// refreshed from its tree, unless this is a dry run, which performs
// no mutation at all. Returns the target manifest.
func (m *Manifest) Sync(ctx context.Context, target *Manifest, opts ...SyncOption) (*Manifest, error) {
	o := &syncOptions{}
	for _, opt := range opts {
		opt(o)
	}

	diff := m.Diff(target)

	for _, file := range sortedKeys(diff.Added, diff.Changed) {
		d := diff.Added[file]
		if d == "" {
			d = diff.Changed[file]
		}
		srcPath := joinPath(m.root, file)
		dstPath := joinPath(target.root, file)

		exists, err := m.rootStore.Exists(ctx, srcPath)
		if err != nil {
			return nil, fmt.Errorf("stat source %s: %w", srcPath, err)
		}
		if !exists {
			slog.Warn("source file vanished, skipping", "path", srcPath)
			o.notify(Op{Type: OpSkip, Path: file, Digest: d})
			continue
		}

		if o.dryRun {
			o.notify(Op{Type: OpCopy, Path: file, Digest: d})
			continue
		}

		n, err := m.copyFile(ctx, target, srcPath, dstPath)
		if err != nil {
			return nil, err
		}
		slog.Debug("synced file", "path", file, "bytes", n)
		o.notify(Op{Type: OpCopy, Path: file, Digest: d, Bytes: n})
	}

	for _, file := range sortedKeys(diff.Removed) {
		dstPath := joinPath(target.root, file)

		exists, err := target.rootStore.Exists(ctx, dstPath)
		if err != nil {
			return nil, fmt.Errorf("stat target %s: %w", dstPath, err)
		}
		if !exists {
			continue
		}

		if o.dryRun {
			o.notify(Op{Type: OpDelete, Path: file, Digest: diff.Removed[file]})
			continue
		}

		if err := target.rootStore.Delete(ctx, dstPath); err != nil && !errors.Is(err, store.ErrNotExist) {
			return nil, fmt.Errorf("delete %s: %w", dstPath, err)
		}
		slog.Debug("removed file", "path", file)
		o.notify(Op{Type: OpDelete, Path: file, Digest: diff.Removed[file]})
	}

	if !o.dryRun {
		if err := target.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("refresh target manifest: %w", err)
		}
	}

	return target, nil
}

func (m *Manifest) copyFile(ctx context.Context, target *Manifest, srcPath, dstPath string) (int64, error) {
	r, err := m.rootStore.Open(ctx, srcPath)
	if err != nil {
		return 0, fmt.Errorf("open source %s: %w", srcPath, err)
	}
	defer r.Close()

	w, err := target.rootStore.Create(ctx, dstPath)
	if err != nil {
		return 0, fmt.Errorf("create target %s: %w", dstPath, err)
	}

	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return 0, fmt.Errorf("copy to %s: %w", dstPath, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("close target %s: %w", dstPath, err)
	}
	return n, nil
}
