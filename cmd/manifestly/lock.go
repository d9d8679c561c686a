package main

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/manifestly/manifestly-go/internal/store"
	"github.com/manifestly/manifestly-go/internal/utils"
)

var ErrRootLocked = errors.New("root is locked by another manifestly process")

// rootLock guards a local tree against concurrent manifestly runs.
// Lock files live outside the tree so they never show up in manifests.
type rootLock struct {
	fl *flock.Flock
}

func lockRoot(root string) (*rootLock, error) {
	if _, _, ok := store.SplitS3URL(root); ok {
		// advisory locks only apply to local roots
		return nil, nil
	}

	dir := lockDir()
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create lock directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%x", sha256.Sum256([]byte(root)))[:16] + ".lock"
	fl := flock.New(filepath.Join(dir, name))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock root %s: %w", root, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrRootLocked, root)
	}
	return &rootLock{fl: fl}, nil
}

func (l *rootLock) release() {
	if l == nil || !l.fl.Locked() {
		return
	}
	if err := l.fl.Unlock(); err != nil {
		return
	}
	_ = os.Remove(l.fl.Path())
}

func lockDir() string {
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "manifestly", "locks")
	}
	return filepath.Join(os.TempDir(), "manifestly-locks")
}
