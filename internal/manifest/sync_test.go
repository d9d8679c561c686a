package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncPair generates a source manifest over a populated tree and an
// empty target manifest over a fresh tree.
func syncPair(t *testing.T, files map[string]string) (source, target *Manifest, srcDir, tgtDir string) {
	t.Helper()
	ctx := context.Background()

	srcDir = t.TempDir()
	for rel, content := range files {
		writeFile(t, srcDir, rel, content)
	}
	source, err := Generate(ctx, srcDir, WithOutput(filepath.Join(srcDir, ".manifestly.json")))
	require.NoError(t, err)

	tgtDir = t.TempDir()
	target, err = Open(ctx, tgtDir)
	require.NoError(t, err)

	return source, target, srcDir, tgtDir
}

func TestSyncCopiesEverything(t *testing.T) {
	ctx := context.Background()
	source, target, _, tgtDir := syncPair(t, map[string]string{
		"a.txt":          "hi",
		"sub/b.txt":      "hello",
		"sub/deep/c.txt": "nested",
	})

	synced, err := source.Sync(ctx, target)
	require.NoError(t, err)
	assert.Same(t, target, synced)

	assert.Equal(t, "hi", readFile(t, filepath.Join(tgtDir, "a.txt")))
	assert.Equal(t, "hello", readFile(t, filepath.Join(tgtDir, "sub", "b.txt")))
	assert.Equal(t, "nested", readFile(t, filepath.Join(tgtDir, "sub", "deep", "c.txt")))

	// target manifest was refreshed from its tree
	assert.True(t, source.Equal(target))

	// a fresh generation over the target gives the same mapping
	regenerated, err := Generate(ctx, tgtDir)
	require.NoError(t, err)
	assert.True(t, source.Equal(regenerated))
}

func TestSyncUpdatesChanged(t *testing.T) {
	ctx := context.Background()
	source, target, _, tgtDir := syncPair(t, map[string]string{"a.txt": "new content"})

	writeFile(t, tgtDir, "a.txt", "old content")
	require.NoError(t, target.Refresh(ctx))

	_, err := source.Sync(ctx, target)
	require.NoError(t, err)

	assert.Equal(t, "new content", readFile(t, filepath.Join(tgtDir, "a.txt")))
	assert.True(t, source.Equal(target))
}

func TestSyncDeletesRemoved(t *testing.T) {
	ctx := context.Background()
	source, target, _, tgtDir := syncPair(t, map[string]string{"keep.txt": "hi"})

	writeFile(t, tgtDir, "stale.txt", "old")
	require.NoError(t, target.Refresh(ctx))
	require.Equal(t, 1, target.Len())

	_, err := source.Sync(ctx, target)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(tgtDir, "stale.txt"))
	assert.FileExists(t, filepath.Join(tgtDir, "keep.txt"))
	assert.True(t, source.Equal(target))
}

func TestSyncDryRunMutatesNothing(t *testing.T) {
	ctx := context.Background()
	source, target, _, tgtDir := syncPair(t, map[string]string{
		"a.txt":     "hi",
		"sub/b.txt": "hello",
	})

	var ops []Op
	_, err := source.Sync(ctx, target,
		WithDryRun(true),
		WithObserver(func(op Op) { ops = append(ops, op) }),
	)
	require.NoError(t, err)

	// only the backing file Open created is in the target tree
	listing, err := os.ReadDir(tgtDir)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, ".manifestly.json", listing[0].Name())

	// no refresh either
	assert.Equal(t, 0, target.Len())
	assert.Equal(t, "{}", readFile(t, filepath.Join(tgtDir, ".manifestly.json")))

	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, OpCopy, op.Type)
		assert.Zero(t, op.Bytes)
	}
}

func TestSyncDryRunReportsDeletes(t *testing.T) {
	ctx := context.Background()
	source, target, _, tgtDir := syncPair(t, map[string]string{"keep.txt": "hi"})

	writeFile(t, tgtDir, "stale.txt", "old")
	require.NoError(t, target.Refresh(ctx))

	var ops []Op
	_, err := source.Sync(ctx, target,
		WithDryRun(true),
		WithObserver(func(op Op) { ops = append(ops, op) }),
	)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(tgtDir, "stale.txt"))

	var deletes []Op
	for _, op := range ops {
		if op.Type == OpDelete {
			deletes = append(deletes, op)
		}
	}
	require.Len(t, deletes, 1)
	assert.Equal(t, "stale.txt", deletes[0].Path)
}

func TestSyncSkipsVanishedSource(t *testing.T) {
	ctx := context.Background()
	source, target, srcDir, tgtDir := syncPair(t, map[string]string{
		"stays.txt":    "hi",
		"vanished.txt": "poof",
	})

	// disappears after generation, manifest still lists it
	require.NoError(t, os.Remove(filepath.Join(srcDir, "vanished.txt")))

	var skips []Op
	_, err := source.Sync(ctx, target, WithObserver(func(op Op) {
		if op.Type == OpSkip {
			skips = append(skips, op)
		}
	}))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(tgtDir, "stays.txt"))
	assert.NoFileExists(t, filepath.Join(tgtDir, "vanished.txt"))
	require.Len(t, skips, 1)
	assert.Equal(t, "vanished.txt", skips[0].Path)
}

func TestSyncUntrackedTargetFiles(t *testing.T) {
	ctx := context.Background()
	source, target, _, tgtDir := syncPair(t, map[string]string{"a.txt": "hi"})

	// present in the target tree but tracked by no manifest
	writeFile(t, tgtDir, "untracked.txt", "mine")

	_, err := source.Sync(ctx, target)
	require.NoError(t, err)

	// survives the sync, and the closing refresh starts tracking it
	assert.FileExists(t, filepath.Join(tgtDir, "untracked.txt"))
	_, tracked := target.Digest("untracked.txt")
	assert.True(t, tracked)
}

func TestSyncObserverOrder(t *testing.T) {
	ctx := context.Background()
	source, target, _, tgtDir := syncPair(t, map[string]string{
		"b.txt": "2",
		"a.txt": "1",
		"c.txt": "3",
	})

	writeFile(t, tgtDir, "z-stale.txt", "old")
	require.NoError(t, target.Refresh(ctx))

	var ops []Op
	_, err := source.Sync(ctx, target, WithObserver(func(op Op) { ops = append(ops, op) }))
	require.NoError(t, err)

	require.Len(t, ops, 4)
	assert.Equal(t, "a.txt", ops[0].Path)
	assert.Equal(t, "b.txt", ops[1].Path)
	assert.Equal(t, "c.txt", ops[2].Path)
	assert.Equal(t, OpDelete, ops[3].Type)
	assert.Equal(t, "z-stale.txt", ops[3].Path)
}

func TestSyncCopyBytes(t *testing.T) {
	ctx := context.Background()
	source, target, _, _ := syncPair(t, map[string]string{"a.txt": "hi"})

	var ops []Op
	_, err := source.Sync(ctx, target, WithObserver(func(op Op) { ops = append(ops, op) }))
	require.NoError(t, err)

	require.Len(t, ops, 1)
	assert.Equal(t, int64(2), ops[0].Bytes)
	assert.Equal(t, hiDigest, ops[0].Digest)
}

func TestSyncIdempotent(t *testing.T) {
	ctx := context.Background()
	source, target, _, _ := syncPair(t, map[string]string{"a.txt": "hi", "b.txt": "ho"})

	_, err := source.Sync(ctx, target)
	require.NoError(t, err)

	var ops []Op
	_, err = source.Sync(ctx, target, WithObserver(func(op Op) { ops = append(ops, op) }))
	require.NoError(t, err)
	assert.Empty(t, ops)
}
