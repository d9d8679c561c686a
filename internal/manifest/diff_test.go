package manifest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifestWith(t *testing.T, entries map[string]string) *Manifest {
	t.Helper()
	m, err := Open(context.Background(), t.TempDir(), WithEntries(entries))
	require.NoError(t, err)
	return m
}

func TestDiffIdenticalGenerations(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hi")
	writeFile(t, dir, "sub/b.txt", "hello")

	m1, err := Generate(ctx, dir)
	require.NoError(t, err)
	m2, err := Generate(ctx, dir)
	require.NoError(t, err)

	diff := m1.Diff(m2)
	assert.True(t, diff.Empty())
	assert.Equal(t, 0, diff.Total())
}

func TestDiffSides(t *testing.T) {
	source := manifestWith(t, map[string]string{
		"only-src.txt": "aaaa",
		"shared.txt":   "bbbb",
		"edited.txt":   "src-digest",
	})
	target := manifestWith(t, map[string]string{
		"shared.txt":   "bbbb",
		"edited.txt":   "tgt-digest",
		"only-tgt.txt": "dddd",
	})

	diff := source.Diff(target)

	assert.Equal(t, map[string]string{"only-src.txt": "aaaa"}, diff.Added)
	assert.Equal(t, map[string]string{"only-tgt.txt": "dddd"}, diff.Removed)
	// changed carries the source digest
	assert.Equal(t, map[string]string{"edited.txt": "src-digest"}, diff.Changed)
	assert.Equal(t, 3, diff.Total())
}

func TestDiffAntisymmetry(t *testing.T) {
	source := manifestWith(t, map[string]string{
		"only-src.txt": "aaaa",
		"edited.txt":   "src-digest",
	})
	target := manifestWith(t, map[string]string{
		"only-tgt.txt": "dddd",
		"edited.txt":   "tgt-digest",
	})

	forward := source.Diff(target)
	backward := target.Diff(source)

	assert.Equal(t, forward.Added, backward.Removed)
	assert.Equal(t, forward.Removed, backward.Added)
	assert.ElementsMatch(t, sortedKeys(forward.Changed), sortedKeys(backward.Changed))
	assert.Equal(t, "tgt-digest", backward.Changed["edited.txt"])
}

func TestDiffEmptyManifests(t *testing.T) {
	source := manifestWith(t, map[string]string{})
	target := manifestWith(t, map[string]string{})

	assert.True(t, source.Diff(target).Empty())
}

func TestDiffResultJSON(t *testing.T) {
	source := manifestWith(t, map[string]string{"a.txt": "1111"})
	target := manifestWith(t, map[string]string{})

	data, err := jsonMarshal(source.Diff(target))
	require.NoError(t, err)

	assert.JSONEq(t, `{"added":{"a.txt":"1111"},"removed":{},"changed":{}}`, string(data))
}
