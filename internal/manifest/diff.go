package manifest

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// DiffResult groups the paths by which one manifest differs from
// another. Added and Changed carry the source digest, Removed the
// target digest.
type DiffResult struct {
	Added   map[string]string `json:"added"`
	Removed map[string]string `json:"removed"`
	Changed map[string]string `json:"changed"`
}

func NewDiffResult() *DiffResult {
	return &DiffResult{
		Added:   map[string]string{},
		Removed: map[string]string{},
		Changed: map[string]string{},
	}
}

// Empty reports whether the two manifests were identical.
func (d *DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Total returns the number of differing paths.
func (d *DiffResult) Total() int {
	return len(d.Added) + len(d.Removed) + len(d.Changed)
}

// JSON renders the diff as an indented document, the same shape Patch
// writes.
func (d *DiffResult) JSON() ([]byte, error) {
	return jsonMarshalIndent(d, "", "  ")
}

// Diff compares the manifest against target. Paths only in the
// manifest are added, paths only in target are removed, paths in both
// with differing digests are changed. Pure set algebra over the two
// mappings, no I/O.
func (m *Manifest) Diff(target *Manifest) *DiffResult {
	result := NewDiffResult()

	srcKeys := mapset.NewThreadUnsafeSet[string]()
	for k := range m.entries {
		srcKeys.Add(k)
	}
	tgtKeys := mapset.NewThreadUnsafeSet[string]()
	for k := range target.entries {
		tgtKeys.Add(k)
	}

	for _, k := range srcKeys.Difference(tgtKeys).ToSlice() {
		result.Added[k] = m.entries[k]
	}
	for _, k := range tgtKeys.Difference(srcKeys).ToSlice() {
		result.Removed[k] = target.entries[k]
	}
	for _, k := range srcKeys.Intersect(tgtKeys).ToSlice() {
		if m.entries[k] != target.entries[k] {
			result.Changed[k] = m.entries[k]
		}
	}

	return result
}
