package manifest

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/manifestly/manifestly-go/internal/store"
	"github.com/manifestly/manifestly-go/internal/utils"
)

// IgnoreList holds glob patterns for files a manifest never records.
// A pattern excludes a path when any segment of the path matches it,
// so "build" covers build/output.txt, src/build/x.txt and a plain
// file named build, but not buildings/x.txt.
type IgnoreList struct {
	patterns []string
}

// NewIgnoreList returns a list seeded with the given patterns.
func NewIgnoreList(patterns ...string) *IgnoreList {
	il := &IgnoreList{}
	for _, p := range patterns {
		il.Add(p)
	}
	return il
}

// LoadIgnore reads the ignore file at path. An absent file yields an
// empty list; other read errors surface.
func LoadIgnore(ctx context.Context, st store.Store, path string) (*IgnoreList, error) {
	il := NewIgnoreList()

	r, err := st.Open(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrNotExist) {
			return il, nil
		}
		return nil, err
	}
	defer r.Close()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		il.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return il, nil
}

// Add appends a pattern unless it is already present. Backslashes are
// normalized to forward slashes.
func (il *IgnoreList) Add(pattern string) {
	pattern = strings.ReplaceAll(pattern, `\`, "/")
	for _, p := range il.patterns {
		if p == pattern {
			return
		}
	}
	il.patterns = append(il.patterns, pattern)
}

// Match reports whether relPath is excluded by any pattern.
func (il *IgnoreList) Match(relPath string) bool {
	normalized := utils.NormPath(relPath)
	segments := strings.Split(normalized, "/")

	for _, pattern := range il.patterns {
		p := strings.Trim(pattern, "/")
		if p == "" {
			continue
		}
		for _, segment := range segments {
			if ok, _ := doublestar.Match(p, segment); ok {
				return true
			}
		}
	}
	return false
}

// Patterns returns a copy of the pattern list.
func (il *IgnoreList) Patterns() []string {
	out := make([]string, len(il.patterns))
	copy(out, il.patterns)
	return out
}
