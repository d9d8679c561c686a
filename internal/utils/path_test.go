package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "empty path",
			input:     "",
			wantError: true,
		},
		{
			name:      "relative path",
			input:     "./test",
			wantError: false,
		},
		{
			name:      "absolute path",
			input:     "/tmp/test",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolvePath(tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(result))
		})
	}
}

func TestNormPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a/b/c.txt", "a/b/c.txt"},
		{`a\b\c.txt`, "a/b/c.txt"},
		{"/a/b", "a/b"},
		{"//a", "a"},
		{`\a\b`, "a/b"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormPath(tt.input), "NormPath(%q)", tt.input)
	}
}

func TestEnsureDir(t *testing.T) {
	tmp := t.TempDir()

	nested := filepath.Join(tmp, "a", "b", "c")
	require.NoError(t, EnsureDir(nested))
	assert.True(t, DirExists(nested))

	// idempotent on an existing directory
	require.NoError(t, EnsureDir(nested))
}

func TestEnsureParent(t *testing.T) {
	tmp := t.TempDir()

	target := filepath.Join(tmp, "x", "y", "file.txt")
	require.NoError(t, EnsureParent(target))
	assert.True(t, DirExists(filepath.Join(tmp, "x", "y")))
	assert.False(t, FileExists(target))
}

func TestFileAndDirExists(t *testing.T) {
	tmp := t.TempDir()

	file := filepath.Join(tmp, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, FileExists(file))
	assert.False(t, DirExists(file))
	assert.True(t, DirExists(tmp))
	assert.False(t, FileExists(tmp))
	assert.False(t, FileExists(filepath.Join(tmp, "missing")))
}
