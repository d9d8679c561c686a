package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// execute runs a single subcommand under a fresh root so tests never
// touch the package-level rootCmd.
func execute(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	return executeCtx(t, context.Background(), sub, args...)
}

func executeCtx(t *testing.T, ctx context.Context, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()

	root := &cobra.Command{Use: "manifestly"}
	root.AddCommand(sub)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// isolateJournal points the sync history at a scratch database.
func isolateJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	t.Setenv("MANIFESTLY_JOURNAL", path)
	return path
}
