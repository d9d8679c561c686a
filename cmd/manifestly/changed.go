package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/manifestly/manifestly-go/internal/config"
)

func init() {
	rootCmd.AddCommand(newChangedCmd())
}

func newChangedCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "changed <manifest>",
		Short: "List files that differ from the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			m, err := openManifest(cmd.Context(), cfg, newResolver(cfg), args[0], root)
			if err != nil {
				return err
			}

			diff, err := m.Changed(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if diff.Empty() {
				fmt.Fprintln(out, "No files have changed")
				return nil
			}

			fmt.Fprintln(out, "Changed files:")
			printSection(out, "added", diff.Added)
			printSection(out, "removed", diff.Removed)
			printSection(out, "changed", diff.Changed)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Track files under this directory instead of the manifest's own")
	return cmd
}

func printSection(w io.Writer, name string, files map[string]string) {
	if len(files) == 0 {
		return
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	fmt.Fprintf(w, "%s:\n", name)
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", p)
	}
}
