package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manifestly/manifestly-go/internal/config"
)

func init() {
	rootCmd.AddCommand(newRefreshCmd())
}

func newRefreshCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "refresh <manifest>",
		Short: "Rebuild a manifest from the files on disk",
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

			if err := m.Refresh(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Manifest refreshed (%d files)\n", m.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Track files under this directory instead of the manifest's own")
	return cmd
}
