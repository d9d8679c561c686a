package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manifestly/manifestly-go/internal/config"
)

func init() {
	rootCmd.AddCommand(newPzipCmd())
}

func newPzipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pzip <source-manifest> <target-manifest> <output-file>",
		Short: "Archive the files a target is missing, plus the diff document",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			res := newResolver(cfg)

			source, err := openManifest(ctx, cfg, res, args[0], "")
			if err != nil {
				return fmt.Errorf("open source manifest: %w", err)
			}
			target, err := openManifest(ctx, cfg, res, args[1], "")
			if err != nil {
				return fmt.Errorf("open target manifest: %w", err)
			}

			diff, err := source.Pzip(ctx, target, args[2])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Zip file saved to %s (%d files)\n", args[2], len(diff.Added)+len(diff.Changed))
			return nil
		},
	}
}
