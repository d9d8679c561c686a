package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manifestly/manifestly-go/internal/config"
)

func init() {
	rootCmd.AddCommand(newCompareCmd())
}

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <manifest1> <manifest2>",
		Short: "Print the diff between two manifests",
		Args:  cobra.ExactArgs(2),
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
				return fmt.Errorf("open manifest %s: %w", args[0], err)
			}
			target, err := openManifest(ctx, cfg, res, args[1], "")
			if err != nil {
				return fmt.Errorf("open manifest %s: %w", args[1], err)
			}

			doc, err := source.Diff(target).JSON()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return nil
		},
	}
}
