package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manifestly/manifestly-go/internal/config"
	"github.com/manifestly/manifestly-go/internal/manifest"
)

func init() {
	rootCmd.AddCommand(newGenerateCmd())
}

func newGenerateCmd() *cobra.Command {
	var hashAlgorithm string
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate <directory>",
		Short: "Generate a manifest for a directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if hashAlgorithm != "" {
				cfg.HashAlgorithm = hashAlgorithm
			}

			dir := args[0]
			out := outputFile
			if out == "" {
				out = strings.TrimSuffix(dir, "/") + "/" + cfg.ManifestName
			}

			m, err := manifest.Generate(cmd.Context(), dir,
				manifest.WithSettings(cfg.Settings),
				manifest.WithResolver(newResolver(cfg)),
				manifest.WithOutput(out),
			)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Manifest saved to %s (%d files)\n", m.Path(), m.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&hashAlgorithm, "hash-algorithm", "", "Hash algorithm for file digests (default sha256)")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "Manifest location (default <directory>/"+config.DefaultManifestName+")")
	return cmd
}
