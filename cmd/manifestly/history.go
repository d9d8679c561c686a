package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/manifestly/manifestly-go/internal/config"
	"github.com/manifestly/manifestly-go/internal/journal"
)

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}

func newHistoryCmd() *cobra.Command {
	var limit int
	var forPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			j := journal.New(cfg.JournalPath)
			if err := j.Open(); err != nil {
				return err
			}
			defer j.Close()

			var entries []journal.Entry
			if forPath != "" {
				entries, err = j.ForPath(forPath)
				if err == nil && limit > 0 && len(entries) > limit {
					entries = entries[:limit]
				}
			} else {
				entries, err = j.Recent(limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No sync history")
				return nil
			}

			for _, e := range entries {
				marker := ""
				if e.DryRun {
					marker = " (dry run)"
				}
				fmt.Fprintf(out, "%s  %-6s  %s  %s%s\n",
					e.Time.Format(time.RFC3339), e.Op, e.Path, shortDigest(e.Digest), marker)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	cmd.Flags().StringVar(&forPath, "path", "", "Only show history for this path")
	return cmd
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
