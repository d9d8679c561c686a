package main

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/manifestly/manifestly-go/internal/config"
	"github.com/manifestly/manifestly-go/internal/journal"
	"github.com/manifestly/manifestly-go/internal/manifest"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	var refresh, dryRun bool
	var sourceDir, targetDir string

	cmd := &cobra.Command{
		Use:   "sync <source-manifest> <target-manifest>",
		Short: "Make a target tree match a source manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			res := newResolver(cfg)

			source, err := openManifest(ctx, cfg, res, args[0], sourceDir)
			if err != nil {
				return fmt.Errorf("open source manifest: %w", err)
			}
			if refresh {
				if err := source.Refresh(ctx); err != nil {
					return fmt.Errorf("refresh source manifest: %w", err)
				}
			}

			target, err := openManifest(ctx, cfg, res, args[1], targetDir)
			if err != nil {
				return fmt.Errorf("open target manifest: %w", err)
			}

			if !dryRun {
				lock, err := lockRoot(target.Root())
				if err != nil {
					return err
				}
				defer lock.release()
			}

			// history is best effort, a broken journal never blocks a sync
			var run *journal.Run
			j := journal.New(cfg.JournalPath)
			if err := j.Open(); err != nil {
				slog.Warn("journal unavailable", "path", cfg.JournalPath, "error", err)
			} else {
				defer j.Close()
				run = j.Begin(source.Root(), target.Root(), dryRun)
			}

			var copied, deleted, skipped int
			var copiedBytes int64
			observer := func(op manifest.Op) {
				switch op.Type {
				case manifest.OpCopy:
					copied++
					copiedBytes += op.Bytes
				case manifest.OpDelete:
					deleted++
				case manifest.OpSkip:
					skipped++
				}
				if dryRun {
					fmt.Fprintf(out, "%s %s\n", op.Type, op.Path)
				}
				if run != nil {
					if err := run.Record(op); err != nil {
						slog.Warn("journal write failed", "path", op.Path, "error", err)
					}
				}
			}

			if _, err := source.Sync(ctx, target,
				manifest.WithDryRun(dryRun),
				manifest.WithObserver(observer),
			); err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(out, "Dry run: %d to copy, %d to delete\n", copied, deleted)
				return nil
			}

			fmt.Fprintf(out, "Synced %s with %s: copied %d files (%s), deleted %d\n",
				source.Root(), target.Root(), copied, humanize.Bytes(uint64(copiedBytes)), deleted)
			if skipped > 0 {
				fmt.Fprintf(out, "Skipped %d vanished files\n", skipped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Refresh the source manifest first")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without touching the target")
	cmd.Flags().StringVar(&sourceDir, "source_directory", "", "Source tree root")
	cmd.Flags().StringVar(&targetDir, "target_directory", "", "Target tree root")
	return cmd
}
