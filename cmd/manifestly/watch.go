package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/manifestly/manifestly-go/internal/config"
	"github.com/manifestly/manifestly-go/internal/digest"
	"github.com/manifestly/manifestly-go/internal/manifest"
	"github.com/manifestly/manifestly-go/internal/store"
	"github.com/manifestly/manifestly-go/internal/utils"
	"github.com/manifestly/manifestly-go/internal/watch"
)

const watchCacheSize = 8192

func init() {
	rootCmd.AddCommand(newWatchCmd())
}

func newWatchCmd() *cobra.Command {
	var interval time.Duration
	var logFile string

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Keep a directory's manifest current as files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			if _, _, ok := store.SplitS3URL(args[0]); ok {
				return errors.New("watch requires a local directory")
			}

			if logFile != "" {
				f, err := openLogFile(logFile)
				if err != nil {
					return err
				}
				defer f.Close()
				slog.SetDefault(slog.New(utils.NewTeeHandler(
					slog.Default().Handler(),
					slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}),
				)))
			}

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			cache, err := digest.NewCache(watchCacheSize)
			if err != nil {
				return err
			}

			m, err := manifest.Open(ctx, args[0],
				manifest.WithSettings(cfg.Settings),
				manifest.WithResolver(newResolver(cfg)),
				manifest.WithDigestCache(cache),
			)
			if err != nil {
				return err
			}

			lock, err := lockRoot(m.Root())
			if err != nil {
				return err
			}
			defer lock.release()

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (manifest %s)\n", m.Root(), m.Path())

			d := watch.NewDaemon(m, interval)
			if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", watch.DefaultRefreshInterval, "Periodic full-refresh interval")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Also append logs to this file")
	return cmd
}

func openLogFile(path string) (*os.File, error) {
	resolved, err := utils.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureParent(resolved); err != nil {
		return nil, err
	}
	return os.OpenFile(resolved, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
