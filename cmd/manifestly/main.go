package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/manifestly/manifestly-go/internal/config"
	"github.com/manifestly/manifestly-go/internal/manifest"
	"github.com/manifestly/manifestly-go/internal/store"
	"github.com/manifestly/manifestly-go/internal/version"
)

var debugLogs bool

var rootCmd = &cobra.Command{
	Use:     "manifestly",
	Short:   "Content-addressed directory manifests",
	Long:    "Generate, compare and synchronize directory trees through content-addressed manifest files.",
	Version: version.Detailed(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(debugLogs)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "Enable debug logging")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	// MANIFESTLY_* overrides from a local .env, if present
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newResolver(cfg *config.Config) *store.Resolver {
	return store.NewResolver(store.S3Options{
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Endpoint:  cfg.S3.Endpoint,
	})
}

func openManifest(ctx context.Context, cfg *config.Config, res *store.Resolver, location, root string) (*manifest.Manifest, error) {
	opts := []manifest.Option{
		manifest.WithSettings(cfg.Settings),
		manifest.WithResolver(res),
	}
	if root != "" {
		opts = append(opts, manifest.WithRoot(root))
	}
	return manifest.Open(ctx, location, opts...)
}
