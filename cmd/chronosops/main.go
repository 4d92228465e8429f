// Command chronosops runs autonomous incident investigations: it collects
// evidence, reasons over it in a bounded loop, and records every decision
// in a tamper-evident audit chain.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rasike-dev/chronosops/internal/config"
	"github.com/rasike-dev/chronosops/internal/storage"
	"github.com/rasike-dev/chronosops/internal/telemetry"
	"github.com/rasike-dev/chronosops/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "chronosops",
	Short:         "Autonomous incident investigation engine",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	os.Exit(run0())
}

func run0() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// app holds the shared runtime dependencies for one command invocation.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *storage.DB
	shutdown func(context.Context)
}

// setup loads configuration, initializes logging and telemetry, connects to
// the database, and runs migrations.
func setup(ctx context.Context) (*app, error) {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		shutdown: func(ctx context.Context) {
			db.Close()
			_ = otelShutdown(ctx)
		},
	}, nil
}
