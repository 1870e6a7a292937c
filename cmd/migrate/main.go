package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/edvin/workspace-migrate/internal/archive"
	"github.com/edvin/workspace-migrate/internal/config"
	"github.com/edvin/workspace-migrate/internal/logging"
	"github.com/edvin/workspace-migrate/internal/metrics"
	"github.com/edvin/workspace-migrate/internal/migrate"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional, env vars override)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	mode, err := migrate.PromptMode(os.Stdin, os.Stdout)
	if err != nil {
		fmt.Println("Invalid choice. Exiting.")
		os.Exit(1)
	}

	if err := cfg.Validate(mode.Role()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	logger := logging.NewLogger(cfg, "migrate", runID)

	m := metrics.NewRun()
	source, target, err := migrate.Clients(cfg, logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build API clients")
	}

	var opts []migrate.Option
	if cfg.Archive.Enabled() {
		opts = append(opts, migrate.WithArchiver(archive.New(logger, cfg.Archive)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	sum, err := migrate.NewRunner(logger, cfg, runID, source, target, m, opts...).Run(ctx, mode)
	stop()
	if err != nil {
		logger.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}

	logger.Info().
		Stringer("mode", sum.Mode).
		Str("dir", sum.RunDir).
		Strs("failed_steps", sum.FailedSteps).
		Int("replayed", len(sum.Outcomes)).
		Int("archived", sum.Archived).
		Msg("migration finished")
}
