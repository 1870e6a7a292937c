package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/edvin/workspace-migrate/internal/config"
	"github.com/edvin/workspace-migrate/internal/logging"
	"github.com/edvin/workspace-migrate/internal/metrics"
	"github.com/edvin/workspace-migrate/internal/migrate"
	"github.com/edvin/workspace-migrate/internal/singlecluster"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional, env vars override)")
	clusterID := flag.String("cluster", "", "Source cluster ID (overrides MIGRATE_CLUSTER_ID)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *clusterID != "" {
		cfg.ClusterID = *clusterID
	}
	if err := cfg.Validate(config.RoleCluster); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg, "migrate-cluster", uuid.NewString())

	m := metrics.NewRun()
	source, target, err := migrate.Clients(cfg, logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build API clients")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	mig := singlecluster.New(logger, source, target, cfg.SnapshotDir, m)
	res, err := mig.Run(ctx, cfg.ClusterID)
	stop()

	if _, werr := mig.WriteMetrics(); werr != nil {
		logger.Warn().Err(werr).Msg("failed to write run metrics")
	}
	if err != nil {
		logger.Error().Err(err).Msg("cluster migration failed")
		os.Exit(1)
	}

	logger.Info().
		Str("source_cluster_id", res.SourceID).
		Str("target_cluster_id", res.TargetID).
		Msg("cluster migrated")
}
