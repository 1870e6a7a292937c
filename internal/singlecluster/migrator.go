// Package singlecluster copies one cluster definition from the source
// workspace to the target, keeping YAML snapshots of what was fetched and
// what was sent.
package singlecluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/edvin/workspace-migrate/internal/metrics"
	"github.com/edvin/workspace-migrate/internal/store"
	"github.com/edvin/workspace-migrate/internal/workspace"
)

const (
	phase = "cluster"
	kind  = "clusters"

	FileOriginal = "original_cluster_details.yml"
	FileSpec     = "cluster_config.yml"
)

var ErrClusterDetails = errors.New("cannot fetch cluster details")

// Result describes a completed single-cluster migration.
type Result struct {
	SourceID     string
	TargetID     string
	OriginalPath string
	SpecPath     string
}

type Migrator struct {
	logger      zerolog.Logger
	source      *workspace.Client
	target      *workspace.Client
	snapshotDir string
	metrics     *metrics.Run
}

func New(logger zerolog.Logger, source, target *workspace.Client, snapshotDir string, m *metrics.Run) *Migrator {
	return &Migrator{
		logger:      logger.With().Str("component", "single-cluster").Logger(),
		source:      source,
		target:      target,
		snapshotDir: snapshotDir,
		metrics:     m,
	}
}

// WriteMetrics writes the run's metrics into the snapshot directory,
// creating it when the run failed before any snapshot was written.
func (m *Migrator) WriteMetrics() (string, error) {
	if err := os.MkdirAll(m.snapshotDir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(m.snapshotDir, store.FileMetrics)
	return path, m.metrics.WriteTextfile(path)
}

// Run fetches the cluster, snapshots it, derives a create request, snapshots
// that too and creates the cluster in the target.
func (m *Migrator) Run(ctx context.Context, clusterID string) (*Result, error) {
	log := m.logger.With().Str("cluster_id", clusterID).Logger()
	log.Info().Msg("fetching cluster details")

	resp, err := m.source.Get(ctx, workspace.EndpointClustersGet, url.Values{"cluster_id": {clusterID}})
	if err != nil {
		m.metrics.ObserveResource(phase, kind, metrics.ResultFailed)
		return nil, fmt.Errorf("%w: %w", ErrClusterDetails, err)
	}
	var details workspace.Record
	if err := resp.Decode(&details); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClusterDetails, err)
	}
	if len(details) == 0 {
		m.metrics.ObserveResource(phase, kind, metrics.ResultFailed)
		return nil, fmt.Errorf("%w: empty response", ErrClusterDetails)
	}

	res := &Result{SourceID: clusterID}
	if res.OriginalPath, err = store.WriteYAML(m.snapshotDir, FileOriginal, resp.Body); err != nil {
		return nil, err
	}
	log.Info().Str("path", res.OriginalPath).Msg("wrote cluster snapshot")

	spec, err := BuildCreateSpec(details)
	if err != nil {
		m.metrics.ObserveResource(phase, kind, metrics.ResultSkipped)
		return nil, err
	}
	if pool, ok := spec.Get("instance_pool_id"); ok {
		log.Warn().RawJSON("instance_pool_id", pool).Msg("using instance pool ID from source")
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal create spec: %w", err)
	}
	if res.SpecPath, err = store.WriteYAML(m.snapshotDir, FileSpec, specJSON); err != nil {
		return nil, err
	}
	log.Info().Str("path", res.SpecPath).Msg("wrote create spec")

	name := details.String("cluster_name")
	log.Info().Str("cluster_name", name).Msg("creating cluster in target workspace")

	created, err := m.target.Post(ctx, workspace.EndpointClustersCreate, spec)
	if err != nil {
		m.metrics.ObserveResource(phase, kind, metrics.ResultFailed)
		return res, fmt.Errorf("create cluster %q in target: %w", name, err)
	}
	var out workspace.Record
	if err := created.Decode(&out); err != nil {
		return res, fmt.Errorf("create cluster %q in target: %w", name, err)
	}
	res.TargetID = out.ID("cluster_id")
	if res.TargetID == "" {
		m.metrics.ObserveResource(phase, kind, metrics.ResultFailed)
		return res, fmt.Errorf("create cluster %q in target: response has no cluster_id", name)
	}

	m.metrics.ObserveResource(phase, kind, metrics.ResultCreated)
	log.Info().Str("target_cluster_id", res.TargetID).Msg("cluster created")
	return res, nil
}

var (
	specRequired = []string{"cluster_name", "spark_version", "node_type_id"}
	specOptional = []string{
		"num_workers",
		"autoscale",
		"spark_conf",
		"aws_attributes",
		"azure_attributes",
		"gcp_attributes",
		"driver_node_type_id",
		"ssh_public_keys",
		"custom_tags",
		"cluster_log_conf",
		"init_scripts",
		"spark_env_vars",
		"instance_pool_id",
		"enable_elastic_disk",
		"cluster_source",
		"enable_local_disk_encryption",
		"runtime_engine",
		"idempotency_token",
		"single_user_name",
		"data_security_mode",
	}
)

// BuildCreateSpec keeps only the fields a cluster create request accepts,
// in a fixed order. Runtime state such as cluster_id, state and
// spark_context_id is dropped.
func BuildCreateSpec(details workspace.Record) (*workspace.Payload, error) {
	spec := workspace.NewPayload()
	for _, k := range specRequired {
		if !spec.Copy(details, k) {
			return nil, fmt.Errorf("cluster details missing %q", k)
		}
	}
	for _, k := range specOptional {
		spec.Copy(details, k)
	}
	return spec, nil
}
