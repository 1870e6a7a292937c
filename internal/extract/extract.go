// Package extract reads every supported resource kind from the source
// workspace and writes one JSON file per kind into a run directory.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/workspace-migrate/internal/metrics"
	"github.com/edvin/workspace-migrate/internal/store"
	"github.com/edvin/workspace-migrate/internal/workspace"
)

const phase = "extract"

// Resource kinds, used in logs and metrics.
const (
	KindClusters      = "clusters"
	KindJobs          = "jobs"
	KindDBFS          = "dbfs"
	KindNotebooks     = "notebooks"
	KindInstancePools = "instance_pools"
	KindSecretScopes  = "secret_scopes"
	KindUsers         = "users"
	KindGroups        = "groups"
	KindPermissions   = "permissions"
	KindWorkspaceConf = "workspace_conf"
)

// Extractor pulls resources from the source tenant. Calls are issued one
// at a time.
type Extractor struct {
	logger   zerolog.Logger
	client   *workspace.Client
	dir      *store.RunDir
	metrics  *metrics.Run
	confKeys []string
}

// New creates an extractor writing into dir. confKeys, when set, are the
// workspace-conf keys to request.
func New(logger zerolog.Logger, client *workspace.Client, dir *store.RunDir, m *metrics.Run, confKeys []string) *Extractor {
	return &Extractor{
		logger:   logger.With().Str("component", "extract").Logger(),
		client:   client,
		dir:      dir,
		metrics:  m,
		confKeys: confKeys,
	}
}

// Report lists the extraction steps that failed.
type Report struct {
	Dir    string
	Failed []string
}

// All runs every extractor in a fixed order. A failing step is logged and
// the remaining steps still run; only cancellation stops it early.
func (e *Extractor) All(ctx context.Context) (*Report, error) {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{KindClusters, func(ctx context.Context) error { _, err := e.Clusters(ctx); return err }},
		{KindJobs, func(ctx context.Context) error { _, err := e.Jobs(ctx); return err }},
		{KindDBFS, func(ctx context.Context) error { _, err := e.DBFS(ctx); return err }},
		{KindNotebooks, func(ctx context.Context) error { _, err := e.Notebooks(ctx); return err }},
		{KindInstancePools, func(ctx context.Context) error { _, err := e.InstancePools(ctx); return err }},
		{KindSecretScopes, func(ctx context.Context) error { _, err := e.SecretScopes(ctx); return err }},
		{KindUsers + "_" + KindGroups, e.UsersGroups},
		{KindPermissions, func(ctx context.Context) error { _, err := e.Permissions(ctx); return err }},
		{KindWorkspaceConf, e.WorkspaceConf},
	}

	e.logger.Info().Str("dir", e.dir.Path).Msg("starting extraction of source workspace")

	report := &Report{Dir: e.dir.Path}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		e.logger.Info().Str("kind", step.name).Msg("extracting")
		if err := step.run(ctx); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			e.logger.Error().Err(err).Str("kind", step.name).Msg("extraction step failed")
			report.Failed = append(report.Failed, step.name)
		}
	}

	e.logger.Info().
		Str("dir", e.dir.Path).
		Int("failed_steps", len(report.Failed)).
		Msg("extraction complete")
	return report, nil
}

// Clusters writes the cluster listing to clusters.json.
func (e *Extractor) Clusters(ctx context.Context) ([]workspace.Record, error) {
	return e.list(ctx, KindClusters, workspace.EndpointClustersList, "clusters", store.FileClusters)
}

// InstancePools writes the pool listing to instance_pools.json.
func (e *Extractor) InstancePools(ctx context.Context) ([]workspace.Record, error) {
	return e.list(ctx, KindInstancePools, workspace.EndpointInstancePoolsList, "instance_pools", store.FileInstancePools)
}

// Jobs lists jobs, fetches each job's full definition and writes the
// definitions to jobs.json once every detail call has been made.
func (e *Extractor) Jobs(ctx context.Context) ([]json.RawMessage, error) {
	resp, err := e.client.Get(ctx, workspace.EndpointJobsList, nil)
	if err != nil {
		e.metrics.ObserveResource(phase, KindJobs, metrics.ResultFailed)
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs, err := workspace.Records(resp.Body, "jobs")
	if err != nil {
		return nil, err
	}

	details := []json.RawMessage{}
	for _, job := range jobs {
		id := job.ID("job_id")
		if id == "" {
			e.logger.Warn().Msg("job without job_id in listing, skipping")
			continue
		}
		detail, err := e.client.Get(ctx, workspace.EndpointJobsGet, url.Values{"job_id": {id}})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn().Err(err).Str("job_id", id).Msg("failed to fetch job details, skipping")
			e.metrics.ObserveResource(phase, KindJobs, metrics.ResultFailed)
			continue
		}
		if detail.Empty() {
			e.logger.Warn().Str("job_id", id).Msg("empty job details, skipping")
			e.metrics.ObserveResource(phase, KindJobs, metrics.ResultSkipped)
			continue
		}
		details = append(details, detail.Body)
		e.metrics.ObserveResource(phase, KindJobs, metrics.ResultExtracted)
	}

	if err := e.dir.WriteJSON(store.FileJobs, details); err != nil {
		return nil, err
	}
	e.logger.Info().Int("count", len(details)).Msg("jobs extracted")
	return details, nil
}

// WorkspaceConf writes the workspace settings to workspace_conf.json.
func (e *Extractor) WorkspaceConf(ctx context.Context) error {
	var query url.Values
	if len(e.confKeys) > 0 {
		query = url.Values{"keys": {strings.Join(e.confKeys, ",")}}
	}
	resp, err := e.client.Get(ctx, workspace.EndpointWorkspaceConf, query)
	if err != nil {
		e.metrics.ObserveResource(phase, KindWorkspaceConf, metrics.ResultFailed)
		return fmt.Errorf("get workspace conf: %w", err)
	}
	if err := e.dir.WriteJSON(store.FileWorkspaceConf, resp.Body); err != nil {
		return err
	}
	e.metrics.ObserveResource(phase, KindWorkspaceConf, metrics.ResultExtracted)
	return nil
}

// list GETs a list endpoint and returns the records under key. The body
// is written verbatim only once it parses.
func (e *Extractor) list(ctx context.Context, kind, endpoint, key, file string) ([]workspace.Record, error) {
	resp, err := e.client.Get(ctx, endpoint, nil)
	if err != nil {
		e.metrics.ObserveResource(phase, kind, metrics.ResultFailed)
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	recs, err := workspace.Records(resp.Body, key)
	if err != nil {
		e.metrics.ObserveResource(phase, kind, metrics.ResultFailed)
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if err := e.dir.WriteJSON(file, resp.Body); err != nil {
		return nil, err
	}
	for range recs {
		e.metrics.ObserveResource(phase, kind, metrics.ResultExtracted)
	}
	e.logger.Info().Str("kind", kind).Int("count", len(recs)).Msg("extracted")
	return recs, nil
}
