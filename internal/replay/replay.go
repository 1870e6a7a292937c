// Package replay recreates extracted resources in the target workspace
// from the files of a run directory.
package replay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/workspace-migrate/internal/metrics"
	"github.com/edvin/workspace-migrate/internal/store"
	"github.com/edvin/workspace-migrate/internal/workspace"
)

const phase = "replay"

// Resource kinds, in replay order.
const (
	KindInstancePools = "instance_pools"
	KindSecretScopes  = "secret_scopes"
	KindSecretACLs    = "secret_acls"
	KindClusters      = "clusters"
	KindNotebooks     = "notebooks"
	KindJobs          = "jobs"
)

type Action string

const (
	ActionCreated = Action(metrics.ResultCreated)
	ActionFailed  = Action(metrics.ResultFailed)
	ActionSkipped = Action(metrics.ResultSkipped)
)

// Outcome records what happened to one resource.
type Outcome struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Action Action `json:"action"`
	Detail string `json:"detail,omitempty"`
}

// Replayer issues create calls against the target tenant, one at a time.
type Replayer struct {
	logger  zerolog.Logger
	client  *workspace.Client
	dir     *store.RunDir
	metrics *metrics.Run

	outcomes []Outcome
}

func New(logger zerolog.Logger, client *workspace.Client, dir *store.RunDir, m *metrics.Run) *Replayer {
	return &Replayer{
		logger:  logger.With().Str("component", "replay").Logger(),
		client:  client,
		dir:     dir,
		metrics: m,
	}
}

type inputs struct {
	pools    []workspace.Record
	clusters []workspace.Record
	scopes   []workspace.Record
	jobs     []workspace.Record
}

func (r *Replayer) load() (*inputs, error) {
	var in inputs
	var pools, clusters json.RawMessage

	if err := r.dir.ReadJSON(store.FileInstancePools, &pools); err != nil {
		return nil, err
	}
	if err := r.dir.ReadJSON(store.FileClusters, &clusters); err != nil {
		return nil, err
	}
	if err := r.dir.ReadJSON(store.FileSecretScopes, &in.scopes); err != nil {
		return nil, err
	}
	if err := r.dir.ReadJSON(store.FileJobs, &in.jobs); err != nil {
		return nil, err
	}

	var err error
	if in.pools, err = workspace.Records(pools, "instance_pools"); err != nil {
		return nil, fmt.Errorf("%s: %w", store.FileInstancePools, err)
	}
	if in.clusters, err = workspace.Records(clusters, "clusters"); err != nil {
		return nil, fmt.Errorf("%s: %w", store.FileClusters, err)
	}
	return &in, nil
}

// Run replays pools, secret scopes with their ACLs, clusters, notebooks and
// jobs, in that order. A missing input file stops the run before any call
// is made. Individual create failures are recorded and the run continues.
func (r *Replayer) Run(ctx context.Context) ([]Outcome, error) {
	in, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("load replay inputs from %s: %w", r.dir.Path, err)
	}

	r.logger.Info().Str("dir", r.dir.Path).Msg("creating environment in target workspace")
	r.outcomes = nil

	phases := []func(context.Context, *inputs) error{
		r.pools,
		r.secretScopes,
		r.clusters,
		func(ctx context.Context, _ *inputs) error { return r.notebooks(ctx) },
		r.jobs,
	}
	for _, run := range phases {
		if err := run(ctx, in); err != nil {
			r.summarize()
			return r.outcomes, err
		}
	}

	r.summarize()
	r.logger.Info().Msg("environment creation completed in target workspace")
	return r.outcomes, nil
}

func (r *Replayer) pools(ctx context.Context, in *inputs) error {
	for _, pool := range in.pools {
		name := pool.String("instance_pool_name")
		body, err := PoolPayload(pool)
		if err != nil {
			r.skip(KindInstancePools, name, err)
			continue
		}
		r.create(ctx, KindInstancePools, name, workspace.EndpointInstancePoolsCreate, body)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replayer) secretScopes(ctx context.Context, in *inputs) error {
	for _, scope := range in.scopes {
		name := scope.String("name")
		body, err := ScopePayload(scope)
		if err != nil {
			r.skip(KindSecretScopes, name, err)
			continue
		}
		created := r.create(ctx, KindSecretScopes, name, workspace.EndpointSecretScopesCreate, body)
		if err := ctx.Err(); err != nil {
			return err
		}
		if !created {
			continue
		}

		var acls []workspace.Record
		if raw, ok := scope.Raw("acls"); ok {
			if err := json.Unmarshal(raw, &acls); err != nil {
				r.logger.Warn().Err(err).Str("scope", name).Msg("unreadable ACLs, skipping")
				continue
			}
		}
		for _, acl := range acls {
			label := name + "/" + acl.String("principal")
			aclBody, err := ACLPayload(name, acl)
			if err != nil {
				r.skip(KindSecretACLs, label, err)
				continue
			}
			r.create(ctx, KindSecretACLs, label, workspace.EndpointSecretACLsPut, aclBody)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Replayer) clusters(ctx context.Context, in *inputs) error {
	for _, cluster := range in.clusters {
		name := cluster.String("cluster_name")
		if SkipCluster(cluster) {
			r.record(Outcome{Kind: KindClusters, Name: name, Action: ActionSkipped, Detail: "terminated and not pinned"})
			continue
		}
		body, err := ClusterPayload(cluster)
		if err != nil {
			r.skip(KindClusters, name, err)
			continue
		}
		if pool := cluster.String("instance_pool_id"); pool != "" {
			r.logger.Warn().
				Str("cluster", name).
				Str("instance_pool_id", pool).
				Msg("cluster references a source instance pool ID, it may not exist in the target")
		}
		r.create(ctx, KindClusters, name, workspace.EndpointClustersCreate, body)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replayer) jobs(ctx context.Context, in *inputs) error {
	for _, job := range in.jobs {
		body, err := JobPayload(job)
		if err != nil {
			r.skip(KindJobs, job.ID("job_id"), err)
			continue
		}
		name, _ := body.Get("name")
		r.create(ctx, KindJobs, rawString(name), workspace.EndpointJobsCreate, body)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// create posts body and records the outcome. It reports whether the call
// succeeded.
func (r *Replayer) create(ctx context.Context, kind, name, endpoint string, body any) bool {
	if _, err := r.client.Post(ctx, endpoint, body); err != nil {
		r.logger.Error().Err(err).Str("kind", kind).Str("name", name).Msg("create failed")
		r.record(Outcome{Kind: kind, Name: name, Action: ActionFailed, Detail: err.Error()})
		return false
	}
	r.logger.Info().Str("kind", kind).Str("name", name).Msg("created")
	r.record(Outcome{Kind: kind, Name: name, Action: ActionCreated})
	return true
}

func (r *Replayer) skip(kind, name string, err error) {
	r.logger.Warn().Err(err).Str("kind", kind).Str("name", name).Msg("skipping malformed record")
	r.record(Outcome{Kind: kind, Name: name, Action: ActionSkipped, Detail: err.Error()})
}

func (r *Replayer) record(o Outcome) {
	r.outcomes = append(r.outcomes, o)
	r.metrics.ObserveResource(phase, o.Kind, string(o.Action))
}

func (r *Replayer) summarize() {
	counts := map[string]map[Action]int{}
	var kinds []string
	for _, o := range r.outcomes {
		if counts[o.Kind] == nil {
			counts[o.Kind] = map[Action]int{}
			kinds = append(kinds, o.Kind)
		}
		counts[o.Kind][o.Action]++
	}
	for _, k := range kinds {
		r.logger.Info().
			Str("kind", k).
			Int("created", counts[k][ActionCreated]).
			Int("failed", counts[k][ActionFailed]).
			Int("skipped", counts[k][ActionSkipped]).
			Msg("replay summary")
	}
}
