package replay

import (
	"encoding/json"
	"fmt"

	"github.com/edvin/workspace-migrate/internal/workspace"
)

var poolRequired = []string{"instance_pool_name", "node_type_id", "min_idle_instances", "max_capacity"}

// PoolPayload builds an instance-pool create request. The source pool ID is
// never carried over.
func PoolPayload(pool workspace.Record) (*workspace.Payload, error) {
	p := workspace.NewPayload()
	for _, k := range poolRequired {
		if !p.Copy(pool, k) {
			return nil, fmt.Errorf("instance pool missing %q", k)
		}
	}
	p.CopyOr(pool, "preloaded_spark_versions", "[]")
	p.CopyOr(pool, "idle_instance_autotermination_minutes", "60")
	p.Copy(pool, "custom_tags")
	return p, nil
}

// SkipCluster reports whether a listed cluster is left out of replay:
// terminated clusters are only recreated when pinned.
func SkipCluster(cluster workspace.Record) bool {
	return workspace.ClusterState(cluster.String("state")) == workspace.ClusterStateTerminated && !cluster.Bool("is_pinned")
}

var (
	clusterRequired = []string{"cluster_name", "spark_version", "node_type_id"}
	clusterDefaults = []struct{ key, fallback string }{
		{"autoscale", "{}"},
		{"num_workers", "0"},
		{"spark_conf", "{}"},
		{"ssh_public_keys", "[]"},
		{"custom_tags", "{}"},
		{"init_scripts", "[]"},
		{"spark_env_vars", "{}"},
	}
	clusterOptional = []string{
		"driver_node_type_id",
		"enable_elastic_disk",
		"cluster_log_conf",
		"cluster_source",
		"enable_local_disk_encryption",
		"runtime_engine",
	}
)

// ClusterPayload builds a cluster create request from a listed cluster.
// cluster_id is never carried over; instance_pool_id is copied verbatim.
func ClusterPayload(cluster workspace.Record) (*workspace.Payload, error) {
	p := workspace.NewPayload()
	for _, k := range clusterRequired {
		if !p.Copy(cluster, k) {
			return nil, fmt.Errorf("cluster missing %q", k)
		}
	}
	for _, d := range clusterDefaults {
		p.CopyOr(cluster, d.key, d.fallback)
	}
	p.Copy(cluster, "instance_pool_id")
	for _, k := range clusterOptional {
		p.Copy(cluster, k)
	}
	return p, nil
}

// ScopePayload builds a secret-scope create request. The backend type is
// only sent for Databricks-backed scopes.
func ScopePayload(scope workspace.Record) (*workspace.Payload, error) {
	name := scope.String("name")
	if name == "" {
		return nil, fmt.Errorf("secret scope missing %q", "name")
	}
	p := workspace.NewPayload()
	if err := p.SetValue("scope", name); err != nil {
		return nil, err
	}
	if scope.String("backend_type") == workspace.ScopeBackendDatabricks {
		if err := p.SetValue("scope_backend_type", workspace.ScopeBackendDatabricks); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ACLPayload builds a secret ACL put request for scope.
func ACLPayload(scope string, acl workspace.Record) (*workspace.Payload, error) {
	p := workspace.NewPayload()
	if err := p.SetValue("scope", scope); err != nil {
		return nil, err
	}
	for _, k := range []string{"principal", "permission"} {
		if !p.Copy(acl, k) {
			return nil, fmt.Errorf("ACL missing %q", k)
		}
	}
	return p, nil
}

// JobPayload builds a job create request. The job's settings are passed
// through unfiltered, including any source-specific identifiers they hold.
func JobPayload(job workspace.Record) (*workspace.Payload, error) {
	settings, err := job.Object("settings")
	if err != nil {
		return nil, fmt.Errorf("job: %w", err)
	}
	name, ok := settings.Raw("name")
	if !ok {
		return nil, fmt.Errorf("job settings missing %q", "name")
	}
	p := workspace.NewPayload()
	p.Set("name", name)
	p.Set("settings", job["settings"])
	return p, nil
}

// NotebookPayload builds a workspace import request for a Python source
// notebook.
func NotebookPayload(path string, source []byte) (*workspace.Payload, error) {
	p := workspace.NewPayload()
	for _, f := range []struct {
		key   string
		value any
	}{
		{"path", path},
		{"format", workspace.ExportFormatSource},
		{"language", workspace.LanguagePython},
		{"content", encode(source)},
		{"overwrite", true},
	} {
		if err := p.SetValue(f.key, f.value); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func rawString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return string(v)
	}
	return s
}
