package replay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/workspace-migrate/internal/workspace"
)

func record(t *testing.T, s string) workspace.Record {
	t.Helper()
	var r workspace.Record
	require.NoError(t, json.Unmarshal([]byte(s), &r))
	return r
}

func marshal(t *testing.T, p *workspace.Payload) string {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return string(data)
}

func TestSkipCluster(t *testing.T) {
	tests := []struct {
		in   string
		skip bool
	}{
		{`{"state": "TERMINATED"}`, true},
		{`{"state": "TERMINATED", "is_pinned": false}`, true},
		{`{"state": "TERMINATED", "is_pinned": true}`, false},
		{`{"state": "RUNNING"}`, false},
		{`{"state": "PENDING", "is_pinned": false}`, false},
		{`{}`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.skip, SkipCluster(record(t, tt.in)), tt.in)
	}
}

func TestClusterPayload_NeverCarriesClusterID(t *testing.T) {
	p, err := ClusterPayload(record(t, `{"cluster_id": "x", "cluster_name": "a", "spark_version": "v", "node_type_id": "n", "autoscale": {"min_workers": 1, "max_workers": 3}}`))
	require.NoError(t, err)
	assert.False(t, p.Has("cluster_id"))
	assert.Equal(t,
		`{"cluster_name":"a","spark_version":"v","node_type_id":"n","autoscale":{"min_workers":1,"max_workers":3},"num_workers":0,"spark_conf":{},"ssh_public_keys":[],"custom_tags":{},"init_scripts":[],"spark_env_vars":{}}`,
		marshal(t, p))
}

func TestClusterPayload_MissingRequired(t *testing.T) {
	for _, in := range []string{
		`{"spark_version": "v", "node_type_id": "n"}`,
		`{"cluster_name": "a", "node_type_id": "n"}`,
		`{"cluster_name": "a", "spark_version": "v"}`,
	} {
		_, err := ClusterPayload(record(t, in))
		assert.Error(t, err, in)
	}
}

func TestPoolPayload_NeverCarriesPoolID(t *testing.T) {
	p, err := PoolPayload(record(t, `{"instance_pool_id": "src", "instance_pool_name": "p", "node_type_id": "n", "min_idle_instances": 0, "max_capacity": 5}`))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"instance_pool_name", "node_type_id", "min_idle_instances", "max_capacity",
		"preloaded_spark_versions", "idle_instance_autotermination_minutes",
	}, p.Keys())
}

func TestScopePayload(t *testing.T) {
	p, err := ScopePayload(record(t, `{"name": "s1", "backend_type": "DATABRICKS"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"scope":"s1","scope_backend_type":"DATABRICKS"}`, marshal(t, p))

	p, err = ScopePayload(record(t, `{"name": "kv", "backend_type": "AZURE_KEYVAULT", "keyvault_metadata": {"dns_name": "x"}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"scope":"kv"}`, marshal(t, p))

	_, err = ScopePayload(record(t, `{"backend_type": "DATABRICKS"}`))
	assert.Error(t, err)
}

func TestACLPayload(t *testing.T) {
	p, err := ACLPayload("s1", record(t, `{"principal": "users", "permission": "READ"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"scope":"s1","principal":"users","permission":"READ"}`, marshal(t, p))

	_, err = ACLPayload("s1", record(t, `{"principal": "users"}`))
	assert.Error(t, err)
}

func TestJobPayload(t *testing.T) {
	p, err := JobPayload(record(t, `{"job_id": 1, "settings": {"name": "n", "schedule": {"quartz_cron_expression": "0 0 * * * ?"}}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"n","settings":{"name":"n","schedule":{"quartz_cron_expression":"0 0 * * * ?"}}}`, marshal(t, p))

	_, err = JobPayload(record(t, `{"job_id": 1}`))
	assert.Error(t, err)
	_, err = JobPayload(record(t, `{"job_id": 1, "settings": {"tasks": []}}`))
	assert.Error(t, err)
}

func TestNotebookPayload(t *testing.T) {
	p, err := NotebookPayload("/Users/a/nb", []byte("print(1)"))
	require.NoError(t, err)
	assert.Equal(t, `{"path":"/Users/a/nb","format":"SOURCE","language":"PYTHON","content":"cHJpbnQoMSk=","overwrite":true}`, marshal(t, p))
}
