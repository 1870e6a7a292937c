package migrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/workspace-migrate/internal/config"
	"github.com/edvin/workspace-migrate/internal/metrics"
	"github.com/edvin/workspace-migrate/internal/replay"
	"github.com/edvin/workspace-migrate/internal/store"
	"github.com/edvin/workspace-migrate/internal/workspace"
	"github.com/edvin/workspace-migrate/internal/workspace/workspacetest"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"1", ModeExtract, false},
		{"2\n", ModeReplay, false},
		{" 3 ", ModeBoth, false},
		{"4", 0, true},
		{"0", 0, true},
		{"", 0, true},
		{"one", 0, true},
		{"1 2", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrInvalidChoice), "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestModeFlags(t *testing.T) {
	assert.True(t, ModeExtract.Extracts())
	assert.False(t, ModeExtract.Replays())
	assert.False(t, ModeReplay.Extracts())
	assert.True(t, ModeReplay.Replays())
	assert.True(t, ModeBoth.Extracts())
	assert.True(t, ModeBoth.Replays())

	assert.Equal(t, config.RoleExtract, ModeExtract.Role())
	assert.Equal(t, config.RoleReplay, ModeReplay.Role())
	assert.Equal(t, config.RoleMigrate, ModeBoth.Role())
}

func TestPromptMode(t *testing.T) {
	var out bytes.Buffer
	mode, err := PromptMode(strings.NewReader("2\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, ModeReplay, mode)
	assert.Equal(t, "Databricks Environment Migration Tool\n"+
		"1. Extract environment from source workspace\n"+
		"2. Create environment in target workspace\n"+
		"3. Do both\n"+
		"Choose an option (1-3): ", out.String())

	mode, err = PromptMode(strings.NewReader("3"), &out)
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, mode)

	_, err = PromptMode(strings.NewReader("9\n"), &out)
	assert.True(t, errors.Is(err, ErrInvalidChoice))

	_, err = PromptMode(strings.NewReader(""), &out)
	assert.True(t, errors.Is(err, ErrInvalidChoice))
}

type fakeArchiver struct {
	dirs []string
	err  error
}

func (f *fakeArchiver) UploadDir(_ context.Context, dir, _ string) (int, error) {
	f.dirs = append(f.dirs, dir)
	return 3, f.err
}

type env struct {
	cfg      *config.Config
	source   *workspacetest.Server
	target   *workspacetest.Server
	archiver *fakeArchiver
	runner   *Runner
}

var clock = time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		cfg:      &config.Config{OutputRoot: filepath.Join(t.TempDir(), "environment")},
		source:   workspacetest.New(t),
		target:   workspacetest.New(t),
		archiver: &fakeArchiver{},
	}
	e.runner = NewRunner(zerolog.Nop(), e.cfg, "run-1",
		workspace.New("source", e.source.URL, workspacetest.Token),
		workspace.New("target", e.target.URL, workspacetest.Token),
		metrics.NewRun(),
		WithArchiver(e.archiver),
		WithClock(func() time.Time { return clock }),
	)
	return e
}

// sourceWithOneCluster serves the listings replay needs plus one running
// cluster.
func (e *env) sourceWithOneCluster() {
	e.source.On(http.MethodGet, workspace.EndpointClustersList, map[string]any{"clusters": []any{
		map[string]any{"cluster_id": "c1", "cluster_name": "etl", "spark_version": "v", "node_type_id": "n", "state": "RUNNING"},
	}})
	e.source.On(http.MethodGet, workspace.EndpointInstancePoolsList, map[string]any{})
	e.source.On(http.MethodGet, workspace.EndpointSecretScopesList, map[string]any{"scopes": []any{}})
	e.source.On(http.MethodGet, workspace.EndpointJobsList, map[string]any{"jobs": []any{}})
}

func writeRun(t *testing.T, root string, at time.Time, clusterName string) *store.RunDir {
	t.Helper()
	dir, err := store.Create(root, at)
	require.NoError(t, err)
	clusters := `{"clusters":[{"cluster_name":"` + clusterName + `","spark_version":"v","node_type_id":"n","state":"RUNNING"}]}`
	for name, body := range map[string]string{
		store.FileInstancePools: `{}`,
		store.FileClusters:      clusters,
		store.FileSecretScopes:  `[]`,
		store.FileJobs:          `[]`,
	} {
		require.NoError(t, dir.WriteJSON(name, json.RawMessage(body)))
	}
	return dir
}

func createdClusters(t *testing.T, srv *workspacetest.Server) []string {
	t.Helper()
	var names []string
	for _, c := range srv.Calls(http.MethodPost, workspace.EndpointClustersCreate) {
		var b map[string]any
		c.Decode(t, &b)
		names = append(names, b["cluster_name"].(string))
	}
	return names
}

func TestRun_ExtractOnly(t *testing.T) {
	e := newEnv(t)
	e.sourceWithOneCluster()

	sum, err := e.runner.Run(context.Background(), ModeExtract)
	require.NoError(t, err)

	want := filepath.Join(e.cfg.OutputRoot, "databricks_migration_20240309_070501")
	assert.Equal(t, want, sum.RunDir)
	assert.FileExists(t, filepath.Join(want, store.FileClusters))
	assert.FileExists(t, filepath.Join(want, store.FileMetrics))
	assert.NotEmpty(t, sum.FailedSteps)

	assert.Empty(t, e.target.All())
	assert.Equal(t, []string{want}, e.archiver.dirs)
	assert.Equal(t, 3, sum.Archived)

	metricsText, err := os.ReadFile(filepath.Join(want, store.FileMetrics))
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), "workspace_migrate_resources_total")
}

func TestRun_BothReplaysFreshExtraction(t *testing.T) {
	e := newEnv(t)
	e.sourceWithOneCluster()
	writeRun(t, e.cfg.OutputRoot, clock.Add(-time.Hour), "stale")

	sum, err := e.runner.Run(context.Background(), ModeBoth)
	require.NoError(t, err)

	assert.Equal(t, []string{"etl"}, createdClusters(t, e.target))
	assert.Equal(t, filepath.Join(e.cfg.OutputRoot, "databricks_migration_20240309_070501"), sum.RunDir)
	require.Len(t, sum.Outcomes, 1)
	assert.Equal(t, replay.ActionCreated, sum.Outcomes[0].Action)
	assert.Len(t, e.archiver.dirs, 1)
}

func TestRun_ReplayOnlyUsesLatestRun(t *testing.T) {
	e := newEnv(t)
	writeRun(t, e.cfg.OutputRoot, clock.Add(-2*time.Hour), "older")
	latest := writeRun(t, e.cfg.OutputRoot, clock.Add(-time.Hour), "newer")

	sum, err := e.runner.Run(context.Background(), ModeReplay)
	require.NoError(t, err)

	assert.Equal(t, latest.Path, sum.RunDir)
	assert.Equal(t, []string{"newer"}, createdClusters(t, e.target))
	assert.Empty(t, e.source.All())
	assert.Empty(t, e.archiver.dirs)
	assert.FileExists(t, latest.File(store.FileMetrics))
}

func TestRun_ReplayOnlyUsesConfiguredDir(t *testing.T) {
	e := newEnv(t)
	pinned := writeRun(t, e.cfg.OutputRoot, clock.Add(-2*time.Hour), "pinned")
	writeRun(t, e.cfg.OutputRoot, clock.Add(-time.Hour), "newer")
	e.cfg.ReplayDir = pinned.Path

	_, err := e.runner.Run(context.Background(), ModeReplay)
	require.NoError(t, err)
	assert.Equal(t, []string{"pinned"}, createdClusters(t, e.target))
}

func TestRun_ReplayOnlyWithoutRuns(t *testing.T) {
	e := newEnv(t)

	_, err := e.runner.Run(context.Background(), ModeReplay)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNoRunDir))
	assert.Empty(t, e.target.All())
}

func TestRun_BothStopsWhenReplayInputsMissing(t *testing.T) {
	e := newEnv(t)

	sum, err := e.runner.Run(context.Background(), ModeBoth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay")
	assert.Empty(t, e.target.All())
	assert.Empty(t, e.archiver.dirs)
	assert.FileExists(t, filepath.Join(sum.RunDir, store.FileMetrics))
}

func TestRun_ArchiveFailure(t *testing.T) {
	e := newEnv(t)
	e.sourceWithOneCluster()
	e.archiver.err = errors.New("bucket gone")

	_, err := e.runner.Run(context.Background(), ModeExtract)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
}

func TestClients(t *testing.T) {
	cfg := &config.Config{
		SourceHost:  "https://src.example.com/",
		SourceToken: "s",
		TargetHost:  "https://dst.example.com",
		TargetToken: "d",
		HTTPTimeout: 5 * time.Second,
	}
	source, target, err := Clients(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://src.example.com", source.Host)
	assert.Equal(t, "source", source.Name)
	assert.Equal(t, "d", target.Token)
	assert.Equal(t, 5*time.Second, target.HTTPClient.Timeout)

	cfg.CACert = filepath.Join(t.TempDir(), "missing.pem")
	_, _, err = Clients(cfg, zerolog.Nop(), nil)
	assert.Error(t, err)
}
