package archive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/workspace-migrate/internal/config"
	"github.com/edvin/workspace-migrate/internal/store"
)

type object struct {
	contentType string
	runID       string
	body        string
}

// fakeS3 accepts path-style PutObject requests.
func fakeS3(t *testing.T, status int) (*httptest.Server, map[string]object) {
	t.Helper()
	var mu sync.Mutex
	objects := map[string]object{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(status)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		objects[r.URL.Path] = object{
			contentType: r.Header.Get("Content-Type"),
			runID:       r.Header.Get("X-Amz-Meta-Run-Id"),
			body:        string(body),
		}
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, objects
}

func runDir(t *testing.T) *store.RunDir {
	t.Helper()
	dir, err := store.Create(t.TempDir(), time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, dir.WriteJSON(store.FileClusters, json.RawMessage(`{"clusters":[]}`)))
	_, err = dir.WriteNotebook("/Users/a/nb", []byte("print(1)\n"))
	require.NoError(t, err)
	return dir
}

func TestUploadDir(t *testing.T) {
	srv, objects := fakeS3(t, http.StatusOK)
	dir := runDir(t)
	runID := uuid.NewString()

	u := New(zerolog.Nop(), config.ArchiveConfig{
		Bucket:    "backups",
		Prefix:    "/workspace-migrate/",
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "ak",
		SecretKey: "sk",
	})
	n, err := u.UploadDir(context.Background(), dir.Path, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	clusters, ok := objects["/backups/workspace-migrate/databricks_migration_20240309_070501/clusters.json"]
	require.True(t, ok, "objects: %v", objects)
	assert.Equal(t, "application/json", clusters.contentType)
	assert.Equal(t, runID, clusters.runID)
	assert.JSONEq(t, `{"clusters":[]}`, clusters.body)

	nb, ok := objects["/backups/workspace-migrate/databricks_migration_20240309_070501/notebooks/Users/a/nb.py"]
	require.True(t, ok, "objects: %v", objects)
	assert.Equal(t, "print(1)\n", nb.body)
	assert.Equal(t, "text/x-python", nb.contentType)
}

func TestUploadDir_Denied(t *testing.T) {
	srv, objects := fakeS3(t, http.StatusForbidden)
	dir := runDir(t)

	u := New(zerolog.Nop(), config.ArchiveConfig{Bucket: "backups", Endpoint: srv.URL, Region: "us-east-1"})
	n, err := u.UploadDir(context.Background(), dir.Path, "run")
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, objects)
	assert.Contains(t, err.Error(), "s3://backups")
}

func TestKey(t *testing.T) {
	u := &Uploader{prefix: ""}
	key, err := u.Key("/out/databricks_migration_1", "/out/databricks_migration_1/notebooks/x.py")
	require.NoError(t, err)
	assert.Equal(t, "databricks_migration_1/notebooks/x.py", key)

	u.prefix = "runs"
	key, err = u.Key("/out/databricks_migration_1", "/out/databricks_migration_1/jobs.json")
	require.NoError(t, err)
	assert.Equal(t, "runs/databricks_migration_1/jobs.json", key)
}
