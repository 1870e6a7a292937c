// Package store persists extracted resources: one timestamped run
// directory per extraction holding a JSON file per resource kind and a
// mirror of exported notebook sources.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	runDirPrefix = "databricks_migration_"
	runDirLayout = "20060102_150405"

	// NotebookDir is the notebook mirror inside a run directory.
	NotebookDir = "notebooks"
	// NotebookExt is appended to every mirrored notebook file.
	NotebookExt = ".py"
)

// File names inside a run directory.
const (
	FileClusters           = "clusters.json"
	FileJobs               = "jobs.json"
	FileDBFSRoot           = "dbfs_files.json"
	FileDBFSRecursive      = "dbfs_files_recursive.json"
	FileNotebooksRoot      = "notebooks.json"
	FileNotebooksRecursive = "notebooks_recursive.json"
	FileInstancePools      = "instance_pools.json"
	FileSecretScopes       = "secret_scopes.json"
	FileUsers              = "users.json"
	FileGroups             = "groups.json"
	FilePermissions        = "permissions.json"
	FileWorkspaceConf      = "workspace_conf.json"
	FileMetrics            = "metrics.prom"
)

var ErrNoRunDir = errors.New("no run directory found")

type RunDir struct {
	Path string
}

// Create makes a new run directory under root named after now.
func Create(root string, now time.Time) (*RunDir, error) {
	dir := filepath.Join(root, runDirPrefix+now.Format(runDirLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	return &RunDir{Path: dir}, nil
}

// Open returns an existing run directory.
func Open(dir string) (*RunDir, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open run directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("open run directory: %s is not a directory", dir)
	}
	return &RunDir{Path: dir}, nil
}

// Latest returns the most recent run directory under root.
func Latest(root string) (*RunDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w under %s", ErrNoRunDir, root)
		}
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	latest := ""
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, runDirPrefix) {
			continue
		}
		if _, err := time.Parse(runDirLayout, strings.TrimPrefix(name, runDirPrefix)); err != nil {
			continue
		}
		if name > latest {
			latest = name
		}
	}
	if latest == "" {
		return nil, fmt.Errorf("%w under %s", ErrNoRunDir, root)
	}
	return &RunDir{Path: filepath.Join(root, latest)}, nil
}

func (d *RunDir) File(name string) string {
	return filepath.Join(d.Path, name)
}

// WriteJSON writes v indented with two spaces. Raw JSON is re-indented
// without changing key order; an empty raw value is written as {}.
func (d *RunDir) WriteJSON(name string, v any) error {
	var data []byte
	switch raw := v.(type) {
	case json.RawMessage:
		b, err := indentRaw(raw)
		if err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		data = b
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		data = b
	}
	data = append(data, '\n')

	if err := os.WriteFile(d.File(name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func indentRaw(raw json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadJSON decodes a file written by WriteJSON. A missing file yields an
// error wrapping os.ErrNotExist.
func (d *RunDir) ReadJSON(name string, v any) error {
	data, err := os.ReadFile(d.File(name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (d *RunDir) NotebookRoot() string {
	return filepath.Join(d.Path, NotebookDir)
}

// WriteNotebook mirrors the notebook at workspacePath to
// notebooks<dir>/<name>.py, creating directories as needed.
func (d *RunDir) WriteNotebook(workspacePath string, source []byte) (string, error) {
	clean := path.Clean("/" + workspacePath)
	if clean == "/" {
		return "", fmt.Errorf("invalid notebook path %q", workspacePath)
	}

	dir := filepath.Join(d.NotebookRoot(), filepath.FromSlash(path.Dir(clean)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create notebook directory: %w", err)
	}

	file := filepath.Join(dir, path.Base(clean)+NotebookExt)
	if err := os.WriteFile(file, source, 0o644); err != nil {
		return "", fmt.Errorf("write notebook %s: %w", workspacePath, err)
	}
	return file, nil
}

// NotebookWorkspacePath maps a mirrored file back to its workspace path:
// the path relative to the mirror root, rooted at "/", without ".py".
func NotebookWorkspacePath(root, file string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", file, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") || !strings.HasSuffix(rel, NotebookExt) {
		return "", fmt.Errorf("%s is not a notebook under %s", file, root)
	}
	return "/" + strings.TrimSuffix(rel, NotebookExt), nil
}
