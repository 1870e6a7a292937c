package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/edvin/workspace-migrate/internal/metrics"
	"github.com/edvin/workspace-migrate/internal/store"
	"github.com/edvin/workspace-migrate/internal/tree"
	"github.com/edvin/workspace-migrate/internal/workspace"
)

const treeRoot = "/"

// DBFS walks the file system from the root. The root listing goes to
// dbfs_files.json and every discovered entry, in pre-order, to
// dbfs_files_recursive.json.
func (e *Extractor) DBFS(ctx context.Context) ([]workspace.Record, error) {
	var rootBody json.RawMessage
	w := tree.Walker[workspace.Record]{
		List: func(ctx context.Context, path string) ([]workspace.Record, error) {
			resp, err := e.client.Get(ctx, workspace.EndpointDBFSList, url.Values{"path": {path}})
			if err != nil {
				return nil, err
			}
			if path == treeRoot {
				rootBody = resp.Body
			}
			return workspace.Records(resp.Body, "files")
		},
		Child: func(f workspace.Record) (string, bool) {
			return f.String("path"), f.Bool("is_dir")
		},
		OnError: func(path string, err error) {
			e.logger.Warn().Err(err).Str("path", path).Msg("failed to list DBFS directory, skipping subtree")
			e.metrics.ObserveResource(phase, KindDBFS, metrics.ResultFailed)
		},
	}

	files, err := w.Walk(ctx, treeRoot)
	if err != nil {
		e.metrics.ObserveResource(phase, KindDBFS, metrics.ResultFailed)
		return nil, fmt.Errorf("walk dbfs: %w", err)
	}

	if err := e.dir.WriteJSON(store.FileDBFSRoot, rootBody); err != nil {
		return nil, err
	}
	if err := e.dir.WriteJSON(store.FileDBFSRecursive, nonNil(files)); err != nil {
		return nil, err
	}
	for range files {
		e.metrics.ObserveResource(phase, KindDBFS, metrics.ResultExtracted)
	}
	e.logger.Info().Int("count", len(files)).Msg("DBFS entries listed")
	return files, nil
}

// Notebooks walks the workspace tree from the root and exports every
// notebook's source into the run directory's notebook mirror.
func (e *Extractor) Notebooks(ctx context.Context) ([]workspace.Record, error) {
	var rootBody json.RawMessage
	exported := 0
	w := tree.Walker[workspace.Record]{
		List: func(ctx context.Context, path string) ([]workspace.Record, error) {
			resp, err := e.client.Get(ctx, workspace.EndpointWorkspaceList, url.Values{"path": {path}})
			if err != nil {
				return nil, err
			}
			if path == treeRoot {
				rootBody = resp.Body
			}
			return workspace.Records(resp.Body, "objects")
		},
		Child: func(obj workspace.Record) (string, bool) {
			return obj.String("path"), workspace.ObjectType(obj.String("object_type")) == workspace.ObjectTypeDirectory
		},
		Visit: func(ctx context.Context, obj workspace.Record) {
			if workspace.ObjectType(obj.String("object_type")) != workspace.ObjectTypeNotebook {
				return
			}
			path := obj.String("path")
			if err := e.exportNotebook(ctx, path); err != nil {
				e.logger.Warn().Err(err).Str("path", path).Msg("failed to export notebook")
				e.metrics.ObserveResource(phase, KindNotebooks, metrics.ResultFailed)
				return
			}
			exported++
			e.metrics.ObserveResource(phase, KindNotebooks, metrics.ResultExtracted)
		},
		OnError: func(path string, err error) {
			e.logger.Warn().Err(err).Str("path", path).Msg("failed to list workspace directory, skipping subtree")
			e.metrics.ObserveResource(phase, KindNotebooks, metrics.ResultFailed)
		},
	}

	objects, err := w.Walk(ctx, treeRoot)
	if err != nil {
		e.metrics.ObserveResource(phase, KindNotebooks, metrics.ResultFailed)
		return nil, fmt.Errorf("walk workspace: %w", err)
	}

	if err := e.dir.WriteJSON(store.FileNotebooksRoot, rootBody); err != nil {
		return nil, err
	}
	if err := e.dir.WriteJSON(store.FileNotebooksRecursive, nonNil(objects)); err != nil {
		return nil, err
	}
	e.logger.Info().Int("objects", len(objects)).Int("exported", exported).Msg("workspace tree listed")
	return objects, nil
}

func (e *Extractor) exportNotebook(ctx context.Context, path string) error {
	resp, err := e.client.Get(ctx, workspace.EndpointWorkspaceExport, url.Values{
		"path":   {path},
		"format": {workspace.ExportFormatSource},
	})
	if err != nil {
		return err
	}

	var out struct {
		Content *string `json:"content"`
	}
	if err := resp.Decode(&out); err != nil {
		return err
	}
	if out.Content == nil {
		return fmt.Errorf("export of %s returned no content", path)
	}
	source, err := base64.StdEncoding.DecodeString(*out.Content)
	if err != nil {
		return fmt.Errorf("decode notebook content: %w", err)
	}

	_, err = e.dir.WriteNotebook(path, source)
	return err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
