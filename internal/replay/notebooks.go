package replay

import (
	"context"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/edvin/workspace-migrate/internal/store"
	"github.com/edvin/workspace-migrate/internal/workspace"
)

// notebooks imports every mirrored .py file, targeting the workspace path
// it was exported from. A run without a notebook mirror imports nothing.
func (r *Replayer) notebooks(ctx context.Context) error {
	root := r.dir.NotebookRoot()
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		r.logger.Info().Str("dir", root).Msg("no notebooks to import")
		return nil
	}

	return filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Warn().Err(err).Str("path", file).Msg("cannot read notebook directory")
			if d != nil && d.IsDir() && file != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), store.NotebookExt) {
			return nil
		}

		target, err := store.NotebookWorkspacePath(root, file)
		if err != nil {
			r.skip(KindNotebooks, file, err)
			return nil
		}
		source, err := os.ReadFile(file)
		if err != nil {
			r.skip(KindNotebooks, target, err)
			return nil
		}
		body, err := NotebookPayload(target, source)
		if err != nil {
			r.skip(KindNotebooks, target, err)
			return nil
		}

		r.create(ctx, KindNotebooks, target, workspace.EndpointWorkspaceImport, body)
		return ctx.Err()
	})
}

func encode(source []byte) string {
	return base64.StdEncoding.EncodeToString(source)
}
