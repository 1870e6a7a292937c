// Package migrate drives a full migration run: extraction from the source
// workspace, replay into the target, metrics and archiving.
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/workspace-migrate/internal/config"
	"github.com/edvin/workspace-migrate/internal/extract"
	"github.com/edvin/workspace-migrate/internal/metrics"
	"github.com/edvin/workspace-migrate/internal/replay"
	"github.com/edvin/workspace-migrate/internal/store"
	"github.com/edvin/workspace-migrate/internal/workspace"
)

// Archiver stores a finished run directory somewhere durable.
type Archiver interface {
	UploadDir(ctx context.Context, dir, runID string) (int, error)
}

// Summary reports what a run did.
type Summary struct {
	Mode        Mode
	RunDir      string
	FailedSteps []string
	Outcomes    []replay.Outcome
	Archived    int
}

type Runner struct {
	logger   zerolog.Logger
	cfg      *config.Config
	runID    string
	source   *workspace.Client
	target   *workspace.Client
	metrics  *metrics.Run
	archiver Archiver
	now      func() time.Time
}

type Option func(*Runner)

func WithArchiver(a Archiver) Option {
	return func(r *Runner) { r.archiver = a }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(logger zerolog.Logger, cfg *config.Config, runID string, source, target *workspace.Client, m *metrics.Run, opts ...Option) *Runner {
	r := &Runner{
		logger:  logger.With().Str("component", "runner").Logger(),
		cfg:     cfg,
		runID:   runID,
		source:  source,
		target:  target,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes mode. Replay reads from the directory just extracted, else
// the configured replay directory, else the newest run under the output
// root.
func (r *Runner) Run(ctx context.Context, mode Mode) (*Summary, error) {
	sum := &Summary{Mode: mode}
	r.logger.Info().Stringer("mode", mode).Msg("starting migration run")

	var dir *store.RunDir
	if mode.Extracts() {
		d, err := store.Create(r.cfg.OutputRoot, r.now())
		if err != nil {
			return sum, err
		}
		dir = d
		sum.RunDir = dir.Path

		report, err := extract.New(r.logger, r.source, dir, r.metrics, r.cfg.WorkspaceConfKeys).All(ctx)
		if report != nil {
			sum.FailedSteps = report.Failed
		}
		if err != nil {
			r.finish(dir)
			return sum, fmt.Errorf("extract: %w", err)
		}
	}

	if mode.Replays() {
		if dir == nil {
			d, err := r.replayDir()
			if err != nil {
				return sum, err
			}
			dir = d
			sum.RunDir = dir.Path
		}

		outcomes, err := replay.New(r.logger, r.target, dir, r.metrics).Run(ctx)
		sum.Outcomes = outcomes
		if err != nil {
			r.finish(dir)
			return sum, fmt.Errorf("replay: %w", err)
		}
	}

	r.finish(dir)

	if mode.Extracts() && r.archiver != nil {
		n, err := r.archiver.UploadDir(ctx, dir.Path, r.runID)
		sum.Archived = n
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (r *Runner) replayDir() (*store.RunDir, error) {
	if r.cfg.ReplayDir != "" {
		return store.Open(r.cfg.ReplayDir)
	}
	dir, err := store.Latest(r.cfg.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("find run to replay: %w", err)
	}
	r.logger.Info().Str("dir", dir.Path).Msg("replaying most recent run")
	return dir, nil
}

// finish writes the run's metrics next to its data.
func (r *Runner) finish(dir *store.RunDir) {
	if err := r.metrics.WriteTextfile(dir.File(store.FileMetrics)); err != nil {
		r.logger.Warn().Err(err).Msg("failed to write run metrics")
	}
}
