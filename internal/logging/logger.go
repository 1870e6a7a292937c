package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/workspace-migrate/internal/config"
)

// NewLogger creates a structured zerolog.Logger for one run of a tool.
// Output goes to stdout, as a console stream unless LOG_FORMAT=json.
func NewLogger(cfg *config.Config, service, runID string) zerolog.Logger {
	return newLogger(os.Stdout, cfg, service, runID)
}

func newLogger(w io.Writer, cfg *config.Config, service, runID string) zerolog.Logger {
	if cfg.LogFormat != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	ctx := zerolog.New(w).With().Timestamp()

	if service != "" {
		ctx = ctx.Str("service", service)
	}
	if runID != "" {
		ctx = ctx.Str("run_id", runID)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
