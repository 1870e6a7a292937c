package migrate

import (
	"github.com/rs/zerolog"

	"github.com/edvin/workspace-migrate/internal/config"
	"github.com/edvin/workspace-migrate/internal/metrics"
	"github.com/edvin/workspace-migrate/internal/workspace"
)

// Clients builds the source and target API clients from cfg.
func Clients(cfg *config.Config, logger zerolog.Logger, m *metrics.Run) (source, target *workspace.Client, err error) {
	tlsCfg, err := cfg.ClientTLS()
	if err != nil {
		return nil, nil, err
	}
	opts := []workspace.Option{
		workspace.WithLogger(logger),
		workspace.WithMetrics(m),
		workspace.WithTimeout(cfg.HTTPTimeout),
		workspace.WithTLS(tlsCfg),
	}
	source = workspace.New("source", cfg.SourceHost, cfg.SourceToken, opts...)
	target = workspace.New("target", cfg.TargetHost, cfg.TargetToken, opts...)
	return source, target, nil
}
