package cmd

import (
	"context"

	"github.com/qrscan-dev/qrscan/internal/config"
)

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFromContext returns the loaded configuration for a command run.
// Commands are only executed after PersistentPreRunE stored it.
func configFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return &config.Config{}
}
