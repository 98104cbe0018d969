// Package config loads qrscan configuration from files, environment
// variables and flag bindings.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/qrscan-dev/qrscan/internal/decode"
)

// Engine preference values accepted in configuration.
const (
	EngineAuto   = "auto"
	EngineWorker = "worker"
	EngineNative = "native"
)

// Config is the root configuration.
type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	Scan     ScanConfig   `mapstructure:"scan"`
	Worker   WorkerConfig `mapstructure:"worker"`
	Server   ServerConfig `mapstructure:"server"`
}

// ScanConfig controls scan behavior.
type ScanConfig struct {
	// Timeout bounds each decode attempt.
	Timeout time.Duration `mapstructure:"timeout"`

	// Engine selects the backend: auto, worker or native.
	Engine string `mapstructure:"engine"`

	// InversionMode controls decoding of color-inverted codes:
	// original, invert or both.
	InversionMode string `mapstructure:"inversion_mode"`

	// TryWithoutRegion retries a failing region scan on the full image.
	TryWithoutRegion bool `mapstructure:"try_without_region"`
}

// WorkerConfig controls the decode worker process.
type WorkerConfig struct {
	// Command overrides the worker executable. Empty uses the current
	// executable's worker subcommand.
	Command string `mapstructure:"command"`

	// Addr connects to an already-running worker instead of spawning.
	Addr string `mapstructure:"addr"`

	// Listen is the bind address used when running as a worker.
	Listen string `mapstructure:"listen"`
}

// ServerConfig controls serve mode.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Scan.Timeout <= 0 {
		return fmt.Errorf("scan timeout must be positive, got %v", c.Scan.Timeout)
	}
	engines := []string{EngineAuto, EngineWorker, EngineNative}
	if !slices.Contains(engines, c.Scan.Engine) {
		return fmt.Errorf("invalid scan engine %q (must be one of: auto, worker, native)", c.Scan.Engine)
	}
	modes := []string{decode.InversionOriginal, decode.InversionInvert, decode.InversionBoth}
	if !slices.Contains(modes, c.Scan.InversionMode) {
		return fmt.Errorf("invalid inversion mode %q (must be one of: original, invert, both)", c.Scan.InversionMode)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
