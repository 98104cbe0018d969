package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without
	// extension).
	ConfigFileName = "qrscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "QRSCAN"
)

// Loader handles loading configuration from the various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra flag
// bindings participate in precedence.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load reads configuration from .env, config files, environment
// variables and defaults, then validates the result. A missing config
// file is fine; defaults and environment apply.
func (l *Loader) Load() (*Config, error) {
	// Best effort: a .env file is a development convenience, absence is
	// not an error.
	_ = godotenv.Load()

	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SetConfigFile pins loading to an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	if path != "" {
		l.v.SetConfigFile(path)
	}
}

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
		l.v.AddConfigPath(filepath.Join(home, ".config", "qrscan"))
	}
	l.v.AddConfigPath("/etc/qrscan")
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log_level", "info")
	l.v.SetDefault("scan.timeout", "10s")
	l.v.SetDefault("scan.engine", EngineAuto)
	l.v.SetDefault("scan.inversion_mode", "original")
	l.v.SetDefault("scan.try_without_region", false)
	l.v.SetDefault("worker.command", "")
	l.v.SetDefault("worker.addr", "")
	l.v.SetDefault("worker.listen", "127.0.0.1:0")
	l.v.SetDefault("server.host", "0.0.0.0")
	l.v.SetDefault("server.port", 8080)
}
