// Package config loads trigo settings from defaults, an optional YAML file
// and TRIGO_ environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
)

// Config is the top-level configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Load    LoadConfig    `mapstructure:"load"`
	Log     LogConfig     `mapstructure:"log"`
}

// StorageConfig selects the quad store backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// EngineConfig holds the query evaluation switches.
type EngineConfig struct {
	BatchUnify        bool   `mapstructure:"batch_unify"`
	EagerLimit        bool   `mapstructure:"eager_limit"`
	UnionDefaultGraph bool   `mapstructure:"union_default_graph"`
	Describe          string `mapstructure:"describe"`
}

// LoadConfig controls bulk loading.
type LoadConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Backend names.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Load reads configuration from path (skipped when empty) with environment
// overrides such as TRIGO_STORAGE_BACKEND.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("storage.backend", BackendBadger)
	v.SetDefault("storage.path", "./trigo-data")
	v.SetDefault("engine.batch_unify", true)
	v.SetDefault("engine.eager_limit", true)
	v.SetDefault("engine.union_default_graph", false)
	v.SetDefault("engine.describe", executor.DescribeSubject)
	v.SetDefault("load.workers", runtime.NumCPU())
	v.SetDefault("load.batch_size", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix("TRIGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sperrors.Wrap(err, sperrors.CodeConfigLoadReadFailure, "read config",
				sperrors.Field("path", path))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sperrors.Wrap(err, sperrors.CodeConfigLoadReadFailure, "unmarshal config")
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sperrors.Wrap(errors.Join(errs...), sperrors.CodeConfigValidateInvalidValue, "validate config")
	}
	return &cfg, nil
}

// Validate reports every invalid setting, not just the first.
func (c *Config) Validate() []error {
	var errs []error

	switch c.Storage.Backend {
	case BackendBadger, BackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, sperrors.Errorf(sperrors.CodeConfigValidateInvalidValue,
				"config: storage.path must not be empty for the %s backend", c.Storage.Backend))
		}
	case BackendMemory:
	default:
		errs = append(errs, sperrors.Errorf(sperrors.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [badger, sqlite, memory], got %q", c.Storage.Backend))
	}

	if c.Engine.Describe == "" {
		errs = append(errs, sperrors.Errorf(sperrors.CodeConfigValidateInvalidValue,
			"config: engine.describe must not be empty"))
	}

	if c.Load.Workers < 1 {
		errs = append(errs, sperrors.Errorf(sperrors.CodeConfigValidateInvalidValue,
			"config: load.workers must be at least 1, got %d", c.Load.Workers))
	}
	if c.Load.BatchSize < 1 {
		errs = append(errs, sperrors.Errorf(sperrors.CodeConfigValidateInvalidValue,
			"config: load.batch_size must be at least 1, got %d", c.Load.BatchSize))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, sperrors.Errorf(sperrors.CodeConfigValidateInvalidValue,
			"config: log.level %q is not a level", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, sperrors.Errorf(sperrors.CodeConfigValidateInvalidValue,
			"config: log.format must be one of [text, json], got %q", c.Log.Format))
	}

	return errs
}
