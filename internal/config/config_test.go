package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleksaelezovic/trigoql/internal/config"
	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trigo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "./trigo-data", cfg.Storage.Path)
	assert.True(t, cfg.Engine.BatchUnify)
	assert.True(t, cfg.Engine.EagerLimit)
	assert.False(t, cfg.Engine.UnionDefaultGraph)
	assert.Equal(t, "urn:trigo:describe:subject", cfg.Engine.Describe)
	assert.Positive(t, cfg.Load.Workers)
	assert.Equal(t, 1000, cfg.Load.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: sqlite
  path: /tmp/quads.db
engine:
  eager_limit: false
  union_default_graph: true
load:
  workers: 3
log:
  format: json
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/quads.db", cfg.Storage.Path)
	assert.False(t, cfg.Engine.EagerLimit)
	assert.True(t, cfg.Engine.UnionDefaultGraph)
	assert.True(t, cfg.Engine.BatchUnify)
	assert.Equal(t, 3, cfg.Load.Workers)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRIGO_STORAGE_BACKEND", "memory")
	t.Setenv("TRIGO_ENGINE_BATCH_UNIFY", "false")
	t.Setenv("TRIGO_LOAD_BATCH_SIZE", "50")

	cfg, err := config.Load(writeConfig(t, "storage:\n  backend: sqlite\n"))
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.Storage.Backend)
	assert.False(t, cfg.Engine.BatchUnify)
	assert.Equal(t, 50, cfg.Load.BatchSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, sperrors.CodeConfigLoadReadFailure, sperrors.CodeOf(err))
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	_, err := config.Load(writeConfig(t, "storage:\n  backend: postgres\n"))
	require.Error(t, err)
	assert.Equal(t, sperrors.CodeConfigValidateInvalidValue, sperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{Backend: config.BackendBadger},
		Engine:  config.EngineConfig{Describe: "urn:trigo:describe:subject"},
		Load:    config.LoadConfig{Workers: 0, BatchSize: -1},
		Log:     config.LogConfig{Level: "loud", Format: "xml"},
	}

	errs := cfg.Validate()
	assert.Len(t, errs, 5)
	for _, err := range errs {
		assert.Equal(t, sperrors.CodeConfigValidateInvalidValue, sperrors.CodeOf(err))
	}
}

func TestValidate_MemoryNeedsNoPath(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{Backend: config.BackendMemory},
		Engine:  config.EngineConfig{Describe: "urn:trigo:describe:subject"},
		Load:    config.LoadConfig{Workers: 1, BatchSize: 1},
		Log:     config.LogConfig{Level: "debug", Format: "text"},
	}
	assert.Empty(t, cfg.Validate())
}
