package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0.02, cfg.RiskFreeRate)
	assert.Equal(t, 1000, cfg.MaxSimulations)
	assert.Equal(t, 0, cfg.MonteCarloWorkers)
	assert.False(t, cfg.PublishResults)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := "PORT=9090\nRISK_FREE_RATE=0.035\nFOREST_SEED=7\nPUBLISH_RESULTS=true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o644))
	t.Setenv("MAX_SIMULATIONS", "250")

	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 0.035, cfg.RiskFreeRate)
	assert.Equal(t, int64(7), cfg.ForestSeed)
	assert.True(t, cfg.PublishResults)
	assert.Equal(t, 250, cfg.MaxSimulations)
}
