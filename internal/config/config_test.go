package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-platform/internal/models"
	"bikeshare-platform/internal/stats"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, OnErrorSkip, cfg.Pipeline.OnError)
	assert.Equal(t, 30.0, cfg.Pipeline.ThresholdMinutes)
	assert.Equal(t, "Washington-2016-Summary.csv", cfg.Cities.Washington.Output)
	assert.Equal(t, stats.DefaultOptions(), cfg.StatsOptions())
}

func TestLoadConfigFile_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
logging:
  level: debug
pipeline:
  data_dir: /srv/trips
  on_error: abort
cities:
  chicago:
    input: divvy.csv
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/srv/trips", cfg.Pipeline.DataDir)
	assert.Equal(t, OnErrorAbort, cfg.Pipeline.OnError)
	assert.Equal(t, 1000, cfg.Pipeline.FlushEvery)
	assert.Equal(t, "divvy.csv", cfg.Cities.Chicago.Input)
	assert.Equal(t, "Chicago-2016-Summary.csv", cfg.Cities.Chicago.Output)
}

func TestLoadConfigFile_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\npipeline:\n  on_error: abort\n")

	t.Setenv("BIKESHARE_SERVER_PORT", "7070")
	t.Setenv("BIKESHARE_PIPELINE_ON_ERROR", "skip")
	t.Setenv("BIKESHARE_PIPELINE_THRESHOLD_MINUTES", "45.5")
	t.Setenv("BIKESHARE_CITIES_NYC_OUTPUT", "nyc.csv")
	t.Setenv("BIKESHARE_SERVER_IDLE_TIMEOUT", "2m")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, OnErrorSkip, cfg.Pipeline.OnError)
	assert.Equal(t, 45.5, cfg.Pipeline.ThresholdMinutes)
	assert.Equal(t, "nyc.csv", cfg.Cities.NYC.Output)
	assert.Equal(t, 2*time.Minute, cfg.Server.IdleTimeout)
}

func TestLoadConfig_ReadsFileFromEnv(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: warn\n")
	t.Setenv(ConfigFileEnv, path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfigFile(writeConfig(t, "server: [not, a, map"))
	assert.Error(t, err)

	t.Setenv("BIKESHARE_SERVER_PORT", "eighty")
	_, err = LoadConfigFile("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"no data dir", func(c *Config) { c.Pipeline.DataDir = "" }},
		{"no output dir", func(c *Config) { c.Pipeline.OutputDir = "" }},
		{"flush every", func(c *Config) { c.Pipeline.FlushEvery = 0 }},
		{"failure policy", func(c *Config) { c.Pipeline.OnError = "retry" }},
		{"negative threshold", func(c *Config) { c.Pipeline.ThresholdMinutes = -1 }},
		{"histogram cap", func(c *Config) { c.Pipeline.HistogramCapMinutes = 0 }},
		{"histogram bin", func(c *Config) { c.Pipeline.HistogramBinMinutes = 0 }},
		{"bin wider than cap", func(c *Config) { c.Pipeline.HistogramBinMinutes = 100 }},
		{"missing city output", func(c *Config) { c.Cities.Washington.Output = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.DataDir = "/in"
	cfg.Pipeline.OutputDir = "/out"
	cfg.Cities.Chicago.Input = "/abs/divvy.csv"

	assert.Equal(t, filepath.Join("/in", "NYC-CitiBike-2016.csv"), cfg.InputPath(models.CityNYC))
	assert.Equal(t, filepath.Join("/out", "NYC-2016-Summary.csv"), cfg.OutputPath(models.CityNYC))
	assert.Equal(t, "/abs/divvy.csv", cfg.InputPath(models.CityChicago))
	assert.Equal(t, CityFiles{}, cfg.Cities.Files(models.City("Boston")))

	outputs := cfg.OutputPaths()
	assert.Len(t, outputs, len(models.Cities))
	assert.Equal(t, filepath.Join("/out", "Washington-2016-Summary.csv"), outputs[models.CityWashington])
}
