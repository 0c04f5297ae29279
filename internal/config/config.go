// Package config loads runtime settings. Values start from Default, are
// overridden by an optional YAML file, and finally by BIKESHARE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"bikeshare-platform/internal/models"
	"bikeshare-platform/internal/stats"
)

// EnvPrefix namespaces every environment variable, e.g. BIKESHARE_SERVER_PORT.
const EnvPrefix = "BIKESHARE"

// ConfigFileEnv names the variable LoadConfig reads the YAML path from.
const ConfigFileEnv = EnvPrefix + "_CONFIG_FILE"

// Failure policies for records that cannot be condensed.
const (
	OnErrorSkip  = "skip"
	OnErrorAbort = "abort"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cities   CitiesConfig   `yaml:"cities"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PipelineConfig controls ingestion and aggregation.
type PipelineConfig struct {
	DataDir             string  `yaml:"data_dir" split_words:"true"`
	OutputDir           string  `yaml:"output_dir" split_words:"true"`
	FlushEvery          int     `yaml:"flush_every" split_words:"true"`
	OnError             string  `yaml:"on_error" split_words:"true"`
	ThresholdMinutes    float64 `yaml:"threshold_minutes" split_words:"true"`
	HistogramCapMinutes float64 `yaml:"histogram_cap_minutes" split_words:"true"`
	HistogramBinMinutes float64 `yaml:"histogram_bin_minutes" split_words:"true"`
}

// CityFiles names a city's raw input and condensed summary, relative to
// DataDir and OutputDir unless absolute.
type CityFiles struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// CitiesConfig holds the file pair for each known city.
type CitiesConfig struct {
	NYC        CityFiles `yaml:"nyc"`
	Chicago    CityFiles `yaml:"chicago"`
	Washington CityFiles `yaml:"washington"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Pipeline: PipelineConfig{
			DataDir:             "data",
			OutputDir:           "data",
			FlushEvery:          1000,
			OnError:             OnErrorSkip,
			ThresholdMinutes:    30,
			HistogramCapMinutes: 75,
			HistogramBinMinutes: 5,
		},
		Cities: CitiesConfig{
			NYC:        CityFiles{Input: "NYC-CitiBike-2016.csv", Output: "NYC-2016-Summary.csv"},
			Chicago:    CityFiles{Input: "Chicago-Divvy-2016.csv", Output: "Chicago-2016-Summary.csv"},
			Washington: CityFiles{Input: "Washington-CapitalBikeshare-2016.csv", Output: "Washington-2016-Summary.csv"},
		},
	}
}

// LoadConfig loads configuration from the file named by BIKESHARE_CONFIG_FILE
// (if set) and the environment.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(os.Getenv(ConfigFileEnv))
}

// LoadConfigFile loads configuration from path and the environment. An empty
// path skips the file layer.
func LoadConfigFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Unset variables leave the current value in place.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the services cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	p := c.Pipeline
	if p.DataDir == "" {
		return fmt.Errorf("pipeline data_dir is required")
	}
	if p.OutputDir == "" {
		return fmt.Errorf("pipeline output_dir is required")
	}
	if p.FlushEvery <= 0 {
		return fmt.Errorf("pipeline flush_every must be positive, got %d", p.FlushEvery)
	}
	if p.OnError != OnErrorSkip && p.OnError != OnErrorAbort {
		return fmt.Errorf("pipeline on_error must be %q or %q, got %q", OnErrorSkip, OnErrorAbort, p.OnError)
	}
	if p.ThresholdMinutes < 0 {
		return fmt.Errorf("pipeline threshold_minutes must not be negative, got %v", p.ThresholdMinutes)
	}
	if p.HistogramCapMinutes <= 0 {
		return fmt.Errorf("pipeline histogram_cap_minutes must be positive, got %v", p.HistogramCapMinutes)
	}
	if p.HistogramBinMinutes <= 0 || p.HistogramBinMinutes > p.HistogramCapMinutes {
		return fmt.Errorf("pipeline histogram_bin_minutes must be in (0, %v], got %v", p.HistogramCapMinutes, p.HistogramBinMinutes)
	}

	for _, city := range models.Cities {
		files := c.Cities.Files(city)
		if files.Input == "" || files.Output == "" {
			return fmt.Errorf("city %s needs both input and output files", city)
		}
	}
	return nil
}

// Files returns the configured file pair for city.
func (c CitiesConfig) Files(city models.City) CityFiles {
	switch city {
	case models.CityNYC:
		return c.NYC
	case models.CityChicago:
		return c.Chicago
	case models.CityWashington:
		return c.Washington
	}
	return CityFiles{}
}

// InputPath resolves city's raw input file.
func (c *Config) InputPath(city models.City) string {
	return resolve(c.Pipeline.DataDir, c.Cities.Files(city).Input)
}

// OutputPath resolves city's condensed summary file.
func (c *Config) OutputPath(city models.City) string {
	return resolve(c.Pipeline.OutputDir, c.Cities.Files(city).Output)
}

func resolve(dir, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// OutputPaths maps every city to its resolved summary file.
func (c *Config) OutputPaths() map[models.City]string {
	paths := make(map[models.City]string, len(models.Cities))
	for _, city := range models.Cities {
		paths[city] = c.OutputPath(city)
	}
	return paths
}

// StatsOptions returns the aggregation parameters of the pipeline section.
func (c *Config) StatsOptions() stats.Options {
	return stats.Options{
		ThresholdMinutes:    c.Pipeline.ThresholdMinutes,
		HistogramCapMinutes: c.Pipeline.HistogramCapMinutes,
		HistogramBinMinutes: c.Pipeline.HistogramBinMinutes,
	}
}
