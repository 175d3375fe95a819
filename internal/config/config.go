// Package config provides unified configuration loading for sirgraph.
// It supports loading from YAML files and environment variables, and reads
// experiment and grid definitions.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SirgraphConfig contains all application settings. Experiment parameters
// live in Experiment and GridSpec.
type SirgraphConfig struct {
	// Logging contains settings for operational and epoch trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Output controls where and how experiment results are written.
	Output OutputConfig `json:"output" yaml:"output"`

	// Grid controls experiment-grid dispatch.
	Grid GridConfig `json:"grid" yaml:"grid"`

	// Store configures the SQLite results store.
	Store StoreConfig `json:"store" yaml:"store"`
}

// LoggingConfig configures sirgraph's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the per-epoch trace in trace.jsonl.
	// "trace" additionally logs every epoch to the operational log.
	Level string `json:"level" yaml:"level"`
}

// OutputConfig configures result files.
type OutputConfig struct {
	// Dir is the default output directory for run and grid.
	Dir string `json:"dir" yaml:"dir"`

	// Arrow enables the sir.arrow time-series export.
	Arrow bool `json:"arrow" yaml:"arrow"`

	// Plot enables rendering sir.png after each experiment.
	Plot bool `json:"plot" yaml:"plot"`
}

// GridConfig configures experiment dispatch.
type GridConfig struct {
	// Procs is the number of experiments run concurrently.
	Procs int `json:"procs" yaml:"procs"`

	// Shuffle randomizes the order experiments are dispatched in.
	Shuffle bool `json:"shuffle" yaml:"shuffle"`
}

// StoreConfig configures the results database.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means ~/.sirgraph/results.db.
	Path string `json:"path" yaml:"path"`
}

// Default returns a SirgraphConfig with sensible defaults.
func Default() *SirgraphConfig {
	return &SirgraphConfig{
		Logging: LoggingConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Dir:   "out",
			Arrow: true,
			Plot:  true,
		},
		Grid: GridConfig{
			Procs:   1,
			Shuffle: false,
		},
	}
}

// HomeDir returns ~/.sirgraph.
func HomeDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(homeDir, ".sirgraph"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.sirgraph/config.yaml -> environment variables
func Load() (*SirgraphConfig, error) {
	config := Default()

	// Try to load from default config file
	if dir, err := HomeDir(); err == nil {
		configPath := filepath.Join(dir, "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*SirgraphConfig, error) {
	config := Default()
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Output.Dir = expandEnvVars(config.Output.Dir)
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *SirgraphConfig) Validate() error {
	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Grid.Procs < 1 {
		return fmt.Errorf("grid procs must be at least 1, got %d", c.Grid.Procs)
	}

	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output dir must not be empty")
	}

	return nil
}

// StorePath returns the configured database path, defaulting to
// ~/.sirgraph/results.db.
func (c *SirgraphConfig) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "results.db"), nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *SirgraphConfig) {
	if v := os.Getenv("SIRGRAPH_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("SIRGRAPH_OUTDIR"); v != "" {
		config.Output.Dir = v
	}

	if v := os.Getenv("SIRGRAPH_NPROCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Grid.Procs = n
		}
	}

	if v := os.Getenv("SIRGRAPH_DB"); v != "" {
		config.Store.Path = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
