package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/sirgraph/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sirgraph configuration",
		Long: `View and modify sirgraph configuration settings, and validate experiment
and grid files.

Configuration is stored in ~/.sirgraph/config.yaml. SIRGRAPH_LOG_LEVEL,
SIRGRAPH_OUTDIR, SIRGRAPH_NPROCS and SIRGRAPH_DB override it.

Examples:
  sirgraph config list
  sirgraph config get grid.procs
  sirgraph config set grid.procs 8
  sirgraph config validate --experiment exp.yaml`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigValidateCmd(),
	)
	return cmd
}

// configKeys lists the settable keys in display order.
var configKeys = []string{
	"logging.level",
	"output.dir",
	"output.arrow",
	"output.plot",
	"grid.procs",
	"grid.shuffle",
	"store.path",
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration (~/.sirgraph/config.yaml):")
			fmt.Fprintln(out)
			for _, key := range configKeys {
				v, _ := getConfigValue(cfg, key)
				s := fmt.Sprint(v)
				if key == "store.path" {
					s = valueOrDefault(cfg.Store.Path, "(default)")
				}
				fmt.Fprintf(out, "  %-14s %s\n", key+":", s)
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			path, err := configPath()
			if err != nil {
				return err
			}
			// Start from the file alone so environment overrides are not
			// persisted.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				if cfg, err = config.LoadFromFile(path); err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := saveConfig(path, cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration, an experiment file or a grid file",
		RunE: func(cmd *cobra.Command, args []string) error {
			expPath, _ := cmd.Flags().GetString("experiment")
			gridPath, _ := cmd.Flags().GetString("grid")

			result := map[string]interface{}{}
			var err error
			switch {
			case expPath != "":
				result["file"] = expPath
				var exp config.Experiment
				if exp, err = config.LoadExperiment(expPath); err == nil {
					err = exp.Validate()
				}
			case gridPath != "":
				result["file"] = gridPath
				var spec *config.GridSpec
				if spec, err = config.LoadGrid(gridPath); err == nil {
					err = spec.Validate()
				}
			default:
				result["file"] = "~/.sirgraph/config.yaml"
				_, err = loadConfig(cmd)
			}

			result["valid"] = err == nil
			if err != nil {
				result["error"] = err.Error()
			}
			if jsonOutput(cmd) {
				if encErr := writeJSON(cmd.OutOrStdout(), result); encErr != nil {
					return encErr
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", result["file"])
			return nil
		},
	}
	cmd.Flags().String("experiment", "", "Experiment file to validate")
	cmd.Flags().String("grid", "", "Grid file to validate")
	return cmd
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.SirgraphConfig, key string) (interface{}, bool) {
	switch key {
	case "logging.level":
		return cfg.Logging.Level, true
	case "output.dir":
		return cfg.Output.Dir, true
	case "output.arrow":
		return cfg.Output.Arrow, true
	case "output.plot":
		return cfg.Output.Plot, true
	case "grid.procs":
		return cfg.Grid.Procs, true
	case "grid.shuffle":
		return cfg.Grid.Shuffle, true
	case "store.path":
		return cfg.Store.Path, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.SirgraphConfig, key, value string) error {
	switch key {
	case "logging.level":
		cfg.Logging.Level = value
	case "output.dir":
		cfg.Output.Dir = value
	case "output.arrow", "output.plot", "grid.shuffle":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s", key, value)
		}
		switch key {
		case "output.arrow":
			cfg.Output.Arrow = b
		case "output.plot":
			cfg.Output.Plot = b
		default:
			cfg.Grid.Shuffle = b
		}
	case "grid.procs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		cfg.Grid.Procs = n
	case "store.path":
		cfg.Store.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func configPath() (string, error) {
	dir, err := config.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// saveConfig writes the configuration as YAML.
func saveConfig(path string, cfg *config.SirgraphConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
