package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/logging"
	"github.com/nvandessel/sirgraph/internal/store"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sirgraph",
		Short: "SIR epidemics with agent mobility on graphs",
		Long: `sirgraph simulates an SIR epidemic among agents that move over a graph
topology (lattice, Erdos-Renyi, Barabasi-Albert or Watts-Strogatz),
drawn towards a Gaussian attraction field.

Results are written as CSV (and optionally Arrow and PNG) under an
output directory, and recorded in a SQLite results store.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (default from config)")
	rootCmd.PersistentFlags().String("db", "", "Results database (default ~/.sirgraph/results.db)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newGridCmd(),
		newPlotCmd(),
		newSummarizeCmd(),
		newGraphCmd(),
		newRunsCmd(),
		newBackupCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

// loadConfig loads the application config and applies the persistent
// flags on top.
func loadConfig(cmd *cobra.Command) (*config.SirgraphConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.SirgraphConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

func openStore(cfg *config.SirgraphConfig) (*store.SQLiteStore, error) {
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results store: %w", err)
	}
	return s, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
