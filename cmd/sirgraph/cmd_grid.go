package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/grid"
	"github.com/nvandessel/sirgraph/internal/runner"
	"github.com/nvandessel/sirgraph/internal/store"
)

func newGridCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Run an experiment grid",
		Long: `Expand a grid file into every experiment combination and run them in
parallel. The list of experiments is recorded in <outdir>/exps.csv; running
the command again on the same outdir resumes, skipping experiments whose
sir.csv already exists.

Examples:
  sirgraph grid --config grid.yaml --nprocs 8
  sirgraph grid --config grid.yaml --outdir sweep --overwrite --shuffle`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			specPath, _ := cmd.Flags().GetString("config")
			if specPath == "" {
				return fmt.Errorf("--config is required")
			}
			spec, err := config.LoadGrid(specPath)
			if err != nil {
				return err
			}

			outdir, _ := cmd.Flags().GetString("outdir")
			if outdir == "" {
				outdir = valueOrDefault(spec.OutDir, cfg.Output.Dir)
			}
			procs, _ := cmd.Flags().GetInt("nprocs")
			if procs <= 0 {
				procs = spec.NProcs
			}
			if procs <= 0 {
				procs = cfg.Grid.Procs
			}
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			shuffle := cfg.Grid.Shuffle
			if cmd.Flags().Changed("shuffle") {
				shuffle, _ = cmd.Flags().GetBool("shuffle")
			}
			noStore, _ := cmd.Flags().GetBool("no-store")

			host, _ := os.Hostname()
			entries, resumed, err := grid.Plan(spec, outdir, host, overwrite)
			if err != nil {
				return err
			}

			var rs store.ResultStore
			if !noStore {
				s, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer s.Close()
				rs = s
			}

			logger := newLogger(cmd, cfg)
			logger.Info("grid planned", "outdir", outdir, "experiments", len(entries), "resumed", resumed, "procs", procs)

			ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
			defer stop()

			opts := runner.FromConfig(cfg, rs, logger)
			opts.OutDir = outdir
			stats, err := grid.Dispatch(ctx, outdir, entries, grid.Options{
				Procs:   procs,
				Shuffle: shuffle,
				Logger:  logger,
			}, func(ctx context.Context, e grid.Entry) error {
				_, err := runner.RunToDir(ctx, e.ExpIdx, e.Experiment, opts)
				return err
			})

			if jsonOutput(cmd) {
				result := map[string]interface{}{
					"outdir":  outdir,
					"resumed": resumed,
					"total":   stats.Total,
					"ran":     stats.Ran,
					"skipped": stats.Skipped,
				}
				if err != nil {
					result["error"] = err.Error()
				}
				if encErr := writeJSON(cmd.OutOrStdout(), result); encErr != nil {
					return encErr
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Grid %s: %d experiments, %d run, %d already done\n",
				outdir, stats.Total, stats.Ran, stats.Skipped)
			return nil
		},
	}

	cmd.Flags().String("config", "", "Grid file (YAML or JSON)")
	cmd.Flags().String("outdir", "", "Output directory (default: grid file, then config)")
	cmd.Flags().Int("nprocs", 0, "Experiments run in parallel (default: grid file, then config)")
	cmd.Flags().Bool("overwrite", false, "Delete the output directory first")
	cmd.Flags().Bool("shuffle", false, "Run experiments in random order")
	cmd.Flags().Bool("no-store", false, "Do not record runs in the results store")
	return cmd
}
