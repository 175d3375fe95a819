package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/grid"
	"github.com/nvandessel/sirgraph/internal/runner"
	"github.com/nvandessel/sirgraph/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one experiment",
		Long: `Run a single experiment and write its results to <outdir>/<expidx>/.

The experiment file is YAML or JSON; absent keys keep their defaults.

Examples:
  sirgraph run --config exp.yaml
  sirgraph run --config exp.yaml --outdir results --expidx baseline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			expPath, _ := cmd.Flags().GetString("config")
			if outdir, _ := cmd.Flags().GetString("outdir"); outdir != "" {
				cfg.Output.Dir = outdir
			}
			expidx, _ := cmd.Flags().GetString("expidx")
			noStore, _ := cmd.Flags().GetBool("no-store")

			exp := config.DefaultExperiment()
			if expPath != "" {
				if exp, err = config.LoadExperiment(expPath); err != nil {
					return err
				}
			}
			if expidx == "" {
				host, _ := os.Hostname()
				expidx = grid.NewExpID(host, map[string]bool{})
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

			ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
			defer stop()

			logger := newLogger(cmd, cfg)
			opts := runner.FromConfig(cfg, rs, logger)
			result, err := runner.RunToDir(ctx, expidx, exp, opts)
			if err != nil {
				return err
			}

			sum := store.SummaryOf(result)
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"expidx":  expidx,
					"dir":     opts.Dir(expidx),
					"run_id":  runID(rs, expidx),
					"summary": sum,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Experiment %s finished: %s after %d epochs\n", expidx, sum.StopReason, sum.Epochs)
			fmt.Fprintf(out, "  Peak I: %d at t=%d\n", sum.PeakI, sum.PeakT)
			fmt.Fprintf(out, "  Final S/I/R: %d/%d/%d\n", sum.FinalS, sum.FinalI, sum.FinalR)
			fmt.Fprintf(out, "  Transmissions: %d\n", sum.TotalTransmissions)
			fmt.Fprintf(out, "  Output: %s\n", opts.Dir(expidx))
			return nil
		},
	}

	cmd.Flags().String("config", "", "Experiment file (YAML or JSON)")
	cmd.Flags().String("outdir", "", "Output directory (default from config)")
	cmd.Flags().String("expidx", "", "Experiment id (default: generated)")
	cmd.Flags().Bool("no-store", false, "Do not record the run in the results store")
	return cmd
}

// runID returns the stored id of a run, or a fresh one when the run was
// not stored.
func runID(rs store.ResultStore, expidx string) string {
	if rs == nil {
		return uuid.NewString()
	}
	r, err := rs.GetRun(context.Background(), expidx)
	if err != nil {
		return ""
	}
	return r.ID
}
