package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sirgraph/internal/analysis"
	"github.com/nvandessel/sirgraph/internal/constants"
)

func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <griddir>",
		Short: "Aggregate the results of a grid",
		Long: `Read <griddir>/exps.csv and the sir.csv of every finished experiment,
then write metrics.csv (area under I, epoch of peak I, epoch of minimum S
and number of epochs per experiment) and summary.csv (their mean and
standard deviation per topology and gaussianStd). Unless --no-plot is set,
times.png and areai.png chart the summary against gaussianStd.

Experiments still missing a sir.csv are listed as pending and left out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			griddir := args[0]
			outdir, _ := cmd.Flags().GetString("outdir")
			if outdir == "" {
				outdir = griddir
			}
			sum, err := analysis.Summarize(griddir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outdir, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", outdir, err)
			}
			if len(sum.Pending) > 0 {
				logger.Warn("skipping unfinished experiments", "count", len(sum.Pending))
			}

			files := []string{
				filepath.Join(outdir, constants.MetricsFile),
				filepath.Join(outdir, constants.SummaryFile),
			}
			if err := analysis.WriteMetricsCSV(files[0], sum.Experiments); err != nil {
				return err
			}
			if err := analysis.WriteSummaryCSV(files[1], sum.Groups); err != nil {
				return err
			}
			if noPlot, _ := cmd.Flags().GetBool("no-plot"); !noPlot {
				charts, err := analysis.WriteCharts(outdir, sum.Groups)
				if err != nil {
					return err
				}
				if len(charts) == 0 {
					logger.Info("no topology has two gaussianStd values, skipping charts")
				}
				files = append(files, charts...)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"groups":   sum.Groups,
					"finished": len(sum.Experiments),
					"pending":  sum.Pending,
					"files":    files,
				})
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TOPOLOGY\tSTD\tN\tAREA I\tT PEAK I\tT MIN S\tEPOCHS")
			for _, g := range sum.Groups {
				fmt.Fprintf(w, "%s\t%g\t%d\t%.1f±%.1f\t%.1f±%.1f\t%.1f±%.1f\t%.1f±%.1f\n",
					g.TopologyKind, g.GaussianStd, g.N,
					g.AreaI.Mean, g.AreaI.Std, g.PeakIT.Mean, g.PeakIT.Std,
					g.MinST.Mean, g.MinST.Std, g.Epochs.Mean, g.Epochs.Std)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d finished, %d pending\n", len(sum.Experiments), len(sum.Pending))
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", f)
			}
			return nil
		},
	}
	cmd.Flags().String("outdir", "", "Directory for the summary files (default: the grid directory)")
	cmd.Flags().Bool("no-plot", false, "Skip times.png and areai.png")
	return cmd
}
