package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sirgraph/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the results store",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd(), newRunsDeleteCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			topo, _ := cmd.Flags().GetString("topology")
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := s.ListRuns(context.Background(), store.ListFilter{
				TopologyKind: topo,
				Status:       status,
				Limit:        limit,
			})
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EXPIDX\tTOPOLOGY\tV\tAGENTS\tSTATUS\tEPOCHS\tPEAK I")
			for _, r := range runs {
				epochs, peak := "-", "-"
				if r.Summary != nil {
					epochs = fmt.Sprint(r.Summary.Epochs)
					peak = fmt.Sprint(r.Summary.PeakI)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					r.ExpIdx, r.Experiment.TopologyKind, r.Vertices, r.Agents, r.Status, epochs, peak)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("topology", "", "Only runs of this topology")
	cmd.Flags().String("status", "", "Only runs with this status (running, finished)")
	cmd.Flags().Int("limit", 0, "Maximum number of runs (0 = all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <expidx>",
		Short: "Show one stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), run)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s)\n", run.ExpIdx, run.ID)
			fmt.Fprintf(out, "  Status:   %s\n", run.Status)
			fmt.Fprintf(out, "  Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "  Topology: %s, %d vertices, %d agents\n", run.Experiment.TopologyKind, run.Vertices, run.Agents)
			fmt.Fprintf(out, "  Beta/Gamma: %g/%g\n", run.Experiment.Beta, run.Experiment.Gamma)
			if sum := run.Summary; sum != nil {
				fmt.Fprintf(out, "  Stopped:  %s after %d epochs\n", sum.StopReason, sum.Epochs)
				fmt.Fprintf(out, "  Peak I:   %d at t=%d\n", sum.PeakI, sum.PeakT)
				fmt.Fprintf(out, "  Final S/I/R: %d/%d/%d\n", sum.FinalS, sum.FinalI, sum.FinalR)
				fmt.Fprintf(out, "  Transmissions: %d\n", sum.TotalTransmissions)
			}
			return nil
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <expidx>...",
		Short: "Delete stored runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			for _, expidx := range args {
				if err := s.DeleteRun(context.Background(), expidx); err != nil {
					return fmt.Errorf("%s: %w", expidx, err)
				}
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"deleted": args})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s)\n", len(args))
			return nil
		},
	}
}
