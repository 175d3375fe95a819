package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/simulation"
	"github.com/nvandessel/sirgraph/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render an experiment topology",
		Long: `Build the topology and attraction field of an experiment and render it
as Graphviz DOT or JSON. With --expidx the experiment is read from the
results store and vertices are annotated with their transmission counts.

Examples:
  sirgraph graph --config exp.yaml --format dot | dot -Tsvg > graph.svg
  sirgraph graph --expidx hoa1b2c3 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			expPath, _ := cmd.Flags().GetString("config")
			expidx, _ := cmd.Flags().GetString("expidx")
			formatStr, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			format, err := visualization.ParseFormat(formatStr)
			if err != nil {
				return err
			}

			exp := config.DefaultExperiment()
			var transmissions []int
			switch {
			case expidx != "":
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				s, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer s.Close()
				ctx := context.Background()
				run, err := s.GetRun(ctx, expidx)
				if err != nil {
					return err
				}
				exp = run.Experiment
				if transmissions, err = s.GetTransmissions(ctx, expidx); err != nil {
					return err
				}
			case expPath != "":
				if exp, err = config.LoadExperiment(expPath); err != nil {
					return err
				}
			}

			setup, _, err := simulation.Prepare(exp, expidx)
			if err != nil {
				return err
			}
			if len(transmissions) != setup.Graph.Order() {
				transmissions = nil
			}
			data := visualization.FromSetup(setup, transmissions)

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}

			switch format {
			case visualization.FormatDOT:
				dot, err := visualization.RenderDOT(data)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(out, dot)
				return err
			default:
				doc, err := visualization.RenderJSON(data)
				if err != nil {
					return err
				}
				return writeJSON(out, doc)
			}
		},
	}

	cmd.Flags().String("config", "", "Experiment file (YAML or JSON)")
	cmd.Flags().String("expidx", "", "Render the topology of a stored run")
	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	return cmd
}
