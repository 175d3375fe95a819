package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/runner"
)

func newPlotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot <expdir>...",
		Short: "Render sir.png from sir.csv",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plotted []string
			for _, dir := range args {
				if err := runner.PlotDir(dir); err != nil {
					return fmt.Errorf("%s: %w", dir, err)
				}
				plotted = append(plotted, filepath.Join(dir, constants.PlotFile))
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"plots": plotted})
			}
			for _, p := range plotted {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", p)
			}
			return nil
		},
	}
}
