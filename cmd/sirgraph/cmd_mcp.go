package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve simulations and stored runs over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools:
  sirgraph_simulate  run one experiment and store it
  sirgraph_list      list stored runs
  sirgraph_series    fetch the S/I/R series of a run
  sirgraph_graph     render a topology as DOT or JSON

Tool calls are appended to ~/.sirgraph/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			home, err := config.HomeDir()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "sirgraph",
				Version:  version,
				Store:    s,
				AuditDir: home,
				Logger:   newLogger(cmd, cfg),
			})
			if err != nil {
				s.Close()
				return err
			}
			return server.Run(context.Background())
		},
	}
}
