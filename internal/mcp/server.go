// Package mcp serves stored sirgraph runs and on-demand simulations over
// the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/sirgraph/internal/ratelimit"
	"github.com/nvandessel/sirgraph/internal/store"
)

// Server wraps the MCP SDK server.
type Server struct {
	server *sdk.Server
	store  store.ResultStore
	limits ratelimit.Tools
	audit  *AuditLogger
	logger *slog.Logger
	host   string
}

// Config holds server configuration.
type Config struct {
	Name    string
	Version string

	// Store holds the runs served and written by the tools. The server
	// closes it.
	Store store.ResultStore

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	// Limits overrides ratelimit.DefaultLimits.
	Limits map[string]ratelimit.Limit

	Logger *slog.Logger
}

// NewServer creates a server with the sirgraph tools registered.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("mcp server requires a result store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limits := cfg.Limits
	if limits == nil {
		limits = ratelimit.DefaultLimits
	}

	var audit *AuditLogger
	if cfg.AuditDir != "" {
		a, err := NewAuditLogger(cfg.AuditDir)
		if err != nil {
			logger.Warn("audit log disabled", "error", err)
		} else {
			audit = a
		}
	}

	host, _ := os.Hostname()
	s := &Server{
		server: sdk.NewServer(&sdk.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		store:  cfg.Store,
		limits: ratelimit.NewTools(limits),
		audit:  audit,
		logger: logger,
		host:   host,
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until the client disconnects, ctx is cancelled or
// the process is signalled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	notifySignals(sigs)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server started", "transport", "stdio")
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, s.Close())
}

// Close releases the store and the audit log.
func (s *Server) Close() error {
	return errors.Join(s.audit.Close(), s.store.Close())
}
