package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/stepwise/pkg/adapters/mcp"
	"github.com/aretw0/stepwise/pkg/adapters/memory"
	"github.com/aretw0/stepwise/pkg/session"
)

// ServeMCP exposes the engine as an MCP server over stdio or SSE.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	// Stdout carries JSON-RPC, so servers always log to stderr.
	logger, err := createLogger(cfg, opts.Debug, true)
	if err != nil {
		return err
	}
	engine, err := createEngine(cfg, logger, opts.Debug)
	if err != nil {
		return err
	}

	manager := session.NewManager(engine, memory.NewStore(), session.WithLogger(logger))
	defer manager.Shutdown(context.WithoutCancel(ctx))

	srv := mcp.NewServer(manager, mcp.WithLogger(logger))

	switch opts.Transport {
	case "", "stdio":
		// Ensure logs don't corrupt JSON-RPC on Stdout
		log.SetOutput(os.Stderr)
		logger.Info("Starting stepwise MCP server (stdio)")
		return srv.ServeStdio()
	case "sse":
		logger.Info("Starting stepwise MCP server (SSE)", "port", opts.Port)
		return srv.ServeSSE(ctx, opts.Port)
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", opts.Transport)
	}
}
