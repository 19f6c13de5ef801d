package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/prdforge/internal/app"
	"github.com/ternarybob/prdforge/internal/logger"
	"github.com/ternarybob/prdforge/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	Aliases: []string{"mcp-server"},
	Short:   "Start MCP server (stdio mode)",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing
PRD generation and the saved-document store as tools. Logs go to the
log file only, since stdout carries protocol frames.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.SetupLogger(cfg, false)

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Shutdown()

	log.Info().Msg("Starting MCP server on stdio")
	return mcp.NewMCPServer(a.Orchestrator, a.Documents, version, log).ServeStdio()
}
