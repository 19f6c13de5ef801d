package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/prdforge/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "prdforge",
	Short: "prdforge - product requirements documents from a product idea",
	Long: `prdforge analyzes a product idea against recent market research and
writes a structured product requirements document.

Commands:
  serve       Start the HTTP service (default)
  generate    Generate a PRD from the command line
  mcp         Start MCP server (stdio mode)
  status      Show service status
  stop        Stop the running service
  version     Show version information

Environment:
  OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY   Model providers
  TAVILY_API_KEY                                      Live search (optional)
  PRD_DATA_DIR                                        Data directory override

Examples:
  prdforge                                  Start the service
  prdforge generate "shared grocery lists"  Print a PRD as JSON
  curl localhost:3001/health                Check service health`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath(), "Config file path")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
