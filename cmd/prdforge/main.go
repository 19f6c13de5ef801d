// Package main provides the entry point for prdforge.
//
// prdforge turns a product idea into a structured requirements document:
// the idea is analyzed with live market search, then synthesized into a
// validated PRD that can be saved, versioned and exported.
//
// Usage:
//
//	prdforge                        Start the service (default)
//	prdforge serve                  Start the service
//	prdforge generate "<idea>"      Generate a PRD from the command line
//	prdforge mcp                    Start MCP server (stdio mode)
//	prdforge status                 Show service status
//	prdforge stop                   Stop the running service
//	prdforge version                Show version
package main

import (
	"os"

	"github.com/ternarybob/prdforge/internal/logger"
)

func main() {
	err := rootCmd.Execute()
	logger.Stop()
	if err != nil {
		os.Exit(1)
	}
}
