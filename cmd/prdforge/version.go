package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/ternarybob/prdforge/internal/api"
)

// version is set via -ldflags at build time
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("prdforge %s\n", version)
		fmt.Printf("  go:      %s\n", runtime.Version())
		fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	api.SetVersion(version)
	rootCmd.AddCommand(versionCmd)
}
