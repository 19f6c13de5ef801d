package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/prdforge/internal/service"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if running, pid := service.IsRunning(cfg); running {
			fmt.Printf("prdforge: running (PID %d)\n", pid)
			fmt.Printf("Address: %s\n", cfg.Address())
		} else {
			fmt.Println("prdforge: stopped")
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		running, pid := service.IsRunning(cfg)
		if !running {
			fmt.Println("prdforge is not running")
			return nil
		}

		fmt.Printf("Stopping prdforge (PID %d)...\n", pid)
		if err := service.StopRunning(cfg); err != nil {
			return err
		}
		fmt.Println("prdforge stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
}
