package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/prdforge/internal/api"
	"github.com/ternarybob/prdforge/internal/app"
	"github.com/ternarybob/prdforge/internal/logger"
	"github.com/ternarybob/prdforge/internal/service"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Start the HTTP service",
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if running, pid := service.IsRunning(cfg); running {
		return fmt.Errorf("service already running (PID %d)", pid)
	}

	log := logger.SetupLogger(cfg, true)

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	apiServer := api.NewServer(cfg, a.Orchestrator, a.Documents, a.Intake, log)

	daemon := service.NewDaemon(cfg, log)
	daemon.OnShutdown(a.Shutdown)

	if err := daemon.Start(apiServer.Handler()); err != nil {
		a.Shutdown()
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Printf("prdforge %s started on %s\n", version, cfg.Address())
	fmt.Printf("Health: http://%s/health\n", cfg.Address())

	daemon.Wait()
	return nil
}
