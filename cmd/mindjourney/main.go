package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/mindjourney-backend/internal/app"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "mindjourney",
	Short:         "Diary entries with asynchronous insight extraction",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides MINDJOURNEY_CONFIG)")
	rootCmd.AddCommand(serveCmd, workerCmd, sweepCmd, statusCmd, reprocessCmd, mcpCmd, eventsCmd)
}

// bootstrap loads config, builds the logger and wires the app. Callers own
// the returned App and must Close it.
func bootstrap(ctx context.Context) (*app.App, error) {
	if configPath != "" {
		if err := os.Setenv("MINDJOURNEY_CONFIG", configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Startup failed", "error", err)
		log.Sync()
		return nil, err
	}
	return a, nil
}
