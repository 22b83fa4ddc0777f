package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	redisx "github.com/yungbote/mindjourney-backend/internal/clients/redis"
	mjmcp "github.com/yungbote/mindjourney-backend/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the job consumer and the sweep loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Serve(cmd.Context())
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the job consumer and the sweep loop without the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.RunWorker(cmd.Context())
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Schedule a pass for every unprocessed entry once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		rep, err := a.Services.Entries.RetryUnprocessed(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(rep)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print processed/unprocessed entry counts and job queue depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		rep, err := a.Services.Entries.InsightsStatus(cmd.Context())
		if err != nil {
			return err
		}
		jobs, err := a.Services.Jobs.CountByStatus(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"entries": rep, "jobs": jobs})
	},
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <entry-id>",
	Short: "Mark an entry unprocessed and schedule a new pass",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid entry id %q: %w", args[0], err)
		}
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Services.Entries.Reprocess(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "scheduled %s\n", id)
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the insight tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		srv := mjmcp.NewServer(mjmcp.Deps{Log: a.Log, Entries: a.Services.Entries, Version: a.Cfg.Version})
		return mjmcp.ServeStdio(cmd.Context(), a.Log, srv, os.Stdin, os.Stdout)
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail pipeline events from redis as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		bus := a.Events()
		if bus == nil {
			return fmt.Errorf("REDIS_ADDR is not set")
		}
		enc := json.NewEncoder(os.Stdout)
		if err := bus.StartForwarder(cmd.Context(), func(ev redisx.Event) {
			_ = enc.Encode(ev)
		}); err != nil {
			return err
		}
		<-cmd.Context().Done()
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
