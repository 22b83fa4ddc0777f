package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
	"github.com/yungbote/mindjourney-backend/internal/services"
)

type Deps struct {
	Log     *logger.Logger
	Entries services.EntryService
	Version string
}

// NewServer exposes the insight read and control operations as MCP tools.
func NewServer(deps Deps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"mindjourney",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("mindjourney: diary entries and the insights extracted from them."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_entry_insights",
			mcp.WithDescription("Return a diary entry with its extracted insights, categories and location."),
			mcp.WithString("entry_id", mcp.Description("Entry UUID"), mcp.Required()),
		),
		getEntryInsights(deps),
	)
	s.AddTool(
		mcp.NewTool("reprocess_entry",
			mcp.WithDescription("Mark an entry unprocessed and schedule a new extraction pass."),
			mcp.WithString("entry_id", mcp.Description("Entry UUID"), mcp.Required()),
		),
		reprocessEntry(deps),
	)
	s.AddTool(
		mcp.NewTool("insights_status",
			mcp.WithDescription("Count processed and unprocessed entries."),
		),
		insightsStatus(deps),
	)
	s.AddTool(
		mcp.NewTool("run_sweep",
			mcp.WithDescription("Schedule a pass for every unprocessed entry now."),
		),
		runSweep(deps),
	)
	return s
}

// ServeStdio blocks until ctx is cancelled or the input stream closes.
func ServeStdio(ctx context.Context, log *logger.Logger, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s)
	log.Info("MCP server listening on stdio")
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func getEntryInsights(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := entryID(req)
		if res != nil {
			return res, nil
		}
		out, err := deps.Entries.GetInsights(ctx, id)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(out)
	}
}

func reprocessEntry(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := entryID(req)
		if res != nil {
			return res, nil
		}
		if err := deps.Entries.Reprocess(ctx, id); err != nil {
			return toolError(err), nil
		}
		deps.Log.Info("Reprocess requested over MCP", "entry_id", id)
		return textResult(fmt.Sprintf("Scheduled reprocessing for entry %s", id)), nil
	}
}

func insightsStatus(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rep, err := deps.Entries.InsightsStatus(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(rep)
	}
}

func runSweep(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rep, err := deps.Entries.RetryUnprocessed(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(rep)
	}
}

func entryID(req mcp.CallToolRequest) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString("entry_id")
	if err != nil {
		return uuid.Nil, errorResult("entry_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errorResult(fmt.Sprintf("invalid entry_id %q", raw))
	}
	return id, nil
}

func toolError(err error) *mcp.CallToolResult {
	return errorResult(fmt.Sprintf("%s: %v", apperr.CodeOf(err), err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err)), nil
	}
	return textResult(string(b)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: msg}},
		IsError: true,
	}
}
