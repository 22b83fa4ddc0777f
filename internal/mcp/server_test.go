package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	types "github.com/yungbote/mindjourney-backend/internal/domain"
	"github.com/yungbote/mindjourney-backend/internal/insights/sweep"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
	"github.com/yungbote/mindjourney-backend/internal/services"
)

type fakeEntries struct {
	services.EntryService
	known      uuid.UUID
	reprocess  []uuid.UUID
	sweepCalls int
}

func (f *fakeEntries) GetInsights(ctx context.Context, id uuid.UUID) (*services.EntryWithInsights, error) {
	if id != f.known {
		return nil, apperr.Newf(apperr.CodeNotFound, "fake.GetInsights", "entry %s not found", id)
	}
	return &services.EntryWithInsights{
		Entry: &types.Entry{ID: id, Title: "Lunch", Content: "Ate sushi downtown"},
		Insights: []*types.Insight{{
			ID:            uuid.New(),
			EntryID:       id,
			TextSnippet:   "Ate sushi downtown",
			StartPosition: 0,
			EndPosition:   18,
		}},
	}, nil
}

func (f *fakeEntries) Reprocess(ctx context.Context, id uuid.UUID) error {
	if id != f.known {
		return apperr.Newf(apperr.CodeNotFound, "fake.Reprocess", "entry %s not found", id)
	}
	f.reprocess = append(f.reprocess, id)
	return nil
}

func (f *fakeEntries) InsightsStatus(ctx context.Context) (sweep.Report, error) {
	return sweep.Report{Total: 3, Processed: 2, Unprocessed: 1}, nil
}

func (f *fakeEntries) RetryUnprocessed(ctx context.Context) (sweep.Report, error) {
	f.sweepCalls++
	return sweep.Report{Total: 3, Processed: 2, Unprocessed: 1, Enqueued: 1}, nil
}

func callTool(name string, args map[string]interface{}) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	}
}

func resultText(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", res.Content[0])
	}
	return tc.Text
}

func testDeps() (Deps, *fakeEntries) {
	f := &fakeEntries{known: uuid.New()}
	return Deps{Log: logger.Nop(), Entries: f}, f
}

func TestNewServerRegistersTools(t *testing.T) {
	deps, _ := testDeps()
	s := NewServer(deps)
	msg, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/list",
	})
	raw, err := json.Marshal(s.HandleMessage(context.Background(), msg))
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode: %v\nraw: %s", err, raw)
	}
	got := map[string]bool{}
	for _, tool := range resp.Result.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{"get_entry_insights", "reprocess_entry", "insights_status", "run_sweep"} {
		if !got[name] {
			t.Fatalf("tool %q not registered; got %s", name, raw)
		}
	}
}

func TestGetEntryInsights(t *testing.T) {
	deps, f := testDeps()
	res, err := getEntryInsights(deps)(context.Background(), callTool("get_entry_insights", map[string]interface{}{
		"entry_id": f.known.String(),
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, res))
	}
	var out services.EntryWithInsights
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Entry.ID != f.known || len(out.Insights) != 1 || out.Insights[0].TextSnippet != "Ate sushi downtown" {
		t.Fatalf("unexpected payload %+v", out)
	}
}

func TestGetEntryInsightsErrors(t *testing.T) {
	deps, _ := testDeps()
	h := getEntryInsights(deps)

	res, _ := h(context.Background(), callTool("get_entry_insights", map[string]interface{}{}))
	if !res.IsError || !strings.Contains(resultText(t, res), "entry_id is required") {
		t.Fatalf("missing id: %+v", res)
	}
	res, _ = h(context.Background(), callTool("get_entry_insights", map[string]interface{}{"entry_id": "nope"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "invalid entry_id") {
		t.Fatalf("bad id: %+v", res)
	}
	res, _ = h(context.Background(), callTool("get_entry_insights", map[string]interface{}{"entry_id": uuid.NewString()}))
	if !res.IsError || !strings.HasPrefix(resultText(t, res), "not_found:") {
		t.Fatalf("unknown id: %s", resultText(t, res))
	}
}

func TestReprocessEntry(t *testing.T) {
	deps, f := testDeps()
	res, err := reprocessEntry(deps)(context.Background(), callTool("reprocess_entry", map[string]interface{}{
		"entry_id": f.known.String(),
	}))
	if err != nil || res.IsError {
		t.Fatalf("reprocess: err=%v res=%+v", err, res)
	}
	if len(f.reprocess) != 1 || f.reprocess[0] != f.known {
		t.Fatalf("expected one reprocess call, got %v", f.reprocess)
	}
}

func TestStatusAndSweep(t *testing.T) {
	deps, f := testDeps()

	res, _ := insightsStatus(deps)(context.Background(), callTool("insights_status", nil))
	var rep sweep.Report
	if err := json.Unmarshal([]byte(resultText(t, res)), &rep); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if rep.Total != 3 || rep.Unprocessed != 1 {
		t.Fatalf("unexpected status %+v", rep)
	}

	res, _ = runSweep(deps)(context.Background(), callTool("run_sweep", nil))
	if err := json.Unmarshal([]byte(resultText(t, res)), &rep); err != nil {
		t.Fatalf("decode sweep: %v", err)
	}
	if rep.Enqueued != 1 || f.sweepCalls != 1 {
		t.Fatalf("unexpected sweep %+v calls=%d", rep, f.sweepCalls)
	}
}
