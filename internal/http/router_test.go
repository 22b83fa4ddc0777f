package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/mindjourney-backend/internal/data/repos"
	"github.com/yungbote/mindjourney-backend/internal/data/repos/testutil"
	"github.com/yungbote/mindjourney-backend/internal/documents"
	httpH "github.com/yungbote/mindjourney-backend/internal/http/handlers"
	"github.com/yungbote/mindjourney-backend/internal/http/response"
	"github.com/yungbote/mindjourney-backend/internal/insights/sweep"
	"github.com/yungbote/mindjourney-backend/internal/services"
)

type countingScheduler struct{ n int }

func (s *countingScheduler) Schedule(ctx context.Context, id uuid.UUID) error {
	s.n++
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *countingScheduler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	store, err := documents.NewLocalStore(log, t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	entries := repos.NewEntryRepo(db, log)
	sched := &countingScheduler{}
	svc := services.NewEntryService(services.EntryServiceDeps{
		Log:       log,
		Entries:   entries,
		Documents: repos.NewDocumentRepo(db, log),
		Insights:  repos.NewInsightRepo(db, log),
		Store:     store,
		Scheduler: sched,
		Sweeper:   sweep.New(log, entries, sched),
	})
	r := NewRouter(RouterConfig{
		Log:             log,
		ServiceName:     "mindjourney-test",
		EntryHandler:    httpH.NewEntryHandler(svc),
		InsightsHandler: httpH.NewInsightsHandler(svc),
		HealthHandler:   httpH.NewHealthHandler(nil),
	})
	return r, sched
}

func do(r *gin.Engine, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type entryEnvelope struct {
	Entry struct {
		ID                string `json:"id"`
		Title             string `json:"title"`
		Content           string `json:"content"`
		InsightsProcessed bool   `json:"insights_processed"`
		Documents         []struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
		} `json:"documents"`
	} `json:"entry"`
}

func TestEntryLifecycle(t *testing.T) {
	r, sched := newTestRouter(t)

	rec := do(r, nethttp.MethodPost, "/api/entries", []byte(`{"title":"Day one","content":"Loved the pizza at Mario's"}`), "application/json")
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created entryEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := created.Entry.ID
	if id == "" || created.Entry.InsightsProcessed {
		t.Fatalf("unexpected entry %+v", created.Entry)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = fw.Write([]byte("Rain all afternoon"))
	_ = mw.Close()
	rec = do(r, nethttp.MethodPost, "/api/entries/"+id+"/documents", buf.Bytes(), mw.FormDataContentType())
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("attach: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, nethttp.MethodGet, "/api/entries/"+id, nil, "")
	var got entryEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if rec.Code != nethttp.StatusOK || len(got.Entry.Documents) != 1 || got.Entry.Documents[0].Filename != "notes.txt" {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, nethttp.MethodPatch, "/api/entries/"+id, []byte(`{"content":"Loved the pasta instead"}`), "application/json")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, nethttp.MethodPost, "/api/entries/"+id+"/reprocess", nil, "")
	if rec.Code != nethttp.StatusAccepted {
		t.Fatalf("reprocess: %d %s", rec.Code, rec.Body.String())
	}
	if sched.n != 4 {
		t.Fatalf("expected create, attach, edit and reprocess to schedule; got %d", sched.n)
	}

	rec = do(r, nethttp.MethodGet, "/api/entries/"+id+"/insights", nil, "")
	var withInsights struct {
		Entry    struct{ ID string `json:"id"` } `json:"entry"`
		Insights []json.RawMessage               `json:"insights"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &withInsights)
	if rec.Code != nethttp.StatusOK || withInsights.Entry.ID != id || len(withInsights.Insights) != 0 {
		t.Fatalf("insights: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, nethttp.MethodGet, "/api/insights/status", nil, "")
	var rep sweep.Report
	_ = json.Unmarshal(rec.Body.Bytes(), &rep)
	if rec.Code != nethttp.StatusOK || rep.Total != 1 || rep.Unprocessed != 1 {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, nethttp.MethodPost, "/api/insights/sweep", nil, "")
	_ = json.Unmarshal(rec.Body.Bytes(), &rep)
	if rec.Code != nethttp.StatusOK || rep.Enqueued != 1 {
		t.Fatalf("sweep: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, nethttp.MethodDelete, "/api/entries/"+id, nil, "")
	if rec.Code != nethttp.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(r, nethttp.MethodGet, "/api/entries/"+id, nil, "")
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestErrorEnvelope(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad id", nethttp.MethodGet, "/api/entries/not-a-uuid", "", nethttp.StatusBadRequest, "validation"},
		{"missing entry", nethttp.MethodGet, "/api/entries/" + uuid.NewString(), "", nethttp.StatusNotFound, "not_found"},
		{"empty content", nethttp.MethodPost, "/api/entries", `{"content":"  "}`, nethttp.StatusBadRequest, "validation"},
		{"reprocess missing", nethttp.MethodPost, "/api/entries/" + uuid.NewString() + "/reprocess", "", nethttp.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(r, tc.method, tc.path, []byte(tc.body), "application/json")
			if rec.Code != tc.status {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			var env response.ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Error.Code != tc.code || env.Error.Message == "" {
				t.Fatalf("unexpected envelope %+v", env)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(r, nethttp.MethodGet, "/healthz", nil, "")
	if rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}
