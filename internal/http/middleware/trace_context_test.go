package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/mindjourney-backend/internal/platform/ctxutil"
)

func traceRouter(seen **ctxutil.TraceData) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceContext())
	r.GET("/api/entries/:id", func(c *gin.Context) {
		*seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r
}

func TestTraceContextPropagatesRequestID(t *testing.T) {
	var seen *ctxutil.TraceData
	r := traceRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/api/entries/abc", nil)
	req.Header.Set("X-Request-Id", "req-42")
	req.Header.Set("X-Trace-Id", "trace-7")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil || seen.RequestID != "req-42" || rec.Header().Get("X-Request-Id") != "req-42" {
		t.Fatalf("request id not propagated: seen=%+v header=%q", seen, rec.Header().Get("X-Request-Id"))
	}
	if seen.TraceID != "trace-7" || rec.Header().Get("X-Trace-Id") != "trace-7" {
		t.Fatalf("trace id not propagated: seen=%+v", seen)
	}
}

func TestTraceContextRejectsUnsafeIDs(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"newline", "req\nforged=1"},
		{"spaces", "req 42"},
		{"too long", strings.Repeat("a", maxCorrelationIDLen+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen *ctxutil.TraceData
			r := traceRouter(&seen)
			req := httptest.NewRequest(http.MethodGet, "/api/entries/abc", nil)
			req.Header["X-Request-Id"] = []string{tc.value}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if seen == nil || seen.RequestID == "" || seen.RequestID == tc.value {
				t.Fatalf("expected a generated request id, got %+v", seen)
			}
			if seen.TraceID == "" {
				t.Fatalf("trace id should be generated")
			}
		})
	}
}

func TestTraceContextPrefersSpanTraceID(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := trace.ContextWithSpanContext(context.Background(), sc)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	var seen *ctxutil.TraceData
	r.Use(TraceContext())
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Trace-Id", "client-supplied")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if seen == nil || seen.TraceID != traceID.String() {
		t.Fatalf("expected span trace id %s, got %+v", traceID, seen)
	}
}
