package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

func okBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"output": []map[string]any{{
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{{
				"type": "output_text",
				"text": text,
			}},
		}},
	})
	return string(b)
}

func TestGenerateTextMissingKey(t *testing.T) {
	c := NewClient(logger.Nop(), Config{})
	_, err := c.GenerateText(context.Background(), "sys", "user")
	if !apperr.IsCode(err, apperr.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGenerateTextSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header %q", got)
		}
		var req responsesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Input) != 2 || req.Input[1].Content != "hello" {
			t.Errorf("unexpected input %+v", req.Input)
		}
		_, _ = w.Write([]byte(okBody("hi there")))
	}))
	defer srv.Close()

	c := NewClient(logger.Nop(), Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "m"})
	got, err := c.GenerateText(context.Background(), "sys", "hello")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "hi there" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateTextRetriesThenUpstream(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(logger.Nop(), Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := c.GenerateText(ctx, "s", "u")
	if !apperr.IsCode(err, apperr.CodeUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestGenerateTextNoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	c := NewClient(logger.Nop(), Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 3})
	_, err := c.GenerateText(context.Background(), "s", "u")
	if !apperr.IsCode(err, apperr.CodeUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", n)
	}
}

func TestGenerateTextRejectedKeyIsConfiguration(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
		}))

		c := NewClient(logger.Nop(), Config{APIKey: "sk-bad", BaseURL: srv.URL, MaxRetries: 3})
		_, err := c.GenerateText(context.Background(), "s", "u")
		srv.Close()
		if !apperr.IsCode(err, apperr.CodeConfiguration) {
			t.Fatalf("status %d: expected configuration error, got %v", status, err)
		}
		if apperr.Retriable(err) {
			t.Fatalf("status %d: rejected key must not be retriable", status)
		}
		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Fatalf("status %d: expected 1 call, got %d", status, n)
		}
	}
}

func TestGenerateTextTimeoutIsUpstream(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(logger.Nop(), Config{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.GenerateText(context.Background(), "s", "u")
	if !apperr.IsCode(err, apperr.CodeUpstream) {
		t.Fatalf("expected upstream error on timeout, got %v", err)
	}
}

func TestGenerateTextEmptyOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[]}`))
	}))
	defer srv.Close()
	c := NewClient(logger.Nop(), Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.GenerateText(context.Background(), "s", "u")
	if !apperr.IsCode(err, apperr.CodeUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
