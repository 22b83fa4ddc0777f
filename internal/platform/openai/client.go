package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/yungbote/mindjourney-backend/internal/observability"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/envutil"
	"github.com/yungbote/mindjourney-backend/internal/platform/httpx"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

// Client is the prompt-in, text-out surface the insight pipeline needs.
type Client interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
}

type Config struct {
	APIKey     string        `yaml:"-"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	// RateLimit caps outbound requests per second across the process. Zero disables it.
	RateLimit   float64 `yaml:"rate_limit_rps"`
	Temperature float64 `yaml:"temperature"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.openai.com",
		Model:       "gpt-4o-mini",
		Timeout:     45 * time.Second,
		MaxRetries:  2,
		RateLimit:   2,
		Temperature: 0.2,
	}
}

func ConfigFromEnv() Config { return DefaultConfig().WithEnv() }

// WithEnv overrides c with any OPENAI_* variables that are set.
func (c Config) WithEnv() Config {
	c.APIKey = envutil.String("OPENAI_API_KEY", c.APIKey)
	c.BaseURL = envutil.String("OPENAI_BASE_URL", c.BaseURL)
	c.Model = envutil.String("OPENAI_MODEL", c.Model)
	c.Timeout = envutil.Duration("OPENAI_TIMEOUT_SECONDS", c.Timeout)
	c.MaxRetries = envutil.Int("OPENAI_MAX_RETRIES", c.MaxRetries)
	c.RateLimit = envutil.Float("OPENAI_RATE_LIMIT_RPS", c.RateLimit)
	c.Temperature = envutil.Float("OPENAI_TEMPERATURE", c.Temperature)
	return c
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient never fails on a missing key; each call reports it as a
// configuration error instead so the process can still boot.
func NewClient(log *logger.Logger, cfg Config) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	c := &client{
		log:        log.With("service", "OpenAIClient", "model", cfg.Model),
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    limiter,
	}
	if cfg.APIKey == "" {
		c.log.Warn("OPENAI_API_KEY not set; model calls will fail with a configuration error")
	}
	return c
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, body)
}

func (e *httpError) HTTPStatusCode() int { return e.StatusCode }

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model       string         `json:"model"`
	Input       []inputMessage `json:"input"`
	Temperature *float64       `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	OutputText string `json:"output_text,omitempty"`
	Refusal    string `json:"refusal,omitempty"`
}

func (r responsesResponse) text() string {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" || (item.Role != "" && item.Role != "assistant") {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	if b.Len() == 0 {
		return r.OutputText
	}
	return b.String()
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	const op = "openai.GenerateText"
	if c.cfg.APIKey == "" {
		return "", apperr.New(apperr.CodeConfiguration, op, "OPENAI_API_KEY not set")
	}

	ctx, span := observability.StartSpan(ctx, "openai.generate", attribute.String("openai.model", c.cfg.Model))
	defer span.End()

	req := responsesRequest{
		Model: c.cfg.Model,
		Input: []inputMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if c.cfg.Temperature > 0 {
		t := c.cfg.Temperature
		req.Temperature = &t
	}

	start := time.Now()
	var resp responsesResponse
	err := c.doWithRetry(ctx, "/v1/responses", &req, &resp)
	if err == nil && resp.Refusal != "" {
		err = fmt.Errorf("model refused: %s", resp.Refusal)
	}
	text := ""
	if err == nil {
		text = resp.text()
		if strings.TrimSpace(text) == "" {
			err = fmt.Errorf("no output_text in response")
		}
	}
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.Current().ObserveLLMRequest("generate_text", status, time.Since(start))
	if err != nil {
		var he *httpError
		if errors.As(err, &he) && (he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden) {
			return "", apperr.Wrap(apperr.CodeConfiguration, op, fmt.Errorf("credential rejected: %w", err))
		}
		return "", apperr.Wrap(apperr.CodeUpstream, op, err)
	}
	return text, nil
}

func (c *client) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}
	// Each attempt gets its own deadline so one hung call cannot pin a worker.
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) doWithRetry(ctx context.Context, path string, body any, out any) error {
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("decode response: %w", uErr)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= c.cfg.MaxRetries || !httpx.IsRetryableError(err) {
			return err
		}
		wait := httpx.Jitter(httpx.RetryAfter(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", wait.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, wait); err != nil {
			return err
		}
		backoff *= 2
	}
}
