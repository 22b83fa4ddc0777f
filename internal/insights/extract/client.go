package extract

import (
	"context"
	"strings"

	"github.com/yungbote/mindjourney-backend/internal/insights/prompts"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
	"github.com/yungbote/mindjourney-backend/internal/platform/openai"
)

const titleMaxWords = 5

type Extractor interface {
	ExtractInsights(ctx context.Context, text string) ([]Candidate, error)
	GenerateTitle(ctx context.Context, content string) (string, error)
}

type Client struct {
	log     *logger.Logger
	llm     openai.Client
	prompts *prompts.Set
}

func NewClient(log *logger.Logger, llm openai.Client, set *prompts.Set) *Client {
	if set == nil {
		set = prompts.Default()
	}
	return &Client{log: log.With("component", "ExtractionClient"), llm: llm, prompts: set}
}

// ExtractInsights fails only with configuration or upstream errors. A reply
// that does not contain a usable JSON array produces an empty result.
func (c *Client) ExtractInsights(ctx context.Context, text string) ([]Candidate, error) {
	const op = "extract.ExtractInsights"
	reply, err := c.generate(ctx, op, prompts.ExtractInsights, struct{ Content string }{text})
	if err != nil {
		return nil, err
	}
	out := ParseCandidates(reply, text)
	c.log.Debug("Parsed insight candidates", "accepted", len(out), "reply_bytes", len(reply))
	return out, nil
}

func (c *Client) GenerateTitle(ctx context.Context, content string) (string, error) {
	const op = "extract.GenerateTitle"
	reply, err := c.generate(ctx, op, prompts.GenerateTitle, struct{ Content string }{content})
	if err != nil {
		return "", err
	}
	title := cleanTitle(reply)
	if title == "" {
		return "", apperr.New(apperr.CodeUpstream, op, "empty title in model reply")
	}
	return title, nil
}

func (c *Client) generate(ctx context.Context, op, name string, data any) (string, error) {
	if c.llm == nil {
		return "", apperr.New(apperr.CodeConfiguration, op, "model client not configured")
	}
	system, user, err := c.prompts.Render(name, data)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeConfiguration, op, err)
	}
	reply, err := c.llm.GenerateText(ctx, system, user)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeUpstream, op, err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", apperr.New(apperr.CodeUpstream, op, "empty model reply")
	}
	return reply, nil
}

func cleanTitle(reply string) string {
	line := strings.TrimSpace(reply)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.TrimPrefix(line, "Title:")
	return strings.Trim(strings.TrimSpace(line), `"'*`+"`")
}

// FallbackTitle is used when title generation fails: the first five words,
// with an ellipsis when the content is longer.
func FallbackTitle(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return "Untitled entry"
	}
	if len(words) <= titleMaxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleMaxWords], " ") + "..."
}
