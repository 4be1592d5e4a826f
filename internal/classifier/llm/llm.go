// Package llm classifies code with an OpenAI-compatible chat completions
// endpoint.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/sakif/snippet-vault/internal/classifier"
	"github.com/sakif/snippet-vault/internal/model"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// maxCodeBytes bounds the prompt. Longer snippets are classified from their
// first maxCodeBytes bytes, cut back to a rune boundary.
const maxCodeBytes = 8000

var systemPrompt = fmt.Sprintf(`You are an expert code classifier. Classify the code snippet into exactly one of these categories: %s.
Consider React and TypeScript as primary categories if the code is clearly identifiable as such. For generic C-family syntax that is not clearly C#, or for languages not listed, answer Other.
Reply with JSON only: {"category": "<one of the categories>"}`, categoryList())

func categoryList() string {
	names := make([]string, len(model.ClassifiableCategories))
	for i, c := range model.ClassifiableCategories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client is a classifier.Classifier backed by resty.
type Client struct {
	http   *resty.Client
	model  string
	logger *slog.Logger
}

// New returns classifier.Disabled when cfg.APIKey is empty.
func New(cfg Config, logger *slog.Logger) classifier.Classifier {
	if cfg.APIKey == "" {
		logger.Warn("classifier API key not set, automatic classification is disabled")
		return classifier.Disabled{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{http: cli, model: cfg.Model, logger: logger}
}

func (c *Client) Classify(ctx context.Context, code string) (model.Category, error) {
	code = truncate(code, maxCodeBytes)

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: "Code:\n" + code},
			},
			Temperature: 0,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("classifier request: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return "", fmt.Errorf("classifier response status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("classifier response has no choices")
	}

	category, err := ParseLabel(out.Choices[0].Message.Content)
	if err != nil {
		c.logger.Warn("classifier returned unusable label",
			slog.String("content", out.Choices[0].Message.Content),
		)
		return "", err
	}
	return category, nil
}

// ParseLabel extracts a category from the model's reply. It accepts
// {"category": "X"} (optionally inside a ```json fence) or a bare label,
// matched case-insensitively against model.ClassifiableCategories.
func ParseLabel(content string) (model.Category, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	label := content
	var parsed struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && parsed.Category != "" {
		label = parsed.Category
	}

	label = strings.Trim(strings.TrimSpace(label), "\"'`.!")
	if category, ok := model.MatchClassifiable(label); ok {
		return category, nil
	}
	return "", fmt.Errorf("%w: %q", classifier.ErrUnrecognisedLabel, label)
}

// truncate returns at most n bytes of s without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
