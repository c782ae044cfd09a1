// Package llm rewrites template questions into natural wording with an
// OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/config"
)

// DefaultModel is used when the configuration names no model.
const DefaultModel = "gpt-4o-mini"

// ErrEmptyCompletion is returned when the model answers without content.
var ErrEmptyCompletion = errors.New("llm: empty completion")

const promptTemplate = `Rewrite the following search question so it reads like a natural question a news reader would ask.
Keep the same meaning and the same topic keywords, write it in the language of the keywords, and answer with the question only.

Search query: %s
Question: %s`

// Rephraser asks a chat model to reword questions.
type Rephraser struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Rephraser from cfg. An empty BaseURL targets the public
// OpenAI endpoint.
func New(cfg config.LLMConfig) (*Rephraser, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Rephraser{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: cfg.Timeout,
		logger:  slog.Default().With("component", "llm-rephraser", "model", model),
	}, nil
}

// Rephrase returns the model's rewording of question.
func (r *Rephraser) Rephrase(ctx context.Context, question, query string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(promptTemplate, query, question),
			},
		},
		Temperature: 0.3,
		MaxTokens:   120,
	})
	if err != nil {
		return "", fmt.Errorf("rephrasing %q: %w", query, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := clean(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	r.logger.Debug("question rephrased", "query", query, "elapsed", time.Since(start))
	return text, nil
}

// clean keeps the first line and strips wrapping quotes.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(strings.Trim(s, "\"'“”"))
}
