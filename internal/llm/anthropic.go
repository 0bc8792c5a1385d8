package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/starford/scribe/internal/apperr"
)

// Anthropic talks to the Anthropic Messages API through the official SDK.
type Anthropic struct {
	client    anthropic.Client
	model     string
	system    string
	maxTokens int64
	logger    *slog.Logger
}

// NewAnthropic creates a Messages API client. SDK retries are disabled;
// retry policy belongs to the caller.
func NewAnthropic(cfg Config, logger *slog.Logger) (*Anthropic, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: missing api key")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		system:    cfg.System,
		maxTokens: maxTokens,
		logger:    logger.With(slog.String("service", "anthropic")),
	}, nil
}

// Complete implements TextGenerator.
func (c *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", apperr.Classify(serviceName, apiErr.StatusCode, err)
		}
		return "", apperr.Classify(serviceName, 0, err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	c.logger.Debug("anthropic: message received",
		slog.String("model", c.model),
		slog.String("stop_reason", string(msg.StopReason)))
	return b.String(), nil
}
