// Package llm provides text-in/text-out clients for generative-text services.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// TextGenerator sends one opaque prompt and returns the model's text.
// Transport, auth and server failures come back as *apperr.ExternalError.
// An empty or malformed reply is not an error.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a TextGenerator.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	System      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// New builds the TextGenerator named by cfg.Provider.
func New(cfg Config, logger *slog.Logger) (TextGenerator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropic(cfg, logger)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// snippet truncates s to at most n runes.
func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
