// Package llm wraps the model provider behind a one-method Chat interface so
// the task layer can be tested with a canned fake.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ErrUnconfigured is returned by New when no API key is set.
var ErrUnconfigured = errors.New("llm: api key not configured")

// Chat answers a single free-form prompt.
type Chat interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Config configures the Anthropic-backed Chat.
type Config struct {
	// APIKey is the Anthropic API key.
	APIKey string
	// Model to use. Default: claude-3-5-haiku-latest.
	Model string
	// MaxTokens caps the response size. Default: 1024.
	MaxTokens int64
	// Timeout bounds each request. Default: 60s.
	Timeout time.Duration
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = "claude-3-5-haiku-latest"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

// Anthropic implements Chat on the Anthropic messages API.
type Anthropic struct {
	config Config
	client anthropic.Client
}

// New creates an Anthropic Chat. It fails with ErrUnconfigured when the key
// is blank so callers can distinguish "not set up" from transport errors.
func New(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, ErrUnconfigured
	}
	cfg.defaults()
	return &Anthropic{
		config: cfg,
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
	}, nil
}

// Ask sends the prompt as a single user message and returns the concatenated
// text blocks of the response.
func (a *Anthropic) Ask(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.config.Model),
		MaxTokens: a.config.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: messages: %w", err)
	}

	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	if out == "" {
		return "", fmt.Errorf("llm: empty response")
	}
	return out, nil
}
