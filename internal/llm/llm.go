package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/coursemate/internal/llm/queue"
)

const (
	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "gpt-4-turbo-preview"
	// DefaultInitialDelay is the wait before the first retry of a rate-limited call.
	DefaultInitialDelay = 2 * time.Second
	// DefaultMaxAttempts bounds the attempts per call, the first one included.
	DefaultMaxAttempts = 3
)

// Format selects the response format requested from the API.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json_object"
)

// Request is a single chat completion.
type Request struct {
	System      string
	User        string
	Format      Format
	Temperature float32 // zero leaves the API default
	MaxTokens   int     // zero leaves the API default
	// Direct bypasses the queue.
	Direct bool
}

// Config holds the connection settings of a Client.
type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	InitialDelay time.Duration
	MaxAttempts  int
}

// Option customizes a Client.
type Option func(*Client)

// WithQueue serializes non-direct completions through q.
func WithQueue(q *queue.Queue) Option {
	return func(c *Client) { c.queue = q }
}

// withTimer replaces the retry timer; tests use it to observe delays.
func withTimer(newTimer func() backoff.Timer) Option {
	return func(c *Client) { c.newTimer = newTimer }
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api          *openai.Client
	model        string
	initialDelay time.Duration
	maxAttempts  int
	queue        *queue.Queue
	newTimer     func() backoff.Timer
}

// New creates a new LLM client.
func New(cfg Config, opts ...Option) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	c := &Client{
		api:          openai.NewClientWithConfig(config),
		model:        cfg.Model,
		initialDelay: cfg.InitialDelay,
		maxAttempts:  cfg.MaxAttempts,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.initialDelay <= 0 {
		c.initialDelay = DefaultInitialDelay
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model name sent with every request.
func (c *Client) Model() string { return c.model }

// Ping checks that the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("ping LLM API: %w", classify(err))
	}
	return nil
}

// Complete sends req and returns the content of the first choice. Unless
// req.Direct is set and a queue is configured, the call waits its turn behind
// earlier completions. Failures are returned as *Error.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if req.Direct || c.queue == nil {
		return c.complete(ctx, req)
	}
	if n := c.queue.Len(); n > 0 {
		slog.Debug("completion queued", "ahead", n)
	}
	return queue.Do(c.queue, ctx, func(ctx context.Context) (string, error) {
		return c.complete(ctx, req)
	})
}

// complete retries rate-limited calls with exponential backoff.
func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.initialDelay
	expo.RandomizationFactor = 0
	expo.Multiplier = 2
	expo.MaxInterval = c.initialDelay << c.maxAttempts
	expo.MaxElapsedTime = 0
	b := backoff.WithMaxRetries(backoff.WithContext(expo, ctx), uint64(c.maxAttempts-1))

	attempt := 0
	var content string
	op := func() error {
		attempt++
		out, err := c.call(ctx, req)
		if err != nil {
			e := classify(err)
			if e.Kind != KindRateLimited {
				return backoff.Permanent(e)
			}
			return e
		}
		content = out
		return nil
	}
	notify := func(err error, delay time.Duration) {
		slog.Warn("LLM rate limited, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}
	if err := backoff.RetryNotifyWithTimer(op, b, notify, timer); err != nil {
		return "", classify(err)
	}
	return content, nil
}

func (c *Client) call(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Format == FormatJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", c.model, "format", req.Format, "raw", raw)
	return raw, nil
}
