// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm generates documentation text through the OpenAI chat API,
// with rate limiting and retry on transient failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// ErrNoAPIKey is returned when neither QUILL_OPENAI_API_KEY nor
// OPENAI_API_KEY is set.
var ErrNoAPIKey = errors.New("no OpenAI API key configured")

const (
	defaultModel       = "gpt-4o-mini"
	defaultMaxRetries  = 3
	defaultRequestsPer = 2 // requests per second
)

// DocRequest describes one documentation generation task.
type DocRequest struct {
	// ItemName is the symbol to document.
	ItemName string

	// ItemType is "function", "method" or "class".
	ItemType string

	// Language is "go" or "python".
	Language string

	// Source is the full source text of the item.
	Source string
}

// Generator produces documentation text for code items.
type Generator interface {
	GenerateDoc(ctx context.Context, req DocRequest) (string, error)
}

// Client is the OpenAI-backed Generator.
//
// # Thread Safety
//
// Safe for concurrent use; the rate limiter serializes request admission.
type Client struct {
	api        *openai.Client
	model      string
	limiter    *rate.Limiter
	maxRetries int
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithRateLimit overrides the request admission rate.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewClient creates an OpenAI documentation generator.
//
// The API key resolves from QUILL_OPENAI_API_KEY first, then
// OPENAI_API_KEY. The model resolves from QUILL_OPENAI_MODEL unless
// overridden with WithModel.
func NewClient(opts ...Option) (*Client, error) {
	apiKey := os.Getenv("QUILL_OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	model := os.Getenv("QUILL_OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}

	c := &Client{
		api:        openai.NewClient(apiKey),
		model:      model,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPer), 1),
		maxRetries: defaultMaxRetries,
		logger:     slog.Default().With("component", "llm.Client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Debug("LLM client initialized", "model", c.model)
	return c, nil
}

// GenerateDoc produces documentation text for one item.
//
// # Description
//
// Waits for rate-limiter admission, then calls the chat API with a
// language-aware prompt. Retries up to maxRetries times with exponential
// backoff plus jitter on 429 and 5xx responses; other errors fail
// immediately. The returned text is the bare documentation body with any
// surrounding code fences stripped.
func (c *Client) GenerateDoc(ctx context.Context, req DocRequest) (string, error) {
	prompt := buildPrompt(req)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			c.logger.Warn("retrying LLM request",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0.2,
		})
		if err != nil {
			if !isRetryable(err) {
				return "", fmt.Errorf("chat completion failed: %w", err)
			}
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("chat completion returned no choices")
			continue
		}
		return cleanResponse(resp.Choices[0].Message.Content), nil
	}
	return "", fmt.Errorf("chat completion failed after %d retries: %w", c.maxRetries, lastErr)
}

// isRetryable reports whether an API error is worth retrying.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return false
}

// backoffDelay is exponential with up to 25% jitter: ~1s, 2s, 4s.
func backoffDelay(attempt int) time.Duration {
	base := time.Second << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(base) / 4))
	return base + jitter
}

const systemPrompt = "You are a precise technical writer. You write concise, " +
	"accurate code documentation describing what the code does, its inputs, " +
	"outputs, and error conditions. You never invent behavior not present in " +
	"the code. Respond with the documentation text only, no code fences, no " +
	"restatement of the code."

func buildPrompt(req DocRequest) string {
	var b strings.Builder
	switch req.Language {
	case "python":
		fmt.Fprintf(&b, "Write a PEP 257 docstring body (no surrounding triple quotes) for the %s %q.\n",
			req.ItemType, req.ItemName)
		b.WriteString("Use a one-line summary, then Args/Returns/Raises sections when applicable.\n")
	default:
		fmt.Fprintf(&b, "Write a Go doc comment body (without the // markers) for the %s %q.\n",
			req.ItemType, req.ItemName)
		fmt.Fprintf(&b, "Start with the identifier name %q per Go convention.\n", docLeadIdent(req.ItemName))
	}
	b.WriteString("\nSource:\n")
	b.WriteString(req.Source)
	return b.String()
}

// docLeadIdent returns the bare method name for qualified names, which is
// what a Go doc comment should start with.
func docLeadIdent(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// cleanResponse strips code fences and surrounding quotes the model may
// add despite instructions.
func cleanResponse(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.Trim(strings.TrimSpace(text), `"`)
}
