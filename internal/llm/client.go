// Package llm wraps an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 45 * time.Second
)

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("llm: no provider configured")
	// ErrNoToolCall is returned when the model answered without calling the requested tool.
	ErrNoToolCall = errors.New("llm: response has no tool call")
	// ErrEmptyResponse is returned when the model returned no choices.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Config holds configuration for creating an LLM client.
type Config struct {
	BaseURL string // e.g. "https://api.openai.com/v1"; empty uses the OpenAI default
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Configured reports whether cfg carries enough to talk to a provider.
func (cfg Config) Configured() bool {
	return strings.TrimSpace(cfg.APIKey) != ""
}

// Client provides chat completions and forced tool calls.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a new client, or ErrNotConfigured when cfg has no API key.
func NewClient(cfg Config) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a system and a user message and returns the reply text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	slog.Debug("LLM completion finished",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed", time.Since(start))

	return resp.Choices[0].Message.Content, nil
}

// CallTool forces the model to call tool and returns the raw JSON arguments.
func (c *Client) CallTool(ctx context.Context, system, user string, tool ToolDefinition) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: tool.Name},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name != tool.Name {
			continue
		}
		args := strings.TrimSpace(call.Function.Arguments)
		if !json.Valid([]byte(args)) {
			return nil, fmt.Errorf("%w: malformed arguments for %s", ErrNoToolCall, tool.Name)
		}
		return json.RawMessage(args), nil
	}
	return nil, ErrNoToolCall
}
