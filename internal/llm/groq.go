// Package llm calls an OpenAI-compatible chat completions API (Groq by
// default) to answer questions from assembled context. One non-streaming
// request per question — plain HTTP, no SDK.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Message roles accepted by the chat completions API.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one conversational turn sent to the model.
type Message struct {
	// Role is "system" or "user".
	Role string `json:"role"`

	// Content is the turn's text.
	Content string `json:"content"`
}

// Config holds the settings for constructing a Client.
type Config struct {
	// BaseURL is the API base, e.g. "https://api.groq.com/openai/v1".
	BaseURL string

	// APIKey is the Bearer token.
	APIKey string

	// Model is the chat model name. Defaults to "llama-3.1-8b-instant".
	Model string

	// Temperature controls response randomness. Defaults to 0.7.
	Temperature float32

	// MaxTokens bounds the response length. Defaults to 1000.
	MaxTokens int

	// Timeout is the per-request HTTP timeout. Defaults to 30s.
	Timeout time.Duration
}

// Client calls the chat completions endpoint. Safe for concurrent use.
type Client struct {
	// cfg holds the resolved configuration.
	cfg *Config

	// client is the shared HTTP client.
	client *http.Client
}

// TransportError reports a non-success HTTP status from the model API.
// It is surfaced to the caller unchanged — the pipeline never retries
// model calls.
type TransportError struct {
	// StatusCode is the HTTP status returned.
	StatusCode int

	// Detail is the error body or message, truncated.
	Detail string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm: HTTP %d: %s", e.StatusCode, e.Detail)
}

// New constructs a Client from the given config.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: base URL must not be empty")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key must not be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.1-8b-instant"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Model returns the configured chat model name.
func (c *Client) Model() string { return c.cfg.Model }

// completionRequest is the JSON body for the chat completions endpoint.
type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// completionResponse is the JSON body returned by the endpoint.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the messages and returns the model's answer text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	body := completionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := "no error detail"
		if result.Error != nil {
			detail = result.Error.Message
		}
		return "", &TransportError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("llm: response contained no choices")
	}
	return result.Choices[0].Message.Content, nil
}
