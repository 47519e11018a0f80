// Package embedder converts text into dense vector embeddings for index
// backends that do not embed server-side (Qdrant). The Pinecone backend
// never needs this package — its index embeds records itself, which is why
// the pipeline core has no embedding step of its own.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Embedder converts a batch of texts into their corresponding embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed returns one vector per input text, parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds the settings for constructing an HTTPEmbedder.
type Config struct {
	// BaseURL is an OpenAI-compatible API base, e.g. "https://api.openai.com/v1"
	// or a local Ollama endpoint "http://localhost:11434/v1".
	BaseURL string

	// APIKey is the Bearer token. May be empty for local endpoints.
	APIKey string

	// Model is the embedding model name (e.g. "text-embedding-3-small").
	Model string

	// Dimensions overrides the vector length (0 = model default).
	Dimensions int

	// Timeout is the per-request HTTP timeout. Defaults to 30s.
	Timeout time.Duration
}

// HTTPEmbedder implements Embedder against any OpenAI-compatible
// /embeddings endpoint over plain HTTP. Safe for concurrent use.
type HTTPEmbedder struct {
	// cfg holds the resolved configuration.
	cfg *Config

	// client is the shared HTTP client.
	client *http.Client
}

// New constructs an HTTPEmbedder from the given config.
func New(cfg *Config) (*HTTPEmbedder, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedder: base URL must not be empty")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedder: model must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// embedRequest is the JSON body sent to the embeddings endpoint.
type embedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// embedResponse is the JSON body returned from the embeddings endpoint.
type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := embedRequest{Input: texts, Model: e.cfg.Model}
	if e.cfg.Dimensions > 0 {
		body.Dimensions = e.cfg.Dimensions
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("embedder: %s", msg)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The API may return data out of order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}
