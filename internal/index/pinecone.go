package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// PineconeConfig holds connection parameters for a Pinecone serverless index
// with integrated embedding. The index embeds the "chunk_text" field
// server-side, so no embedding provider is configured here.
type PineconeConfig struct {
	// Host is the index host, e.g. "https://rag-index-abc123.svc.aped-4627-b74a.pinecone.io".
	Host string

	// APIKey is the Pinecone API key.
	APIKey string

	// APIVersion is the X-Pinecone-API-Version header value.
	// Defaults to "2025-01".
	APIVersion string

	// Timeout is the per-request HTTP timeout. Defaults to 30s.
	Timeout time.Duration
}

// PineconeBackend implements Backend against the Pinecone records REST API.
// It talks plain HTTP — the API surface used here is small enough that an
// SDK would add more weight than it removes. Safe for concurrent use.
type PineconeBackend struct {
	// cfg holds the resolved configuration.
	cfg *PineconeConfig

	// client is the shared HTTP client.
	client *http.Client
}

// NewPineconeBackend constructs a PineconeBackend from the given config.
func NewPineconeBackend(cfg *PineconeConfig) (*PineconeBackend, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, fmt.Errorf("pinecone: index host must not be empty")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: api key must not be empty")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2025-01"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &PineconeBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name identifies this backend in logs and readiness checks.
func (b *PineconeBackend) Name() string { return "pinecone" }

// pineconeRecord is the NDJSON line format for the records upsert endpoint.
// Every field except _id and chunk_text becomes queryable metadata.
type pineconeRecord struct {
	ID            string `json:"_id"`
	ChunkText     string `json:"chunk_text"`
	Source        string `json:"source,omitempty"`
	DocumentID    string `json:"document_id,omitempty"`
	DocumentName  string `json:"document_name,omitempty"`
	ChunkIndex    int    `json:"chunk_index"`
	Length        int    `json:"length"`
	TokenEstimate int    `json:"token_estimate"`
}

// Upsert writes one batch of records as NDJSON. The caller (Gateway) is
// responsible for batching; this method sends everything it is given in a
// single request.
func (b *PineconeBackend) Upsert(ctx context.Context, namespace string, records []Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		line := pineconeRecord{
			ID:            r.ID,
			ChunkText:     r.ChunkText,
			Source:        r.Source,
			DocumentID:    r.DocumentID,
			DocumentName:  r.DocumentName,
			ChunkIndex:    r.ChunkIndex,
			Length:        r.Length,
			TokenEstimate: r.TokenEstimate,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("pinecone: encode record %s: %w", r.ID, err)
		}
	}

	path := "/records/namespaces/" + url.PathEscape(namespace) + "/upsert"
	resp, err := b.do(ctx, http.MethodPost, path, "application/x-ndjson", buf.Bytes())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pinecone: upsert: %s", errorBody(resp))
	}
	return nil
}

// pineconeSearchRequest is the JSON body for the records search endpoint.
// The query text is embedded server-side by the index's integrated model.
type pineconeSearchRequest struct {
	Query struct {
		TopK   int `json:"top_k"`
		Inputs struct {
			Text string `json:"text"`
		} `json:"inputs"`
	} `json:"query"`
	Fields []string `json:"fields,omitempty"`
}

// pineconeSearchResponse is the JSON body returned by the search endpoint.
type pineconeSearchResponse struct {
	Result struct {
		Hits []struct {
			ID     string                 `json:"_id"`
			Score  float32                `json:"_score"`
			Fields map[string]interface{} `json:"fields"`
		} `json:"hits"`
	} `json:"result"`
}

// Search runs one similarity query. A namespace that does not exist yet
// answers 404 — that is an empty index, not an error.
func (b *PineconeBackend) Search(ctx context.Context, namespace, query string, topK int, fields []string) ([]Match, error) {
	var req pineconeSearchRequest
	req.Query.TopK = topK
	req.Query.Inputs.Text = query
	req.Fields = fields

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("pinecone: marshal search request: %w", err)
	}

	path := "/records/namespaces/" + url.PathEscape(namespace) + "/search"
	resp, err := b.do(ctx, http.MethodPost, path, "application/json", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pinecone: search: %s", errorBody(resp))
	}

	var result pineconeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("pinecone: decode search response: %w", err)
	}

	matches := make([]Match, 0, len(result.Result.Hits))
	for _, h := range result.Result.Hits {
		m := Match{
			ID:           h.ID,
			Score:        h.Score,
			ChunkText:    fieldString(h.Fields, FieldChunkText),
			Source:       fieldString(h.Fields, FieldSource),
			ChunkIndex:   fieldInt(h.Fields, FieldChunkIndex),
			DocumentID:   fieldString(h.Fields, FieldDocumentID),
			DocumentName: fieldString(h.Fields, FieldDocumentName),
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// pineconeDeleteRequest is the JSON body for the vectors delete endpoint.
// Exactly one of IDs or Filter is set per request.
type pineconeDeleteRequest struct {
	Namespace string                 `json:"namespace"`
	IDs       []string               `json:"ids,omitempty"`
	Filter    map[string]interface{} `json:"filter,omitempty"`
}

// DeleteByFilter removes every record whose metadata field equals value.
// Serverless indexes reject metadata-filter deletes — the resulting error is
// what drives the Gateway's cascade to its fallback strategies.
func (b *PineconeBackend) DeleteByFilter(ctx context.Context, namespace, field, value string) error {
	req := pineconeDeleteRequest{
		Namespace: namespace,
		Filter:    map[string]interface{}{field: map[string]interface{}{"$eq": value}},
	}
	return b.delete(ctx, req)
}

// DeleteByIDs removes records by their record keys.
func (b *PineconeBackend) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	return b.delete(ctx, pineconeDeleteRequest{Namespace: namespace, IDs: ids})
}

// delete posts one delete request and surfaces non-2xx statuses as errors.
func (b *PineconeBackend) delete(ctx context.Context, req pineconeDeleteRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("pinecone: marshal delete request: %w", err)
	}

	resp, err := b.do(ctx, http.MethodPost, "/vectors/delete", "application/json", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pinecone: delete: %s", errorBody(resp))
	}
	return nil
}

// Ping probes the index host for readiness via the index stats endpoint.
func (b *PineconeBackend) Ping(ctx context.Context) error {
	resp, err := b.do(ctx, http.MethodPost, "/describe_index_stats", "application/json", []byte("{}"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pinecone: stats: %s", errorBody(resp))
	}
	return nil
}

// do issues one authenticated request against the index host.
func (b *PineconeBackend) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.cfg.Host+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pinecone: create request: %w", err)
	}
	req.Header.Set("Api-Key", b.cfg.APIKey)
	req.Header.Set("X-Pinecone-API-Version", b.cfg.APIVersion)
	req.Header.Set("Content-Type", contentType)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinecone: request failed: %w", err)
	}
	return resp, nil
}

// fieldString extracts a string metadata field from a search hit.
func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// fieldInt extracts an integer metadata field from a search hit.
// JSON numbers decode as float64.
func fieldInt(fields map[string]interface{}, key string) int {
	switch v := fields[key].(type) {
	case float64:
		return int(v)
	case string:
		n := 0
		fmt.Sscanf(v, "%d", &n)
		return n
	default:
		return 0
	}
}

// errorBody renders a short error description from a non-2xx response.
func errorBody(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(data) == 0 {
		return fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, data)
}
