package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func Test_New_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(&Config{Model: "m"}); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := New(&Config{BaseURL: "http://x"}); err == nil {
		t.Error("expected error for empty model")
	}
}

func Test_Embed_RequestShapeAndOrdering(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "text-embedding-3-small" || req.Dimensions != 3 {
			t.Errorf("unexpected request: %+v", req)
		}

		// Return the two embeddings out of order.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"embedding":[0.4,0.5,0.6],"index":1},
			{"embedding":[0.1,0.2,0.3],"index":0}
		]}`))
	}))
	defer srv.Close()

	e, err := New(&Config{BaseURL: srv.URL, APIKey: "sk-test", Model: "text-embedding-3-small", Dimensions: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 0.1 || vecs[1][0] != 0.4 {
		t.Errorf("vectors not reordered by index: %v", vecs)
	}
}

func Test_Embed_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	e, err := New(&Config{BaseURL: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("expected API error message, got %v", err)
	}
}

func Test_Embed_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	e, err := New(&Config{BaseURL: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := e.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error for embedding count mismatch")
	}
}
