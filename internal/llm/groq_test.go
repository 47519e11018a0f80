package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_LLM_New_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Error("nil config should be rejected")
	}
	if _, err := New(&Config{APIKey: "k"}); err == nil {
		t.Error("empty base URL should be rejected")
	}
	if _, err := New(&Config{BaseURL: "http://x"}); err == nil {
		t.Error("empty api key should be rejected")
	}
}

func Test_LLM_New_Defaults(t *testing.T) {
	t.Parallel()

	c, err := New(&Config{BaseURL: "http://x", APIKey: "k"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.cfg.Model != "llama-3.1-8b-instant" {
		t.Errorf("Model default: got %q", c.cfg.Model)
	}
	if c.cfg.Temperature != 0.7 {
		t.Errorf("Temperature default: got %v", c.cfg.Temperature)
	}
	if c.cfg.MaxTokens != 1000 {
		t.Errorf("MaxTokens default: got %d", c.cfg.MaxTokens)
	}
}

func Test_LLM_Complete_SendsChatRequest(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Paris is the capital."}}]}`))
	}))
	defer srv.Close()

	c, err := New(&Config{BaseURL: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	answer, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "answer from context"},
		{Role: RoleUser, Content: "what is the capital of France?"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if answer != "Paris is the capital." {
		t.Errorf("answer: got %q", answer)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header: got %q", gotAuth)
	}
	if gotBody.Model != "llama-3.1-8b-instant" || gotBody.MaxTokens != 1000 {
		t.Errorf("request body: %+v", gotBody)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != RoleSystem {
		t.Errorf("messages: %+v", gotBody.Messages)
	}
}

func Test_LLM_Complete_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	}))
	defer srv.Close()

	c, err := New(&Config{BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "q"}})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("want *TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode: got %d", te.StatusCode)
	}
	if te.Detail != "rate limit exceeded" {
		t.Errorf("Detail: got %q", te.Detail)
	}
}

func Test_LLM_Complete_NoChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := New(&Config{BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "q"}}); err == nil {
		t.Error("empty choices should be an error")
	}
}
