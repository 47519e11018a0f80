package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
index:
  backend: pinecone
pinecone:
  host: https://docs-abc123.svc.us-east-1.pinecone.io
  api_version: "2025-01"
groq:
  model: llama-3.1-8b-instant
  temperature: 0.7
  max_tokens: 1000
chunking:
  size: 1000
  overlap: 200
storage:
  root: /var/lib/docrag/uploads
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"INDEX_BACKEND", "PINECONE_HOST", "PINECONE_API_VERSION",
		"GROQ_MODEL", "GROQ_TEMPERATURE", "GROQ_MAX_TOKENS",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "STORAGE_ROOT",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"INDEX_BACKEND":        "pinecone",
		"PINECONE_HOST":        "https://docs-abc123.svc.us-east-1.pinecone.io",
		"PINECONE_API_VERSION": "2025-01",
		"GROQ_MODEL":           "llama-3.1-8b-instant",
		"GROQ_TEMPERATURE":     "0.7",
		"GROQ_MAX_TOKENS":      "1000",
		"CHUNK_SIZE":           "1000",
		"CHUNK_OVERLAP":        "200",
		"STORAGE_ROOT":         "/var/lib/docrag/uploads",
		"LOG_LEVEL":            "debug",
		"LOG_FORMAT":           "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
index:
  backend: qdrant
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("INDEX_BACKEND", "pinecone")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("INDEX_BACKEND"); got != "pinecone" {
		t.Errorf("INDEX_BACKEND: expected env override %q, got %q", "pinecone", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.7, "0.7"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
