// Package config provides YAML-based configuration for docrag.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DOCRAG_CONFIG environment variable
//  3. ~/.docrag/config.yaml
//  4. ./docrag.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Index selects and configures the vector index backend.
	Index IndexConfig `yaml:"index"`

	// Pinecone configures the Pinecone backend.
	Pinecone PineconeConfig `yaml:"pinecone"`

	// Qdrant configures the Qdrant backend.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Embedding configures the embedding provider used by the Qdrant backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Groq configures the answer model.
	Groq GroqConfig `yaml:"groq"`

	// Chunking configures the document splitter.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Storage configures where raw uploads are kept.
	Storage StorageConfig `yaml:"storage"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures question/answer history persistence.
	History HistoryConfig `yaml:"history"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	// Backend is "pinecone" or "qdrant".
	Backend string `yaml:"backend"`
}

// PineconeConfig holds Pinecone backend settings.
type PineconeConfig struct {
	// Host is the index host URL from the Pinecone console.
	Host string `yaml:"host"`
	// APIKey is the Pinecone API key. Prefer env var PINECONE_API_KEY.
	APIKey string `yaml:"api_key"`
	// APIVersion pins the Pinecone API version header.
	APIVersion string `yaml:"api_version"`
}

// QdrantConfig holds Qdrant backend settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Endpoint is the embedding API base URL.
	Endpoint string `yaml:"endpoint"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
}

// GroqConfig holds answer model settings.
type GroqConfig struct {
	// APIKey is the Groq API key. Prefer env var GROQ_API_KEY.
	APIKey string `yaml:"api_key"`
	// BaseURL is the chat completions API base URL.
	BaseURL string `yaml:"base_url"`
	// Model is the chat model name.
	Model string `yaml:"model"`
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`
	// MaxTokens is the maximum number of tokens in the answer.
	MaxTokens int `yaml:"max_tokens"`
}

// ChunkingConfig holds document splitter settings.
type ChunkingConfig struct {
	// Size is the maximum number of characters per chunk.
	Size int `yaml:"size"`
	// Overlap is the number of characters shared between consecutive chunks.
	Overlap int `yaml:"overlap"`
}

// StorageConfig holds raw upload storage settings.
type StorageConfig struct {
	// Root is the directory raw uploads are stored under.
	Root string `yaml:"root"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var DOCRAG_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds question/answer history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"INDEX_BACKEND", func(c *Config) string { return c.Index.Backend }},
	{"PINECONE_HOST", func(c *Config) string { return c.Pinecone.Host }},
	{"PINECONE_API_KEY", func(c *Config) string { return c.Pinecone.APIKey }},
	{"PINECONE_API_VERSION", func(c *Config) string { return c.Pinecone.APIVersion }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"GROQ_API_KEY", func(c *Config) string { return c.Groq.APIKey }},
	{"GROQ_BASE_URL", func(c *Config) string { return c.Groq.BaseURL }},
	{"GROQ_MODEL", func(c *Config) string { return c.Groq.Model }},
	{"GROQ_TEMPERATURE", func(c *Config) string { return float32Str(c.Groq.Temperature) }},
	{"GROQ_MAX_TOKENS", func(c *Config) string { return intStr(c.Groq.MaxTokens) }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunking.Size) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"STORAGE_ROOT", func(c *Config) string { return c.Storage.Root }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"DOCRAG_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"DOCRAG_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("DOCRAG_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".docrag", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("docrag.yaml"); err == nil {
		return "docrag.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
