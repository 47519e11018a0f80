package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/docrag-go/internal/embedder"
	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/llm"
	"github.com/54b3r/docrag-go/internal/storage"
)

// envOr returns the env var value, or def when unset or empty.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt returns the env var parsed as an int, or def when unset or invalid.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// buildStore opens the blob store for raw uploads. STORAGE_ROOT overrides
// the default local directory.
func buildStore() (storage.Store, error) {
	return storage.NewFSStore(envOr("STORAGE_ROOT", "uploads"))
}

// buildBackend constructs the vector index backend selected by
// INDEX_BACKEND ("pinecone" by default). The returned cleanup function
// releases backend resources and is safe to call once.
func buildBackend(ctx context.Context) (index.Backend, func(), error) {
	switch backend := envOr("INDEX_BACKEND", "pinecone"); backend {
	case "pinecone":
		b, err := index.NewPineconeBackend(&index.PineconeConfig{
			Host:       os.Getenv("PINECONE_HOST"),
			APIKey:     os.Getenv("PINECONE_API_KEY"),
			APIVersion: os.Getenv("PINECONE_API_VERSION"),
		})
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil

	case "qdrant":
		emb, err := embedder.New(&embedder.Config{
			BaseURL:    os.Getenv("EMBEDDING_ENDPOINT"),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 0),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("qdrant backend requires an embedding provider: %w", err)
		}
		b, err := index.NewQdrantBackend(ctx, &index.QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       envInt("QDRANT_PORT", 0),
			Collection: envOr("QDRANT_COLLECTION", "documents"),
			VectorSize: uint64(envInt("EMBEDDING_DIMENSIONS", 1536)),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		}, emb)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown INDEX_BACKEND %q (want pinecone or qdrant)", backend)
	}
}

// buildGateway wraps the backend in the index gateway with default batching
// and retry behavior.
func buildGateway(backend index.Backend, log *slog.Logger) (*index.Gateway, error) {
	return index.New(backend, nil, log)
}

// buildPipeline wires storage and the gateway into the ingestion pipeline.
// CHUNK_SIZE and CHUNK_OVERLAP override the splitter defaults.
func buildPipeline(store storage.Store, gateway *index.Gateway, log *slog.Logger) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(store, gateway, &ingestion.Config{
		ChunkSize:    envInt("CHUNK_SIZE", 0),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 0),
	}, log)
}

// buildCompleter constructs the answer model client from GROQ_* env vars.
// Returns nil (not an error) when no API key is configured so callers can
// degrade to retrieval-only operation.
func buildCompleter() (*llm.Client, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return nil, nil
	}
	return llm.New(&llm.Config{
		BaseURL:     envOr("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		APIKey:      apiKey,
		Model:       os.Getenv("GROQ_MODEL"),
		Temperature: envFloat32("GROQ_TEMPERATURE", 0),
		MaxTokens:   envInt("GROQ_MAX_TOKENS", 0),
	})
}

// envFloat32 returns the env var parsed as a float32, or def when unset or
// invalid.
func envFloat32(key string, def float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return def
	}
	return float32(f)
}
