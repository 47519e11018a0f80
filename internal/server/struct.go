package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/docrag-go/internal/chunker"
	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/llm"
	"github.com/54b3r/docrag-go/internal/storage"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// MaxUploadBytes caps the size of an uploaded document. Defaults to 10 MiB.
	MaxUploadBytes int64
	// MaxPromptTokens is the input budget the ask path warns against.
	// Defaults to the budget package's default.
	MaxPromptTokens int
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// ingestor is the pipeline surface the file and document handlers call.
// *ingestion.Pipeline satisfies it; tests inject a fake.
type ingestor interface {
	Upload(ctx context.Context, namespace, name string, data []byte) (*storage.Object, error)
	IngestBlob(ctx context.Context, namespace, blobRef, displayName string) (*ingestion.Result, error)
	PreviewChunks(ctx context.Context, blobRef, displayName string) ([]chunker.Chunk, int, error)
	DeleteDocument(ctx context.Context, namespace, ref string) (*ingestion.DeleteReport, error)
	ListDocuments(ctx context.Context, namespace string) ([]index.DocumentSummary, error)
}

// retriever is the search surface the query handlers call.
// *retrieval.Orchestrator satisfies it; tests inject a fake.
type retriever interface {
	Retrieve(ctx context.Context, namespace, query string, topK int) ([]index.Match, error)
}

// completer is the answer model surface the ask handler calls.
// *llm.Client satisfies it; tests inject a fake.
type completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// historian records question/answer exchanges. May be nil (history disabled).
type historian interface {
	Append(ctx context.Context, namespace, question, answer string, sources []string) error
}

// Server is the HTTP boundary over the ingestion and retrieval pipelines.
type Server struct {
	// pipeline handles uploads, chunk previews, indexing, and deletion.
	pipeline ingestor
	// retriever answers similarity searches.
	retriever retriever
	// completer produces answers from assembled prompts.
	completer completer
	// store lists and reads raw uploaded blobs.
	store storage.Store
	// history records Q&A exchanges; nil when disabled.
	history historian
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds this server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// uploadResponse is the JSON response for POST /api/files.
type uploadResponse struct {
	// Filename is the original upload name.
	Filename string `json:"filename"`
	// BlobRef is the opaque storage reference for the stored blob.
	BlobRef string `json:"blob_ref"`
	// Size is the stored size in bytes.
	Size int64 `json:"size"`
	// ContentType is the MIME type guessed from the extension.
	ContentType string `json:"content_type"`
	// Namespace is the namespace the blob was stored under.
	Namespace string `json:"namespace"`
}

// fileInfo is one entry in the GET /api/files listing.
type fileInfo struct {
	// Filename is the original upload name.
	Filename string `json:"filename"`
	// BlobRef is the opaque storage reference.
	BlobRef string `json:"blob_ref"`
	// Size is the blob size in bytes.
	Size int64 `json:"size"`
	// ContentType is the MIME type guessed from the extension.
	ContentType string `json:"content_type"`
	// CreatedAt is when the blob was stored.
	CreatedAt time.Time `json:"created_at"`
}

// filesResponse is the JSON response for GET /api/files.
type filesResponse struct {
	// Namespace is the namespace that was listed.
	Namespace string `json:"namespace"`
	// Files is the listing, newest first.
	Files []fileInfo `json:"files"`
}

// fileContentResponse is the JSON response for GET /api/files/{name}.
type fileContentResponse struct {
	// Filename is the original upload name.
	Filename string `json:"filename"`
	// BlobRef is the blob the content was read from.
	BlobRef string `json:"blob_ref"`
	// Content is the raw file content.
	Content string `json:"content"`
}

// chunkPreview is one previewed chunk in GET /api/files/{name}/chunks.
type chunkPreview struct {
	// Index is the chunk's position within the document.
	Index int `json:"index"`
	// Text is the chunk text.
	Text string `json:"text"`
	// Length is the chunk length in characters.
	Length int `json:"length"`
	// TokenEstimate is the approximate token count.
	TokenEstimate int `json:"token_estimate"`
}

// chunksResponse is the JSON response for GET /api/files/{name}/chunks.
type chunksResponse struct {
	// Filename is the document that was previewed.
	Filename string `json:"filename"`
	// TotalChunks is the full chunk count for the document.
	TotalChunks int `json:"total_chunks"`
	// Chunks is the preview (first five chunks).
	Chunks []chunkPreview `json:"chunks"`
}

// embedResponse is the JSON response for POST /api/files/{name}/embed.
type embedResponse struct {
	// DocumentID is the short id minted for this ingestion.
	DocumentID string `json:"document_id"`
	// Message is a human-readable summary.
	Message string `json:"message"`
	// Namespace is the namespace the chunks were written to.
	Namespace string `json:"namespace"`
	// ChunksUpserted is the number of chunk records accepted by the index.
	ChunksUpserted int `json:"chunks_upserted"`
}

// documentsResponse is the JSON response for GET /api/documents.
type documentsResponse struct {
	// Namespace is the namespace that was listed.
	Namespace string `json:"namespace"`
	// Documents is the distinct-document listing from the index.
	Documents []documentInfo `json:"documents"`
}

// documentInfo is one entry in the GET /api/documents listing.
type documentInfo struct {
	// DocumentID is the short document id.
	DocumentID string `json:"document_id"`
	// DocumentName is the display name.
	DocumentName string `json:"document_name"`
	// Source is the blob reference the document was ingested from.
	Source string `json:"source"`
}

// deleteResponse is the JSON response for DELETE /api/documents/{id}.
type deleteResponse struct {
	// Message is a human-readable summary.
	Message string `json:"message"`
	// Strategy is the index deletion strategy that succeeded.
	Strategy string `json:"strategy"`
	// VectorsDeleted is the number of index records removed, or -1 when the
	// backend deleted by filter without reporting a count.
	VectorsDeleted int `json:"vectors_deleted"`
	// BlobsDeleted lists the storage blobs removed.
	BlobsDeleted []string `json:"blobs_deleted"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the search text.
	Query string `json:"query"`
	// Namespace scopes the search. Empty means the default namespace.
	Namespace string `json:"namespace"`
	// TopK is the number of matches to return. Defaults to 5.
	TopK int `json:"top_k"`
}

// searchMatch is one result in the POST /api/search response.
type searchMatch struct {
	// ID is the chunk record id.
	ID string `json:"id"`
	// Score is the similarity score from the index.
	Score float64 `json:"score"`
	// Text is the chunk text.
	Text string `json:"text"`
	// Source is the blob reference the chunk came from.
	Source string `json:"source"`
	// ChunkIndex is the chunk's position within its document.
	ChunkIndex int `json:"chunk_index"`
	// DocumentID is the short document id.
	DocumentID string `json:"document_id"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Namespace is the namespace that was searched.
	Namespace string `json:"namespace"`
	// Matches is the index's ranking, unchanged.
	Matches []searchMatch `json:"matches"`
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's question.
	Question string `json:"question"`
	// Namespace scopes retrieval. Empty means the default namespace.
	Namespace string `json:"namespace"`
	// TopK is the number of chunks to retrieve. Defaults to 5.
	TopK int `json:"top_k"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// Answer is the model's answer text.
	Answer string `json:"answer"`
	// Sources lists the distinct document sources the answer drew on.
	Sources []string `json:"sources"`
	// Matches is the number of chunks retrieved for context.
	Matches int `json:"matches"`
}

// errorResponse is the JSON error body for all endpoints.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
}
