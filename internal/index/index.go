// Package index synchronizes document chunks with a remote vector index.
// The Gateway implements the pipeline-facing contract — batched upserts,
// similarity search, cascading document deletion, and namespace enumeration —
// on top of a narrow Backend interface so the consistency and batching logic
// is independent of any particular vector store. Concrete backends (Pinecone
// over HTTP, Qdrant over gRPC) live in this package as well.
//
// The index backend is the sole source of truth: the Gateway holds no state
// beyond read-only configuration and is safe for concurrent use.
package index

import (
	"context"
	"fmt"
)

// DefaultNamespace is the sentinel namespace used when a caller does not
// specify a partition.
const DefaultNamespace = "__default__"

// Metadata field names stored alongside each record. Search and list
// operations request subsets of these.
const (
	FieldChunkText     = "chunk_text"
	FieldSource        = "source"
	FieldChunkIndex    = "chunk_index"
	FieldDocumentID    = "document_id"
	FieldDocumentName  = "document_name"
	FieldLength        = "length"
	FieldTokenEstimate = "token_estimate"
)

// Record is one index entry: a chunk with its metadata, keyed by the
// composite id "{document_id}-{chunk_index}". The backend embeds ChunkText
// server-side — this system never computes embeddings itself.
type Record struct {
	// ID is the composite record key.
	ID string

	// ChunkText is the chunk content. This is the field the backend embeds.
	ChunkText string

	// Source is the provenance string (storage path or file name).
	Source string

	// DocumentID groups all chunks of one ingested document.
	DocumentID string

	// DocumentName is the human-readable file name.
	DocumentName string

	// ChunkIndex is the 0-based position of the chunk within its document.
	ChunkIndex int

	// Length is the chunk character count.
	Length int

	// TokenEstimate is the approximate token count of the chunk.
	TokenEstimate int
}

// Match is a read-only projection of one search hit, ordered by descending
// similarity score as returned by the backend.
type Match struct {
	// ID is the record key of the matched chunk.
	ID string

	// Score is the backend similarity score; higher is more relevant.
	Score float32

	// ChunkText is the matched chunk content.
	ChunkText string

	// Source is the chunk's provenance string.
	Source string

	// ChunkIndex is the chunk's position within its document.
	ChunkIndex int

	// DocumentID is the owning document's id. Empty for legacy chunks
	// indexed before identity tracking existed.
	DocumentID string

	// DocumentName is the owning document's human-readable name.
	DocumentName string
}

// DocumentSummary describes one distinct document found in a namespace.
type DocumentSummary struct {
	// DocumentID is the opaque document identity. For legacy documents
	// without one, the source path stands in as the identity.
	DocumentID string

	// DocumentName is the human-readable file name.
	DocumentName string

	// Source is the storage path the document was ingested from.
	Source string
}

// Backend is the minimal surface the Gateway needs from a vector store.
// Implementations must be safe to call from multiple goroutines.
type Backend interface {
	// Upsert writes one batch of records into the namespace. The backend
	// computes embeddings from Record.ChunkText server-side.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Search runs one similarity query and returns matches in descending
	// score order. fields selects which metadata to return. An empty or
	// unpopulated namespace yields an empty slice, not an error.
	Search(ctx context.Context, namespace, query string, topK int, fields []string) ([]Match, error)

	// DeleteByFilter removes every record whose metadata field equals value.
	// Backends without conditional bulk deletion return an error; the
	// Gateway falls through to the next strategy.
	DeleteByFilter(ctx context.Context, namespace, field, value string) error

	// DeleteByIDs removes records by their record keys.
	DeleteByIDs(ctx context.Context, namespace string, ids []string) error

	// Name identifies the backend in logs and readiness checks.
	Name() string
}

// WriteError reports a failed batch upsert. Earlier batches of the same
// ingestion may already be written — upserts are not transactional.
type WriteError struct {
	// Namespace is the partition the write targeted.
	Namespace string

	// DocumentID is the document being ingested.
	DocumentID string

	// Batch is the 0-based index of the batch that failed.
	Batch int

	// Err is the underlying backend error.
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("index: upsert batch %d for document %q in namespace %q failed: %v",
		e.Batch, e.DocumentID, e.Namespace, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports a hard search or enumeration failure.
type ReadError struct {
	// Namespace is the partition the read targeted.
	Namespace string

	// Err is the underlying backend error.
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("index: read from namespace %q failed: %v", e.Namespace, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Namespace normalizes a caller-supplied namespace, substituting the
// sentinel when unspecified.
func Namespace(ns string) string {
	if ns == "" {
		return DefaultNamespace
	}
	return ns
}
