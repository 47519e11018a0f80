// Package ingestion implements the document ingestion pipeline: uploaded
// blobs are fetched from storage, extracted to plain text, split into
// overlapping chunks, assigned a short document id, and upserted into the
// vector index. It also owns the reverse path, removing a document from
// the index and storage together.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/54b3r/docrag-go/internal/chunker"
	"github.com/54b3r/docrag-go/internal/extract"
	"github.com/54b3r/docrag-go/internal/identity"
	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/storage"
)

// PreviewCount is the number of chunks returned by PreviewChunks.
const PreviewCount = 5

// Indexer is the slice of the index gateway the pipeline writes through.
type Indexer interface {
	Upsert(ctx context.Context, namespace, documentID, documentName string, chunks []chunker.Chunk) (int, error)
	DeleteDocument(ctx context.Context, namespace, ref string) (index.DeleteResult, error)
	ListDocuments(ctx context.Context, namespace string) ([]index.DocumentSummary, error)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared between consecutive
	// chunks. Defaults to 200 if zero.
	ChunkOverlap int
}

// Result reports one completed ingestion.
type Result struct {
	// DocumentID is the short id minted for this ingestion.
	DocumentID string

	// DocumentName is the document's display name.
	DocumentName string

	// Source is the blob reference the chunks were derived from.
	Source string

	// Chunks is the number of chunks produced.
	Chunks int

	// Written is the number of chunk records accepted by the index.
	Written int
}

// EmptyDocumentError reports a document whose extracted text was empty.
// Empty documents are rejected before any index write.
type EmptyDocumentError struct {
	// Name is the document's display name.
	Name string
}

func (e *EmptyDocumentError) Error() string {
	return fmt.Sprintf("ingestion: document %s contains no extractable text", e.Name)
}

// PartialDeleteError reports a document removal that succeeded against some
// targets and failed against others. The parts that succeeded stay deleted.
type PartialDeleteError struct {
	// Ref is the document id or source the caller asked to delete.
	Ref string

	// IndexErr is the index-side failure, if any.
	IndexErr error

	// StorageErrs lists blob deletions that failed, keyed by blob reference.
	StorageErrs map[string]error
}

func (e *PartialDeleteError) Error() string {
	parts := make([]string, 0, 2)
	if e.IndexErr != nil {
		parts = append(parts, fmt.Sprintf("index: %v", e.IndexErr))
	}
	for ref, err := range e.StorageErrs {
		parts = append(parts, fmt.Sprintf("blob %s: %v", ref, err))
	}
	return fmt.Sprintf("ingestion: delete %s partially failed: %s", e.Ref, strings.Join(parts, "; "))
}

// DeleteReport summarizes a document removal.
type DeleteReport struct {
	// RefKind reports how the caller's ref resolved against the namespace
	// listing: "id", "source", or "" when it matched no known document.
	RefKind string

	// Index is the index-side outcome.
	Index index.DeleteResult

	// BlobsDeleted lists the blob references removed from storage.
	BlobsDeleted []string
}

// Pipeline wires storage, extraction, chunking, and the index together.
type Pipeline struct {
	// store holds the raw uploaded blobs.
	store storage.Store

	// indexer is the vector index gateway.
	indexer Indexer

	// splitter produces overlapping chunks from extracted text.
	splitter *chunker.Splitter

	// log is the structured logger for pipeline operations.
	log *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(store storage.Store, indexer Indexer, cfg *Config, log *slog.Logger) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if indexer == nil {
		return nil, fmt.Errorf("ingestion: indexer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if log == nil {
		log = slog.Default()
	}

	splitter, err := chunker.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	return &Pipeline{
		store:    store,
		indexer:  indexer,
		splitter: splitter,
		log:      log,
	}, nil
}

// Upload validates the file format and stores the raw bytes. No extraction
// or indexing happens until IngestBlob is called for the stored blob.
func (p *Pipeline) Upload(ctx context.Context, namespace, name string, data []byte) (*storage.Object, error) {
	if !extract.Supported(name) {
		return nil, &extract.UnsupportedFormatError{Name: name, FileType: strings.ToLower(path.Ext(name))}
	}
	obj, err := p.store.Put(ctx, data, name, index.Namespace(namespace))
	if err != nil {
		return nil, err
	}

	p.log.InfoContext(ctx, "document uploaded",
		slog.String("namespace", index.Namespace(namespace)),
		slog.String("blob", obj.BlobRef),
		slog.Int64("bytes", obj.Size),
	)
	return obj, nil
}

// IngestBlob extracts, chunks, and indexes one stored blob. displayName is
// the document's original filename; when empty the blob reference's base
// name is used. The blob reference itself becomes the chunks' source.
func (p *Pipeline) IngestBlob(ctx context.Context, namespace, blobRef, displayName string) (*Result, error) {
	if displayName == "" {
		displayName = path.Base(blobRef)
	}

	data, err := p.store.Get(ctx, blobRef)
	if err != nil {
		return nil, err
	}

	extraction, err := extract.Extract(displayName, data)
	if err != nil {
		return nil, err
	}
	if extraction.Content == "" {
		return nil, &EmptyDocumentError{Name: displayName}
	}

	chunks := p.splitter.Split(extraction.Content, blobRef)
	if len(chunks) == 0 {
		return nil, &EmptyDocumentError{Name: displayName}
	}

	documentID := identity.NewDocumentID()
	written, err := p.indexer.Upsert(ctx, namespace, documentID, displayName, chunks)
	result := &Result{
		DocumentID:   documentID,
		DocumentName: displayName,
		Source:       blobRef,
		Chunks:       len(chunks),
		Written:      written,
	}
	if err != nil {
		return result, err
	}

	p.log.InfoContext(ctx, "document ingested",
		slog.String("namespace", index.Namespace(namespace)),
		slog.String("document_id", documentID),
		slog.String("document", displayName),
		slog.Int("chunks", written),
	)
	return result, nil
}

// PreviewChunks splits a stored blob without touching the index and returns
// the first PreviewCount chunks plus the total chunk count.
func (p *Pipeline) PreviewChunks(ctx context.Context, blobRef, displayName string) ([]chunker.Chunk, int, error) {
	if displayName == "" {
		displayName = path.Base(blobRef)
	}

	data, err := p.store.Get(ctx, blobRef)
	if err != nil {
		return nil, 0, err
	}
	extraction, err := extract.Extract(displayName, data)
	if err != nil {
		return nil, 0, err
	}

	chunks := p.splitter.Split(extraction.Content, blobRef)
	total := len(chunks)
	if total > PreviewCount {
		chunks = chunks[:PreviewCount]
	}
	return chunks, total, nil
}

// DeleteDocument removes a document from the index and its blobs from
// storage. Each target is attempted independently; a failure on one does
// not stop the others, and any mixed outcome is reported as a
// PartialDeleteError alongside what did succeed.
func (p *Pipeline) DeleteDocument(ctx context.Context, namespace, ref string) (*DeleteReport, error) {
	report := &DeleteReport{}

	// Resolve the ref against the namespace listing so the report and log
	// say which lookup matched. Advisory only: the index delete handles
	// both kinds itself, and a listing failure must not block removal.
	if summaries, lerr := p.indexer.ListDocuments(ctx, namespace); lerr == nil {
		ids := make([]string, 0, len(summaries))
		sources := make([]string, 0, len(summaries))
		for _, d := range summaries {
			ids = append(ids, d.DocumentID)
			sources = append(sources, d.Source)
		}
		if resolved, ok := identity.Resolve(ref, ids, sources); ok {
			report.RefKind = resolved.Kind.String()
		}
	} else {
		p.log.WarnContext(ctx, "could not resolve document ref before delete",
			slog.String("namespace", index.Namespace(namespace)),
			slog.String("document", ref),
			slog.String("error", lerr.Error()),
		)
	}

	var indexErr error
	report.Index, indexErr = p.indexer.DeleteDocument(ctx, namespace, ref)

	storageErrs := map[string]error{}
	objs, err := p.store.List(ctx, index.Namespace(namespace))
	if err != nil {
		storageErrs[ref] = err
	} else {
		for _, obj := range objs {
			if obj.BlobRef != ref && obj.Filename != ref {
				continue
			}
			if err := p.store.Delete(ctx, obj.BlobRef); err != nil {
				storageErrs[obj.BlobRef] = err
				continue
			}
			report.BlobsDeleted = append(report.BlobsDeleted, obj.BlobRef)
		}
	}

	if indexErr != nil || len(storageErrs) > 0 {
		return report, &PartialDeleteError{Ref: ref, IndexErr: indexErr, StorageErrs: storageErrs}
	}

	p.log.InfoContext(ctx, "document deleted",
		slog.String("namespace", index.Namespace(namespace)),
		slog.String("document", ref),
		slog.String("ref_kind", report.RefKind),
		slog.String("strategy", report.Index.Strategy),
		slog.Int("blobs_deleted", len(report.BlobsDeleted)),
	)
	return report, nil
}

// ListDocuments enumerates the namespace's indexed documents.
func (p *Pipeline) ListDocuments(ctx context.Context, namespace string) ([]index.DocumentSummary, error) {
	return p.indexer.ListDocuments(ctx, namespace)
}
