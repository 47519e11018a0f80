package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/docrag-go/internal/chunker"
)

// Delete strategy labels, logged so operators can see which path a deletion
// took against a given backend.
const (
	StrategyFilterDocumentID = "filter:document_id"
	StrategyFilterSource     = "filter:source"
	StrategyEnumerate        = "enumerate"
	StrategyNone             = "none"
)

// Config holds the Gateway's tunables. The zero value is usable; every field
// has a default applied in New.
type Config struct {
	// BatchSize is the number of records per upsert request, bounded to
	// respect backend request-size limits. Defaults to 64 if zero.
	BatchSize int

	// DeleteBatchSize is the maximum number of ids per delete request on the
	// enumeration fallback path. Defaults to 1000 if zero.
	DeleteBatchSize int

	// ListTopK is the result bound used when enumerating a namespace via a
	// broad similarity query. Defaults to 10000 if zero.
	ListTopK int

	// PlaceholderQuery is the generic query string used for enumeration —
	// the backend has no native "list all" primitive, so enumeration is a
	// similarity search that matches everything. Defaults to "a" if empty.
	PlaceholderQuery string

	// Retry bounds the list-after-write retry loop.
	Retry RetryPolicy
}

// Gateway implements the ingestion/retrieval pipeline's view of the vector
// index: batched upserts, similarity search, cascading document deletion,
// and namespace enumeration with read-after-write tolerance.
type Gateway struct {
	// backend is the vector store this gateway writes to and reads from.
	backend Backend

	// cfg holds the resolved gateway configuration, read-only after New.
	cfg *Config

	// retry is cfg.Retry with defaults applied.
	retry RetryPolicy

	// log is the structured logger for gateway operations.
	log *slog.Logger
}

// New constructs a Gateway over the given backend.
func New(backend Backend, cfg *Config, log *slog.Logger) (*Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("index: backend must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.DeleteBatchSize <= 0 {
		cfg.DeleteBatchSize = 1000
	}
	if cfg.ListTopK <= 0 {
		cfg.ListTopK = 10000
	}
	if cfg.PlaceholderQuery == "" {
		cfg.PlaceholderQuery = "a"
	}

	return &Gateway{
		backend: backend,
		cfg:     cfg,
		retry:   cfg.Retry.withDefaults(),
		log:     log,
	}, nil
}

// Upsert writes one record per chunk under the composite key
// "{documentID}-{chunkIndex}", in sequential fixed-size batches. Returns the
// number of records written. A failing batch aborts the remaining batches
// and surfaces a WriteError; batches already written are NOT rolled back —
// the operation is not transactional.
func (g *Gateway) Upsert(ctx context.Context, namespace, documentID, documentName string, chunks []chunker.Chunk) (int, error) {
	ns := Namespace(namespace)

	records := make([]Record, 0, len(chunks))
	for _, c := range chunks {
		records = append(records, Record{
			ID:            fmt.Sprintf("%s-%d", documentID, c.Index),
			ChunkText:     c.Text,
			Source:        c.Source,
			DocumentID:    documentID,
			DocumentName:  documentName,
			ChunkIndex:    c.Index,
			Length:        c.Length,
			TokenEstimate: c.TokenEstimate,
		})
	}

	for i := 0; i < len(records); i += g.cfg.BatchSize {
		end := i + g.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := i / g.cfg.BatchSize

		if err := g.backend.Upsert(ctx, ns, records[i:end]); err != nil {
			return i, &WriteError{Namespace: ns, DocumentID: documentID, Batch: batch, Err: err}
		}

		g.log.Debug("index: batch upserted",
			slog.String("namespace", ns),
			slog.String("document_id", documentID),
			slog.Int("batch", batch),
			slog.Int("records", end-i),
		)
	}

	return len(records), nil
}

// Search issues one similarity query and returns matches in the backend's
// descending score order — no re-ranking is applied. An empty namespace
// yields an empty slice. topK defaults to 5 when non-positive; fields
// defaults to the full chunk projection when nil.
func (g *Gateway) Search(ctx context.Context, namespace, query string, topK int, fields []string) ([]Match, error) {
	ns := Namespace(namespace)
	if topK <= 0 {
		topK = 5
	}
	if fields == nil {
		fields = []string{FieldChunkText, FieldSource, FieldChunkIndex, FieldDocumentID, FieldDocumentName}
	}

	matches, err := g.backend.Search(ctx, ns, query, topK, fields)
	if err != nil {
		return nil, &ReadError{Namespace: ns, Err: err}
	}
	return matches, nil
}

// DeleteResult reports the outcome of a document deletion.
type DeleteResult struct {
	// Strategy is the strategy that succeeded (or StrategyNone when no
	// matching records existed).
	Strategy string

	// Deleted is the number of ids removed on the enumeration path, or -1
	// when a filter delete succeeded and the backend reports no count.
	Deleted int
}

// DeleteDocument removes every chunk belonging to ref from the namespace.
// ref is normally a document id, but may be a source path for legacy
// documents. Strategies are tried in a fixed order because the backend may
// not support conditional bulk deletion:
//
//  1. metadata-filter delete on document_id
//  2. metadata-filter delete on source (legacy documents)
//  3. enumerate the namespace, collect matching record ids, delete them in
//     bounded batches with a per-id fallback when a batch fails
//
// Any strategy error falls through to the next; the enumeration search
// itself failing is a hard ReadError.
func (g *Gateway) DeleteDocument(ctx context.Context, namespace, ref string) (DeleteResult, error) {
	ns := Namespace(namespace)
	log := g.log.With(
		slog.String("namespace", ns),
		slog.String("document", ref),
	)

	if err := g.backend.DeleteByFilter(ctx, ns, FieldDocumentID, ref); err == nil {
		log.Info("index: document deleted", slog.String("strategy", StrategyFilterDocumentID))
		return DeleteResult{Strategy: StrategyFilterDocumentID, Deleted: -1}, nil
	} else {
		log.Debug("index: filter delete by document_id unavailable", slog.Any("error", err))
	}

	if err := g.backend.DeleteByFilter(ctx, ns, FieldSource, ref); err == nil {
		log.Info("index: document deleted", slog.String("strategy", StrategyFilterSource))
		return DeleteResult{Strategy: StrategyFilterSource, Deleted: -1}, nil
	} else {
		log.Debug("index: filter delete by source unavailable", slog.Any("error", err))
	}

	// Enumeration fallback: a broad query surfaces every record so matching
	// ids can be collected client-side.
	matches, err := g.backend.Search(ctx, ns, g.cfg.PlaceholderQuery, g.cfg.ListTopK,
		[]string{FieldDocumentID, FieldSource})
	if err != nil {
		return DeleteResult{}, &ReadError{Namespace: ns, Err: fmt.Errorf("enumerate for delete: %w", err)}
	}

	var ids []string
	for _, m := range matches {
		if m.DocumentID == ref || m.Source == ref {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		log.Info("index: no records matched for deletion")
		return DeleteResult{Strategy: StrategyNone, Deleted: 0}, nil
	}

	deleted := 0
	for i := 0; i < len(ids); i += g.cfg.DeleteBatchSize {
		end := i + g.cfg.DeleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]

		if err := g.backend.DeleteByIDs(ctx, ns, batch); err == nil {
			deleted += len(batch)
			continue
		}

		// Batch failed: retry each id on its own so one poisoned id cannot
		// block the rest of the batch.
		for _, id := range batch {
			if err := g.backend.DeleteByIDs(ctx, ns, []string{id}); err != nil {
				log.Warn("index: delete failed for record",
					slog.String("record_id", id),
					slog.Any("error", err),
				)
				continue
			}
			deleted++
		}
	}

	log.Info("index: document deleted",
		slog.String("strategy", StrategyEnumerate),
		slog.Int("deleted", deleted),
		slog.Int("matched", len(ids)),
	)
	return DeleteResult{Strategy: StrategyEnumerate, Deleted: deleted}, nil
}

// ListDocuments enumerates the distinct documents in a namespace. The
// backend has no native listing primitive, so this is a broad similarity
// query deduplicated by document_id — or by source for legacy chunks that
// carry no id. A summary never appears twice for the same document_id.
//
// Immediately after an upsert the backend may return zero results even
// though the write succeeded; an empty result set is retried under the
// configured policy before being returned as genuinely empty. Backend
// errors are never retried — they propagate at once as a ReadError.
func (g *Gateway) ListDocuments(ctx context.Context, namespace string) ([]DocumentSummary, error) {
	ns := Namespace(namespace)
	fields := []string{FieldDocumentID, FieldDocumentName, FieldSource}

	var matches []Match
	for attempt := 1; ; attempt++ {
		var err error
		matches, err = g.backend.Search(ctx, ns, g.cfg.PlaceholderQuery, g.cfg.ListTopK, fields)
		if err != nil {
			return nil, &ReadError{Namespace: ns, Err: err}
		}
		if len(matches) > 0 || attempt >= g.retry.MaxAttempts {
			break
		}

		g.log.Debug("index: namespace empty, retrying list",
			slog.String("namespace", ns),
			slog.Int("attempt", attempt),
		)
		g.retry.Sleep(ctx, g.retry.Delay)
		if ctx.Err() != nil {
			return nil, &ReadError{Namespace: ns, Err: ctx.Err()}
		}
	}

	byID := make(map[string]bool)
	bySource := make(map[string]bool)
	var docs, legacy []DocumentSummary

	for _, m := range matches {
		switch {
		case m.DocumentID != "":
			if byID[m.DocumentID] {
				continue
			}
			byID[m.DocumentID] = true
			docs = append(docs, DocumentSummary{
				DocumentID:   m.DocumentID,
				DocumentName: m.DocumentName,
				Source:       m.Source,
			})
		case m.Source != "":
			// Legacy chunk: the source path stands in for the identity.
			if bySource[m.Source] {
				continue
			}
			bySource[m.Source] = true
			legacy = append(legacy, DocumentSummary{
				DocumentID:   m.Source,
				DocumentName: baseName(m.Source),
				Source:       m.Source,
			})
		}
	}

	return append(docs, legacy...), nil
}

// baseName returns the final path element of a source string.
func baseName(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return s[i+1:]
		}
	}
	return s
}
