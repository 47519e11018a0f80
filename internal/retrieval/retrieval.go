// Package retrieval serves similarity search over the indexed corpus. It is
// a thin pass-through: queries go to the index as written and the index's
// ranking comes back unchanged, with no re-ranking or filtering layered on.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/54b3r/docrag-go/internal/index"
)

// DefaultTopK is the match count used when a request does not specify one.
const DefaultTopK = 5

// Searcher is the slice of the index gateway retrieval needs.
type Searcher interface {
	Search(ctx context.Context, namespace, query string, topK int, fields []string) ([]index.Match, error)
}

// Orchestrator answers retrieval requests against a Searcher.
type Orchestrator struct {
	// searcher is the index this orchestrator queries.
	searcher Searcher

	// log is the structured logger for retrieval operations.
	log *slog.Logger
}

// New constructs an Orchestrator over the given searcher.
func New(searcher Searcher, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{searcher: searcher, log: log}
}

// Retrieve runs a similarity search and returns the index's ranking as-is.
// A non-positive topK falls back to DefaultTopK.
func (o *Orchestrator) Retrieve(ctx context.Context, namespace, query string, topK int) ([]index.Match, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	matches, err := o.searcher.Search(ctx, namespace, query, topK, nil)
	if err != nil {
		return nil, err
	}

	o.log.DebugContext(ctx, "retrieval complete",
		slog.String("namespace", index.Namespace(namespace)),
		slog.Int("top_k", topK),
		slog.Int("matches", len(matches)),
	)
	return matches, nil
}
