package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/chunker"
	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/storage"
)

// NewChunksCmd constructs the `docrag chunks` command, which previews how a
// stored document splits into chunks without touching the index.
func NewChunksCmd() *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "chunks <filename|blob-ref>",
		Short: "Preview a stored document's chunks",
		Long: `Split a stored document and print the first few chunks.

The argument is a filename or blob reference as listed by the server's
files endpoint. Nothing is written to the index.

Examples:
  docrag chunks notes.txt
  docrag chunks --namespace team-a report.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ref := args[0]

			store, err := buildStore()
			if err != nil {
				return fmt.Errorf("chunks: %w", err)
			}

			obj, err := findObject(ctx, store, namespace, ref)
			if err != nil {
				return fmt.Errorf("chunks: %w", err)
			}

			pipeline, err := buildPreviewPipeline(store, log)
			if err != nil {
				return fmt.Errorf("chunks: %w", err)
			}

			chunks, total, err := pipeline.PreviewChunks(ctx, obj.BlobRef, obj.Filename)
			if err != nil {
				return fmt.Errorf("chunks: %w", err)
			}

			fmt.Printf("%s: %d chunk(s), showing first %d\n\n", obj.Filename, total, len(chunks))
			for _, c := range chunks {
				fmt.Printf("--- chunk %d (%d chars) ---\n%s\n\n", c.Index, len(c.Text), c.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Index namespace (default: "+index.DefaultNamespace+")")
	return cmd
}

// findObject resolves a filename or blob reference to a stored object,
// preferring the newest upload when filenames collide.
func findObject(ctx context.Context, store storage.Store, namespace, ref string) (*storage.Object, error) {
	objs, err := store.List(ctx, index.Namespace(namespace))
	if err != nil {
		return nil, err
	}
	for i := range objs {
		if objs[i].BlobRef == ref || objs[i].Filename == ref {
			return &objs[i], nil
		}
	}
	return nil, &storage.NotFoundError{BlobRef: ref}
}

// buildPreviewPipeline builds a pipeline over a discarding indexer, enough
// for chunk preview without an index backend configured.
func buildPreviewPipeline(store storage.Store, log *slog.Logger) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(store, discardIndexer{}, &ingestion.Config{
		ChunkSize:    envInt("CHUNK_SIZE", 0),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 0),
	}, log)
}

// discardIndexer satisfies the pipeline's indexer requirement for commands
// that never write to the index.
type discardIndexer struct{}

func (discardIndexer) Upsert(context.Context, string, string, string, []chunker.Chunk) (int, error) {
	return 0, nil
}

func (discardIndexer) DeleteDocument(context.Context, string, string) (index.DeleteResult, error) {
	return index.DeleteResult{Strategy: index.StrategyNone}, nil
}

func (discardIndexer) ListDocuments(context.Context, string) ([]index.DocumentSummary, error) {
	return nil, nil
}
