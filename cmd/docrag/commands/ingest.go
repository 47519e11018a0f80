package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/extract"
	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/logging"
)

// NewIngestCmd constructs the `docrag ingest` command, which uploads local
// files and indexes them in one step.
func NewIngestCmd() *cobra.Command {
	var namespace string
	var uploadOnly bool

	cmd := &cobra.Command{
		Use:   "ingest <file> [file...]",
		Short: "Upload and index local documents",
		Long: `Upload one or more local files and index their chunks.

Each file is stored in the blob store, split into overlapping chunks,
and written to the vector index under a fresh document id. With
--upload-only the files are stored but not indexed; use
'docrag chunks' to preview and the server's embed endpoint to index later.

Examples:
  docrag ingest notes.txt
  docrag ingest --namespace team-a report.md handbook.txt
  docrag ingest --upload-only draft.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			store, err := buildStore()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			backend, closeBackend, err := buildBackend(ctx)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise index backend: %w", err)
			}
			defer closeBackend()

			gateway, err := buildGateway(backend, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			pipeline, err := buildPipeline(store, gateway, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			for _, file := range args {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("ingest: read %s: %w", file, err)
				}
				name := filepath.Base(file)

				obj, err := pipeline.Upload(ctx, namespace, name, data)
				if err != nil {
					var unsupported *extract.UnsupportedFormatError
					if errors.As(err, &unsupported) {
						return fmt.Errorf("ingest: %s: unsupported file type %s (plain-text formats only)",
							name, unsupported.FileType)
					}
					return fmt.Errorf("ingest: upload %s: %w", name, err)
				}
				fmt.Printf("Uploaded %s (%d bytes) as %s\n", obj.Filename, obj.Size, obj.BlobRef)

				if uploadOnly {
					continue
				}

				result, err := pipeline.IngestBlob(ctx, namespace, obj.BlobRef, obj.Filename)
				if err != nil {
					if result != nil && result.Written > 0 {
						fmt.Printf("Partially indexed %s: %d of %d chunks written\n",
							result.DocumentName, result.Written, result.Chunks)
					}
					return fmt.Errorf("ingest: index %s: %w", name, err)
				}
				fmt.Printf("Indexed %s: document %s, %d chunks\n",
					result.DocumentName, result.DocumentID, result.Written)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Index namespace (default: "+index.DefaultNamespace+")")
	cmd.Flags().BoolVar(&uploadOnly, "upload-only", false, "Store the files without indexing them")

	return cmd
}
