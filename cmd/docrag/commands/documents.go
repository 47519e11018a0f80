package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/logging"
)

// NewDocumentsCmd constructs the `docrag documents` command group for
// listing and deleting indexed documents.
func NewDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "List or delete indexed documents",
	}

	cmd.AddCommand(newDocumentsListCmd(), newDocumentsDeleteCmd())
	return cmd
}

func newDocumentsListCmd() *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the documents in the index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			backend, closeBackend, err := buildBackend(ctx)
			if err != nil {
				return fmt.Errorf("documents: failed to initialise index backend: %w", err)
			}
			defer closeBackend()

			gateway, err := buildGateway(backend, log)
			if err != nil {
				return fmt.Errorf("documents: %w", err)
			}

			docs, err := gateway.ListDocuments(ctx, namespace)
			if err != nil {
				return fmt.Errorf("documents: list failed: %w", err)
			}
			if len(docs) == 0 {
				fmt.Println("No documents indexed.")
				return nil
			}

			for _, d := range docs {
				fmt.Printf("%-10s %-30s %s\n", d.DocumentID, d.DocumentName, d.Source)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Index namespace (default: "+index.DefaultNamespace+")")
	return cmd
}

func newDocumentsDeleteCmd() *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "delete <document-id|source>",
		Short: "Delete a document from the index and storage",
		Long: `Delete a document's chunks from the index and its blobs from storage.

The argument is normally a document id (as printed by 'documents list');
a source path also works for documents indexed before id tracking.
Index and storage deletions are attempted independently, so a failure on
one side does not roll back the other.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ref := args[0]

			store, err := buildStore()
			if err != nil {
				return fmt.Errorf("documents: %w", err)
			}
			backend, closeBackend, err := buildBackend(ctx)
			if err != nil {
				return fmt.Errorf("documents: failed to initialise index backend: %w", err)
			}
			defer closeBackend()

			gateway, err := buildGateway(backend, log)
			if err != nil {
				return fmt.Errorf("documents: %w", err)
			}
			pipeline, err := buildPipeline(store, gateway, log)
			if err != nil {
				return fmt.Errorf("documents: %w", err)
			}

			report, err := pipeline.DeleteDocument(ctx, namespace, ref)
			if err != nil {
				var partial *ingestion.PartialDeleteError
				if errors.As(err, &partial) && report != nil {
					fmt.Printf("Partially deleted %s: index strategy %s, %d blob(s) removed\n",
						ref, report.Index.Strategy, len(report.BlobsDeleted))
				}
				return fmt.Errorf("documents: delete %s: %w", ref, err)
			}

			if report.Index.Strategy == index.StrategyNone && len(report.BlobsDeleted) == 0 {
				fmt.Printf("No document found for %s\n", ref)
				return nil
			}
			fmt.Printf("Deleted %s (index strategy: %s, blobs removed: %d)\n",
				ref, report.Index.Strategy, len(report.BlobsDeleted))
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Index namespace (default: "+index.DefaultNamespace+")")
	return cmd
}
