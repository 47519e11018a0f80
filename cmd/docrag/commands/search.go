package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/retrieval"
)

// NewSearchCmd constructs the `docrag search` command, which runs a raw
// similarity search without calling the answer model.
func NewSearchCmd() *cobra.Command {
	var namespace string
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Similarity-search the indexed documents",
		Long: `Run a similarity search and print the matching chunks with scores.

No answer model is involved; this shows exactly what retrieval returns
for a query, in the index's ranking order.

Examples:
  docrag search "rotation schedule"
  docrag search --top-k 10 "error budget"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			query := strings.Join(args, " ")

			backend, closeBackend, err := buildBackend(ctx)
			if err != nil {
				return fmt.Errorf("search: failed to initialise index backend: %w", err)
			}
			defer closeBackend()

			gateway, err := buildGateway(backend, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			matches, err := retrieval.New(gateway, log).Retrieve(ctx, namespace, query, topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if len(matches) == 0 {
				fmt.Println("No matches.")
				return nil
			}

			for i, m := range matches {
				src := m.Source
				if src == "" {
					src = "unknown"
				}
				fmt.Printf("%d. [%.4f] %s (chunk %d)\n", i+1, m.Score, src, m.ChunkIndex)
				fmt.Printf("   %s\n", snippet(m.ChunkText, 200))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Index namespace (default: "+index.DefaultNamespace+")")
	cmd.Flags().IntVarP(&topK, "top-k", "k", retrieval.DefaultTopK, "Number of chunks to retrieve")

	return cmd
}

// snippet returns s flattened to one line and truncated to max characters.
func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
