package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/assembly"
	"github.com/54b3r/docrag-go/internal/budget"
	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/retrieval"
)

// NewAskCmd constructs the `docrag ask` command, which answers one question
// against the indexed corpus.
func NewAskCmd() *cobra.Command {
	var namespace string
	var topK int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against the indexed documents",
		Long: `Ask a question and get an answer grounded in the indexed documents.

The question is embedded, the most relevant chunks are retrieved, and
the chunks are passed verbatim to the answer model. Sources are printed
after the answer.

Examples:
  docrag ask "What is the refund policy?"
  docrag ask --namespace team-a --top-k 8 "How do I rotate keys?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			question := strings.Join(args, " ")

			completer, err := buildCompleter()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise answer model: %w", err)
			}
			if completer == nil {
				return fmt.Errorf("ask: GROQ_API_KEY is not set")
			}

			backend, closeBackend, err := buildBackend(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise index backend: %w", err)
			}
			defer closeBackend()

			gateway, err := buildGateway(backend, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			matches, err := retrieval.New(gateway, log).Retrieve(ctx, namespace, question, topK)
			if err != nil {
				return fmt.Errorf("ask: retrieval failed: %w", err)
			}
			if len(matches) == 0 {
				fmt.Println("No relevant documents were found for this question.")
				return nil
			}

			messages := assembly.BuildMessages(question, matches)
			if estimated, over := budget.Check(messages, 0); over {
				log.Warn("assembled prompt likely exceeds model input budget",
					slog.Int("estimated_tokens", estimated),
				)
			}

			answer, err := completer.Complete(ctx, messages)
			if err != nil {
				return fmt.Errorf("ask: completion failed: %w", err)
			}

			fmt.Println(answer)
			fmt.Println()
			fmt.Println("Sources:")
			for _, src := range distinctSourceNames(matches) {
				fmt.Printf("  - %s\n", src)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Index namespace (default: "+index.DefaultNamespace+")")
	cmd.Flags().IntVarP(&topK, "top-k", "k", retrieval.DefaultTopK, "Number of chunks to retrieve")

	return cmd
}

// distinctSourceNames returns each match source once, in ranking order.
func distinctSourceNames(matches []index.Match) []string {
	seen := map[string]bool{}
	var sources []string
	for _, m := range matches {
		src := m.Source
		if src == "" {
			src = "unknown"
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	return sources
}
