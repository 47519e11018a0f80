package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/history"
	"github.com/54b3r/docrag-go/internal/index"
)

// NewHistoryCmd constructs the `docrag history` command, which prints the
// most recent question/answer exchanges recorded by the server.
func NewHistoryCmd() *cobra.Command {
	var namespace string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent question/answer exchanges",
		Long: `Show the most recent questions and answers for a namespace,
oldest first. History is recorded by the serve and ask paths; set
DOCRAG_HISTORY_DB to point at a non-default database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbPath := os.Getenv("DOCRAG_HISTORY_DB")
			if dbPath == "disabled" {
				return fmt.Errorf("history: recording is disabled (DOCRAG_HISTORY_DB=disabled)")
			}
			if dbPath == "" {
				var err error
				dbPath, err = history.DefaultDBPath()
				if err != nil {
					return err
				}
			}

			store, err := history.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Recent(cmd.Context(), index.Namespace(namespace), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No history recorded.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("[%s] Q: %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Question)
				fmt.Printf("A: %s\n", e.Answer)
				if len(e.Sources) > 0 {
					fmt.Printf("Sources: %s\n", strings.Join(e.Sources, ", "))
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Index namespace (default: "+index.DefaultNamespace+")")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of exchanges to show")

	return cmd
}
