// Package commands defines all Cobra CLI commands for the docrag binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/audit"
	"github.com/54b3r/docrag-go/internal/config"
	"github.com/54b3r/docrag-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docrag",
		Short: "docrag — document Q&A over a vector index",
		Long: `docrag ingests plain-text documents into a vector index and answers
questions against them.

Documents are uploaded, split into overlapping chunks, and indexed with
server-side or local embeddings. Questions retrieve the most relevant
chunks and pass them verbatim to the answer model.

The index backend is selected via the INDEX_BACKEND environment variable
or a YAML config file (~/.docrag/config.yaml).
See 'docrag --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env is optional; env vars already set still win.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docrag/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewDocumentsCmd(),
		NewChunksCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
