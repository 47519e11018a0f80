package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/history"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/retrieval"
	"github.com/54b3r/docrag-go/internal/server"
)

// NewServeCmd constructs the `docrag serve` command, which starts the HTTP
// server exposing the upload, search, and ask endpoints.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docrag HTTP server",
		Long: `Start the docrag HTTP server on localhost.

The server exposes a REST API for uploading documents, previewing chunks,
indexing, similarity search, and question answering.

Examples:
  docrag serve
  docrag serve --port 9090
  INDEX_BACKEND=qdrant docrag serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("backend", envOr("INDEX_BACKEND", "pinecone")))

			store, err := buildStore()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			backend, closeBackend, err := buildBackend(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise index backend: %w", err)
			}
			defer closeBackend()

			gateway, err := buildGateway(backend, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			pipeline, err := buildPipeline(store, gateway, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			completer, err := buildCompleter()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise answer model: %w", err)
			}
			if completer == nil {
				log.Warn("GROQ_API_KEY not set — /api/ask will be unavailable")
			}

			// Open the Q&A history store. DOCRAG_HISTORY_DB overrides the
			// default path (~/.docrag/history.db). Set to "disabled" to disable.
			var historyStore history.Store
			dbPath := os.Getenv("DOCRAG_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = history.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := history.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via DOCRAG_HISTORY_DB=disabled")
			}

			var pingers []server.Pinger
			if p, ok := backend.(server.Pinger); ok {
				pingers = append(pingers, p)
			}

			deps := server.Deps{
				Pipeline:  pipeline,
				Retriever: retrieval.New(gateway, log),
				Store:     store,
			}
			if completer != nil {
				deps.Completer = completer
			}
			if historyStore != nil {
				deps.History = historyStore
			}

			srv, err := server.New(deps, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("DOCRAG_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
