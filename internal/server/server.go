// Package server implements the HTTP server that exposes the document
// pipeline via a REST API: uploads, chunk previews, indexing, search, and
// question answering. The server is started by the `docrag serve` CLI
// command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docrag-go/internal/budget"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/storage"
)

// Deps bundles the collaborators the server exposes over HTTP.
type Deps struct {
	// Pipeline handles uploads, previews, indexing, and deletion.
	Pipeline ingestor
	// Retriever answers similarity searches.
	Retriever retriever
	// Completer produces answers from assembled prompts. May be nil, in
	// which case POST /api/ask returns 503.
	Completer completer
	// Store lists and reads raw uploaded blobs.
	Store storage.Store
	// History records Q&A exchanges. May be nil (history disabled).
	History historian
}

// New constructs a Server from the provided dependencies and config.
// The returned registry carries this server's metrics and is served at
// GET /metrics.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if deps.Retriever == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("server: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Long enough for a slow model call on the ask path.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.MaxPromptTokens == 0 {
		cfg.MaxPromptTokens = budget.DefaultMaxContextTokens
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = logging.WithComponent(log, "server")

	registry := prometheus.NewRegistry()

	s := &Server{
		pipeline:  deps.Pipeline,
		retriever: deps.Retriever,
		completer: deps.Completer,
		store:     deps.Store,
		history:   deps.History,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(registry),
	}

	if cfg.APIKey == "" {
		log.Warn("server: API authentication disabled (no API key configured)")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/files", s.instrument("files_upload", s.handleUpload))
	mux.HandleFunc("GET /api/files", s.instrument("files_list", s.handleListFiles))
	mux.HandleFunc("GET /api/files/{name}", s.instrument("files_get", s.handleGetFile))
	mux.HandleFunc("GET /api/files/{name}/chunks", s.instrument("files_chunks", s.handleChunks))
	mux.HandleFunc("POST /api/files/{name}/embed", s.instrument("files_embed", s.handleEmbed))
	mux.HandleFunc("GET /api/documents", s.instrument("documents_list", s.handleListDocuments))
	mux.HandleFunc("DELETE /api/documents/{id}", s.instrument("documents_delete", s.handleDeleteDocument))
	mux.HandleFunc("POST /api/search", s.instrument("search", s.handleSearch))
	mux.HandleFunc("POST /api/ask", s.instrument("ask", s.handleAsk))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler := requestLogger(log, rl.middleware(authMiddleware(cfg.APIKey, mux)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instrument wraps a handler with per-endpoint request counting and latency
// observation, labeled by the logical handler name.
func (s *Server) instrument(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h(rw, r)
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, fmt.Sprintf("%d", rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	}
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// namespaceParam returns the request's namespace, from the query string or
// form field. Empty means the default namespace.
func namespaceParam(r *http.Request) string {
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		return ns
	}
	return r.FormValue("namespace")
}
