package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/docrag-go/internal/assembly"
	"github.com/54b3r/docrag-go/internal/budget"
	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/logging"
)

// handleSearch handles POST /api/search. Runs a similarity search and
// returns the index's ranking unchanged.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	matches, err := s.retriever.Retrieve(r.Context(), req.Namespace, req.Query, req.TopK)
	if err != nil {
		var re *index.ReadError
		if errors.As(err, &re) {
			log.Error("search failed", slog.Any("error", err))
			writeError(w, http.StatusBadGateway, "index read failed")
			return
		}
		log.Error("search failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := searchResponse{Namespace: index.Namespace(req.Namespace), Matches: []searchMatch{}}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, searchMatch{
			ID:         m.ID,
			Score:      float64(m.Score),
			Text:       m.ChunkText,
			Source:     m.Source,
			ChunkIndex: m.ChunkIndex,
			DocumentID: m.DocumentID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAsk handles POST /api/ask. Retrieves context for the question,
// assembles the prompt, and returns the model's answer with its sources.
// Oversized prompts are sent anyway with a warning logged; nothing is
// truncated.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	if s.completer == nil {
		writeError(w, http.StatusServiceUnavailable, "answering is not configured")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	matches, err := s.retriever.Retrieve(r.Context(), req.Namespace, req.Question, req.TopK)
	if err != nil {
		s.metrics.askRequestsTotal.WithLabelValues("error").Inc()
		log.Error("retrieval failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "retrieval failed")
		return
	}
	if len(matches) == 0 {
		s.metrics.askRequestsTotal.WithLabelValues("no_context").Inc()
		writeJSON(w, http.StatusOK, askResponse{
			Answer:  "No relevant documents were found to answer this question. Upload and embed documents first.",
			Sources: []string{},
			Matches: 0,
		})
		return
	}

	messages := assembly.BuildMessages(req.Question, matches)
	if estimated, over := budget.Check(messages, s.cfg.MaxPromptTokens); over {
		log.Warn("assembled prompt likely exceeds model input budget",
			slog.Int("estimated_tokens", estimated),
			slog.Int("budget_tokens", s.cfg.MaxPromptTokens),
			slog.Int("matches", len(matches)),
		)
	}

	answer, err := s.completer.Complete(r.Context(), messages)
	if err != nil {
		s.metrics.askRequestsTotal.WithLabelValues("error").Inc()
		log.Error("model call failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "model call failed")
		return
	}

	sources := distinctSources(matches)
	if s.history != nil {
		if err := s.history.Append(r.Context(), index.Namespace(req.Namespace), req.Question, answer, sources); err != nil {
			// History is best-effort; the answer still goes out.
			log.Warn("history append failed", slog.Any("error", err))
		}
	}

	s.metrics.askRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.askDurationSeconds.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, askResponse{
		Answer:  answer,
		Sources: sources,
		Matches: len(matches),
	})
}

// distinctSources returns the unique sources of the matches, in ranking order.
func distinctSources(matches []index.Match) []string {
	seen := make(map[string]bool, len(matches))
	sources := []string{}
	for _, m := range matches {
		if m.Source == "" || seen[m.Source] {
			continue
		}
		seen[m.Source] = true
		sources = append(sources, m.Source)
	}
	return sources
}
