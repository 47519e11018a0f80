package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/logging"
)

// handleListDocuments handles GET /api/documents. Lists the distinct
// documents present in the index for the requested namespace.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	namespace := namespaceParam(r)

	summaries, err := s.pipeline.ListDocuments(r.Context(), namespace)
	if err != nil {
		var re *index.ReadError
		if errors.As(err, &re) {
			log.Error("document listing failed", slog.Any("error", err))
			writeError(w, http.StatusBadGateway, "index read failed")
			return
		}
		log.Error("document listing failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}

	resp := documentsResponse{Namespace: index.Namespace(namespace), Documents: []documentInfo{}}
	for _, d := range summaries {
		resp.Documents = append(resp.Documents, documentInfo{
			DocumentID:   d.DocumentID,
			DocumentName: d.DocumentName,
			Source:       d.Source,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteDocument handles DELETE /api/documents/{id}. The id path
// segment may be a short document id or a source path; the pipeline
// resolves which. Index records and stored blobs are removed together.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	ref := r.PathValue("id")
	namespace := namespaceParam(r)

	report, err := s.pipeline.DeleteDocument(r.Context(), namespace, ref)
	if err != nil {
		var pde *ingestion.PartialDeleteError
		if errors.As(err, &pde) {
			log.Error("delete partially failed",
				slog.String("document", ref),
				slog.Any("error", err),
			)
			writeJSON(w, http.StatusInternalServerError, deleteResponse{
				Message:        "deletion partially failed: " + pde.Error(),
				Strategy:       report.Index.Strategy,
				VectorsDeleted: report.Index.Deleted,
				BlobsDeleted:   report.BlobsDeleted,
			})
			return
		}
		log.Error("delete failed", slog.String("document", ref), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "deletion failed")
		return
	}

	if report.Index.Strategy == index.StrategyNone && len(report.BlobsDeleted) == 0 {
		writeError(w, http.StatusNotFound, "document not found: "+ref)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{
		Message:        fmt.Sprintf("document %s deleted", ref),
		Strategy:       report.Index.Strategy,
		VectorsDeleted: report.Index.Deleted,
		BlobsDeleted:   report.BlobsDeleted,
	})
}
