package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/54b3r/docrag-go/internal/extract"
	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/storage"
)

// handleUpload handles POST /api/files. The document is sent as a multipart
// form with the file under the "file" field; an optional "namespace" field
// scopes the upload. The blob is stored but not indexed — indexing happens
// via POST /api/files/{name}/embed.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}

	namespace := namespaceParam(r)
	obj, err := s.pipeline.Upload(r.Context(), namespace, header.Filename, data)
	if err != nil {
		var ufe *extract.UnsupportedFormatError
		if errors.As(err, &ufe) {
			s.metrics.ingestDocumentsTotal.WithLabelValues("unsupported").Inc()
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error("upload failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Filename:    obj.Filename,
		BlobRef:     obj.BlobRef,
		Size:        obj.Size,
		ContentType: obj.ContentType,
		Namespace:   index.Namespace(namespace),
	})
}

// handleListFiles handles GET /api/files. Lists stored blobs in the
// requested namespace, newest first.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	namespace := namespaceParam(r)

	objs, err := s.store.List(r.Context(), index.Namespace(namespace))
	if err != nil {
		log.Error("list files failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list files")
		return
	}

	resp := filesResponse{Namespace: index.Namespace(namespace), Files: []fileInfo{}}
	for _, obj := range objs {
		resp.Files = append(resp.Files, fileInfo{
			Filename:    obj.Filename,
			BlobRef:     obj.BlobRef,
			Size:        obj.Size,
			ContentType: obj.ContentType,
			CreatedAt:   obj.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetFile handles GET /api/files/{name}. Returns the content of the
// most recent blob uploaded under that filename.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	name := r.PathValue("name")
	namespace := namespaceParam(r)

	obj, err := s.findBlob(r, namespace, name)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found: "+name)
		return
	}

	data, err := s.store.Get(r.Context(), obj.BlobRef)
	if err != nil {
		var nfe *storage.NotFoundError
		if errors.As(err, &nfe) {
			writeError(w, http.StatusNotFound, "file not found: "+name)
			return
		}
		log.Error("read file failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not read file")
		return
	}

	writeJSON(w, http.StatusOK, fileContentResponse{
		Filename: obj.Filename,
		BlobRef:  obj.BlobRef,
		Content:  string(data),
	})
}

// handleChunks handles GET /api/files/{name}/chunks. Returns a preview of
// the first five chunks the splitter would produce, without indexing.
func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	name := r.PathValue("name")
	namespace := namespaceParam(r)

	obj, err := s.findBlob(r, namespace, name)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found: "+name)
		return
	}

	chunks, total, err := s.pipeline.PreviewChunks(r.Context(), obj.BlobRef, obj.Filename)
	if err != nil {
		var ufe *extract.UnsupportedFormatError
		if errors.As(err, &ufe) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error("chunk preview failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not chunk file")
		return
	}

	resp := chunksResponse{Filename: obj.Filename, TotalChunks: total, Chunks: []chunkPreview{}}
	for _, c := range chunks {
		resp.Chunks = append(resp.Chunks, chunkPreview{
			Index:         c.Index,
			Text:          c.Text,
			Length:        c.Length,
			TokenEstimate: c.TokenEstimate,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEmbed handles POST /api/files/{name}/embed. Extracts, chunks, and
// indexes the most recent blob uploaded under the filename.
func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	name := r.PathValue("name")
	namespace := namespaceParam(r)

	obj, err := s.findBlob(r, namespace, name)
	if err != nil {
		s.metrics.ingestDocumentsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusNotFound, "file not found: "+name)
		return
	}

	res, err := s.pipeline.IngestBlob(r.Context(), namespace, obj.BlobRef, obj.Filename)
	if err != nil {
		var ede *ingestion.EmptyDocumentError
		if errors.As(err, &ede) {
			s.metrics.ingestDocumentsTotal.WithLabelValues("empty").Inc()
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var we *index.WriteError
		if errors.As(err, &we) {
			s.metrics.ingestDocumentsTotal.WithLabelValues("error").Inc()
			if res != nil {
				s.metrics.ingestChunksWritten.Add(float64(res.Written))
			}
			log.Error("index write failed", slog.Any("error", err))
			writeError(w, http.StatusBadGateway, "index write failed")
			return
		}
		s.metrics.ingestDocumentsTotal.WithLabelValues("error").Inc()
		log.Error("ingestion failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	s.metrics.ingestDocumentsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunksWritten.Add(float64(res.Written))

	writeJSON(w, http.StatusOK, embedResponse{
		DocumentID:     res.DocumentID,
		Message:        "document indexed",
		Namespace:      index.Namespace(namespace),
		ChunksUpserted: res.Written,
	})
}

// findBlob returns the most recent stored blob whose original filename
// matches name, or whose blob reference is name exactly.
func (s *Server) findBlob(r *http.Request, namespace, name string) (*storage.Object, error) {
	objs, err := s.store.List(r.Context(), index.Namespace(namespace))
	if err != nil {
		return nil, err
	}
	for i := range objs {
		if objs[i].Filename == name || objs[i].BlobRef == name {
			return &objs[i], nil
		}
	}
	return nil, &storage.NotFoundError{BlobRef: name}
}
