package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/54b3r/docrag-go/internal/chunker"
	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/llm"
	"github.com/54b3r/docrag-go/internal/storage"
)

// stubGateway satisfies ingestion.Indexer with scripted behavior so server
// tests can exercise the real pipeline without a vector store.
type stubGateway struct {
	upserts   int
	upsertErr error
	deleteRes index.DeleteResult
	deleteErr error
	summaries []index.DocumentSummary
}

func (g *stubGateway) Upsert(_ context.Context, _, _, _ string, chunks []chunker.Chunk) (int, error) {
	if g.upsertErr != nil {
		return 0, g.upsertErr
	}
	g.upserts += len(chunks)
	return len(chunks), nil
}

func (g *stubGateway) DeleteDocument(_ context.Context, _, _ string) (index.DeleteResult, error) {
	return g.deleteRes, g.deleteErr
}

func (g *stubGateway) ListDocuments(_ context.Context, _ string) ([]index.DocumentSummary, error) {
	return g.summaries, nil
}

// fakeRetriever replays scripted matches.
type fakeRetriever struct {
	matches []index.Match
	err     error
	gotTopK int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, _ string, topK int) ([]index.Match, error) {
	f.gotTopK = topK
	return f.matches, f.err
}

// fakeCompleter replays a scripted answer and records the prompt.
type fakeCompleter struct {
	answer      string
	err         error
	gotMessages []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.gotMessages = messages
	return f.answer, f.err
}

// fakeHistory records appended exchanges.
type fakeHistory struct {
	namespaces []string
	questions  []string
	err        error
}

func (f *fakeHistory) Append(_ context.Context, namespace, question, _ string, _ []string) error {
	f.namespaces = append(f.namespaces, namespace)
	f.questions = append(f.questions, question)
	return f.err
}

// testEnv bundles a server wired with a real pipeline over temp-dir storage
// and scripted index/model fakes.
type testEnv struct {
	srv       *Server
	handler   http.Handler
	gateway   *stubGateway
	retriever *fakeRetriever
	completer *fakeCompleter
	history   *fakeHistory
	store     storage.Store
}

func newTestEnv(t *testing.T, cfg *Config) *testEnv {
	t.Helper()

	store, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	gw := &stubGateway{}
	pipeline, err := ingestion.NewPipeline(store, gw, nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	ret := &fakeRetriever{}
	comp := &fakeCompleter{answer: "the answer"}
	hist := &fakeHistory{}

	srv, err := New(Deps{
		Pipeline:  pipeline,
		Retriever: ret,
		Completer: comp,
		Store:     store,
		History:   hist,
	}, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.stopRL)

	return &testEnv{
		srv:       srv,
		handler:   srv.httpServer.Handler,
		gateway:   gw,
		retriever: ret,
		completer: comp,
		history:   hist,
		store:     store,
	}
}

// uploadFile POSTs a multipart upload and returns the response recorder.
func (e *testEnv) uploadFile(t *testing.T, name, content, namespace string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if namespace != "" {
		if err := mw.WriteField("namespace", namespace); err != nil {
			t.Fatalf("write namespace field: %v", err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return v
}

func TestServer_New_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Deps{}, nil); err == nil {
		t.Error("nil pipeline should be rejected")
	}
}

func TestServer_Health(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}
	body := decodeBody[map[string]string](t, w)
	if body["status"] != "ok" {
		t.Errorf("health body: %v", body)
	}
}

func TestServer_UploadAndList(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	w := env.uploadFile(t, "notes.txt", "some text about things", "team-a")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	up := decodeBody[uploadResponse](t, w)
	if up.Filename != "notes.txt" || up.Namespace != "team-a" {
		t.Errorf("upload response: %+v", up)
	}
	if env.gateway.upserts != 0 {
		t.Error("upload must not write to the index")
	}

	lw := httptest.NewRecorder()
	env.handler.ServeHTTP(lw, httptest.NewRequest(http.MethodGet, "/api/files?namespace=team-a", nil))
	if lw.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", lw.Code)
	}
	listing := decodeBody[filesResponse](t, lw)
	if len(listing.Files) != 1 || listing.Files[0].Filename != "notes.txt" {
		t.Errorf("listing: %+v", listing)
	}
}

func TestServer_UploadUnsupportedFormat(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	w := env.uploadFile(t, "deck.pptx", "binary", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestServer_GetFile(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	env.uploadFile(t, "doc.md", "# heading", "team-a")

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/doc.md?namespace=team-a", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody[fileContentResponse](t, w)
	if body.Content != "# heading" {
		t.Errorf("content: %q", body.Content)
	}
}

func TestServer_GetFile_NotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/nope.txt", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestServer_ChunkPreview(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	content := ""
	for range 400 {
		content += "a sentence about the subject matter. "
	}
	env.uploadFile(t, "long.txt", content, "")

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/long.txt/chunks", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody[chunksResponse](t, w)
	if len(body.Chunks) != ingestion.PreviewCount {
		t.Errorf("preview: want %d chunks, got %d", ingestion.PreviewCount, len(body.Chunks))
	}
	if body.TotalChunks <= ingestion.PreviewCount {
		t.Errorf("total: got %d", body.TotalChunks)
	}
}

func TestServer_Embed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	env.uploadFile(t, "report.txt", "quarterly numbers are up", "team-a")

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/files/report.txt/embed?namespace=team-a", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody[embedResponse](t, w)
	if len(body.DocumentID) != 8 {
		t.Errorf("DocumentID: %q", body.DocumentID)
	}
	if body.ChunksUpserted != 1 || env.gateway.upserts != 1 {
		t.Errorf("upserted: %+v, gateway %d", body, env.gateway.upserts)
	}
}

func TestServer_Embed_EmptyDocument(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	env.uploadFile(t, "blank.txt", "   \n\t ", "")

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/files/blank.txt/embed", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServer_Embed_IndexWriteFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.gateway.upsertErr = &index.WriteError{Namespace: "__default__", DocumentID: "ab12cd34", Batch: 0, Err: errors.New("boom")}

	env.uploadFile(t, "doc.txt", "content here", "")

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/files/doc.txt/embed", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServer_ListDocuments(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.gateway.summaries = []index.DocumentSummary{
		{DocumentID: "ab12cd34", DocumentName: "report.txt", Source: "team-a/x_report.txt"},
	}

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/documents?namespace=team-a", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody[documentsResponse](t, w)
	if len(body.Documents) != 1 || body.Documents[0].DocumentID != "ab12cd34" {
		t.Errorf("documents: %+v", body)
	}
}

func TestServer_DeleteDocument_NotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.gateway.deleteRes = index.DeleteResult{Strategy: index.StrategyNone, Deleted: 0}

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/documents/deadbeef", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServer_DeleteDocument(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.gateway.deleteRes = index.DeleteResult{Strategy: index.StrategyFilterDocumentID, Deleted: -1}

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/documents/ab12cd34", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody[deleteResponse](t, w)
	if body.Strategy != index.StrategyFilterDocumentID || body.VectorsDeleted != -1 {
		t.Errorf("delete response: %+v", body)
	}
}
