package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/docrag-go/internal/chunker"
	"github.com/54b3r/docrag-go/internal/extract"
	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/storage"
)

// fakeIndexer records upserts and replays scripted delete outcomes.
type fakeIndexer struct {
	gotNamespace string
	gotDocID     string
	gotDocName   string
	gotChunks    []chunker.Chunk

	upsertErr error
	deleteRes index.DeleteResult
	deleteErr error
	summaries []index.DocumentSummary
	listErr   error
}

func (f *fakeIndexer) Upsert(_ context.Context, namespace, documentID, documentName string, chunks []chunker.Chunk) (int, error) {
	f.gotNamespace = namespace
	f.gotDocID = documentID
	f.gotDocName = documentName
	f.gotChunks = chunks
	if f.upsertErr != nil {
		return len(chunks) / 2, f.upsertErr
	}
	return len(chunks), nil
}

func (f *fakeIndexer) DeleteDocument(_ context.Context, _, _ string) (index.DeleteResult, error) {
	return f.deleteRes, f.deleteErr
}

func (f *fakeIndexer) ListDocuments(_ context.Context, _ string) ([]index.DocumentSummary, error) {
	return f.summaries, f.listErr
}

func newTestPipeline(t *testing.T, idx *fakeIndexer) (*Pipeline, storage.Store) {
	t.Helper()
	store, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	p, err := NewPipeline(store, idx, nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, store
}

func Test_Ingestion_UploadRejectsUnsupportedFormat(t *testing.T) {
	t.Parallel()
	p, _ := newTestPipeline(t, &fakeIndexer{})

	_, err := p.Upload(context.Background(), "team-a", "deck.pptx", []byte("binary"))
	var ufe *extract.UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("want *extract.UnsupportedFormatError, got %T: %v", err, err)
	}
}

func Test_Ingestion_UploadDoesNotIndex(t *testing.T) {
	t.Parallel()
	idx := &fakeIndexer{}
	p, _ := newTestPipeline(t, idx)

	obj, err := p.Upload(context.Background(), "team-a", "notes.txt", []byte("some text"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if obj.Filename != "notes.txt" {
		t.Errorf("Filename: got %q", obj.Filename)
	}
	if idx.gotChunks != nil {
		t.Error("upload should not write to the index")
	}
}

func Test_Ingestion_IngestBlob(t *testing.T) {
	t.Parallel()
	idx := &fakeIndexer{}
	p, _ := newTestPipeline(t, idx)
	ctx := context.Background()

	obj, err := p.Upload(ctx, "team-a", "report.txt", []byte("the quarterly numbers are up"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	res, err := p.IngestBlob(ctx, "team-a", obj.BlobRef, "report.txt")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(res.DocumentID) != 8 {
		t.Errorf("DocumentID: want 8 hex chars, got %q", res.DocumentID)
	}
	if res.DocumentName != "report.txt" || res.Source != obj.BlobRef {
		t.Errorf("result: %+v", res)
	}
	if res.Chunks != 1 || res.Written != 1 {
		t.Errorf("counts: %+v", res)
	}
	if idx.gotNamespace != "team-a" || idx.gotDocName != "report.txt" {
		t.Errorf("upsert call: ns=%q name=%q", idx.gotNamespace, idx.gotDocName)
	}
	if len(idx.gotChunks) != 1 || idx.gotChunks[0].Source != obj.BlobRef {
		t.Errorf("chunks: %+v", idx.gotChunks)
	}
}

func Test_Ingestion_EmptyDocumentBlocked(t *testing.T) {
	t.Parallel()
	idx := &fakeIndexer{}
	p, _ := newTestPipeline(t, idx)
	ctx := context.Background()

	obj, err := p.Upload(ctx, "team-a", "blank.txt", []byte("   \n\t  "))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	_, err = p.IngestBlob(ctx, "team-a", obj.BlobRef, "blank.txt")
	var ede *EmptyDocumentError
	if !errors.As(err, &ede) {
		t.Fatalf("want *EmptyDocumentError, got %T: %v", err, err)
	}
	if idx.gotChunks != nil {
		t.Error("empty document must not reach the index")
	}
}

func Test_Ingestion_MissingBlob(t *testing.T) {
	t.Parallel()
	p, _ := newTestPipeline(t, &fakeIndexer{})

	_, err := p.IngestBlob(context.Background(), "team-a", "team-a/nope.txt", "")
	var nfe *storage.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("want *storage.NotFoundError, got %T: %v", err, err)
	}
}

func Test_Ingestion_IndexFailureKeepsPartialCount(t *testing.T) {
	t.Parallel()
	boom := errors.New("upsert failed")
	idx := &fakeIndexer{upsertErr: boom}
	p, _ := newTestPipeline(t, idx)
	ctx := context.Background()

	obj, err := p.Upload(ctx, "team-a", "big.txt", []byte(strings.Repeat("word ", 600)))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	res, err := p.IngestBlob(ctx, "team-a", obj.BlobRef, "big.txt")
	if !errors.Is(err, boom) {
		t.Fatalf("want upsert error, got %v", err)
	}
	if res == nil || res.Written >= res.Chunks {
		t.Errorf("partial result: %+v", res)
	}
}

func Test_Ingestion_PreviewChunks(t *testing.T) {
	t.Parallel()
	p, _ := newTestPipeline(t, &fakeIndexer{})
	ctx := context.Background()

	// Large enough to split into well over PreviewCount chunks.
	obj, err := p.Upload(ctx, "team-a", "long.txt", []byte(strings.Repeat("sentence about things. ", 400)))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	preview, total, err := p.PreviewChunks(ctx, obj.BlobRef, "long.txt")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(preview) != PreviewCount {
		t.Errorf("preview length: want %d, got %d", PreviewCount, len(preview))
	}
	if total <= PreviewCount {
		t.Errorf("total: want more than %d, got %d", PreviewCount, total)
	}
	if preview[0].Index != 0 {
		t.Errorf("first preview chunk index: got %d", preview[0].Index)
	}
}

func Test_Ingestion_DeleteDocument_RemovesIndexAndBlob(t *testing.T) {
	t.Parallel()
	idx := &fakeIndexer{deleteRes: index.DeleteResult{Strategy: index.StrategyFilterDocumentID, Deleted: -1}}
	p, store := newTestPipeline(t, idx)
	ctx := context.Background()

	obj, err := p.Upload(ctx, "team-a", "gone.txt", []byte("content"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	report, err := p.DeleteDocument(ctx, "team-a", "gone.txt")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if report.Index.Strategy != index.StrategyFilterDocumentID {
		t.Errorf("strategy: got %q", report.Index.Strategy)
	}
	if len(report.BlobsDeleted) != 1 || report.BlobsDeleted[0] != obj.BlobRef {
		t.Errorf("blobs deleted: %v", report.BlobsDeleted)
	}
	if _, err := store.Get(ctx, obj.BlobRef); err == nil {
		t.Error("blob still present after delete")
	}
}

func Test_Ingestion_DeleteDocument_ResolvesRefKind(t *testing.T) {
	t.Parallel()

	summaries := []index.DocumentSummary{
		{DocumentID: "ab12cd34", DocumentName: "gone.txt", Source: "team-a/17_ab12cd34_gone.txt"},
		{DocumentID: "", DocumentName: "old.txt", Source: "team-a/legacy_old.txt"},
	}

	cases := []struct {
		name string
		ref  string
		want string
	}{
		{"document id wins", "ab12cd34", "id"},
		{"source path for legacy documents", "team-a/legacy_old.txt", "source"},
		{"unknown ref stays unresolved", "no-such-doc", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx := &fakeIndexer{summaries: summaries}
			p, _ := newTestPipeline(t, idx)

			report, err := p.DeleteDocument(context.Background(), "team-a", tc.ref)
			if err != nil {
				t.Fatalf("delete: %v", err)
			}
			if report.RefKind != tc.want {
				t.Errorf("RefKind: want %q, got %q", tc.want, report.RefKind)
			}
		})
	}
}

func Test_Ingestion_DeleteDocument_ListFailureDoesNotBlock(t *testing.T) {
	t.Parallel()
	idx := &fakeIndexer{
		listErr:   errors.New("listing unavailable"),
		deleteRes: index.DeleteResult{Strategy: index.StrategyFilterDocumentID, Deleted: -1},
	}
	p, _ := newTestPipeline(t, idx)

	report, err := p.DeleteDocument(context.Background(), "team-a", "ab12cd34")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if report.RefKind != "" {
		t.Errorf("RefKind: want empty, got %q", report.RefKind)
	}
	if report.Index.Strategy != index.StrategyFilterDocumentID {
		t.Errorf("strategy: got %q", report.Index.Strategy)
	}
}

func Test_Ingestion_DeleteDocument_PartialFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("index unavailable")
	idx := &fakeIndexer{deleteErr: boom}
	p, store := newTestPipeline(t, idx)
	ctx := context.Background()

	obj, err := p.Upload(ctx, "team-a", "half.txt", []byte("content"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	report, err := p.DeleteDocument(ctx, "team-a", "half.txt")
	var pde *PartialDeleteError
	if !errors.As(err, &pde) {
		t.Fatalf("want *PartialDeleteError, got %T: %v", err, err)
	}
	if !errors.Is(pde.IndexErr, boom) {
		t.Errorf("IndexErr: got %v", pde.IndexErr)
	}

	// Storage deletion still went through.
	if len(report.BlobsDeleted) != 1 {
		t.Errorf("blobs deleted: %v", report.BlobsDeleted)
	}
	if _, err := store.Get(ctx, obj.BlobRef); err == nil {
		t.Error("blob should be gone despite the index failure")
	}
}
