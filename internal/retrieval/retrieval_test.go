package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/54b3r/docrag-go/internal/index"
)

// fakeSearcher records the last search call and replays a scripted result.
type fakeSearcher struct {
	gotNamespace string
	gotQuery     string
	gotTopK      int

	matches []index.Match
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, namespace, query string, topK int, _ []string) ([]index.Match, error) {
	f.gotNamespace = namespace
	f.gotQuery = query
	f.gotTopK = topK
	return f.matches, f.err
}

func Test_Retrieval_PassesThroughRanking(t *testing.T) {
	t.Parallel()

	want := []index.Match{
		{ID: "ab12cd34-0", Score: 0.91, ChunkText: "first"},
		{ID: "ab12cd34-1", Score: 0.42, ChunkText: "second"},
	}
	f := &fakeSearcher{matches: want}

	got, err := New(f, nil).Retrieve(context.Background(), "team-a", "what is it?", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 2 || got[0].ID != "ab12cd34-0" || got[1].Score != 0.42 {
		t.Errorf("ranking altered: %+v", got)
	}
	if f.gotNamespace != "team-a" || f.gotQuery != "what is it?" || f.gotTopK != 3 {
		t.Errorf("search call: ns=%q query=%q topK=%d", f.gotNamespace, f.gotQuery, f.gotTopK)
	}
}

func Test_Retrieval_DefaultTopK(t *testing.T) {
	t.Parallel()

	f := &fakeSearcher{}
	if _, err := New(f, nil).Retrieve(context.Background(), "", "q", 0); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if f.gotTopK != DefaultTopK {
		t.Errorf("topK: want %d, got %d", DefaultTopK, f.gotTopK)
	}
}

func Test_Retrieval_PropagatesSearchError(t *testing.T) {
	t.Parallel()

	boom := errors.New("index unavailable")
	f := &fakeSearcher{err: boom}
	_, err := New(f, nil).Retrieve(context.Background(), "ns", "q", 5)
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped search error, got %v", err)
	}
}

func Test_Retrieval_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	f := &fakeSearcher{}
	got, err := New(f, nil).Retrieve(context.Background(), "ns", "q", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want no matches, got %d", len(got))
	}
}
