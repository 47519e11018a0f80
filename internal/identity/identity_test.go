package identity

import (
	"testing"
)

func Test_NewDocumentID_ShapeAndUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 100 {
		id := NewDocumentID()
		if len(id) != 8 {
			t.Fatalf("want 8-character id, got %q (%d)", id, len(id))
		}
		for _, c := range id {
			if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
				t.Fatalf("id %q contains non-hex character %q", id, c)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate id %q within 100 mints", id)
		}
		seen[id] = true
	}
}

func Test_Resolve_PrefersIDOverSource(t *testing.T) {
	t.Parallel()

	// The candidate appears both as an id and as a source path;
	// the id lookup must win.
	ids := []string{"deadbeef"}
	sources := []string{"deadbeef", "uploads/report.txt"}

	ref, ok := Resolve("deadbeef", ids, sources)
	if !ok {
		t.Fatal("expected a match")
	}
	if ref.Kind != ByID {
		t.Errorf("Kind: want ByID, got %v", ref.Kind)
	}
	if ref.Value != "deadbeef" {
		t.Errorf("Value: want deadbeef, got %q", ref.Value)
	}
}

func Test_Resolve_FallsBackToSource(t *testing.T) {
	t.Parallel()

	ref, ok := Resolve("uploads/legacy.txt", []string{"cafe0123"}, []string{"uploads/legacy.txt"})
	if !ok {
		t.Fatal("expected a match")
	}
	if ref.Kind != BySource {
		t.Errorf("Kind: want BySource, got %v", ref.Kind)
	}
	if ref.Value != "uploads/legacy.txt" {
		t.Errorf("Value: want uploads/legacy.txt, got %q", ref.Value)
	}
}

func Test_Resolve_NoMatch(t *testing.T) {
	t.Parallel()

	if _, ok := Resolve("missing", []string{"a1b2c3d4"}, []string{"uploads/x.txt"}); ok {
		t.Error("expected no match for unknown candidate")
	}
}

func Test_Resolve_Deterministic(t *testing.T) {
	t.Parallel()

	ids := []string{"11111111", "22222222"}
	sources := []string{"s1", "s2"}

	first, ok1 := Resolve("22222222", ids, sources)
	second, ok2 := Resolve("22222222", ids, sources)
	if !ok1 || !ok2 || first != second {
		t.Errorf("resolution not deterministic: %v/%v vs %v/%v", first, ok1, second, ok2)
	}
}
