// Package identity mints and resolves document identities. Every ingestion
// is assigned a fresh opaque token — re-ingesting an identically named file
// deliberately produces a new document rather than replacing the old one.
// Documents indexed before identity tracking existed carry no document id;
// for those the source path doubles as the identity (legacy documents).
package identity

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// RefKind discriminates the two ways a document can be addressed.
type RefKind int

const (
	// ByID addresses a document by its opaque document id.
	ByID RefKind = iota

	// BySource addresses a legacy document by its source path.
	BySource
)

// String returns the lookup kind as a short label for logs.
func (k RefKind) String() string {
	if k == BySource {
		return "source"
	}
	return "id"
}

// DocumentRef is a resolved reference to a document: either its opaque id or,
// for documents that predate identity tracking, its source path.
type DocumentRef struct {
	// Kind reports which lookup matched.
	Kind RefKind

	// Value is the document id (Kind == ByID) or source path (Kind == BySource).
	Value string
}

// NewDocumentID returns a short, collision-resistant opaque token for one
// ingestion. Eight hex characters over a random UUID keeps composite chunk
// keys compact while making accidental collisions across uploads unlikely.
func NewDocumentID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:4])
}

// Resolve maps a caller-supplied candidate to a document reference.
// Precedence is fixed: a document id match always wins; the source path is
// consulted only when no id matches, covering legacy documents. Returns
// false when the candidate matches neither.
func Resolve(candidate string, knownIDs, knownSources []string) (DocumentRef, bool) {
	for _, id := range knownIDs {
		if id == candidate {
			return DocumentRef{Kind: ByID, Value: candidate}, true
		}
	}
	for _, src := range knownSources {
		if src == candidate {
			return DocumentRef{Kind: BySource, Value: candidate}, true
		}
	}
	return DocumentRef{}, false
}
