// Package chunker splits extracted document text into ordered, overlapping
// chunks suitable for indexing. The splitter is hierarchical: it prefers
// paragraph boundaries, falling back to line breaks, word boundaries, and
// finally raw characters for pathological inputs. Splitting is deterministic —
// the same text and parameters always produce the same chunk sequence.
package chunker

import (
	"fmt"
	"strings"
)

// separators is the ordered list of split boundaries, coarsest first.
// The final empty separator means "split at raw character positions" and
// guarantees every segment can be reduced below the target size.
var separators = []string{"\n\n", "\n", " ", ""}

// Chunk is a contiguous, bounded span of a document's text.
type Chunk struct {
	// Index is the 0-based position of this chunk within the document.
	// Indices are contiguous: a document with n chunks has indices 0..n-1.
	Index int

	// Text is the chunk content, including any interior separators.
	Text string

	// Length is the character count of Text.
	Length int

	// TokenEstimate is an approximate token count (whitespace-delimited words).
	TokenEstimate int

	// Source is the provenance string, normally the document's file name.
	Source string
}

// Splitter produces overlapping chunks of at most Size characters.
type Splitter struct {
	// size is the maximum number of characters per chunk.
	size int

	// overlap is the number of characters each chunk shares with the tail
	// of its predecessor. Always strictly less than size.
	overlap int
}

// NewSplitter constructs a Splitter. size must be positive and overlap must
// be strictly less than size; otherwise the accumulation loop below could
// fail to make progress, so invalid parameters are rejected here.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: chunk overlap %d must be strictly less than chunk size %d", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// span is a half-open [start, end) byte range into the source text.
type span struct {
	start int
	end   int
}

// Split chunks text and stamps each chunk with source as its provenance.
// Whitespace-only text is treated the same as empty text and yields zero
// chunks, since it contains nothing worth indexing; non-blank text no longer
// than the target size yields exactly one chunk.
func (s *Splitter) Split(text, source string) []Chunk {
	segments := s.segment(text, 0, 0)
	if len(segments) == 0 {
		return nil
	}

	var chunks []Chunk
	prevEnd := 0
	i := 0
	for i < len(segments) {
		start := segments[i].start

		// Resume overlap characters before the prior chunk's end so adjacent
		// chunks share local context across the boundary.
		if len(chunks) > 0 && s.overlap > 0 {
			o := prevEnd - s.overlap
			if o < 0 {
				o = 0
			}
			if o < start {
				start = o
			}
			// Never let the overlap prefix push the first new segment past
			// the size budget: shrink the shared span instead of stalling.
			if segments[i].end-start > s.size {
				start = segments[i].end - s.size
			}
		}

		end := segments[i].end
		i++
		for i < len(segments) && segments[i].end-start <= s.size {
			end = segments[i].end
			i++
		}
		prevEnd = end

		body := text[start:end]
		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			Text:          body,
			Length:        len(body),
			TokenEstimate: len(strings.Fields(body)),
			Source:        source,
		})
	}

	return chunks
}

// segment recursively splits text[base:] into ordered spans of at most
// s.size characters, using the separator at sepIdx and recursing to finer
// separators for oversized parts. Separator characters between spans are not
// part of any span, but reappear in chunk text because chunks are cut from
// the original string.
func (s *Splitter) segment(text string, base, sepIdx int) []span {
	sep := separators[sepIdx]

	if sep == "" {
		// Character-level fallback: fixed windows narrowed by the overlap,
		// leaving the accumulation loop room to prepend the shared prefix
		// without exceeding the size budget on separator-free text.
		width := s.size - s.overlap
		var out []span
		for off := 0; off < len(text); off += width {
			end := off + width
			if end > len(text) {
				end = len(text)
			}
			out = append(out, span{start: base + off, end: base + end})
		}
		return out
	}

	var out []span
	off := 0
	for _, part := range strings.Split(text, sep) {
		if strings.TrimSpace(part) == "" {
			off += len(part) + len(sep)
			continue
		}
		if len(part) > s.size {
			out = append(out, s.segment(part, base+off, sepIdx+1)...)
		} else {
			out = append(out, span{start: base + off, end: base + off + len(part)})
		}
		off += len(part) + len(sep)
	}
	return out
}
