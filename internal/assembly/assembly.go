// Package assembly turns retrieved chunks into the prompt sent to the
// answer model. Every retrieved chunk is included verbatim; nothing is
// truncated or summarized before the model sees it.
package assembly

import (
	"fmt"
	"strings"

	"github.com/54b3r/docrag-go/internal/index"
	"github.com/54b3r/docrag-go/internal/llm"
)

// SystemInstruction pins the model to the supplied excerpts. It is sent as
// the system turn of every question.
const SystemInstruction = "You are a helpful assistant that answers questions based on the provided document excerpts. " +
	"Use only the information in the excerpts to answer. If the excerpts do not contain enough " +
	"information to answer the question, say so clearly instead of guessing."

// ContextBlock renders one retrieved chunk as a labeled excerpt.
func ContextBlock(m index.Match) string {
	source := m.Source
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("Source: %s (Chunk %d):\n%s", source, m.ChunkIndex, m.ChunkText)
}

// BuildContext joins the retrieved chunks into a single excerpt section,
// one block per chunk, separated by blank lines. Order follows the
// retrieval ranking.
func BuildContext(matches []index.Match) string {
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, ContextBlock(m))
	}
	return strings.Join(blocks, "\n\n")
}

// BuildMessages produces the two-turn prompt for a question: the fixed
// system instruction, then a user turn carrying the excerpts and the
// question.
func BuildMessages(question string, matches []index.Match) []llm.Message {
	var b strings.Builder
	b.WriteString("Document excerpts:\n\n")
	b.WriteString(BuildContext(matches))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: SystemInstruction},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
