// Package budget estimates the token cost of an assembled prompt. The
// pipeline talks to model APIs over HTTP without a tokenizer, so it uses a
// conservative character-based heuristic: 1 token ≈ 4 characters (English
// prose and code). Prompts are never trimmed to fit; callers log a warning
// when the estimate exceeds the model's input budget and send the prompt
// anyway, letting the model API enforce its own limit.
package budget

import (
	"github.com/54b3r/docrag-go/internal/llm"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving
	// room for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a prompt,
// summing role + content for each turn.
func EstimateMessages(msgs []llm.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message carries a small per-message overhead (~4 tokens in
		// most chat APIs).
		total += 4
		total += Estimate(m.Role)
		total += Estimate(m.Content)
	}
	return total
}

// Check reports the estimated token count of the prompt and whether it
// exceeds maxTokens. A non-positive maxTokens falls back to
// DefaultMaxContextTokens.
func Check(msgs []llm.Message, maxTokens int) (estimated int, over bool) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	estimated = EstimateMessages(msgs)
	return estimated, estimated > maxTokens
}
