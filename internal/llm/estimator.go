package llm

import (
	"unicode/utf8"

	"github.com/researchcli/research/internal/llm/contract"
)

// Rough chars-per-token ratio observed across current tokenizers.
const charsPerToken = 4

// EstimateTokens is the deterministic fallback for providers without
// native counting: ceil(total character count of all text parts / 4).
// Pure, monotonic in input length, no network.
func EstimateTokens(req contract.ChatRequest) int {
	chars := 0
	for _, msg := range req.Messages {
		for _, part := range msg.Parts {
			chars += utf8.RuneCountInString(part.Text)
		}
	}
	return (chars + charsPerToken - 1) / charsPerToken
}

// EstimateTextTokens estimates a single string.
func EstimateTextTokens(text string) int {
	chars := utf8.RuneCountInString(text)
	return (chars + charsPerToken - 1) / charsPerToken
}
