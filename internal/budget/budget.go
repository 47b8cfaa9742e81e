// Package budget estimates token counts for prompt text and checks whether
// a prompt fits a model's advertised token limit, so an oversized page's
// text can be truncated before it is ever sent to a provider.
package budget

import (
	"math"
)

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token in English). The
// result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// HeadroomTokens returns a conservative safety margin to subtract from a
// model's advertised token limit before comparing against estimated prompt
// tokens, covering tokenizer and message-framing overhead the char-based
// estimate does not model. It is the larger of 5% of tokenLimit or a fixed
// floor of 256 tokens.
func HeadroomTokens(tokenLimit int) int {
	dyn := int(math.Ceil(float64(tokenLimit) * 0.05))
	if dyn < 256 {
		return 256
	}
	return dyn
}

// RemainingContext computes the input token budget left in tokenLimit after
// reserving reservedForOutput tokens and HeadroomTokens(tokenLimit). Never
// negative. tokenLimit <= 0 means unknown/unbounded, so no truncation is
// ever recommended.
func RemainingContext(tokenLimit int, reservedForOutput int) int {
	if tokenLimit <= 0 {
		return math.MaxInt32
	}
	if reservedForOutput < 0 {
		reservedForOutput = 0
	}
	remaining := tokenLimit - reservedForOutput - HeadroomTokens(tokenLimit)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FitsInContext reports whether promptTokens fits within tokenLimit once
// reservedForOutput and headroom are accounted for.
func FitsInContext(tokenLimit int, reservedForOutput int, promptTokens int) bool {
	return promptTokens <= RemainingContext(tokenLimit, reservedForOutput)
}

// TruncateToFit trims text (from the end, keeping the earlier content which
// typically carries the page's title and lead sections) so its estimated
// token count fits within budgetTokens. Returns text unchanged if it
// already fits or budgetTokens is non-positive.
func TruncateToFit(text string, budgetTokens int) string {
	if budgetTokens <= 0 || EstimateTokens(text) <= budgetTokens {
		return text
	}
	maxChars := budgetTokens * 4
	if maxChars >= len(text) {
		return text
	}
	if maxChars < 0 {
		maxChars = 0
	}
	return text[:maxChars]
}
