package memory

import (
	"math"

	"github.com/luohaha/aloop/internal/message"
)

// charsPerToken is the estimator fallback ratio, matching
// original_source/config.py's implicit 3.5 constant (and the chars/3.5
// estimate original_source/memory/long_term/consolidator.py uses for
// byte-budget checks). The teacher's own estimator uses a flat 3; we
// follow the original's ratio since spec §9 only requires the ±10%
// additivity property, not a specific constant, and the ratio must match
// the consolidator's budget math to stay consistent across the engine.
const charsPerToken = 3.5

// messageOverhead is a fixed per-message allowance for role/metadata
// framing that the character count does not capture, matching the
// teacher's token_estimator.go overhead term.
const messageOverhead = 100

// toolCallOverhead is a fixed allowance per tool call for its id/type
// framing beyond the name and arguments already counted.
const toolCallOverhead = 20

// TokenTracker estimates per-message token counts and accumulates the
// usage ledger (C1). The estimator is deterministic: the same message
// always yields the same count.
type TokenTracker struct {
	stats UsageStats
}

// NewTokenTracker returns a tracker with a zeroed ledger.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Estimate returns the estimated token count for a single message.
func (t *TokenTracker) Estimate(m message.Message) int {
	chars := len(m.Content) + messageOverhead
	for _, tc := range m.ToolCalls {
		chars += len(tc.Function.Name) + len(tc.Function.Arguments) + toolCallOverhead
	}
	return int(math.Ceil(float64(chars) / charsPerToken))
}

// EstimateAll sums Estimate over every message.
func (t *TokenTracker) EstimateAll(msgs []message.Message) int {
	total := 0
	for _, m := range msgs {
		total += t.Estimate(m)
	}
	return total
}

// RecordAPIUsage folds an LLM response's reported usage into the
// cumulative totals.
func (t *TokenTracker) RecordAPIUsage(in, out int) {
	t.stats.TotalInputTokens += in
	t.stats.TotalOutputTokens += out
}

// RecordCompression folds a completed compression's token accounting
// into the ledger.
func (t *TokenTracker) RecordCompression(result CompressionResult) {
	t.stats.CompressionCount++
	savings := result.TokenSavings()
	if savings > 0 {
		t.stats.CompressionSavings += savings
	}
	t.stats.CompressionCost += result.CompressedTokens
}

// Stats returns a copy of the current ledger.
func (t *TokenTracker) Stats() UsageStats {
	return t.stats
}
