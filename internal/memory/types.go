// Package memory implements the working-memory engine's in-process
// components: token tracking, the short-term buffer, the accountant, the
// compression policy, the compressor, and the coordinator façade that
// assembles them (C1-C5, C8). Session and long-term persistence live in
// the sibling session and longterm packages.
package memory

import (
	"time"

	"github.com/luohaha/aloop/internal/message"
)

// Strategy is the tagged variant a CompressionPolicy selects and the
// Compressor dispatches on. It is never modeled as an interface with
// multiple implementations — a flat switch over these three values.
type Strategy string

const (
	StrategyDeletion      Strategy = "deletion"
	StrategySlidingWindow Strategy = "sliding_window"
	StrategySelective     Strategy = "selective"
)

// Urgency is the compression-urgency gradient the policy reports.
type Urgency string

const (
	UrgencyNone      Urgency = "none"
	UrgencySoft      Urgency = "soft"
	UrgencyHard      Urgency = "hard"
	UrgencyEmergency Urgency = "emergency"
)

// TokenCounts is the (input, output) pair an LLM response reports for a
// single call.
type TokenCounts struct {
	InputTokens  int
	OutputTokens int
}

// UsageStats is the coordinator's running ledger.
type UsageStats struct {
	TotalInputTokens   int
	TotalOutputTokens  int
	CompressionCount   int
	CompressionSavings int
	CompressionCost    int
	TotalCost          float64
}

// NetSavings is tokens actually reclaimed by compression: savings minus
// the cost of the summaries that replaced them. Grounded in
// original_source/memory/manager.py's get_stats(), which reports this as
// a derived field rather than storing it.
func (s UsageStats) NetSavings() int {
	return s.CompressionSavings - s.CompressionCost
}

// CompressionResult is the (transient) output of a single compression
// pass: a summary message plus the tail of messages preserved verbatim.
type CompressionResult struct {
	Summary              message.Message
	PreservedTail        []message.Message
	OriginalMessageCount int
	OriginalTokens       int
	CompressedTokens     int
}

// TokenSavings is the number of tokens the compression removed.
func (r CompressionResult) TokenSavings() int {
	return r.OriginalTokens - r.CompressedTokens
}

// Event is a best-effort notification the coordinator emits; a missing
// subscriber must never affect correctness.
type Event struct {
	Kind      EventKind
	Tokens    int // meaningful for CompressionFinished
	At        time.Time
}

type EventKind string

const (
	EventCompressionStarted  EventKind = "compression_started"
	EventCompressionFinished EventKind = "compression_finished"
	EventSessionSaved        EventKind = "session_saved"
)

// EventHook receives best-effort coordinator notifications.
type EventHook func(Event)

// TodoContextProvider is called by the compressor to obtain the current
// to-do state for inclusion in the summarisation prompt.
type TodoContextProvider func() string
