package memory

import "github.com/luohaha/aloop/internal/message"

// Accountant reconciles locally estimated token counts with API-reported
// totals to compute the current context size (C3). The API's
// input_tokens is authoritative whenever it is known; local estimates
// only cover the delta since the last API call.
type Accountant struct {
	tracker *TokenTracker

	lastAPIContextTokens *int // nil means "not grounded"
	estimatedDeltaTokens int
}

// NewAccountant returns an ungrounded accountant backed by tracker.
func NewAccountant(tracker *TokenTracker) *Accountant {
	return &Accountant{tracker: tracker}
}

// AddMessage folds one message into the accountant's running estimate.
// If actualTokens is non-nil, it grounds the accountant against the
// API's report and resets the delta; otherwise it adds the message's
// estimated size to the delta.
func (a *Accountant) AddMessage(m message.Message, actualTokens *TokenCounts) {
	if actualTokens != nil {
		total := actualTokens.InputTokens + actualTokens.OutputTokens
		a.lastAPIContextTokens = &total
		a.estimatedDeltaTokens = 0
		a.tracker.RecordAPIUsage(actualTokens.InputTokens, actualTokens.OutputTokens)
		return
	}
	a.estimatedDeltaTokens += a.tracker.Estimate(m)
}

// CurrentContextTokens returns x + estimatedDeltaTokens if the accountant
// is grounded by a prior API response, otherwise a full re-estimation
// over systemMessages + buffer.
func (a *Accountant) CurrentContextTokens(systemMessages, buffer []message.Message) int {
	if a.lastAPIContextTokens != nil {
		return *a.lastAPIContextTokens + a.estimatedDeltaTokens
	}
	return a.tracker.EstimateAll(systemMessages) + a.tracker.EstimateAll(buffer)
}

// ResetGrounding clears the API-grounded counters after a compression,
// forcing the next CurrentContextTokens call to fully re-estimate.
func (a *Accountant) ResetGrounding() {
	a.lastAPIContextTokens = nil
	a.estimatedDeltaTokens = 0
}
