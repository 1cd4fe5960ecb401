package memory

import "github.com/luohaha/aloop/internal/message"

// Policy decides compression urgency, strategy, and the safe split point
// for a partial compression (C4). Grounded in
// original_source/memory/manager.py's _get_compression_urgency,
// _select_strategy, and _find_safe_split_point.
type Policy struct {
	enabled            bool
	hardThreshold      int
	softThresholdRatio float64
}

// NewPolicy builds a policy from the resolved configuration knobs.
func NewPolicy(enabled bool, hardThreshold int, softThresholdRatio float64) *Policy {
	return &Policy{
		enabled:            enabled,
		hardThreshold:      hardThreshold,
		softThresholdRatio: softThresholdRatio,
	}
}

// Urgency reports none/soft/hard/emergency given the current context
// size and whether the buffer has reached its emergency cap.
func (p *Policy) Urgency(currentTokens int, bufferFull bool) Urgency {
	if !p.enabled {
		return UrgencyNone
	}
	if bufferFull {
		return UrgencyEmergency
	}
	if currentTokens > p.hardThreshold {
		return UrgencyHard
	}
	soft := float64(p.hardThreshold) * p.softThresholdRatio
	if float64(currentTokens) > soft {
		return UrgencySoft
	}
	return UrgencyNone
}

// SelectStrategy picks the compression strategy for a message range: any
// tool call or tool result forces selective (so tool context is
// preserved deliberately); otherwise few messages are just deleted, and
// everything else slides.
func SelectStrategy(msgs []message.Message) Strategy {
	for _, m := range msgs {
		if m.HasToolCalls() || m.IsToolResult() {
			return StrategySelective
		}
	}
	if len(msgs) < 5 {
		return StrategyDeletion
	}
	return StrategySlidingWindow
}

// SafeSplitPoint returns the largest index k <= len(msgs)/2 such that no
// assistant/tool-result pair straddles k. Returns 0 if no such k > 0
// exists, signalling the caller should fall through to full compression.
func SafeSplitPoint(msgs []message.Message) int {
	target := len(msgs) / 2
	if target <= 0 {
		return 0
	}
	pairs, _, _ := message.FindToolPairs(msgs)
	for k := target; k >= 1; k-- {
		if !message.SplitStraddlesPair(pairs, k) {
			return k
		}
	}
	return 0
}

// TargetTokens computes the post-compression token target: current
// tokens scaled by ratio, floored at 500 per
// original_source/memory/manager.py's _calculate_target_tokens.
func TargetTokens(currentTokens int, ratio float64) int {
	target := int(float64(currentTokens) * ratio)
	if target < 500 {
		target = 500
	}
	return target
}
