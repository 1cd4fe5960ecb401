package message

// ToolPair links an assistant message's tool call to the tool-role message
// that answers it, both identified by their index in the slice they were
// found in.
type ToolPair struct {
	CallID        string
	AssistantIdx  int
	ToolResultIdx int
}

// FindToolPairs scans msgs and pairs every assistant tool_call with the
// tool-role message carrying a matching ToolCallID. Tool calls with no
// answering tool message, and tool messages with no matching call, are
// reported as orphans.
func FindToolPairs(msgs []Message) (pairs []ToolPair, orphanedCalls []string, orphanedResults []int) {
	pending := make(map[string]int) // call id -> assistant message index

	for i, m := range msgs {
		if m.Role == RoleAssistant && m.HasToolCalls() {
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = i
			}
		}
		if m.Role == RoleTool && m.ToolCallID != "" {
			if assistantIdx, ok := pending[m.ToolCallID]; ok {
				pairs = append(pairs, ToolPair{
					CallID:        m.ToolCallID,
					AssistantIdx:  assistantIdx,
					ToolResultIdx: i,
				})
				delete(pending, m.ToolCallID)
			} else {
				orphanedResults = append(orphanedResults, i)
			}
		}
	}

	for id := range pending {
		orphanedCalls = append(orphanedCalls, id)
	}
	return pairs, orphanedCalls, orphanedResults
}

// SplitStraddlesPair reports whether splitting msgs at index k (messages
// [0,k) on one side, [k,len) on the other) would separate an assistant
// tool_call from its answering tool message.
func SplitStraddlesPair(pairs []ToolPair, k int) bool {
	for _, p := range pairs {
		lo, hi := p.AssistantIdx, p.ToolResultIdx
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo < k && k <= hi {
			return true
		}
	}
	return false
}

// ExtendTailToSafeSplit grows a candidate tail-start index backward until
// no tool pair straddles it, so that a fixed-size "keep the last P
// messages" tail never separates a tool call from its result.
func ExtendTailToSafeSplit(msgs []Message, start int) int {
	pairs, _, _ := FindToolPairs(msgs)
	for start > 0 && SplitStraddlesPair(pairs, start) {
		start--
	}
	return start
}
