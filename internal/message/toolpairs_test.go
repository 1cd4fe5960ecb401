package message

import "testing"

func toolMsg(id string) Message {
	return Message{Role: RoleTool, ToolCallID: id, Content: "ok"}
}

func assistantMsg(ids ...string) Message {
	m := Message{Role: RoleAssistant, Content: "working"}
	for _, id := range ids {
		m.ToolCalls = append(m.ToolCalls, ToolCall{ID: id, Type: "function", Function: Function{Name: "read_file"}})
	}
	return m
}

func TestFindToolPairs(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "read /x"},
		assistantMsg("c1"),
		toolMsg("c1"),
		{Role: RoleAssistant, Content: "done"},
	}

	pairs, orphanCalls, orphanResults := FindToolPairs(msgs)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].AssistantIdx != 1 || pairs[0].ToolResultIdx != 2 {
		t.Fatalf("unexpected pair indices: %+v", pairs[0])
	}
	if len(orphanCalls) != 0 || len(orphanResults) != 0 {
		t.Fatalf("expected no orphans, got calls=%v results=%v", orphanCalls, orphanResults)
	}
}

func TestFindToolPairsOrphans(t *testing.T) {
	msgs := []Message{
		assistantMsg("c1", "c2"),
		toolMsg("c1"),
		toolMsg("stray"),
	}

	pairs, orphanCalls, orphanResults := FindToolPairs(msgs)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if len(orphanCalls) != 1 || orphanCalls[0] != "c2" {
		t.Fatalf("expected orphaned call c2, got %v", orphanCalls)
	}
	if len(orphanResults) != 1 || orphanResults[0] != 2 {
		t.Fatalf("expected orphaned result at index 2, got %v", orphanResults)
	}
}

func TestSplitStraddlesPair(t *testing.T) {
	pairs := []ToolPair{{CallID: "c1", AssistantIdx: 1, ToolResultIdx: 3}}

	if !SplitStraddlesPair(pairs, 2) {
		t.Fatal("expected split at 2 to straddle the pair spanning 1..3")
	}
	if SplitStraddlesPair(pairs, 1) {
		t.Fatal("split at 1 should not straddle (both indices >= 1)")
	}
	if SplitStraddlesPair(pairs, 4) {
		t.Fatal("split at 4 should not straddle (both indices < 4)")
	}
}

func TestExtendTailToSafeSplit(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "q"},
		assistantMsg("c1"),
		toolMsg("c1"),
		{Role: RoleAssistant, Content: "done"},
	}

	// Candidate tail-start of 2 would split the c1 pair (indices 1,2).
	safe := ExtendTailToSafeSplit(msgs, 2)
	if safe != 1 {
		t.Fatalf("expected safe split to retreat to 1, got %d", safe)
	}
}
