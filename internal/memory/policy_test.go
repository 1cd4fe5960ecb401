package memory

import (
	"testing"

	"github.com/luohaha/aloop/internal/message"
)

func TestUrgencyDisabledAlwaysNone(t *testing.T) {
	p := NewPolicy(false, 1000, 0.5)
	if got := p.Urgency(1000000, true); got != UrgencyNone {
		t.Fatalf("got %s", got)
	}
}

func TestUrgencyBufferFullIsEmergencyRegardlessOfTokens(t *testing.T) {
	p := NewPolicy(true, 1000, 0.5)
	if got := p.Urgency(1, true); got != UrgencyEmergency {
		t.Fatalf("got %s", got)
	}
}

func TestUrgencyGradient(t *testing.T) {
	p := NewPolicy(true, 1000, 0.5)

	if got := p.Urgency(400, false); got != UrgencyNone {
		t.Fatalf("got %s for below soft threshold", got)
	}
	if got := p.Urgency(600, false); got != UrgencySoft {
		t.Fatalf("got %s for above soft threshold", got)
	}
	if got := p.Urgency(1001, false); got != UrgencyHard {
		t.Fatalf("got %s for above hard threshold", got)
	}
}

func TestSelectStrategyPrefersSelectiveWhenToolCallsPresent(t *testing.T) {
	msgs := []message.Message{
		{Role: message.RoleUser, Content: "do it"},
		{Role: message.RoleAssistant, ToolCalls: []message.ToolCall{{ID: "1", Function: message.Function{Name: "f"}}}},
		{Role: message.RoleTool, ToolCallID: "1", Content: "result"},
	}
	if got := SelectStrategy(msgs); got != StrategySelective {
		t.Fatalf("got %s", got)
	}
}

func TestSelectStrategyShortRunIsDeletion(t *testing.T) {
	msgs := []message.Message{
		{Role: message.RoleUser, Content: "hi"},
		{Role: message.RoleAssistant, Content: "hello"},
	}
	if got := SelectStrategy(msgs); got != StrategyDeletion {
		t.Fatalf("got %s", got)
	}
}

func TestSelectStrategyLongRunIsSlidingWindow(t *testing.T) {
	var msgs []message.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, message.Message{Role: message.RoleUser, Content: "x"})
	}
	if got := SelectStrategy(msgs); got != StrategySlidingWindow {
		t.Fatalf("got %s", got)
	}
}

func TestSafeSplitPointAvoidsStraddlingPair(t *testing.T) {
	msgs := []message.Message{
		{Role: message.RoleUser, Content: "1"},
		{Role: message.RoleAssistant, ToolCalls: []message.ToolCall{{ID: "a", Function: message.Function{Name: "f"}}}},
		{Role: message.RoleTool, ToolCallID: "a", Content: "result"},
		{Role: message.RoleUser, Content: "2"},
	}
	split := SafeSplitPoint(msgs)
	pairs, _, _ := message.FindToolPairs(msgs)
	if split > 0 && message.SplitStraddlesPair(pairs, split) {
		t.Fatalf("split point %d straddles a tool pair", split)
	}
}

func TestTargetTokensFloorsAt500(t *testing.T) {
	if got := TargetTokens(100, 0.3); got != 500 {
		t.Fatalf("got %d", got)
	}
	if got := TargetTokens(10000, 0.3); got != 3000 {
		t.Fatalf("got %d", got)
	}
}
