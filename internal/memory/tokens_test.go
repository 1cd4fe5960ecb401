package memory

import (
	"testing"

	"github.com/luohaha/aloop/internal/message"
)

func TestEstimateIsDeterministic(t *testing.T) {
	tr := NewTokenTracker()
	m := message.Message{Role: message.RoleUser, Content: "hello world"}

	a := tr.Estimate(m)
	b := tr.Estimate(m)
	if a != b {
		t.Fatalf("expected deterministic estimate, got %d then %d", a, b)
	}
	if a <= 0 {
		t.Fatalf("expected positive estimate, got %d", a)
	}
}

func TestEstimateAccountsForToolCalls(t *testing.T) {
	tr := NewTokenTracker()
	plain := message.Message{Role: message.RoleAssistant, Content: "ok"}
	withCall := message.Message{
		Role:    message.RoleAssistant,
		Content: "ok",
		ToolCalls: []message.ToolCall{
			{ID: "1", Type: "function", Function: message.Function{Name: "search", Arguments: `{"q":"go"}`}},
		},
	}

	if tr.Estimate(withCall) <= tr.Estimate(plain) {
		t.Fatal("expected tool call overhead to increase the estimate")
	}
}

func TestEstimateAllSumsMessages(t *testing.T) {
	tr := NewTokenTracker()
	msgs := []message.Message{
		{Role: message.RoleUser, Content: "one"},
		{Role: message.RoleAssistant, Content: "two"},
	}
	sum := tr.EstimateAll(msgs)
	want := tr.Estimate(msgs[0]) + tr.Estimate(msgs[1])
	if sum != want {
		t.Fatalf("got %d, want %d", sum, want)
	}
}

func TestRecordAPIUsageAccumulates(t *testing.T) {
	tr := NewTokenTracker()
	tr.RecordAPIUsage(100, 20)
	tr.RecordAPIUsage(50, 10)

	stats := tr.Stats()
	if stats.TotalInputTokens != 150 || stats.TotalOutputTokens != 30 {
		t.Fatalf("got %+v", stats)
	}
}

func TestRecordCompressionUpdatesLedger(t *testing.T) {
	tr := NewTokenTracker()
	tr.RecordCompression(CompressionResult{OriginalTokens: 1000, CompressedTokens: 200})

	stats := tr.Stats()
	if stats.CompressionCount != 1 {
		t.Fatalf("got %d", stats.CompressionCount)
	}
	if stats.CompressionSavings != 800 {
		t.Fatalf("got %d", stats.CompressionSavings)
	}
	if stats.CompressionCost != 200 {
		t.Fatalf("got %d", stats.CompressionCost)
	}
}
