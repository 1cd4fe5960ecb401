package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/luohaha/aloop/internal/llm"
	"github.com/luohaha/aloop/internal/message"
)

type fakeLLMClient struct {
	content string
	err     error
}

func (f *fakeLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func fiveMessages() []message.Message {
	return []message.Message{
		{Role: message.RoleUser, Content: "one"},
		{Role: message.RoleAssistant, Content: "two"},
		{Role: message.RoleUser, Content: "three"},
		{Role: message.RoleAssistant, Content: "four"},
		{Role: message.RoleUser, Content: "five"},
	}
}

func TestCompressorFullCompressSlidingWindow(t *testing.T) {
	client := &fakeLLMClient{content: "SUMMARY"}
	tracker := NewTokenTracker()
	c := NewCompressor(client, tracker)

	msgs := fiveMessages()
	result, err := c.Compress(context.Background(), msgs, StrategySlidingWindow, 500, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary.Content != "SUMMARY" {
		t.Errorf("got summary %q", result.Summary.Content)
	}
	if len(result.PreservedTail) != preservedTailSize {
		t.Errorf("got tail length %d, want %d", len(result.PreservedTail), preservedTailSize)
	}
	if result.OriginalMessageCount != 5 {
		t.Errorf("got original count %d", result.OriginalMessageCount)
	}
}

func TestCompressorDeletionYieldsEmptySummary(t *testing.T) {
	client := &fakeLLMClient{content: "should not be called"}
	tracker := NewTokenTracker()
	c := NewCompressor(client, tracker)

	msgs := []message.Message{
		{Role: message.RoleUser, Content: "a"},
		{Role: message.RoleAssistant, Content: "b"},
	}
	result, err := c.Compress(context.Background(), msgs, StrategyDeletion, 500, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary.Content != "" {
		t.Errorf("deletion strategy should yield an empty summary, got %q", result.Summary.Content)
	}
}

func TestCompressorFailurePropagates(t *testing.T) {
	client := &fakeLLMClient{err: errors.New("transport down")}
	tracker := NewTokenTracker()
	c := NewCompressor(client, tracker)

	_, err := c.Compress(context.Background(), fiveMessages(), StrategySlidingWindow, 500, "")
	if err == nil {
		t.Fatal("expected an error when the summariser fails")
	}
}

func TestCompressorNeverSplitsToolPair(t *testing.T) {
	client := &fakeLLMClient{content: "SUMMARY"}
	tracker := NewTokenTracker()
	c := NewCompressor(client, tracker)

	msgs := []message.Message{
		{Role: message.RoleUser, Content: "read /x"},
		{Role: message.RoleAssistant, ToolCalls: []message.ToolCall{{ID: "c1", Type: "function", Function: message.Function{Name: "read_file"}}}},
		{Role: message.RoleTool, ToolCallID: "c1", Content: "contents"},
		{Role: message.RoleAssistant, Content: "done"},
		{Role: message.RoleUser, Content: "thanks"},
	}
	result, err := c.Compress(context.Background(), msgs, StrategySelective, 500, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pairs, _, _ := message.FindToolPairs(result.PreservedTail)
	full, _, _ := message.FindToolPairs(msgs)
	if len(full) == 1 && len(pairs) == 0 {
		// The pair must be entirely inside the tail or entirely summarised;
		// check it isn't split by comparing against the original indices.
		tailStart := len(msgs) - len(result.PreservedTail)
		if full[0].AssistantIdx < tailStart && full[0].ToolResultIdx >= tailStart {
			t.Fatal("tool pair was split across the compression boundary")
		}
	}
}
