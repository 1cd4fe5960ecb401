package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/luohaha/aloop/internal/llm"
	"github.com/luohaha/aloop/internal/message"
)

// preservedTailSize is P, the default number of trailing messages a full
// compression keeps verbatim. Spec §9 leaves this tunable but never
// allowing a tail that straddles a tool pair.
const preservedTailSize = 4

// promptTruncateChars bounds how much conversation text is embedded in
// the summarisation prompt, matching the teacher's
// buildSummaryInput truncation in internal/context/message/compressor.go.
const promptTruncateChars = 4000

// Compressor produces an LLM-generated summary of a message range,
// preserving tool pairs and a recent tail (C5). Grounded in the
// teacher's internal/context/message/compressor.go — the tool-pairing
// walk, the system/summary/tail assembly, and the LLM-prompt shape are
// carried over; the strategy dispatch and splice contract are rebuilt to
// match spec §4.5 exactly.
type Compressor struct {
	client  llm.Client
	tracker *TokenTracker
}

// NewCompressor builds a Compressor around the given LLM client and
// token tracker (for before/after token accounting).
func NewCompressor(client llm.Client, tracker *TokenTracker) *Compressor {
	return &Compressor{client: client, tracker: tracker}
}

// Compress runs a full compression over msgs (the entire buffer at call
// time): it keeps the last P messages verbatim (extended backward to
// respect tool pairs) and summarises the rest via the LLM, dispatching
// on strategy. todoContext is embedded in the prompt verbatim; an empty
// string omits that section.
func (c *Compressor) Compress(ctx context.Context, msgs []message.Message, strategy Strategy, targetTokens int, todoContext string) (CompressionResult, error) {
	return c.compress(ctx, msgs, strategy, targetTokens, todoContext, preservedTailSize)
}

// CompressPartial runs a soft-urgency compression over msgs[:split] only;
// callers pass the untouched msgs[split:] back into the buffer as the
// tail themselves, so the preserved tail here is empty (P=0).
func (c *Compressor) CompressPartial(ctx context.Context, msgs []message.Message, strategy Strategy, targetTokens int, todoContext string) (CompressionResult, error) {
	return c.compress(ctx, msgs, strategy, targetTokens, todoContext, 0)
}

func (c *Compressor) compress(ctx context.Context, msgs []message.Message, strategy Strategy, targetTokens int, todoContext string, wantTail int) (CompressionResult, error) {
	originalCount := len(msgs)
	originalTokens := c.tracker.EstimateAll(msgs)

	tailStart := len(msgs) - wantTail
	if tailStart < 0 {
		tailStart = 0
	}
	tailStart = message.ExtendTailToSafeSplit(msgs, tailStart)

	prefix := msgs[:tailStart]
	tail := message.CloneAll(msgs[tailStart:])

	if strategy == StrategyDeletion {
		return CompressionResult{
			Summary:              message.Message{Role: message.RoleAssistant, Content: ""},
			PreservedTail:        tail,
			OriginalMessageCount: originalCount,
			OriginalTokens:       originalTokens,
			CompressedTokens:     c.tracker.EstimateAll(tail),
		}, nil
	}

	_, orphanedCalls, orphanedResults := message.FindToolPairs(prefix)
	summaryText, err := c.summarise(ctx, prefix, tail, strategy, todoContext, orphanedCalls, orphanedResults)
	if err != nil {
		return CompressionResult{}, fmt.Errorf("compress: summarise failed: %w", err)
	}
	if strings.TrimSpace(summaryText) == "" {
		return CompressionResult{}, fmt.Errorf("compress: summariser returned an empty summary")
	}

	summary := message.Message{Role: message.RoleAssistant, Content: summaryText}
	compressedTokens := c.tracker.Estimate(summary) + c.tracker.EstimateAll(tail)

	return CompressionResult{
		Summary:              summary,
		PreservedTail:        tail,
		OriginalMessageCount: originalCount,
		OriginalTokens:       originalTokens,
		CompressedTokens:     compressedTokens,
	}, nil
}

func (c *Compressor) summarise(ctx context.Context, prefix, tail []message.Message, strategy Strategy, todoContext string, orphanedCalls []string, orphanedResults []int) (string, error) {
	if len(prefix) == 0 {
		return "", nil
	}

	systemPrompt := buildSystemPrompt(strategy)
	userPrompt := buildUserPrompt(prefix, todoContext, orphanedCalls, tail, orphanedResults)

	req := llm.Request{
		Messages: []message.Message{
			{Role: message.RoleSystem, Content: systemPrompt},
			{Role: message.RoleUser, Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("summarise: nil response")
	}
	return strings.TrimSpace(resp.Content), nil
}

func buildSystemPrompt(strategy Strategy) string {
	switch strategy {
	case StrategySelective:
		return "You compress AI agent conversation history into a dense summary. " +
			"Preserve decisions, file paths, tool arguments, and explicit user directives " +
			"verbatim where possible. Omit small talk and resolved intermediate steps."
	default:
		return "You compress AI agent conversation history into a dense summary. " +
			"Capture what was accomplished, any pending work, and facts needed to continue."
	}
}

func buildUserPrompt(prefix []message.Message, todoContext string, orphanedCalls []string, tail []message.Message, orphanedResults []int) string {
	var b strings.Builder

	b.WriteString("Summarise the following conversation segment:\n\n")
	b.WriteString(truncate(formatMessages(prefix), promptTruncateChars))

	if todoContext != "" {
		b.WriteString("\n\nCurrent to-do state:\n")
		b.WriteString(todoContext)
	}

	if len(orphanedCalls) > 0 {
		b.WriteString("\n\nThe following tool call ids have no response in this segment " +
			"and may be answered later in the preserved tail; refer to them by id if relevant: ")
		b.WriteString(strings.Join(orphanedCalls, ", "))
	}

	if len(orphanedResults) > 0 {
		b.WriteString("\n\nNote: a tool result in this segment answers a call made before it; " +
			"preserve that identity in the summary rather than inventing a new one.")
	}

	return b.String()
}

func formatMessages(msgs []message.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s", m.Role, m.Content)
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&b, " (tool_call %s: %s(%s))", tc.ID, tc.Function.Name, tc.Function.Arguments)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}
