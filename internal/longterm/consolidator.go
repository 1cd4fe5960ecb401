package longterm

import (
	"context"
	"fmt"
	"strings"

	"github.com/luohaha/aloop/internal/llm"
	"github.com/luohaha/aloop/internal/message"
	"gopkg.in/yaml.v3"
)

const charsPerToken = 3.5

// byteBudget converts a token budget into the rough byte ceiling the
// original implementation used for deciding when the store has grown
// large enough to consolidate. Kept in its own const rather than folded
// into a method so it reads the same as config.py's constant.
func byteBudget(tokens int) int {
	return int(float64(tokens) * charsPerToken)
}

// ShouldConsolidate reports whether the combined size of mem's entries
// exceeds thresholdTokens worth of characters.
func ShouldConsolidate(mem Memories, thresholdTokens int) bool {
	total := 0
	for _, entries := range mem {
		for _, e := range entries {
			total += len(e)
		}
	}
	return total > byteBudget(thresholdTokens)
}

// Consolidator asks an LLM to rewrite the whole long-term store into a
// more compact form, folding in any newly proposed entries. Grounded in
// original_source/memory/long_term/consolidator.py's consolidate and
// _parse_response.
type Consolidator struct {
	client llm.Client
}

// NewConsolidator returns a consolidator using client for its LLM calls.
func NewConsolidator(client llm.Client) *Consolidator {
	return &Consolidator{client: client}
}

// Consolidate merges proposed into existing and asks the LLM to return a
// condensed replacement for every category. The response is parsed per
// category independently: a category absent from the response is
// hard-replaced with an empty list (the model considered it fully
// subsumed); a category present but not a YAML list is treated as a
// parse failure for that category alone, and existing's entries for it
// are kept unchanged. This asymmetry is deliberate and carried over
// from the original implementation's _parse_response.
func (c *Consolidator) Consolidate(ctx context.Context, existing, proposed Memories) (Memories, error) {
	prompt := buildConsolidationPrompt(existing, proposed)
	resp, err := c.client.Complete(ctx, llm.Request{
		Messages: []message.Message{
			{Role: message.RoleSystem, Content: consolidationSystemPrompt},
			{Role: message.RoleUser, Content: prompt},
		},
		Temperature: 0.2,
		MaxTokens:   1500,
	})
	if err != nil {
		return nil, fmt.Errorf("long-term consolidation: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("long-term consolidation: empty response")
	}

	return parseConsolidationResponse(resp.Content, existing), nil
}

const consolidationSystemPrompt = `You maintain a long-lived knowledge base about a user, organized into three categories: decisions, preferences, and facts. You will be given the current contents of each category plus newly observed candidate entries. Return a YAML document with exactly the keys decisions, preferences, and facts, each a list of strings, representing the complete and consolidated contents of that category after merging, deduplicating, and condensing. Omit a key only if that category should become empty.`

func buildConsolidationPrompt(existing, proposed Memories) string {
	var b strings.Builder
	b.WriteString("Current knowledge base:\n")
	for _, cat := range Categories {
		fmt.Fprintf(&b, "%s:\n", cat)
		for _, e := range existing[cat] {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	b.WriteString("\nNewly observed candidates:\n")
	for _, cat := range Categories {
		fmt.Fprintf(&b, "%s:\n", cat)
		for _, e := range proposed[cat] {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}

// parseConsolidationResponse implements the precise hard-replace /
// fallback-to-existing rule: a missing key becomes [], a present
// non-list value falls back to existing's entries for that category.
// A response that is not a YAML mapping, or that has any key other than
// a known category, leaves the whole store unchanged.
func parseConsolidationResponse(raw string, existing Memories) Memories {
	var parsed map[string]interface{}
	if err := yaml.Unmarshal([]byte(raw), &parsed); err != nil {
		logWarn("consolidation response is not valid YAML, keeping existing store unchanged: %v", err)
		return existing.Clone()
	}
	if parsed == nil {
		logWarn("consolidation response is not a YAML mapping, keeping existing store unchanged")
		return existing.Clone()
	}
	for key := range parsed {
		if _, known := Empty()[Category(key)]; !known {
			logWarn("consolidation response has unknown key %q, keeping existing store unchanged", key)
			return existing.Clone()
		}
	}

	out := make(Memories, len(Categories))
	for _, cat := range Categories {
		val, present := parsed[string(cat)]
		if !present {
			out[cat] = nil
			continue
		}
		list, ok := asStringList(val)
		if !ok {
			logWarn("consolidation response category %s is not a list, keeping its existing entries", cat)
			out[cat] = append([]string(nil), existing[cat]...)
			continue
		}
		out[cat] = list
	}
	return out
}

func asStringList(v interface{}) ([]string, bool) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
