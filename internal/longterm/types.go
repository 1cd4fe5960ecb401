// Package longterm implements the category-partitioned, cross-session
// knowledge base (C7): one YAML file per category, backed by a local git
// repository for external-mutation detection, with LLM-driven
// consolidation when the store grows past a byte budget and keyword-only
// retrieval for agent tools. Grounded in
// original_source/memory/long_term/store.go (git mechanics) and
// original_source/memory/long_term/consolidator.go (consolidation
// prompt and hard-replace semantics); the teacher's
// internal/memory/long_term.go and controller.go contributed the Go
// idiom for per-category indexing and keyword scoring respectively, but
// neither is the per-category YAML store this package implements.
package longterm

// Category is one of the closed set of long-term knowledge partitions.
type Category string

const (
	CategoryDecisions   Category = "decisions"
	CategoryPreferences Category = "preferences"
	CategoryFacts       Category = "facts"
)

// Categories lists every known category, in a stable order used for
// file layout and consolidation prompts.
var Categories = []Category{CategoryDecisions, CategoryPreferences, CategoryFacts}

// Memories is the in-memory form of the whole store: each category maps
// to its ordered list of entries.
type Memories map[Category][]string

// Clone returns an independent copy of m.
func (m Memories) Clone() Memories {
	out := make(Memories, len(m))
	for cat, entries := range m {
		out[cat] = append([]string(nil), entries...)
	}
	return out
}

// Empty returns a Memories value with every known category present and
// empty, matching "missing file == []" semantics.
func Empty() Memories {
	m := make(Memories, len(Categories))
	for _, cat := range Categories {
		m[cat] = nil
	}
	return m
}
