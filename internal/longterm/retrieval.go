package longterm

import (
	"sort"
	"strings"
)

// Result is one scored retrieval hit.
type Result struct {
	Category Category
	Entry    string
	Score    float64
}

// maxExactScore and maxFuzzyScore cap the two term-overlap components;
// categoryBonus rewards a hit in the category the caller says it cares
// about. Grounded in the teacher's internal/memory/controller.go
// calculateRelevanceScore, whose weighting this mirrors. The original's
// additional recency bonus has no equivalent here: this store's file
// format keeps only consolidated text per spec §6, not per-entry
// timestamps, so there is nothing to decay a bonus from.
const (
	maxExactScore = 40.0
	maxFuzzyScore = 40.0
	categoryBonus = 10.0
)

// DefaultMinScore is used by callers with no particular cutoff in mind:
// it discards only entries with no overlap at all.
const DefaultMinScore = 0.0

// Search scores every entry in mem against query's keywords and returns
// the matches sorted by score descending, most relevant first.
// preferredCategory, if non-empty, receives categoryBonus on its
// entries. minScore is the configurable cutoff spec.md calls for
// ("Results below a configurable minimum score are discarded") — a
// zero-overlap entry is always discarded regardless of minScore. A
// query with no usable keywords returns no results.
func Search(mem Memories, query string, preferredCategory Category, minScore float64, limit int) []Result {
	keywords := tokenize(query)
	if len(keywords) == 0 {
		return nil
	}

	var results []Result
	for _, cat := range Categories {
		for _, entry := range mem[cat] {
			score := scoreEntry(keywords, entry)
			if score <= 0 {
				continue
			}
			if cat == preferredCategory {
				score += categoryBonus
			}
			if score < minScore {
				continue
			}
			results = append(results, Result{Category: cat, Entry: entry, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func scoreEntry(keywords []string, entry string) float64 {
	entryTokens := tokenize(entry)
	if len(entryTokens) == 0 {
		return 0
	}
	entrySet := make(map[string]bool, len(entryTokens))
	for _, t := range entryTokens {
		entrySet[t] = true
	}

	exactHits := 0
	for _, kw := range keywords {
		if entrySet[kw] {
			exactHits++
		}
	}
	exactScore := 0.0
	if len(keywords) > 0 {
		exactScore = maxExactScore * float64(exactHits) / float64(len(keywords))
	}

	fuzzyScore := maxFuzzyScore * tokenSetSimilarity(keywords, entryTokens)

	return exactScore + fuzzyScore
}

// tokenSetSimilarity is a Jaccard similarity over token sets, used as
// the "fuzzy" component so near-matches (different word order, partial
// overlap) still score above zero even when no keyword matches exactly.
func tokenSetSimilarity(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// tokenize lowercases and splits on non-alphanumeric runs, dropping
// anything shorter than 2 characters as noise.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
