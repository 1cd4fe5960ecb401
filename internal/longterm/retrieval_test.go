package longterm

import "testing"

func TestSearchRanksExactKeywordMatchHighest(t *testing.T) {
	mem := Empty()
	mem[CategoryPreferences] = []string{
		"prefers tabs over spaces in go code",
		"likes dark mode editors",
	}

	results := Search(mem, "tabs spaces go", "", DefaultMinScore, 10)
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Entry != "prefers tabs over spaces in go code" {
		t.Fatalf("expected exact match first, got %q", results[0].Entry)
	}
}

func TestSearchAppliesCategoryBonus(t *testing.T) {
	mem := Empty()
	mem[CategoryDecisions] = []string{"chose postgres for storage"}
	mem[CategoryFacts] = []string{"chose postgres for storage"}

	results := Search(mem, "postgres storage", CategoryDecisions, DefaultMinScore, 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Category != CategoryDecisions {
		t.Fatalf("expected decisions category to rank first due to bonus, got %s", results[0].Category)
	}
}

func TestSearchEmptyQueryReturnsNoResults(t *testing.T) {
	mem := Empty()
	mem[CategoryFacts] = []string{"something"}
	if got := Search(mem, "", "", DefaultMinScore, 10); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	mem := Empty()
	mem[CategoryFacts] = []string{"alpha beta", "alpha gamma", "alpha delta"}
	results := Search(mem, "alpha", "", DefaultMinScore, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestSearchNoMatchReturnsEmpty(t *testing.T) {
	mem := Empty()
	mem[CategoryFacts] = []string{"completely unrelated entry"}
	results := Search(mem, "zzz qqq", "", DefaultMinScore, 10)
	if len(results) != 0 {
		t.Fatalf("expected no results, got %v", results)
	}
}

func TestSearchDiscardsBelowConfiguredMinScore(t *testing.T) {
	mem := Empty()
	mem[CategoryFacts] = []string{
		"prefers tabs over spaces in go code",
		"likes dark mode editors for reading code",
	}

	all := Search(mem, "tabs spaces go code", "", DefaultMinScore, 10)
	if len(all) != 2 {
		t.Fatalf("expected both entries to match with no floor, got %d", len(all))
	}

	strict := Search(mem, "tabs spaces go code", "", 50, 10)
	if len(strict) != 1 {
		t.Fatalf("expected only the strong match to survive a 50-point floor, got %d: %v", len(strict), strict)
	}
	if strict[0].Entry != "prefers tabs over spaces in go code" {
		t.Fatalf("expected the exact match to survive, got %q", strict[0].Entry)
	}
}
