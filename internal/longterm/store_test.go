package longterm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func hasGit(t *testing.T) bool {
	t.Helper()
	_, err := os.Stat("/usr/bin/git")
	if err == nil {
		return true
	}
	// Fall back to checking a few other common locations rather than
	// shelling out to `which`, keeping this check dependency-free.
	for _, p := range []string{"/usr/local/bin/git", "/bin/git"} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if !hasGit(t) {
		t.Skip("git binary not available")
	}
	return NewStore(t.TempDir())
}

func TestLoadAllOnEmptyDirReturnsEmptyCategories(t *testing.T) {
	s := newTestStore(t)
	mem, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, cat := range Categories {
		if len(mem[cat]) != 0 {
			t.Fatalf("expected category %s empty, got %v", cat, mem[cat])
		}
	}
}

func TestSaveAndCommitThenLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mem := Empty()
	mem[CategoryDecisions] = []string{"uses go 1.24"}
	mem[CategoryFacts] = []string{"prefers yaml over json for config"}

	if err := s.SaveAndCommit(ctx, mem, "initial memories"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loaded[CategoryDecisions]) != 1 || loaded[CategoryDecisions][0] != "uses go 1.24" {
		t.Fatalf("got %v", loaded[CategoryDecisions])
	}
	if len(loaded[CategoryFacts]) != 1 {
		t.Fatalf("got %v", loaded[CategoryFacts])
	}
}

func TestSaveAndCommitSkipsEmptyCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mem := Empty()
	mem[CategoryPreferences] = []string{"terse commit messages"}
	if err := s.SaveAndCommit(ctx, mem, "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	headAfterFirst, _ := s.head(ctx)

	// Saving the identical content again should not create a new commit.
	if err := s.SaveAndCommit(ctx, mem, "second"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	headAfterSecond, _ := s.head(ctx)

	if headAfterFirst != headAfterSecond {
		t.Fatalf("expected no new commit for unchanged content, head moved from %s to %s", headAfterFirst, headAfterSecond)
	}
}

func TestHasChangedSinceLoadDetectsExternalCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mem := Empty()
	mem[CategoryFacts] = []string{"initial fact"}
	if err := s.SaveAndCommit(ctx, mem, "seed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.LoadAll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changed, err := s.HasChangedSinceLoad(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatal("expected no change immediately after load")
	}

	// Simulate an external process committing directly.
	if err := os.WriteFile(filepath.Join(s.dir, categoryFileName(CategoryFacts)), []byte("- external fact\n"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.runGit(ctx, "add", "-A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.runGit(ctx, "commit", "-m", "external"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changed, err = s.HasChangedSinceLoad(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected external commit to be detected")
	}
}

func TestLoadAllTreatsMalformedCategoryFileAsEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.ensureRepo(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(s.categoryPath(CategoryDecisions), []byte(":::not yaml:::"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mem, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("expected malformed file to be tolerated, got error: %v", err)
	}
	if len(mem[CategoryDecisions]) != 0 {
		t.Fatalf("expected empty decisions, got %v", mem[CategoryDecisions])
	}
}
