package longterm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// categoryFileName returns the on-disk file for a category, e.g.
// "decisions.yaml".
func categoryFileName(cat Category) string {
	return string(cat) + ".yaml"
}

// Store is a git-backed directory holding one YAML file per category.
// Every mutation is staged and committed so that external edits (a user
// hand-editing a file, another process writing concurrently) are
// detectable via HasChangedSinceLoad. Grounded in
// original_source/memory/long_term/store.py's GitMemoryStore, using the
// exec.CommandContext(ctx, "git", ...) idiom from
// HelixDevelopment-HelixCode's internal/workflow/snapshots/snapshot.go.
type Store struct {
	dir        string
	loadedHead string
	haveLoaded bool
}

// NewStore returns a store rooted at dir (default ~/.aloop/memory). The
// directory and its git repository are created lazily, on first use.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) categoryPath(cat Category) string {
	return filepath.Join(s.dir, categoryFileName(cat))
}

func (s *Store) runGit(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", s.dir}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// ensureRepo creates dir and initialises a git repository in it if one
// does not already exist. Safe to call repeatedly.
func (s *Store) ensureRepo(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("long-term store: create dir: %w", err)
	}
	if _, err := os.Stat(filepath.Join(s.dir, ".git")); err == nil {
		return nil
	}
	if out, err := s.runGit(ctx, "init"); err != nil {
		return fmt.Errorf("long-term store: git init: %s: %w", out, err)
	}
	if out, err := s.runGit(ctx, "config", "user.email", "aloop@localhost"); err != nil {
		return fmt.Errorf("long-term store: git config email: %s: %w", out, err)
	}
	if out, err := s.runGit(ctx, "config", "user.name", "aloop"); err != nil {
		return fmt.Errorf("long-term store: git config name: %s: %w", out, err)
	}
	return nil
}

// head returns the current commit hash, or "" if the repository has no
// commits yet.
func (s *Store) head(ctx context.Context) (string, error) {
	out, err := s.runGit(ctx, "rev-parse", "HEAD")
	if err != nil {
		// No commits yet is not an error condition for our purposes.
		return "", nil
	}
	return trimNewline(out), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// LoadAll reads every category file, treating a missing or malformed
// file as an empty list (never an error) and logging the latter. It
// records the current HEAD so a later HasChangedSinceLoad call can
// detect external mutation.
func (s *Store) LoadAll(ctx context.Context) (Memories, error) {
	if err := s.ensureRepo(ctx); err != nil {
		return nil, err
	}

	mem := Empty()
	for _, cat := range Categories {
		entries, err := s.loadCategory(cat)
		if err != nil {
			logWarn("long-term category %s: malformed, treating as empty: %v", cat, err)
			entries = nil
		}
		mem[cat] = entries
	}

	head, err := s.head(ctx)
	if err != nil {
		return nil, err
	}
	s.loadedHead = head
	s.haveLoaded = true
	return mem, nil
}

func (s *Store) loadCategory(cat Category) ([]string, error) {
	data, err := os.ReadFile(s.categoryPath(cat))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// HasChangedSinceLoad reports whether HEAD has moved since the last
// LoadAll call, meaning another process committed to this store in the
// meantime. Returns false before any LoadAll has run.
func (s *Store) HasChangedSinceLoad(ctx context.Context) (bool, error) {
	if !s.haveLoaded {
		return false, nil
	}
	head, err := s.head(ctx)
	if err != nil {
		return false, err
	}
	return head != s.loadedHead, nil
}

// LoadedHead returns the HEAD snapshot recorded by the last LoadAll (or
// the last successful commit), for a caller that wants to pass it back
// into SaveAndCommitIfUnchanged.
func (s *Store) LoadedHead() string {
	return s.loadedHead
}

// SaveAndCommit writes every category file and commits the result with
// message, skipping the commit entirely if nothing actually changed
// (git diff --cached --quiet reports no staged changes). It refreshes
// loadedHead on success so a subsequent HasChangedSinceLoad reflects our
// own write, not an external one.
func (s *Store) SaveAndCommit(ctx context.Context, mem Memories, message string) error {
	if err := s.ensureRepo(ctx); err != nil {
		return err
	}

	for _, cat := range Categories {
		data, err := yaml.Marshal(mem[cat])
		if err != nil {
			return fmt.Errorf("long-term store: marshal %s: %w", cat, err)
		}
		if err := os.WriteFile(s.categoryPath(cat), data, 0644); err != nil {
			return fmt.Errorf("long-term store: write %s: %w", cat, err)
		}
	}

	if out, err := s.runGit(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("long-term store: git add: %s: %w", out, err)
	}

	// `git diff --cached --quiet` exits 0 when there is nothing staged;
	// a non-zero *with no execution error* means there are changes.
	_, diffErr := s.runGit(ctx, "diff", "--cached", "--quiet")
	if diffErr == nil {
		// Nothing to commit; still refresh the recorded head.
		head, err := s.head(ctx)
		if err != nil {
			return err
		}
		s.loadedHead = head
		s.haveLoaded = true
		return nil
	}
	if _, ok := diffErr.(*exec.ExitError); !ok {
		return fmt.Errorf("long-term store: git diff: %w", diffErr)
	}

	if out, err := s.runGit(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("long-term store: git commit: %s: %w", out, err)
	}

	head, err := s.head(ctx)
	if err != nil {
		return err
	}
	s.loadedHead = head
	s.haveLoaded = true
	return nil
}

// SaveAndCommitIfUnchanged is SaveAndCommit guarded by an optimistic
// concurrency check: it re-reads HEAD immediately before writing and
// returns ErrExternalMutation, without touching any file, if it no
// longer matches expectedHead. This closes the narrow race between a
// caller's own HasChangedSinceLoad check and its write; the caller is
// expected to LoadAll again and retry, per spec.md's "on detected
// change, the consolidator must re-read before writing."
func (s *Store) SaveAndCommitIfUnchanged(ctx context.Context, expectedHead string, mem Memories, message string) error {
	if err := s.ensureRepo(ctx); err != nil {
		return err
	}
	head, err := s.head(ctx)
	if err != nil {
		return err
	}
	if head != expectedHead {
		return ErrExternalMutation
	}
	return s.SaveAndCommit(ctx, mem, message)
}
