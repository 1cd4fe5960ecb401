package longterm

import (
	"context"
	"errors"
	"fmt"
)

// Manager is the orchestration layer tying Store and Consolidator
// together the way original_source/memory/manager.py drives its
// long-term store: load once, accumulate proposed entries as the agent
// observes them, and consolidate only once the store has grown past its
// byte budget. Kept separate from memory.Coordinator (C1-C6/C8), which
// owns only the working buffer; this manager is the thing an agent's
// tool layer talks to for "remember this" / "what do we know" calls.
type Manager struct {
	store           *Store
	consolidator    *Consolidator
	thresholdTokens int

	current Memories
	loaded  bool
}

// NewManager wires a store and consolidator with the configured
// consolidation threshold (spec's LONG_TERM_MEMORY_CONSOLIDATION_THRESHOLD).
func NewManager(store *Store, consolidator *Consolidator, thresholdTokens int) *Manager {
	return &Manager{store: store, consolidator: consolidator, thresholdTokens: thresholdTokens}
}

// Load reads the current store contents, tolerating malformed category
// files per Store.LoadAll's contract.
func (m *Manager) Load(ctx context.Context) error {
	mem, err := m.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("long-term manager: load: %w", err)
	}
	m.current = mem
	m.loaded = true
	return nil
}

// reloadIfChanged re-reads the store when another process (or a user
// hand-editing a category file) has committed since our last load, per
// spec.md's "on detected change, the consolidator must re-read before
// writing." Every write path calls this immediately before computing
// what to merge and commit.
func (m *Manager) reloadIfChanged(ctx context.Context) error {
	if !m.loaded {
		return m.Load(ctx)
	}
	changed, err := m.store.HasChangedSinceLoad(ctx)
	if err != nil {
		return fmt.Errorf("long-term manager: check for external mutation: %w", err)
	}
	if changed {
		logWarn("long-term store changed externally since last load, re-reading before write")
		return m.Load(ctx)
	}
	return nil
}

// Snapshot returns the in-memory contents as currently known, loading
// them first if Load has not yet run.
func (m *Manager) Snapshot(ctx context.Context) (Memories, error) {
	if !m.loaded {
		if err := m.Load(ctx); err != nil {
			return nil, err
		}
	}
	return m.current.Clone(), nil
}

// Search retrieves the entries in the current snapshot most relevant to
// query; entries in preferredCategory receive a fixed score bonus
// whether or not scores tie. minScore is the
// configurable cutoff below which a match is discarded (spec.md's
// "Results below a configurable minimum score are discarded").
func (m *Manager) Search(ctx context.Context, query string, preferredCategory Category, minScore float64, limit int) ([]Result, error) {
	mem, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Search(mem, query, preferredCategory, minScore, limit), nil
}

// Propose appends newly observed candidate entries to category and
// persists them immediately, then consolidates if the store has grown
// past the configured threshold. Grounded in manager.py's
// memorize-then-maybe-consolidate sequencing. Re-reads the store first
// if it changed externally since the last load/write, and retries once
// more if a commit loses a race against a concurrent external write.
func (m *Manager) Propose(ctx context.Context, cat Category, entries ...string) error {
	if len(entries) == 0 {
		return nil
	}
	if err := m.reloadIfChanged(ctx); err != nil {
		return err
	}

	proposed := Empty()
	proposed[cat] = entries

	commitMsg := fmt.Sprintf("add %d %s entries", len(entries), cat)
	merged, err := m.commitMerged(ctx, func(base Memories) Memories {
		out := base.Clone()
		out[cat] = append(out[cat], entries...)
		return out
	}, commitMsg)
	if err != nil {
		return fmt.Errorf("long-term manager: propose: %w", err)
	}
	m.current = merged

	if ShouldConsolidate(m.current, m.thresholdTokens) {
		return m.consolidate(ctx, proposed)
	}
	return nil
}

func (m *Manager) consolidate(ctx context.Context, proposed Memories) error {
	if err := m.reloadIfChanged(ctx); err != nil {
		return err
	}

	condensed, err := m.consolidator.Consolidate(ctx, m.current, proposed)
	if err != nil {
		// Consolidation failures are non-fatal: the store keeps growing
		// unconsolidated and the next Propose call will try again.
		return fmt.Errorf("long-term manager: consolidate: %w", err)
	}

	merged, err := m.commitMerged(ctx, func(Memories) Memories { return condensed }, "consolidate long-term memory")
	if err != nil {
		return fmt.Errorf("long-term manager: save consolidated: %w", err)
	}
	m.current = merged
	return nil
}

// commitMerged applies build to the current snapshot and commits the
// result, retrying once after a fresh reload if the commit loses an
// optimistic-concurrency race (ErrExternalMutation) against a
// concurrent external write.
func (m *Manager) commitMerged(ctx context.Context, build func(Memories) Memories, commitMsg string) (Memories, error) {
	merged := build(m.current)
	err := m.store.SaveAndCommitIfUnchanged(ctx, m.store.LoadedHead(), merged, commitMsg)
	if errors.Is(err, ErrExternalMutation) {
		if reloadErr := m.Load(ctx); reloadErr != nil {
			return nil, reloadErr
		}
		merged = build(m.current)
		err = m.store.SaveAndCommitIfUnchanged(ctx, m.store.LoadedHead(), merged, commitMsg)
	}
	if err != nil {
		return nil, err
	}
	return merged, nil
}
