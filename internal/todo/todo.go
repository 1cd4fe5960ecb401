// Package todo tracks a small persistent to-do list alongside a
// session, and exposes it to the memory package as a
// memory.TodoContextProvider so open items survive into a compression
// summary instead of being silently dropped with the rest of the
// buffer. Adapted from the teacher's internal/todo/todo.go: the JSON
// file format is unchanged, but Load now tolerates a missing or
// malformed file the same way internal/session/store.go and
// internal/longterm/store.go tolerate a missing or malformed persisted
// document (log and fall back to empty, never error), Add rejects a
// blank title the way a to-do actually meant to be acted on requires,
// Complete/Remove report a shared sentinel instead of an ad hoc string,
// the old String() renderer is replaced with FormatContext, and Save
// now writes atomically.
package todo

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type List struct {
	Items []Item `json:"items"`
	Path  string `json:"-"`
}

// NewList loads the list at path, starting empty if the file does not
// exist or cannot be parsed — Load itself never errors for either
// reason, so the failures this can still surface are an empty path and
// a read error other than a missing file.
func NewList(path string) (*List, error) {
	list := &List{
		Items: []Item{},
		Path:  path,
	}

	if err := list.Load(); err != nil {
		return nil, fmt.Errorf("loading todo list: %w", err)
	}

	return list, nil
}

// Add appends a new open item. The title is trimmed and required: a
// to-do with no actionable title is not worth carrying into a
// compression summary, so it is rejected with ErrEmptyTitle rather than
// silently stored.
func (l *List) Add(title, description string) (*Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	now := time.Now()
	item := Item{
		ID:          fmt.Sprintf("%d", now.UnixNano()),
		Title:       title,
		Description: strings.TrimSpace(description),
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	l.Items = append(l.Items, item)
	return &l.Items[len(l.Items)-1], nil
}

// Complete marks the item identified by id as done.
func (l *List) Complete(id string) error {
	for i := range l.Items {
		if l.Items[i].ID == id {
			l.Items[i].Completed = true
			l.Items[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("todo: complete %s: %w", id, ErrItemNotFound)
}

// Remove deletes the item identified by id from the list entirely.
func (l *List) Remove(id string) error {
	for i, item := range l.Items {
		if item.ID == id {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("todo: remove %s: %w", id, ErrItemNotFound)
}

// Load replaces the in-memory items with whatever is on disk at Path,
// treating a missing file as an empty list and a malformed one as an
// empty list plus a warning — the same tolerate-and-log discipline
// internal/session/store.go and internal/longterm/store.go apply to
// their own persisted documents, so a hand-edited or half-written todo
// file can never crash a session the way it could reading a bare
// json.Unmarshal error straight through.
func (l *List) Load() error {
	if l.Path == "" {
		return fmt.Errorf("no path specified")
	}

	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			l.Items = []Item{}
			return nil
		}
		return err
	}

	if len(data) == 0 {
		l.Items = []Item{}
		return nil
	}

	var loaded List
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Printf("[WARN] todo list %s: malformed JSON, treating as empty: %v", l.Path, err)
		l.Items = []Item{}
		return nil
	}
	l.Items = loaded.Items
	return nil
}

// Save persists the list atomically: write to a temp file in the same
// directory, then rename into place, matching the write discipline used
// for session documents.
func (l *List) Save() error {
	if l.Path == "" {
		return fmt.Errorf("no path specified")
	}

	dir := filepath.Dir(l.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling todo list: %w", err)
	}

	tmp := l.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, l.Path)
}

// FormatContext renders the open (incomplete) items as a short block of
// text suitable for inclusion in a compression summary prompt, so a
// compacted conversation does not lose track of outstanding work. Empty
// when there is nothing open.
func (l *List) FormatContext() string {
	var open []Item
	for _, item := range l.Items {
		if !item.Completed {
			open = append(open, item)
		}
	}
	if len(open) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Open to-do items:\n")
	for _, item := range open {
		fmt.Fprintf(&b, "- %s", item.Title)
		if item.Description != "" {
			fmt.Fprintf(&b, ": %s", item.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Provider returns a memory.TodoContextProvider-shaped callback bound to
// this list, so a coordinator can call SetTodoContextProvider(list.Provider()).
func (l *List) Provider() func() string {
	return l.FormatContext
}
