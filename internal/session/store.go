// Package session persists the working-memory engine's state to a
// keyed directory store (C6): one UUID-named directory per session,
// each holding a single human-readable YAML document. Grounded in
// spec §4.6 and §6; the atomic write-via-temp-file-then-rename idiom is
// taken from HelixDevelopment-HelixCode's internal/persistence/store.go
// (writeAtomic), and the directory-scan listing idiom from the same
// package's SaveAll/LoadAll.
package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"

	"github.com/luohaha/aloop/internal/message"
)

const sessionFileName = "session.yaml"

// Stats mirrors the spec's UsageStats tuple in the persisted shape.
type Stats struct {
	TotalInputTokens   int     `yaml:"total_input_tokens"`
	TotalOutputTokens  int     `yaml:"total_output_tokens"`
	CompressionCount   int     `yaml:"compression_count"`
	CompressionSavings int     `yaml:"compression_savings"`
	CompressionCost    int     `yaml:"compression_cost"`
	TotalCost          float64 `yaml:"total_cost"`
}

// State is the full materialised content of a session document.
type State struct {
	SessionID      string            `yaml:"session_id"`
	CreatedAt      time.Time         `yaml:"created_at"`
	UpdatedAt      time.Time         `yaml:"updated_at"`
	Stats          Stats             `yaml:"stats"`
	SystemMessages []message.Message `yaml:"system_messages"`
	Messages       []message.Message `yaml:"messages"`
}

// Summary is the lightweight listing entry returned by ListSessions.
type Summary struct {
	ID           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	SummaryCount int // number of compressions this session has undergone
}

// Store is a keyed directory store rooted at a runtime directory
// (default ~/.aloop/sessions).
type Store struct {
	root   string
	logger *log.Logger
}

// NewStore returns a store rooted at root. The directory is created
// lazily by CreateSession, not here.
func NewStore(root string) *Store {
	return &Store{root: root, logger: log.Default()}
}

// SetLogger overrides the logger used for non-fatal warnings (e.g.
// malformed session files encountered during a scan).
func (s *Store) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

func (s *Store) sessionDir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *Store) sessionFile(id string) string {
	return filepath.Join(s.sessionDir(id), sessionFileName)
}

// CreateSession creates a new session directory and an empty document,
// returning its id.
func (s *Store) CreateSession() (string, error) {
	id := uuid.NewString()
	dir := s.sessionDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	now := time.Now().UTC()
	state := &State{SessionID: id, CreatedAt: now, UpdatedAt: now}
	if err := s.writeState(id, state); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// SaveSession atomically persists systemMessages and bufferMessages for
// the given session id, preserving its original created_at if the
// session already exists.
func (s *Store) SaveSession(id string, systemMessages, bufferMessages []message.Message, stats Stats) error {
	dir := s.sessionDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}

	createdAt := time.Now().UTC()
	if existing, _ := s.readRaw(id); existing != nil {
		createdAt = existing.CreatedAt
	}

	state := &State{
		SessionID:      id,
		CreatedAt:      createdAt,
		UpdatedAt:      time.Now().UTC(),
		Stats:          stats,
		SystemMessages: systemMessages,
		Messages:       bufferMessages,
	}
	if err := s.writeState(id, state); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

func (s *Store) writeState(id string, state *State) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return writeAtomic(s.sessionFile(id), data)
}

// writeAtomic writes data to a temp file in the same directory and
// renames it into place, so a crash mid-write never corrupts the
// existing document.
func writeAtomic(filename string, data []byte) error {
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filename)
}

// readRaw reads and parses the session file without schema validation
// or repair, used internally to recover created_at. Returns nil, nil on
// any failure.
func (s *Store) readRaw(id string) (*State, error) {
	data, err := os.ReadFile(s.sessionFile(id))
	if err != nil {
		return nil, nil
	}
	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, nil
	}
	return &state, nil
}

// LoadSession returns the materialised session state, or nil if the
// session is missing or its file is malformed (NotFound and
// SchemaFailure both surface as a nil result, per spec §7 — the caller
// never sees a panic or an error for either).
func (s *Store) LoadSession(id string) *State {
	data, err := os.ReadFile(s.sessionFile(id))
	if err != nil {
		return nil
	}

	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		s.logger.Printf("[WARN] session %s: malformed YAML, treating as not found: %v", id, err)
		return nil
	}
	if !validState(state) {
		s.logger.Printf("[WARN] session %s: fails message schema, treating as not found", id)
		return nil
	}

	repairToolArguments(&state, s.logger)
	return &state
}

// validState applies the Message invariants from spec §3: user/system
// messages never carry tool_calls, and a tool message always names the
// call it answers.
func validState(state State) bool {
	if state.SessionID == "" {
		return false
	}
	for _, m := range append(append([]message.Message{}, state.SystemMessages...), state.Messages...) {
		switch m.Role {
		case message.RoleUser, message.RoleSystem:
			if m.HasToolCalls() {
				return false
			}
		case message.RoleTool:
			if m.ToolCallID == "" {
				return false
			}
		case message.RoleAssistant:
			// no additional constraint
		default:
			return false
		}
	}
	return true
}

// repairToolArguments fixes any tool call whose arguments string is not
// valid JSON, which can happen when a session file was written mid-turn
// (an interrupted streaming response, for example). This runs only at
// load time, before the agent sees the messages again; the repaired
// string is not written back to disk.
func repairToolArguments(state *State, logger *log.Logger) {
	for i := range state.Messages {
		repairMessageToolArgs(&state.Messages[i], logger)
	}
	for i := range state.SystemMessages {
		repairMessageToolArgs(&state.SystemMessages[i], logger)
	}
}

func repairMessageToolArgs(m *message.Message, logger *log.Logger) {
	for i, tc := range m.ToolCalls {
		if tc.Function.Arguments == "" || json.Valid([]byte(tc.Function.Arguments)) {
			continue
		}
		repaired, err := jsonrepair.JSONRepair(tc.Function.Arguments)
		if err != nil {
			logger.Printf("[WARN] tool call %s: could not repair malformed arguments: %v", tc.ID, err)
			continue
		}
		m.ToolCalls[i].Function.Arguments = repaired
	}
}

// ListSessions returns session summaries sorted by UpdatedAt descending.
// A limit <= 0 means unlimited.
func (s *Store) ListSessions(limit int) ([]Summary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var summaries []Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		state := s.LoadSession(entry.Name())
		if state == nil {
			continue
		}
		summaries = append(summaries, Summary{
			ID:           state.SessionID,
			CreatedAt:    state.CreatedAt,
			UpdatedAt:    state.UpdatedAt,
			MessageCount: len(state.Messages),
			SummaryCount: state.Stats.CompressionCount,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// FindLatestSession returns the id of the most recently updated
// session, or "" if none exist.
func (s *Store) FindLatestSession() (string, error) {
	summaries, err := s.ListSessions(1)
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "", nil
	}
	return summaries[0].ID, nil
}

// FindSessionByPrefix returns the full session id iff exactly one
// session directory name begins with prefix, else "".
func (s *Store) FindSessionByPrefix(prefix string) (string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("find session by prefix: %w", err)
	}

	var match string
	count := 0
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			match = entry.Name()
			count++
		}
	}
	if count != 1 {
		return "", nil
	}
	return match, nil
}
