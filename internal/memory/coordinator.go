package memory

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/luohaha/aloop/internal/config"
	"github.com/luohaha/aloop/internal/llm"
	"github.com/luohaha/aloop/internal/message"
	"github.com/luohaha/aloop/internal/session"
)

// Coordinator is the façade assembling C1-C6 (C8): it owns the buffer,
// the system messages, and all counters, and mediates every mutation
// through a single lock. Grounded in original_source/memory/manager.py's
// MemoryManager — add_message, compress, _compress_partial,
// rollback_incomplete_exchange, and save_memory are carried over
// operation-for-operation; the teacher's internal/memory/manager.go
// informed the façade shape (constructor wiring, event-hook pattern) but
// its importance-scored promotion model is not this spec's model.
type Coordinator struct {
	mu sync.Mutex

	cfg        *config.Config
	tracker    *TokenTracker
	accountant *Accountant
	buffer     *Buffer
	policy     *Policy
	compressor *Compressor
	store      *session.Store

	systemMessages []message.Message
	sessionID      string
	sessionCreated bool

	todoProvider       TodoContextProvider
	hooks              []EventHook
	lastTurnCompressed bool
}

// NewCoordinator assembles a coordinator from resolved configuration, an
// LLM client for compression summaries, and a session store for
// persistence. No file is touched until the first non-system message is
// added (spec §3 lazy session creation).
func NewCoordinator(cfg *config.Config, client llm.Client, store *session.Store) *Coordinator {
	tracker := NewTokenTracker()
	return &Coordinator{
		cfg:        cfg,
		tracker:    tracker,
		accountant: NewAccountant(tracker),
		buffer:     NewBuffer(cfg.ShortTermSize),
		policy:     NewPolicy(cfg.MemoryEnabled, cfg.CompressionThreshold, cfg.SoftThresholdRatio),
		compressor: NewCompressor(client, tracker),
		store:      store,
	}
}

// SetTodoContextProvider registers the callback the compressor calls to
// obtain current to-do state for inclusion in the summary prompt.
func (c *Coordinator) SetTodoContextProvider(p TodoContextProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.todoProvider = p
}

// OnEvent registers a best-effort event hook. Hooks must never affect
// correctness; a panicking hook is the caller's bug, not ours.
func (c *Coordinator) OnEvent(hook EventHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

func (c *Coordinator) emit(evt Event) {
	evt.At = time.Now()
	for _, h := range c.hooks {
		h(evt)
	}
}

// ContextForLLM returns system_messages ++ buffer.messages(), the only
// contract being that the agent can pass it verbatim to the LLM.
func (c *Coordinator) ContextForLLM() []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := message.CloneAll(c.systemMessages)
	return append(out, c.buffer.Messages()...)
}

// Stats returns a copy of the current usage ledger.
func (c *Coordinator) Stats() UsageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Stats()
}

// LastTurnCompressed reports whether the most recent AddMessage call
// triggered a compression. Supplemented from
// original_source/memory/manager.py's was_compressed_last_iteration.
func (c *Coordinator) LastTurnCompressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTurnCompressed
}

// AddMessage appends msg to the conversation, updates token accounting,
// and triggers compression if the policy's urgency demands it. When
// actualTokens is non-nil, it is attributed to the accountant state as
// of after msg is appended.
func (c *Coordinator) AddMessage(ctx context.Context, msg message.Message, actualTokens *TokenCounts) error {
	c.mu.Lock()

	if msg.Role != message.RoleSystem {
		c.ensureSession()
	}

	if msg.Role == message.RoleSystem {
		c.systemMessages = append(c.systemMessages, msg.Clone())
		c.mu.Unlock()
		return nil
	}

	c.accountant.AddMessage(msg, actualTokens)
	c.buffer.Append(msg.Clone())

	current := c.accountant.CurrentContextTokens(c.systemMessages, c.buffer.Messages())
	urgency := c.policy.Urgency(current, c.buffer.IsFull())

	if urgency == UrgencyNone {
		c.lastTurnCompressed = false
		c.mu.Unlock()
		return nil
	}

	// compress releases and re-acquires the lock around the LLM call.
	if err := c.compress(ctx, urgency); err != nil {
		log.Printf("[WARN] %v", err)
		return err
	}
	return nil
}

// ensureSession lazily creates the backing session on the first
// non-system message. Must be called with c.mu held.
func (c *Coordinator) ensureSession() {
	if c.sessionCreated {
		return
	}
	if id, err := c.store.CreateSession(); err == nil {
		c.sessionID = id
	}
	c.sessionCreated = true
}

// Compress explicitly triggers compression at the given urgency. It is
// exposed for direct invocation (tests, or a caller reacting to an
// externally observed condition); AddMessage calls it automatically.
// Precondition: caller does not hold the lock.
func (c *Coordinator) Compress(ctx context.Context, urgency Urgency) error {
	c.mu.Lock()
	return c.compress(ctx, urgency)
}

// compress must be called with c.mu held; it returns with the lock
// released.
func (c *Coordinator) compress(ctx context.Context, urgency Urgency) error {
	c.emit(Event{Kind: EventCompressionStarted})

	if urgency == UrgencySoft {
		msgs := c.buffer.Messages()
		if len(msgs) > 4 {
			if split := SafeSplitPoint(msgs); split > 0 {
				return c.compressPartial(ctx, msgs, split)
			}
		}
		// No safe soft split; fall through to full compression.
	}

	return c.compressFull(ctx, urgency)
}

// compressFull must be called with c.mu held; it returns with the lock
// released.
func (c *Coordinator) compressFull(ctx context.Context, urgency Urgency) error {
	msgs := c.buffer.Messages()
	M := len(msgs)
	if M == 0 {
		c.lastTurnCompressed = false
		c.mu.Unlock()
		return nil
	}

	strategy := SelectStrategy(msgs)
	current := c.accountant.CurrentContextTokens(c.systemMessages, msgs)
	target := TargetTokens(current, c.cfg.CompressionRatio)
	todoContext := c.currentTodoContext()

	c.mu.Unlock()
	result, err := c.compressor.Compress(ctx, msgs, strategy, target, todoContext)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.lastTurnCompressed = false
		return fmt.Errorf("compress: %w: %v", ErrCompressionFailed, err)
	}

	extra := sliceFrom(c.buffer.Messages(), M)
	c.buffer.Clear()
	spliced := append([]message.Message{result.Summary}, result.PreservedTail...)
	spliced = append(spliced, extra...)
	c.buffer.Replace(spliced)

	c.accountant.ResetGrounding()
	c.tracker.RecordCompression(result)
	c.lastTurnCompressed = true
	c.emit(Event{Kind: EventCompressionFinished, Tokens: result.TokenSavings()})
	return nil
}

// compressPartial must be called with c.mu held; it returns with the
// lock released. msgs is the buffer snapshot taken by the caller before
// the split decision, so M below is relative to that same snapshot.
func (c *Coordinator) compressPartial(ctx context.Context, msgs []message.Message, split int) error {
	toCompress := msgs[:split]
	toKeep := message.CloneAll(msgs[split:])
	M := len(msgs)

	strategy := SelectStrategy(toCompress)
	current := c.accountant.CurrentContextTokens(c.systemMessages, msgs)
	target := TargetTokens(current, c.cfg.CompressionRatio)
	todoContext := c.currentTodoContext()

	c.mu.Unlock()
	result, err := c.compressor.CompressPartial(ctx, toCompress, strategy, target, todoContext)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.lastTurnCompressed = false
		return fmt.Errorf("compress partial: %w: %v", ErrCompressionFailed, err)
	}

	extra := sliceFrom(c.buffer.Messages(), M)
	c.buffer.Clear()
	spliced := append([]message.Message{result.Summary}, toKeep...)
	spliced = append(spliced, extra...)
	c.buffer.Replace(spliced)

	c.accountant.ResetGrounding()
	c.tracker.RecordCompression(result)
	c.lastTurnCompressed = true
	c.emit(Event{Kind: EventCompressionFinished, Tokens: result.TokenSavings()})
	return nil
}

func (c *Coordinator) currentTodoContext() string {
	if c.todoProvider == nil {
		return ""
	}
	return c.todoProvider()
}

// sliceFrom returns the elements of msgs starting at index from (clamped
// to the slice length), used to capture messages appended concurrently
// during an async compression call.
func sliceFrom(msgs []message.Message, from int) []message.Message {
	if from >= len(msgs) {
		return nil
	}
	if from < 0 {
		from = 0
	}
	return msgs[from:]
}

// RollbackIncompleteExchange pops a dangling assistant message with
// unanswered tool_calls from the tail of the buffer, if present. It is
// idempotent: calling it again when the tail is not such a message is a
// no-op, and the preceding user message is never touched.
func (c *Coordinator) RollbackIncompleteExchange() {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.buffer.Messages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != message.RoleAssistant || !last.HasToolCalls() {
		return
	}

	c.buffer.RemoveLast(1)
	c.accountant.ResetGrounding()
}

// SaveMemory flushes the current state to the session store. It is a
// no-op if no session was ever created, or if there is nothing to save.
func (c *Coordinator) SaveMemory() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sessionCreated {
		return nil
	}
	if len(c.systemMessages) == 0 && c.buffer.Len() == 0 {
		return nil
	}

	stats := c.tracker.Stats()
	err := c.store.SaveSession(c.sessionID, c.systemMessages, c.buffer.Messages(), session.Stats{
		TotalInputTokens:   stats.TotalInputTokens,
		TotalOutputTokens:  stats.TotalOutputTokens,
		CompressionCount:   stats.CompressionCount,
		CompressionSavings: stats.CompressionSavings,
		CompressionCost:    stats.CompressionCost,
		TotalCost:          stats.TotalCost,
	})
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	c.emit(Event{Kind: EventSessionSaved})
	return nil
}

// SessionID returns the backing session's id, or "" if none has been
// created yet.
func (c *Coordinator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}
