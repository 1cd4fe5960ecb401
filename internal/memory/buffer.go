package memory

import "github.com/luohaha/aloop/internal/message"

// Buffer is the append-only, ordered working buffer (C2). It never
// silently drops a message: is_full is advisory, consumed by the policy,
// and appends beyond the cap still succeed. Grounded in
// original_source/memory/short_term.py, which this component matches
// operation-for-operation; the teacher's short_term.go additionally
// tracks importance/expiry/LRU eviction, which belongs to a different
// memory model than this spec's buffer and is not carried over.
type Buffer struct {
	messages []message.Message
	cap      int
}

// NewBuffer returns an empty buffer with the given emergency cap.
func NewBuffer(cap int) *Buffer {
	return &Buffer{cap: cap}
}

// Append pushes msg to the tail.
func (b *Buffer) Append(msg message.Message) {
	b.messages = append(b.messages, msg)
}

// Messages returns an ordered, independent copy of every message in the
// buffer.
func (b *Buffer) Messages() []message.Message {
	return message.CloneAll(b.messages)
}

// Len returns the number of messages currently held.
func (b *Buffer) Len() int {
	return len(b.messages)
}

// IsFull reports whether the buffer has reached or passed its emergency
// cap. This is advisory only; Append still succeeds past it.
func (b *Buffer) IsFull() bool {
	return len(b.messages) >= b.cap
}

// RemoveFirst drops the first k messages (clamped to the buffer's
// length) and returns them in order.
func (b *Buffer) RemoveFirst(k int) []message.Message {
	if k > len(b.messages) {
		k = len(b.messages)
	}
	if k <= 0 {
		return nil
	}
	removed := message.CloneAll(b.messages[:k])
	b.messages = b.messages[k:]
	return removed
}

// RemoveLast drops the last k messages (clamped). Used only for rollback.
func (b *Buffer) RemoveLast(k int) []message.Message {
	n := len(b.messages)
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	removed := message.CloneAll(b.messages[n-k:])
	b.messages = b.messages[:n-k]
	return removed
}

// Clear empties the buffer and returns its prior contents.
func (b *Buffer) Clear() []message.Message {
	prior := message.CloneAll(b.messages)
	b.messages = nil
	return prior
}

// Replace discards the current contents and installs msgs as the new
// buffer, in order. Used by the splice protocol after compression.
func (b *Buffer) Replace(msgs []message.Message) {
	b.messages = message.CloneAll(msgs)
}
