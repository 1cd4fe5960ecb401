// Package llm declares the narrow contract the memory engine needs from
// the LLM adapter: a single blocking chat call. The adapter's transport,
// retries, and provider-specific wire format are external collaborators
// (spec §1) — this package only carries the shape the compressor and the
// long-term consolidator need to ask for a completion and read one back.
package llm

import (
	"context"

	"github.com/luohaha/aloop/internal/message"
)

// Request is a single chat completion call.
type Request struct {
	Messages    []message.Message
	Temperature float64
	MaxTokens   int
}

// Response is the result of a chat completion call.
type Response struct {
	Content string
	Usage   Usage
}

// Usage reports the token accounting the provider returned for a call,
// the authoritative counts the accountant (C3) reconciles against.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Client is implemented by the LLM adapter. Compression summaries and
// long-term consolidation both go through it.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
