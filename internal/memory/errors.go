package memory

import "errors"

// ErrCompressionFailed wraps a failed summarisation call. Per spec §7,
// this is never fatal: the coordinator logs it, leaves the buffer
// unchanged, and re-evaluates urgency on the next add_message.
var ErrCompressionFailed = errors.New("memory: compression failed")
