// Package frame turns raw transport streams into ordered JSON frames and
// back.
//
// Readers are single pass and not restartable. Next blocks on the transport
// and is the only blocking operation of a decode pipeline; it returns
// ErrDone once when a [DONE] sentinel ends the stream and io.EOF on every
// call after the stream has ended.
package frame

import (
	"context"
	"encoding/json"
	"errors"
)

// Protocol names used in logs and metrics.
const (
	ProtocolSSE       = "sse"
	ProtocolNDJSON    = "ndjson"
	ProtocolWebSocket = "websocket"
)

// DefaultMaxEventSize bounds one SSE record or WebSocket message.
const DefaultMaxEventSize = 4 << 20

// Sentinel is the payload that ends a completions-style SSE stream.
const Sentinel = "[DONE]"

var (
	// ErrDone is returned by Next when the stream ended with the sentinel.
	ErrDone = errors.New("stream done")

	// ErrEventTooLarge is returned when a record exceeds the configured size.
	ErrEventTooLarge = errors.New("event exceeds maximum size")
)

// Frame is one decoded unit of a stream.
type Frame struct {
	// Event is the SSE event name. It is empty for data-only records,
	// NDJSON lines and WebSocket messages.
	Event string

	// Data is the payload. Multi-line SSE data is joined with newlines.
	Data json.RawMessage

	// ID is the SSE record id, if any.
	ID string
}

// Reader yields the frames of one stream.
type Reader interface {
	// Next returns the next frame. Cancelling ctx interrupts a blocked
	// read and releases the transport.
	Next(ctx context.Context) (Frame, error)

	// Close releases the transport.
	Close() error
}

// Option configures a reader.
type Option func(*options)

type options struct {
	maxEventSize int
}

// WithMaxEventSize bounds the size of a single record. Non-positive values
// keep the default.
func WithMaxEventSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEventSize = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{maxEventSize: DefaultMaxEventSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
