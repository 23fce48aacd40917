// Package recorder captures the raw frames and final result of stream
// sessions so they can be inspected and replayed later.
//
// Backends (memory, postgres) implement Store. This package holds only the
// shared types, sentinel errors and the replay reader.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rhuss/streamwire/pkg/frame"
)

// Sentinel errors for recorder operations.
var (
	// ErrNotFound is returned when a recording does not exist.
	ErrNotFound = errors.New("recording not found")

	// ErrConflict is returned when a recording with the given ID already exists.
	ErrConflict = errors.New("recording already exists")
)

// Recording is one captured session.
type Recording struct {
	ID       string
	Kind     string
	Protocol string

	// Frames are the frames in arrival order. A stream that ended with the
	// [DONE] sentinel carries a final frame whose Data is the sentinel.
	Frames []frame.Frame

	Status     string
	Incomplete bool

	// Result is the JSON encoding of the collected result.
	Result json.RawMessage

	CreatedAt time.Time
}

// Terminated reports whether the recorded stream ended with the sentinel.
func (r *Recording) Terminated() bool {
	return len(r.Frames) > 0 && string(r.Frames[len(r.Frames)-1].Data) == frame.Sentinel
}

// ListOptions filters and pages List results. Recordings are returned
// newest first.
type ListOptions struct {
	// Kind keeps only recordings of this operation kind when set.
	Kind string

	// After is the ID of the last recording of the previous page.
	After string

	// Limit caps the page size (default 20, max 100).
	Limit int
}

// PageLimit returns the effective page size.
func (o ListOptions) PageLimit() int {
	switch {
	case o.Limit <= 0:
		return 20
	case o.Limit > 100:
		return 100
	}
	return o.Limit
}

// RecordingList is one page of recordings. Frames are not loaded.
type RecordingList struct {
	Data    []*Recording
	HasMore bool
}

// Store persists recordings.
type Store interface {
	Save(ctx context.Context, rec *Recording) error
	Get(ctx context.Context, id string) (*Recording, error)
	List(ctx context.Context, opts ListOptions) (*RecordingList, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
