package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// writerState tracks the state of an SSEWriter.
type writerState int

const (
	writerIdle      writerState = iota // no writes yet
	writerStreaming                    // at least one record written
	writerCompleted                    // sentinel written
)

// SSEWriter writes frames as Server-Sent Events records. When terminal
// reports a frame as the last of its operation, the writer follows it
// with the [DONE] sentinel and refuses further frames.
type SSEWriter struct {
	w        io.Writer
	rc       *http.ResponseController
	terminal func(Frame) bool

	mu    sync.Mutex
	state writerState
}

// NewSSEWriter writes to w. When w is an http.ResponseWriter, SSE headers
// are set before the first record and every record is flushed. terminal may
// be nil.
func NewSSEWriter(w io.Writer, terminal func(Frame) bool) *SSEWriter {
	s := &SSEWriter{w: w, terminal: terminal}
	if rw, ok := w.(http.ResponseWriter); ok {
		s.rc = http.NewResponseController(rw)
	}
	return s
}

// WriteFrame writes one record:
//
//	event: {event}\n   (omitted when empty)
//	id: {id}\n         (omitted when empty)
//	data: {line}\n     (one per payload line)
//	\n
func (s *SSEWriter) WriteFrame(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write frame: writer is completed")
	}
	if s.state == writerIdle {
		if rw, ok := s.w.(http.ResponseWriter); ok {
			rw.Header().Set("Content-Type", "text/event-stream")
			rw.Header().Set("Cache-Control", "no-cache")
			rw.Header().Set("Connection", "keep-alive")
		}
		s.state = writerStreaming
	}

	var buf bytes.Buffer
	if f.Event != "" {
		fmt.Fprintf(&buf, "event: %s\n", f.Event)
	}
	if f.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", f.ID)
	}
	for _, line := range bytes.Split(f.Data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := s.flush(); err != nil {
		return err
	}

	if s.terminal != nil && s.terminal(f) {
		return s.doneLocked()
	}
	return nil
}

// WriteDone writes the [DONE] sentinel and completes the writer. Writing
// it twice is a no-op.
func (s *SSEWriter) WriteDone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == writerCompleted {
		return nil
	}
	return s.doneLocked()
}

func (s *SSEWriter) doneLocked() error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", Sentinel); err != nil {
		return fmt.Errorf("failed to write %s: %w", Sentinel, err)
	}
	s.state = writerCompleted
	return s.flush()
}

func (s *SSEWriter) flush() error {
	if s.rc == nil {
		return nil
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// Completed reports whether the sentinel has been written.
func (s *SSEWriter) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == writerCompleted
}
