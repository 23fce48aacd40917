package frame

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/observability"
)

// sseState tracks progress through one SSE record.
type sseState int

const (
	awaitingEvent sseState = iota // nothing read for the current record
	awaitingData                  // event name seen, no data yet
	collecting                    // at least one data line seen
	frameReady                    // blank line terminated a record with data
)

// SSEReader reads Server-Sent Events records.
//
// An event line names the record, data lines are joined with newlines and
// a blank line ends the record. Comment lines and records without data are
// skipped. A payload equal to [DONE] ends the stream. When the stream
// closes in the middle of a record, the accumulated payload is delivered
// as a final frame; a record with no payload is dropped with a warning.
type SSEReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	opts    options

	state sseState
	event string
	id    string
	data  bytes.Buffer

	err error // sticky end-of-stream or failure
}

var _ Reader = (*SSEReader)(nil)

// sseLines splits on CRLF, LF or a bare CR. A CR that ends the buffered
// data ends its line at once; an LF arriving next is then skipped.
func sseLines() bufio.SplitFunc {
	var skipLF bool
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if skipLF && len(data) > 0 {
			skipLF = false
			if data[0] == '\n' {
				return 1, nil, nil
			}
		}
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		i := bytes.IndexAny(data, "\r\n")
		switch {
		case i < 0:
			if atEOF {
				return len(data), data, nil
			}
			return 0, nil, nil
		case data[i] == '\n':
			return i + 1, data[:i], nil
		case i+1 < len(data):
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		skipLF = true
		return i + 1, data[:i], nil
	}
}

// NewSSEReader reads records from r. If r is an io.Closer, Close and
// context cancellation close it.
func NewSSEReader(r io.Reader, opts ...Option) *SSEReader {
	o := newOptions(opts)
	sc := bufio.NewScanner(r)
	maxLine := o.maxEventSize + len("data: ") + 1
	sc.Buffer(make([]byte, 0, min(64*1024, maxLine)), maxLine)
	sc.Split(sseLines())
	sr := &SSEReader{scanner: sc, opts: o}
	if c, ok := r.(io.Closer); ok {
		sr.closer = c
	}
	return sr
}

// Next returns the next record.
func (r *SSEReader) Next(ctx context.Context) (Frame, error) {
	if r.err != nil {
		return Frame{}, r.err
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, r.fail(err)
	}
	if r.closer != nil {
		stop := context.AfterFunc(ctx, func() { _ = r.closer.Close() })
		defer stop()
	}

	for r.scanner.Scan() {
		if err := r.feed(r.scanner.Bytes()); err != nil {
			return Frame{}, r.fail(err)
		}
		if r.state == frameReady {
			return r.emit()
		}
	}

	if err := ctx.Err(); err != nil {
		return Frame{}, r.fail(err)
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Frame{}, r.fail(ErrEventTooLarge)
		}
		return Frame{}, r.fail(fmt.Errorf("read sse stream: %w", err))
	}
	return r.tail()
}

// Close releases the underlying stream.
func (r *SSEReader) Close() error {
	if r.err == nil {
		r.err = io.EOF
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// feed applies one line to the record state machine.
func (r *SSEReader) feed(line []byte) error {
	if len(line) == 0 {
		switch r.state {
		case collecting:
			r.state = frameReady
		case awaitingData:
			debug.Log(debug.Frames, "sse record without data skipped", "event", r.event)
			r.reset()
		}
		return nil
	}
	if line[0] == ':' {
		return nil
	}

	field, value := line, []byte(nil)
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		field, value = line[:i], line[i+1:]
		value = bytes.TrimPrefix(value, []byte(" "))
	}

	switch string(field) {
	case "event":
		r.event = string(value)
		if r.state == awaitingEvent {
			r.state = awaitingData
		}
	case "data":
		if r.state == collecting {
			r.data.WriteByte('\n')
		}
		r.data.Write(value)
		r.state = collecting
		if r.data.Len() > r.opts.maxEventSize {
			return ErrEventTooLarge
		}
	case "id":
		r.id = string(value)
	case "retry":
	default:
		debug.Log(debug.Frames, "unknown sse field ignored", "field", string(field))
	}
	return nil
}

// emit hands out the ready record and resets the state machine.
func (r *SSEReader) emit() (Frame, error) {
	payload := bytes.Clone(r.data.Bytes())
	f := Frame{Event: r.event, Data: payload, ID: r.id}
	r.reset()

	if string(bytes.TrimSpace(payload)) == Sentinel {
		debug.Log(debug.Frames, "sse sentinel received")
		r.err = io.EOF
		return Frame{}, ErrDone
	}
	observability.FramesTotal.WithLabelValues(ProtocolSSE).Inc()
	debug.Payload(debug.Frames, "sse record", payload, "event", f.Event)
	return f, nil
}

// tail handles the end of the byte stream.
func (r *SSEReader) tail() (Frame, error) {
	switch r.state {
	case collecting:
		slog.Warn("sse stream ended inside a record, delivering partial record", "event", r.event, "bytes", r.data.Len())
		f, err := r.emit()
		if err == nil {
			r.err = io.EOF
		}
		return f, err
	case awaitingData:
		slog.Warn("sse stream ended inside a record without data, dropping it", "event", r.event)
	}
	r.reset()
	r.err = io.EOF
	return Frame{}, io.EOF
}

func (r *SSEReader) reset() {
	r.state = awaitingEvent
	r.event = ""
	r.id = ""
	r.data.Reset()
}

func (r *SSEReader) fail(err error) error {
	r.err = err
	if r.closer != nil {
		_ = r.closer.Close()
	}
	return err
}
