package frame

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/observability"
)

// NDJSONReader reads newline-delimited JSON, one frame per non-blank line.
// The stream ends at EOF; there is no sentinel.
type NDJSONReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	err     error
}

var _ Reader = (*NDJSONReader)(nil)

// NewNDJSONReader reads lines from r. If r is an io.Closer, Close and
// context cancellation close it.
func NewNDJSONReader(r io.Reader, opts ...Option) *NDJSONReader {
	o := newOptions(opts)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64*1024, o.maxEventSize)), o.maxEventSize)
	nr := &NDJSONReader{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		nr.closer = c
	}
	return nr
}

// Next returns the next line.
func (r *NDJSONReader) Next(ctx context.Context) (Frame, error) {
	if r.err != nil {
		return Frame{}, r.err
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return Frame{}, err
	}
	if r.closer != nil {
		stop := context.AfterFunc(ctx, func() { _ = r.closer.Close() })
		defer stop()
	}

	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		observability.FramesTotal.WithLabelValues(ProtocolNDJSON).Inc()
		debug.Payload(debug.Frames, "ndjson line", line)
		return Frame{Data: bytes.Clone(line)}, nil
	}

	switch err := r.scanner.Err(); {
	case ctx.Err() != nil:
		r.err = ctx.Err()
	case errors.Is(err, bufio.ErrTooLong):
		r.err = ErrEventTooLarge
	case err != nil:
		r.err = fmt.Errorf("read ndjson stream: %w", err)
	default:
		r.err = io.EOF
	}
	return Frame{}, r.err
}

// Close releases the underlying stream.
func (r *NDJSONReader) Close() error {
	if r.err == nil {
		r.err = io.EOF
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
