// Package session composes a frame reader, a dispatcher and an
// accumulator into one streamed operation.
//
// Events yields every dispatched value as soon as it is read. Collect
// drains the stream, folds the values into an accumulator and returns the
// frozen result. A stream that ends without a terminal value, including
// one cut off by the caller's deadline, yields an incomplete result with
// reason ReasonConnectionClosed rather than an error.
//
// A Session is single pass: Events or Collect may be called once.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/streamwire/pkg/accumulate"
	"github.com/rhuss/streamwire/pkg/api"
	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/dispatch"
	"github.com/rhuss/streamwire/pkg/frame"
	"github.com/rhuss/streamwire/pkg/observability"
	"github.com/rhuss/streamwire/pkg/recorder"
	"github.com/rhuss/streamwire/pkg/schema"
)

// ReasonConnectionClosed is the reason of results whose stream ended
// before a terminal value.
const ReasonConnectionClosed = accumulate.ReasonConnectionClosed

// Result is the frozen outcome of a collected session.
type Result = accumulate.Result

var (
	// ErrConsumed is returned when Events or Collect is called on a
	// session that was already read.
	ErrConsumed = errors.New("session already consumed")

	// ErrConnectionClosed is yielded by Events when the stream ends before
	// a terminal value.
	ErrConnectionClosed = errors.New("connection closed before terminal event")
)

// recordTimeout bounds saving a recording after the stream ended.
const recordTimeout = 5 * time.Second

// Option configures a Session.
type Option func(*Session)

// WithReadTimeout bounds each read from the transport. An expired read
// ends the stream like a closed connection. Zero disables the bound.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Session) { s.readTimeout = d }
}

// WithRecorder saves the frames and result of Collect to store.
func WithRecorder(store recorder.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithProtocol overrides the protocol name recorded for the stream.
func WithProtocol(protocol string) Option {
	return func(s *Session) { s.protocol = protocol }
}

// WithBuffering controls delta reordering. See accumulate.WithBuffering.
func WithBuffering(on bool) Option {
	return func(s *Session) { s.accOpts = append(s.accOpts, accumulate.WithBuffering(on)) }
}

// WithRepair controls repair of truncated tool call arguments. See
// accumulate.WithRepair.
func WithRepair(on bool) Option {
	return func(s *Session) { s.accOpts = append(s.accOpts, accumulate.WithRepair(on)) }
}

// Session is one streamed operation.
type Session struct {
	id       string
	kind     Kind
	spec     kindSpec
	reader   frame.Reader
	protocol string

	readTimeout time.Duration
	store       recorder.Store
	accOpts     []accumulate.Option

	consumed atomic.Bool
	frames   []frame.Frame
}

// New creates a session reading r as an operation of the given kind.
func New(r frame.Reader, kind Kind, opts ...Option) (*Session, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown operation kind %d", int(kind))
	}
	s := &Session{
		id:       uuid.NewString(),
		kind:     kind,
		spec:     spec,
		reader:   r,
		protocol: protocolOf(r),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func protocolOf(r frame.Reader) string {
	switch r := r.(type) {
	case interface{ Protocol() string }:
		return r.Protocol()
	case *frame.SSEReader:
		return frame.ProtocolSSE
	case *frame.NDJSONReader:
		return frame.ProtocolNDJSON
	case *frame.WebSocketReader:
		return frame.ProtocolWebSocket
	}
	return ""
}

// ID returns the session id used in logs and recordings.
func (s *Session) ID() string { return s.id }

// Kind returns the operation kind.
func (s *Session) Kind() Kind { return s.kind }

// Close releases the transport. Reading an unread session after Close
// yields an incomplete result.
func (s *Session) Close() error {
	return s.reader.Close()
}

// end describes how the read loop stopped.
type end int

const (
	endTerminal end = iota // a terminal value was seen
	endSentinel            // the [DONE] sentinel ended the stream
	endStopped             // the consumer stopped reading
	endClosed              // the transport ended without a terminal value
	endFatal               // the frame boundary could not be read
)

// run reads frames until the stream ends or visit returns false.
func (s *Session) run(ctx context.Context, visit func(dispatch.Value, error) bool) (end, error) {
	dispatcher := s.spec.dispatcher()
	for {
		f, err := s.read(ctx)
		switch {
		case errors.Is(err, frame.ErrDone):
			s.record(frame.Frame{Data: json.RawMessage(frame.Sentinel)})
			return endSentinel, nil
		case errors.Is(err, frame.ErrEventTooLarge):
			return endFatal, err
		case errors.Is(err, io.EOF):
			return endClosed, nil
		case err != nil:
			debug.Log(debug.Session, "transport ended", "session", s.id, "error", err)
			return endClosed, err
		}
		s.record(f)

		payload, err := s.kind.payload(f)
		if err != nil {
			if !visit(dispatch.Value{Raw: f.Data}, &schema.DecodeError{Kind: schema.ErrMalformed, Err: err}) {
				return endStopped, nil
			}
			continue
		}
		v, err := dispatcher.Dispatch(payload)
		if !visit(v, err) {
			return endStopped, nil
		}
		if err == nil && s.spec.terminal(v) {
			return endTerminal, nil
		}
	}
}

func (s *Session) read(ctx context.Context) (frame.Frame, error) {
	if s.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.readTimeout)
		defer cancel()
	}
	return s.reader.Next(ctx)
}

func (s *Session) record(f frame.Frame) {
	if s.store != nil {
		s.frames = append(s.frames, f)
	}
}

func (s *Session) begin() bool {
	if !s.consumed.CompareAndSwap(false, true) {
		return false
	}
	observability.SessionsActive.Inc()
	debug.Log(debug.Session, "session started", "session", s.id, "kind", s.kind, "protocol", s.protocol)
	return true
}

func (s *Session) finish(start time.Time) {
	observability.SessionsActive.Dec()
	observability.SessionDuration.WithLabelValues(s.kind.String()).Observe(time.Since(start).Seconds())
	if err := s.reader.Close(); err != nil {
		debug.Log(debug.Session, "closing transport", "session", s.id, "error", err)
	}
}

// Events returns the dispatched values of the stream in arrival order.
// A value that failed to decode is yielded with its error and the stream
// continues. The sequence ends after a terminal value or the sentinel; a
// stream that ends otherwise yields ErrConnectionClosed (wrapping the
// transport error, if any) as its last element. Breaking out of the loop
// releases the transport.
func (s *Session) Events(ctx context.Context) iter.Seq2[dispatch.Value, error] {
	return func(yield func(dispatch.Value, error) bool) {
		if !s.begin() {
			yield(dispatch.Value{}, ErrConsumed)
			return
		}
		start := time.Now()
		defer s.finish(start)

		how, err := s.run(ctx, yield)
		switch how {
		case endClosed:
			if err != nil {
				err = fmt.Errorf("%w: %w", ErrConnectionClosed, err)
			} else {
				err = ErrConnectionClosed
			}
			yield(dispatch.Value{}, err)
		case endFatal:
			yield(dispatch.Value{}, err)
		}
	}
}

// Collect drains the stream and returns the frozen result. The error is
// non-nil for ErrConsumed, and for a frame boundary that could not be read,
// in which case the incomplete result is returned with it.
func (s *Session) Collect(ctx context.Context) (*Result, error) {
	if !s.begin() {
		return nil, ErrConsumed
	}
	start := time.Now()
	defer s.finish(start)

	acc := accumulate.New(s.accOpts...)
	f := newFolder(acc)
	how, err := s.run(ctx, func(v dispatch.Value, err error) bool {
		if err != nil {
			v, err = s.salvage(v, err)
			if err != nil {
				slog.Warn("dropping stream value", "session", s.id, "kind", s.kind, "tag", v.Tag, "error", err)
				return true
			}
		}
		if err := s.spec.fold(f, v); err != nil {
			debug.Log(debug.Session, "value not folded", "session", s.id, "tag", v.Tag, "error", err)
		}
		return !f.done
	})

	var fatal error
	switch how {
	case endSentinel:
		f.sentinel()
	case endFatal:
		fatal = err
	}

	var result *Result
	if f.done {
		result = acc.Finish(f.status, f.reason)
	} else {
		if err != nil && fatal == nil {
			debug.Log(debug.Session, "stream cut short", "session", s.id, "error", err)
		}
		result = acc.Finish(api.ResponseStatusIncomplete, ReasonConnectionClosed)
	}

	observability.SessionResultsTotal.WithLabelValues(s.kind.String(), string(result.Status)).Inc()
	debug.Log(debug.Session, "session collected", "session", s.id, "status", result.Status,
		"incomplete", result.Incomplete, "reason", result.Reason)
	s.save(ctx, result)
	return result, fatal
}

// salvage folds values that only lack members their shape requires: the
// payload is decoded without validation and missing members keep their
// zero values. Any other decode error drops the value.
func (s *Session) salvage(v dispatch.Value, err error) (dispatch.Value, error) {
	if v.Shape == "" || !errors.Is(err, schema.ErrMissingField) {
		return v, err
	}
	data, derr := s.spec.decode(v.Raw)
	if derr != nil {
		return v, errors.Join(err, derr)
	}
	debug.Log(debug.Session, "folding value with missing members", "session", s.id, "tag", v.Tag, "error", err)
	v.Data = data
	return v, nil
}

func (s *Session) save(ctx context.Context, result *Result) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("encoding recorded result", "session", s.id, "error", err)
	}
	rec := &recorder.Recording{
		ID:         s.id,
		Kind:       s.kind.String(),
		Protocol:   s.protocol,
		Frames:     s.frames,
		Status:     string(result.Status),
		Incomplete: result.Incomplete,
		Result:     data,
		CreatedAt:  time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.store.Save(ctx, rec); err != nil {
		slog.Warn("saving recording", "session", s.id, "error", err)
		return
	}
	debug.Log(debug.Recorder, "session recorded", "session", s.id, "frames", len(s.frames))
}
