package recorder

import (
	"context"
	"io"

	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/frame"
)

// ReplayReader yields the frames of a recording as a frame.Reader.
type ReplayReader struct {
	protocol string
	frames   []frame.Frame
	pos      int
	closed   bool
}

var _ frame.Reader = (*ReplayReader)(nil)

// Replay returns a reader over the recorded frames. A recorded sentinel
// frame ends the replay with frame.ErrDone, like the live stream did.
func Replay(rec *Recording) *ReplayReader {
	debug.Log(debug.Recorder, "replaying recording", "id", rec.ID, "frames", len(rec.Frames))
	return &ReplayReader{protocol: rec.Protocol, frames: rec.Frames}
}

// Protocol returns the protocol the frames were recorded from.
func (r *ReplayReader) Protocol() string { return r.protocol }

// Next returns the next recorded frame.
func (r *ReplayReader) Next(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	if r.closed || r.pos >= len(r.frames) {
		return frame.Frame{}, io.EOF
	}
	f := r.frames[r.pos]
	r.pos++
	if string(f.Data) == frame.Sentinel {
		r.closed = true
		return frame.Frame{}, frame.ErrDone
	}
	return f, nil
}

// Close ends the replay.
func (r *ReplayReader) Close() error {
	r.closed = true
	return nil
}
