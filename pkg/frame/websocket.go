package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/observability"
)

// handshakeTimeout bounds the WebSocket opening handshake.
const handshakeTimeout = 30 * time.Second

// writeWait bounds a single WebSocket write when ctx has no deadline.
const writeWait = 10 * time.Second

// Dial opens a WebSocket connection.
func Dial(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	debug.Log(debug.Frames, "websocket connected", "url", url)
	return conn, nil
}

// WebSocketReader yields one frame per text message. Binary messages are
// skipped. A close frame or a dropped connection ends the stream.
type WebSocketReader struct {
	conn *websocket.Conn

	mu  sync.Mutex
	err error
}

var _ Reader = (*WebSocketReader)(nil)

// NewWebSocketReader reads messages from conn.
func NewWebSocketReader(conn *websocket.Conn, opts ...Option) *WebSocketReader {
	o := newOptions(opts)
	conn.SetReadLimit(int64(o.maxEventSize))
	return &WebSocketReader{conn: conn}
}

type wsResult struct {
	kind int
	data []byte
	err  error
}

// Next returns the next text message. A blocked read is abandoned and the
// connection closed when ctx is cancelled.
func (r *WebSocketReader) Next(ctx context.Context) (Frame, error) {
	for {
		if err := r.sticky(); err != nil {
			return Frame{}, err
		}

		ch := make(chan wsResult, 1)
		go func() {
			kind, data, err := r.conn.ReadMessage()
			ch <- wsResult{kind, data, err}
		}()

		var res wsResult
		select {
		case <-ctx.Done():
			_ = r.conn.Close()
			return Frame{}, r.setErr(ctx.Err())
		case res = <-ch:
		}

		if res.err != nil {
			if websocket.IsCloseError(res.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debug.Log(debug.Frames, "websocket closed by peer")
				return Frame{}, r.setErr(io.EOF)
			}
			if errors.Is(res.err, websocket.ErrReadLimit) {
				return Frame{}, r.setErr(ErrEventTooLarge)
			}
			return Frame{}, r.setErr(fmt.Errorf("read websocket: %w", res.err))
		}
		if res.kind != websocket.TextMessage {
			debug.Log(debug.Frames, "non-text websocket message skipped", "type", res.kind, "bytes", len(res.data))
			continue
		}

		observability.FramesTotal.WithLabelValues(ProtocolWebSocket).Inc()
		debug.Payload(debug.Frames, "websocket message", res.data)
		return Frame{Data: res.data}, nil
	}
}

// Close closes the connection.
func (r *WebSocketReader) Close() error {
	r.setErr(io.EOF)
	return r.conn.Close()
}

func (r *WebSocketReader) sticky() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *WebSocketReader) setErr(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
	return r.err
}

// WebSocketWriter writes frames as text messages. It is safe for
// concurrent use.
type WebSocketWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketWriter writes to conn.
func NewWebSocketWriter(conn *websocket.Conn) *WebSocketWriter {
	return &WebSocketWriter{conn: conn}
}

// WriteFrame sends f.Data as one text message.
func (w *WebSocketWriter) WriteFrame(ctx context.Context, f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, f.Data); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}
	return nil
}

// Close sends a normal closure frame. The caller still owns the connection.
func (w *WebSocketWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
