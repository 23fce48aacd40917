// Package mockstream serves deterministic scripted streams for the four
// operation kinds: responses and chat completions over SSE, realtime over
// WebSocket and assistants runs over SSE with event names.
//
// Every route accepts these query parameters:
//
//	tool=true      generate a get_weather function call instead of text
//	truncate=N     send only the first N frames, then drop the connection
//	shuffle=SEED   permute runs of sequenced deltas (responses only)
package mockstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rhuss/streamwire/pkg/api"
	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/frame"
	"github.com/rhuss/streamwire/pkg/observability"
)

const defaultModel = "mock-model"

// Option configures a Server.
type Option func(*Server)

// WithChunkDelay pauses between frames.
func WithChunkDelay(d time.Duration) Option {
	return func(s *Server) { s.chunkDelay = d }
}

// WithLogger sets the request logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTokens sets the text fragments of generated messages.
func WithTokens(tokens ...string) Option {
	return func(s *Server) { s.tokens = tokens }
}

// Server is the mock stream HTTP handler.
type Server struct {
	tokens     []string
	chunkDelay time.Duration
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	chain      Middleware
}

// New creates a Server with its routes registered.
func New(opts ...Option) *Server {
	s := &Server{tokens: DefaultTokens}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	s.chain = Chain(RequestID(), Logging(s.logger), Recovery())
	s.mux = http.NewServeMux()
	s.route("POST /v1/responses", "responses", s.handleResponses)
	s.route("POST /v1/chat/completions", "chat", s.handleChat)
	s.route("GET /v1/realtime", "realtime", s.handleRealtime)
	s.route("POST /v1/threads/runs", "assistants", s.handleAssistants)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	s.route("/", "not_found", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, api.NewNotFoundError(fmt.Sprintf("no mock stream at %s %s", r.Method, r.URL.Path)))
	})
	return s
}

func (s *Server) route(pattern, name string, h http.HandlerFunc) {
	s.mux.Handle(pattern, observability.MetricsMiddleware(name, s.chain(h)))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// request holds the parts of a request body the scripts use. Everything
// else is ignored.
type request struct {
	Model string `json:"model"`
}

// streamParams are the per-request script controls.
type streamParams struct {
	scenario Scenario
	truncate int
	shuffle  *uint64
}

func (s *Server) params(r *http.Request) (streamParams, *api.APIError) {
	p := streamParams{
		scenario: Scenario{Model: defaultModel, Tokens: s.tokens},
		truncate: -1,
	}

	if r.Body != nil && r.Method == http.MethodPost {
		var req request
		err := json.NewDecoder(r.Body).Decode(&req)
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			return p, api.NewInvalidRequestError("", "invalid request body: "+err.Error())
		case req.Model != "":
			p.scenario.Model = req.Model
		}
	}

	q := r.URL.Query()
	if v := q.Get("tool"); v != "" {
		tool, err := strconv.ParseBool(v)
		if err != nil {
			return p, api.NewInvalidRequestError("tool", "tool must be a boolean")
		}
		p.scenario.Tool = tool
	}
	if v := q.Get("truncate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, api.NewInvalidRequestError("truncate", "truncate must be a non-negative integer")
		}
		p.truncate = n
	}
	if v := q.Get("shuffle"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return p, api.NewInvalidRequestError("shuffle", "shuffle must be an unsigned integer seed")
		}
		p.shuffle = &seed
	}
	return p, nil
}

// prepare applies shuffle and truncation. It reports whether the script
// was cut short.
func (p streamParams) prepare(sc *script) bool {
	if p.shuffle != nil {
		sc.shuffle(*p.shuffle)
	}
	return sc.truncate(p.truncate)
}

func writeError(w http.ResponseWriter, status int, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	p, apiErr := s.params(r)
	if apiErr != nil {
		writeError(w, http.StatusBadRequest, apiErr)
		return
	}
	sc := responsesScript(p.scenario)
	s.serveSSE(w, r, sc, p, func(f frame.Frame) bool {
		return api.StreamEventType(f.Event).IsTerminal()
	}, false)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	p, apiErr := s.params(r)
	if apiErr != nil {
		writeError(w, http.StatusBadRequest, apiErr)
		return
	}
	s.serveSSE(w, r, chatScript(p.scenario), p, nil, true)
}

func (s *Server) handleAssistants(w http.ResponseWriter, r *http.Request) {
	p, apiErr := s.params(r)
	if apiErr != nil {
		writeError(w, http.StatusBadRequest, apiErr)
		return
	}
	s.serveSSE(w, r, assistantsScript(p.scenario), p, nil, false)
}

// serveSSE writes the script as SSE records. terminal marks the frame the
// writer follows with [DONE]; done writes [DONE] after the last frame
// instead. A truncated script ends without either.
func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, sc *script, p streamParams, terminal func(frame.Frame) bool, done bool) {
	if sc.err != nil {
		writeError(w, http.StatusInternalServerError, api.NewServerError(sc.err.Error()))
		return
	}
	truncated := p.prepare(sc)

	sw := frame.NewSSEWriter(w, terminal)
	ctx := r.Context()
	for i, f := range sc.frames() {
		if i > 0 && !s.pause(ctx) {
			return
		}
		if err := sw.WriteFrame(f); err != nil {
			debug.Log(debug.Mock, "sse write failed", "path", r.URL.Path, "frame", i, "error", err)
			return
		}
	}
	if truncated {
		debug.Log(debug.Mock, "stream truncated", "path", r.URL.Path, "frames", len(sc.steps))
		return
	}
	if done {
		if err := sw.WriteDone(); err != nil {
			debug.Log(debug.Mock, "sse write failed", "path", r.URL.Path, "error", err)
		}
	}
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	p, apiErr := s.params(r)
	if apiErr != nil {
		writeError(w, http.StatusBadRequest, apiErr)
		return
	}
	sc := realtimeScript(p.scenario)
	if sc.err != nil {
		writeError(w, http.StatusInternalServerError, api.NewServerError(sc.err.Error()))
		return
	}
	truncated := p.prepare(sc)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ws := frame.NewWebSocketWriter(conn)
	ctx := r.Context()
	for i, f := range sc.frames() {
		if i > 0 && !s.pause(ctx) {
			return
		}
		if err := ws.WriteFrame(ctx, f); err != nil {
			debug.Log(debug.Mock, "websocket write failed", "frame", i, "error", err)
			return
		}
	}
	if truncated {
		debug.Log(debug.Mock, "stream truncated", "path", r.URL.Path, "frames", len(sc.steps))
		return
	}
	if err := ws.Close(); err != nil {
		debug.Log(debug.Mock, "websocket close failed", "error", err)
	}
}

// pause waits the configured chunk delay. It reports false when the
// client went away.
func (s *Server) pause(ctx context.Context) bool {
	if s.chunkDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.chunkDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
