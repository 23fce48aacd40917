package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rhuss/streamwire/pkg/api"
	"github.com/rhuss/streamwire/pkg/frame"
	"github.com/rhuss/streamwire/pkg/mockstream"
	"github.com/rhuss/streamwire/pkg/recorder"
	"github.com/rhuss/streamwire/pkg/recorder/memory"
	"github.com/rhuss/streamwire/pkg/schema"
)

const (
	helloDeltas = "data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hel\"}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"lo\"}\n\n"
	responseCompleted = "data: {\"type\":\"response.completed\",\"sequence_number\":3," +
		"\"response\":{\"id\":\"resp_1\",\"object\":\"response\",\"status\":\"completed\",\"output\":[]}}\n\n"
	doneRecord = "data: [DONE]\n\n"

	mockText      = "Hello, nice day!"
	mockArguments = `{"location":"San Francisco","unit":"celsius"}`
)

func sseSession(t *testing.T, input string, kind Kind, opts ...Option) *Session {
	t.Helper()
	s, err := New(frame.NewSSEReader(strings.NewReader(input)), kind, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func collect(t *testing.T, s *Session) *Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := s.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	return result
}

func TestCollectCompleted(t *testing.T) {
	s := sseSession(t, helloDeltas+responseCompleted+doneRecord, KindResponses)
	result := collect(t, s)

	if got := result.Text(); got != "Hello" {
		t.Errorf("Text() = %q, want %q", got, "Hello")
	}
	if result.Incomplete {
		t.Errorf("Incomplete = true (reason %q), want false", result.Reason)
	}
	if result.Status != api.ResponseStatusCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
	if result.Response == nil || result.Response.ID != "resp_1" {
		t.Errorf("Response = %+v, want resp_1", result.Response)
	}
}

func TestCollectConnectionClosed(t *testing.T) {
	s := sseSession(t, helloDeltas, KindResponses)
	result := collect(t, s)

	if got := result.Text(); got != "Hello" {
		t.Errorf("Text() = %q, want %q", got, "Hello")
	}
	if !result.Incomplete {
		t.Error("Incomplete = false, want true")
	}
	if result.Reason != ReasonConnectionClosed {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonConnectionClosed)
	}
	if result.Status != api.ResponseStatusIncomplete {
		t.Errorf("Status = %q, want incomplete", result.Status)
	}
}

func TestCollectReordersSequencedDeltas(t *testing.T) {
	input := "data: {\"type\":\"response.output_text.delta\",\"sequence_number\":2,\"item_id\":\"msg_1\",\"output_index\":0,\"content_index\":0,\"delta\":\"lo\"}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"sequence_number\":1,\"item_id\":\"msg_1\",\"output_index\":0,\"content_index\":0,\"delta\":\"Hel\"}\n\n" +
		responseCompleted + doneRecord
	result := collect(t, sseSession(t, input, KindResponses))
	if got := result.Text(); got != "Hello" {
		t.Errorf("Text() = %q, want %q", got, "Hello")
	}
}

func TestEventsArrivalOrder(t *testing.T) {
	s := sseSession(t, helloDeltas+responseCompleted+doneRecord, KindResponses)

	var tags []string
	for v, err := range s.Events(context.Background()) {
		tags = append(tags, v.Tag)
		if v.Tag == string(api.EventOutputTextDelta) && !errors.Is(err, schema.ErrMissingField) {
			t.Errorf("delta error = %v, want missing field", err)
		}
		if v.Tag == string(api.EventResponseCompleted) && err != nil {
			t.Errorf("completed error = %v, want nil", err)
		}
	}
	want := []string{"response.output_text.delta", "response.output_text.delta", "response.completed"}
	if diff := cmp.Diff(want, tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestEventsConnectionClosed(t *testing.T) {
	s := sseSession(t, helloDeltas, KindResponses)

	var last error
	n := 0
	for _, err := range s.Events(context.Background()) {
		n++
		last = err
	}
	if n != 3 {
		t.Errorf("yielded %d values, want 3", n)
	}
	if !errors.Is(last, ErrConnectionClosed) {
		t.Errorf("last error = %v, want ErrConnectionClosed", last)
	}
}

func TestEventsStopEarly(t *testing.T) {
	s := sseSession(t, helloDeltas+responseCompleted+doneRecord, KindResponses)
	n := 0
	for range s.Events(context.Background()) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("yielded %d values, want 1", n)
	}
}

func TestSinglePass(t *testing.T) {
	s := sseSession(t, helloDeltas+responseCompleted, KindResponses)
	collect(t, s)

	if _, err := s.Collect(context.Background()); !errors.Is(err, ErrConsumed) {
		t.Errorf("second Collect() error = %v, want ErrConsumed", err)
	}
	for _, err := range s.Events(context.Background()) {
		if !errors.Is(err, ErrConsumed) {
			t.Errorf("Events() after Collect yielded %v, want ErrConsumed", err)
		}
	}
}

func TestCollectChatError(t *testing.T) {
	input := "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Hi\"}}]}\n\n" +
		"data: {\"error\":{\"message\":\"backend exploded\",\"type\":\"server_error\",\"code\":500}}\n\n"
	result := collect(t, sseSession(t, input, KindChatCompletions))

	if result.Status != api.ResponseStatusFailed {
		t.Errorf("Status = %q, want failed", result.Status)
	}
	if result.Error == nil || result.Error.Message != "backend exploded" || result.Error.Code != "500" {
		t.Errorf("Error = %+v, want backend exploded (500)", result.Error)
	}
	if got := result.Text(); got != "Hi" {
		t.Errorf("Text() = %q, want Hi", got)
	}
}

func TestCollectChatLengthFinish(t *testing.T) {
	input := "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Once upon\"}}]}\n\n" +
		"data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"length\"}]}\n\n" +
		doneRecord
	result := collect(t, sseSession(t, input, KindChatCompletions))

	if result.Status != api.ResponseStatusIncomplete || result.Reason != "max_output_tokens" {
		t.Errorf("Status, Reason = %q, %q; want incomplete, max_output_tokens", result.Status, result.Reason)
	}
	if !result.Incomplete {
		t.Error("Incomplete = false, want true")
	}
	if got := result.Text(); got != "Once upon" {
		t.Errorf("Text() = %q, want %q", got, "Once upon")
	}
}

func TestCollectEventTooLarge(t *testing.T) {
	input := "data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hel\"}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"" + strings.Repeat("x", 256) + "\"}\n\n"
	s, err := New(frame.NewSSEReader(strings.NewReader(input), frame.WithMaxEventSize(128)), KindResponses)
	if err != nil {
		t.Fatal(err)
	}

	result, err := s.Collect(context.Background())
	if !errors.Is(err, frame.ErrEventTooLarge) {
		t.Fatalf("Collect() error = %v, want ErrEventTooLarge", err)
	}
	if result == nil || !result.Incomplete {
		t.Fatalf("result = %+v, want an incomplete result", result)
	}
	if got := result.Text(); got != "Hel" {
		t.Errorf("Text() = %q, want Hel", got)
	}
}

func TestReadTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	go func() {
		pw.Write([]byte("data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hel\"}\n\n"))
	}()

	s, err := New(frame.NewSSEReader(pr), KindResponses, WithReadTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	result := collect(t, s)

	if !result.Incomplete || result.Reason != ReasonConnectionClosed {
		t.Errorf("Incomplete, Reason = %v, %q; want true, %q", result.Incomplete, result.Reason, ReasonConnectionClosed)
	}
	if got := result.Text(); got != "Hel" {
		t.Errorf("Text() = %q, want Hel", got)
	}
}

func TestRecordAndReplay(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		kind           Kind
		wantTerminated bool
	}{
		{"responses terminal event", helloDeltas + responseCompleted + doneRecord, KindResponses, false},
		{
			"chat sentinel",
			"data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Hi\"}}]}\n\n" +
				"data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n" +
				doneRecord,
			KindChatCompletions,
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New(10)
			s := sseSession(t, tt.input, tt.kind, WithRecorder(store))
			original := collect(t, s)

			rec, err := store.Get(context.Background(), s.ID())
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if rec.Kind != tt.kind.String() || rec.Protocol != frame.ProtocolSSE {
				t.Errorf("recording kind, protocol = %s, %s; want %s, sse", rec.Kind, rec.Protocol, tt.kind)
			}
			if rec.Terminated() != tt.wantTerminated {
				t.Errorf("Terminated() = %v, want %v", rec.Terminated(), tt.wantTerminated)
			}
			if rec.Status != string(original.Status) {
				t.Errorf("recorded status = %q, want %q", rec.Status, original.Status)
			}

			kind, err := ParseKind(rec.Kind)
			if err != nil {
				t.Fatal(err)
			}
			replayed, err := New(recorder.Replay(rec), kind)
			if err != nil {
				t.Fatal(err)
			}
			got := collect(t, replayed)
			if diff := cmp.Diff(original, got); diff != "" {
				t.Errorf("replayed result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindResponses, KindChatCompletions, KindRealtime, KindAssistants} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", k.String(), got, err, k)
		}
	}
	if _, err := ParseKind("embeddings"); err == nil {
		t.Error("ParseKind(embeddings) succeeded, want error")
	}
	if _, err := New(frame.NewSSEReader(strings.NewReader("")), Kind(99)); err == nil {
		t.Error("New() with unknown kind succeeded, want error")
	}
}

// mockSession opens a session against the mock stream server.
func mockSession(t *testing.T, srv *httptest.Server, kind Kind, query string) *Session {
	t.Helper()
	ctx := context.Background()

	var r frame.Reader
	switch kind {
	case KindRealtime:
		conn, err := frame.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/realtime?"+query, nil)
		if err != nil {
			t.Fatalf("Dial() error: %v", err)
		}
		r = frame.NewWebSocketReader(conn)
	default:
		path := map[Kind]string{
			KindResponses:       "/v1/responses",
			KindChatCompletions: "/v1/chat/completions",
			KindAssistants:      "/v1/threads/runs",
		}[kind]
		resp, err := http.Post(srv.URL+path+"?"+query, "application/json", strings.NewReader(`{"model":"m"}`))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		r = frame.NewSSEReader(resp.Body)
	}

	s, err := New(r, kind)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCollectMockStreams(t *testing.T) {
	srv := httptest.NewServer(mockstream.New())
	t.Cleanup(srv.Close)

	for _, kind := range []Kind{KindResponses, KindChatCompletions, KindRealtime, KindAssistants} {
		t.Run(kind.String(), func(t *testing.T) {
			result := collect(t, mockSession(t, srv, kind, ""))

			if got := result.Text(); got != mockText {
				t.Errorf("Text() = %q, want %q", got, mockText)
			}
			if result.Status != api.ResponseStatusCompleted || result.Incomplete {
				t.Errorf("Status = %q, Incomplete = %v; want completed, false", result.Status, result.Incomplete)
			}
			if result.Usage == nil || result.Usage.OutputTokens != len(mockstream.DefaultTokens) {
				t.Errorf("Usage = %+v, want %d output tokens", result.Usage, len(mockstream.DefaultTokens))
			}
			if len(result.Outputs) != 1 {
				t.Fatalf("outputs = %d, want 1", len(result.Outputs))
			}
		})
	}
}

func TestCollectMockToolCalls(t *testing.T) {
	srv := httptest.NewServer(mockstream.New())
	t.Cleanup(srv.Close)

	tests := []struct {
		kind    Kind
		content int
	}{
		{KindResponses, 0},
		{KindChatCompletions, 1},
		{KindRealtime, 0},
		{KindAssistants, 0},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			result := collect(t, mockSession(t, srv, tt.kind, "tool=true"))

			if result.Status != api.ResponseStatusCompleted {
				t.Errorf("Status = %q, want completed", result.Status)
			}
			if len(result.Outputs) == 0 {
				t.Fatal("no outputs")
			}
			v, ok := result.Outputs[0].Value(tt.content, api.FieldArguments)
			if !ok {
				t.Fatalf("no arguments value in output 0: %+v", result.Outputs[0].Values)
			}
			if v.Text != mockArguments {
				t.Errorf("arguments = %q, want %q", v.Text, mockArguments)
			}
			if v.Incomplete {
				t.Error("arguments flagged incomplete")
			}
		})
	}
}

func TestCollectMockShuffled(t *testing.T) {
	srv := httptest.NewServer(mockstream.New())
	t.Cleanup(srv.Close)

	for _, seed := range []string{"1", "7", "42"} {
		result := collect(t, mockSession(t, srv, KindResponses, "shuffle="+seed))
		if got := result.Text(); got != mockText {
			t.Errorf("seed %s: Text() = %q, want %q", seed, got, mockText)
		}
	}
}

func TestCollectMockTruncated(t *testing.T) {
	srv := httptest.NewServer(mockstream.New())
	t.Cleanup(srv.Close)

	tests := []struct {
		kind  Kind
		query string
	}{
		// created, in_progress, item added, part added, two deltas
		{KindResponses, "truncate=6"},
		// created, item added, part added, two deltas
		{KindRealtime, "truncate=5"},
		// role chunk, two content chunks
		{KindChatCompletions, "truncate=3"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			result := collect(t, mockSession(t, srv, tt.kind, tt.query))

			if got := result.Text(); got != "Hello, " {
				t.Errorf("Text() = %q, want %q", got, "Hello, ")
			}
			if !result.Incomplete || result.Reason != ReasonConnectionClosed {
				t.Errorf("Incomplete, Reason = %v, %q; want true, %q", result.Incomplete, result.Reason, ReasonConnectionClosed)
			}
		})
	}
}

func TestCollectRejectsHugeContentIndex(t *testing.T) {
	input := "data: {\"type\":\"response.content_part.added\",\"item_id\":\"msg_1\",\"output_index\":0," +
		"\"content_index\":1000000000,\"part\":{\"type\":\"output_text\",\"text\":\"\"}}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"item_id\":\"msg_1\",\"output_index\":0," +
		"\"content_index\":2000000000,\"delta\":\"boom\"}\n\n" +
		helloDeltas + responseCompleted + doneRecord
	result := collect(t, sseSession(t, input, KindResponses))

	if got := result.Text(); got != "Hello" {
		t.Errorf("Text() = %q, want %q", got, "Hello")
	}
	for _, item := range result.Items {
		if item.Message != nil && len(item.Message.Output) > 1 {
			t.Errorf("message parts = %d, want at most 1", len(item.Message.Output))
		}
	}
}
