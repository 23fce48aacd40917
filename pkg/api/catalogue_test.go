package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/rhuss/streamwire/pkg/dispatch"
	"github.com/rhuss/streamwire/pkg/schema"
)

func TestCatalogue(t *testing.T) {
	reg := Catalogue()
	if !reg.Frozen() {
		t.Fatal("Catalogue() is not frozen")
	}
	if Catalogue() != reg {
		t.Error("Catalogue() built twice")
	}
	for _, set := range []string{SetResponsesEvents, SetChatChunks, SetRealtimeEvents, SetAssistantsEvents, SetObjects} {
		d, ok := Dispatcher(set)
		if !ok || d == nil {
			t.Errorf("Dispatcher(%q) missing", set)
		}
	}
	if _, ok := Dispatcher("nope"); ok {
		t.Error(`Dispatcher("nope") found`)
	}
	for _, set := range []string{SetToolChoice, SetModelID, SetAutoOrInt, SetFilter, SetMessageContent, SetContentPart, SetResponseInput} {
		if _, ok := reg.Untagged(set); !ok {
			t.Errorf("untagged set %q missing", set)
		}
	}
}

func TestEveryDeltaRuleHasShape(t *testing.T) {
	responses := ResponsesDispatcher().Set()
	for _, p := range responsesPairs {
		for _, tag := range []StreamEventType{p.delta, p.done} {
			if _, ok := responses.Lookup(string(tag)); !ok {
				t.Errorf("responses set has no shape for %q", tag)
			}
		}
	}
	realtime := RealtimeDispatcher().Set()
	for _, p := range realtimePairs {
		for _, tag := range []StreamEventType{p.delta, p.done} {
			if _, ok := realtime.Lookup(string(tag)); !ok {
				t.Errorf("realtime set has no shape for %q", tag)
			}
		}
	}
}

func TestLookupDeltaRule(t *testing.T) {
	tests := []struct {
		typ    StreamEventType
		lookup func(StreamEventType) (DeltaRule, bool)
		want   DeltaRule
		ok     bool
	}{
		{EventOutputTextDelta, LookupDeltaRule, DeltaRule{Field: FieldText, Phase: PhaseDelta, Scope: ScopeContent}, true},
		{EventReasoningSummaryTextDone, LookupDeltaRule, DeltaRule{Field: FieldSummary, Phase: PhaseDone, Scope: ScopeSummary, Final: "text"}, true},
		{EventFunctionCallArgsDone, LookupDeltaRule, DeltaRule{Field: FieldArguments, Phase: PhaseDone, Scope: ScopeItem, Final: "arguments"}, true},
		{EventOutputAudioDone, LookupDeltaRule, DeltaRule{Field: FieldAudio, Phase: PhaseDone, Scope: ScopeContent}, true},
		{EventOutputItemAdded, LookupDeltaRule, DeltaRule{}, false},
		{RealtimeTextDelta, LookupDeltaRule, DeltaRule{}, false},
		{RealtimeAudioTranscriptDelta, LookupRealtimeDeltaRule, DeltaRule{Field: FieldTranscript, Phase: PhaseDelta, Scope: ScopeContent}, true},
		{RealtimeOutputAudioTranscriptDone, LookupRealtimeDeltaRule, DeltaRule{Field: FieldTranscript, Phase: PhaseDone, Scope: ScopeContent, Final: "transcript"}, true},
	}
	for _, tt := range tests {
		got, ok := tt.lookup(tt.typ)
		if ok != tt.ok || got != tt.want {
			t.Errorf("lookup(%q) = %+v, %v, want %+v, %v", tt.typ, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStreamEventDispatch(t *testing.T) {
	summary := "thinking"
	tests := []struct {
		name  string
		event StreamEvent
		shape string
	}{
		{
			name:  "text delta at index zero",
			event: StreamEvent{Type: EventOutputTextDelta, ItemID: "msg_1", Delta: "Hel"},
			shape: "ResponseOutputTextDeltaEvent",
		},
		{
			name:  "empty text done",
			event: StreamEvent{Type: EventOutputTextDone, SequenceNumber: 4, ItemID: "msg_1"},
			shape: "ResponseOutputTextDoneEvent",
		},
		{
			name:  "function arguments done",
			event: StreamEvent{Type: EventFunctionCallArgsDone, SequenceNumber: 7, ItemID: "fc_1", OutputIndex: 1, Arguments: `{"city":"Paris"}`},
			shape: "ResponseFunctionCallArgumentsDoneEvent",
		},
		{
			name:  "reasoning summary delta",
			event: StreamEvent{Type: EventReasoningSummaryTextDelta, SequenceNumber: 2, ItemID: "rs_1", SummaryIndex: 1, Delta: summary},
			shape: "ResponseReasoningSummaryTextDeltaEvent",
		},
		{
			name:  "audio done without final value",
			event: StreamEvent{Type: EventOutputAudioDone, SequenceNumber: 9, ItemID: "msg_2"},
			shape: "ResponseOutputAudioDoneEvent",
		},
		{
			name: "response created",
			event: StreamEvent{Type: EventResponseCreated, Response: &Response{
				ID: "resp_1", Object: ObjectResponse, Status: ResponseStatusInProgress, Model: "gpt-4.1", Output: []Item{},
			}},
			shape: "ResponseCreatedEvent",
		},
		{
			name: "output item added",
			event: StreamEvent{Type: EventOutputItemAdded, SequenceNumber: 1, Item: &Item{
				ID: "msg_1", Type: ItemTypeMessage, Status: ItemStatusInProgress,
				Message: &MessageData{Role: RoleAssistant},
			}},
			shape: "ResponseOutputItemAddedEvent",
		},
		{
			name: "content part added",
			event: StreamEvent{Type: EventContentPartAdded, SequenceNumber: 2, ItemID: "msg_1",
				Part: &OutputContentPart{Type: PartOutputText}},
			shape: "ResponseContentPartAddedEvent",
		},
		{
			name:  "tool progress",
			event: StreamEvent{Type: EventMCPCallInProgress, SequenceNumber: 3, ItemID: "mcp_1", OutputIndex: 2},
			shape: "ResponseMcpCallInProgressEvent",
		},
		{
			name:  "error",
			event: StreamEvent{Type: EventError, SequenceNumber: 5, Code: "rate_limit_exceeded", Message: "slow down"},
			shape: "ResponseErrorEvent",
		},
	}

	d := ResponsesDispatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			v, err := d.Dispatch(data)
			if err != nil {
				t.Fatalf("Dispatch(%s) error: %v", data, err)
			}
			if v.Shape != tt.shape {
				t.Errorf("Shape = %q, want %q", v.Shape, tt.shape)
			}
			got, ok := dispatch.As[StreamEvent](v)
			if !ok {
				t.Fatalf("Data = %T, want StreamEvent", v.Data)
			}
			if diff := cmp.Diff(tt.event, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("decoded event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStreamEventRequiredMembers(t *testing.T) {
	data, err := json.Marshal(StreamEvent{Type: EventOutputTextDelta, ItemID: "msg_1"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"response.output_text.delta","sequence_number":0,"item_id":"msg_1","output_index":0,"content_index":0,"delta":""}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestResponsesDispatchErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
		tag     string
		unknown bool
	}{
		{
			name:    "missing item_id",
			payload: `{"type":"response.output_text.delta","sequence_number":3,"output_index":0,"content_index":0,"delta":"x"}`,
			wantErr: schema.ErrMissingField,
			tag:     "response.output_text.delta",
		},
		{
			name:    "string sequence number",
			payload: `{"type":"response.output_text.delta","sequence_number":"3","item_id":"m","output_index":0,"content_index":0,"delta":"x"}`,
			wantErr: schema.ErrTypeMismatch,
			tag:     "response.output_text.delta",
		},
		{
			name:    "nested response without status",
			payload: `{"type":"response.completed","sequence_number":9,"response":{"id":"resp_1"}}`,
			wantErr: schema.ErrTypeMismatch,
			tag:     "response.completed",
		},
		{
			name:    "malformed",
			payload: `{"type":"response.output_text.delta",`,
			wantErr: schema.ErrMalformed,
		},
		{
			name:    "unregistered tag",
			payload: `{"type":"response.future_event","sequence_number":1}`,
			tag:     "response.future_event",
			unknown: true,
		},
		{
			name:    "absent tag",
			payload: `{"sequence_number":1}`,
			unknown: true,
		},
		{
			name:    "non-string tag",
			payload: `{"type":7}`,
			unknown: true,
		},
	}

	d := ResponsesDispatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := d.Dispatch([]byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Dispatch() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Dispatch() error: %v", err)
			}
			if v.Tag != tt.tag {
				t.Errorf("Tag = %q, want %q", v.Tag, tt.tag)
			}
			if v.IsUnknown() != tt.unknown {
				t.Errorf("IsUnknown() = %v, want %v", v.IsUnknown(), tt.unknown)
			}
			if string(v.Raw) != tt.payload {
				t.Errorf("Raw = %s, want %s", v.Raw, tt.payload)
			}
		})
	}
}

func TestUnknownEventEncodesVerbatim(t *testing.T) {
	payload := `{"type":"acme:telemetry","sequence_number":4,"cpu":0.25}`
	d := ResponsesDispatcher()
	v, err := d.Dispatch([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	out, err := d.Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != payload {
		t.Errorf("Encode() = %s, want %s", out, payload)
	}
	if !IsExtensionEvent(StreamEventType(v.Tag)) {
		t.Errorf("IsExtensionEvent(%q) = false", v.Tag)
	}
}

func TestRealtimeEventDispatch(t *testing.T) {
	tests := []struct {
		name  string
		event RealtimeEvent
		shape string
	}{
		{
			name:  "beta transcript delta",
			event: RealtimeEvent{Type: RealtimeAudioTranscriptDelta, EventID: "event_1", ResponseID: "resp_1", ItemID: "item_1", Delta: "Hel"},
			shape: "RealtimeResponseAudioTranscriptDeltaEvent",
		},
		{
			name:  "GA text done",
			event: RealtimeEvent{Type: RealtimeOutputTextDone, ResponseID: "resp_1", ItemID: "item_1", ContentIndex: 1, Text: "Hello"},
			shape: "RealtimeResponseOutputTextDoneEvent",
		},
		{
			name:  "function call arguments done",
			event: RealtimeEvent{Type: RealtimeFunctionCallArgsDone, ResponseID: "resp_1", ItemID: "item_2", OutputIndex: 1, CallID: "call_1", Arguments: `{}`},
			shape: "RealtimeResponseFunctionCallArgumentsDoneEvent",
		},
		{
			name: "response done",
			event: RealtimeEvent{Type: RealtimeResponseDone, Response: &RealtimeResponse{
				ID: "resp_1", Object: ObjectRealtimeResponse, Status: ResponseStatusCompleted, Output: []Item{},
			}},
			shape: "RealtimeResponseDoneEvent",
		},
		{
			name:  "session created",
			event: RealtimeEvent{Type: RealtimeSessionCreated, Session: json.RawMessage(`{"id":"sess_1"}`)},
			shape: "RealtimeSessionCreatedEvent",
		},
		{
			name:  "error",
			event: RealtimeEvent{Type: RealtimeError, Error: &APIError{Type: ErrorTypeInvalidRequest, Message: "bad"}},
			shape: "RealtimeErrorEvent",
		},
	}

	d := RealtimeDispatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatal(err)
			}
			v, err := d.Dispatch(data)
			if err != nil {
				t.Fatalf("Dispatch(%s) error: %v", data, err)
			}
			if v.Shape != tt.shape {
				t.Errorf("Shape = %q, want %q", v.Shape, tt.shape)
			}
			got, _ := dispatch.As[RealtimeEvent](v)
			if diff := cmp.Diff(tt.event, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("decoded event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRealtimeResponseError(t *testing.T) {
	r := &RealtimeResponse{
		Status:        ResponseStatusIncomplete,
		StatusDetails: json.RawMessage(`{"type":"incomplete","reason":"max_output_tokens"}`),
	}
	if got := r.Error(); got == nil || got.Code != "max_output_tokens" {
		t.Errorf("Error() = %v, want code max_output_tokens", got)
	}
	var none *RealtimeResponse
	if none.Error() != nil {
		t.Error("nil response reported an error")
	}
}

func TestChatDispatch(t *testing.T) {
	d := ChatDispatcher()
	v, err := d.Dispatch([]byte(`{"id":"c1","object":"chat.completion.chunk","model":"m","choices":[{"index":0,"delta":{"content":"Hi"},"finish_reason":null}]}`))
	if err != nil {
		t.Fatal(err)
	}
	chunk, ok := dispatch.As[ChatCompletionChunk](v)
	if !ok || len(chunk.Choices) != 1 || chunk.Choices[0].Delta.Content == nil || *chunk.Choices[0].Delta.Content != "Hi" {
		t.Errorf("chunk = %+v", v.Data)
	}

	v, err = d.Dispatch([]byte(`{"error":{"message":"overloaded","code":503}}`))
	if err != nil || !v.IsUnknown() {
		t.Errorf("error chunk = %+v, %v, want unknown", v, err)
	}

	_, err = d.Dispatch([]byte(`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"sideways"}]}`))
	if !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("bad finish reason error = %v, want ErrTypeMismatch", err)
	}
}

func TestAssistantsDispatch(t *testing.T) {
	d := AssistantsDispatcher()

	payload, err := Envelope(AssistantMessageDelta,
		[]byte(`{"id":"msg_1","object":"thread.message.delta","delta":{"content":[{"index":0,"type":"text","text":{"value":"Hi"}}]}}`))
	if err != nil {
		t.Fatal(err)
	}
	v, err := d.Dispatch(payload)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	ev, ok := dispatch.As[AssistantEvent](v)
	if !ok || ev.MessageDelta == nil {
		t.Fatalf("Data = %+v, want message delta", v.Data)
	}
	if got := ev.MessageDelta.Delta.Content[0].Text.Value; got != "Hi" {
		t.Errorf("delta text = %q, want Hi", got)
	}

	done, err := Envelope(AssistantDone, []byte("[DONE]"))
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"event":"done","data":"[DONE]"}`; string(done) != want {
		t.Errorf("Envelope(done) = %s, want %s", done, want)
	}
	if v, err = d.Dispatch(done); err != nil || v.Shape != "DoneEnvelope" {
		t.Errorf("Dispatch(done) = %+v, %v", v, err)
	}

	run, _ := Envelope(AssistantRunCompleted, []byte(`{"id":"run_1","object":"thread.run"}`))
	if _, err := d.Dispatch(run); !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("run without status error = %v, want ErrTypeMismatch", err)
	}

	run, _ = Envelope(AssistantRunCompleted, []byte(`{"id":"run_1","object":"thread.run","status":"completed","usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`))
	v, err = d.Dispatch(run)
	if err != nil {
		t.Fatal(err)
	}
	ev, _ = dispatch.As[AssistantEvent](v)
	if ev.Run == nil || ev.Run.Status != RunCompleted || ev.Run.Usage.Usage().TotalTokens != 3 {
		t.Errorf("run = %+v", ev.Run)
	}
	if !IsAssistantTerminal(ev.Event) {
		t.Errorf("IsAssistantTerminal(%q) = false", ev.Event)
	}
}

func TestObjectsDispatch(t *testing.T) {
	d := ObjectsDispatcher()
	v, err := d.Dispatch([]byte(`{"id":"ftjob-1","object":"fine_tuning.job","model":"my-custom-model","status":"running","hyperparameters":{"n_epochs":"auto","batch_size":4}}`))
	if err != nil {
		t.Fatal(err)
	}
	job, ok := dispatch.As[FineTuningJob](v)
	if !ok {
		t.Fatalf("Data = %T, want FineTuningJob", v.Data)
	}
	want := Hyperparameters{NEpochs: &AutoOrInt{Auto: true}, BatchSize: &AutoOrInt{Value: 4}}
	if diff := cmp.Diff(want, job.Hyperparameters); diff != "" {
		t.Errorf("hyperparameters mismatch (-want +got):\n%s", diff)
	}
	if job.Model.Name != "my-custom-model" || job.Model.Known {
		t.Errorf("model = %+v, want open model", job.Model)
	}

	_, err = d.Dispatch([]byte(`{"id":"ftjob-1","object":"fine_tuning.job","model":"m","status":"running","hyperparameters":{"batch_size":4.5}}`))
	if !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("fractional batch size error = %v, want ErrTypeMismatch", err)
	}

	v, err = d.Dispatch([]byte(`{"object":"list","data":[{"id":"a"},{"id":"b"}],"has_more":false}`))
	if err != nil {
		t.Fatal(err)
	}
	if page, _ := dispatch.As[ListPage](v); len(page.Data) != 2 {
		t.Errorf("page = %+v", v.Data)
	}
}
