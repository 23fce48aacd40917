package api

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// StreamEventType identifies the type of a responses streaming event.
type StreamEventType string

// State machine events track the lifecycle of a response.
const (
	EventResponseCreated    StreamEventType = "response.created"
	EventResponseQueued     StreamEventType = "response.queued"
	EventResponseInProgress StreamEventType = "response.in_progress"
	EventResponseCompleted  StreamEventType = "response.completed"
	EventResponseFailed     StreamEventType = "response.failed"
	EventResponseIncomplete StreamEventType = "response.incomplete"
	EventResponseCancelled  StreamEventType = "response.cancelled"
	EventError              StreamEventType = "error"
)

// Structural events open and close output items and their content parts.
const (
	EventOutputItemAdded           StreamEventType = "response.output_item.added"
	EventOutputItemDone            StreamEventType = "response.output_item.done"
	EventContentPartAdded          StreamEventType = "response.content_part.added"
	EventContentPartDone           StreamEventType = "response.content_part.done"
	EventReasoningSummaryPartAdded StreamEventType = "response.reasoning_summary_part.added"
	EventReasoningSummaryPartDone  StreamEventType = "response.reasoning_summary_part.done"
	EventOutputTextAnnotationAdded StreamEventType = "response.output_text.annotation.added"
)

// Delta events carry fragments; the matching done event carries the final value.
const (
	EventOutputTextDelta              StreamEventType = "response.output_text.delta"
	EventOutputTextDone               StreamEventType = "response.output_text.done"
	EventRefusalDelta                 StreamEventType = "response.refusal.delta"
	EventRefusalDone                  StreamEventType = "response.refusal.done"
	EventFunctionCallArgsDelta        StreamEventType = "response.function_call_arguments.delta"
	EventFunctionCallArgsDone         StreamEventType = "response.function_call_arguments.done"
	EventCustomToolCallInputDelta     StreamEventType = "response.custom_tool_call_input.delta"
	EventCustomToolCallInputDone      StreamEventType = "response.custom_tool_call_input.done"
	EventMCPCallArgsDelta             StreamEventType = "response.mcp_call_arguments.delta"
	EventMCPCallArgsDone              StreamEventType = "response.mcp_call_arguments.done"
	EventReasoningSummaryTextDelta    StreamEventType = "response.reasoning_summary_text.delta"
	EventReasoningSummaryTextDone     StreamEventType = "response.reasoning_summary_text.done"
	EventReasoningTextDelta           StreamEventType = "response.reasoning_text.delta"
	EventReasoningTextDone            StreamEventType = "response.reasoning_text.done"
	EventOutputAudioDelta             StreamEventType = "response.output_audio.delta"
	EventOutputAudioDone              StreamEventType = "response.output_audio.done"
	EventOutputAudioTranscriptDelta   StreamEventType = "response.output_audio_transcript.delta"
	EventOutputAudioTranscriptDone    StreamEventType = "response.output_audio_transcript.done"
	EventCodeInterpreterCallCodeDelta StreamEventType = "response.code_interpreter_call_code.delta"
	EventCodeInterpreterCallCodeDone  StreamEventType = "response.code_interpreter_call_code.done"
)

// Hosted tool progress events report on a call item without carrying content.
const (
	EventMCPCallInProgress               StreamEventType = "response.mcp_call.in_progress"
	EventMCPCallCompleted                StreamEventType = "response.mcp_call.completed"
	EventMCPCallFailed                   StreamEventType = "response.mcp_call.failed"
	EventCodeInterpreterCallInProgress   StreamEventType = "response.code_interpreter_call.in_progress"
	EventCodeInterpreterCallInterpreting StreamEventType = "response.code_interpreter_call.interpreting"
	EventCodeInterpreterCallCompleted    StreamEventType = "response.code_interpreter_call.completed"
	EventWebSearchCallInProgress         StreamEventType = "response.web_search_call.in_progress"
	EventWebSearchCallSearching          StreamEventType = "response.web_search_call.searching"
	EventWebSearchCallCompleted          StreamEventType = "response.web_search_call.completed"
	EventFileSearchCallInProgress        StreamEventType = "response.file_search_call.in_progress"
	EventFileSearchCallSearching         StreamEventType = "response.file_search_call.searching"
	EventFileSearchCallCompleted         StreamEventType = "response.file_search_call.completed"
)

var toolProgressEvents = []StreamEventType{
	EventMCPCallInProgress, EventMCPCallCompleted, EventMCPCallFailed,
	EventCodeInterpreterCallInProgress, EventCodeInterpreterCallInterpreting, EventCodeInterpreterCallCompleted,
	EventWebSearchCallInProgress, EventWebSearchCallSearching, EventWebSearchCallCompleted,
	EventFileSearchCallInProgress, EventFileSearchCallSearching, EventFileSearchCallCompleted,
}

// IsTerminal reports whether t ends a responses stream.
func (t StreamEventType) IsTerminal() bool {
	switch t {
	case EventResponseCompleted, EventResponseFailed, EventResponseIncomplete, EventResponseCancelled:
		return true
	}
	return false
}

// isResponseLevel reports whether t carries no output or content index.
func (t StreamEventType) isResponseLevel() bool {
	switch t {
	case EventResponseCreated, EventResponseQueued, EventResponseInProgress, EventError:
		return true
	}
	return t.IsTerminal()
}

// StreamEvent represents a single server-sent event in a streaming response.
// It is a flat union: which members are meaningful depends on Type.
type StreamEvent struct {
	Type           StreamEventType    `json:"type"`
	SequenceNumber int                `json:"sequence_number"`
	Response       *Response          `json:"response,omitempty"`
	Item           *Item              `json:"item,omitempty"`
	Part           *OutputContentPart `json:"part,omitempty"`
	Annotation     *Annotation        `json:"annotation,omitempty"`
	ItemID         string             `json:"item_id,omitempty"`
	OutputIndex    int                `json:"output_index,omitempty"`
	ContentIndex   int                `json:"content_index,omitempty"`
	SummaryIndex   int                `json:"summary_index,omitempty"`
	Delta          string             `json:"delta,omitempty"`

	// Final values of done events.
	Text       string `json:"text,omitempty"`
	Refusal    string `json:"refusal,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
	Input      string `json:"input,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Name       string `json:"name,omitempty"`

	// Code is the final code of a code interpreter done event, or the
	// error code of an error event.
	Code    string  `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
	Param   *string `json:"param,omitempty"`
}

// MarshalJSON writes the event with every member its type requires, even
// when the value is the zero value.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	type alias StreamEvent
	data, err := json.Marshal(alias(e))
	if err != nil {
		return nil, err
	}

	var set []member
	rule, isDelta := LookupDeltaRule(e.Type)
	if !e.Type.isResponseLevel() {
		set = append(set, member{"output_index", e.OutputIndex})
	}
	switch {
	case isDelta:
		set = append(set, member{"item_id", e.ItemID})
		switch rule.Scope {
		case ScopeContent:
			set = append(set, member{"content_index", e.ContentIndex})
		case ScopeSummary:
			set = append(set, member{"summary_index", e.SummaryIndex})
		}
		if rule.Phase == PhaseDelta {
			set = append(set, member{"delta", e.Delta})
		} else if rule.Final != "" {
			set = append(set, member{rule.Final, e.FinalValue(rule.Final)})
		}
	case e.Type == EventContentPartAdded, e.Type == EventContentPartDone, e.Type == EventOutputTextAnnotationAdded:
		set = append(set, member{"item_id", e.ItemID})
		set = append(set, member{"content_index", e.ContentIndex})
	case e.Type == EventReasoningSummaryPartAdded, e.Type == EventReasoningSummaryPartDone:
		set = append(set, member{"item_id", e.ItemID})
		set = append(set, member{"summary_index", e.SummaryIndex})
	case slices.Contains(toolProgressEvents, e.Type):
		set = append(set, member{"item_id", e.ItemID})
	case e.Type == EventError:
		set = append(set, member{"message", e.Message})
	}

	return ensureMembers(data, set)
}

type member struct {
	path  string
	value any
}

// ensureMembers sets each member that data does not already carry.
func ensureMembers(data []byte, members []member) ([]byte, error) {
	var err error
	for _, m := range members {
		if gjson.GetBytes(data, m.path).Exists() {
			continue
		}
		if data, err = sjson.SetBytes(data, m.path, m.value); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// FinalValue returns the done-event member named field.
func (e StreamEvent) FinalValue(field string) string {
	switch field {
	case "text":
		return e.Text
	case "refusal":
		return e.Refusal
	case "arguments":
		return e.Arguments
	case "input":
		return e.Input
	case "transcript":
		return e.Transcript
	case "code":
		return e.Code
	}
	return ""
}

// ErrorDetail returns the error carried by an error event.
func (e StreamEvent) ErrorDetail() *APIError {
	err := &APIError{Code: e.Code, Message: e.Message}
	if e.Param != nil {
		err.Param = *e.Param
	}
	return err
}

// IsExtensionEvent returns true if the event type follows the "provider:event_type"
// pattern used for provider-specific extension events.
func IsExtensionEvent(t StreamEventType) bool {
	return strings.Contains(string(t), ":")
}
