package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/sjson"
)

// Assistants run stream event names. The stream names each record with an
// SSE event line; records are dispatched as {event, data} envelopes.
const (
	AssistantThreadCreated = "thread.created"

	AssistantRunCreated        = "thread.run.created"
	AssistantRunQueued         = "thread.run.queued"
	AssistantRunInProgress     = "thread.run.in_progress"
	AssistantRunRequiresAction = "thread.run.requires_action"
	AssistantRunCompleted      = "thread.run.completed"
	AssistantRunIncomplete     = "thread.run.incomplete"
	AssistantRunFailed         = "thread.run.failed"
	AssistantRunCancelling     = "thread.run.cancelling"
	AssistantRunCancelled      = "thread.run.cancelled"
	AssistantRunExpired        = "thread.run.expired"

	AssistantStepCreated    = "thread.run.step.created"
	AssistantStepInProgress = "thread.run.step.in_progress"
	AssistantStepDelta      = "thread.run.step.delta"
	AssistantStepCompleted  = "thread.run.step.completed"
	AssistantStepFailed     = "thread.run.step.failed"
	AssistantStepCancelled  = "thread.run.step.cancelled"
	AssistantStepExpired    = "thread.run.step.expired"

	AssistantMessageCreated    = "thread.message.created"
	AssistantMessageInProgress = "thread.message.in_progress"
	AssistantMessageDelta      = "thread.message.delta"
	AssistantMessageCompleted  = "thread.message.completed"
	AssistantMessageIncomplete = "thread.message.incomplete"

	AssistantError = "error"
	AssistantDone  = "done"
)

// Assistants object discriminators.
const (
	ObjectThread           = "thread"
	ObjectRun              = "thread.run"
	ObjectRunStep          = "thread.run.step"
	ObjectRunStepDelta     = "thread.run.step.delta"
	ObjectThreadMessage    = "thread.message"
	ObjectMessageDelta     = "thread.message.delta"
	ObjectList             = "list"
	ObjectResponse         = "response"
	ObjectRealtimeResponse = "realtime.response"
	ObjectFineTuningJob    = "fine_tuning.job"
)

// IsAssistantTerminal reports whether event ends a run stream.
func IsAssistantTerminal(event string) bool {
	switch event {
	case AssistantRunCompleted, AssistantRunIncomplete, AssistantRunFailed,
		AssistantRunCancelled, AssistantRunExpired, AssistantDone:
		return true
	}
	return false
}

// Envelope wraps an event name and its payload into the object the
// assistants dispatcher reads. A payload that is not JSON (the done
// event's [DONE]) is stored as a string.
func Envelope(event string, data []byte) ([]byte, error) {
	out := []byte(`{}`)
	out, err := sjson.SetBytes(out, "event", event)
	if err != nil {
		return nil, err
	}
	if json.Valid(data) {
		return sjson.SetRawBytes(out, "data", data)
	}
	return sjson.SetBytes(out, "data", string(data))
}

// AssistantEvent is one decoded run stream envelope. Exactly one of the
// typed members is set, depending on the event's family.
type AssistantEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`

	Thread       *Thread        `json:"-"`
	Run          *Run           `json:"-"`
	Step         *RunStep       `json:"-"`
	StepDelta    *RunStepDelta  `json:"-"`
	Message      *ThreadMessage `json:"-"`
	MessageDelta *MessageDelta  `json:"-"`
	Error        *APIError      `json:"-"`
}

// DecodeAssistantEvent decodes an envelope and its typed payload.
func DecodeAssistantEvent(data []byte) (AssistantEvent, error) {
	var ev AssistantEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, err
	}

	var target any
	switch {
	case ev.Event == AssistantThreadCreated:
		ev.Thread = &Thread{}
		target = ev.Thread
	case ev.Event == AssistantStepDelta:
		ev.StepDelta = &RunStepDelta{}
		target = ev.StepDelta
	case strings.HasPrefix(ev.Event, "thread.run.step."):
		ev.Step = &RunStep{}
		target = ev.Step
	case strings.HasPrefix(ev.Event, "thread.run."):
		ev.Run = &Run{}
		target = ev.Run
	case ev.Event == AssistantMessageDelta:
		ev.MessageDelta = &MessageDelta{}
		target = ev.MessageDelta
	case strings.HasPrefix(ev.Event, "thread.message."):
		ev.Message = &ThreadMessage{}
		target = ev.Message
	case ev.Event == AssistantError:
		ev.Error = &APIError{}
		target = ev.Error
	default:
		return ev, nil
	}
	if err := json.Unmarshal(ev.Data, target); err != nil {
		return ev, fmt.Errorf("decode %s payload: %w", ev.Event, err)
	}
	return ev, nil
}

// Thread is a conversation thread.
type Thread struct {
	ID        string            `json:"id"`
	Object    string            `json:"object"`
	CreatedAt int64             `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Run is one execution of an assistant on a thread.
type Run struct {
	ID                string             `json:"id"`
	Object            string             `json:"object"`
	CreatedAt         int64              `json:"created_at"`
	ThreadID          string             `json:"thread_id"`
	AssistantID       string             `json:"assistant_id"`
	Status            RunStatus          `json:"status"`
	Model             string             `json:"model,omitempty"`
	LastError         *APIError          `json:"last_error"`
	IncompleteDetails *IncompleteDetails `json:"incomplete_details"`
	Usage             *RunUsage          `json:"usage"`
}

// RunUsage holds token usage of a run.
type RunUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Usage converts run token counts to the responses form.
func (u *RunUsage) Usage() *Usage {
	if u == nil {
		return nil
	}
	return &Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

// RunStep is one step of a run: a message creation or a set of tool calls.
type RunStep struct {
	ID          string          `json:"id"`
	Object      string          `json:"object"`
	RunID       string          `json:"run_id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	StepDetails json.RawMessage `json:"step_details,omitempty"`
}

// RunStepDelta carries incremental step details.
type RunStepDelta struct {
	ID     string           `json:"id"`
	Object string           `json:"object"`
	Delta  RunStepDeltaBody `json:"delta"`
}

// RunStepDeltaBody is the delta member of a step delta.
type RunStepDeltaBody struct {
	StepDetails *StepDetailsDelta `json:"step_details,omitempty"`
}

// StepDetailsDelta carries incremental tool calls of a step.
type StepDetailsDelta struct {
	Type      string              `json:"type"`
	ToolCalls []StepToolCallDelta `json:"tool_calls,omitempty"`
}

// StepToolCallDelta is one incremental tool call. Index addresses the call
// within the step.
type StepToolCallDelta struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type"`
	Function *StepFunctionDelta `json:"function,omitempty"`
}

// StepFunctionDelta carries a function call's name and an arguments fragment.
type StepFunctionDelta struct {
	Name      string  `json:"name,omitempty"`
	Arguments string  `json:"arguments,omitempty"`
	Output    *string `json:"output,omitempty"`
}

// ThreadMessage is a message on a thread.
type ThreadMessage struct {
	ID       string               `json:"id"`
	Object   string               `json:"object"`
	ThreadID string               `json:"thread_id,omitempty"`
	RunID    string               `json:"run_id,omitempty"`
	Role     MessageRole          `json:"role"`
	Status   string               `json:"status,omitempty"`
	Content  []ThreadContentBlock `json:"content"`
}

// ThreadContentBlock is one block of message content.
type ThreadContentBlock struct {
	Index   int         `json:"index"`
	Type    string      `json:"type"`
	Text    *ThreadText `json:"text,omitempty"`
	Refusal string      `json:"refusal,omitempty"`
}

// ThreadText is the text of a content block, or a fragment of it in a delta.
type ThreadText struct {
	Value       string            `json:"value"`
	Annotations []json.RawMessage `json:"annotations,omitempty"`
}

// MessageDelta carries incremental message content.
type MessageDelta struct {
	ID     string           `json:"id"`
	Object string           `json:"object"`
	Delta  MessageDeltaBody `json:"delta"`
}

// MessageDeltaBody is the delta member of a message delta.
type MessageDeltaBody struct {
	Role    MessageRole          `json:"role,omitempty"`
	Content []ThreadContentBlock `json:"content,omitempty"`
}
