package api

import (
	"encoding/json"
	"slices"
)

// Realtime server event types. GA and beta names are both accepted.
const (
	RealtimeError                  StreamEventType = "error"
	RealtimeSessionCreated         StreamEventType = "session.created"
	RealtimeSessionUpdated         StreamEventType = "session.updated"
	RealtimeConversationItemAdded  StreamEventType = "conversation.item.added"
	RealtimeConversationItemCreate StreamEventType = "conversation.item.created"
	RealtimeConversationItemDone   StreamEventType = "conversation.item.done"
	RealtimeInputTranscriptDelta   StreamEventType = "conversation.item.input_audio_transcription.delta"
	RealtimeInputTranscriptDone    StreamEventType = "conversation.item.input_audio_transcription.completed"
	RealtimeBufferCommitted        StreamEventType = "input_audio_buffer.committed"
	RealtimeBufferCleared          StreamEventType = "input_audio_buffer.cleared"
	RealtimeSpeechStarted          StreamEventType = "input_audio_buffer.speech_started"
	RealtimeSpeechStopped          StreamEventType = "input_audio_buffer.speech_stopped"
	RealtimeRateLimitsUpdated      StreamEventType = "rate_limits.updated"

	RealtimeResponseCreated  StreamEventType = "response.created"
	RealtimeResponseDone     StreamEventType = "response.done"
	RealtimeOutputItemAdded  StreamEventType = "response.output_item.added"
	RealtimeOutputItemDone   StreamEventType = "response.output_item.done"
	RealtimeContentPartAdded StreamEventType = "response.content_part.added"
	RealtimeContentPartDone  StreamEventType = "response.content_part.done"

	RealtimeOutputTextDelta            StreamEventType = "response.output_text.delta"
	RealtimeOutputTextDone             StreamEventType = "response.output_text.done"
	RealtimeOutputAudioDelta           StreamEventType = "response.output_audio.delta"
	RealtimeOutputAudioDone            StreamEventType = "response.output_audio.done"
	RealtimeOutputAudioTranscriptDelta StreamEventType = "response.output_audio_transcript.delta"
	RealtimeOutputAudioTranscriptDone  StreamEventType = "response.output_audio_transcript.done"
	RealtimeFunctionCallArgsDelta      StreamEventType = "response.function_call_arguments.delta"
	RealtimeFunctionCallArgsDone       StreamEventType = "response.function_call_arguments.done"

	// Beta names.
	RealtimeTextDelta            StreamEventType = "response.text.delta"
	RealtimeTextDone             StreamEventType = "response.text.done"
	RealtimeAudioDelta           StreamEventType = "response.audio.delta"
	RealtimeAudioDone            StreamEventType = "response.audio.done"
	RealtimeAudioTranscriptDelta StreamEventType = "response.audio_transcript.delta"
	RealtimeAudioTranscriptDone  StreamEventType = "response.audio_transcript.done"
)

// RealtimeEvent is one server event on a realtime WebSocket. It is a flat
// union: which members are meaningful depends on Type.
type RealtimeEvent struct {
	Type           StreamEventType    `json:"type"`
	EventID        string             `json:"event_id,omitempty"`
	ResponseID     string             `json:"response_id,omitempty"`
	ItemID         string             `json:"item_id,omitempty"`
	PreviousItemID *string            `json:"previous_item_id,omitempty"`
	OutputIndex    int                `json:"output_index,omitempty"`
	ContentIndex   int                `json:"content_index,omitempty"`
	CallID         string             `json:"call_id,omitempty"`
	Delta          string             `json:"delta,omitempty"`
	Text           string             `json:"text,omitempty"`
	Transcript     string             `json:"transcript,omitempty"`
	Arguments      string             `json:"arguments,omitempty"`
	Name           string             `json:"name,omitempty"`
	Item           *Item              `json:"item,omitempty"`
	Part           *OutputContentPart `json:"part,omitempty"`
	Response       *RealtimeResponse  `json:"response,omitempty"`
	Session        json.RawMessage    `json:"session,omitempty"`
	Error          *APIError          `json:"error,omitempty"`
}

// RealtimeResponse is the response resource of realtime lifecycle events.
type RealtimeResponse struct {
	ID            string          `json:"id"`
	Object        string          `json:"object,omitempty"`
	Status        ResponseStatus  `json:"status"`
	StatusDetails json.RawMessage `json:"status_details,omitempty"`
	Output        []Item          `json:"output"`
	Usage         *Usage          `json:"usage,omitempty"`
}

// Error returns the status details error of a failed response, if any.
func (r *RealtimeResponse) Error() *APIError {
	if r == nil || len(r.StatusDetails) == 0 {
		return nil
	}
	var details struct {
		Reason string    `json:"reason"`
		Error  *APIError `json:"error"`
	}
	if json.Unmarshal(r.StatusDetails, &details) != nil {
		return nil
	}
	if details.Error != nil {
		return details.Error
	}
	if details.Reason != "" && r.Status != ResponseStatusCompleted {
		return &APIError{Code: details.Reason, Message: "response " + string(r.Status) + ": " + details.Reason}
	}
	return nil
}

var realtimeItemEvents = []StreamEventType{
	RealtimeOutputItemAdded, RealtimeOutputItemDone,
}

var realtimePartEvents = []StreamEventType{
	RealtimeContentPartAdded, RealtimeContentPartDone,
}

// MarshalJSON writes the event with every member its type requires.
func (e RealtimeEvent) MarshalJSON() ([]byte, error) {
	type alias RealtimeEvent
	data, err := json.Marshal(alias(e))
	if err != nil {
		return nil, err
	}

	var set []member
	if rule, ok := LookupRealtimeDeltaRule(e.Type); ok {
		set = append(set, member{"response_id", e.ResponseID}, member{"item_id", e.ItemID}, member{"output_index", e.OutputIndex})
		if rule.Scope == ScopeContent {
			set = append(set, member{"content_index", e.ContentIndex})
		}
		if rule.Field == FieldArguments {
			set = append(set, member{"call_id", e.CallID})
		}
		if rule.Phase == PhaseDelta {
			set = append(set, member{"delta", e.Delta})
		} else if rule.Final != "" {
			set = append(set, member{rule.Final, e.FinalValue(rule.Final)})
		}
	}
	switch {
	case slices.Contains(realtimeItemEvents, e.Type):
		set = append(set, member{"response_id", e.ResponseID}, member{"output_index", e.OutputIndex})
	case slices.Contains(realtimePartEvents, e.Type):
		set = append(set, member{"response_id", e.ResponseID}, member{"item_id", e.ItemID},
			member{"output_index", e.OutputIndex}, member{"content_index", e.ContentIndex})
	}
	return ensureMembers(data, set)
}

// FinalValue returns the done-event member named field.
func (e RealtimeEvent) FinalValue(field string) string {
	switch field {
	case "text":
		return e.Text
	case "transcript":
		return e.Transcript
	case "arguments":
		return e.Arguments
	}
	return ""
}
