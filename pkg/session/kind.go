package session

import (
	"encoding/json"
	"fmt"

	"github.com/rhuss/streamwire/pkg/api"
	"github.com/rhuss/streamwire/pkg/dispatch"
	"github.com/rhuss/streamwire/pkg/frame"
)

// Kind selects how a stream is dispatched and folded.
type Kind int

const (
	// KindResponses reads responses API event streams (SSE, "type").
	KindResponses Kind = iota + 1
	// KindChatCompletions reads chat completion chunk streams (SSE data only, "object").
	KindChatCompletions
	// KindRealtime reads realtime server events (WebSocket, "type").
	KindRealtime
	// KindAssistants reads assistants run streams (SSE with event names).
	KindAssistants
)

type kindSpec struct {
	name       string
	dispatcher func() *dispatch.Dispatcher
	decode     func([]byte) (any, error)
	fold       func(*folder, dispatch.Value) error
	terminal   func(dispatch.Value) bool
}

var kinds = map[Kind]kindSpec{
	KindResponses: {
		name:       "responses",
		dispatcher: api.ResponsesDispatcher,
		decode:     decodeJSON[api.StreamEvent],
		fold:       (*folder).responses,
		terminal: func(v dispatch.Value) bool {
			t := api.StreamEventType(v.Tag)
			return t.IsTerminal() || t == api.EventError
		},
	},
	KindChatCompletions: {
		name:       "chat",
		dispatcher: api.ChatDispatcher,
		decode:     decodeJSON[api.ChatCompletionChunk],
		fold:       (*folder).chat,
		terminal:   isChatError,
	},
	KindRealtime: {
		name:       "realtime",
		dispatcher: api.RealtimeDispatcher,
		decode:     decodeJSON[api.RealtimeEvent],
		fold:       (*folder).realtime,
		terminal: func(v dispatch.Value) bool {
			return api.StreamEventType(v.Tag) == api.RealtimeResponseDone
		},
	},
	KindAssistants: {
		name:       "assistants",
		dispatcher: api.AssistantsDispatcher,
		decode: func(data []byte) (any, error) {
			return api.DecodeAssistantEvent(data)
		},
		fold: (*folder).assistants,
		terminal: func(v dispatch.Value) bool {
			return api.IsAssistantTerminal(v.Tag) || v.Tag == api.AssistantError
		},
	},
}

func decodeJSON[T any](data []byte) (any, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// ParseKind maps a kind name (responses, chat, realtime, assistants) to a
// Kind.
func ParseKind(s string) (Kind, error) {
	for k, spec := range kinds {
		if spec.name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind %q", s)
}

func (k Kind) String() string {
	if spec, ok := kinds[k]; ok {
		return spec.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Dispatcher returns the dispatcher that decodes this kind's frames.
func (k Kind) Dispatcher() *dispatch.Dispatcher {
	return kinds[k].dispatcher()
}

// payload returns the bytes to dispatch for a frame. Assistants frames are
// wrapped into {event, data} envelopes unless they already are one.
func (k Kind) payload(f frame.Frame) ([]byte, error) {
	if k != KindAssistants || f.Event == "" {
		return f.Data, nil
	}
	return api.Envelope(f.Event, f.Data)
}
