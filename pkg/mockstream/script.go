package mockstream

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/samber/lo"

	"github.com/rhuss/streamwire/pkg/api"
	"github.com/rhuss/streamwire/pkg/frame"
)

// Fixed identifiers keep scripted streams byte-for-byte reproducible.
const (
	created     = 1735689600
	responseID  = "resp_mock_1"
	messageID   = "msg_mock_1"
	funcItemID  = "fc_mock_1"
	chatID      = "chatcmpl-mock-1"
	threadID    = "thread_mock_1"
	runID       = "run_mock_1"
	assistantID = "asst_mock_1"
	stepID      = "step_mock_1"

	toolCallID    = "call_mock_1"
	toolName      = "get_weather"
	toolArguments = `{"location":"San Francisco","unit":"celsius"}`

	// argChunk is the size of each scripted arguments fragment.
	argChunk = 8
	// promptTokens is the input token count reported in usage.
	promptTokens = 10
)

// DefaultTokens is the text generated when no tokens are configured.
var DefaultTokens = []string{"Hello", ", ", "nice", " ", "day", "!"}

// Scenario selects what a scripted stream generates.
type Scenario struct {
	Model  string
	Tokens []string
	// Tool generates one get_weather function call instead of text.
	Tool bool
}

func (sc Scenario) text() string { return strings.Join(sc.Tokens, "") }

func (sc Scenario) completionTokens() int {
	if sc.Tool {
		return len(lo.ChunkString(toolArguments, argChunk))
	}
	return len(sc.Tokens)
}

// step is one scripted frame. Adjacent delta steps form a run whose
// members may be delivered in any order.
type step struct {
	frame frame.Frame
	delta bool
}

// script accumulates the frames of one stream. The first encoding error
// is kept and later additions are ignored.
type script struct {
	steps []step
	err   error
}

func (s *script) add(event string, v any, delta bool) {
	if s.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.err = fmt.Errorf("encoding %s: %w", event, err)
		return
	}
	s.steps = append(s.steps, step{frame: frame.Frame{Event: event, Data: data}, delta: delta})
}

func (s *script) frames() []frame.Frame {
	return lo.Map(s.steps, func(st step, _ int) frame.Frame { return st.frame })
}

// shuffle permutes each run of adjacent delta steps.
func (s *script) shuffle(seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := 0; i < len(s.steps); {
		if !s.steps[i].delta {
			i++
			continue
		}
		j := i
		for j < len(s.steps) && s.steps[j].delta {
			j++
		}
		run := s.steps[i:j]
		rng.Shuffle(len(run), func(a, b int) { run[a], run[b] = run[b], run[a] })
		i = j
	}
}

// truncate keeps the first n steps. It reports whether steps were dropped.
func (s *script) truncate(n int) bool {
	if n < 0 || n >= len(s.steps) {
		return false
	}
	s.steps = s.steps[:n]
	return true
}

// responsesScript scripts a responses API stream ending in
// response.completed.
func responsesScript(sc Scenario) *script {
	s := &script{}
	seq := 0
	emit := func(e api.StreamEvent, delta bool) {
		e.SequenceNumber = seq
		seq++
		s.add(string(e.Type), e, delta)
	}

	resp := api.Response{
		ID:        responseID,
		Object:    api.ObjectResponse,
		CreatedAt: created,
		Status:    api.ResponseStatusInProgress,
		Model:     sc.Model,
		Output:    []api.Item{},
	}
	emit(api.StreamEvent{Type: api.EventResponseCreated, Response: &resp}, false)
	emit(api.StreamEvent{Type: api.EventResponseInProgress, Response: &resp}, false)

	var item api.Item
	if sc.Tool {
		item = api.Item{
			ID:           funcItemID,
			Type:         api.ItemTypeFunctionCall,
			Status:       api.ItemStatusInProgress,
			FunctionCall: &api.FunctionCallData{CallID: toolCallID, Name: toolName},
		}
		emit(api.StreamEvent{Type: api.EventOutputItemAdded, Item: &item}, false)
		for _, frag := range lo.ChunkString(toolArguments, argChunk) {
			emit(api.StreamEvent{Type: api.EventFunctionCallArgsDelta, ItemID: funcItemID, Delta: frag}, true)
		}
		emit(api.StreamEvent{Type: api.EventFunctionCallArgsDone, ItemID: funcItemID, Arguments: toolArguments, Name: toolName}, false)
		item = api.Item{
			ID:           funcItemID,
			Type:         api.ItemTypeFunctionCall,
			Status:       api.ItemStatusCompleted,
			FunctionCall: &api.FunctionCallData{CallID: toolCallID, Name: toolName, Arguments: toolArguments},
		}
		emit(api.StreamEvent{Type: api.EventOutputItemDone, Item: &item}, false)
	} else {
		item = api.Item{
			ID:      messageID,
			Type:    api.ItemTypeMessage,
			Status:  api.ItemStatusInProgress,
			Message: &api.MessageData{Role: api.RoleAssistant},
		}
		emit(api.StreamEvent{Type: api.EventOutputItemAdded, Item: &item}, false)
		emit(api.StreamEvent{
			Type:   api.EventContentPartAdded,
			ItemID: messageID,
			Part:   &api.OutputContentPart{Type: api.PartOutputText},
		}, false)
		for _, tok := range sc.Tokens {
			emit(api.StreamEvent{Type: api.EventOutputTextDelta, ItemID: messageID, Delta: tok}, true)
		}
		text := sc.text()
		emit(api.StreamEvent{Type: api.EventOutputTextDone, ItemID: messageID, Text: text}, false)
		part := api.OutputContentPart{Type: api.PartOutputText, Text: text}
		emit(api.StreamEvent{Type: api.EventContentPartDone, ItemID: messageID, Part: &part}, false)
		item = api.Item{
			ID:      messageID,
			Type:    api.ItemTypeMessage,
			Status:  api.ItemStatusCompleted,
			Message: &api.MessageData{Role: api.RoleAssistant, Output: []api.OutputContentPart{part}},
		}
		emit(api.StreamEvent{Type: api.EventOutputItemDone, Item: &item}, false)
	}

	done := resp
	done.Status = api.ResponseStatusCompleted
	done.Output = []api.Item{item}
	done.Usage = &api.Usage{
		InputTokens:  promptTokens,
		OutputTokens: sc.completionTokens(),
		TotalTokens:  promptTokens + sc.completionTokens(),
	}
	emit(api.StreamEvent{Type: api.EventResponseCompleted, Response: &done}, false)
	return s
}

// chatScript scripts a chat completion chunk stream. The caller writes the
// [DONE] sentinel.
func chatScript(sc Scenario) *script {
	s := &script{}
	chunk := func(delta api.ChatChunkDelta, finish *string, usage *api.ChatUsage) {
		s.add("", api.ChatCompletionChunk{
			ID:      chatID,
			Object:  api.ObjectChatCompletionChunk,
			Created: created,
			Model:   sc.Model,
			Choices: []api.ChatChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
			Usage:   usage,
		}, false)
	}

	chunk(api.ChatChunkDelta{Role: string(api.RoleAssistant), Content: lo.ToPtr("")}, nil, nil)
	finish := api.FinishStop
	if sc.Tool {
		chunk(api.ChatChunkDelta{ToolCalls: []api.ChatChunkToolCall{{
			Index:    0,
			ID:       toolCallID,
			Type:     "function",
			Function: api.ChatChunkFunctionCall{Name: toolName},
		}}}, nil, nil)
		for _, frag := range lo.ChunkString(toolArguments, argChunk) {
			chunk(api.ChatChunkDelta{ToolCalls: []api.ChatChunkToolCall{{
				Index:    0,
				Function: api.ChatChunkFunctionCall{Arguments: frag},
			}}}, nil, nil)
		}
		finish = api.FinishToolCalls
	} else {
		for _, tok := range sc.Tokens {
			chunk(api.ChatChunkDelta{Content: lo.ToPtr(tok)}, nil, nil)
		}
	}
	chunk(api.ChatChunkDelta{}, &finish, &api.ChatUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: sc.completionTokens(),
		TotalTokens:      promptTokens + sc.completionTokens(),
	})
	return s
}

// realtimeScript scripts one realtime conversation turn ending in
// response.done.
func realtimeScript(sc Scenario) *script {
	s := &script{}
	n := 0
	emit := func(e api.RealtimeEvent, delta bool) {
		n++
		e.EventID = fmt.Sprintf("event_mock_%d", n)
		s.add("", e, delta)
	}

	emit(api.RealtimeEvent{Type: api.RealtimeResponseCreated, Response: &api.RealtimeResponse{
		ID:     responseID,
		Object: api.ObjectRealtimeResponse,
		Status: api.ResponseStatusInProgress,
		Output: []api.Item{},
	}}, false)

	var item api.Item
	if sc.Tool {
		item = api.Item{
			ID:           funcItemID,
			Type:         api.ItemTypeFunctionCall,
			Status:       api.ItemStatusInProgress,
			FunctionCall: &api.FunctionCallData{CallID: toolCallID, Name: toolName},
		}
		emit(api.RealtimeEvent{Type: api.RealtimeOutputItemAdded, ResponseID: responseID, Item: &item}, false)
		for _, frag := range lo.ChunkString(toolArguments, argChunk) {
			emit(api.RealtimeEvent{
				Type:       api.RealtimeFunctionCallArgsDelta,
				ResponseID: responseID,
				ItemID:     funcItemID,
				CallID:     toolCallID,
				Delta:      frag,
			}, false)
		}
		emit(api.RealtimeEvent{
			Type:       api.RealtimeFunctionCallArgsDone,
			ResponseID: responseID,
			ItemID:     funcItemID,
			CallID:     toolCallID,
			Name:       toolName,
			Arguments:  toolArguments,
		}, false)
		item = api.Item{
			ID:           funcItemID,
			Type:         api.ItemTypeFunctionCall,
			Status:       api.ItemStatusCompleted,
			FunctionCall: &api.FunctionCallData{CallID: toolCallID, Name: toolName, Arguments: toolArguments},
		}
	} else {
		item = api.Item{
			ID:      messageID,
			Type:    api.ItemTypeMessage,
			Status:  api.ItemStatusInProgress,
			Message: &api.MessageData{Role: api.RoleAssistant},
		}
		emit(api.RealtimeEvent{Type: api.RealtimeOutputItemAdded, ResponseID: responseID, Item: &item}, false)
		emit(api.RealtimeEvent{
			Type:       api.RealtimeContentPartAdded,
			ResponseID: responseID,
			ItemID:     messageID,
			Part:       &api.OutputContentPart{Type: api.PartOutputText},
		}, false)
		for _, tok := range sc.Tokens {
			emit(api.RealtimeEvent{
				Type:       api.RealtimeOutputTextDelta,
				ResponseID: responseID,
				ItemID:     messageID,
				Delta:      tok,
			}, false)
		}
		text := sc.text()
		emit(api.RealtimeEvent{Type: api.RealtimeOutputTextDone, ResponseID: responseID, ItemID: messageID, Text: text}, false)
		part := api.OutputContentPart{Type: api.PartOutputText, Text: text}
		emit(api.RealtimeEvent{Type: api.RealtimeContentPartDone, ResponseID: responseID, ItemID: messageID, Part: &part}, false)
		item = api.Item{
			ID:      messageID,
			Type:    api.ItemTypeMessage,
			Status:  api.ItemStatusCompleted,
			Message: &api.MessageData{Role: api.RoleAssistant, Output: []api.OutputContentPart{part}},
		}
	}
	emit(api.RealtimeEvent{Type: api.RealtimeOutputItemDone, ResponseID: responseID, Item: &item}, false)

	emit(api.RealtimeEvent{Type: api.RealtimeResponseDone, Response: &api.RealtimeResponse{
		ID:     responseID,
		Object: api.ObjectRealtimeResponse,
		Status: api.ResponseStatusCompleted,
		Output: []api.Item{item},
		Usage: &api.Usage{
			InputTokens:  promptTokens,
			OutputTokens: sc.completionTokens(),
			TotalTokens:  promptTokens + sc.completionTokens(),
		},
	}}, false)
	return s
}

// assistantsScript scripts an assistants run stream ending in the done
// event.
func assistantsScript(sc Scenario) *script {
	s := &script{}
	run := api.Run{
		ID:          runID,
		Object:      api.ObjectRun,
		CreatedAt:   created,
		ThreadID:    threadID,
		AssistantID: assistantID,
		Status:      api.RunQueued,
		Model:       sc.Model,
	}
	s.add(api.AssistantRunCreated, run, false)
	run.Status = api.RunInProgress
	s.add(api.AssistantRunInProgress, run, false)

	if sc.Tool {
		details := func(status, args string) api.RunStep {
			raw, _ := json.Marshal(map[string]any{
				"type": "tool_calls",
				"tool_calls": []map[string]any{{
					"id":       toolCallID,
					"type":     "function",
					"function": map[string]any{"name": toolName, "arguments": args, "output": nil},
				}},
			})
			return api.RunStep{ID: stepID, Object: api.ObjectRunStep, RunID: runID, Type: "tool_calls", Status: status, StepDetails: raw}
		}
		s.add(api.AssistantStepCreated, details("in_progress", ""), false)
		for i, frag := range lo.ChunkString(toolArguments, argChunk) {
			fn := &api.StepFunctionDelta{Arguments: frag}
			call := api.StepToolCallDelta{Index: 0, Type: "function", Function: fn}
			if i == 0 {
				call.ID = toolCallID
				fn.Name = toolName
			}
			s.add(api.AssistantStepDelta, api.RunStepDelta{
				ID:     stepID,
				Object: api.ObjectRunStepDelta,
				Delta: api.RunStepDeltaBody{StepDetails: &api.StepDetailsDelta{
					Type:      "tool_calls",
					ToolCalls: []api.StepToolCallDelta{call},
				}},
			}, false)
		}
		s.add(api.AssistantStepCompleted, details("completed", toolArguments), false)
	} else {
		msg := api.ThreadMessage{
			ID:       messageID,
			Object:   api.ObjectThreadMessage,
			ThreadID: threadID,
			RunID:    runID,
			Role:     api.RoleAssistant,
			Status:   "in_progress",
			Content:  []api.ThreadContentBlock{},
		}
		s.add(api.AssistantMessageCreated, msg, false)
		for _, tok := range sc.Tokens {
			s.add(api.AssistantMessageDelta, api.MessageDelta{
				ID:     messageID,
				Object: api.ObjectMessageDelta,
				Delta: api.MessageDeltaBody{Content: []api.ThreadContentBlock{{
					Index: 0,
					Type:  "text",
					Text:  &api.ThreadText{Value: tok},
				}}},
			}, false)
		}
		msg.Status = "completed"
		msg.Content = []api.ThreadContentBlock{{Index: 0, Type: "text", Text: &api.ThreadText{Value: sc.text()}}}
		s.add(api.AssistantMessageCompleted, msg, false)
	}

	run.Status = api.RunCompleted
	run.Usage = &api.RunUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: sc.completionTokens(),
		TotalTokens:      promptTokens + sc.completionTokens(),
	}
	s.add(api.AssistantRunCompleted, run, false)
	if s.err == nil {
		s.steps = append(s.steps, step{frame: frame.Frame{Event: api.AssistantDone, Data: []byte(frame.Sentinel)}})
	}
	return s
}
