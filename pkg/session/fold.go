package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/rhuss/streamwire/pkg/accumulate"
	"github.com/rhuss/streamwire/pkg/api"
	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/dispatch"
)

// folder applies dispatched values of one stream to an accumulator.
type folder struct {
	acc *accumulate.Accumulator

	// done is set by a terminal value; status and reason describe it.
	done   bool
	status api.ResponseStatus
	reason string

	// Chat: a truncating finish reason makes the sentinel end incomplete.
	truncation string

	// Assistants: output index per message id and per step tool call.
	outputs     map[string]int
	stepOutputs map[string][]int
}

func newFolder(acc *accumulate.Accumulator) *folder {
	return &folder{acc: acc, outputs: make(map[string]int), stepOutputs: make(map[string][]int)}
}

func (f *folder) finish(status api.ResponseStatus, reason string) {
	f.done = true
	f.status = status
	f.reason = reason
}

// sentinel handles a [DONE] that arrived before any terminal value.
func (f *folder) sentinel() {
	if f.done {
		return
	}
	switch {
	case f.truncation != "":
		f.finish(api.ResponseStatusIncomplete, f.truncation)
	case f.acc.Status().Terminal():
		f.finish(f.acc.Status(), "")
	default:
		f.finish(api.ResponseStatusCompleted, "")
	}
}

// sequence returns the event's sequence number, or -1 when the payload
// carries none.
func sequence(raw []byte, seq int) int {
	if !gjson.GetBytes(raw, "sequence_number").Exists() {
		return -1
	}
	return seq
}

// finalValue returns the done event's final member, or nil when the
// payload does not carry it.
func finalValue(raw []byte, member, value string) *string {
	if member == "" || !gjson.GetBytes(raw, member).Exists() {
		return nil
	}
	return lo.ToPtr(value)
}

func contentIndex(scope api.Scope, content, summary int) int {
	switch scope {
	case api.ScopeContent:
		return content
	case api.ScopeSummary:
		return summary
	}
	return 0
}

var terminalStatus = map[api.StreamEventType]api.ResponseStatus{
	api.EventResponseCompleted:  api.ResponseStatusCompleted,
	api.EventResponseFailed:     api.ResponseStatusFailed,
	api.EventResponseIncomplete: api.ResponseStatusIncomplete,
	api.EventResponseCancelled:  api.ResponseStatusCancelled,
}

func (f *folder) responses(v dispatch.Value) error {
	ev, ok := dispatch.As[api.StreamEvent](v)
	if !ok {
		debug.Log(debug.Session, "unfolded value", "tag", v.Tag)
		return nil
	}

	if rule, ok := api.LookupDeltaRule(ev.Type); ok {
		slot := accumulate.Slot{
			Output:  ev.OutputIndex,
			Content: contentIndex(rule.Scope, ev.ContentIndex, ev.SummaryIndex),
			Field:   rule.Field,
		}
		if rule.Phase == api.PhaseDelta {
			return f.acc.Apply(accumulate.Delta{
				Seq: sequence(v.Raw, ev.SequenceNumber), Slot: slot, ItemID: ev.ItemID, Fragment: ev.Delta,
			})
		}
		if ev.Name != "" {
			if err := f.acc.SetCall(slot, "", ev.Name); err != nil {
				return err
			}
		}
		return f.acc.Close(slot, ev.ItemID, finalValue(v.Raw, rule.Final, ev.FinalValue(rule.Final)))
	}

	switch ev.Type {
	case api.EventResponseCreated, api.EventResponseQueued, api.EventResponseInProgress:
		f.acc.SetResponse(ev.Response)
		status := api.ResponseStatusInProgress
		if ev.Response != nil && ev.Response.Status != "" {
			status = ev.Response.Status
		}
		return f.acc.SetStatus(status)
	case api.EventResponseCompleted, api.EventResponseFailed, api.EventResponseIncomplete, api.EventResponseCancelled:
		f.acc.SetResponse(ev.Response)
		f.finish(terminalStatus[ev.Type], "")
	case api.EventOutputItemAdded:
		if ev.Item != nil {
			f.acc.SetItem(ev.OutputIndex, *ev.Item)
		}
	case api.EventOutputItemDone:
		f.acc.CloseOutput(ev.OutputIndex, ev.Item)
	case api.EventContentPartAdded, api.EventContentPartDone:
		if ev.Part != nil {
			return f.acc.SetPart(ev.OutputIndex, ev.ContentIndex, *ev.Part)
		}
	case api.EventError:
		f.acc.SetError(ev.ErrorDetail())
		f.finish(api.ResponseStatusFailed, "")
	}
	return nil
}

// isChatError reports a backend error object sent in place of a chunk.
func isChatError(v dispatch.Value) bool {
	return v.IsUnknown() && gjson.GetBytes(v.Raw, "error").IsObject()
}

// chatTruncation maps finish reasons that cut a choice short to the
// incomplete reason of the result.
var chatTruncation = map[string]string{
	api.FinishLength:        "max_output_tokens",
	api.FinishContentFilter: "content_filter",
}

func (f *folder) chat(v dispatch.Value) error {
	if isChatError(v) {
		var resp api.ChatErrorResponse
		if err := json.Unmarshal(v.Raw, &resp); err != nil {
			return fmt.Errorf("decode chat error: %w", err)
		}
		f.acc.SetError(resp.APIError())
		f.finish(api.ResponseStatusFailed, "")
		return nil
	}
	chunk, ok := dispatch.As[api.ChatCompletionChunk](v)
	if !ok {
		debug.Log(debug.Session, "unfolded value", "tag", v.Tag)
		return nil
	}

	var errs []error
	if err := f.acc.SetStatus(api.ResponseStatusInProgress); err != nil {
		errs = append(errs, err)
	}
	f.acc.SetUsage(chunk.Usage.Usage())

	for _, c := range chunk.Choices {
		out := c.Index
		d := c.Delta
		if d.Role != "" {
			f.acc.SetItem(out, api.Item{
				Type:    api.ItemTypeMessage,
				Status:  api.ItemStatusInProgress,
				Message: &api.MessageData{Role: api.MessageRole(d.Role)},
			})
		}

		apply := func(field string, fragment *string) {
			if fragment == nil || *fragment == "" {
				return
			}
			slot := accumulate.Slot{Output: out, Content: 0, Field: field}
			if err := f.acc.Apply(accumulate.Delta{Seq: -1, Slot: slot, Fragment: *fragment}); err != nil {
				errs = append(errs, err)
			}
		}
		apply(api.FieldText, d.Content)
		apply(api.FieldRefusal, d.Refusal)
		apply(api.FieldReasoning, d.ReasoningContent)
		if d.Audio != nil {
			apply(api.FieldAudio, &d.Audio.Data)
			apply(api.FieldTranscript, &d.Audio.Transcript)
		}

		for _, tc := range d.ToolCalls {
			slot := accumulate.Slot{Output: out, Content: tc.Index + 1, Field: api.FieldArguments}
			if tc.ID != "" || tc.Function.Name != "" {
				if err := f.acc.SetCall(slot, tc.ID, tc.Function.Name); err != nil {
					errs = append(errs, err)
				}
			}
			if tc.Function.Arguments != "" {
				if err := f.acc.Apply(accumulate.Delta{Seq: -1, Slot: slot, Fragment: tc.Function.Arguments}); err != nil {
					errs = append(errs, err)
				}
			}
		}

		if c.FinishReason != nil {
			f.acc.CloseOutput(out, nil)
			if reason, ok := chatTruncation[*c.FinishReason]; ok && f.truncation == "" {
				f.truncation = reason
			}
		}
	}
	return errors.Join(errs...)
}

func (f *folder) realtime(v dispatch.Value) error {
	ev, ok := dispatch.As[api.RealtimeEvent](v)
	if !ok {
		debug.Log(debug.Session, "unfolded value", "tag", v.Tag)
		return nil
	}

	if rule, ok := api.LookupRealtimeDeltaRule(ev.Type); ok {
		slot := accumulate.Slot{
			Output:  ev.OutputIndex,
			Content: contentIndex(rule.Scope, ev.ContentIndex, 0),
			Field:   rule.Field,
		}
		if rule.Field == api.FieldArguments && (ev.CallID != "" || ev.Name != "") {
			if err := f.acc.SetCall(slot, ev.CallID, ev.Name); err != nil {
				return err
			}
		}
		if rule.Phase == api.PhaseDelta {
			return f.acc.Apply(accumulate.Delta{Seq: -1, Slot: slot, ItemID: ev.ItemID, Fragment: ev.Delta})
		}
		return f.acc.Close(slot, ev.ItemID, finalValue(v.Raw, rule.Final, ev.FinalValue(rule.Final)))
	}

	switch ev.Type {
	case api.RealtimeResponseCreated:
		return f.acc.SetStatus(api.ResponseStatusInProgress)
	case api.RealtimeOutputItemAdded:
		if ev.Item != nil {
			f.acc.SetItem(ev.OutputIndex, *ev.Item)
		}
	case api.RealtimeOutputItemDone:
		f.acc.CloseOutput(ev.OutputIndex, ev.Item)
	case api.RealtimeContentPartAdded, api.RealtimeContentPartDone:
		if ev.Part != nil {
			return f.acc.SetPart(ev.OutputIndex, ev.ContentIndex, *ev.Part)
		}
	case api.RealtimeResponseDone:
		status := api.ResponseStatusCompleted
		if resp := ev.Response; resp != nil {
			status = lo.CoalesceOrEmpty(resp.Status, status)
			f.acc.SetUsage(resp.Usage)
			f.acc.SetError(resp.Error())
			for i := range resp.Output {
				f.acc.CloseOutput(i, &resp.Output[i])
			}
		}
		reason := ""
		if status != api.ResponseStatusCompleted {
			reason = gjson.GetBytes(v.Raw, "response.status_details.reason").String()
		}
		f.finish(status, reason)
	case api.RealtimeError:
		f.acc.SetError(ev.Error)
	}
	return nil
}

var runStatus = map[api.RunStatus]api.ResponseStatus{
	api.RunQueued:         api.ResponseStatusQueued,
	api.RunInProgress:     api.ResponseStatusInProgress,
	api.RunRequiresAction: api.ResponseStatusRequiresAction,
	api.RunCancelled:      api.ResponseStatusCancelled,
	api.RunFailed:         api.ResponseStatusFailed,
	api.RunCompleted:      api.ResponseStatusCompleted,
	api.RunIncomplete:     api.ResponseStatusIncomplete,
	api.RunExpired:        api.ResponseStatusFailed,
}

// output returns the output index of an assistants object, assigning the
// next free index on first sight.
func (f *folder) output(key string) int {
	if idx, ok := f.outputs[key]; ok {
		return idx
	}
	idx := len(f.outputs)
	f.outputs[key] = idx
	return idx
}

func (f *folder) assistants(v dispatch.Value) error {
	ev, ok := dispatch.As[api.AssistantEvent](v)
	if !ok {
		debug.Log(debug.Session, "unfolded value", "tag", v.Tag)
		return nil
	}

	switch {
	case ev.Run != nil:
		return f.assistantRun(ev)
	case ev.MessageDelta != nil:
		out := f.output(ev.MessageDelta.ID)
		var errs []error
		for _, block := range ev.MessageDelta.Delta.Content {
			if block.Text == nil || block.Text.Value == "" {
				continue
			}
			slot := accumulate.Slot{Output: out, Content: block.Index, Field: api.FieldText}
			if err := f.acc.Apply(accumulate.Delta{Seq: -1, Slot: slot, ItemID: ev.MessageDelta.ID, Fragment: block.Text.Value}); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case ev.Message != nil:
		msg := ev.Message
		out := f.output(msg.ID)
		switch ev.Event {
		case api.AssistantMessageCreated:
			f.acc.SetItem(out, api.Item{
				ID:      msg.ID,
				Type:    api.ItemTypeMessage,
				Status:  api.ItemStatusInProgress,
				Message: &api.MessageData{Role: lo.CoalesceOrEmpty(msg.Role, api.RoleAssistant)},
			})
		case api.AssistantMessageCompleted:
			var errs []error
			for _, block := range msg.Content {
				if block.Text == nil {
					continue
				}
				slot := accumulate.Slot{Output: out, Content: block.Index, Field: api.FieldText}
				if err := f.acc.Close(slot, msg.ID, lo.ToPtr(block.Text.Value)); err != nil {
					errs = append(errs, err)
				}
			}
			f.acc.CloseOutput(out, nil)
			return errors.Join(errs...)
		}
	case ev.StepDelta != nil:
		details := ev.StepDelta.Delta.StepDetails
		if details == nil {
			return nil
		}
		var errs []error
		for _, tc := range details.ToolCalls {
			if tc.Function == nil {
				continue
			}
			key := fmt.Sprintf("%s/%d", ev.StepDelta.ID, tc.Index)
			out, seen := f.outputs[key]
			if !seen {
				out = f.output(key)
				f.stepOutputs[ev.StepDelta.ID] = append(f.stepOutputs[ev.StepDelta.ID], out)
			}
			slot := accumulate.Slot{Output: out, Content: 0, Field: api.FieldArguments}
			if tc.ID != "" || tc.Function.Name != "" {
				if !seen {
					f.acc.SetItem(out, api.Item{ID: tc.ID, Type: api.ItemTypeFunctionCall, Status: api.ItemStatusInProgress,
						FunctionCall: &api.FunctionCallData{CallID: tc.ID, Name: tc.Function.Name}})
				}
				if err := f.acc.SetCall(slot, tc.ID, tc.Function.Name); err != nil {
					errs = append(errs, err)
				}
			}
			if tc.Function.Arguments != "" {
				if err := f.acc.Apply(accumulate.Delta{Seq: -1, Slot: slot, Fragment: tc.Function.Arguments}); err != nil {
					errs = append(errs, err)
				}
			}
		}
		return errors.Join(errs...)
	case ev.Step != nil:
		if ev.Event == api.AssistantStepCompleted {
			for _, out := range f.stepOutputs[ev.Step.ID] {
				f.acc.CloseOutput(out, nil)
			}
		}
	case ev.Error != nil:
		f.acc.SetError(ev.Error)
		f.finish(api.ResponseStatusFailed, "")
	}
	return nil
}

func (f *folder) assistantRun(ev api.AssistantEvent) error {
	run := ev.Run
	f.acc.SetUsage(run.Usage.Usage())
	f.acc.SetError(run.LastError)

	status, ok := runStatus[run.Status]
	if api.IsAssistantTerminal(ev.Event) {
		reason := ""
		if run.IncompleteDetails != nil {
			reason = run.IncompleteDetails.Reason
		}
		if run.Status == api.RunExpired {
			reason = string(api.RunExpired)
		}
		if !ok {
			status = api.ResponseStatusCompleted
		}
		f.finish(status, reason)
		return nil
	}
	if !ok {
		return nil
	}
	return f.acc.SetStatus(status)
}
