package accumulate

import (
	"slices"

	"github.com/samber/lo"

	"github.com/rhuss/streamwire/pkg/api"
)

var (
	messageFields   = []string{api.FieldText, api.FieldRefusal, api.FieldAudio, api.FieldTranscript}
	reasoningFields = []string{api.FieldSummary, api.FieldReasoning}
)

// inferType picks the item type of an output the stream never announced.
func inferType(out Output) api.ItemType {
	if out.Item != nil && out.Item.Type != "" {
		return out.Item.Type
	}
	fields := lo.Map(out.Values, func(v Value, _ int) string { return v.Slot.Field })
	switch {
	case lo.Some(fields, messageFields):
		return api.ItemTypeMessage
	case lo.Some(fields, reasoningFields):
		return api.ItemTypeReasoning
	case lo.Contains(fields, api.FieldInput):
		return api.ItemTypeCustomToolCall
	case lo.Contains(fields, api.FieldCode):
		return api.ItemTypeCodeInterpreterCall
	case lo.Contains(fields, api.FieldArguments):
		return api.ItemTypeFunctionCall
	}
	return api.ItemTypeMessage
}

func cloneItem(src *api.Item) api.Item {
	if src == nil {
		return api.Item{}
	}
	it := *src
	if src.Message != nil {
		m := *src.Message
		m.Content = slices.Clone(m.Content)
		m.Output = slices.Clone(m.Output)
		it.Message = &m
	}
	if src.Reasoning != nil {
		r := *src.Reasoning
		r.Summary = slices.Clone(r.Summary)
		r.Content = slices.Clone(r.Content)
		it.Reasoning = &r
	}
	if src.FunctionCall != nil {
		it.FunctionCall = lo.ToPtr(*src.FunctionCall)
	}
	if src.CustomToolCall != nil {
		it.CustomToolCall = lo.ToPtr(*src.CustomToolCall)
	}
	if src.MCPCall != nil {
		it.MCPCall = lo.ToPtr(*src.MCPCall)
	}
	if src.CodeInterpreterCall != nil {
		it.CodeInterpreterCall = lo.ToPtr(*src.CodeInterpreterCall)
	}
	return it
}

// partAt returns part i, growing the slice as needed. i is clamped to
// 0..MaxContentIndex.
func partAt(parts *[]api.OutputContentPart, i int) *api.OutputContentPart {
	i = min(max(i, 0), MaxContentIndex)
	for len(*parts) <= i {
		*parts = append(*parts, api.OutputContentPart{})
	}
	return &(*parts)[i]
}

func itemStatus(current api.ItemStatus, incomplete bool) api.ItemStatus {
	switch {
	case incomplete:
		return api.ItemStatusIncomplete
	case current == "" || current == api.ItemStatusInProgress:
		return api.ItemStatusCompleted
	}
	return current
}

// materialize turns one output into wire items. Chat outputs carry tool
// calls in the content slots after the message and reasoning in slot 0;
// those become separate items around the message.
func materialize(out Output) []api.Item {
	item := cloneItem(out.Item)
	item.Type = inferType(out)
	item.Status = itemStatus(item.Status, out.Incomplete)
	if item.ID == "" {
		if v, ok := lo.Find(out.Values, func(v Value) bool { return v.ItemID != "" }); ok {
			item.ID = v.ItemID
		}
	}

	switch item.Type {
	case api.ItemTypeMessage:
		return materializeMessage(item, out)
	case api.ItemTypeReasoning:
		if item.Reasoning == nil {
			item.Reasoning = &api.ReasoningData{}
		}
		fillReasoning(item.Reasoning, out)
	case api.ItemTypeFunctionCall:
		if item.FunctionCall == nil {
			item.FunctionCall = &api.FunctionCallData{}
		}
		if v, ok := out.Value(0, api.FieldArguments); ok {
			item.FunctionCall.Arguments = v.Text
			item.FunctionCall.CallID = lo.CoalesceOrEmpty(item.FunctionCall.CallID, v.CallID)
			item.FunctionCall.Name = lo.CoalesceOrEmpty(item.FunctionCall.Name, v.Name)
		}
	case api.ItemTypeMCPCall:
		if item.MCPCall == nil {
			item.MCPCall = &api.MCPCallData{}
		}
		if v, ok := out.Value(0, api.FieldArguments); ok {
			item.MCPCall.Arguments = v.Text
		}
	case api.ItemTypeCustomToolCall:
		if item.CustomToolCall == nil {
			item.CustomToolCall = &api.CustomToolCallData{}
		}
		if v, ok := out.Value(0, api.FieldInput); ok {
			item.CustomToolCall.Input = v.Text
		}
	case api.ItemTypeCodeInterpreterCall:
		if item.CodeInterpreterCall == nil {
			item.CodeInterpreterCall = &api.CodeInterpreterCallData{}
		}
		if v, ok := out.Value(0, api.FieldCode); ok {
			item.CodeInterpreterCall.Code = v.Text
		}
	}
	return []api.Item{item}
}

func fillReasoning(r *api.ReasoningData, out Output) {
	for _, v := range out.Values {
		switch v.Slot.Field {
		case api.FieldSummary:
			p := partAt(&r.Summary, v.Slot.Content)
			p.Type = api.PartSummaryText
			p.Text = v.Text
		case api.FieldReasoning:
			p := partAt(&r.Content, v.Slot.Content)
			p.Type = api.PartReasoningText
			p.Text = v.Text
		}
	}
}

func materializeMessage(item api.Item, out Output) []api.Item {
	if item.Message == nil {
		item.Message = &api.MessageData{}
	}
	msg := item.Message
	if msg.Role == "" {
		msg.Role = api.RoleAssistant
	}

	var reasoning *api.Item
	var calls []api.Item
	for _, v := range out.Values {
		switch v.Slot.Field {
		case api.FieldText:
			p := partAt(&msg.Output, v.Slot.Content)
			p.Type = lo.CoalesceOrEmpty(p.Type, api.PartOutputText)
			p.Text = v.Text
		case api.FieldRefusal:
			p := partAt(&msg.Output, v.Slot.Content)
			p.Type = api.PartRefusal
			p.Refusal = v.Text
		case api.FieldAudio:
			p := partAt(&msg.Output, v.Slot.Content)
			p.Type = lo.CoalesceOrEmpty(p.Type, api.PartOutputAudio)
			p.Audio = v.Text
		case api.FieldTranscript:
			p := partAt(&msg.Output, v.Slot.Content)
			p.Type = lo.CoalesceOrEmpty(p.Type, api.PartOutputAudio)
			p.Transcript = v.Text
		case api.FieldSummary, api.FieldReasoning:
			if reasoning == nil {
				reasoning = &api.Item{
					Type:      api.ItemTypeReasoning,
					Status:    itemStatus("", v.Incomplete),
					Reasoning: &api.ReasoningData{},
				}
			}
			fillReasoning(reasoning.Reasoning, Output{Values: []Value{v}})
		case api.FieldArguments:
			calls = append(calls, api.Item{
				Type:   api.ItemTypeFunctionCall,
				Status: itemStatus("", v.Incomplete),
				FunctionCall: &api.FunctionCallData{
					CallID:    v.CallID,
					Name:      v.Name,
					Arguments: v.Text,
				},
			})
		}
	}
	msg.Output = slices.DeleteFunc(msg.Output, func(p api.OutputContentPart) bool { return p.Type == "" })

	var items []api.Item
	if reasoning != nil {
		items = append(items, *reasoning)
	}
	if len(msg.Output) > 0 || len(calls) == 0 {
		items = append(items, item)
	}
	return append(items, calls...)
}
