package api

import (
	"encoding/json"
	"strings"
)

// ---------------------------------------------------------------------------
// Content types
// ---------------------------------------------------------------------------

// Output content part types.
const (
	PartOutputText    = "output_text"
	PartRefusal       = "refusal"
	PartOutputAudio   = "output_audio"
	PartSummaryText   = "summary_text"
	PartReasoningText = "reasoning_text"

	// Realtime beta names.
	PartText  = "text"
	PartAudio = "audio"
)

// OutputContentPart represents a part of model output content.
type OutputContentPart struct {
	Type        string         `json:"-"`
	Text        string         `json:"-"`
	Refusal     string         `json:"-"`
	Transcript  string         `json:"-"`
	Audio       string         `json:"-"` // base64
	Annotations []Annotation   `json:"-"`
	Logprobs    []TokenLogprob `json:"-"`
}

type outputPartWire struct {
	Type        string         `json:"type"`
	Text        *string        `json:"text,omitempty"`
	Refusal     *string        `json:"refusal,omitempty"`
	Transcript  *string        `json:"transcript,omitempty"`
	Audio       string         `json:"audio,omitempty"`
	Annotations []Annotation   `json:"annotations,omitempty"`
	Logprobs    []TokenLogprob `json:"logprobs,omitempty"`
}

// MarshalJSON writes only the members of the part's type. output_text
// parts always carry annotations and logprobs arrays, never null.
func (p OutputContentPart) MarshalJSON() ([]byte, error) {
	if p.Type == PartOutputText {
		type wire struct {
			Type        string         `json:"type"`
			Text        string         `json:"text"`
			Annotations []Annotation   `json:"annotations"`
			Logprobs    []TokenLogprob `json:"logprobs"`
		}
		w := wire{Type: p.Type, Text: p.Text, Annotations: p.Annotations, Logprobs: p.Logprobs}
		if w.Annotations == nil {
			w.Annotations = []Annotation{}
		}
		if w.Logprobs == nil {
			w.Logprobs = []TokenLogprob{}
		}
		return json.Marshal(w)
	}

	w := outputPartWire{Type: p.Type, Audio: p.Audio}
	switch p.Type {
	case PartRefusal:
		w.Refusal = &p.Refusal
	case PartOutputAudio, PartAudio:
		w.Transcript = &p.Transcript
	default:
		w.Text = &p.Text
	}
	return json.Marshal(w)
}

// UnmarshalJSON deserializes an OutputContentPart.
func (p *OutputContentPart) UnmarshalJSON(data []byte) error {
	var w outputPartWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = OutputContentPart{
		Type:        w.Type,
		Audio:       w.Audio,
		Annotations: w.Annotations,
		Logprobs:    w.Logprobs,
	}
	if w.Text != nil {
		p.Text = *w.Text
	}
	if w.Refusal != nil {
		p.Refusal = *w.Refusal
	}
	if w.Transcript != nil {
		p.Transcript = *w.Transcript
	}
	return nil
}

// Annotation represents an annotation on output text, such as a citation.
type Annotation struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	URL        string `json:"url,omitempty"`
	FileID     string `json:"file_id,omitempty"`
	StartIndex int    `json:"start_index,omitempty"`
	EndIndex   int    `json:"end_index,omitempty"`
}

// TokenLogprob holds log probability information for a single token.
type TokenLogprob struct {
	Token       string       `json:"token"`
	Logprob     float64      `json:"logprob"`
	TopLogprobs []TopLogprob `json:"top_logprobs,omitempty"`
}

// TopLogprob holds a candidate token and its log probability.
type TopLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleDeveloper MessageRole = "developer"
)

// ItemType identifies the kind of an output item.
type ItemType string

const (
	ItemTypeMessage             ItemType = "message"
	ItemTypeFunctionCall        ItemType = "function_call"
	ItemTypeFunctionCallOutput  ItemType = "function_call_output"
	ItemTypeReasoning           ItemType = "reasoning"
	ItemTypeCustomToolCall      ItemType = "custom_tool_call"
	ItemTypeMCPCall             ItemType = "mcp_call"
	ItemTypeCodeInterpreterCall ItemType = "code_interpreter_call"
)

// ItemStatus represents the lifecycle state of an item.
type ItemStatus string

const (
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusIncomplete ItemStatus = "incomplete"
	ItemStatusFailed     ItemStatus = "failed"
)

// MessageData holds a message's role and content. User content lives in
// Content, model output in Output.
type MessageData struct {
	Role    MessageRole         `json:"role"`
	Content []ContentPart       `json:"content,omitempty"`
	Output  []OutputContentPart `json:"output,omitempty"`
}

// FunctionCallData holds a function tool call.
type FunctionCallData struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionCallOutputData holds the output returned for a function call.
type FunctionCallOutputData struct {
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// CustomToolCallData holds a free-form custom tool call.
type CustomToolCallData struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Input  string `json:"input"`
}

// MCPCallData holds a call to a tool on a remote MCP server.
type MCPCallData struct {
	ServerLabel string  `json:"server_label"`
	Name        string  `json:"name"`
	Arguments   string  `json:"arguments"`
	Output      *string `json:"output,omitempty"`
	Error       *string `json:"error,omitempty"`
}

// ReasoningData holds reasoning summary and content parts.
type ReasoningData struct {
	Summary          []OutputContentPart `json:"summary"`
	Content          []OutputContentPart `json:"content,omitempty"`
	EncryptedContent string              `json:"encrypted_content,omitempty"`
}

// CodeInterpreterCallData holds a code interpreter invocation.
type CodeInterpreterCallData struct {
	ContainerID string            `json:"container_id,omitempty"`
	Code        string            `json:"code"`
	Outputs     []json.RawMessage `json:"outputs,omitempty"`
}

// Item is one output item: a message, a tool call, a reasoning step or any
// item type this package does not model. Unmodeled items keep their whole
// payload in Extension and marshal back verbatim.
type Item struct {
	ID     string     `json:"id"`
	Type   ItemType   `json:"type"`
	Status ItemStatus `json:"status"`

	Message             *MessageData             `json:"-"`
	FunctionCall        *FunctionCallData        `json:"-"`
	FunctionCallOutput  *FunctionCallOutputData  `json:"-"`
	CustomToolCall      *CustomToolCallData      `json:"-"`
	MCPCall             *MCPCallData             `json:"-"`
	Reasoning           *ReasoningData           `json:"-"`
	CodeInterpreterCall *CodeInterpreterCallData `json:"-"`

	Extension json.RawMessage `json:"-"`
}

// itemWireBase contains fields common to all item types.
type itemWireBase struct {
	ID     string     `json:"id,omitempty"`
	Type   ItemType   `json:"type"`
	Status ItemStatus `json:"status,omitempty"`
}

// MarshalJSON serializes an Item to the flat wire format: type-specific
// fields are at the top level, not nested in a wrapper object.
func (item Item) MarshalJSON() ([]byte, error) {
	base := itemWireBase{ID: item.ID, Type: item.Type, Status: item.Status}
	switch {
	case item.Type == ItemTypeMessage:
		return item.marshalMessage(base)
	case item.Type == ItemTypeFunctionCall && item.FunctionCall != nil:
		return json.Marshal(struct {
			itemWireBase
			*FunctionCallData
		}{base, item.FunctionCall})
	case item.Type == ItemTypeFunctionCallOutput && item.FunctionCallOutput != nil:
		return json.Marshal(struct {
			itemWireBase
			*FunctionCallOutputData
		}{base, item.FunctionCallOutput})
	case item.Type == ItemTypeCustomToolCall && item.CustomToolCall != nil:
		return json.Marshal(struct {
			itemWireBase
			*CustomToolCallData
		}{base, item.CustomToolCall})
	case item.Type == ItemTypeMCPCall && item.MCPCall != nil:
		return json.Marshal(struct {
			itemWireBase
			*MCPCallData
		}{base, item.MCPCall})
	case item.Type == ItemTypeReasoning:
		r := item.Reasoning
		if r == nil {
			r = &ReasoningData{}
		}
		if r.Summary == nil {
			c := *r
			c.Summary = []OutputContentPart{}
			r = &c
		}
		return json.Marshal(struct {
			itemWireBase
			*ReasoningData
		}{base, r})
	case item.Type == ItemTypeCodeInterpreterCall && item.CodeInterpreterCall != nil:
		return json.Marshal(struct {
			itemWireBase
			*CodeInterpreterCallData
		}{base, item.CodeInterpreterCall})
	case len(item.Extension) > 0:
		return item.Extension, nil
	default:
		return json.Marshal(base)
	}
}

// marshalMessage produces the flat message wire format:
// {type, id, status, role, content: [...]}
func (item Item) marshalMessage(base itemWireBase) ([]byte, error) {
	type wireMessage struct {
		itemWireBase
		Role    MessageRole `json:"role"`
		Content []any       `json:"content"`
	}

	w := wireMessage{itemWireBase: base, Content: []any{}}
	if item.Message != nil {
		w.Role = item.Message.Role
		for _, part := range item.Message.Output {
			w.Content = append(w.Content, part)
		}
		if len(item.Message.Output) == 0 {
			for _, part := range item.Message.Content {
				w.Content = append(w.Content, part)
			}
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON deserializes an Item from the flat wire format.
func (item *Item) UnmarshalJSON(data []byte) error {
	var base itemWireBase
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	*item = Item{ID: base.ID, Type: base.Type, Status: base.Status}

	var err error
	switch base.Type {
	case ItemTypeMessage:
		var w struct {
			Role    MessageRole     `json:"role"`
			Content json.RawMessage `json:"content"`
		}
		if err = json.Unmarshal(data, &w); err != nil {
			return err
		}
		item.Message = &MessageData{Role: w.Role}
		if len(w.Content) == 0 || string(w.Content) == "null" {
			break
		}
		if w.Role == RoleAssistant {
			err = json.Unmarshal(w.Content, &item.Message.Output)
		} else {
			err = json.Unmarshal(w.Content, &item.Message.Content)
		}
	case ItemTypeFunctionCall:
		item.FunctionCall = &FunctionCallData{}
		err = json.Unmarshal(data, item.FunctionCall)
	case ItemTypeFunctionCallOutput:
		var w struct {
			CallID string          `json:"call_id"`
			Output json.RawMessage `json:"output"`
		}
		if err = json.Unmarshal(data, &w); err != nil {
			return err
		}
		out := ""
		if len(w.Output) > 0 {
			// Try as string first.
			if json.Unmarshal(w.Output, &out) != nil {
				out = string(w.Output)
			}
		}
		item.FunctionCallOutput = &FunctionCallOutputData{CallID: w.CallID, Output: out}
	case ItemTypeCustomToolCall:
		item.CustomToolCall = &CustomToolCallData{}
		err = json.Unmarshal(data, item.CustomToolCall)
	case ItemTypeMCPCall:
		item.MCPCall = &MCPCallData{}
		err = json.Unmarshal(data, item.MCPCall)
	case ItemTypeReasoning:
		item.Reasoning = &ReasoningData{}
		err = json.Unmarshal(data, item.Reasoning)
	case ItemTypeCodeInterpreterCall:
		item.CodeInterpreterCall = &CodeInterpreterCallData{}
		err = json.Unmarshal(data, item.CodeInterpreterCall)
	default:
		item.Extension = append(json.RawMessage(nil), data...)
	}
	return err
}

// IsExtensionType checks whether the given ItemType represents a provider
// extension type, identified by a colon in the type string (e.g., "provider:type").
func IsExtensionType(t ItemType) bool {
	return strings.Contains(string(t), ":")
}

// ---------------------------------------------------------------------------
// Requests and responses
// ---------------------------------------------------------------------------

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Type        string          `json:"type"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	ServerLabel string          `json:"server_label,omitempty"`
	Filters     *Filter         `json:"filters,omitempty"`
}

// CreateResponseRequest is the request body of the responses endpoint.
type CreateResponseRequest struct {
	Model           ModelID           `json:"model"`
	Input           ResponseInput     `json:"input"`
	Instructions    string            `json:"instructions,omitempty"`
	Tools           []ToolDefinition  `json:"tools,omitempty"`
	ToolChoice      *ToolChoice       `json:"tool_choice,omitempty"`
	Stream          bool              `json:"stream,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	MaxOutputTokens *int              `json:"max_output_tokens,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// ResponseStatus represents the overall status of a response.
type ResponseStatus string

const (
	ResponseStatusQueued         ResponseStatus = "queued"
	ResponseStatusInProgress     ResponseStatus = "in_progress"
	ResponseStatusCompleted      ResponseStatus = "completed"
	ResponseStatusIncomplete     ResponseStatus = "incomplete"
	ResponseStatusFailed         ResponseStatus = "failed"
	ResponseStatusCancelled      ResponseStatus = "cancelled"
	ResponseStatusRequiresAction ResponseStatus = "requires_action"
)

// Response is the response object carried by lifecycle events and
// returned by non-streaming calls.
type Response struct {
	ID                 string             `json:"id"`
	Object             string             `json:"object"`
	CreatedAt          int64              `json:"created_at"`
	CompletedAt        *int64             `json:"completed_at,omitempty"`
	Status             ResponseStatus     `json:"status"`
	IncompleteDetails  *IncompleteDetails `json:"incomplete_details"`
	Model              string             `json:"model"`
	PreviousResponseID *string            `json:"previous_response_id,omitempty"`
	Instructions       *string            `json:"instructions,omitempty"`
	Output             []Item             `json:"output"`
	Error              *APIError          `json:"error"`
	ToolChoice         *ToolChoice        `json:"tool_choice,omitempty"`
	Temperature        *float64           `json:"temperature,omitempty"`
	TopP               *float64           `json:"top_p,omitempty"`
	MaxOutputTokens    *int               `json:"max_output_tokens,omitempty"`
	ParallelToolCalls  *bool              `json:"parallel_tool_calls,omitempty"`
	Text               *TextConfig        `json:"text,omitempty"`
	Reasoning          *ReasoningConfig   `json:"reasoning,omitempty"`
	Usage              *Usage             `json:"usage"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
}

// IncompleteDetails provides information about why a response is incomplete.
type IncompleteDetails struct {
	Reason string `json:"reason,omitempty"`
}

// TextConfig holds text generation configuration echoed in the response.
type TextConfig struct {
	Format *TextFormat `json:"format,omitempty"`
}

// TextFormat specifies the output text format.
type TextFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Strict *bool           `json:"strict,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// ReasoningConfig holds reasoning configuration echoed in the response.
type ReasoningConfig struct {
	Effort  *string `json:"effort"`
	Summary *string `json:"summary"`
}

// Usage holds token usage information.
type Usage struct {
	InputTokens         int                 `json:"input_tokens"`
	OutputTokens        int                 `json:"output_tokens"`
	TotalTokens         int                 `json:"total_tokens"`
	InputTokensDetails  InputTokensDetails  `json:"input_tokens_details"`
	OutputTokensDetails OutputTokensDetails `json:"output_tokens_details"`
}

// InputTokensDetails provides a breakdown of input token usage.
type InputTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

// OutputTokensDetails provides a breakdown of output token usage.
type OutputTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}
