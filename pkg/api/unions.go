package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rhuss/streamwire/pkg/schema"
	"github.com/rhuss/streamwire/pkg/variant"
)

// Untagged set names registered in the catalogue.
const (
	SetToolChoice     = "ToolChoice"
	SetModelID        = "ModelID"
	SetAutoOrInt      = "AutoOrInt"
	SetFilter         = "Filter"
	SetMessageContent = "MessageContent"
	SetContentPart    = "ContentPart"
	SetResponseInput  = "ResponseInput"
)

// decodeUnion runs the matcher over one of the catalogue's untagged sets.
// A payload no variant accepts is reported through fallback when it is
// non-nil, so forward-compatible unions can keep it raw.
func decodeUnion[T any](data []byte, set string, decoders map[string]variant.DecodeFunc[T], fallback func([]byte) T) (T, error) {
	v, _, err := variant.Decode(data, untagged(set), decoders)
	if err != nil && fallback != nil && errors.Is(err, schema.ErrNoMatchingVariant) {
		return fallback(data), nil
	}
	return v, err
}

func untagged(name string) *schema.UntaggedSet {
	set, ok := Catalogue().Untagged(name)
	if !ok {
		panic("api: untagged set " + name + " is not registered")
	}
	return set
}

func decodeJSON[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// ---------------------------------------------------------------------------
// ToolChoice
// ---------------------------------------------------------------------------

// ToolChoiceKind names the arm of a ToolChoice.
type ToolChoiceKind string

const (
	ToolChoiceAuto         ToolChoiceKind = "auto"
	ToolChoiceNone         ToolChoiceKind = "none"
	ToolChoiceRequired     ToolChoiceKind = "required"
	ToolChoiceFunction     ToolChoiceKind = "function"
	ToolChoiceHosted       ToolChoiceKind = "hosted"
	ToolChoiceMCP          ToolChoiceKind = "mcp"
	ToolChoiceCustom       ToolChoiceKind = "custom"
	ToolChoiceAllowedTools ToolChoiceKind = "allowed_tools"
	ToolChoiceUnknown      ToolChoiceKind = "unknown"
)

// ToolChoice controls which tool the model calls. It is either a bare mode
// string or an object naming a tool. Objects no known arm accepts decode
// to ToolChoiceUnknown and keep their payload in Raw.
type ToolChoice struct {
	Kind ToolChoiceKind

	// Name is the tool of function, custom and mcp choices.
	Name string

	// Nested marks a function choice read in the chat form
	// {"type":"function","function":{"name":...}}.
	Nested bool

	// HostedType is the type of a hosted tool choice, e.g. "file_search".
	HostedType string

	ServerLabel string

	// Mode and Tools describe an allowed_tools choice.
	Mode  string
	Tools []json.RawMessage

	Raw json.RawMessage
}

// NewToolChoiceMode returns a bare mode choice: auto, none or required.
func NewToolChoiceMode(kind ToolChoiceKind) ToolChoice {
	return ToolChoice{Kind: kind}
}

// NewToolChoiceFunction returns a choice forcing the named function.
func NewToolChoiceFunction(name string) ToolChoice {
	return ToolChoice{Kind: ToolChoiceFunction, Name: name}
}

var toolChoiceDecoders = map[string]variant.DecodeFunc[ToolChoice]{
	"ToolChoiceMode": func(data []byte) (ToolChoice, error) {
		var mode string
		err := json.Unmarshal(data, &mode)
		return ToolChoice{Kind: ToolChoiceKind(mode)}, err
	},
	"ToolChoiceFunction": func(data []byte) (ToolChoice, error) {
		return ToolChoice{Kind: ToolChoiceFunction, Name: gjson.GetBytes(data, "name").String()}, nil
	},
	"ToolChoiceChatFunction": func(data []byte) (ToolChoice, error) {
		return ToolChoice{Kind: ToolChoiceFunction, Name: gjson.GetBytes(data, "function.name").String(), Nested: true}, nil
	},
	"ToolChoiceHosted": func(data []byte) (ToolChoice, error) {
		return ToolChoice{Kind: ToolChoiceHosted, HostedType: gjson.GetBytes(data, "type").String()}, nil
	},
	"ToolChoiceMCP": func(data []byte) (ToolChoice, error) {
		r := gjson.ParseBytes(data)
		return ToolChoice{Kind: ToolChoiceMCP, ServerLabel: r.Get("server_label").String(), Name: r.Get("name").String()}, nil
	},
	"ToolChoiceCustom": func(data []byte) (ToolChoice, error) {
		return ToolChoice{Kind: ToolChoiceCustom, Name: gjson.GetBytes(data, "name").String()}, nil
	},
	"ToolChoiceAllowedTools": func(data []byte) (ToolChoice, error) {
		var w struct {
			Mode  string            `json:"mode"`
			Tools []json.RawMessage `json:"tools"`
		}
		err := json.Unmarshal(data, &w)
		return ToolChoice{Kind: ToolChoiceAllowedTools, Mode: w.Mode, Tools: w.Tools}, err
	},
}

// UnmarshalJSON selects the arm by structural fit.
func (tc *ToolChoice) UnmarshalJSON(data []byte) error {
	v, err := decodeUnion(data, SetToolChoice, toolChoiceDecoders, func(raw []byte) ToolChoice {
		return ToolChoice{Kind: ToolChoiceUnknown, Raw: append(json.RawMessage(nil), raw...)}
	})
	if err != nil {
		return err
	}
	*tc = v
	return nil
}

// MarshalJSON writes the arm's wire form.
func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	switch tc.Kind {
	case ToolChoiceAuto, ToolChoiceNone, ToolChoiceRequired:
		return json.Marshal(string(tc.Kind))
	case ToolChoiceFunction:
		if tc.Nested {
			return json.Marshal(map[string]any{"type": "function", "function": map[string]string{"name": tc.Name}})
		}
		return json.Marshal(map[string]string{"type": "function", "name": tc.Name})
	case ToolChoiceHosted:
		return json.Marshal(map[string]string{"type": tc.HostedType})
	case ToolChoiceMCP:
		m := map[string]string{"type": "mcp", "server_label": tc.ServerLabel}
		if tc.Name != "" {
			m["name"] = tc.Name
		}
		return json.Marshal(m)
	case ToolChoiceCustom:
		return json.Marshal(map[string]string{"type": "custom", "name": tc.Name})
	case ToolChoiceAllowedTools:
		tools := tc.Tools
		if tools == nil {
			tools = []json.RawMessage{}
		}
		return json.Marshal(map[string]any{"type": "allowed_tools", "mode": tc.Mode, "tools": tools})
	case ToolChoiceUnknown:
		if len(tc.Raw) > 0 {
			return tc.Raw, nil
		}
	}
	return nil, fmt.Errorf("cannot encode tool choice of kind %q", tc.Kind)
}

// ---------------------------------------------------------------------------
// ModelID
// ---------------------------------------------------------------------------

var knownModels = []string{
	"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano",
	"gpt-5", "gpt-5-mini", "gpt-5-nano", "o3", "o3-mini", "o4-mini",
	"gpt-realtime", "gpt-4o-realtime-preview",
}

// ModelID is a model name, either one of the well-known identifiers or
// any other string.
type ModelID struct {
	Name  string
	Known bool
}

// NewModelID wraps name.
func NewModelID(name string) ModelID {
	return ModelID{Name: name, Known: slices.Contains(knownModels, name)}
}

func (m ModelID) String() string { return m.Name }

var modelIDDecoders = map[string]variant.DecodeFunc[ModelID]{
	"KnownModel": func(data []byte) (ModelID, error) {
		return ModelID{Name: gjson.ParseBytes(data).String(), Known: true}, nil
	},
	"OpenModel": func(data []byte) (ModelID, error) {
		return ModelID{Name: gjson.ParseBytes(data).String()}, nil
	},
}

// UnmarshalJSON reads the model string.
func (m *ModelID) UnmarshalJSON(data []byte) error {
	v, err := decodeUnion(data, SetModelID, modelIDDecoders, nil)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalJSON writes the model string.
func (m ModelID) MarshalJSON() ([]byte, error) { return json.Marshal(m.Name) }

// ---------------------------------------------------------------------------
// AutoOrInt
// ---------------------------------------------------------------------------

// AutoOrInt is either the literal "auto" or an integer.
type AutoOrInt struct {
	Auto  bool
	Value int
}

var autoOrIntDecoders = map[string]variant.DecodeFunc[AutoOrInt]{
	"AutoLiteral": func([]byte) (AutoOrInt, error) { return AutoOrInt{Auto: true}, nil },
	"IntValue": func(data []byte) (AutoOrInt, error) {
		return AutoOrInt{Value: int(gjson.ParseBytes(data).Int())}, nil
	},
}

// UnmarshalJSON reads "auto" or an integer.
func (a *AutoOrInt) UnmarshalJSON(data []byte) error {
	v, err := decodeUnion(data, SetAutoOrInt, autoOrIntDecoders, nil)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalJSON writes "auto" or the integer.
func (a AutoOrInt) MarshalJSON() ([]byte, error) {
	if a.Auto {
		return []byte(`"auto"`), nil
	}
	return json.Marshal(a.Value)
}

// ---------------------------------------------------------------------------
// Filter
// ---------------------------------------------------------------------------

// Filter is a file search attribute filter: a comparison of one key, or a
// compound of nested filters joined by and/or.
type Filter struct {
	Type string

	// Comparison filters.
	Key   string
	Value any

	// Compound filters.
	Filters []Filter
}

// IsCompound reports whether f joins nested filters.
func (f Filter) IsCompound() bool { return f.Type == "and" || f.Type == "or" }

type comparisonWire struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type compoundWire struct {
	Type    string   `json:"type"`
	Filters []Filter `json:"filters"`
}

var filterDecoders = map[string]variant.DecodeFunc[Filter]{
	"ComparisonFilter": func(data []byte) (Filter, error) {
		w, err := decodeJSON[comparisonWire](data)
		return Filter{Type: w.Type, Key: w.Key, Value: w.Value}, err
	},
	"CompoundFilter": func(data []byte) (Filter, error) {
		w, err := decodeJSON[compoundWire](data)
		return Filter{Type: w.Type, Filters: w.Filters}, err
	},
}

// UnmarshalJSON selects comparison or compound by structural fit.
func (f *Filter) UnmarshalJSON(data []byte) error {
	v, err := decodeUnion(data, SetFilter, filterDecoders, nil)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// MarshalJSON writes the filter's wire form.
func (f Filter) MarshalJSON() ([]byte, error) {
	if f.IsCompound() {
		filters := f.Filters
		if filters == nil {
			filters = []Filter{}
		}
		return json.Marshal(compoundWire{Type: f.Type, Filters: filters})
	}
	return json.Marshal(comparisonWire{Type: f.Type, Key: f.Key, Value: f.Value})
}

// ---------------------------------------------------------------------------
// Content parts
// ---------------------------------------------------------------------------

// ContentPart is one part of message content in either the chat or the
// responses family. Parts of a type no registered shape accepts keep their
// payload in Raw and are written back verbatim.
type ContentPart struct {
	Type     string
	Text     string
	Refusal  string
	URL      string
	Detail   string
	FileID   string
	Filename string
	FileData string
	Data     string // base64 audio
	Format   string

	Raw json.RawMessage
}

type imageURLWire struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type inputAudioWire struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

type fileWire struct {
	FileID   string `json:"file_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

type contentPartWire struct {
	Type       string          `json:"type"`
	Text       *string         `json:"text,omitempty"`
	Refusal    *string         `json:"refusal,omitempty"`
	ImageURL   json.RawMessage `json:"image_url,omitempty"`
	Detail     string          `json:"detail,omitempty"`
	InputAudio *inputAudioWire `json:"input_audio,omitempty"`
	File       *fileWire       `json:"file,omitempty"`
	fileWire
}

var contentPartDecoders = map[string]variant.DecodeFunc[ContentPart]{
	"TextPart":       textPart,
	"InputTextPart":  textPart,
	"OutputTextPart": textPart,
	"RefusalPart": func(data []byte) (ContentPart, error) {
		r := gjson.ParseBytes(data)
		return ContentPart{Type: r.Get("type").String(), Refusal: r.Get("refusal").String()}, nil
	},
	"ImageURLPart": func(data []byte) (ContentPart, error) {
		w, err := decodeJSON[struct {
			ImageURL imageURLWire `json:"image_url"`
		}](data)
		return ContentPart{Type: "image_url", URL: w.ImageURL.URL, Detail: w.ImageURL.Detail}, err
	},
	"InputImagePart": func(data []byte) (ContentPart, error) {
		r := gjson.ParseBytes(data)
		return ContentPart{
			Type:   "input_image",
			URL:    r.Get("image_url").String(),
			FileID: r.Get("file_id").String(),
			Detail: r.Get("detail").String(),
		}, nil
	},
	"InputAudioPart": func(data []byte) (ContentPart, error) {
		w, err := decodeJSON[struct {
			InputAudio inputAudioWire `json:"input_audio"`
		}](data)
		return ContentPart{Type: "input_audio", Data: w.InputAudio.Data, Format: w.InputAudio.Format}, err
	},
	"FilePart": func(data []byte) (ContentPart, error) {
		w, err := decodeJSON[struct {
			File fileWire `json:"file"`
		}](data)
		return ContentPart{Type: "file", FileID: w.File.FileID, Filename: w.File.Filename, FileData: w.File.FileData}, err
	},
	"InputFilePart": func(data []byte) (ContentPart, error) {
		w, err := decodeJSON[fileWire](data)
		return ContentPart{Type: "input_file", FileID: w.FileID, Filename: w.Filename, FileData: w.FileData}, err
	},
}

func textPart(data []byte) (ContentPart, error) {
	r := gjson.ParseBytes(data)
	return ContentPart{Type: r.Get("type").String(), Text: r.Get("text").String()}, nil
}

// UnmarshalJSON selects the part shape by structural fit.
func (p *ContentPart) UnmarshalJSON(data []byte) error {
	v, err := decodeUnion(data, SetContentPart, contentPartDecoders, func(raw []byte) ContentPart {
		return ContentPart{Type: gjson.GetBytes(raw, "type").String(), Raw: append(json.RawMessage(nil), raw...)}
	})
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalJSON writes the part's wire form.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	w := contentPartWire{Type: p.Type}
	switch p.Type {
	case "text", "input_text", "output_text":
		w.Text = &p.Text
	case "refusal":
		w.Refusal = &p.Refusal
	case "image_url":
		w.ImageURL, _ = json.Marshal(imageURLWire{URL: p.URL, Detail: p.Detail})
	case "input_image":
		if p.URL != "" {
			w.ImageURL, _ = json.Marshal(p.URL)
		}
		w.fileWire.FileID = p.FileID
		w.Detail = p.Detail
	case "input_audio":
		w.InputAudio = &inputAudioWire{Data: p.Data, Format: p.Format}
	case "file":
		w.File = &fileWire{FileID: p.FileID, Filename: p.Filename, FileData: p.FileData}
	case "input_file":
		w.fileWire = fileWire{FileID: p.FileID, Filename: p.Filename, FileData: p.FileData}
	default:
		return nil, fmt.Errorf("cannot encode content part of type %q", p.Type)
	}
	return json.Marshal(w)
}

// MessageContent is message content: a plain string or a list of parts.
// Parts is non-nil exactly when the list form was used.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// TextContent returns string content.
func TextContent(s string) *MessageContent { return &MessageContent{Text: s} }

// PartsContent returns list content.
func PartsContent(parts ...ContentPart) *MessageContent {
	if parts == nil {
		parts = []ContentPart{}
	}
	return &MessageContent{Parts: parts}
}

var messageContentDecoders = map[string]variant.DecodeFunc[MessageContent]{
	"ContentText": func(data []byte) (MessageContent, error) {
		return MessageContent{Text: gjson.ParseBytes(data).String()}, nil
	},
	"ContentParts": func(data []byte) (MessageContent, error) {
		parts, err := decodeJSON[[]ContentPart](data)
		return MessageContent{Parts: parts}, err
	},
}

// UnmarshalJSON reads either form.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	v, err := decodeUnion(data, SetMessageContent, messageContentDecoders, nil)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MarshalJSON writes the form that was read.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// String returns the text of string content, or the concatenated text of
// all text parts.
func (c MessageContent) String() string {
	if c.Parts == nil {
		return c.Text
	}
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// ResponseInput
// ---------------------------------------------------------------------------

// InputItem is one item of list-form responses input.
type InputItem struct {
	Type      string          `json:"type,omitempty"`
	ID        string          `json:"id,omitempty"`
	Role      MessageRole     `json:"role,omitempty"`
	Content   *MessageContent `json:"content,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
	Output    string          `json:"output,omitempty"`
}

// ResponseInput is the input of a responses request: a plain string or a
// list of items. Items is non-nil exactly when the list form was used.
type ResponseInput struct {
	Text  string
	Items []InputItem
}

var responseInputDecoders = map[string]variant.DecodeFunc[ResponseInput]{
	"InputText": func(data []byte) (ResponseInput, error) {
		return ResponseInput{Text: gjson.ParseBytes(data).String()}, nil
	},
	"InputItems": func(data []byte) (ResponseInput, error) {
		items, err := decodeJSON[[]InputItem](data)
		return ResponseInput{Items: items}, err
	},
}

// UnmarshalJSON reads either form.
func (in *ResponseInput) UnmarshalJSON(data []byte) error {
	v, err := decodeUnion(data, SetResponseInput, responseInputDecoders, nil)
	if err != nil {
		return err
	}
	*in = v
	return nil
}

// MarshalJSON writes the form that was read.
func (in ResponseInput) MarshalJSON() ([]byte, error) {
	if in.Items != nil {
		return json.Marshal(in.Items)
	}
	return json.Marshal(in.Text)
}

// LastUserText returns the text of the last user message, or the string
// input itself.
func (in ResponseInput) LastUserText() string {
	if in.Items == nil {
		return in.Text
	}
	for _, item := range slices.Backward(in.Items) {
		if item.Role == RoleUser && item.Content != nil {
			return item.Content.String()
		}
	}
	return ""
}
