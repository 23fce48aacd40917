package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rhuss/streamwire/pkg/schema"
)

func TestToolChoiceDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ToolChoice
	}{
		{"auto", `"auto"`, ToolChoice{Kind: ToolChoiceAuto}},
		{"none", `"none"`, ToolChoice{Kind: ToolChoiceNone}},
		{"required", `"required"`, ToolChoice{Kind: ToolChoiceRequired}},
		{"function flat", `{"type":"function","name":"get_weather"}`, ToolChoice{Kind: ToolChoiceFunction, Name: "get_weather"}},
		{"function nested", `{"type":"function","function":{"name":"foo"}}`, ToolChoice{Kind: ToolChoiceFunction, Name: "foo", Nested: true}},
		{"hosted", `{"type":"file_search"}`, ToolChoice{Kind: ToolChoiceHosted, HostedType: "file_search"}},
		{"mcp", `{"type":"mcp","server_label":"deepwiki"}`, ToolChoice{Kind: ToolChoiceMCP, ServerLabel: "deepwiki"}},
		{"custom", `{"type":"custom","name":"grammar"}`, ToolChoice{Kind: ToolChoiceCustom, Name: "grammar"}},
		{
			"allowed tools",
			`{"type":"allowed_tools","mode":"auto","tools":[{"type":"function","name":"a"}]}`,
			ToolChoice{Kind: ToolChoiceAllowedTools, Mode: "auto", Tools: []json.RawMessage{json.RawMessage(`{"type":"function","name":"a"}`)}},
		},
		{"unknown object", `{"type":"something_new"}`, ToolChoice{Kind: ToolChoiceUnknown, Raw: json.RawMessage(`{"type":"something_new"}`)}},
		{"unknown mode", `"sometimes"`, ToolChoice{Kind: ToolChoiceUnknown, Raw: json.RawMessage(`"sometimes"`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ToolChoice
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("decode mismatch (-want +got):\n%s", diff)
			}

			data, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			var again ToolChoice
			if err := json.Unmarshal(data, &again); err != nil {
				t.Fatalf("Unmarshal(Marshal()) error: %v", err)
			}
			if diff := cmp.Diff(got, again); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToolChoiceMalformed(t *testing.T) {
	var tc ToolChoice
	err := tc.UnmarshalJSON([]byte(`{"type":`))
	if !errors.Is(err, schema.ErrMalformed) {
		t.Errorf("UnmarshalJSON() error = %v, want ErrMalformed", err)
	}
}

func TestToolChoiceEncodeFunction(t *testing.T) {
	data, err := json.Marshal(NewToolChoiceFunction("lookup"))
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if got, want := string(data), `{"name":"lookup","type":"function"}`; got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
	if _, err := json.Marshal(ToolChoice{Kind: ToolChoiceUnknown}); err == nil {
		t.Error("expected error encoding an unknown choice without payload")
	}
}

func TestModelID(t *testing.T) {
	var known, open ModelID
	if err := json.Unmarshal([]byte(`"gpt-4o-mini"`), &known); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`"my-finetune:v2"`), &open); err != nil {
		t.Fatal(err)
	}
	if !known.Known || known.Name != "gpt-4o-mini" {
		t.Errorf("known = %+v, want known gpt-4o-mini", known)
	}
	if open.Known || open.Name != "my-finetune:v2" {
		t.Errorf("open = %+v, want unknown my-finetune:v2", open)
	}
	if NewModelID("gpt-4o-mini") != known {
		t.Errorf("NewModelID() = %+v, want %+v", NewModelID("gpt-4o-mini"), known)
	}

	var bad ModelID
	if err := json.Unmarshal([]byte(`42`), &bad); !errors.Is(err, schema.ErrNoMatchingVariant) {
		t.Errorf("Unmarshal(42) error = %v, want ErrNoMatchingVariant", err)
	}
}

func TestAutoOrInt(t *testing.T) {
	tests := []struct {
		input   string
		want    AutoOrInt
		wantErr error
	}{
		{`"auto"`, AutoOrInt{Auto: true}, nil},
		{`3`, AutoOrInt{Value: 3}, nil},
		{`2.5`, AutoOrInt{}, schema.ErrNoMatchingVariant},
		{`"manual"`, AutoOrInt{}, schema.ErrNoMatchingVariant},
	}
	for _, tt := range tests {
		var got AutoOrInt
		err := json.Unmarshal([]byte(tt.input), &got)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Unmarshal(%s) error = %v, want %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestFilterRecursive(t *testing.T) {
	input := `{"type":"and","filters":[{"type":"eq","key":"region","value":"eu"},{"type":"or","filters":[{"type":"gt","key":"year","value":2020}]}]}`

	var got Filter
	if err := json.Unmarshal([]byte(input), &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	want := Filter{
		Type: "and",
		Filters: []Filter{
			{Type: "eq", Key: "region", Value: "eu"},
			{Type: "or", Filters: []Filter{{Type: "gt", Key: "year", Value: float64(2020)}}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != input {
		t.Errorf("Marshal() = %s, want %s", data, input)
	}

	var bad Filter
	if err := json.Unmarshal([]byte(`{"type":"and","filters":[{"type":"xor"}]}`), &bad); !errors.Is(err, schema.ErrNoMatchingVariant) {
		t.Errorf("invalid nested filter error = %v, want ErrNoMatchingVariant", err)
	}
}

func TestMessageContent(t *testing.T) {
	var text MessageContent
	if err := json.Unmarshal([]byte(`"hello"`), &text); err != nil {
		t.Fatal(err)
	}
	if text.Parts != nil || text.Text != "hello" {
		t.Errorf("string content = %+v, want text hello", text)
	}

	input := `[{"type":"text","text":"look at "},{"type":"image_url","image_url":{"url":"https://x/y.png","detail":"low"}},{"type":"input_video","url":"v"},{"type":"text","text":"this"}]`
	var parts MessageContent
	if err := json.Unmarshal([]byte(input), &parts); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	want := []ContentPart{
		{Type: "text", Text: "look at "},
		{Type: "image_url", URL: "https://x/y.png", Detail: "low"},
		{Type: "input_video", Raw: json.RawMessage(`{"type":"input_video","url":"v"}`)},
		{Type: "text", Text: "this"},
	}
	if diff := cmp.Diff(want, parts.Parts); diff != "" {
		t.Errorf("parts mismatch (-want +got):\n%s", diff)
	}
	if got := parts.String(); got != "look at this" {
		t.Errorf("String() = %q, want %q", got, "look at this")
	}

	data, err := json.Marshal(parts)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != input {
		t.Errorf("Marshal() = %s, want %s", data, input)
	}
}

func TestContentPartShapes(t *testing.T) {
	tests := []struct {
		input string
		want  ContentPart
	}{
		{`{"type":"input_text","text":"hi"}`, ContentPart{Type: "input_text", Text: "hi"}},
		{`{"type":"refusal","refusal":"no"}`, ContentPart{Type: "refusal", Refusal: "no"}},
		{`{"type":"input_image","image_url":"https://x/i.png"}`, ContentPart{Type: "input_image", URL: "https://x/i.png"}},
		{`{"type":"input_audio","input_audio":{"data":"AAA=","format":"wav"}}`, ContentPart{Type: "input_audio", Data: "AAA=", Format: "wav"}},
		{`{"type":"file","file":{"file_id":"file-1"}}`, ContentPart{Type: "file", FileID: "file-1"}},
		{`{"type":"input_file","file_id":"file-2"}`, ContentPart{Type: "input_file", FileID: "file-2"}},
		// A wrong nested shape does not match its arm and is kept raw.
		{`{"type":"input_audio","input_audio":{"data":"AAA=","format":"ogg"}}`, ContentPart{
			Type: "input_audio",
			Raw:  json.RawMessage(`{"type":"input_audio","input_audio":{"data":"AAA=","format":"ogg"}}`),
		}},
	}
	for _, tt := range tests {
		var got ContentPart
		if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
			t.Errorf("Unmarshal(%s) error: %v", tt.input, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Unmarshal(%s) mismatch (-want +got):\n%s", tt.input, diff)
		}
		data, err := json.Marshal(got)
		if err != nil {
			t.Errorf("Marshal(%+v) error: %v", got, err)
			continue
		}
		if string(data) != tt.input {
			t.Errorf("Marshal() = %s, want %s", data, tt.input)
		}
	}
}

func TestResponseInput(t *testing.T) {
	var text ResponseInput
	if err := json.Unmarshal([]byte(`"just text"`), &text); err != nil {
		t.Fatal(err)
	}
	if got := text.LastUserText(); got != "just text" {
		t.Errorf("LastUserText() = %q, want %q", got, "just text")
	}

	input := `[{"role":"user","content":"first"},{"role":"assistant","content":[{"type":"output_text","text":"ok"}]},{"role":"user","content":[{"type":"input_text","text":"second"}]},{"type":"function_call_output","call_id":"call_1","output":"42"}]`
	var items ResponseInput
	if err := json.Unmarshal([]byte(input), &items); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(items.Items) != 4 {
		t.Fatalf("len(Items) = %d, want 4", len(items.Items))
	}
	if got := items.LastUserText(); got != "second" {
		t.Errorf("LastUserText() = %q, want %q", got, "second")
	}
	if items.Items[3].CallID != "call_1" {
		t.Errorf("Items[3].CallID = %q, want call_1", items.Items[3].CallID)
	}
}

func TestCreateResponseRequestDecode(t *testing.T) {
	input := `{"model":"gpt-4.1","input":"hi","stream":true,"tool_choice":{"type":"function","name":"f"},"tools":[{"type":"file_search","filters":{"type":"eq","key":"k","value":true}}]}`
	var req CreateResponseRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if !req.Model.Known || req.Model.Name != "gpt-4.1" {
		t.Errorf("Model = %+v, want known gpt-4.1", req.Model)
	}
	if req.Input.Text != "hi" || !req.Stream {
		t.Errorf("Input = %+v, Stream = %v", req.Input, req.Stream)
	}
	if req.ToolChoice == nil || req.ToolChoice.Kind != ToolChoiceFunction || req.ToolChoice.Name != "f" {
		t.Errorf("ToolChoice = %+v, want function f", req.ToolChoice)
	}
	if f := req.Tools[0].Filters; f == nil || f.Key != "k" || f.Value != true {
		t.Errorf("Tools[0].Filters = %+v, want eq k true", f)
	}
}
