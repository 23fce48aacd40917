package api

import (
	"strings"
	"sync"

	"github.com/rhuss/streamwire/pkg/dispatch"
	"github.com/rhuss/streamwire/pkg/schema"
)

// Tagged set names registered in the catalogue.
const (
	SetResponsesEvents  = "responses"
	SetChatChunks       = "chat"
	SetRealtimeEvents   = "realtime"
	SetAssistantsEvents = "assistants"
	SetObjects          = "objects"
)

// Catalogue returns the frozen registry holding every shape, tagged set
// and untagged set of this package. It is built once and safe for
// concurrent use.
var Catalogue = sync.OnceValue(buildCatalogue)

var (
	str     = schema.String
	integer = schema.Integer
	number  = schema.Number
	anyObj  = schema.AnyObject
	obj     = schema.Object
	req     = schema.Req
	opt     = schema.Opt
)

var responseStatuses = []string{
	string(ResponseStatusQueued), string(ResponseStatusInProgress), string(ResponseStatusCompleted),
	string(ResponseStatusIncomplete), string(ResponseStatusFailed), string(ResponseStatusCancelled),
	string(ResponseStatusRequiresAction),
}

func buildCatalogue() *schema.Registry {
	r := schema.NewRegistry()
	registerCommon(r)
	registerUnions(r)
	registerResponses(r)
	registerChat(r)
	registerRealtime(r)
	registerAssistants(r)
	registerObjects(r)
	return r.MustFreeze()
}

func registerCommon(r *schema.Registry) {
	r.MustRegister(
		schema.ObjectShape("ErrorObject",
			opt("type", str()),
			opt("code", str().OrNull()),
			req("message", str()),
			opt("param", str().OrNull()),
		),
		schema.ObjectShape("Usage",
			req("input_tokens", integer()),
			req("output_tokens", integer()),
			opt("total_tokens", integer()),
			opt("input_tokens_details", anyObj()),
			opt("output_tokens_details", anyObj()),
		),
		schema.ObjectShape("OutputItem",
			req("type", str()),
			opt("id", str()),
			opt("status", str()),
		),
		schema.ObjectShape("OutputPart", req("type", str())),
		schema.ObjectShape("ResponseProperties",
			opt("model", str()),
			opt("instructions", str().OrNull()),
			opt("tool_choice", schema.Any()),
			opt("temperature", number().OrNull()),
			opt("top_p", number().OrNull()),
			opt("max_output_tokens", integer().OrNull()),
			opt("metadata", schema.MapOf(str()).OrNull()),
		),
		schema.ObjectShape("Response",
			req("id", str()),
			opt("object", schema.Const(ObjectResponse)),
			opt("created_at", integer()),
			req("status", schema.Enum(responseStatuses...)),
			opt("output", schema.ArrayOf(obj("OutputItem")).OrNull()),
			opt("error", obj("ErrorObject").OrNull()),
			opt("usage", obj("Usage").OrNull()),
			opt("incomplete_details", anyObj().OrNull()),
		).Include("ResponseProperties"),
	)
}

func registerUnions(r *schema.Registry) {
	detail := schema.Enum("auto", "low", "high")
	r.MustRegister(
		schema.ScalarShape("ToolChoiceMode", schema.Enum("none", "auto", "required")),
		schema.ObjectShape("ToolChoiceFunction", req("type", schema.Const("function")), req("name", str())),
		schema.ObjectShape("NamedFunction", req("name", str())),
		schema.ObjectShape("ToolChoiceChatFunction", req("type", schema.Const("function")), req("function", obj("NamedFunction"))),
		schema.ObjectShape("ToolChoiceHosted", req("type", schema.Enum(
			"file_search", "web_search", "web_search_preview", "computer_use_preview", "code_interpreter", "image_generation"))),
		schema.ObjectShape("ToolChoiceMCP", req("type", schema.Const("mcp")), req("server_label", str()), opt("name", str().OrNull())),
		schema.ObjectShape("ToolChoiceCustom", req("type", schema.Const("custom")), req("name", str())),
		schema.ObjectShape("ToolChoiceAllowedTools",
			req("type", schema.Const("allowed_tools")),
			req("mode", schema.Enum("auto", "required")),
			req("tools", schema.ArrayOf(anyObj())),
		),

		schema.ScalarShape("KnownModel", schema.Enum(knownModels...)),
		schema.ScalarShape("OpenModel", str()),

		schema.ScalarShape("AutoLiteral", schema.Const("auto")),
		schema.ScalarShape("IntValue", integer()),

		schema.ObjectShape("ComparisonFilter",
			req("type", schema.Enum("eq", "ne", "gt", "gte", "lt", "lte")),
			req("key", str()),
			req("value", schema.Any()),
		),
		schema.ObjectShape("CompoundFilter",
			req("type", schema.Enum("and", "or")),
			req("filters", schema.ArrayOf(schema.UnionOf("ComparisonFilter", "CompoundFilter"))),
		),

		schema.ObjectShape("TextPart", req("type", schema.Const("text")), req("text", str())),
		schema.ObjectShape("InputTextPart", req("type", schema.Const("input_text")), req("text", str())),
		schema.ObjectShape("OutputTextPart",
			req("type", schema.Const("output_text")),
			req("text", str()),
			opt("annotations", schema.ArrayOf(anyObj())),
		),
		schema.ObjectShape("RefusalPart", req("type", schema.Const("refusal")), req("refusal", str())),
		schema.ObjectShape("ImageURL", req("url", str()), opt("detail", detail)),
		schema.ObjectShape("ImageURLPart", req("type", schema.Const("image_url")), req("image_url", obj("ImageURL"))),
		schema.ObjectShape("InputImagePart",
			req("type", schema.Const("input_image")),
			opt("image_url", str().OrNull()),
			opt("file_id", str().OrNull()),
			opt("detail", detail),
		),
		schema.ObjectShape("InputAudio", req("data", str()), req("format", schema.Enum("wav", "mp3"))),
		schema.ObjectShape("InputAudioPart", req("type", schema.Const("input_audio")), req("input_audio", obj("InputAudio"))),
		schema.ObjectShape("FileRef", opt("file_id", str()), opt("filename", str()), opt("file_data", str())),
		schema.ObjectShape("FilePart", req("type", schema.Const("file")), req("file", obj("FileRef"))),
		schema.ObjectShape("InputFilePart",
			req("type", schema.Const("input_file")),
			opt("file_id", str().OrNull()),
			opt("filename", str()),
			opt("file_data", str()),
			opt("file_url", str()),
		),

		schema.ScalarShape("ContentText", str()),
		schema.ScalarShape("ContentParts", schema.ArrayOf(anyObj())),

		schema.ScalarShape("InputText", str()),
		schema.ScalarShape("InputItems", schema.ArrayOf(anyObj())),
	)

	r.MustDefineUntagged(SetToolChoice,
		"ToolChoiceMode", "ToolChoiceFunction", "ToolChoiceChatFunction", "ToolChoiceHosted",
		"ToolChoiceMCP", "ToolChoiceCustom", "ToolChoiceAllowedTools")
	r.MustDefineUntagged(SetModelID, "KnownModel", "OpenModel")
	r.MustDefineUntagged(SetAutoOrInt, "AutoLiteral", "IntValue")
	r.MustDefineUntagged(SetFilter, "ComparisonFilter", "CompoundFilter")
	r.MustDefineUntagged(SetContentPart,
		"TextPart", "InputTextPart", "OutputTextPart", "RefusalPart", "ImageURLPart",
		"InputImagePart", "InputAudioPart", "FilePart", "InputFilePart")
	r.MustDefineUntagged(SetMessageContent, "ContentText", "ContentParts")
	r.MustDefineUntagged(SetResponseInput, "InputText", "InputItems")
}

// shapeName derives a shape name from an event type:
// "response.output_text.delta" becomes "ResponseOutputTextDeltaEvent".
func shapeName(prefix string, t StreamEventType) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, word := range strings.FieldsFunc(string(t), func(r rune) bool { return r == '.' || r == '_' }) {
		b.WriteString(strings.ToUpper(word[:1]) + word[1:])
	}
	b.WriteString("Event")
	return b.String()
}

func scopeFields(s Scope) []schema.Field {
	switch s {
	case ScopeContent:
		return []schema.Field{req("content_index", integer())}
	case ScopeSummary:
		return []schema.Field{req("summary_index", integer())}
	}
	return nil
}

// pairShapes derives the delta and done shapes of each pair from the
// family's delta template.
func pairShapes(prefix string, tmpl schema.Template, pairs []deltaPair, extra func(deltaPair) []schema.Field) ([]schema.Shape, []schema.Tag) {
	var shapes []schema.Shape
	var tags []schema.Tag
	for _, p := range pairs {
		fields := append(scopeFields(p.scope), extra(p)...)

		delta := shapeName(prefix, p.delta)
		shapes = append(shapes, tmpl.Derive(delta, append(fields, req("delta", str()))...))
		tags = append(tags, schema.T(string(p.delta), delta))

		done := shapeName(prefix, p.done)
		doneFields := fields
		if p.final != "" {
			doneFields = append(append([]schema.Field(nil), fields...), req(p.final, str()))
		}
		shapes = append(shapes, tmpl.Derive(done, doneFields...))
		tags = append(tags, schema.T(string(p.done), done))
	}
	return shapes, tags
}

func noFields(deltaPair) []schema.Field { return nil }

func registerResponses(r *schema.Registry) {
	base := schema.NewTemplate(req("type", str()), req("sequence_number", integer()))

	var shapes []schema.Shape
	var tags []schema.Tag
	add := func(t StreamEventType, s schema.Shape) {
		shapes = append(shapes, s)
		tags = append(tags, schema.T(string(t), s.Name))
	}

	for _, t := range []StreamEventType{
		EventResponseCreated, EventResponseQueued, EventResponseInProgress,
		EventResponseCompleted, EventResponseFailed, EventResponseIncomplete, EventResponseCancelled,
	} {
		add(t, base.Derive(shapeName("", t), req("response", obj("Response"))))
	}
	for _, t := range []StreamEventType{EventOutputItemAdded, EventOutputItemDone} {
		add(t, base.Derive(shapeName("", t), req("output_index", integer()), req("item", obj("OutputItem"))))
	}
	for _, t := range []StreamEventType{EventContentPartAdded, EventContentPartDone} {
		add(t, base.Derive(shapeName("", t),
			req("item_id", str()), req("output_index", integer()), req("content_index", integer()), req("part", obj("OutputPart"))))
	}
	for _, t := range []StreamEventType{EventReasoningSummaryPartAdded, EventReasoningSummaryPartDone} {
		add(t, base.Derive(shapeName("", t),
			req("item_id", str()), req("output_index", integer()), req("summary_index", integer()), req("part", obj("OutputPart"))))
	}
	add(EventOutputTextAnnotationAdded, base.Derive(shapeName("", EventOutputTextAnnotationAdded),
		req("item_id", str()), req("output_index", integer()), req("content_index", integer()),
		opt("annotation_index", integer()), req("annotation", anyObj())))
	for _, t := range toolProgressEvents {
		add(t, base.Derive(shapeName("", t), req("item_id", str()), req("output_index", integer())))
	}
	add(EventError, schema.ObjectShape("ResponseErrorEvent",
		req("type", schema.Const(string(EventError))),
		opt("sequence_number", integer()),
		opt("code", str().OrNull()),
		req("message", str()),
		opt("param", str().OrNull()),
	))

	deltaTmpl := schema.NewTemplate(append(base.Fields, req("item_id", str()), req("output_index", integer()))...)
	ds, dt := pairShapes("", deltaTmpl, responsesPairs, noFields)
	shapes = append(shapes, ds...)
	tags = append(tags, dt...)

	r.MustRegister(shapes...)
	r.MustDefineTagged(SetResponsesEvents, "type", tags...)
}

func registerChat(r *schema.Registry) {
	r.MustRegister(
		schema.ObjectShape("ChatChunkFunction", opt("name", str()), opt("arguments", str())),
		schema.ObjectShape("ChatChunkToolCall",
			req("index", integer()),
			opt("id", str()),
			opt("type", schema.Const("function")),
			opt("function", obj("ChatChunkFunction")),
		),
		schema.ObjectShape("ChatChunkDelta",
			opt("role", str()),
			opt("content", str().OrNull()),
			opt("refusal", str().OrNull()),
			opt("reasoning_content", str().OrNull()),
			opt("tool_calls", schema.ArrayOf(obj("ChatChunkToolCall"))),
			opt("audio", anyObj()),
		),
		schema.ObjectShape("ChatChunkChoice",
			req("index", integer()),
			req("delta", obj("ChatChunkDelta")),
			opt("finish_reason", schema.Enum(FinishStop, FinishLength, FinishToolCalls, FinishContentFilter, "function_call").OrNull()),
			opt("logprobs", schema.Any()),
		),
		schema.ObjectShape("ChatUsage",
			req("prompt_tokens", integer()),
			req("completion_tokens", integer()),
			req("total_tokens", integer()),
		),
		schema.ObjectShape("ChatCompletionChunk",
			req("id", str()),
			req("object", schema.Const(ObjectChatCompletionChunk)),
			opt("created", integer()),
			opt("model", str()),
			opt("system_fingerprint", str().OrNull()),
			req("choices", schema.ArrayOf(obj("ChatChunkChoice"))),
			opt("usage", obj("ChatUsage").OrNull()),
		),
		schema.ObjectShape("ChatMessage",
			req("role", str()),
			opt("content", schema.UnionOf("ContentText", "ContentParts").OrNull()),
			opt("refusal", str().OrNull()),
			opt("tool_calls", schema.ArrayOf(anyObj())),
		),
		schema.ObjectShape("ChatChoice",
			req("index", integer()),
			req("message", obj("ChatMessage")),
			opt("finish_reason", str().OrNull()),
		),
		schema.ObjectShape("ChatCompletion",
			req("id", str()),
			req("object", schema.Const(ObjectChatCompletion)),
			opt("created", integer()),
			opt("model", str()),
			req("choices", schema.ArrayOf(obj("ChatChoice"))),
			opt("usage", obj("ChatUsage").OrNull()),
		),
	)
	r.MustDefineTagged(SetChatChunks, "object", schema.T(ObjectChatCompletionChunk, "ChatCompletionChunk"))
}

func registerRealtime(r *schema.Registry) {
	base := schema.NewTemplate(req("type", str()), opt("event_id", str()))
	r.MustRegister(schema.ObjectShape("RealtimeResponse",
		opt("id", str()),
		opt("object", schema.Const(ObjectRealtimeResponse)),
		opt("status", schema.Enum(responseStatuses...)),
		opt("status_details", anyObj().OrNull()),
		opt("output", schema.ArrayOf(obj("OutputItem")).OrNull()),
		opt("usage", anyObj().OrNull()),
	))

	var shapes []schema.Shape
	var tags []schema.Tag
	add := func(t StreamEventType, fields ...schema.Field) {
		s := base.Derive(shapeName("Realtime", t), fields...)
		shapes = append(shapes, s)
		tags = append(tags, schema.T(string(t), s.Name))
	}

	add(RealtimeError, req("error", obj("ErrorObject")))
	add(RealtimeSessionCreated, req("session", anyObj()))
	add(RealtimeSessionUpdated, req("session", anyObj()))
	for _, t := range []StreamEventType{RealtimeConversationItemAdded, RealtimeConversationItemCreate, RealtimeConversationItemDone} {
		add(t, opt("previous_item_id", str().OrNull()), req("item", obj("OutputItem")))
	}
	add(RealtimeInputTranscriptDelta, req("item_id", str()), opt("content_index", integer()), req("delta", str()))
	add(RealtimeInputTranscriptDone, req("item_id", str()), opt("content_index", integer()), req("transcript", str()))
	for _, t := range []StreamEventType{RealtimeBufferCommitted, RealtimeBufferCleared, RealtimeSpeechStarted, RealtimeSpeechStopped} {
		add(t, opt("item_id", str()))
	}
	add(RealtimeRateLimitsUpdated, req("rate_limits", schema.ArrayOf(anyObj())))
	add(RealtimeResponseCreated, req("response", obj("RealtimeResponse")))
	add(RealtimeResponseDone, req("response", obj("RealtimeResponse")))
	for _, t := range realtimeItemEvents {
		add(t, req("response_id", str()), req("output_index", integer()), req("item", obj("OutputItem")))
	}
	for _, t := range realtimePartEvents {
		add(t, req("response_id", str()), req("item_id", str()), req("output_index", integer()),
			req("content_index", integer()), req("part", obj("OutputPart")))
	}

	deltaTmpl := schema.NewTemplate(append(base.Fields, req("response_id", str()), req("item_id", str()), req("output_index", integer()))...)
	ds, dt := pairShapes("Realtime", deltaTmpl, realtimePairs, func(p deltaPair) []schema.Field {
		if p.field == FieldArguments {
			return []schema.Field{req("call_id", str())}
		}
		return nil
	})
	shapes = append(shapes, ds...)
	tags = append(tags, dt...)

	r.MustRegister(shapes...)
	r.MustDefineTagged(SetRealtimeEvents, "type", tags...)
}

func registerAssistants(r *schema.Registry) {
	runStatuses := []string{
		string(RunQueued), string(RunInProgress), string(RunRequiresAction), string(RunCancelling),
		string(RunCancelled), string(RunFailed), string(RunCompleted), string(RunIncomplete), string(RunExpired),
	}
	r.MustRegister(
		schema.ObjectShape("Thread", req("id", str()), req("object", schema.Const(ObjectThread))),
		schema.ObjectShape("RunUsage",
			req("prompt_tokens", integer()),
			req("completion_tokens", integer()),
			req("total_tokens", integer()),
		),
		schema.ObjectShape("Run",
			req("id", str()),
			req("object", schema.Const(ObjectRun)),
			req("status", schema.Enum(runStatuses...)),
			opt("thread_id", str()),
			opt("assistant_id", str()),
			opt("last_error", obj("ErrorObject").OrNull()),
			opt("usage", obj("RunUsage").OrNull()),
			opt("incomplete_details", anyObj().OrNull()),
			opt("required_action", anyObj().OrNull()),
		),
		schema.ObjectShape("RunStep",
			req("id", str()),
			req("object", schema.Const(ObjectRunStep)),
			opt("status", str()),
			opt("type", str()),
			opt("step_details", anyObj()),
		),
		schema.ObjectShape("RunStepDelta",
			req("id", str()),
			req("object", schema.Const(ObjectRunStepDelta)),
			req("delta", anyObj()),
		),
		schema.ObjectShape("ThreadMessage",
			req("id", str()),
			req("object", schema.Const(ObjectThreadMessage)),
			opt("role", str()),
			opt("status", str()),
			opt("content", schema.ArrayOf(anyObj()).OrNull()),
		),
		schema.ObjectShape("MessageDeltaContent",
			req("index", integer()),
			req("type", str()),
			opt("text", anyObj()),
		),
		schema.ObjectShape("MessageDeltaBody",
			opt("role", str()),
			opt("content", schema.ArrayOf(obj("MessageDeltaContent"))),
		),
		schema.ObjectShape("MessageDelta",
			req("id", str()),
			req("object", schema.Const(ObjectMessageDelta)),
			req("delta", obj("MessageDeltaBody")),
		),
	)

	env := schema.NewTemplate(req("event", str()))
	var tags []schema.Tag
	envelope := func(name, data string, events ...string) {
		r.MustRegister(env.Derive(name, req("data", obj(data))))
		for _, e := range events {
			tags = append(tags, schema.T(e, name))
		}
	}
	envelope("ThreadEnvelope", "Thread", AssistantThreadCreated)
	envelope("RunEnvelope", "Run",
		AssistantRunCreated, AssistantRunQueued, AssistantRunInProgress, AssistantRunRequiresAction,
		AssistantRunCompleted, AssistantRunIncomplete, AssistantRunFailed, AssistantRunCancelling,
		AssistantRunCancelled, AssistantRunExpired)
	envelope("RunStepEnvelope", "RunStep",
		AssistantStepCreated, AssistantStepInProgress, AssistantStepCompleted,
		AssistantStepFailed, AssistantStepCancelled, AssistantStepExpired)
	envelope("RunStepDeltaEnvelope", "RunStepDelta", AssistantStepDelta)
	envelope("MessageEnvelope", "ThreadMessage",
		AssistantMessageCreated, AssistantMessageInProgress, AssistantMessageCompleted, AssistantMessageIncomplete)
	envelope("MessageDeltaEnvelope", "MessageDelta", AssistantMessageDelta)
	envelope("ErrorEnvelope", "ErrorObject", AssistantError)

	r.MustRegister(env.Derive("DoneEnvelope", opt("data", schema.Any())))
	tags = append(tags, schema.T(AssistantDone, "DoneEnvelope"))

	r.MustDefineTagged(SetAssistantsEvents, "event", tags...)
}

func registerObjects(r *schema.Registry) {
	r.MustRegister(
		schema.ObjectShape("ListPage",
			req("object", schema.Const(ObjectList)),
			req("data", schema.ArrayOf(anyObj())),
			opt("first_id", str().OrNull()),
			opt("last_id", str().OrNull()),
			opt("has_more", schema.Bool()),
		),
		schema.ObjectShape("Hyperparameters",
			opt("n_epochs", schema.UnionOf("AutoLiteral", "IntValue")),
			opt("batch_size", schema.UnionOf("AutoLiteral", "IntValue")),
		),
		schema.ObjectShape("FineTuningJob",
			req("id", str()),
			req("object", schema.Const(ObjectFineTuningJob)),
			req("model", schema.UnionOf("KnownModel", "OpenModel")),
			req("status", str()),
			req("hyperparameters", obj("Hyperparameters")),
			opt("error", obj("ErrorObject").OrNull()),
		),
	)
	r.MustDefineTagged(SetObjects, "object",
		schema.T(ObjectResponse, "Response"),
		schema.T(ObjectChatCompletion, "ChatCompletion"),
		schema.T(ObjectChatCompletionChunk, "ChatCompletionChunk"),
		schema.T(ObjectThread, "Thread"),
		schema.T(ObjectRun, "Run"),
		schema.T(ObjectRunStep, "RunStep"),
		schema.T(ObjectThreadMessage, "ThreadMessage"),
		schema.T(ObjectList, "ListPage"),
		schema.T(ObjectRealtimeResponse, "RealtimeResponse"),
		schema.T(ObjectFineTuningJob, "FineTuningJob"),
	)
}

func tagged(name string) *schema.TaggedSet {
	set, ok := Catalogue().Tagged(name)
	if !ok {
		panic("api: tagged set " + name + " is not registered")
	}
	return set
}

// ResponsesDispatcher decodes responses stream events into StreamEvent.
var ResponsesDispatcher = sync.OnceValue(func() *dispatch.Dispatcher {
	return dispatch.BindAll[StreamEvent](dispatch.New(tagged(SetResponsesEvents)))
})

// ChatDispatcher decodes chat completion chunks.
var ChatDispatcher = sync.OnceValue(func() *dispatch.Dispatcher {
	return dispatch.BindAll[ChatCompletionChunk](dispatch.New(tagged(SetChatChunks)))
})

// RealtimeDispatcher decodes realtime server events into RealtimeEvent.
var RealtimeDispatcher = sync.OnceValue(func() *dispatch.Dispatcher {
	return dispatch.BindAll[RealtimeEvent](dispatch.New(tagged(SetRealtimeEvents)))
})

// AssistantsDispatcher decodes run stream envelopes into AssistantEvent.
var AssistantsDispatcher = sync.OnceValue(func() *dispatch.Dispatcher {
	d := dispatch.New(tagged(SetAssistantsEvents))
	return dispatch.Bind(d, DecodeAssistantEvent, d.Set().Tags()...)
})

// ObjectsDispatcher decodes resource objects by their object member.
var ObjectsDispatcher = sync.OnceValue(func() *dispatch.Dispatcher {
	d := dispatch.New(tagged(SetObjects))
	dispatch.BindJSON[Response](d, ObjectResponse)
	dispatch.BindJSON[ChatCompletion](d, ObjectChatCompletion)
	dispatch.BindJSON[ChatCompletionChunk](d, ObjectChatCompletionChunk)
	dispatch.BindJSON[Thread](d, ObjectThread)
	dispatch.BindJSON[Run](d, ObjectRun)
	dispatch.BindJSON[RunStep](d, ObjectRunStep)
	dispatch.BindJSON[ThreadMessage](d, ObjectThreadMessage)
	dispatch.BindJSON[ListPage](d, ObjectList)
	dispatch.BindJSON[RealtimeResponse](d, ObjectRealtimeResponse)
	dispatch.BindJSON[FineTuningJob](d, ObjectFineTuningJob)
	return d
})

// Dispatcher returns the dispatcher of the named tagged set.
func Dispatcher(set string) (*dispatch.Dispatcher, bool) {
	switch set {
	case SetResponsesEvents:
		return ResponsesDispatcher(), true
	case SetChatChunks:
		return ChatDispatcher(), true
	case SetRealtimeEvents:
		return RealtimeDispatcher(), true
	case SetAssistantsEvents:
		return AssistantsDispatcher(), true
	case SetObjects:
		return ObjectsDispatcher(), true
	}
	return nil, false
}
