package api

// Slot fields. A slot is one independently accumulated value of an output,
// addressed by output index, content index and field.
const (
	FieldText       = "text"
	FieldRefusal    = "refusal"
	FieldArguments  = "arguments"
	FieldInput      = "input"
	FieldSummary    = "summary"
	FieldReasoning  = "reasoning"
	FieldAudio      = "audio"
	FieldTranscript = "transcript"
	FieldCode       = "code"
)

// Phase tells fragment-carrying events from the events that close a slot.
type Phase int

const (
	PhaseDelta Phase = iota + 1
	PhaseDone
)

// Scope names the event member that supplies a slot's content index.
type Scope int

const (
	ScopeItem    Scope = iota // the slot is the whole item; content index 0
	ScopeContent              // content_index
	ScopeSummary              // summary_index
)

// DeltaRule describes how one streamed event type updates a slot.
type DeltaRule struct {
	Field string
	Phase Phase
	Scope Scope

	// Final is the done-event member holding the authoritative final
	// value, or "" when the done event carries none.
	Final string
}

type deltaPair struct {
	delta, done StreamEventType
	field       string
	scope       Scope
	final       string
}

var responsesPairs = []deltaPair{
	{EventOutputTextDelta, EventOutputTextDone, FieldText, ScopeContent, "text"},
	{EventRefusalDelta, EventRefusalDone, FieldRefusal, ScopeContent, "refusal"},
	{EventFunctionCallArgsDelta, EventFunctionCallArgsDone, FieldArguments, ScopeItem, "arguments"},
	{EventCustomToolCallInputDelta, EventCustomToolCallInputDone, FieldInput, ScopeItem, "input"},
	{EventMCPCallArgsDelta, EventMCPCallArgsDone, FieldArguments, ScopeItem, "arguments"},
	{EventReasoningSummaryTextDelta, EventReasoningSummaryTextDone, FieldSummary, ScopeSummary, "text"},
	{EventReasoningTextDelta, EventReasoningTextDone, FieldReasoning, ScopeContent, "text"},
	{EventOutputAudioDelta, EventOutputAudioDone, FieldAudio, ScopeContent, ""},
	{EventOutputAudioTranscriptDelta, EventOutputAudioTranscriptDone, FieldTranscript, ScopeContent, "transcript"},
	{EventCodeInterpreterCallCodeDelta, EventCodeInterpreterCallCodeDone, FieldCode, ScopeItem, "code"},
}

var realtimePairs = []deltaPair{
	{RealtimeOutputTextDelta, RealtimeOutputTextDone, FieldText, ScopeContent, "text"},
	{RealtimeTextDelta, RealtimeTextDone, FieldText, ScopeContent, "text"},
	{RealtimeOutputAudioDelta, RealtimeOutputAudioDone, FieldAudio, ScopeContent, ""},
	{RealtimeAudioDelta, RealtimeAudioDone, FieldAudio, ScopeContent, ""},
	{RealtimeOutputAudioTranscriptDelta, RealtimeOutputAudioTranscriptDone, FieldTranscript, ScopeContent, "transcript"},
	{RealtimeAudioTranscriptDelta, RealtimeAudioTranscriptDone, FieldTranscript, ScopeContent, "transcript"},
	{RealtimeFunctionCallArgsDelta, RealtimeFunctionCallArgsDone, FieldArguments, ScopeItem, "arguments"},
}

var (
	responsesRules = buildRules(responsesPairs)
	realtimeRules  = buildRules(realtimePairs)
)

func buildRules(pairs []deltaPair) map[StreamEventType]DeltaRule {
	rules := make(map[StreamEventType]DeltaRule, 2*len(pairs))
	for _, p := range pairs {
		rules[p.delta] = DeltaRule{Field: p.field, Phase: PhaseDelta, Scope: p.scope}
		rules[p.done] = DeltaRule{Field: p.field, Phase: PhaseDone, Scope: p.scope, Final: p.final}
	}
	return rules
}

// LookupDeltaRule returns the rule for a responses event type.
func LookupDeltaRule(t StreamEventType) (DeltaRule, bool) {
	r, ok := responsesRules[t]
	return r, ok
}

// LookupRealtimeDeltaRule returns the rule for a realtime server event
// type. GA and beta names map to the same slot fields.
func LookupRealtimeDeltaRule(t StreamEventType) (DeltaRule, bool) {
	r, ok := realtimeRules[t]
	return r, ok
}
