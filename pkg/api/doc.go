// Package api holds the wire types and the registered shape catalogue of
// the streamed API families the engine understands: the responses event
// stream, chat completion chunks, realtime server events, assistants run
// streams and the resource objects they carry.
//
// The Go types here are deliberately representative rather than complete.
// Every type keeps enough structure for the accumulator to materialize a
// final result, and unknown fields or item types are preserved as raw JSON
// so the catalogue can grow without breaking decoding.
//
// Shape tables:
//   - [Catalogue]: the frozen registry with every tagged and untagged set
//   - [ResponsesDispatcher], [ChatDispatcher], [RealtimeDispatcher],
//     [AssistantsDispatcher], [ObjectsDispatcher]: per-family dispatchers
//   - [LookupDeltaRule]: which streamed event types carry delta fragments
//     and which carry the authoritative final value
//
// Union types decoded by structural fit: [ToolChoice], [ModelID],
// [AutoOrInt], [Filter], [MessageContent] and [ResponseInput].
package api
