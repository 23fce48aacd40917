// Package accumulate merges streamed delta fragments into final values.
//
// An Accumulator holds one slot per (output index, content index, field).
// Fragments are kept in sequence-number order, so deltas that crossed on
// the wire are applied in generation order. Done events close single
// slots; Finish freezes the whole operation into a Result. Slots still
// open when a non-completed operation finishes are flagged incomplete.
//
// An Accumulator belongs to one stream and is not safe for concurrent use.
package accumulate

import (
	"bytes"
	"cmp"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kaptinlin/jsonrepair"
	"github.com/samber/lo"

	"github.com/rhuss/streamwire/pkg/api"
	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/observability"
	"github.com/rhuss/streamwire/pkg/schema"
)

// MaxContentIndex bounds the content index of a slot or part. Wire
// indices above it are rejected rather than padded.
const MaxContentIndex = 255

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithBuffering controls reordering. With buffering off, a fragment whose
// sequence number is below one already applied is rejected. Default: on.
func WithBuffering(on bool) Option {
	return func(a *Accumulator) { a.buffering = on }
}

// WithRepair controls best-effort repair of incomplete tool call
// arguments. Default: on.
func WithRepair(on bool) Option {
	return func(a *Accumulator) { a.repair = on }
}

type outputState struct {
	item   *api.Item
	closed bool
}

// Accumulator merges the deltas of one streamed operation.
type Accumulator struct {
	buffering bool
	repair    bool

	slots   map[Slot]*slotState
	outputs map[int]*outputState

	status   api.ResponseStatus
	response *api.Response
	usage    *api.Usage
	err      *api.APIError

	result *Result
}

// New creates an empty Accumulator.
func New(opts ...Option) *Accumulator {
	a := &Accumulator{
		buffering: true,
		repair:    true,
		slots:     make(map[Slot]*slotState),
		outputs:   make(map[int]*outputState),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Finished reports whether Finish has been called.
func (a *Accumulator) Finished() bool { return a.result != nil }

// Status returns the operation status seen so far.
func (a *Accumulator) Status() api.ResponseStatus { return a.status }

func (a *Accumulator) output(index int) *outputState {
	o, ok := a.outputs[index]
	if !ok {
		o = &outputState{}
		a.outputs[index] = o
	}
	return o
}

// slot returns the state for s, creating it on first use. Slots of a
// closed output cannot be created.
func (a *Accumulator) slot(s Slot, itemID string, seq int) (*slotState, error) {
	if st, ok := a.slots[s]; ok {
		if itemID != "" && st.itemID != "" && itemID != st.itemID {
			return nil, &TransitionError{Slot: s, Seq: seq, Reason: fmt.Sprintf("slot belongs to item %s, not %s", st.itemID, itemID)}
		}
		if st.itemID == "" {
			st.itemID = itemID
		}
		return st, nil
	}
	if a.result != nil {
		return nil, &TransitionError{Slot: s, Seq: seq, Reason: "operation finished"}
	}
	if s.Content < 0 || s.Content > MaxContentIndex {
		return nil, &TransitionError{Slot: s, Seq: seq, Reason: fmt.Sprintf("content index outside 0..%d", MaxContentIndex)}
	}
	if o, ok := a.outputs[s.Output]; ok && o.closed {
		return nil, &TransitionError{Slot: s, Seq: seq, Reason: "output closed"}
	}
	st := newSlotState(s, itemID)
	a.slots[s] = st
	a.output(s.Output)
	debug.Trace(debug.Accumulate, "slot opened", "slot", s.String(), "item_id", itemID)
	return st, nil
}

// Apply merges one delta. Errors affect only the delta's slot.
func (a *Accumulator) Apply(d Delta) error {
	st, err := a.slot(d.Slot, d.ItemID, d.Seq)
	if err != nil {
		return err
	}
	if st.closed {
		return &TransitionError{Slot: d.Slot, Seq: d.Seq, Reason: "slot closed"}
	}

	data, err := st.kind.merge(d.Fragment)
	if err != nil {
		return &schema.DecodeError{Kind: schema.ErrMalformed, Field: d.Slot.Field, Err: err}
	}

	seq := d.Seq
	if seq < 0 {
		seq = st.last + 1
	}
	reordered, err := st.insert(fragment{seq: seq, raw: d.Fragment, data: data}, a.buffering)
	if err != nil {
		return err
	}
	if reordered {
		observability.ReorderedDeltasTotal.Inc()
		debug.Log(debug.Accumulate, "delta reordered", "slot", d.Slot.String(), "seq", seq, "last", st.last)
	}
	return nil
}

// Close freezes a slot. A non-nil final is the authoritative value from
// the done event and replaces the accumulated one. Closing a closed slot
// is a no-op.
func (a *Accumulator) Close(s Slot, itemID string, final *string) error {
	st, err := a.slot(s, itemID, -1)
	if err != nil {
		return err
	}
	if st.closed {
		return nil
	}
	if final != nil {
		data, err := st.kind.merge(*final)
		if err != nil {
			return &schema.DecodeError{Kind: schema.ErrMalformed, Field: s.Field, Err: err}
		}
		if acc := st.bytes(); len(st.frags) > 0 && !bytes.Equal(acc, data) {
			debug.Log(debug.Accumulate, "final value differs from deltas", "slot", s.String(),
				"accumulated", len(acc), "final", len(data))
		}
		st.final = data
	}
	st.closed = true
	return nil
}

// SetCall records the call id and name of a tool call slot. Empty values
// keep what was recorded before.
func (a *Accumulator) SetCall(s Slot, callID, name string) error {
	st, err := a.slot(s, "", -1)
	if err != nil {
		return err
	}
	if callID != "" {
		st.callID = callID
	}
	if name != "" {
		st.name = name
	}
	return nil
}

// SetItem records the item announced for an output. It is ignored once
// the output or the operation is closed.
func (a *Accumulator) SetItem(output int, item api.Item) {
	if a.result != nil {
		return
	}
	o := a.output(output)
	if o.closed {
		return
	}
	o.item = lo.ToPtr(cloneItem(&item))
}

// SetPart records a content part announced for an output. Parts of
// reasoning items go to the reasoning content, all others to the message.
// Parts of a closed output or operation are ignored.
func (a *Accumulator) SetPart(output, content int, part api.OutputContentPart) error {
	slot := Slot{Output: output, Content: content, Field: "part"}
	if a.result != nil {
		return &TransitionError{Slot: slot, Seq: -1, Reason: "operation finished"}
	}
	if content < 0 || content > MaxContentIndex {
		return &TransitionError{Slot: slot, Seq: -1, Reason: fmt.Sprintf("content index outside 0..%d", MaxContentIndex)}
	}
	o := a.output(output)
	if o.closed {
		return nil
	}
	if o.item == nil {
		o.item = &api.Item{Type: api.ItemTypeMessage}
	}
	var parts *[]api.OutputContentPart
	if o.item.Type == api.ItemTypeReasoning {
		if o.item.Reasoning == nil {
			o.item.Reasoning = &api.ReasoningData{}
		}
		parts = &o.item.Reasoning.Content
	} else {
		if o.item.Message == nil {
			o.item.Message = &api.MessageData{Role: api.RoleAssistant}
		}
		parts = &o.item.Message.Output
	}
	*partAt(parts, content) = part
	return nil
}

// CloseOutput closes every slot of an output. A non-nil item replaces the
// announced one. Closing twice, or after Finish, is a no-op.
func (a *Accumulator) CloseOutput(output int, item *api.Item) {
	if a.result != nil {
		return
	}
	o := a.output(output)
	if o.closed {
		return
	}
	if item != nil {
		if o.item != nil && o.item.Status != item.Status {
			if apiErr := api.ValidateItemTransition(o.item.Status, item.Status); apiErr != nil {
				debug.Log(debug.Accumulate, "item status overrides", "output", output, "from", o.item.Status, "to", item.Status)
			}
		}
		o.item = lo.ToPtr(cloneItem(item))
	}
	for s, st := range a.slots {
		if s.Output == output {
			st.closed = true
		}
	}
	o.closed = true
}

// SetStatus moves the operation status, validating the transition.
func (a *Accumulator) SetStatus(status api.ResponseStatus) error {
	if status == a.status {
		return nil
	}
	if apiErr := api.ValidateResponseTransition(a.status, status); apiErr != nil {
		return &TransitionError{Slot: Slot{Output: -1, Content: -1, Field: "status"}, Seq: -1, Reason: apiErr.Message}
	}
	a.status = status
	return nil
}

// SetResponse records a response object carried by a lifecycle event.
func (a *Accumulator) SetResponse(resp *api.Response) {
	if resp == nil {
		return
	}
	a.response = resp
	if resp.Usage != nil {
		a.usage = resp.Usage
	}
	if resp.Error != nil {
		a.err = resp.Error
	}
}

// SetUsage records token usage.
func (a *Accumulator) SetUsage(u *api.Usage) {
	if u != nil {
		a.usage = u
	}
}

// SetError records an operation error. The first error wins.
func (a *Accumulator) SetError(e *api.APIError) {
	if e != nil && a.err == nil {
		a.err = e
	}
}

// Value returns the current value of a slot.
func (a *Accumulator) Value(s Slot) (Value, bool) {
	st, ok := a.slots[s]
	if !ok {
		return Value{}, false
	}
	return a.value(st), true
}

func (a *Accumulator) value(st *slotState) Value {
	data := st.bytes()
	v := Value{
		Slot:       st.slot,
		ItemID:     st.itemID,
		CallID:     st.callID,
		Name:       st.name,
		Closed:     st.closed,
		Incomplete: st.incomplete,
	}
	if st.kind.binary {
		v.Bytes = data
		v.Text = base64.StdEncoding.EncodeToString(data)
	} else {
		v.Text = string(data)
	}
	if a.repair && v.Incomplete && st.slot.Field == api.FieldArguments && len(data) > 0 && !json.Valid(data) {
		repaired, err := jsonrepair.JSONRepair(v.Text)
		if err == nil && json.Valid([]byte(repaired)) {
			v.Repaired = repaired
		} else {
			slog.Warn("could not repair truncated arguments", "slot", st.slot.String())
		}
	}
	return v
}

// Finish freezes the operation. Open slots are closed; unless status is
// completed they are flagged incomplete. Finish is idempotent: later calls
// return the first result.
func (a *Accumulator) Finish(status api.ResponseStatus, reason string) *Result {
	if a.result != nil {
		return a.result
	}
	if status != a.status {
		if apiErr := api.ValidateResponseTransition(a.status, status); apiErr != nil {
			debug.Log(debug.Accumulate, "terminal status overrides", "from", a.status, "to", status)
		}
		a.status = status
	}

	truncated := status != api.ResponseStatusCompleted
	for _, st := range a.slots {
		if !st.closed {
			st.closed = true
			st.incomplete = truncated
		}
	}

	r := &Result{
		Status:   status,
		Reason:   reason,
		Response: a.response,
		Usage:    a.usage,
		Error:    a.err,
	}
	if r.Reason == "" && status == api.ResponseStatusIncomplete && a.response != nil && a.response.IncompleteDetails != nil {
		r.Reason = a.response.IncompleteDetails.Reason
	}

	r.Outputs = a.outputsSorted(truncated)
	for _, out := range r.Outputs {
		r.Items = append(r.Items, materialize(out)...)
		r.Incomplete = r.Incomplete || out.Incomplete
	}
	r.Incomplete = r.Incomplete || status == api.ResponseStatusIncomplete || reason == ReasonConnectionClosed

	for _, o := range a.outputs {
		o.closed = true
	}
	a.result = r
	debug.Log(debug.Accumulate, "operation finished", "status", status, "reason", r.Reason,
		"outputs", len(r.Outputs), "incomplete", r.Incomplete)
	return r
}

func (a *Accumulator) outputsSorted(truncated bool) []Output {
	byOutput := lo.GroupBy(lo.Values(a.slots), func(st *slotState) int { return st.slot.Output })

	indices := lo.Keys(a.outputs)
	slices.Sort(indices)

	outputs := make([]Output, 0, len(indices))
	for _, idx := range indices {
		states := byOutput[idx]
		slices.SortFunc(states, func(x, y *slotState) int {
			return cmp.Or(cmp.Compare(x.slot.Content, y.slot.Content), cmp.Compare(x.slot.Field, y.slot.Field))
		})
		o := a.outputs[idx]
		out := Output{Index: idx, Incomplete: truncated && !o.closed}
		if o.item != nil {
			out.Item = lo.ToPtr(cloneItem(o.item))
		}
		for _, st := range states {
			v := a.value(st)
			out.Values = append(out.Values, v)
			out.Incomplete = out.Incomplete || v.Incomplete
		}
		outputs = append(outputs, out)
	}
	return outputs
}
