// Package dispatch decodes tagged payloads by their discriminator field.
//
// A Dispatcher wraps a frozen schema.TaggedSet. Payloads whose tag is
// registered are validated against the tag's shape and handed to the bound
// decoder. Payloads whose discriminator is absent, empty, not a string or
// not registered decode into Unknown and are never an error, so new server
// side event kinds do not break older clients.
package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/observability"
	"github.com/rhuss/streamwire/pkg/schema"
	"github.com/rhuss/streamwire/pkg/variant"
)

// Unknown is the fallback variant. It retains the tag as read (empty when
// absent) and the raw payload.
type Unknown struct {
	Tag string
	Raw json.RawMessage
}

// Value is one dispatched payload.
type Value struct {
	// Tag is the discriminator value, or "" when it was absent.
	Tag string

	// Shape is the registered shape name, or "" for unknown payloads.
	Shape string

	// Data holds the decoded Go value. It is an Unknown for unknown
	// payloads and the raw payload when no decoder is bound to the tag.
	Data any

	// Raw is the payload exactly as received.
	Raw json.RawMessage
}

// IsUnknown reports whether the payload fell back to the unknown variant.
func (v Value) IsUnknown() bool {
	_, ok := v.Data.(Unknown)
	return ok
}

// As returns v.Data as a T.
func As[T any](v Value) (T, bool) {
	t, ok := v.Data.(T)
	return t, ok
}

type decodeFunc func(data []byte) (any, error)

// Dispatcher decodes payloads of one tagged set. It is safe for concurrent
// use once all decoders are bound.
type Dispatcher struct {
	set      *schema.TaggedSet
	decoders map[string]decodeFunc
}

// New creates a dispatcher over a frozen tagged set.
func New(set *schema.TaggedSet) *Dispatcher {
	return &Dispatcher{set: set, decoders: make(map[string]decodeFunc)}
}

// Set returns the tagged set the dispatcher reads.
func (d *Dispatcher) Set() *schema.TaggedSet { return d.set }

// Bind attaches fn to the given tags. Binding a tag the set does not
// register is a catalogue programming error and panics.
func Bind[T any](d *Dispatcher, fn variant.DecodeFunc[T], tags ...string) *Dispatcher {
	for _, tag := range tags {
		if _, ok := d.set.Lookup(tag); !ok {
			panic(fmt.Sprintf("dispatch: tag %q is not registered in set %s", tag, d.set.Name))
		}
		d.decoders[tag] = func(data []byte) (any, error) { return fn(data) }
	}
	return d
}

// BindJSON attaches an encoding/json decoder for T to the given tags.
func BindJSON[T any](d *Dispatcher, tags ...string) *Dispatcher {
	return Bind(d, unmarshal[T], tags...)
}

// BindAll attaches an encoding/json decoder for T to every registered tag
// that has no decoder yet.
func BindAll[T any](d *Dispatcher) *Dispatcher {
	for _, tag := range d.set.Tags() {
		if _, ok := d.decoders[tag]; !ok {
			BindJSON[T](d, tag)
		}
	}
	return d
}

func unmarshal[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// Dispatch decodes one payload. The error is non-nil only for payloads that
// are not JSON, or whose registered shape rejects them; the returned Value
// still carries the tag and raw payload in that case.
func (d *Dispatcher) Dispatch(data []byte) (Value, error) {
	raw := json.RawMessage(data)
	if !gjson.ValidBytes(data) {
		err := &schema.DecodeError{Kind: schema.ErrMalformed, Set: d.set.Name}
		observability.DecodeErrorsTotal.WithLabelValues(schema.KindName(err)).Inc()
		return Value{Raw: raw}, err
	}

	root := gjson.ParseBytes(data)
	disc := root.Get(d.set.Discriminator)
	tag := ""
	if disc.Type == gjson.String {
		tag = disc.Str
	}

	shape, ok := d.set.Lookup(tag)
	if !root.IsObject() || !ok {
		observability.UnknownTagsTotal.WithLabelValues(d.set.Name).Inc()
		debug.Payload(debug.Dispatch, "unknown tag", data, "set", d.set.Name, "tag", tag)
		return Value{Tag: tag, Data: Unknown{Tag: tag, Raw: raw}, Raw: raw}, nil
	}

	v := Value{Tag: tag, Shape: shape.Name, Raw: raw}
	if err := variant.Conforms(d.set.Registry(), shape, root); err != nil {
		de := annotate(err, d.set.Name, tag)
		observability.DecodeErrorsTotal.WithLabelValues(schema.KindName(de)).Inc()
		debug.Payload(debug.Dispatch, "rejected payload", data, "set", d.set.Name, "tag", tag, "error", de)
		return v, de
	}

	fn, ok := d.decoders[tag]
	if !ok {
		v.Data = raw
		return v, nil
	}
	decoded, err := fn(data)
	if err != nil {
		de := &schema.DecodeError{Kind: schema.ErrMalformed, Set: d.set.Name, Tag: tag, Shape: shape.Name, Err: err}
		observability.DecodeErrorsTotal.WithLabelValues(schema.KindName(de)).Inc()
		return v, de
	}
	v.Data = decoded
	debug.Trace(debug.Dispatch, "dispatched", "set", d.set.Name, "tag", tag, "shape", shape.Name)
	return v, nil
}

func annotate(err error, set, tag string) error {
	if de, ok := err.(*schema.DecodeError); ok {
		c := *de
		c.Set, c.Tag = set, tag
		return &c
	}
	return &schema.DecodeError{Kind: schema.ErrMalformed, Set: set, Tag: tag, Err: err}
}
