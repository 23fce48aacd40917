package accumulate

import (
	"strings"

	"github.com/rhuss/streamwire/pkg/api"
)

// Reasons attached to results that did not complete normally.
const (
	// ReasonConnectionClosed means the transport ended, or the caller's
	// deadline expired, before a terminal event.
	ReasonConnectionClosed = "connection_closed"
)

// Value is the accumulated content of one slot.
type Value struct {
	Slot   Slot
	ItemID string

	// Text is the merged value. For binary fields it is the base64
	// encoding of Bytes.
	Text  string
	Bytes []byte

	// CallID and Name identify a tool call slot when the stream named it.
	CallID string
	Name   string

	Closed     bool
	Incomplete bool

	// Repaired is a best-effort valid JSON rendition of incomplete
	// arguments, or "" when not repaired.
	Repaired string
}

// Output groups the values of one output index with the item the stream
// announced for it.
type Output struct {
	Index      int
	Item       *api.Item
	Values     []Value
	Incomplete bool
}

// Value returns the output's value for the content index and field.
func (o Output) Value(content int, field string) (Value, bool) {
	for _, v := range o.Values {
		if v.Slot.Content == content && v.Slot.Field == field {
			return v, true
		}
	}
	return Value{}, false
}

// Result is the frozen outcome of one streamed operation.
type Result struct {
	Status     api.ResponseStatus
	Incomplete bool
	Reason     string

	Outputs []Output
	Items   []api.Item

	// Response is the last response object the stream carried, if any.
	Response *api.Response
	Usage    *api.Usage
	Error    *api.APIError
}

// Text returns the concatenated text values of all outputs in output and
// content order.
func (r *Result) Text() string {
	var b strings.Builder
	for _, out := range r.Outputs {
		for _, v := range out.Values {
			if v.Slot.Field == api.FieldText {
				b.WriteString(v.Text)
			}
		}
	}
	return b.String()
}
