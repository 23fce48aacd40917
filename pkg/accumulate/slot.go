package accumulate

import (
	"encoding/base64"
	"fmt"
	"slices"

	"github.com/rhuss/streamwire/pkg/api"
	"github.com/rhuss/streamwire/pkg/schema"
)

// Slot addresses one independently accumulated value: a field of one
// content part of one output.
type Slot struct {
	Output  int
	Content int
	Field   string
}

func (s Slot) String() string {
	return fmt.Sprintf("output %d content %d %s", s.Output, s.Content, s.Field)
}

// Delta is one fragment for a slot. Seq orders fragments within the slot;
// a negative Seq marks an unsequenced fragment, which is applied in
// arrival order.
type Delta struct {
	Seq      int
	Slot     Slot
	ItemID   string
	Fragment string
}

// Merge decodes one wire fragment into the bytes appended to a slot.
type Merge func(fragment string) ([]byte, error)

// MergeText appends the fragment as is.
func MergeText(fragment string) ([]byte, error) {
	return []byte(fragment), nil
}

// MergeBase64 decodes a base64 chunk and appends the bytes.
func MergeBase64(fragment string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(fragment)
}

type fieldKind struct {
	merge  Merge
	binary bool
}

// Fields not listed merge as text.
var fieldKinds = map[string]fieldKind{
	api.FieldAudio: {merge: MergeBase64, binary: true},
}

func kindOf(field string) fieldKind {
	if k, ok := fieldKinds[field]; ok {
		return k
	}
	return fieldKind{merge: MergeText}
}

// TransitionError reports a delta or close that the slot's state cannot
// accept. It matches schema.ErrInvalidTransition.
type TransitionError struct {
	Slot   Slot
	Seq    int
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition at %s (seq %d): %s", e.Slot, e.Seq, e.Reason)
}

func (e *TransitionError) Unwrap() error { return schema.ErrInvalidTransition }

type fragment struct {
	seq  int
	raw  string
	data []byte
}

type slotState struct {
	slot   Slot
	kind   fieldKind
	itemID string
	callID string
	name   string

	frags []fragment
	last  int // highest sequence number applied, -1 before the first

	final      []byte
	closed     bool
	incomplete bool
}

func newSlotState(slot Slot, itemID string) *slotState {
	return &slotState{slot: slot, kind: kindOf(slot.Field), itemID: itemID, last: -1}
}

// insert places f in sequence order. reordered reports whether f landed
// ahead of an already applied fragment.
func (s *slotState) insert(f fragment, buffering bool) (reordered bool, err error) {
	i, found := slices.BinarySearchFunc(s.frags, f.seq, func(x fragment, seq int) int { return x.seq - seq })
	if found {
		if s.frags[i].raw == f.raw {
			return false, nil
		}
		return false, &TransitionError{Slot: s.slot, Seq: f.seq, Reason: "sequence number reused with a different fragment"}
	}
	if i < len(s.frags) {
		if !buffering {
			return false, &TransitionError{Slot: s.slot, Seq: f.seq, Reason: fmt.Sprintf("arrived after sequence number %d", s.last)}
		}
		reordered = true
	}
	s.frags = slices.Insert(s.frags, i, f)
	s.last = max(s.last, f.seq)
	return reordered, nil
}

func (s *slotState) bytes() []byte {
	if s.final != nil {
		return s.final
	}
	var n int
	for _, f := range s.frags {
		n += len(f.data)
	}
	out := make([]byte, 0, n)
	for _, f := range s.frags {
		out = append(out, f.data...)
	}
	return out
}
