package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel decode error kinds. Match them with errors.Is.
var (
	// ErrMalformed is returned when the payload is not valid JSON.
	ErrMalformed = errors.New("malformed payload")

	// ErrNoMatchingVariant is returned when an untagged union payload
	// conforms to none of its candidate shapes.
	ErrNoMatchingVariant = errors.New("no matching variant")

	// ErrMissingField is returned when a tagged payload lacks a field its
	// shape requires.
	ErrMissingField = errors.New("missing required field")

	// ErrTypeMismatch is returned when a present field has a value the
	// shape definitively rejects.
	ErrTypeMismatch = errors.New("field type mismatch")

	// ErrShadowedVariant is returned at registration when an untagged set
	// declares a variant that an earlier variant always wins over.
	ErrShadowedVariant = errors.New("shadowed variant")

	// ErrUnknownShape is returned when a name is not registered.
	ErrUnknownShape = errors.New("unknown shape")

	// ErrInvalidTransition is returned when a streamed delta addresses a
	// slot in a state that cannot accept it, such as one already closed.
	ErrInvalidTransition = errors.New("invalid transition")
)

// DecodeError describes why a payload could not be decoded. Kind is one of
// the sentinel errors above.
type DecodeError struct {
	Kind  error
	Set   string // untagged or tagged set name, if any
	Tag   string // discriminator value, if any
	Shape string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	var parts []string
	if e.Set != "" {
		parts = append(parts, "set "+e.Set)
	}
	if e.Tag != "" {
		parts = append(parts, fmt.Sprintf("tag %q", e.Tag))
	}
	if e.Shape != "" {
		parts = append(parts, "shape "+e.Shape)
	}
	if e.Field != "" {
		parts = append(parts, "field "+e.Field)
	}
	msg := e.Kind.Error()
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName returns a short label for the error kind, suitable for metrics.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrNoMatchingVariant):
		return "no_matching_variant"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "other"
	}
}
