// Package schema describes wire shapes: named, ordered field sets that the
// variant matcher and the tagged dispatcher validate JSON payloads against.
//
// Shapes are schema descriptions, not runtime data. They are registered once
// at start-up into a Registry, resolved (includes merged) by Freeze, and read
// concurrently afterwards without locking.
package schema

import (
	"slices"
	"strings"
)

// Kind classifies the JSON value a Type accepts.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindInteger
	KindBool
	KindNull
	KindObject
	KindArray
	KindMap
	KindUnion
)

var kindNames = [...]string{
	KindAny:     "any",
	KindString:  "string",
	KindNumber:  "number",
	KindInteger: "integer",
	KindBool:    "bool",
	KindNull:    "null",
	KindObject:  "object",
	KindArray:   "array",
	KindMap:     "map",
	KindUnion:   "union",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Type is the kind of value a field holds.
type Type struct {
	Kind Kind

	// Ref names the nested shape for KindObject. Empty accepts any object.
	Ref string

	// Elem is the element type for KindArray and KindMap.
	Elem *Type

	// Refs lists the candidate shapes for KindUnion.
	Refs []string

	// Values restricts a KindString to a closed set (const or enum).
	Values []string

	// Nullable additionally accepts JSON null.
	Nullable bool
}

// Any accepts every JSON value.
func Any() Type { return Type{Kind: KindAny} }

// String accepts any JSON string.
func String() Type { return Type{Kind: KindString} }

// Const accepts exactly one string literal.
func Const(v string) Type { return Type{Kind: KindString, Values: []string{v}} }

// Enum accepts one of a closed set of string literals.
func Enum(values ...string) Type { return Type{Kind: KindString, Values: values} }

// Number accepts any JSON number.
func Number() Type { return Type{Kind: KindNumber} }

// Integer accepts integral JSON numbers.
func Integer() Type { return Type{Kind: KindInteger} }

// Bool accepts true and false.
func Bool() Type { return Type{Kind: KindBool} }

// Null accepts only JSON null.
func Null() Type { return Type{Kind: KindNull} }

// Object accepts a JSON object conforming to the named shape.
func Object(ref string) Type { return Type{Kind: KindObject, Ref: ref} }

// AnyObject accepts any JSON object.
func AnyObject() Type { return Type{Kind: KindObject} }

// ArrayOf accepts a JSON array whose elements all conform to elem.
func ArrayOf(elem Type) Type { return Type{Kind: KindArray, Elem: &elem} }

// MapOf accepts a JSON object whose values all conform to elem.
func MapOf(elem Type) Type { return Type{Kind: KindMap, Elem: &elem} }

// UnionOf accepts a value conforming to any of the named shapes.
func UnionOf(refs ...string) Type { return Type{Kind: KindUnion, Refs: refs} }

// OrNull returns a copy of t that also accepts null.
func (t Type) OrNull() Type {
	t.Nullable = true
	return t
}

func (t Type) String() string {
	var b strings.Builder
	switch t.Kind {
	case KindObject:
		b.WriteString("object")
		if t.Ref != "" {
			b.WriteString("<" + t.Ref + ">")
		}
	case KindArray, KindMap:
		b.WriteString(t.Kind.String() + "<" + t.Elem.String() + ">")
	case KindUnion:
		b.WriteString("union<" + strings.Join(t.Refs, "|") + ">")
	case KindString:
		b.WriteString("string")
		if len(t.Values) > 0 {
			b.WriteString("(" + strings.Join(t.Values, "|") + ")")
		}
	default:
		b.WriteString(t.Kind.String())
	}
	if t.Nullable {
		b.WriteString("?")
	}
	return b.String()
}

// Accepts reports whether every value b accepts is also accepted by t.
// Used to detect untagged variants that can never be selected.
func (t Type) Accepts(b Type) bool {
	if b.Nullable && !t.Nullable && t.Kind != KindAny && t.Kind != KindNull {
		return false
	}
	switch t.Kind {
	case KindAny:
		return true
	case KindNumber:
		return b.Kind == KindNumber || b.Kind == KindInteger
	case KindString:
		if b.Kind != KindString {
			return false
		}
		if len(t.Values) == 0 {
			return true
		}
		if len(b.Values) == 0 {
			return false
		}
		for _, v := range b.Values {
			if !slices.Contains(t.Values, v) {
				return false
			}
		}
		return true
	case KindObject:
		return b.Kind == KindObject && (t.Ref == "" || t.Ref == b.Ref)
	case KindArray, KindMap:
		return b.Kind == t.Kind && t.Elem.Accepts(*b.Elem)
	case KindUnion:
		if b.Kind == KindObject && b.Ref != "" {
			return slices.Contains(t.Refs, b.Ref)
		}
		if b.Kind != KindUnion {
			return false
		}
		for _, r := range b.Refs {
			if !slices.Contains(t.Refs, r) {
				return false
			}
		}
		return true
	default:
		return t.Kind == b.Kind
	}
}

// refs returns every shape name referenced by t, recursively.
func (t Type) refs() []string {
	switch t.Kind {
	case KindObject:
		if t.Ref != "" {
			return []string{t.Ref}
		}
	case KindArray, KindMap:
		return t.Elem.refs()
	case KindUnion:
		return t.Refs
	}
	return nil
}
