// Package variant selects the shape of an untagged union payload by
// structural fit.
//
// Variants are tried in declaration order and the first conforming shape
// wins. A shape conforms when every required field is present with a
// compatible value and no declared field that is present holds a value the
// shape rejects. Undeclared fields are always permitted. Bare scalar
// payloads are only ever matched against scalar shapes, and object payloads
// against object shapes, so scalar variants are effectively tried first.
//
// Match is a pure function of its inputs.
package variant

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/rhuss/streamwire/pkg/schema"
)

// maxDepth bounds nested shape validation. Deeper values are accepted.
const maxDepth = 32

// Result identifies the winning variant.
type Result struct {
	Shape *schema.Shape
	Index int
	Raw   json.RawMessage
}

// Name returns the winning shape's name.
func (r Result) Name() string {
	if r.Shape == nil {
		return ""
	}
	return r.Shape.Name
}

// Match returns the first variant of set that data conforms to.
func Match(data []byte, set *schema.UntaggedSet) (Result, error) {
	if !gjson.ValidBytes(data) {
		return Result{}, &schema.DecodeError{Kind: schema.ErrMalformed, Set: set.Name}
	}
	v := gjson.ParseBytes(data)
	reg := set.Registry()

	for i, s := range set.Variants {
		if s.IsScalar() == v.IsObject() {
			continue
		}
		if Conforms(reg, s, v) == nil {
			return Result{Shape: s, Index: i, Raw: json.RawMessage(data)}, nil
		}
	}
	return Result{}, &schema.DecodeError{
		Kind: schema.ErrNoMatchingVariant,
		Set:  set.Name,
		Err:  fmt.Errorf("payload kind %s", describe(v)),
	}
}

// Conforms validates v against s. The returned error is a
// *schema.DecodeError of kind ErrMissingField or ErrTypeMismatch.
func Conforms(reg *schema.Registry, s *schema.Shape, v gjson.Result) error {
	return conforms(reg, s, v, 0)
}

func conforms(reg *schema.Registry, s *schema.Shape, v gjson.Result, depth int) error {
	if s.IsScalar() {
		if !checkType(reg, *s.Scalar, v, depth) {
			return &schema.DecodeError{Kind: schema.ErrTypeMismatch, Shape: s.Name, Err: fmt.Errorf("want %s, got %s", s.Scalar, describe(v))}
		}
		return nil
	}
	if !v.IsObject() {
		return &schema.DecodeError{Kind: schema.ErrTypeMismatch, Shape: s.Name, Err: fmt.Errorf("want object, got %s", describe(v))}
	}

	members := v.Map()
	for _, f := range s.Fields {
		mv, present := members[f.Name]
		if !present {
			if f.Required {
				return &schema.DecodeError{Kind: schema.ErrMissingField, Shape: s.Name, Field: f.Name}
			}
			continue
		}
		if !checkType(reg, f.Type, mv, depth+1) {
			return &schema.DecodeError{
				Kind:  schema.ErrTypeMismatch,
				Shape: s.Name,
				Field: f.Name,
				Err:   fmt.Errorf("want %s, got %s", f.Type, describe(mv)),
			}
		}
	}
	return nil
}

// CheckType reports whether v is a value of type t.
func CheckType(reg *schema.Registry, t schema.Type, v gjson.Result) bool {
	return checkType(reg, t, v, 0)
}

func checkType(reg *schema.Registry, t schema.Type, v gjson.Result, depth int) bool {
	if depth > maxDepth {
		return true
	}
	if v.Type == gjson.Null {
		return t.Nullable || t.Kind == schema.KindNull || t.Kind == schema.KindAny
	}

	switch t.Kind {
	case schema.KindAny:
		return true
	case schema.KindNull:
		return false
	case schema.KindString:
		if v.Type != gjson.String {
			return false
		}
		if len(t.Values) == 0 {
			return true
		}
		s := v.String()
		for _, allowed := range t.Values {
			if s == allowed {
				return true
			}
		}
		return false
	case schema.KindNumber:
		return v.Type == gjson.Number
	case schema.KindInteger:
		return v.Type == gjson.Number && v.Num == math.Trunc(v.Num)
	case schema.KindBool:
		return v.Type == gjson.True || v.Type == gjson.False
	case schema.KindObject:
		if !v.IsObject() {
			return false
		}
		if t.Ref == "" {
			return true
		}
		s, ok := reg.Lookup(t.Ref)
		if !ok {
			return false
		}
		return conforms(reg, s, v, depth) == nil
	case schema.KindArray:
		if !v.IsArray() {
			return false
		}
		ok := true
		v.ForEach(func(_, elem gjson.Result) bool {
			ok = checkType(reg, *t.Elem, elem, depth+1)
			return ok
		})
		return ok
	case schema.KindMap:
		if !v.IsObject() {
			return false
		}
		ok := true
		v.ForEach(func(_, elem gjson.Result) bool {
			ok = checkType(reg, *t.Elem, elem, depth+1)
			return ok
		})
		return ok
	case schema.KindUnion:
		for _, ref := range t.Refs {
			s, found := reg.Lookup(ref)
			if found && conforms(reg, s, v, depth) == nil {
				return true
			}
		}
		return false
	}
	return false
}

func describe(v gjson.Result) string {
	switch {
	case v.IsObject():
		return "object"
	case v.IsArray():
		return "array"
	}
	switch v.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "bool"
	case gjson.Null:
		return "null"
	}
	return "unknown"
}
