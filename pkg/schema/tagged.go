package schema

import (
	"errors"
	"fmt"
)

// Tag binds one discriminator value to a shape name.
type Tag struct {
	Value string
	Shape string
}

// T is shorthand for declaring a Tag.
func T(value, shape string) Tag { return Tag{Value: value, Shape: shape} }

// TaggedSet maps discriminator values to shapes. Payloads whose
// discriminator is absent, empty or unregistered fall back to an unknown
// variant, so the empty string is never a valid tag.
type TaggedSet struct {
	Name          string
	Discriminator string

	entries  []Tag
	shapes   map[string]*Shape
	registry *Registry
}

// DefineTagged declares a tagged set dispatched on the given field.
func (r *Registry) DefineTagged(name, discriminator string, tags ...Tag) error {
	if r.frozen {
		return errors.New("registry is frozen")
	}
	if discriminator == "" {
		return fmt.Errorf("tagged set %q needs a discriminator field", name)
	}
	if _, exists := r.tagged[name]; exists {
		return fmt.Errorf("tagged set %q already defined", name)
	}
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t.Value == "" {
			return fmt.Errorf("tagged set %q: the empty tag is reserved for unknown payloads", name)
		}
		if seen[t.Value] {
			return fmt.Errorf("tagged set %q: tag %q registered twice", name, t.Value)
		}
		seen[t.Value] = true
	}
	r.tagged[name] = &TaggedSet{
		Name:          name,
		Discriminator: discriminator,
		entries:       append([]Tag(nil), tags...),
		registry:      r,
	}
	r.taggedOrder = append(r.taggedOrder, name)
	return nil
}

// MustDefineTagged is like DefineTagged but panics on error.
func (r *Registry) MustDefineTagged(name, discriminator string, tags ...Tag) *Registry {
	if err := r.DefineTagged(name, discriminator, tags...); err != nil {
		panic(err)
	}
	return r
}

// Tagged returns the named tagged set. Sets are only usable after Freeze.
func (r *Registry) Tagged(name string) (*TaggedSet, bool) {
	if !r.frozen {
		return nil, false
	}
	s, ok := r.tagged[name]
	return s, ok
}

func (t *TaggedSet) resolve(r *Registry) []error {
	var errs []error
	t.shapes = make(map[string]*Shape, len(t.entries))
	for _, e := range t.entries {
		s, ok := r.shapes[e.Shape]
		if !ok {
			errs = append(errs, &DecodeError{Kind: ErrUnknownShape, Set: t.Name, Tag: e.Value, Shape: e.Shape})
			continue
		}
		t.shapes[e.Value] = s
	}
	return errs
}

// Lookup returns the shape registered for tag.
func (t *TaggedSet) Lookup(tag string) (*Shape, bool) {
	s, ok := t.shapes[tag]
	return s, ok
}

// Tags returns the registered discriminator values in declaration order.
func (t *TaggedSet) Tags() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Value
	}
	return out
}

// Registry returns the registry the set resolves references against.
func (t *TaggedSet) Registry() *Registry { return t.registry }
