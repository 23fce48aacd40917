package schema

import (
	"errors"
	"fmt"
)

// Registry holds shapes, untagged sets and tagged sets by name.
//
// Register and DefineUntagged are start-up operations and are not safe for
// concurrent use. After Freeze the registry is read-only and may be shared
// across goroutines.
type Registry struct {
	shapes map[string]*Shape
	order  []string

	sets     map[string]*UntaggedSet
	setOrder []string

	tagged      map[string]*TaggedSet
	taggedOrder []string

	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		shapes: make(map[string]*Shape),
		sets:   make(map[string]*UntaggedSet),
		tagged: make(map[string]*TaggedSet),
	}
}

// Register adds shapes. Names must be unique.
func (r *Registry) Register(shapes ...Shape) error {
	if r.frozen {
		return errors.New("registry is frozen")
	}
	for i := range shapes {
		s := shapes[i]
		if s.Name == "" {
			return errors.New("shape name is required")
		}
		if _, exists := r.shapes[s.Name]; exists {
			return fmt.Errorf("shape %q already registered", s.Name)
		}
		if s.Scalar != nil && (len(s.Fields) > 0 || len(s.Includes) > 0) {
			return fmt.Errorf("scalar shape %q cannot declare fields", s.Name)
		}
		seen := make(map[string]bool, len(s.Fields))
		for _, f := range s.Fields {
			if seen[f.Name] {
				return fmt.Errorf("shape %q declares field %q twice", s.Name, f.Name)
			}
			seen[f.Name] = true
		}
		r.shapes[s.Name] = &s
		r.order = append(r.order, s.Name)
	}
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// package-level catalogue initialization.
func (r *Registry) MustRegister(shapes ...Shape) *Registry {
	if err := r.Register(shapes...); err != nil {
		panic(err)
	}
	return r
}

// DefineUntagged declares an ordered untagged set over registered shapes.
// Ordering is validated by Freeze once includes are resolved.
func (r *Registry) DefineUntagged(name string, variants ...string) error {
	if r.frozen {
		return errors.New("registry is frozen")
	}
	if _, exists := r.sets[name]; exists {
		return fmt.Errorf("untagged set %q already defined", name)
	}
	if len(variants) == 0 {
		return fmt.Errorf("untagged set %q has no variants", name)
	}
	set := &UntaggedSet{Name: name, registry: r, names: variants}
	r.sets[name] = set
	r.setOrder = append(r.setOrder, name)
	return nil
}

// MustDefineUntagged is like DefineUntagged but panics on error.
func (r *Registry) MustDefineUntagged(name string, variants ...string) *Registry {
	if err := r.DefineUntagged(name, variants...); err != nil {
		panic(err)
	}
	return r
}

// Freeze resolves includes, checks that every referenced shape exists and
// validates untagged set ordering. Calling Freeze twice is a no-op.
func (r *Registry) Freeze() error {
	if r.frozen {
		return nil
	}

	resolved := make(map[string]bool, len(r.shapes))
	for _, name := range r.order {
		if err := r.resolve(name, resolved, map[string]bool{}); err != nil {
			return err
		}
	}

	var errs []error
	for _, name := range r.order {
		s := r.shapes[name]
		for _, f := range s.Fields {
			for _, ref := range f.Type.refs() {
				if _, ok := r.shapes[ref]; !ok {
					errs = append(errs, &DecodeError{Kind: ErrUnknownShape, Shape: name, Field: f.Name, Err: fmt.Errorf("reference %q", ref)})
				}
			}
		}
	}

	for _, setName := range r.setOrder {
		set := r.sets[setName]
		set.Variants = make([]*Shape, 0, len(set.names))
		for _, vn := range set.names {
			s, ok := r.shapes[vn]
			if !ok {
				errs = append(errs, &DecodeError{Kind: ErrUnknownShape, Set: setName, Shape: vn})
				continue
			}
			set.Variants = append(set.Variants, s)
		}
		for i := 0; i < len(set.Variants); i++ {
			for j := i + 1; j < len(set.Variants); j++ {
				if subsumes(set.Variants[i], set.Variants[j]) {
					errs = append(errs, &DecodeError{
						Kind:  ErrShadowedVariant,
						Set:   setName,
						Shape: set.Variants[j].Name,
						Err:   fmt.Errorf("always matched first by %s", set.Variants[i].Name),
					})
				}
			}
		}
	}

	for _, setName := range r.taggedOrder {
		errs = append(errs, r.tagged[setName].resolve(r)...)
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	r.frozen = true
	return nil
}

// MustFreeze is like Freeze but panics on error.
func (r *Registry) MustFreeze() *Registry {
	if err := r.Freeze(); err != nil {
		panic(err)
	}
	return r
}

// resolve merges included fields into the named shape, depth first.
func (r *Registry) resolve(name string, done, visiting map[string]bool) error {
	if done[name] {
		return nil
	}
	if visiting[name] {
		return fmt.Errorf("include cycle through shape %q", name)
	}
	s, ok := r.shapes[name]
	if !ok {
		return &DecodeError{Kind: ErrUnknownShape, Shape: name}
	}
	visiting[name] = true
	for _, inc := range s.Includes {
		if err := r.resolve(inc, done, visiting); err != nil {
			return fmt.Errorf("shape %q: %w", name, err)
		}
		included := r.shapes[inc]
		if included.IsScalar() {
			return fmt.Errorf("shape %q cannot include scalar shape %q", name, inc)
		}
		for _, f := range included.Fields {
			if _, exists := s.Field(f.Name); !exists {
				s.Fields = append(s.Fields, f)
			}
		}
	}
	s.Includes = nil
	delete(visiting, name)
	done[name] = true
	return nil
}

// Frozen reports whether Freeze has completed.
func (r *Registry) Frozen() bool { return r.frozen }

// Lookup returns the named shape.
func (r *Registry) Lookup(name string) (*Shape, bool) {
	s, ok := r.shapes[name]
	return s, ok
}

// Untagged returns the named untagged set. Sets are only usable after Freeze.
func (r *Registry) Untagged(name string) (*UntaggedSet, bool) {
	if !r.frozen {
		return nil, false
	}
	s, ok := r.sets[name]
	return s, ok
}

// Names returns all shape names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// UntaggedSet is an ordered list of candidate shapes. Order is significant:
// the first conforming shape wins.
type UntaggedSet struct {
	Name     string
	Variants []*Shape

	registry *Registry
	names    []string
}

// Registry returns the registry the set resolves references against.
func (u *UntaggedSet) Registry() *Registry { return u.registry }
