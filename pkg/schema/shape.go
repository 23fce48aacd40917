package schema

// Field is one named member of an object shape.
type Field struct {
	Name     string
	Required bool
	Type     Type
}

// Req declares a required field.
func Req(name string, t Type) Field { return Field{Name: name, Required: true, Type: t} }

// Opt declares an optional field.
func Opt(name string, t Type) Field { return Field{Name: name, Type: t} }

// Shape is a named, ordered set of fields, or a bare scalar variant.
type Shape struct {
	Name string

	// Scalar is set for shapes describing a bare JSON scalar (for example
	// the "auto" arm of a tool-choice union). Scalar shapes have no fields.
	Scalar *Type

	Fields []Field

	// Includes names shapes whose fields are merged into this one at
	// Freeze time. Fields declared here win over included ones.
	Includes []string
}

// ObjectShape declares an object shape.
func ObjectShape(name string, fields ...Field) Shape {
	return Shape{Name: name, Fields: fields}
}

// ScalarShape declares a bare scalar shape.
func ScalarShape(name string, t Type) Shape {
	return Shape{Name: name, Scalar: &t}
}

// Include returns a copy of s that flattens the named shapes into itself.
func (s Shape) Include(names ...string) Shape {
	s.Includes = append(append([]string(nil), s.Includes...), names...)
	return s
}

// IsScalar reports whether s describes a bare scalar.
func (s *Shape) IsScalar() bool { return s.Scalar != nil }

// Field returns the field with the given name.
func (s *Shape) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Required returns the names of all required fields in declaration order.
func (s *Shape) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Template is a parametrized field list shared by near-duplicate shapes,
// such as the family of streaming delta events.
type Template struct {
	Fields []Field
}

// NewTemplate creates a template from a base field list.
func NewTemplate(fields ...Field) Template {
	return Template{Fields: fields}
}

// Derive produces a shape from the template. Each override replaces the
// template field of the same name, or is appended when the name is new.
func (t Template) Derive(name string, overrides ...Field) Shape {
	fields := append([]Field(nil), t.Fields...)
	for _, o := range overrides {
		replaced := false
		for i := range fields {
			if fields[i].Name == o.Name {
				fields[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			fields = append(fields, o)
		}
	}
	return Shape{Name: name, Fields: fields}
}

// subsumes reports whether every payload accepted by b is also accepted
// by a. An earlier untagged variant that subsumes a later one makes the
// later one unreachable.
func subsumes(a, b *Shape) bool {
	if a.IsScalar() || b.IsScalar() {
		return a.IsScalar() && b.IsScalar() && a.Scalar.Accepts(*b.Scalar)
	}
	for _, fa := range a.Fields {
		fb, ok := b.Field(fa.Name)
		if !ok {
			// b permits fa.Name as an undeclared extra field with any value.
			if fa.Required || fa.Type.Kind != KindAny {
				return false
			}
			continue
		}
		if fa.Required && !fb.Required {
			return false
		}
		if !fa.Type.Accepts(fb.Type) {
			return false
		}
	}
	return true
}
