package schema

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFreezeResolvesIncludes(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		ObjectShape("Timestamps",
			Req("created_at", Integer()),
			Opt("completed_at", Integer().OrNull()),
		),
		ObjectShape("Sampling",
			Opt("temperature", Number()),
			Opt("top_p", Number()),
		),
		ObjectShape("Response",
			Req("id", String()),
			Opt("temperature", Integer()),
		).Include("Timestamps", "Sampling"),
	)

	if err := r.Freeze(); err != nil {
		t.Fatalf("Freeze() error: %v", err)
	}

	s, ok := r.Lookup("Response")
	if !ok {
		t.Fatal("Response not registered")
	}

	var names []string
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	want := []string{"id", "temperature", "created_at", "completed_at", "top_p"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("resolved fields mismatch (-want +got):\n%s", diff)
	}

	// The including shape's own declaration wins.
	f, _ := s.Field("temperature")
	if f.Type.Kind != KindInteger {
		t.Errorf("temperature kind = %v, want integer", f.Type.Kind)
	}
	if len(s.Includes) != 0 {
		t.Errorf("includes not cleared after resolution: %v", s.Includes)
	}
}

func TestFreezeNestedIncludes(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		ObjectShape("A", Req("a", String())),
		ObjectShape("B", Req("b", String())).Include("A"),
		ObjectShape("C", Req("c", String())).Include("B"),
	)
	if err := r.Freeze(); err != nil {
		t.Fatalf("Freeze() error: %v", err)
	}
	c, _ := r.Lookup("C")
	if got := c.Required(); !cmp.Equal(got, []string{"c", "b", "a"}) {
		t.Errorf("C required = %v, want [c b a]", got)
	}
}

func TestFreezeIncludeCycle(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		ObjectShape("A", Req("a", String())).Include("B"),
		ObjectShape("B", Req("b", String())).Include("A"),
	)
	if err := r.Freeze(); err == nil {
		t.Fatal("expected include cycle error")
	}
	if r.Frozen() {
		t.Error("registry must not be frozen after a failed Freeze")
	}
}

func TestFreezeUnknownReference(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(ObjectShape("A", Req("b", Object("Missing"))))
	err := r.Freeze()
	if !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("Freeze() error = %v, want ErrUnknownShape", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ObjectShape("A")); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(ObjectShape("A")); err == nil {
		t.Error("expected duplicate shape error")
	}
	if err := r.Register(ObjectShape("B", Req("x", String()), Opt("x", Number()))); err == nil {
		t.Error("expected duplicate field error")
	}
	if err := r.Register(Shape{Name: "S", Scalar: &Type{Kind: KindString}, Fields: []Field{Req("x", String())}}); err == nil {
		t.Error("expected scalar-with-fields error")
	}
}

func TestRegisterAfterFreeze(t *testing.T) {
	r := NewRegistry().MustFreeze()
	if err := r.Register(ObjectShape("A")); err == nil {
		t.Error("expected error registering into a frozen registry")
	}
	if err := r.DefineUntagged("U", "A"); err == nil {
		t.Error("expected error defining a set on a frozen registry")
	}
}

func TestUntaggedSetShadowing(t *testing.T) {
	tests := []struct {
		name     string
		shapes   []Shape
		order    []string
		shadowed bool
	}{
		{
			name: "specific before general",
			shapes: []Shape{
				ObjectShape("Named", Req("type", Const("function")), Req("function", AnyObject())),
				ObjectShape("Typed", Req("type", String())),
			},
			order: []string{"Named", "Typed"},
		},
		{
			name: "general before specific is rejected",
			shapes: []Shape{
				ObjectShape("Named", Req("type", Const("function")), Req("function", AnyObject())),
				ObjectShape("Typed", Req("type", String())),
			},
			order:    []string{"Typed", "Named"},
			shadowed: true,
		},
		{
			name: "disjoint consts are both reachable",
			shapes: []Shape{
				ObjectShape("Eq", Req("type", Const("eq")), Req("key", String())),
				ObjectShape("And", Req("type", Const("and")), Req("filters", ArrayOf(Any()))),
			},
			order: []string{"Eq", "And"},
		},
		{
			name: "scalars compare by type",
			shapes: []Shape{
				ScalarShape("AnyString", String()),
				ScalarShape("Auto", Const("auto")),
			},
			order:    []string{"AnyString", "Auto"},
			shadowed: true,
		},
		{
			name: "closed enum before open string",
			shapes: []Shape{
				ScalarShape("Known", Enum("gpt-4o", "o3")),
				ScalarShape("Open", String()),
			},
			order: []string{"Known", "Open"},
		},
		{
			name: "number shadows integer",
			shapes: []Shape{
				ScalarShape("Num", Number()),
				ScalarShape("Int", Integer()),
			},
			order:    []string{"Num", "Int"},
			shadowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.MustRegister(tt.shapes...)
			r.MustDefineUntagged("U", tt.order...)
			err := r.Freeze()
			if tt.shadowed {
				if !errors.Is(err, ErrShadowedVariant) {
					t.Fatalf("Freeze() error = %v, want ErrShadowedVariant", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Freeze() error: %v", err)
			}
			set, ok := r.Untagged("U")
			if !ok {
				t.Fatal("untagged set not found after Freeze")
			}
			if len(set.Variants) != len(tt.order) {
				t.Errorf("variants = %d, want %d", len(set.Variants), len(tt.order))
			}
		})
	}
}

func TestTemplateDerive(t *testing.T) {
	tmpl := NewTemplate(
		Req("type", String()),
		Req("item_id", String()),
		Req("delta", String()),
	)

	done := tmpl.Derive("TextDone", Req("delta", Any()), Req("text", String()))

	if len(done.Fields) != 4 {
		t.Fatalf("fields = %d, want 4", len(done.Fields))
	}
	if done.Fields[2].Type.Kind != KindAny {
		t.Errorf("override did not replace delta: %v", done.Fields[2].Type)
	}
	if done.Fields[3].Name != "text" {
		t.Errorf("new field not appended: %s", done.Fields[3].Name)
	}
	// The template itself is untouched.
	if tmpl.Fields[2].Type.Kind != KindString {
		t.Error("Derive mutated the template")
	}
}

func TestTypeAccepts(t *testing.T) {
	tests := []struct {
		a, b Type
		want bool
	}{
		{Any(), Object("X"), true},
		{Number(), Integer(), true},
		{Integer(), Number(), false},
		{String(), Const("x"), true},
		{Const("x"), String(), false},
		{Enum("a", "b"), Const("a"), true},
		{Enum("a", "b"), Enum("a", "c"), false},
		{AnyObject(), Object("X"), true},
		{Object("X"), Object("Y"), false},
		{ArrayOf(Number()), ArrayOf(Integer()), true},
		{UnionOf("A", "B"), Object("A"), true},
		{UnionOf("A"), UnionOf("A", "B"), false},
		{String(), String().OrNull(), false},
		{String().OrNull(), String(), true},
	}
	for _, tt := range tests {
		if got := tt.a.Accepts(tt.b); got != tt.want {
			t.Errorf("%s.Accepts(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDecodeErrorIs(t *testing.T) {
	cause := errors.New("boom")
	err := error(&DecodeError{Kind: ErrMissingField, Tag: "response.created", Field: "response", Err: cause})

	if !errors.Is(err, ErrMissingField) {
		t.Error("errors.Is(err, ErrMissingField) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("errors.Is(err, ErrMalformed) = true")
	}
	if got := KindName(err); got != "missing_field" {
		t.Errorf("KindName = %q, want missing_field", got)
	}
	want := `missing required field (tag "response.created", field response): boom`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestDefineTagged(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		ObjectShape("Created", Req("type", Const("response.created")), Req("response", AnyObject())),
		ObjectShape("Delta", Req("type", String()), Req("delta", String())),
	)

	if err := r.DefineTagged("bad", "type", T("", "Created")); err == nil {
		t.Error("expected the empty tag to be rejected")
	}
	if err := r.DefineTagged("dup", "type", T("a", "Created"), T("a", "Delta")); err == nil {
		t.Error("expected duplicate tag error")
	}
	if err := r.DefineTagged("nofield", "", T("a", "Created")); err == nil {
		t.Error("expected missing discriminator error")
	}

	r.MustDefineTagged("Events", "type",
		T("response.created", "Created"),
		T("response.output_text.delta", "Delta"),
		T("response.refusal.delta", "Delta"),
	)
	if _, ok := r.Tagged("Events"); ok {
		t.Error("tagged set visible before Freeze")
	}
	r.MustFreeze()

	set, ok := r.Tagged("Events")
	if !ok {
		t.Fatal("tagged set not found after Freeze")
	}
	if set.Discriminator != "type" {
		t.Errorf("discriminator = %q, want type", set.Discriminator)
	}
	if s, ok := set.Lookup("response.refusal.delta"); !ok || s.Name != "Delta" {
		t.Errorf("Lookup(refusal delta) = %v, %v", s, ok)
	}
	if _, ok := set.Lookup(""); ok {
		t.Error("empty tag must never resolve")
	}
	want := []string{"response.created", "response.output_text.delta", "response.refusal.delta"}
	if diff := cmp.Diff(want, set.Tags()); diff != "" {
		t.Errorf("Tags() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefineTaggedUnknownShape(t *testing.T) {
	r := NewRegistry()
	r.MustDefineTagged("Events", "type", T("x", "Missing"))
	if err := r.Freeze(); !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("Freeze() error = %v, want ErrUnknownShape", err)
	}
}
