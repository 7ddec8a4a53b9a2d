package poly

import (
	"context"
	"reflect"

	"github.com/mickamy/polyorm/internal/naming"
	"github.com/mickamy/polyorm/scope"
)

// PolyField is the polymorphic accessor E.<prefix>. It redirects reads and
// writes to the backing accessor <prefix>__<tag>, where tag is the stored
// <prefix>_type on read and the assigned value's tag on write. Backing
// accessors are net relationships and synthesized backreferences.
type PolyField[E any] struct {
	t       *Type[E]
	prefix  string
	typeCol tagColumn
}

// Field installs the polymorphic accessor for prefix on t. E must have a
// <prefix>_type column.
func (t *Type[E]) Field(prefix string) (*PolyField[E], error) {
	if prefix == "" {
		return nil, configErrorf("%s: field prefix must be set", t.Name())
	}
	typeCol, err := newTagColumn(t.c.schema, scope.Discriminator{Prefix: prefix}.TypeColumn())
	if err != nil {
		return nil, err
	}
	f := &PolyField[E]{t: t, prefix: prefix, typeCol: typeCol}
	if err := t.c.addAttribute(prefix, f.assignAny); err != nil {
		return nil, err
	}
	return f, nil
}

// Prefix returns the discriminator prefix, which is also the field name.
func (f *PolyField[E]) Prefix() string { return f.prefix }

// Resolve returns the referent of e, or nil when e.<prefix>_type is null.
func (f *PolyField[E]) Resolve(ctx context.Context, e *E) (any, error) {
	m := f.t.model(e)
	tag, ok := f.typeCol.get(reflect.ValueOf(e).Elem())
	if !ok {
		return nil, nil //nolint:nilnil // no reference set yet
	}
	b, err := f.backing(tag)
	if err != nil {
		return nil, err
	}
	return b.resolveAny(ctx, m) //nolint:wrapcheck // errors come from this package
}

// Assign writes v through the backing accessor for v's tag. The backing
// accessor owns the type tag; Assign never writes it itself.
func (f *PolyField[E]) Assign(e *E, v any) error {
	return f.assignAny(f.t.model(e), v)
}

func (f *PolyField[E]) assignAny(m Model, v any) error {
	b, err := f.backing(TagOf(v))
	if err != nil {
		return err
	}
	return b.assignAny(m, v) //nolint:wrapcheck // errors come from this package
}

func (f *PolyField[E]) backing(tag string) (backing, error) {
	name := naming.Prefixed(f.prefix, tag)
	b, ok := f.t.c.backings[name]
	if !ok {
		return nil, &NoBackingError{Type: f.t.Name(), Attribute: name}
	}
	return b, nil
}
