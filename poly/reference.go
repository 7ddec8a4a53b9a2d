package poly

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mickamy/polyorm/internal/naming"
	"github.com/mickamy/polyorm/scope"
)

// Reference resolves a stored id on E into a referent of type T through a
// Finder and caches it on the instance. It comes in two flavors:
//
//   - type+id (NewNetRelationship): reads <prefix>_type and <prefix>_id and
//     requires the stored tag to be T's tag;
//   - id-only (NewNetModel): reads a single id column whose target type is
//     fixed by the column itself.
//
// A cached referent is trusted only while its id equals the stored id.
// Changing the referent's own id afterwards is not propagated; see Refresh.
type Reference[E any, T Identifier] struct {
	t      *Type[E]
	name   string
	prefix string
	tag    string
	finder Finder[T]

	typeCol *tagColumn
	idCol   idColumn
}

// NewNetRelationship installs the type+id reference <prefix>__<tag of T> on
// t, e.g. buyer__dealer, and makes it a backing accessor for the PolyField
// of the same prefix.
func NewNetRelationship[E any, T Identifier](t *Type[E], prefix string, finder Finder[T]) (*Reference[E, T], error) {
	tag, err := referentTag[T]()
	if err != nil {
		return nil, err
	}
	typeCol, err := newTagColumn(t.c.schema, scope.Discriminator{Prefix: prefix}.TypeColumn())
	if err != nil {
		return nil, err
	}
	idCol, err := newIDColumn(t.c.schema, scope.Discriminator{Prefix: prefix}.IDColumn())
	if err != nil {
		return nil, err
	}
	r := &Reference[E, T]{
		t:       t,
		name:    naming.Prefixed(prefix, tag),
		prefix:  prefix,
		tag:     tag,
		finder:  finder,
		typeCol: &typeCol,
		idCol:   idCol,
	}
	if err := r.install(true); err != nil {
		return nil, err
	}
	return r, nil
}

// NewNetModel installs the id-only reference name over column, e.g.
// dealer over dealer_id. No type column is read or written.
func NewNetModel[E any, T Identifier](t *Type[E], name, column string, finder Finder[T]) (*Reference[E, T], error) {
	tag, err := referentTag[T]()
	if err != nil {
		return nil, err
	}
	idCol, err := newIDColumn(t.c.schema, column)
	if err != nil {
		return nil, err
	}
	r := &Reference[E, T]{
		t:      t,
		name:   name,
		tag:    tag,
		finder: finder,
		idCol:  idCol,
	}
	if err := r.install(false); err != nil {
		return nil, err
	}
	return r, nil
}

func referentTag[T Identifier]() (string, error) {
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Interface {
		return "", configErrorf("referent type %s must be concrete", rt)
	}
	tag := typeTag(rt)
	if tag == "" {
		return "", configErrorf("referent type %s has an empty type tag", rt)
	}
	return tag, nil
}

func (r *Reference[E, T]) install(asBacking bool) error {
	if r.finder == nil {
		return configErrorf("%s.%s: finder must be set", r.t.Name(), r.name)
	}
	if asBacking {
		if err := r.t.c.addBacking(r.name, r); err != nil {
			return err
		}
	}
	if err := r.t.c.addAttribute(r.name, r.assignAny); err != nil {
		if asBacking {
			delete(r.t.c.backings, r.name)
		}
		return err
	}
	return nil
}

// Name returns the attribute name, e.g. "buyer__dealer".
func (r *Reference[E, T]) Name() string { return r.name }

// Tag returns the tag of T, e.g. "dealer".
func (r *Reference[E, T]) Tag() string { return r.tag }

// Resolve returns the referent of e.
func (r *Reference[E, T]) Resolve(ctx context.Context, e *E) (T, error) {
	var zero T
	obj, err := r.resolveAny(ctx, r.t.model(e))
	if err != nil {
		return zero, err
	}
	return obj.(T), nil //nolint:forcetypeassert // only T is cached or found
}

// Assign links e to v. When v's tag does not match, nothing is written:
// the rejection is logged and returned as *AssignRejectedError.
func (r *Reference[E, T]) Assign(e *E, v T) error {
	return r.assignAny(r.t.model(e), v)
}

func (r *Reference[E, T]) resolveAny(ctx context.Context, m Model) (Identifier, error) {
	rv := reflect.ValueOf(m).Elem()
	if r.typeCol != nil {
		got, _ := r.typeCol.get(rv)
		if got != r.tag {
			return nil, &TypeMismatchError{Attribute: r.name, Want: r.tag, Got: got}
		}
	}
	id, ok := r.idCol.get(rv)
	if !ok {
		return nil, &MissingReferenceError{Type: r.t.Name(), Column: r.idCol.name}
	}

	slot := slotName(r.name)
	e := m.polyEntity()
	metrics := r.t.c.reg.metrics
	if c, ok := e.ref(slot); ok && c.obj.PrimaryKey() == id {
		metrics.hit(r.name)
		return c.obj, nil
	}

	metrics.lookup(r.name)
	obj, err := r.finder.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("poly: resolve %s(%d): %w", r.name, id, err)
	}
	if isNil(obj) {
		return nil, fmt.Errorf("poly: resolve %s(%d): finder returned nil", r.name, id)
	}
	e.setRef(slot, obj, id)
	return obj, nil
}

func (r *Reference[E, T]) assignAny(m Model, v any) error {
	obj, ok := v.(T)
	got := TagOf(v)
	if !ok || isNil(v) || got != r.tag {
		return r.t.c.reject(r.name, r.tag, got)
	}

	rv := reflect.ValueOf(m).Elem()
	if r.typeCol != nil {
		r.t.c.detach(m, r.prefix, nil)
		r.typeCol.set(rv, r.tag)
	}
	id := obj.PrimaryKey()
	r.idCol.set(rv, id)
	m.polyEntity().setRef(slotName(r.name), obj, id)
	return nil
}

// Refresh reconciles e's stored id with its cached referent. If the stored
// id changed since the referent was cached, the cache is dropped. If the
// referent's own id changed while the stored id did not, the stored id
// adopts the referent's new id.
func (r *Reference[E, T]) Refresh(e *E) {
	m := r.t.model(e)
	slot := slotName(r.name)
	ent := m.polyEntity()
	c, ok := ent.ref(slot)
	if !ok {
		return
	}
	rv := reflect.ValueOf(e).Elem()
	stored, valid := r.idCol.get(rv)
	switch current := c.obj.PrimaryKey(); {
	case !valid || stored != c.id:
		ent.dropRef(slot)
	case current != c.id:
		r.idCol.set(rv, current)
		ent.setRef(slot, c.obj, current)
	}
}

// Invalidate drops e's cached referent.
func (r *Reference[E, T]) Invalidate(e *E) {
	r.t.model(e).polyEntity().dropRef(slotName(r.name))
}
