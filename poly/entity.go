package poly

import (
	"reflect"

	"github.com/mickamy/polyorm/internal/naming"
)

// Identifier is implemented by anything that can be the target of a
// reference: persisted models and network-backed records alike.
// Two referents are the same when their primary keys are equal.
type Identifier interface {
	PrimaryKey() int64
}

// Tagger overrides the type tag derived from the Go type name. Tags are
// written to discriminator columns, so they must stay stable once rows
// carry them.
type Tagger interface {
	PolyType() string
}

// Model is implemented by structs that embed Entity and have a primary key.
// Children and owners of polymorphic associations must be Models.
type Model interface {
	Identifier
	polyEntity() *Entity
}

// Entity holds the per-instance state of polymorphic links: cached
// referents and owner-side collections. Embed it by value:
//
//	type Vehicle struct {
//	    poly.Entity
//	    ID         int64
//	    SourceType sql.NullString
//	    SourceID   sql.NullInt64
//	}
//
// Entity is not safe for concurrent use; a model instance is expected to be
// used by one goroutine at a time.
type Entity struct {
	refs  map[string]cachedRef
	colls map[string][]any
}

// cachedRef is a resolved referent and the id it had when it was cached.
type cachedRef struct {
	obj Identifier
	id  int64
}

func (e *Entity) polyEntity() *Entity { return e }

func (e *Entity) ref(slot string) (cachedRef, bool) {
	c, ok := e.refs[slot]
	return c, ok
}

func (e *Entity) setRef(slot string, obj Identifier, id int64) {
	if e.refs == nil {
		e.refs = make(map[string]cachedRef)
	}
	e.refs[slot] = cachedRef{obj: obj, id: id}
}

func (e *Entity) dropRef(slot string) {
	delete(e.refs, slot)
}

func (e *Entity) items(name string) []any {
	return e.colls[name]
}

func (e *Entity) setItems(name string, items []any) {
	if e.colls == nil {
		e.colls = make(map[string][]any)
	}
	e.colls[name] = items
}

// Invalidate drops cached referents of m. With no attribute names every
// cached referent is dropped; the next read performs a fresh lookup.
func Invalidate(m Model, attrs ...string) {
	e := m.polyEntity()
	if len(attrs) == 0 {
		clear(e.refs)
		return
	}
	for _, a := range attrs {
		e.dropRef(slotName(a))
	}
}

// TagOf returns the type tag of v: its PolyType() when v implements Tagger,
// otherwise the underscored name of its (dereferenced) Go type.
// TagOf(nil) is "".
func TagOf(v any) string {
	if v == nil {
		return ""
	}
	if t, ok := v.(Tagger); ok {
		return t.PolyType()
	}
	return typeTag(reflect.TypeOf(v))
}

func typeTag(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if tg, ok := reflect.New(t).Interface().(Tagger); ok {
		return tg.PolyType()
	}
	return naming.Underscore(t.Name())
}

// slotName is the cache slot of an attribute, e.g. "_buyer__dealer".
func slotName(attr string) string {
	return "_" + attr
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive // only nillable kinds matter
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
