package poly

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/mickamy/polyorm/orm"
)

// Construct builds a new E from fields. Names that are storage columns of E
// are set first, so that accessors reading sibling columns see them; every
// other name is assigned through the attribute installed under it (poly
// fields, references and backreferences), in sorted name order.
//
// Rejected assignments are logged and skipped. Unknown names and column
// values that cannot be converted abort construction.
func Construct[E any](t *Type[E], fields map[string]any) (*E, error) {
	e := new(E)
	m := t.model(e)
	s := t.c.schema

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	var attrs []string
	for _, name := range names {
		if !s.Has(name) {
			attrs = append(attrs, name)
			continue
		}
		if err := orm.SetColumn(e, s, name, fields[name]); err != nil {
			return nil, fmt.Errorf("poly: construct %s: %w", t.Name(), err)
		}
	}

	for _, name := range attrs {
		assign, ok := t.c.attrs[name]
		if !ok {
			return nil, fmt.Errorf("poly: construct %s: %w", t.Name(),
				&NoBackingError{Type: t.Name(), Attribute: name})
		}
		if err := assign(m, fields[name]); err != nil {
			if IsAssignRejected(err) {
				t.c.reg.logger.Debug("skipped rejected attribute",
					slog.String("type", t.Name()),
					slog.String("attribute", name),
					slog.Any("error", err),
				)
				continue
			}
			return nil, fmt.Errorf("poly: construct %s: %w", t.Name(), err)
		}
	}
	return e, nil
}

// Describe formats v as "<TypeName id: 1 name: x>". The id and name parts
// are omitted when v has no such field or the value is zero.
func Describe(v any) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "<nil>"
		}
		rv = rv.Elem()
	}

	var b strings.Builder
	b.WriteString("<")
	b.WriteString(rv.Type().Name())
	if rv.Kind() == reflect.Struct {
		if id, ok := v.(Identifier); ok && id.PrimaryKey() != 0 {
			fmt.Fprintf(&b, " id: %d", id.PrimaryKey())
		}
		if f := rv.FieldByName("Name"); f.IsValid() && !f.IsZero() {
			fmt.Fprintf(&b, " name: %v", f.Interface())
		}
	}
	b.WriteString(">")
	return b.String()
}
