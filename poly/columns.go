package poly

import (
	"database/sql"
	"reflect"

	"github.com/mickamy/polyorm/orm"
)

type columnKind int

const (
	kindNullable columnKind = iota // sql.NullString / sql.NullInt64
	kindPointer                    // *string / *int64
	kindPlain                      // string / int64, zero value means null
)

var (
	nullStringType = reflect.TypeFor[sql.NullString]()
	nullInt64Type  = reflect.TypeFor[sql.NullInt64]()
)

// tagColumn reads and writes a discriminator type column.
type tagColumn struct {
	name  string
	index []int
	kind  columnKind
}

func newTagColumn(s *orm.Schema, name string) (tagColumn, error) {
	c, ok := s.Column(name)
	if !ok {
		return tagColumn{}, configErrorf("%s has no column %q", s.Name, name)
	}
	col := tagColumn{name: name, index: c.Index}
	switch {
	case c.Type == nullStringType:
		col.kind = kindNullable
	case c.Type.Kind() == reflect.Pointer && c.Type.Elem().Kind() == reflect.String:
		col.kind = kindPointer
	case c.Type.Kind() == reflect.String:
		col.kind = kindPlain
	default:
		return tagColumn{}, configErrorf("%s.%s: type column must be a string, got %s", s.Name, c.Field, c.Type)
	}
	return col, nil
}

func (c tagColumn) get(rv reflect.Value) (string, bool) {
	f := rv.FieldByIndex(c.index)
	switch c.kind {
	case kindNullable:
		ns := f.Interface().(sql.NullString) //nolint:forcetypeassert // checked in newTagColumn
		return ns.String, ns.Valid
	case kindPointer:
		if f.IsNil() {
			return "", false
		}
		return f.Elem().String(), true
	default:
		s := f.String()
		return s, s != ""
	}
}

func (c tagColumn) set(rv reflect.Value, v string) {
	f := rv.FieldByIndex(c.index)
	switch c.kind {
	case kindNullable:
		f.Set(reflect.ValueOf(sql.NullString{String: v, Valid: true}))
	case kindPointer:
		p := reflect.New(f.Type().Elem())
		p.Elem().SetString(v)
		f.Set(p)
	default:
		f.SetString(v)
	}
}

// idColumn reads and writes a discriminator id column.
type idColumn struct {
	name  string
	index []int
	kind  columnKind
}

func newIDColumn(s *orm.Schema, name string) (idColumn, error) {
	c, ok := s.Column(name)
	if !ok {
		return idColumn{}, configErrorf("%s has no column %q", s.Name, name)
	}
	col := idColumn{name: name, index: c.Index}
	switch {
	case c.Type == nullInt64Type:
		col.kind = kindNullable
	case c.Type.Kind() == reflect.Pointer && isInt(c.Type.Elem().Kind()):
		col.kind = kindPointer
	case isInt(c.Type.Kind()):
		col.kind = kindPlain
	default:
		return idColumn{}, configErrorf("%s.%s: id column must be an integer, got %s", s.Name, c.Field, c.Type)
	}
	return col, nil
}

func (c idColumn) get(rv reflect.Value) (int64, bool) {
	f := rv.FieldByIndex(c.index)
	switch c.kind {
	case kindNullable:
		n := f.Interface().(sql.NullInt64) //nolint:forcetypeassert // checked in newIDColumn
		return n.Int64, n.Valid
	case kindPointer:
		if f.IsNil() {
			return 0, false
		}
		return f.Elem().Int(), true
	default:
		n := f.Int()
		return n, n != 0
	}
}

func (c idColumn) set(rv reflect.Value, v int64) {
	f := rv.FieldByIndex(c.index)
	switch c.kind {
	case kindNullable:
		f.Set(reflect.ValueOf(sql.NullInt64{Int64: v, Valid: true}))
	case kindPointer:
		p := reflect.New(f.Type().Elem())
		p.Elem().SetInt(v)
		f.Set(p)
	default:
		f.SetInt(v)
	}
}

func isInt(k reflect.Kind) bool {
	switch k { //nolint:exhaustive // integer kinds only
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}
