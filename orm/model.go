package orm

import (
	"database/sql"
	"fmt"
	"reflect"
)

// NewModelQuery builds a Query for T from its reflected Schema, replacing the
// scan, column-value and primary-key functions a generator would emit.
func NewModelQuery[T any](db Querier) (*Query[T], error) {
	s, err := SchemaFor[T]()
	if err != nil {
		return nil, err
	}
	pk := ""
	var setPK SetPKFunc[T]
	if c, ok := s.PrimaryKey(); ok {
		pk = c.Name
		setPK = reflectSetPK[T](c)
	}
	return NewQuery[T](db, s.Table, s.ColumnNames(), pk,
		reflectScan[T](s), reflectColumnValues[T](s), setPK), nil
}

// From is like NewModelQuery but panics when T has no valid Schema.
// Intended for package-level model declarations known to be valid.
func From[T any](db Querier) *Query[T] {
	q, err := NewModelQuery[T](db)
	if err != nil {
		panic(err)
	}
	return q
}

func reflectScan[T any](s *Schema) ScanFunc[T] {
	return func(rows *sql.Rows) (T, error) {
		var v T
		cols, err := rows.Columns()
		if err != nil {
			return v, err //nolint:wrapcheck // pass through
		}
		rv := reflect.ValueOf(&v).Elem()
		dest := make([]any, len(cols))
		for i, name := range cols {
			if c, ok := s.Column(name); ok {
				dest[i] = rv.FieldByIndex(c.Index).Addr().Interface()
			} else {
				dest[i] = new(any)
			}
		}
		err = rows.Scan(dest...)
		return v, err //nolint:wrapcheck // pass through
	}
}

func reflectColumnValues[T any](s *Schema) ColumnValueFunc[T] {
	return func(t *T, includesPK bool) ([]string, []any) {
		rv := reflect.ValueOf(t).Elem()
		columns := make([]string, 0, len(s.Columns))
		values := make([]any, 0, len(s.Columns))
		for _, c := range s.Columns {
			if c.PrimaryKey && !includesPK {
				continue
			}
			columns = append(columns, c.Name)
			values = append(values, rv.FieldByIndex(c.Index).Interface())
		}
		return columns, values
	}
}

// reflectSetPK returns nil for non-integer keys; those are not
// auto-generated and must be set by the caller.
func reflectSetPK[T any](c Column) SetPKFunc[T] {
	switch c.Type.Kind() { //nolint:exhaustive // only integer keys are generated
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(t *T, id int64) {
			reflect.ValueOf(t).Elem().FieldByIndex(c.Index).SetInt(id)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return func(t *T, id int64) {
			reflect.ValueOf(t).Elem().FieldByIndex(c.Index).SetUint(uint64(id)) //nolint:gosec // ids are positive
		}
	default:
		return nil
	}
}

// SetColumn assigns value to the column field of the struct dst points to.
// The value must be assignable or convertible to the field type; nil clears
// the field.
func SetColumn(dst any, s *Schema, column string, value any) error {
	c, ok := s.Column(column)
	if !ok {
		return fmt.Errorf("orm: %s has no column %q", s.Name, column)
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Type() != s.Type {
		return fmt.Errorf("orm: SetColumn wants *%s, got %T", s.Name, dst)
	}
	field := rv.Elem().FieldByIndex(c.Index)
	if value == nil {
		field.SetZero()
		return nil
	}
	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(field.Type()):
		field.Set(v)
	case v.Type().ConvertibleTo(field.Type()) && v.Kind() != reflect.String && field.Kind() != reflect.String:
		field.Set(v.Convert(field.Type()))
	case v.Kind() == reflect.String && field.Kind() == reflect.String:
		field.SetString(v.String())
	default:
		if sc, ok := field.Addr().Interface().(sql.Scanner); ok {
			if err := sc.Scan(value); err != nil {
				return fmt.Errorf("orm: %s.%s: %w", s.Name, c.Field, err)
			}
			return nil
		}
		return fmt.Errorf("orm: %s.%s: cannot assign %T to %s", s.Name, c.Field, value, field.Type())
	}
	return nil
}
