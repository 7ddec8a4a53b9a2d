package orm

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/mickamy/polyorm/internal/naming"
)

// Column describes one struct field mapped to a table column.
type Column struct {
	Name       string       // column name, e.g. "buyer_id"
	Field      string       // Go field name, e.g. "BuyerID"
	Index      []int        // reflect field index
	Type       reflect.Type // Go type of the field
	PrimaryKey bool
}

// Schema is the column metadata of a model struct, derived once from its
// fields and `db` tags.
//
// Field rules: unexported and embedded fields are skipped, `db:"-"` skips a
// field, the column defaults to the snake_case field name, a field named ID
// is the primary key unless another field carries the primaryKey option.
type Schema struct {
	Type    reflect.Type
	Name    string // Go type name, e.g. "Vehicle"
	Table   string
	Columns []Column

	pk     int
	byName map[string]int
}

var schemas sync.Map // reflect.Type → *Schema

// SchemaFor returns the Schema of T. T must be a struct type.
func SchemaFor[T any]() (*Schema, error) {
	return SchemaOf(reflect.TypeFor[T]())
}

// SchemaOf returns the Schema of the struct type t (or the struct t points to).
func SchemaOf(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if v, ok := schemas.Load(t); ok {
		return v.(*Schema), nil //nolint:forcetypeassert // only *Schema is stored
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("orm: %s is not a struct", t)
	}

	s := &Schema{
		Type:   t,
		Name:   t.Name(),
		Table:  tableNameOf(t),
		pk:     -1,
		byName: make(map[string]int),
	}

	explicitPK := -1
	for i := range t.NumField() {
		col, skip := parseField(t.Field(i))
		if skip {
			continue
		}
		if _, dup := s.byName[col.Name]; dup {
			return nil, fmt.Errorf("orm: %s: duplicate column %q", s.Name, col.Name)
		}
		if col.PrimaryKey && col.Field != "ID" {
			if explicitPK >= 0 {
				return nil, fmt.Errorf("orm: %s: multiple primary keys: %s and %s",
					s.Name, s.Columns[explicitPK].Field, col.Field)
			}
			explicitPK = len(s.Columns)
		}
		s.byName[col.Name] = len(s.Columns)
		s.Columns = append(s.Columns, col)
	}

	// An explicit primaryKey option wins over the ID naming default.
	for i := range s.Columns {
		c := &s.Columns[i]
		switch {
		case explicitPK >= 0:
			c.PrimaryKey = i == explicitPK
		case c.PrimaryKey:
			s.pk = i
		}
	}
	if explicitPK >= 0 {
		s.pk = explicitPK
	}

	v, _ := schemas.LoadOrStore(t, s)
	return v.(*Schema), nil //nolint:forcetypeassert // only *Schema is stored
}

// Column returns the column with the given name.
func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Column{}, false
	}
	return s.Columns[i], true
}

// Has reports whether name is a storage column of the model.
func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// PrimaryKey returns the primary key column, if any.
func (s *Schema) PrimaryKey() (Column, bool) {
	if s.pk < 0 {
		return Column{}, false
	}
	return s.Columns[s.pk], true
}

// ColumnNames returns every column name in field order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

func parseField(f reflect.StructField) (Column, bool) {
	if f.Anonymous || !f.IsExported() {
		return Column{}, true
	}

	// Defaults: column inferred from field name, ID field is primary key.
	col := Column{
		Name:       naming.CamelToSnake(f.Name),
		Field:      f.Name,
		Index:      f.Index,
		Type:       f.Type,
		PrimaryKey: f.Name == "ID",
	}

	dbTag, ok := f.Tag.Lookup("db")
	if !ok {
		return col, false
	}
	if dbTag == "-" {
		return Column{}, true
	}
	parts := strings.Split(dbTag, ",")
	if parts[0] != "" {
		col.Name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "primaryKey" {
			col.PrimaryKey = true
		}
	}
	return col, false
}
