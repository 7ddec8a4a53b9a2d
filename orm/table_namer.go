package orm

import (
	"reflect"

	"github.com/mickamy/polyorm/internal/naming"
)

// TableNamer can be implemented by model structs to override the
// auto-derived table name.
type TableNamer interface {
	TableName() string
}

// ResolveTableName returns the table name for type T.
// If T implements TableNamer (value or pointer receiver), that name is used;
// otherwise the snake_case plural of the type name is returned.
func ResolveTableName[T any]() string {
	return tableNameOf(reflect.TypeFor[T]())
}

func tableNameOf(t reflect.Type) string {
	if tn, ok := reflect.New(t).Interface().(TableNamer); ok {
		return tn.TableName()
	}
	return naming.TableName(t.Name())
}
