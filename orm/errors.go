package orm

import "errors"

// ErrNotFound is returned when a query expects exactly one row but finds none.
var ErrNotFound = errors.New("orm: not found")

// ErrNoPrimaryKey is returned by operations that address a row by primary
// key on a model without one.
var ErrNoPrimaryKey = errors.New("orm: model has no primary key")
