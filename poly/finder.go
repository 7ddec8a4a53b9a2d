package poly

import (
	"context"
	"fmt"
	"sync"

	"github.com/mickamy/polyorm/orm"
)

// Finder looks up a referent by primary key. Persisted models are found
// through the orm (see DBFinder); network-backed records implement it
// against their own service (see package netref).
type Finder[T any] interface {
	Find(ctx context.Context, id int64) (T, error)
}

// FinderFunc adapts a function to Finder.
type FinderFunc[T any] func(ctx context.Context, id int64) (T, error)

// Find implements Finder.
func (f FinderFunc[T]) Find(ctx context.Context, id int64) (T, error) {
	return f(ctx, id)
}

// DBFinder finds persisted models by primary key and keeps an identity map,
// so repeated lookups of one id return the same pointer.
type DBFinder[E any] struct {
	db orm.Querier

	mu       sync.Mutex
	identity map[int64]*E
}

// NewDBFinder returns a DBFinder reading through db.
func NewDBFinder[E any](db orm.Querier) *DBFinder[E] {
	return &DBFinder[E]{db: db, identity: make(map[int64]*E)}
}

// Find implements Finder. A missing row yields orm.ErrNotFound.
func (f *DBFinder[E]) Find(ctx context.Context, id int64) (*E, error) {
	f.mu.Lock()
	e, ok := f.identity[id]
	f.mu.Unlock()
	if ok {
		return e, nil
	}

	q, err := orm.NewModelQuery[E](f.db)
	if err != nil {
		return nil, err
	}
	s, err := orm.SchemaFor[E]()
	if err != nil {
		return nil, err
	}
	pk, ok := s.PrimaryKey()
	if !ok {
		return nil, fmt.Errorf("poly: find %s: %w", s.Name, orm.ErrNoPrimaryKey)
	}

	v, err := q.Where(pk.Name+" = ?", id).First(ctx)
	if err != nil {
		return nil, fmt.Errorf("poly: find %s(%d): %w", s.Name, id, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.identity[id]; ok {
		return e, nil
	}
	f.identity[id] = &v
	return &v, nil
}

// Add puts an instance that is already in memory into the identity map, so
// lookups of its id return it instead of reading a copy.
func (f *DBFinder[E]) Add(e *E) {
	id, ok := any(e).(Identifier)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity[id.PrimaryKey()] = e
}

// Forget removes id from the identity map.
func (f *DBFinder[E]) Forget(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.identity, id)
}
