package orm

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNoRows is what TestQuerier.QueryContext returns: it records the SQL but
// has no rows to give back.
var ErrNoRows = errors.New("test querier: no rows")

// TestQuerier is a Querier that records statements instead of running them.
// Exec results report NextID as the last insert id, so generated keys can
// be checked on dialects without RETURNING.
type TestQuerier struct {
	D       Dialect
	NextID  int64
	Queries []TestQuery
}

// TestQuery is one recorded statement.
type TestQuery struct {
	SQL  string
	Args []any
}

func NewTestQuerier(d Dialect) *TestQuerier {
	return &TestQuerier{D: d}
}

func (tq *TestQuerier) QueryContext(_ context.Context, query string, args ...any) (*sql.Rows, error) {
	tq.record(query, args)
	return nil, ErrNoRows
}

func (tq *TestQuerier) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	tq.record(query, args)
	return execResult{id: tq.NextID, rows: 1}, nil
}

func (tq *TestQuerier) record(query string, args []any) {
	tq.Queries = append(tq.Queries, TestQuery{SQL: query, Args: args})
}

// LastQuery returns the most recent statement. It panics when none was
// recorded.
func (tq *TestQuerier) LastQuery() TestQuery {
	return tq.Queries[len(tq.Queries)-1]
}

func (tq *TestQuerier) dialect() Dialect { return tq.D }

var _ Querier = (*TestQuerier)(nil)

type execResult struct {
	id, rows int64
}

func (r execResult) LastInsertId() (int64, error) { return r.id, nil }
func (r execResult) RowsAffected() (int64, error) { return r.rows, nil }
