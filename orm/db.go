package orm

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is what queries run against: a DB or a Tx.
// Query factories accept this so the same model and association code works
// inside and outside a transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	dialect() Dialect
}

// Logger receives every statement before it is sent to the database.
type Logger interface {
	Log(ctx context.Context, query string, args ...any)
}

// session is the state a DB hands down to its transactions.
type session struct {
	d      Dialect
	logger Logger
}

func (s session) log(ctx context.Context, query string, args []any) {
	if s.logger != nil {
		s.logger.Log(ctx, query, args...)
	}
}

func (s session) dialect() Dialect { return s.d }

// DB wraps *sql.DB with a Dialect and satisfies Querier.
type DB struct {
	session
	raw *sql.DB
}

// New wraps a *sql.DB with the given Dialect.
func New(db *sql.DB, d Dialect) *DB {
	return &DB{session: session{d: d}, raw: db}
}

// Open opens a database with the registered driver and wraps it.
func Open(driver, dsn string, d Dialect) (*DB, error) {
	raw, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("orm: open %s: %w", driver, err)
	}
	return New(raw, d), nil
}

// DialectOf returns the Dialect a Querier was created with.
func DialectOf(q Querier) Dialect { return q.dialect() }

// Raw returns the wrapped *sql.DB, e.g. to tune its connection pool.
func (db *DB) Raw() *sql.DB { return db.raw }

// Debug returns a new *DB that logs every statement, including those run in
// its transactions, to l. db itself is not modified.
func (db *DB) Debug(l Logger) *DB {
	return &DB{session: session{d: db.d, logger: l}, raw: db.raw}
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db.log(ctx, query, args)
	return db.raw.QueryContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db.log(ctx, query, args)
	return db.raw.ExecContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

// Begin starts a transaction that shares db's dialect and logger.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.raw.BeginTx(ctx, nil)
	if err != nil {
		return nil, err //nolint:wrapcheck // thin wrapper
	}
	return &Tx{session: db.session, raw: tx}, nil
}

// Transaction runs fn in a transaction. It commits when fn returns nil and
// rolls back when fn returns an error or panics.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the underlying *sql.DB.
func (db *DB) Close() error { return db.raw.Close() } //nolint:wrapcheck // thin wrapper

// Tx wraps *sql.Tx and satisfies Querier.
type Tx struct {
	session
	raw *sql.Tx
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	tx.log(ctx, query, args)
	return tx.raw.QueryContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx.log(ctx, query, args)
	return tx.raw.ExecContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

// Commit commits the transaction.
func (tx *Tx) Commit() error { return tx.raw.Commit() } //nolint:wrapcheck // thin wrapper

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error { return tx.raw.Rollback() } //nolint:wrapcheck // thin wrapper
