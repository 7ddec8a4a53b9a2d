// Package scope holds reusable query fragments. A Scope is built once,
// typically at package level, and applied to any number of queries.
package scope

import "strings"

// Applier receives scope fragments. orm.Query implements it; keeping the
// interface here lets orm import scope and not the other way round.
type Applier interface {
	ApplyWhere(clause string, args []any)
	ApplyOrderBy(clause string)
	ApplyLimit(n int)
	ApplyOffset(n int)
	ApplySelect(columns string)
}

type kind int

const (
	kindWhere kind = iota
	kindOrderBy
	kindLimit
	kindOffset
	kindSelect
)

// Scope is one immutable query fragment.
type Scope struct {
	kind   kind
	clause string
	args   []any
	n      int
}

// Apply hands s to a.
func (s Scope) Apply(a Applier) {
	switch s.kind {
	case kindWhere:
		a.ApplyWhere(s.clause, s.args)
	case kindOrderBy:
		a.ApplyOrderBy(s.clause)
	case kindLimit:
		a.ApplyLimit(s.n)
	case kindOffset:
		a.ApplyOffset(s.n)
	case kindSelect:
		a.ApplySelect(s.clause)
	}
}

// Where adds a WHERE fragment. Fragments from several Where scopes are
// joined with AND.
//
//	scope.Where("source_type = ?", "org")
func Where(clause string, args ...any) Scope {
	return Scope{kind: kindWhere, clause: clause, args: args}
}

// OrderBy sets the ORDER BY clause.
//
//	scope.OrderBy("id DESC")
func OrderBy(clause string) Scope {
	return Scope{kind: kindOrderBy, clause: clause}
}

// Limit sets the LIMIT.
func Limit(n int) Scope {
	return Scope{kind: kindLimit, n: n}
}

// Offset sets the OFFSET.
func Offset(n int) Scope {
	return Scope{kind: kindOffset, n: n}
}

// Select overrides the SELECT column list.
//
//	scope.Select("id", "source_type", "source_id")
func Select(columns ...string) Scope {
	return Scope{kind: kindSelect, clause: strings.Join(columns, ", ")}
}

// In matches column against values, one placeholder per value. An empty
// values slice matches nothing.
//
//	scope.In("source_id", []int64{1, 2, 3})  // → WHERE source_id IN (?, ?, ?)
func In[T any](column string, values []T) Scope {
	if len(values) == 0 {
		return none
	}
	return Where(inClause(column, len(values)), toArgs(values)...)
}

// none matches no rows.
var none = Where("1 = 0")

// Discriminator names the <Prefix>_type / <Prefix>_id column pair through
// which a child row points at an owner of any type.
type Discriminator struct {
	Prefix string
}

// TypeColumn returns the column holding the owner's type tag.
func (d Discriminator) TypeColumn() string { return d.Prefix + "_type" }

// IDColumn returns the column holding the owner's primary key.
func (d Discriminator) IDColumn() string { return d.Prefix + "_id" }

// Owner matches rows linked to the owner tagged tag with primary key id.
//
//	scope.Discriminator{Prefix: "source"}.Owner("org", 1)
//	// → WHERE source_id = ? AND source_type = ?
func (d Discriminator) Owner(tag string, id int64) Scope {
	return Where(d.IDColumn()+" = ? AND "+d.TypeColumn()+" = ?", id, tag)
}

// Owners is the batch form of Owner for several owners sharing one tag.
// An empty ids slice matches nothing.
//
//	scope.Discriminator{Prefix: "source"}.Owners("org", []int64{1, 2})
//	// → WHERE source_id IN (?, ?) AND source_type = ?
func (d Discriminator) Owners(tag string, ids []int64) Scope {
	if len(ids) == 0 {
		return none
	}
	args := append(toArgs(ids), tag)
	return Where(inClause(d.IDColumn(), len(ids))+" AND "+d.TypeColumn()+" = ?", args...)
}

// Scopes is a list of Scope, handy for building a set conditionally.
//
//	var s scope.Scopes
//	if onlyOrgs {
//	    s = s.Append(scope.Where("source_type = ?", "org"))
//	}
//	s = s.Append(scope.Limit(20))
//	orm.From[Vehicle](db).Scopes(s...).All(ctx)
type Scopes []Scope

// Append returns a new Scopes with scopes added. ss is not modified.
func (ss Scopes) Append(scopes ...Scope) Scopes {
	return append(append(Scopes(nil), ss...), scopes...)
}

// Merge returns ss followed by other. Neither is modified.
func (ss Scopes) Merge(other Scopes) Scopes {
	return ss.Append(other...)
}

// Combine collects scopes into a Scopes.
//
//	scope.Combine(scope.Limit(10), scope.Offset(20))
func Combine(scopes ...Scope) Scopes {
	return Scopes(scopes)
}

func inClause(column string, n int) string {
	return column + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

func toArgs[T any](values []T) []any {
	args := make([]any, len(values), len(values)+1)
	for i, v := range values {
		args[i] = v
	}
	return args
}
