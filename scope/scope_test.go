package scope_test

import (
	"reflect"
	"testing"

	"github.com/mickamy/polyorm/scope"
)

// recorder captures what Scope.Apply hands to an Applier.
type recorder struct {
	wheres   []where
	orderBys []string
	selects  []string
	limit    *int
	offset   *int
}

type where struct {
	clause string
	args   []any
}

func (r *recorder) ApplyWhere(clause string, args []any) {
	r.wheres = append(r.wheres, where{clause, args})
}
func (r *recorder) ApplyOrderBy(clause string) { r.orderBys = append(r.orderBys, clause) }
func (r *recorder) ApplyLimit(n int)           { r.limit = &n }
func (r *recorder) ApplyOffset(n int)          { r.offset = &n }
func (r *recorder) ApplySelect(columns string) { r.selects = append(r.selects, columns) }

func apply(scopes ...scope.Scope) *recorder {
	r := &recorder{}
	for _, s := range scopes {
		s.Apply(r)
	}
	return r
}

func TestWhereScopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scope  scope.Scope
		clause string
		args   []any
	}{
		{"where", scope.Where("source_type = ?", "org"), "source_type = ?", []any{"org"}},
		{"where two args", scope.Where("source_type = ? AND source_id = ?", "org", int64(1)), "source_type = ? AND source_id = ?", []any{"org", int64(1)}},
		{"where no args", scope.Where("source_type IS NULL"), "source_type IS NULL", nil},
		{"in ints", scope.In("source_id", []int64{1, 2, 3}), "source_id IN (?, ?, ?)", []any{int64(1), int64(2), int64(3)}},
		{"in strings", scope.In("source_type", []string{"org", "local_dealer"}), "source_type IN (?, ?)", []any{"org", "local_dealer"}},
		{"in empty", scope.In("source_id", []int64{}), "1 = 0", nil},
		{"owner", scope.Discriminator{Prefix: "buyer"}.Owner("org", 3), "buyer_id = ? AND buyer_type = ?", []any{int64(3), "org"}},
		{"owners", scope.Discriminator{Prefix: "source"}.Owners("org", []int64{1, 2}), "source_id IN (?, ?) AND source_type = ?", []any{int64(1), int64(2), "org"}},
		{"one owner", scope.Discriminator{Prefix: "source"}.Owners("local_dealer", []int64{7}), "source_id IN (?) AND source_type = ?", []any{int64(7), "local_dealer"}},
		{"no owners", scope.Discriminator{Prefix: "source"}.Owners("org", nil), "1 = 0", nil},
		{"no owners empty slice", scope.Discriminator{Prefix: "source"}.Owners("org", []int64{}), "1 = 0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := apply(tt.scope)
			if len(r.wheres) != 1 {
				t.Fatalf("expected 1 where, got %d", len(r.wheres))
			}
			if r.wheres[0].clause != tt.clause {
				t.Errorf("clause = %q, want %q", r.wheres[0].clause, tt.clause)
			}
			if len(r.wheres[0].args) != len(tt.args) || (len(tt.args) > 0 && !reflect.DeepEqual(r.wheres[0].args, tt.args)) {
				t.Errorf("args = %v, want %v", r.wheres[0].args, tt.args)
			}
		})
	}
}

func TestDiscriminatorColumns(t *testing.T) {
	t.Parallel()

	d := scope.Discriminator{Prefix: "seller"}
	if got := d.TypeColumn(); got != "seller_type" {
		t.Errorf("TypeColumn() = %q, want %q", got, "seller_type")
	}
	if got := d.IDColumn(); got != "seller_id" {
		t.Errorf("IDColumn() = %q, want %q", got, "seller_id")
	}
}

func TestOwnersDoesNotShareArgs(t *testing.T) {
	t.Parallel()

	ids := []int64{1, 2}
	r := apply(scope.Discriminator{Prefix: "source"}.Owners("org", ids))
	ids[0] = 9

	if r.wheres[0].args[0] != int64(1) {
		t.Errorf("args[0] = %v, want 1", r.wheres[0].args[0])
	}
}

func TestClauseScopes(t *testing.T) {
	t.Parallel()

	r := apply(scope.OrderBy("id DESC"), scope.Select("id", "source_type", "source_id"), scope.Limit(10), scope.Offset(20))

	if len(r.orderBys) != 1 || r.orderBys[0] != "id DESC" {
		t.Errorf("orderBys = %v, want [id DESC]", r.orderBys)
	}
	if len(r.selects) != 1 || r.selects[0] != "id, source_type, source_id" {
		t.Errorf("selects = %v, want [id, source_type, source_id]", r.selects)
	}
	if r.limit == nil || *r.limit != 10 {
		t.Errorf("limit = %v, want 10", r.limit)
	}
	if r.offset == nil || *r.offset != 20 {
		t.Errorf("offset = %v, want 20", r.offset)
	}
	if len(r.wheres) != 0 {
		t.Errorf("wheres = %v, want none", r.wheres)
	}
}

func TestScopesAppendDoesNotMutate(t *testing.T) {
	t.Parallel()

	orgs := scope.Combine(scope.Where("source_type = ?", "org"))
	paged := orgs.Append(scope.Discriminator{Prefix: "source"}.Owner("org", 1), scope.Limit(10))

	if len(orgs) != 1 {
		t.Errorf("original modified: len = %d, want 1", len(orgs))
	}
	if len(paged) != 3 {
		t.Errorf("appended len = %d, want 3", len(paged))
	}
}

func TestScopesMerge(t *testing.T) {
	t.Parallel()

	owned := scope.Combine(scope.Discriminator{Prefix: "source"}.Owners("org", []int64{1, 2}), scope.OrderBy("id"))
	page := scope.Combine(scope.Limit(20), scope.Offset(40))
	merged := owned.Merge(page)

	if len(owned) != 2 || len(page) != 2 {
		t.Errorf("inputs modified: len = %d, %d, want 2, 2", len(owned), len(page))
	}
	if len(merged) != 4 {
		t.Fatalf("merged len = %d, want 4", len(merged))
	}

	r := apply(merged...)
	if len(r.wheres) != 1 || len(r.orderBys) != 1 {
		t.Errorf("wheres = %d, orderBys = %d, want 1, 1", len(r.wheres), len(r.orderBys))
	}
	if r.limit == nil || *r.limit != 20 {
		t.Errorf("limit = %v, want 20", r.limit)
	}
	if r.offset == nil || *r.offset != 40 {
		t.Errorf("offset = %v, want 40", r.offset)
	}
}
