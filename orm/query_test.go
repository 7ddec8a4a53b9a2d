package orm_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/mickamy/polyorm/orm"
	"github.com/mickamy/polyorm/scope"
)

type vehicle struct {
	ID         int64          `db:"id,primaryKey"`
	Name       string         `db:"name"`
	SourceType sql.NullString `db:"source_type"`
	SourceID   sql.NullInt64  `db:"source_id"`
}

type org struct {
	ID   int64
	Name string
}

func TestBuildSelectAll(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	_, _ = orm.From[vehicle](tq).All(t.Context())

	got := tq.LastQuery()
	want := "SELECT `id`, `name`, `source_type`, `source_id` FROM `vehicles`"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

func TestBuildSelectDiscriminatorWhere(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	_, _ = orm.From[vehicle](tq).
		Where("source_id = ?", int64(1)).
		Where("source_type = ?", "org").
		OrderBy("id").
		All(t.Context())

	got := tq.LastQuery()
	want := `SELECT "id", "name", "source_type", "source_id" FROM "vehicles" WHERE source_id = $1 AND source_type = $2 ORDER BY id`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 2 || got.Args[0] != int64(1) || got.Args[1] != "org" {
		t.Errorf("Args = %v", got.Args)
	}
}

func TestBuildSelectWithScopes(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.SQLite)
	_, _ = orm.From[vehicle](tq).
		Scopes(scope.In("source_id", []int64{1, 2}), scope.Limit(5)).
		All(t.Context())

	got := tq.LastQuery()
	want := `SELECT "id", "name", "source_type", "source_id" FROM "vehicles" WHERE source_id IN (?, ?) LIMIT 5`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

func TestPolymorphicJoin(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	q := orm.From[org](tq)
	q.RegisterJoin("vehicles", orm.JoinConfig{
		TargetTable:  "vehicles",
		TargetColumn: "source_id",
		SourceTable:  "orgs",
		SourceColumn: "id",
		TypeColumn:   "source_type",
		TypeValue:    "org",
	})

	_, _ = q.Join("vehicles").Where(`"vehicles"."name" = ?`, "truck").All(t.Context())

	got := tq.LastQuery()
	want := `SELECT "orgs"."id", "orgs"."name" FROM "orgs" INNER JOIN "vehicles" ON "vehicles"."source_id" = "orgs"."id" AND "vehicles"."source_type" = $1 WHERE "vehicles"."name" = $2`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 2 || got.Args[0] != "org" || got.Args[1] != "truck" {
		t.Errorf("Args = %v, want [org truck]", got.Args)
	}
}

func TestUnknownJoinIsIgnored(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	_, _ = orm.From[org](tq).LeftJoin("nope").All(t.Context())

	want := "SELECT `id`, `name` FROM `orgs`"
	if got := tq.LastQuery().SQL; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}

func TestQueryImmutability(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	base := orm.From[org](tq)
	_ = base.Where("name = ?", "acme")

	_, _ = base.All(t.Context())
	want := "SELECT `id`, `name` FROM `orgs`"
	if got := tq.LastQuery().SQL; got != want {
		t.Errorf("SQL = %q, want %q (base query was modified)", got, want)
	}
}

func TestBuildInsertExcludesGeneratedKey(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	tq.NextID = 11
	v := &vehicle{
		Name:       "truck",
		SourceType: sql.NullString{String: "org", Valid: true},
		SourceID:   sql.NullInt64{Int64: 7, Valid: true},
	}
	if err := orm.From[vehicle](tq).Create(t.Context(), v); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.ID != 11 {
		t.Errorf("ID = %d, want 11", v.ID)
	}

	got := tq.LastQuery()
	want := "INSERT INTO `vehicles` (`name`, `source_type`, `source_id`) VALUES (?, ?, ?)"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 3 {
		t.Fatalf("Args = %v, want 3 args", got.Args)
	}
	if got.Args[1] != v.SourceType {
		t.Errorf("Args[1] = %v, want %v", got.Args[1], v.SourceType)
	}
}

func TestBuildUpdatePostgreSQL(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	_ = orm.From[org](tq).Update(t.Context(), &org{ID: 3, Name: "acme"})

	got := tq.LastQuery()
	want := `UPDATE "orgs" SET "name" = $1 WHERE "id" = $2`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 2 || got.Args[1] != int64(3) {
		t.Errorf("Args = %v", got.Args)
	}
}

func TestUpdateWithoutPrimaryKey(t *testing.T) {
	t.Parallel()

	type keyless struct {
		Name string
	}
	tq := orm.NewTestQuerier(orm.MySQL)
	if err := orm.From[keyless](tq).Update(t.Context(), &keyless{}); err != orm.ErrNoPrimaryKey {
		t.Errorf("err = %v, want ErrNoPrimaryKey", err)
	}
}

func TestDeleteWithoutWhereReturnsError(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	if err := orm.From[org](tq).Delete(t.Context()); err == nil {
		t.Fatal("expected error for Delete without WHERE")
	}
	if len(tq.Queries) != 0 {
		t.Errorf("expected no queries, got %d", len(tq.Queries))
	}
}

func TestFirstAddsLimit(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	if _, err := orm.From[org](tq).Where("id = ?", 1).First(t.Context()); !errors.Is(err, orm.ErrNoRows) {
		t.Errorf("err = %v, want ErrNoRows", err)
	}

	want := "SELECT `id`, `name` FROM `orgs` WHERE id = ? LIMIT 1"
	if got := tq.LastQuery().SQL; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}
