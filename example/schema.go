package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mickamy/polyorm/orm"
)

var tables = []struct {
	name    string
	columns []string
}{
	{"orgs", []string{"name VARCHAR(255) NOT NULL"}},
	{"local_dealers", []string{"name VARCHAR(255) NOT NULL"}},
	{"vehicles", []string{
		"name VARCHAR(255) NOT NULL",
		"source_type VARCHAR(64)",
		"source_id BIGINT",
	}},
}

// createTables creates the demo tables if they are missing.
func createTables(ctx context.Context, db orm.Querier, d orm.Dialect) error {
	var pk string
	switch d {
	case orm.MySQL:
		pk = "id BIGINT AUTO_INCREMENT PRIMARY KEY"
	case orm.PostgreSQL:
		pk = "id BIGSERIAL PRIMARY KEY"
	default:
		pk = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	for _, t := range tables {
		cols := append([]string{pk}, t.columns...)
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdent(t.name), strings.Join(cols, ", "))
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create %s: %w", t.name, err)
		}
	}
	return nil
}
