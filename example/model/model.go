// Package model holds the demo's models: owners of vehicles, the vehicles
// themselves and the network-backed Dealer.
package model

import (
	"database/sql"

	"github.com/mickamy/polyorm/poly"
)

type Org struct {
	poly.Entity
	ID   int64
	Name string
}

func (o *Org) PrimaryKey() int64 { return o.ID }

type LocalDealer struct {
	poly.Entity
	ID   int64
	Name string
}

func (d *LocalDealer) PrimaryKey() int64 { return d.ID }

// Vehicle belongs to an Org, a LocalDealer or a network Dealer through
// source_type / source_id.
type Vehicle struct {
	poly.Entity
	ID         int64
	Name       string
	SourceType sql.NullString
	SourceID   sql.NullInt64
}

func (v *Vehicle) PrimaryKey() int64 { return v.ID }

// Dealer is served by the dealer service and never stored locally.
type Dealer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (d *Dealer) PrimaryKey() int64 { return d.ID }
