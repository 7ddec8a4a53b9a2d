// Package catalog registers the demo models and wires their polymorphic
// associations from the embedded manifest.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/mickamy/polyorm/example/model"
	"github.com/mickamy/polyorm/orm"
	"github.com/mickamy/polyorm/poly"
)

//go:embed manifest.yaml
var manifest []byte

// Catalog is the wired registry and the accessors the demo uses.
type Catalog struct {
	Registry *poly.Registry

	Vehicles     *poly.Type[model.Vehicle]
	Orgs         *poly.Type[model.Org]
	LocalDealers *poly.Type[model.LocalDealer]

	Source        *poly.PolyField[model.Vehicle]
	SourceDealer  *poly.Reference[model.Vehicle, *model.Dealer]
	OrgVehicles   *poly.HasMany[model.Vehicle]
	LocalVehicles *poly.HasMany[model.Vehicle]
}

// New registers the models on a fresh registry. Orgs and local dealers are
// found through db; network dealers through dealers.
func New(db orm.Querier, dealers poly.Finder[*model.Dealer], opts ...poly.Option) (*Catalog, error) {
	c := &Catalog{Registry: poly.NewRegistry(opts...)}

	var err error
	if c.Vehicles, err = poly.Register[model.Vehicle](c.Registry); err != nil {
		return nil, err
	}
	if c.Orgs, err = poly.Register(c.Registry,
		poly.WithFinder[model.Org](poly.NewDBFinder[model.Org](db))); err != nil {
		return nil, err
	}
	if c.LocalDealers, err = poly.Register(c.Registry,
		poly.WithFinder[model.LocalDealer](poly.NewDBFinder[model.LocalDealer](db))); err != nil {
		return nil, err
	}

	if c.SourceDealer, err = poly.NewNetRelationship[model.Vehicle, *model.Dealer](c.Vehicles, "source", dealers); err != nil {
		return nil, err
	}
	if c.Source, err = c.Vehicles.Field("source"); err != nil {
		return nil, err
	}

	if _, err := poly.LoadManifest(bytes.NewReader(manifest), c.Registry); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if err := c.Registry.Wire(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	if c.OrgVehicles, err = poly.Collection[model.Vehicle](c.Orgs, "vehicles"); err != nil {
		return nil, err
	}
	if c.LocalVehicles, err = poly.Collection[model.Vehicle](c.LocalDealers, "vehicles"); err != nil {
		return nil, err
	}
	return c, nil
}
