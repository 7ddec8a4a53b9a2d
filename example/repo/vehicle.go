package repo

import (
	"context"

	"github.com/mickamy/polyorm/example/catalog"
	"github.com/mickamy/polyorm/example/model"
	"github.com/mickamy/polyorm/orm"
	"github.com/mickamy/polyorm/poly"
	"github.com/mickamy/polyorm/scope"
)

// VehicleRepository wraps model queries and the source associations with a
// repository pattern.
type VehicleRepository struct {
	db  orm.Querier
	cat *catalog.Catalog
}

func NewVehicleRepository(db orm.Querier, cat *catalog.Catalog) *VehicleRepository {
	return &VehicleRepository{db: db, cat: cat}
}

// Create builds a vehicle from fields (columns and the "source" field) and
// inserts it.
func (r *VehicleRepository) Create(ctx context.Context, fields map[string]any) (*model.Vehicle, error) {
	v, err := poly.Construct(r.cat.Vehicles, fields)
	if err != nil {
		return nil, err
	}
	if err := orm.From[model.Vehicle](r.db).Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *VehicleRepository) FindAll(ctx context.Context, scopes ...scope.Scope) ([]model.Vehicle, error) {
	return orm.From[model.Vehicle](r.db).Scopes(scopes...).OrderBy("id").All(ctx)
}

// Source resolves the owner or dealer a vehicle belongs to.
func (r *VehicleRepository) Source(ctx context.Context, v *model.Vehicle) (any, error) {
	return r.cat.Source.Resolve(ctx, v)
}

// OrgsWithVehicles loads every org with its vehicles preloaded.
func (r *VehicleRepository) OrgsWithVehicles(ctx context.Context) ([]model.Org, error) {
	q := orm.From[model.Org](r.db)
	if err := poly.Attach(q, r.cat.OrgVehicles); err != nil {
		return nil, err
	}
	return q.OrderBy("id").Preload(r.cat.OrgVehicles.Name()).All(ctx)
}

// Move re-parents v to owner and saves the new source columns.
func (r *VehicleRepository) Move(ctx context.Context, v *model.Vehicle, owner any) error {
	if err := r.cat.Source.Assign(v, owner); err != nil {
		return err
	}
	return orm.From[model.Vehicle](r.db).Update(ctx, v)
}
