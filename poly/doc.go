// Package poly implements polymorphic associations on top of the orm
// package: one child model linked, through a <prefix>_type / <prefix>_id
// column pair, to any one of several unrelated owner models.
//
// Models embed Entity and are registered once on a Registry:
//
//	reg := poly.NewRegistry()
//	vehicles, _ := poly.Register[Vehicle](reg)
//	orgs, _ := poly.Register[Org](reg, poly.WithFinder(poly.NewDBFinder[Org](db)))
//
// An association descriptor (Base) is built once and included by every
// owner that opts in. Wire installs the owner-side collections, the
// child-side backreferences and the append hook:
//
//	hasVehicles, _ := poly.NewBase(poly.BaseOptions{Child: vehicles, Prefix: "source"})
//	_ = reg.Include(orgs, hasVehicles)
//	_ = reg.Wire()
//
//	orgVehicles, _ := poly.Collection[Vehicle](orgs, "vehicles")
//	_ = orgVehicles.Append(org, vehicle) // vehicle.SourceType = "org", vehicle.SourceID = org.ID
//
// Referents that are not persisted (network-backed records) are attached
// with NewNetRelationship or NewNetModel and a Finder. PolyField reads and
// writes whichever backing accessor matches the stored type tag.
package poly
