package poly_test

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/polyorm/orm"
	"github.com/mickamy/polyorm/poly"
)

// Dealer is served by a dealer service, not by the database.
type Dealer struct {
	ID int64
}

func (d *Dealer) PrimaryKey() int64 { return d.ID }

// dealerService builds a fresh Dealer on every lookup and counts lookups.
type dealerService struct {
	mu      sync.Mutex
	lookups int
}

func (s *dealerService) Find(_ context.Context, id int64) (*Dealer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	return &Dealer{ID: id}, nil
}

func (s *dealerService) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

// memStore is an in-memory identity map standing in for persisted rows.
type memStore[E any] struct {
	rows map[int64]*E
}

func newMemStore[E any]() *memStore[E] {
	return &memStore[E]{rows: make(map[int64]*E)}
}

func (s *memStore[E]) put(es ...*E) {
	for _, e := range es {
		s.rows[any(e).(poly.Identifier).PrimaryKey()] = e
	}
}

func (s *memStore[E]) Find(_ context.Context, id int64) (*E, error) {
	e, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("memstore: %d: %w", id, orm.ErrNotFound)
	}
	return e, nil
}

type Vehicle struct {
	poly.Entity
	ID         int64
	SourceType sql.NullString
	SourceID   sql.NullInt64
}

func (v *Vehicle) PrimaryKey() int64 { return v.ID }

type LocalDealer struct {
	poly.Entity
	ID int64
}

func (d *LocalDealer) PrimaryKey() int64 { return d.ID }

type Records struct {
	poly.Entity
	ID         int64
	BuyerType  sql.NullString
	BuyerID    sql.NullInt64
	SellerType sql.NullString
	SellerID   sql.NullInt64
}

func (r *Records) PrimaryKey() int64 { return r.ID }

type Org struct {
	poly.Entity
	ID int64
}

func (o *Org) PrimaryKey() int64 { return o.ID }

type Company struct {
	poly.Entity
	ID       int64
	DealerID int64
}

func (c *Company) PrimaryKey() int64 { return c.ID }

type VehicleReferencePrice struct {
	poly.Entity
	ID         int64
	SourceType *string
	SourceID   *int64
}

func (p *VehicleReferencePrice) PrimaryKey() int64 { return p.ID }

type FairEstimatedValue struct {
	poly.Entity
	ID int64
}

func (v *FairEstimatedValue) PrimaryKey() int64 { return v.ID }

type SomeRecord struct {
	poly.Entity
	ID int64
}

func (r *SomeRecord) PrimaryKey() int64 { return r.ID }

// AdsData and NewsData share the juices table, told apart by filter_type.
type AdsData struct {
	poly.Entity
	ID         int64
	FilterType string
}

func (AdsData) TableName() string    { return "juices" }
func (d *AdsData) PrimaryKey() int64 { return d.ID }

type NewsData struct {
	poly.Entity
	ID         int64
	FilterType string
}

func (NewsData) TableName() string    { return "juices" }
func (d *NewsData) PrimaryKey() int64 { return d.ID }

type fixture struct {
	reg  *poly.Registry
	prom *prometheus.Registry
	logs *bytes.Buffer

	dealers   *dealerService
	orgDB     *memStore[Org]
	companyDB *memStore[Company]
	localDB   *memStore[LocalDealer]
	fevDB     *memStore[FairEstimatedValue]
	someDB    *memStore[SomeRecord]
	adsDB     *memStore[AdsData]
	newsDB    *memStore[NewsData]

	vehicles  *poly.Type[Vehicle]
	records   *poly.Type[Records]
	orgs      *poly.Type[Org]
	companies *poly.Type[Company]
	locals    *poly.Type[LocalDealer]
	prices    *poly.Type[VehicleReferencePrice]
	fevs      *poly.Type[FairEstimatedValue]
	somes     *poly.Type[SomeRecord]
	ads       *poly.Type[AdsData]
	news      *poly.Type[NewsData]

	vehicleDealer *poly.Reference[Vehicle, *Dealer]
	buyerDealer   *poly.Reference[Records, *Dealer]
	sellerDealer  *poly.Reference[Records, *Dealer]
	companyDealer *poly.Reference[Company, *Dealer]

	vehicleSource *poly.PolyField[Vehicle]
	buyer         *poly.PolyField[Records]
	seller        *poly.PolyField[Records]
	priceSource   *poly.PolyField[VehicleReferencePrice]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		prom:      prometheus.NewRegistry(),
		logs:      &bytes.Buffer{},
		dealers:   &dealerService{},
		orgDB:     newMemStore[Org](),
		companyDB: newMemStore[Company](),
		localDB:   newMemStore[LocalDealer](),
		fevDB:     newMemStore[FairEstimatedValue](),
		someDB:    newMemStore[SomeRecord](),
		adsDB:     newMemStore[AdsData](),
		newsDB:    newMemStore[NewsData](),
	}
	metrics, err := poly.NewMetrics(f.prom)
	require.NoError(t, err)
	f.reg = poly.NewRegistry(
		poly.WithLogger(slog.New(slog.NewTextHandler(f.logs, nil))),
		poly.WithMetrics(metrics),
	)

	f.vehicles = register[Vehicle](t, f.reg)
	f.records = register[Records](t, f.reg)
	f.prices = register[VehicleReferencePrice](t, f.reg)
	f.orgs = register(t, f.reg, poly.WithFinder[Org](f.orgDB))
	f.companies = register(t, f.reg, poly.WithFinder[Company](f.companyDB))
	f.locals = register(t, f.reg, poly.WithFinder[LocalDealer](f.localDB))
	f.fevs = register(t, f.reg, poly.WithFinder[FairEstimatedValue](f.fevDB))
	f.somes = register(t, f.reg, poly.WithFinder[SomeRecord](f.someDB))
	f.ads = register(t, f.reg, poly.WithFinder[AdsData](f.adsDB))
	f.news = register(t, f.reg, poly.WithFinder[NewsData](f.newsDB))

	f.vehicleDealer, err = poly.NewNetRelationship[Vehicle, *Dealer](f.vehicles, "source", f.dealers)
	require.NoError(t, err)
	f.buyerDealer, err = poly.NewNetRelationship[Records, *Dealer](f.records, "buyer", f.dealers)
	require.NoError(t, err)
	f.sellerDealer, err = poly.NewNetRelationship[Records, *Dealer](f.records, "seller", f.dealers)
	require.NoError(t, err)
	f.companyDealer, err = poly.NewNetModel[Company, *Dealer](f.companies, "dealer", "dealer_id", f.dealers)
	require.NoError(t, err)

	f.vehicleSource, err = f.vehicles.Field("source")
	require.NoError(t, err)
	f.buyer, err = f.records.Field("buyer")
	require.NoError(t, err)
	f.seller, err = f.records.Field("seller")
	require.NoError(t, err)
	f.priceSource, err = f.prices.Field("source")
	require.NoError(t, err)

	hasVehicle, err := poly.NewBase(poly.BaseOptions{Child: f.vehicles, Prefix: "source"})
	require.NoError(t, err)
	hasRecord, err := poly.NewBase(poly.BaseOptions{Relations: []poly.Spec{
		{Child: f.records, Prefix: "buyer", Collection: "buyer_records"},
		{Child: f.records, Prefix: "seller", Collection: "seller_records"},
	}})
	require.NoError(t, err)
	hasPrices, err := poly.NewBase(poly.BaseOptions{Child: f.prices, Prefix: "source"})
	require.NoError(t, err)

	require.NoError(t, f.reg.Include(f.locals, hasVehicle))
	require.NoError(t, f.reg.Include(f.orgs, hasRecord, hasVehicle))
	require.NoError(t, f.reg.Include(f.companies, hasRecord))
	require.NoError(t, f.reg.Include(f.fevs, hasPrices))
	require.NoError(t, f.reg.Include(f.somes, hasPrices))
	require.NoError(t, f.reg.Include(f.ads, hasVehicle))
	require.NoError(t, f.reg.Include(f.news, hasVehicle))
	require.NoError(t, f.reg.Wire())

	return f
}

func register[E any](t *testing.T, reg *poly.Registry, opts ...poly.TypeOption[E]) *poly.Type[E] {
	t.Helper()

	typ, err := poly.Register[E](reg, opts...)
	require.NoError(t, err)
	return typ
}

func collection[C any](t *testing.T, owner poly.TypeHandle, name string) *poly.HasMany[C] {
	t.Helper()

	hm, err := poly.Collection[C](owner, name)
	require.NoError(t, err)
	return hm
}

func construct[E any](t *testing.T, typ *poly.Type[E], fields map[string]any) *E {
	t.Helper()

	e, err := poly.Construct(typ, fields)
	require.NoError(t, err)
	return e
}

// assertSameItems compares collections by pointer identity.
func assertSameItems[C any](t *testing.T, want, got []*C) {
	t.Helper()

	require.Len(t, got, len(want))
	for i := range want {
		assert.Same(t, want[i], got[i], "item %d", i)
	}
}

func nullStr(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }
func nullID(n int64) sql.NullInt64    { return sql.NullInt64{Int64: n, Valid: true} }
