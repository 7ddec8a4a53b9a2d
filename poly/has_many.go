package poly

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/mickamy/polyorm/internal/naming"
	"github.com/mickamy/polyorm/orm"
	"github.com/mickamy/polyorm/scope"
)

// HasMany is the one-to-many relationship synthesized between one owner
// type and child type C: owner.<Name> holds the children whose
// <prefix>_id equals the owner id and whose <prefix>_type equals the owner tag.
//
// The in-memory collection lives on the owner's Entity. Append keeps the
// child's discriminator columns in sync; nothing else does. Direct writes
// to the columns, Remove and owner id changes are not propagated (see Sync).
type HasMany[C any] struct {
	name     string
	prefix   string
	ownerTag string
	backref  string
	proxy    string

	owner *typeCore
	child *Type[C]

	typeCol    tagColumn
	idCol      idColumn
	proxyIndex []int
}

// Collection returns the relationship named name installed on owner by Wire.
func Collection[C any](owner TypeHandle, name string) (*HasMany[C], error) {
	c := owner.core()
	v, ok := c.collections[name]
	if !ok {
		return nil, configErrorf("%s has no collection %q (not wired?)", c.name(), name)
	}
	hm, ok := v.(*HasMany[C])
	if !ok {
		return nil, configErrorf("%s.%s is not a collection of %s", c.name(), name, reflect.TypeFor[C]())
	}
	return hm, nil
}

func (t *Type[C]) materialize(spec Spec, owner *typeCore) (undo func(), err error) {
	name := spec.Collection
	if name == "" {
		name = naming.CollectionName(t.c.name())
	}
	if _, dup := owner.collections[name]; dup {
		return nil, configErrorf("%s: collection %q is already defined", owner.name(), name)
	}
	if _, ok := owner.schema.PrimaryKey(); !ok {
		return nil, configErrorf("%s: owner needs a primary key", owner.name())
	}

	disc := scope.Discriminator{Prefix: spec.Prefix}
	typeCol, err := newTagColumn(t.c.schema, disc.TypeColumn())
	if err != nil {
		return nil, err
	}
	idCol, err := newIDColumn(t.c.schema, disc.IDColumn())
	if err != nil {
		return nil, err
	}

	hm := &HasMany[C]{
		name:     name,
		prefix:   spec.Prefix,
		ownerTag: owner.tag,
		backref:  naming.Prefixed(spec.Prefix, owner.tag),
		proxy:    spec.Proxy,
		owner:    owner,
		child:    t,
		typeCol:  typeCol,
		idCol:    idCol,
	}
	if spec.Proxy != "" {
		hm.proxyIndex = proxyIndex(t.c, spec.Proxy)
	}

	br := &backref[C]{hm: hm}
	if err := t.c.addBacking(hm.backref, br); err != nil {
		return nil, err
	}
	if err := t.c.addAttribute(hm.backref, br.assignAny); err != nil {
		delete(t.c.backings, hm.backref)
		return nil, err
	}
	owner.collections[name] = hm
	undo = func() {
		delete(owner.collections, name)
		delete(t.c.backings, hm.backref)
		delete(t.c.attrs, hm.backref)
	}

	owner.reg.logger.Debug("wired polymorphic relation",
		slog.String("owner", owner.name()),
		slog.String("collection", name),
		slog.String("child", t.c.name()),
		slog.String("backref", hm.backref),
		slog.String("tag", owner.tag),
	)
	return undo, nil
}

// Name returns the owner-side collection name, e.g. "vehicles".
func (hm *HasMany[C]) Name() string { return hm.name }

// Prefix returns the discriminator prefix, e.g. "source".
func (hm *HasMany[C]) Prefix() string { return hm.prefix }

// OwnerTag returns the value written to <prefix>_type, e.g. "org".
func (hm *HasMany[C]) OwnerTag() string { return hm.ownerTag }

// BackrefName returns the child-side attribute, e.g. "source__org".
func (hm *HasMany[C]) BackrefName() string { return hm.backref }

// ProxyName returns the owner-side proxy collection name, e.g. "names",
// or "" when the relation has no proxy.
func (hm *HasMany[C]) ProxyName() string {
	if hm.proxy == "" {
		return ""
	}
	return hm.proxy + "s"
}

func (hm *HasMany[C]) checkOwner(owner Model) error {
	if isNil(owner) {
		return &AssignRejectedError{Attribute: hm.name, Want: hm.ownerTag, Got: ""}
	}
	if !isPointerTo(owner, hm.owner.rtype) {
		return &TypeMismatchError{Attribute: hm.name, Want: hm.ownerTag, Got: TagOf(owner)}
	}
	return nil
}

func isPointerTo(v any, rt reflect.Type) bool {
	t := reflect.TypeOf(v)
	return t != nil && t.Kind() == reflect.Pointer && t.Elem() == rt
}

// Append adds child to owner's collection and stamps the child's
// discriminator pair with the owner tag and id. A child linked to another
// owner through the same prefix is detached from that owner first.
// Appending a child that is already in the collection only re-stamps it.
func (hm *HasMany[C]) Append(owner Model, child *C) error {
	if err := hm.checkOwner(owner); err != nil {
		return err
	}
	if child == nil {
		return &AssignRejectedError{Attribute: hm.name, Want: hm.child.Tag(), Got: ""}
	}

	hm.child.c.detach(hm.child.model(child), hm.prefix, owner)

	hm.stamp(owner, child)

	e := owner.polyEntity()
	items := e.items(hm.name)
	if !slices.Contains(items, any(child)) {
		e.setItems(hm.name, append(items, any(child)))
	}
	hm.owner.reg.metrics.appended(hm.name)
	return nil
}

func (hm *HasMany[C]) stamp(owner Model, child *C) {
	id := owner.PrimaryKey()
	rv := reflect.ValueOf(child).Elem()
	hm.typeCol.set(rv, hm.ownerTag)
	hm.idCol.set(rv, id)
	hm.child.model(child).polyEntity().setRef(slotName(hm.backref), owner, id)
}

// Remove takes child out of owner's in-memory collection. The child's
// discriminator columns are left as they are.
func (hm *HasMany[C]) Remove(owner Model, child *C) error {
	if err := hm.checkOwner(owner); err != nil {
		return err
	}
	e := owner.polyEntity()
	items := e.items(hm.name)
	if i := slices.Index(items, any(child)); i >= 0 {
		e.setItems(hm.name, slices.Delete(slices.Clone(items), i, i+1))
	}
	return nil
}

// Items returns owner's in-memory collection in append order.
func (hm *HasMany[C]) Items(owner Model) []*C {
	items := owner.polyEntity().items(hm.name)
	out := make([]*C, 0, len(items))
	for _, it := range items {
		out = append(out, it.(*C)) //nolint:forcetypeassert // only *C is stored under this name
	}
	return out
}

// Sync re-stamps every child in owner's collection with the owner's current
// id. Call it after the owner's primary key changed, e.g. after insert.
func (hm *HasMany[C]) Sync(owner Model) error {
	if err := hm.checkOwner(owner); err != nil {
		return err
	}
	for _, c := range hm.Items(owner) {
		hm.stamp(owner, c)
	}
	return nil
}

// ProxyValues returns, for each child in owner's collection, the value of
// the proxied child column. It returns nil when the relation has no proxy.
func (hm *HasMany[C]) ProxyValues(owner Model) []any {
	if hm.proxyIndex == nil {
		return nil
	}
	items := hm.Items(owner)
	out := make([]any, len(items))
	for i, c := range items {
		out[i] = reflect.ValueOf(c).Elem().FieldByIndex(hm.proxyIndex).Interface()
	}
	return out
}

// JoinConfig describes the polymorphic join from the owner table to the
// child table, for orm.Query.RegisterJoin.
func (hm *HasMany[C]) JoinConfig() orm.JoinConfig {
	pk, _ := hm.owner.schema.PrimaryKey()
	return orm.JoinConfig{
		TargetTable:  hm.child.c.schema.Table,
		TargetColumn: hm.idCol.name,
		SourceTable:  hm.owner.schema.Table,
		SourceColumn: pk.Name,
		TypeColumn:   hm.typeCol.name,
		TypeValue:    hm.ownerTag,
	}
}

// Load reads owner's children from the database and replaces the in-memory
// collection with them. Extra scopes narrow or order the query; rows are
// ordered by primary key after any scope ordering.
func (hm *HasMany[C]) Load(ctx context.Context, db orm.Querier, owner Model, scopes ...scope.Scope) ([]*C, error) {
	if err := hm.checkOwner(owner); err != nil {
		return nil, err
	}
	rows, err := hm.query(ctx, db, scopes, scope.Discriminator{Prefix: hm.prefix}.Owner(hm.ownerTag, owner.PrimaryKey()))
	if err != nil {
		return nil, err
	}
	items := make([]any, len(rows))
	for i, c := range rows {
		hm.child.model(c).polyEntity().setRef(slotName(hm.backref), owner, owner.PrimaryKey())
		items[i] = c
	}
	owner.polyEntity().setItems(hm.name, items)
	return rows, nil
}

// Preload loads the children of every owner with one query and replaces
// each owner's in-memory collection.
func (hm *HasMany[C]) Preload(ctx context.Context, db orm.Querier, owners ...Model) error {
	if len(owners) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(owners))
	for _, o := range owners {
		if err := hm.checkOwner(o); err != nil {
			return err
		}
		ids = append(ids, o.PrimaryKey())
	}
	rows, err := hm.query(ctx, db, nil, scope.Discriminator{Prefix: hm.prefix}.Owners(hm.ownerTag, ids))
	if err != nil {
		return err
	}

	grouped := make(map[int64][]any)
	for _, c := range rows {
		id, _ := hm.idCol.get(reflect.ValueOf(c).Elem())
		grouped[id] = append(grouped[id], c)
	}
	for _, o := range owners {
		items := grouped[o.PrimaryKey()]
		for _, it := range items {
			hm.child.model(it.(*C)).polyEntity().setRef(slotName(hm.backref), o, o.PrimaryKey()) //nolint:forcetypeassert // rows are *C
		}
		o.polyEntity().setItems(hm.name, items)
	}
	return nil
}

func (hm *HasMany[C]) query(ctx context.Context, db orm.Querier, scopes []scope.Scope, where scope.Scope) ([]*C, error) {
	q, err := orm.NewModelQuery[C](db)
	if err != nil {
		return nil, err
	}
	q = q.Scopes(where).Scopes(scopes...)
	if pk, ok := hm.child.c.schema.PrimaryKey(); ok {
		q = q.OrderBy(pk.Name)
	}
	rows, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("poly: load %s.%s: %w", hm.owner.name(), hm.name, err)
	}
	out := make([]*C, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

// Attach registers hm on an owner query: Join(hm.Name()) joins the child
// table on the discriminator pair and Preload(hm.Name()) fills each
// result's collection.
func Attach[O any, C any](q *orm.Query[O], hm *HasMany[C]) error {
	if reflect.TypeFor[O]() != hm.owner.rtype {
		return configErrorf("%s is not a query on %s", reflect.TypeFor[O](), hm.owner.name())
	}
	q.RegisterJoin(hm.name, hm.JoinConfig())
	q.RegisterPreloader(hm.name, func(ctx context.Context, db orm.Querier, results []O) error {
		owners := make([]Model, len(results))
		for i := range results {
			owners[i] = any(&results[i]).(Model) //nolint:forcetypeassert // owner types are Models
		}
		return hm.Preload(ctx, db, owners...)
	})
	return nil
}

// backref is the single-valued inverse of a HasMany: child.<prefix>__<tag>.
// It joins on the id column alone; the type tag is checked by PolyField.
type backref[C any] struct {
	hm *HasMany[C]
}

func (b *backref[C]) resolveAny(ctx context.Context, m Model) (Identifier, error) {
	hm := b.hm
	rv := reflect.ValueOf(m).Elem()
	id, ok := hm.idCol.get(rv)
	if !ok {
		return nil, &MissingReferenceError{Type: hm.child.Name(), Column: hm.idCol.name}
	}

	slot := slotName(hm.backref)
	metrics := hm.owner.reg.metrics
	e := m.polyEntity()
	if c, ok := e.ref(slot); ok && c.obj.PrimaryKey() == id {
		metrics.hit(hm.backref)
		return c.obj, nil
	}
	if hm.owner.find == nil {
		return nil, fmt.Errorf("poly: resolve %s: %s: %w", hm.backref, hm.owner.name(), ErrNoFinder)
	}
	metrics.lookup(hm.backref)
	obj, err := hm.owner.find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("poly: resolve %s(%d): %w", hm.backref, id, err)
	}
	e.setRef(slot, obj, id)
	return obj, nil
}

func (b *backref[C]) assignAny(m Model, v any) error {
	hm := b.hm
	owner, ok := v.(Model)
	if !ok || isNil(v) || !isPointerTo(v, hm.owner.rtype) {
		return hm.child.c.reject(hm.backref, hm.ownerTag, TagOf(v))
	}
	return hm.Append(owner, any(m).(*C)) //nolint:forcetypeassert // backrefs are installed on *C only
}

// detach unlinks m from every owner it is currently attached to through
// prefix, other than keep. keep may be nil.
func (c *typeCore) detach(m Model, prefix string, keep Identifier) {
	for _, b := range c.backings {
		if br, ok := b.(unlinker); ok {
			br.unlink(m, prefix, keep)
		}
	}
}

type unlinker interface {
	unlink(m Model, prefix string, keep Identifier)
}

func (b *backref[C]) unlink(m Model, prefix string, keep Identifier) {
	hm := b.hm
	if hm.prefix != prefix {
		return
	}
	slot := slotName(hm.backref)
	e := m.polyEntity()
	c, ok := e.ref(slot)
	if !ok || (keep != nil && c.obj == keep) {
		return
	}
	if owner, ok := c.obj.(Model); ok {
		_ = hm.Remove(owner, any(m).(*C)) //nolint:forcetypeassert // backrefs are installed on *C only
	}
	e.dropRef(slot)
}
