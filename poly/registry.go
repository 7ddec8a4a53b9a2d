package poly

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/mickamy/polyorm/orm"
)

// Registry holds the registered model types and the association
// descriptors they include. Registration and Wire happen once at start-up;
// afterwards the registry is read-only.
type Registry struct {
	logger  *slog.Logger
	metrics *Metrics

	types   map[reflect.Type]*typeCore
	byName  map[string]*typeCore
	byTag   map[string]*typeCore
	pending []inclusion
}

type inclusion struct {
	owner *typeCore
	base  *Base
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for rejected assignments and wiring.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics enables reference and collection counters.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger: slog.Default(),
		types:  make(map[reflect.Type]*typeCore),
		byName: make(map[string]*typeCore),
		byTag:  make(map[string]*typeCore),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TypeHandle is implemented by *Type. It lets association declarations refer
// to registered types without type parameters.
type TypeHandle interface {
	core() *typeCore
	materialize(spec Spec, owner *typeCore) (undo func(), err error)
}

// typeCore is the type-erased part of a registered model type.
type typeCore struct {
	reg    *Registry
	rtype  reflect.Type
	schema *orm.Schema
	tag    string
	handle TypeHandle
	find   func(ctx context.Context, id int64) (Identifier, error)

	// child side: accessors addressed as "<prefix>__<tag>"
	backings map[string]backing
	// every assignable pseudo-attribute, for Construct
	attrs map[string]attribute
	// owner side: collection name → *HasMany[C]
	collections map[string]any
}

// backing is an accessor a PolyField can delegate to.
type backing interface {
	resolveAny(ctx context.Context, m Model) (Identifier, error)
	assignAny(m Model, v any) error
}

// attribute assigns a value through a named accessor.
type attribute func(m Model, v any) error

func (c *typeCore) name() string { return c.schema.Name }

func (c *typeCore) addAttribute(name string, a attribute) error {
	if c.schema.Has(name) {
		return configErrorf("%s: attribute %q collides with a column", c.name(), name)
	}
	if _, dup := c.attrs[name]; dup {
		return configErrorf("%s: attribute %q is already defined", c.name(), name)
	}
	c.attrs[name] = a
	return nil
}

// reject records a rejected assignment to attr and returns the error that
// reports it.
func (c *typeCore) reject(attr, want, got string) error {
	err := &AssignRejectedError{Attribute: attr, Want: want, Got: got}
	c.reg.metrics.reject(attr)
	c.reg.logger.Error("rejected polymorphic assignment",
		slog.String("type", c.name()),
		slog.String("attribute", attr),
		slog.Any("error", err),
	)
	return err
}

func (c *typeCore) addBacking(name string, b backing) error {
	if _, dup := c.backings[name]; dup {
		return configErrorf("%s: accessor %q is already defined", c.name(), name)
	}
	c.backings[name] = b
	return nil
}

// Type is a model type E registered on a Registry.
type Type[E any] struct {
	c *typeCore
}

// TypeOption configures a registered type.
type TypeOption[E any] func(*Type[E])

// WithFinder makes instances of E resolvable by id, which owners need so
// that children can read them back through their backreferences.
func WithFinder[E any](f Finder[*E]) TypeOption[E] {
	return func(t *Type[E]) {
		t.c.find = func(ctx context.Context, id int64) (Identifier, error) {
			e, err := f.Find(ctx, id)
			if err != nil {
				return nil, err //nolint:wrapcheck // wrapped by the caller
			}
			return any(e).(Identifier), nil //nolint:forcetypeassert // *E is a Model
		}
	}
}

// WithTag overrides the type tag written to discriminator columns.
func WithTag[E any](tag string) TypeOption[E] {
	return func(t *Type[E]) { t.c.tag = tag }
}

// Register adds E to reg. *E must implement Model (embed Entity and define
// PrimaryKey) and E must have a valid orm.Schema.
func Register[E any](reg *Registry, opts ...TypeOption[E]) (*Type[E], error) {
	rt := reflect.TypeFor[E]()
	if _, ok := any((*E)(nil)).(Model); !ok {
		return nil, configErrorf("*%s does not implement poly.Model (embed poly.Entity and define PrimaryKey)", rt)
	}
	if _, dup := reg.types[rt]; dup {
		return nil, configErrorf("%s is already registered", rt)
	}
	s, err := orm.SchemaOf(rt)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	t := &Type[E]{c: &typeCore{
		reg:         reg,
		rtype:       rt,
		schema:      s,
		tag:         typeTag(rt),
		backings:    make(map[string]backing),
		attrs:       make(map[string]attribute),
		collections: make(map[string]any),
	}}
	t.c.handle = t
	for _, opt := range opts {
		opt(t)
	}
	if t.c.tag == "" {
		return nil, configErrorf("%s has an empty type tag", rt)
	}
	if other, dup := reg.byName[s.Name]; dup {
		return nil, configErrorf("type name %s is already used by %s", s.Name, other.rtype)
	}
	if other, dup := reg.byTag[t.c.tag]; dup {
		return nil, configErrorf("tag %q is already used by %s", t.c.tag, other.name())
	}

	reg.types[rt] = t.c
	reg.byName[s.Name] = t.c
	reg.byTag[t.c.tag] = t.c
	return t, nil
}

// Lookup returns the registered type E.
func Lookup[E any](reg *Registry) (*Type[E], bool) {
	c, ok := reg.types[reflect.TypeFor[E]()]
	if !ok {
		return nil, false
	}
	return &Type[E]{c: c}, true
}

// Name returns the Go type name, e.g. "Vehicle".
func (t *Type[E]) Name() string { return t.c.name() }

// Tag returns the type tag, e.g. "local_dealer".
func (t *Type[E]) Tag() string { return t.c.tag }

// Schema returns the column metadata of E.
func (t *Type[E]) Schema() *orm.Schema { return t.c.schema }

func (t *Type[E]) core() *typeCore { return t.c }

func (t *Type[E]) model(e *E) Model {
	return any(e).(Model) //nolint:forcetypeassert // checked in Register
}

// Include records that owner opts in to the associations of every base.
// The associations are installed by the next Wire.
func (r *Registry) Include(owner TypeHandle, bases ...*Base) error {
	c := owner.core()
	if c.reg != r {
		return configErrorf("%s is registered on another registry", c.name())
	}
	for _, b := range bases {
		if b == nil {
			return configErrorf("%s: nil base", c.name())
		}
		for _, spec := range b.specs {
			if spec.Child.core().reg != r {
				return configErrorf("%s: child %s is registered on another registry", c.name(), spec.Child.core().name())
			}
		}
		r.pending = append(r.pending, inclusion{owner: c, base: b})
	}
	return nil
}

// Wire installs every pending inclusion, in the order they were included.
// For each owner and relation it materializes the owner-side collection,
// the child-side backreference and the append hook. Wiring again only
// installs inclusions added since the last call.
//
// An inclusion is installed whole or not at all: when one of its relations
// fails, the relations already installed for it are removed, the error is
// returned and the inclusions after it stay pending.
func (r *Registry) Wire() error {
	pending := r.pending
	r.pending = nil
	for i, inc := range pending {
		if err := inc.install(); err != nil {
			r.pending = append(r.pending, pending[i+1:]...)
			return err
		}
	}
	return nil
}

func (inc inclusion) install() error {
	undos := make([]func(), 0, len(inc.base.specs))
	for _, spec := range inc.base.specs {
		undo, err := spec.Child.materialize(spec, inc.owner)
		if err != nil {
			for j := len(undos) - 1; j >= 0; j-- {
				undos[j]()
			}
			return err
		}
		undos = append(undos, undo)
	}
	return nil
}
