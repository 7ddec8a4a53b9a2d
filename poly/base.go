package poly

import (
	"github.com/mickamy/polyorm/internal/naming"
	"github.com/mickamy/polyorm/scope"
)

// Spec declares one polymorphic linkage: the child type, the discriminator
// prefix of its <prefix>_type / <prefix>_id columns, and optional owner-side
// names. The owner is bound later, once per owner type that includes the
// Base holding the Spec.
type Spec struct {
	Child  TypeHandle
	Prefix string
	// Collection overrides the owner-side collection name; the default is
	// the underscored child type name plus "s".
	Collection string
	// Proxy names a child column or field exposed through the owner as a
	// "<Proxy>s" collection of values.
	Proxy string
}

// BaseOptions is either a single relation (Child, Prefix, Collection,
// Proxy) or an explicit list of Relations, never both.
type BaseOptions struct {
	Child      TypeHandle
	Prefix     string
	Collection string
	Proxy      string

	Relations []Spec
}

// Base is an immutable association descriptor. Owners opt in with
// Registry.Include; one Base can be included by any number of owner types.
type Base struct {
	name  string
	specs []Spec
}

// NewBase validates opts and returns the descriptor.
func NewBase(opts BaseOptions) (*Base, error) {
	single := opts.Child != nil
	switch {
	case single && len(opts.Relations) > 0:
		return nil, configErrorf("set either Child and Prefix or Relations, not both")
	case !single && len(opts.Relations) == 0:
		return nil, configErrorf("Child and Prefix or Relations must be set")
	}

	specs := opts.Relations
	if single {
		specs = []Spec{{
			Child:      opts.Child,
			Prefix:     opts.Prefix,
			Collection: opts.Collection,
			Proxy:      opts.Proxy,
		}}
	}

	b := &Base{specs: make([]Spec, 0, len(specs))}
	for i, s := range specs {
		if s.Child == nil {
			return nil, configErrorf("relation %d: Child must be set", i)
		}
		if s.Prefix == "" {
			return nil, configErrorf("relation %d: Prefix must be set", i)
		}
		c := s.Child.core()
		if _, err := newTagColumn(c.schema, scope.Discriminator{Prefix: s.Prefix}.TypeColumn()); err != nil {
			return nil, err
		}
		if _, err := newIDColumn(c.schema, scope.Discriminator{Prefix: s.Prefix}.IDColumn()); err != nil {
			return nil, err
		}
		if s.Proxy != "" && proxyIndex(c, s.Proxy) == nil {
			return nil, configErrorf("%s has no column or field %q to proxy", c.name(), s.Proxy)
		}
		b.specs = append(b.specs, s)
	}
	b.name = "Has" + b.specs[0].Child.core().name()
	return b, nil
}

// Name returns the descriptor name, "Has" plus the first child type name.
func (b *Base) Name() string { return b.name }

// Specs returns a copy of the relations held by b.
func (b *Base) Specs() []Spec {
	return append([]Spec(nil), b.specs...)
}

// proxyIndex finds the field a proxy reads: a column name first, then a Go
// field name, then the CamelCase form of a snake_case name (so "nick_name"
// reaches a `db:"-"` NickName field).
func proxyIndex(c *typeCore, name string) []int {
	if col, ok := c.schema.Column(name); ok {
		return col.Index
	}
	for _, field := range []string{name, naming.SnakeToCamel(name)} {
		if f, ok := c.rtype.FieldByName(field); ok && f.IsExported() {
			return f.Index
		}
	}
	return nil
}
