package poly

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"
)

// Manifest declares association descriptors and the owners that include
// them, by registered type name:
//
//	bases:
//	  HasVehicles:
//	    child: Vehicle
//	    prefix: source
//	  HasRecords:
//	    relations:
//	      - {child: Records, prefix: buyer}
//	      - {child: Records, prefix: seller}
//	owners:
//	  Org: [HasVehicles, HasRecords]
//	  Dealer: [HasVehicles]
type Manifest struct {
	Bases  map[string]ManifestBase `yaml:"bases"`
	Owners map[string][]string     `yaml:"owners"`
}

// ManifestBase is one descriptor: either the single-relation fields or
// Relations.
type ManifestBase struct {
	ManifestRelation `yaml:",inline"`
	Relations        []ManifestRelation `yaml:"relations"`
}

// ManifestRelation mirrors Spec with the child given by type name.
type ManifestRelation struct {
	Child      string `yaml:"child"`
	Prefix     string `yaml:"prefix"`
	Collection string `yaml:"collection"`
	Proxy      string `yaml:"proxy"`
}

// ParseManifest decodes a YAML manifest. Unknown keys are an error.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("poly: parse manifest: %w", err)
	}
	return &m, nil
}

// LoadManifest parses a manifest, builds its descriptors against the types
// registered on reg and includes them in the listed owners, in owner name
// order. Call Wire afterwards to install them.
func LoadManifest(r io.Reader, reg *Registry) (map[string]*Base, error) {
	m, err := ParseManifest(r)
	if err != nil {
		return nil, err
	}
	return m.Apply(reg)
}

// Apply builds and includes the manifest's descriptors. See LoadManifest.
func (m *Manifest) Apply(reg *Registry) (map[string]*Base, error) {
	bases := make(map[string]*Base, len(m.Bases))
	for name, mb := range m.Bases {
		b, err := mb.build(reg)
		if err != nil {
			return nil, fmt.Errorf("poly: manifest base %s: %w", name, err)
		}
		bases[name] = b
	}

	owners := make([]string, 0, len(m.Owners))
	for name := range m.Owners {
		owners = append(owners, name)
	}
	slices.Sort(owners)

	for _, name := range owners {
		owner, err := reg.handle(name)
		if err != nil {
			return nil, fmt.Errorf("poly: manifest owner: %w", err)
		}
		for _, bn := range m.Owners[name] {
			b, ok := bases[bn]
			if !ok {
				return nil, configErrorf("manifest owner %s: unknown base %s", name, bn)
			}
			if err := reg.Include(owner, b); err != nil {
				return nil, err
			}
		}
	}
	return bases, nil
}

func (mb ManifestBase) build(reg *Registry) (*Base, error) {
	opts := BaseOptions{
		Prefix:     mb.Prefix,
		Collection: mb.Collection,
		Proxy:      mb.Proxy,
	}
	if mb.Child != "" {
		c, err := reg.handle(mb.Child)
		if err != nil {
			return nil, err
		}
		opts.Child = c
	}
	for _, rel := range mb.Relations {
		c, err := reg.handle(rel.Child)
		if err != nil {
			return nil, err
		}
		opts.Relations = append(opts.Relations, Spec{
			Child:      c,
			Prefix:     rel.Prefix,
			Collection: rel.Collection,
			Proxy:      rel.Proxy,
		})
	}
	return NewBase(opts)
}

func (r *Registry) handle(name string) (TypeHandle, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, configErrorf("type %s is not registered", name)
	}
	return c.handle, nil
}
