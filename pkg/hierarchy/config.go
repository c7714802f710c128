package hierarchy

import (
	"fmt"

	"github.com/dan-solli/treepath/pkg/pathcodec"
)

// ParentSource determines which association of a record names its parent.
// The zero value marks the type as root-capable (no parent).
//
// A computed selector may depend on arbitrary current state of the record
// (e.g. a task that is parented by its sub-parent when one is set). Selectors
// must be pure; they are evaluated fresh on every resolution, never cached.
type ParentSource struct {
	field  string
	choose func(Record) string
}

// FixedParent declares a parent source that always follows the given
// association field.
func FixedParent(field string) ParentSource {
	return ParentSource{field: field}
}

// ComputedParent declares a parent source whose association field is chosen
// per record at resolution time. Returning an empty field name means the
// record currently has no parent.
func ComputedParent(choose func(Record) string) ParentSource {
	return ParentSource{choose: choose}
}

// IsNone reports whether no parent source is configured.
func (p ParentSource) IsNone() bool {
	return p.field == "" && p.choose == nil
}

// FieldFor returns the association field to follow for the given record,
// empty when the record has no parent.
func (p ParentSource) FieldFor(rec Record) string {
	if p.choose != nil {
		return p.choose(rec)
	}
	return p.field
}

// ChildAssociation declares one collection of potential children on a type:
// the association name, the child type, and the field on the child that
// points back at the parent.
type ChildAssociation struct {
	Name         string
	TargetType   string
	ForeignField string
}

// DiscoverFunc is an application-supplied pass that contributes additional
// child associations for a type. It runs once at registry construction and
// its results are merged after the explicit declarations. Naming conventions
// stay in the embedding application, never in the core.
type DiscoverFunc func(typeName string) []ChildAssociation

// TypeConfig is the per-type hierarchy configuration. It is fixed at setup;
// the registry copies what it needs and nothing mutates it afterwards.
type TypeConfig struct {
	// Name is the type tag records of this type report.
	Name string

	// Parent names the association that holds this type's parent. Leave
	// zero for root-capable types.
	Parent ParentSource

	// Children lists the declared child associations.
	Children []ChildAssociation

	// Discover optionally contributes additional child associations,
	// merged after Children. Duplicate association names are dropped.
	Discover DiscoverFunc

	// PathSep and RecordSep override the registry separators for records
	// of this type. Every type in one tree must agree on separators;
	// mixing them breaks path reconstruction.
	PathSep   string
	RecordSep string

	// SkipParentField, SkipRootField and SkipPathField mark derived fields
	// this type does not declare. The corresponding updater stage is a
	// no-op for such types.
	SkipParentField bool
	SkipRootField   bool
	SkipPathField   bool
}

// children returns the declared and discovered associations, deduplicated by
// association name.
func (c *TypeConfig) children() []ChildAssociation {
	if c.Discover == nil {
		return c.Children
	}
	seen := make(map[string]bool, len(c.Children))
	out := make([]ChildAssociation, 0, len(c.Children))
	for _, assoc := range c.Children {
		seen[assoc.Name] = true
		out = append(out, assoc)
	}
	for _, assoc := range c.Discover(c.Name) {
		if !seen[assoc.Name] {
			seen[assoc.Name] = true
			out = append(out, assoc)
		}
	}
	return out
}

// Registry holds the hierarchy configuration for every participating type.
// It is immutable after construction; lookups are safe for concurrent use.
type Registry struct {
	types map[string]*TypeConfig
	codec pathcodec.Codec
}

// NewRegistry builds a registry from per-type configs using the default
// separators for types without overrides.
func NewRegistry(configs ...TypeConfig) (*Registry, error) {
	return NewRegistryWithCodec(pathcodec.Default(), configs...)
}

// NewRegistryWithCodec builds a registry with explicit default separators.
// Separator choices must stay fixed for the lifetime of stored data; changing
// them invalidates every previously written path.
func NewRegistryWithCodec(codec pathcodec.Codec, configs ...TypeConfig) (*Registry, error) {
	if codec.PathSep == "" || codec.RecordSep == "" {
		return nil, fmt.Errorf("registry: separators must be non-empty")
	}
	reg := &Registry{
		types: make(map[string]*TypeConfig, len(configs)),
		codec: codec,
	}
	for i := range configs {
		cfg := configs[i]
		if cfg.Name == "" {
			return nil, fmt.Errorf("registry: type config %d has no name", i)
		}
		if _, dup := reg.types[cfg.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate type %q", cfg.Name)
		}
		// Resolve discovery once so lookups stay pure reads.
		cfg.Children = cfg.children()
		cfg.Discover = nil
		reg.types[cfg.Name] = &cfg
	}
	return reg, nil
}

// Lookup returns the config for a type name without raising on unknown or
// renamed types. Decoded path tokens go through here before any fetch.
func (r *Registry) Lookup(typeName string) (*TypeConfig, bool) {
	cfg, ok := r.types[typeName]
	return cfg, ok
}

// CodecFor returns the codec for records of the given type, falling back to
// the registry default when the type declares no override or is unknown.
func (r *Registry) CodecFor(typeName string) pathcodec.Codec {
	cfg, ok := r.types[typeName]
	if !ok {
		return r.codec
	}
	codec := r.codec
	if cfg.PathSep != "" {
		codec.PathSep = cfg.PathSep
	}
	if cfg.RecordSep != "" {
		codec.RecordSep = cfg.RecordSep
	}
	return codec
}
