package hierarchy

import (
	"context"
	"fmt"

	"github.com/dan-solli/treepath/pkg/pathcodec"
)

// TypeMap groups query results by record type. Downward and lateral queries
// never return a flat mixed collection because different types may live in
// different storage; a caller that wants a flat list constrains the query to
// one type and compacts the result.
type TypeMap map[string][]Record

// Compact collapses the mapping into a single flat collection. It reports
// false when the mapping holds more than one type, in which case the flat
// result would silently mix types.
func (m TypeMap) Compact() ([]Record, bool) {
	if len(m) > 1 {
		return nil, false
	}
	for _, recs := range m {
		return recs, true
	}
	return nil, true
}

// Options control lateral and downward traversal queries.
type Options struct {
	// IncludeSelf adds the queried record itself to the result where its
	// own type is among the selected types.
	IncludeSelf bool

	// Models restricts results to the named types. Nil means every
	// candidate type derived from the association map.
	Models []string

	// OwnTypeOnly restricts results to the record's own type, overriding
	// Models.
	OwnTypeOnly bool
}

// selects reports whether a candidate type passes the Models filter.
func (o Options) selects(rec Record, typeName string) bool {
	if o.OwnTypeOnly {
		return typeName == rec.TypeName()
	}
	if o.Models == nil {
		return true
	}
	for _, name := range o.Models {
		if name == typeName {
			return true
		}
	}
	return false
}

// Traverser answers hierarchy queries from the persisted derived fields plus
// the registry's association map. Read paths favor availability: unsaved
// records and unregistered types yield empty results, never errors, so
// breadcrumb-style call sites stay safe to chain. Storage errors propagate
// unchanged.
type Traverser struct {
	reg    *Registry
	finder Finder
}

// NewTraverser creates a traverser over the given registry and store.
func NewTraverser(reg *Registry, finder Finder) *Traverser {
	return &Traverser{reg: reg, finder: finder}
}

// Ancestors returns the record's ancestors in root-to-parent order, fetched
// by decoding the stored path. Tokens naming unknown types or deleted records
// are skipped. With includeSelf the record itself is appended.
func (t *Traverser) Ancestors(ctx context.Context, rec Record, includeSelf bool) ([]Record, error) {
	out := make([]Record, 0, 4)
	codec := t.reg.CodecFor(rec.TypeName())
	for _, ref := range codec.DecodePath(rec.AncestorsPath()) {
		if _, ok := t.reg.Lookup(ref.Type); !ok {
			continue
		}
		ancestor, err := t.finder.Get(ctx, ref.Type, ref.ID)
		if err != nil {
			return nil, err
		}
		if ancestor != nil {
			out = append(out, ancestor)
		}
	}
	if includeSelf {
		out = append(out, rec)
	}
	return out, nil
}

// AncestorModels returns the distinct sequence of ancestor types in
// root-to-parent order, for schema introspection such as breadcrumb layouts.
func (t *Traverser) AncestorModels(rec Record, includeSelf bool) []string {
	codec := t.reg.CodecFor(rec.TypeName())
	refs := codec.DecodePath(rec.AncestorsPath())
	seen := make(map[string]bool, len(refs)+1)
	out := make([]string, 0, len(refs)+1)
	for _, ref := range refs {
		if _, ok := t.reg.Lookup(ref.Type); !ok {
			continue
		}
		if !seen[ref.Type] {
			seen[ref.Type] = true
			out = append(out, ref.Type)
		}
	}
	if includeSelf && !seen[rec.TypeName()] {
		out = append(out, rec.TypeName())
	}
	return out
}

// Parent returns the record's current parent. It goes through resolution
// rather than the persisted field, so an in-memory re-parent that has not
// been saved yet is already visible.
func (t *Traverser) Parent(ctx context.Context, rec Record) (Record, error) {
	return ResolveParent(ctx, t.reg, rec)
}

// Root returns the record's tree root, or nil when the record is a root.
func (t *Traverser) Root(ctx context.Context, rec Record) (Record, error) {
	ref := rec.RootRef()
	if ref == nil {
		return nil, nil
	}
	if _, ok := t.reg.Lookup(ref.Type); !ok {
		return nil, nil
	}
	return t.finder.Get(ctx, ref.Type, ref.ID)
}

// Siblings returns records sharing this record's parent, grouped by type.
// Candidate types come from the parent type's child associations unless
// Options narrow them. A record with no persisted parent has no siblings.
//
// Asking for all-type siblings under a parent type with no association map is
// not answerable and returns ErrUnsupportedQuery instead of partial data.
func (t *Traverser) Siblings(ctx context.Context, rec Record, opts Options) (TypeMap, error) {
	parentRef := rec.ParentRef()
	if parentRef == nil {
		return TypeMap{}, nil
	}

	var candidates []string
	switch {
	case opts.OwnTypeOnly:
		candidates = []string{rec.TypeName()}
	case opts.Models != nil:
		candidates = opts.Models
	default:
		parentCfg, ok := t.reg.Lookup(parentRef.Type)
		if !ok || len(parentCfg.Children) == 0 {
			return nil, fmt.Errorf("%w: all-type siblings under %s", ErrUnsupportedQuery, parentRef.Type)
		}
		candidates = childTargets(parentCfg)
	}

	out := TypeMap{}
	for _, typeName := range dedupe(candidates) {
		recs, err := t.finder.Select(ctx, Query{Type: typeName, ParentRef: parentRef})
		if err != nil {
			return nil, err
		}
		recs = t.withSelf(rec, typeName, recs, opts.IncludeSelf)
		if len(recs) > 0 {
			out[typeName] = recs
		}
	}
	return out, nil
}

// Children returns the record's direct children, grouped by type, by
// following each child association declared for the record's type. With
// IncludeSelf the record joins the result under its own type when selected.
func (t *Traverser) Children(ctx context.Context, rec Record, opts Options) (TypeMap, error) {
	out := TypeMap{}
	cfg, ok := t.reg.Lookup(rec.TypeName())
	if !ok {
		return out, nil
	}
	for _, assoc := range cfg.Children {
		if !opts.selects(rec, assoc.TargetType) {
			continue
		}
		recs, err := rec.RelatedAll(ctx, assoc.Name)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			out[assoc.TargetType] = Union(out[assoc.TargetType], recs)
		}
	}
	if opts.IncludeSelf && opts.selects(rec, rec.TypeName()) && !rec.IsNew() {
		out[rec.TypeName()] = Union(out[rec.TypeName()], []Record{rec})
	}
	return out, nil
}

// ChildrenModels returns the distinct types reachable in one hop of the
// association map, optionally including the record's own type.
func (t *Traverser) ChildrenModels(rec Record, includeSelf bool) []string {
	var out []string
	if cfg, ok := t.reg.Lookup(rec.TypeName()); ok {
		out = childTargets(cfg)
	}
	if includeSelf {
		out = append([]string{rec.TypeName()}, out...)
	}
	return dedupe(out)
}

// DescendantModels returns every type reachable from the record's type
// through the association map, breadth first. A visited set keys expansion by
// type, so mutually or self-referential child declarations terminate after
// each type is expanded once.
func (t *Traverser) DescendantModels(rec Record, includeSelf bool) []string {
	start := rec.TypeName()
	expanded := make(map[string]bool)
	reachable := make(map[string]bool)
	queue := []string{start}
	var out []string

	for len(queue) > 0 {
		typeName := queue[0]
		queue = queue[1:]
		if expanded[typeName] {
			continue
		}
		expanded[typeName] = true
		cfg, ok := t.reg.Lookup(typeName)
		if !ok {
			continue
		}
		for _, target := range childTargets(cfg) {
			if !reachable[target] {
				reachable[target] = true
				out = append(out, target)
			}
			queue = append(queue, target)
		}
	}

	// A self-referential tree reaches the starting type as a genuine
	// descendant type, in which case it stays regardless of includeSelf.
	if includeSelf && !reachable[start] {
		return append([]string{start}, out...)
	}
	return out
}

// Descendants returns every record below this one, grouped by type. Roots
// query by exact root reference, which is a plain index lookup; non-roots
// fall back to a boundary-safe prefix match on the ancestors path, since no
// single field captures "descends from this specific non-root node".
func (t *Traverser) Descendants(ctx context.Context, rec Record, opts Options) (TypeMap, error) {
	out := TypeMap{}
	if rec.IsNew() || rec.RecordID() == "" {
		return out, nil
	}
	cfg, ok := t.reg.Lookup(rec.TypeName())
	if !ok {
		return out, nil
	}

	selfRef := pathcodec.Ref{Type: rec.TypeName(), ID: rec.RecordID()}
	codec := t.reg.CodecFor(rec.TypeName())
	isRoot := rec.ParentRef() == nil && rec.RootRef() == nil

	var query func(typeName string) Query
	switch {
	case isRoot:
		query = func(typeName string) Query {
			return Query{Type: typeName, RootRef: &selfRef}
		}
	case cfg.SkipPathField:
		// Without a stored path there is no full path to prefix on.
		return out, nil
	default:
		fullPath := codec.Append(rec.AncestorsPath(), selfRef)
		query = func(typeName string) Query {
			return Query{Type: typeName, PathPrefix: fullPath, PathSep: codec.PathSep}
		}
	}

	candidates := opts.Models
	if opts.OwnTypeOnly {
		candidates = []string{rec.TypeName()}
	} else if candidates == nil {
		candidates = t.DescendantModels(rec, true)
	}

	for _, typeName := range dedupe(candidates) {
		recs, err := t.finder.Select(ctx, query(typeName))
		if err != nil {
			return nil, err
		}
		recs = t.withSelf(rec, typeName, recs, opts.IncludeSelf)
		if len(recs) > 0 {
			out[typeName] = recs
		}
	}
	return out, nil
}

// withSelf applies the include-self rule for one result type: the record is
// removed from matches of its own type unless asked for, and unioned in when
// asked for but absent (descendant queries never match the record itself).
func (t *Traverser) withSelf(rec Record, typeName string, recs []Record, includeSelf bool) []Record {
	if typeName != rec.TypeName() || rec.RecordID() == "" {
		return recs
	}
	if includeSelf {
		return Union(recs, []Record{rec})
	}
	return Difference(recs, []Record{rec})
}

func childTargets(cfg *TypeConfig) []string {
	out := make([]string, 0, len(cfg.Children))
	for _, assoc := range cfg.Children {
		out = append(out, assoc.TargetType)
	}
	return dedupe(out)
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
