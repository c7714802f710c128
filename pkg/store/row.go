package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dan-solli/treepath/pkg/hierarchy"
	"github.com/dan-solli/treepath/pkg/pathcodec"
)

// Row is the concrete record implementation backed by a Store. The three
// derived hierarchy fields are unexported on purpose: they are computed by
// the update protocol and readable through accessors, never set by callers.
//
// Associations are named references to other rows. Reassigning one in memory
// (SetRelated) is visible to parent resolution immediately; the stored
// snapshot only moves forward on Save, which is what change detection
// compares against.
type Row struct {
	Type      string                 `json:"type"`
	ID        string                 `json:"id"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`

	parentRef     *pathcodec.Ref
	rootRef       *pathcodec.Ref
	ancestorsPath string

	assocs    map[string]pathcodec.Ref
	stored    map[string]pathcodec.Ref
	persisted bool

	finder hierarchy.Finder
	reg    *hierarchy.Registry
}

// Interface check.
var _ hierarchy.Record = (*Row)(nil)

// NewRow creates an unsaved row of the given type, bound to a store and
// registry so association following works before the first save.
func NewRow(typeName string, reg *hierarchy.Registry, finder hierarchy.Finder) *Row {
	return &Row{
		Type:   typeName,
		assocs: make(map[string]pathcodec.Ref),
		reg:    reg,
		finder: finder,
	}
}

// TypeName returns the row's type tag.
func (r *Row) TypeName() string { return r.Type }

// RecordID returns the storage identifier, empty until first save.
func (r *Row) RecordID() string { return r.ID }

// IsNew reports whether the row has never been saved.
func (r *Row) IsNew() bool { return !r.persisted }

// ParentRef returns the persisted-protocol parent reference.
func (r *Row) ParentRef() *pathcodec.Ref { return r.parentRef }

// SetParentRef records the derived parent reference. Part of the update
// protocol; not for general use.
func (r *Row) SetParentRef(ref *pathcodec.Ref) {
	r.parentRef = copyRef(ref)
}

// RootRef returns the derived root reference, nil when the row is a root.
func (r *Row) RootRef() *pathcodec.Ref { return r.rootRef }

// SetRootRef records the derived root reference.
func (r *Row) SetRootRef(ref *pathcodec.Ref) {
	r.rootRef = copyRef(ref)
}

// AncestorsPath returns the encoded ancestor token sequence, empty for roots
// and unsaved rows.
func (r *Row) AncestorsPath() string { return r.ancestorsPath }

// SetAncestorsPath records the derived ancestors path.
func (r *Row) SetAncestorsPath(path string) { r.ancestorsPath = path }

// SetRelated assigns a named association in memory. Passing nil removes the
// association. The persisted snapshot is untouched until the next save.
func (r *Row) SetRelated(name string, ref *pathcodec.Ref) {
	if r.assocs == nil {
		r.assocs = make(map[string]pathcodec.Ref)
	}
	if ref == nil {
		delete(r.assocs, name)
		return
	}
	r.assocs[name] = *ref
}

// Related follows a named association to a single row, reflecting the
// current in-memory value. Returns (nil, nil) when the association is unset
// or its target no longer exists.
func (r *Row) Related(ctx context.Context, name string) (hierarchy.Record, error) {
	ref, ok := r.assocs[name]
	if !ok {
		return nil, nil
	}
	if r.finder == nil {
		return nil, fmt.Errorf("row %s is not bound to a store", r.Type)
	}
	return r.finder.Get(ctx, ref.Type, ref.ID)
}

// RelatedAll follows a named collection association declared in the type's
// child association map. Unsaved rows have no children to find.
func (r *Row) RelatedAll(ctx context.Context, name string) ([]hierarchy.Record, error) {
	if r.ID == "" {
		return nil, nil
	}
	if r.finder == nil || r.reg == nil {
		return nil, fmt.Errorf("row %s is not bound to a store", r.Type)
	}
	cfg, ok := r.reg.Lookup(r.Type)
	if !ok {
		return nil, nil
	}
	for _, assoc := range cfg.Children {
		if assoc.Name != name {
			continue
		}
		return r.finder.Select(ctx, hierarchy.Query{
			Type: assoc.TargetType,
			Field: &hierarchy.FieldRef{
				Name: assoc.ForeignField,
				Ref:  pathcodec.Ref{Type: r.Type, ID: r.ID},
			},
		})
	}
	return nil, nil
}

// RelatedRef returns the current in-memory value of a named association.
func (r *Row) RelatedRef(name string) *pathcodec.Ref {
	if ref, ok := r.assocs[name]; ok {
		out := ref
		return &out
	}
	return nil
}

// StoredRelatedRef returns the association value as of the last save.
func (r *Row) StoredRelatedRef(name string) *pathcodec.Ref {
	if ref, ok := r.stored[name]; ok {
		out := ref
		return &out
	}
	return nil
}

// markPersisted flips the row to persisted state and snapshots the current
// associations as the new stored baseline. Stores call this after a
// successful write.
func (r *Row) markPersisted(reg *hierarchy.Registry, finder hierarchy.Finder) {
	r.persisted = true
	r.reg = reg
	r.finder = finder
	r.stored = cloneRefs(r.assocs)
}

// clone returns an independent copy of the row bound to the same store.
// Backends hand out clones so callers cannot mutate stored state in place.
func (r *Row) clone() *Row {
	out := &Row{
		Type:          r.Type,
		ID:            r.ID,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		parentRef:     copyRef(r.parentRef),
		rootRef:       copyRef(r.rootRef),
		ancestorsPath: r.ancestorsPath,
		assocs:        cloneRefs(r.assocs),
		stored:        cloneRefs(r.stored),
		persisted:     r.persisted,
		finder:        r.finder,
		reg:           r.reg,
	}
	if r.Attrs != nil {
		out.Attrs = make(map[string]interface{}, len(r.Attrs))
		for k, v := range r.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}

func copyRef(ref *pathcodec.Ref) *pathcodec.Ref {
	if ref == nil {
		return nil
	}
	out := *ref
	return &out
}

func cloneRefs(in map[string]pathcodec.Ref) map[string]pathcodec.Ref {
	out := make(map[string]pathcodec.Ref, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
