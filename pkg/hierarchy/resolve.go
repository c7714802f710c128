package hierarchy

import "context"

// ResolveParent determines the current parent of a record from its type's
// parent source. Returns (nil, nil) for root-capable types, for records whose
// selector currently names no field, and for dangling or unsaved parents
// (a parent without an id cannot contribute a token).
//
// Resolution follows the record's in-memory association state, so a parent
// reassigned but not yet persisted resolves to the new target. Computed
// selectors run fresh on every call.
func ResolveParent(ctx context.Context, reg *Registry, rec Record) (Record, error) {
	cfg, ok := reg.Lookup(rec.TypeName())
	if !ok || cfg.Parent.IsNone() {
		return nil, nil
	}

	field := cfg.Parent.FieldFor(rec)
	if field == "" {
		return nil, nil
	}

	parent, err := rec.Related(ctx, field)
	if err != nil {
		return nil, err
	}
	if parent == nil || parent.RecordID() == "" {
		return nil, nil
	}
	return parent, nil
}

// ParentChanged reports whether the record's effective parent differs from
// its last persisted value. It compares the identifier portion of the parent
// association, which is what a re-parent changes. Types with no parent source
// never change parent through this mechanism.
//
// The result gates only the path recompute on update; inserts always compute
// the path.
func ParentChanged(reg *Registry, rec Record) bool {
	cfg, ok := reg.Lookup(rec.TypeName())
	if !ok || cfg.Parent.IsNone() {
		return false
	}

	field := cfg.Parent.FieldFor(rec)
	if field == "" {
		// The selector currently names no parent; changed iff a parent
		// was on record at the last persist.
		return rec.ParentRef() != nil
	}

	cur := rec.RelatedRef(field)
	old := rec.StoredRelatedRef(field)
	switch {
	case cur == nil && old == nil:
		return false
	case cur == nil || old == nil:
		return true
	default:
		return cur.ID != old.ID || cur.Type != old.Type
	}
}
