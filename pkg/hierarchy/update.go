package hierarchy

import (
	"context"
	"fmt"
)

// Updater runs the three-stage derived-field protocol on a record before it
// is persisted. The stages run in strict order because each depends on the
// previous one: parent reference, then root reference from the parent's root,
// then ancestors path from the parent's path plus the parent's own token.
//
// The updater only touches the record handed to it. Re-parenting a record
// does not cascade to the paths already stored on its descendants; those stay
// stale until each descendant is saved again. Refresh exists for bulk repair
// walks that want to force that.
type Updater struct {
	reg *Registry
}

// NewUpdater creates an updater over the given registry.
func NewUpdater(reg *Registry) *Updater {
	return &Updater{reg: reg}
}

// Apply recomputes the record's derived fields. Parent and root are set
// before every persist; the ancestors path is computed on first insert and
// recomputed on update only when the effective parent changed since the last
// persisted state. Applying twice without an intervening parent change leaves
// all three fields identical.
//
// A stage is a no-op when the record's type does not declare its field.
func (u *Updater) Apply(ctx context.Context, rec Record) error {
	return u.apply(ctx, rec, false)
}

// Refresh runs all three stages unconditionally, bypassing the change gate.
// Bulk subtree repair uses this: a descendant's own parent is unchanged after
// a re-parent higher up, but the fields derived from that parent are not.
func (u *Updater) Refresh(ctx context.Context, rec Record) error {
	return u.apply(ctx, rec, true)
}

func (u *Updater) apply(ctx context.Context, rec Record, force bool) error {
	cfg, ok := u.reg.Lookup(rec.TypeName())
	if !ok {
		return fmt.Errorf("%w: %s", ErrTypeNotRegistered, rec.TypeName())
	}

	// The path gate reads the stored association state, so it must be
	// decided before stage 1 overwrites anything.
	recomputePath := force || rec.IsNew() || ParentChanged(u.reg, rec)

	parent, err := ResolveParent(ctx, u.reg, rec)
	if err != nil {
		return err
	}

	u.setParent(cfg, rec, parent)
	u.setRoot(cfg, rec, parent)
	if recomputePath {
		u.setPath(cfg, rec, parent)
	}
	return nil
}

// setParent is stage 1: record the resolved parent, clearing the field when
// there is none. Re-parenting replaces, never appends.
func (u *Updater) setParent(cfg *TypeConfig, rec Record, parent Record) {
	if cfg.SkipParentField {
		return
	}
	rec.SetParentRef(RefOf(parent))
}

// setRoot is stage 2: the record's root is its parent's root, unless the
// parent is itself a root, in which case the parent is the root. Roots keep
// the field unset rather than self-referencing.
func (u *Updater) setRoot(cfg *TypeConfig, rec Record, parent Record) {
	if cfg.SkipRootField {
		return
	}
	if parent == nil {
		rec.SetRootRef(nil)
		return
	}
	if root := parent.RootRef(); root != nil {
		ref := *root
		rec.SetRootRef(&ref)
		return
	}
	rec.SetRootRef(RefOf(parent))
}

// setPath is stage 3: rebuild the ancestors path from the parent's own,
// already-correct fields. The parent's path plus the parent's token is by
// construction the full ancestor sequence for this record.
func (u *Updater) setPath(cfg *TypeConfig, rec Record, parent Record) {
	if cfg.SkipPathField {
		return
	}
	if parent == nil {
		rec.SetAncestorsPath("")
		return
	}
	parentCfg, ok := u.reg.Lookup(parent.TypeName())
	if !ok || parentCfg.SkipPathField {
		// A parent that carries no path cannot anchor one.
		rec.SetAncestorsPath("")
		return
	}
	codec := u.reg.CodecFor(rec.TypeName())
	rec.SetAncestorsPath(codec.Append(parent.AncestorsPath(), *RefOf(parent)))
}
