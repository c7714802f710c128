package hierarchy_test

import (
	"context"
	"testing"

	"github.com/dan-solli/treepath/pkg/hierarchy"
	"github.com/dan-solli/treepath/pkg/pathcodec"
	"github.com/dan-solli/treepath/pkg/store"
)

// The test hierarchy mirrors a small project tracker:
//
//	Project (root) -> Task -> Subtask
//	Comment hangs off a Task, or off a Subtask when one is set
//	(a computed parent source).
func testRegistry(t *testing.T, extra ...hierarchy.TypeConfig) *hierarchy.Registry {
	t.Helper()
	configs := []hierarchy.TypeConfig{
		{
			Name: "Project",
			Children: []hierarchy.ChildAssociation{
				{Name: "tasks", TargetType: "Task", ForeignField: "project"},
			},
		},
		{
			Name:   "Task",
			Parent: hierarchy.FixedParent("project"),
			Children: []hierarchy.ChildAssociation{
				{Name: "subtasks", TargetType: "Subtask", ForeignField: "task"},
				{Name: "comments", TargetType: "Comment", ForeignField: "task"},
			},
		},
		{
			Name:   "Subtask",
			Parent: hierarchy.FixedParent("task"),
			Children: []hierarchy.ChildAssociation{
				{Name: "comments", TargetType: "Comment", ForeignField: "subtask"},
			},
		},
		{
			Name: "Comment",
			Parent: hierarchy.ComputedParent(func(rec hierarchy.Record) string {
				if rec.RelatedRef("subtask") != nil {
					return "subtask"
				}
				return "task"
			}),
		},
	}
	configs = append(configs, extra...)

	reg, err := hierarchy.NewRegistry(configs...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return reg
}

type world struct {
	reg       *hierarchy.Registry
	store     *store.MemoryStore
	updater   *hierarchy.Updater
	traverser *hierarchy.Traverser
}

func newWorld(t *testing.T, extra ...hierarchy.TypeConfig) *world {
	t.Helper()
	reg := testRegistry(t, extra...)
	st := store.NewMemoryStore(reg)
	return &world{
		reg:       reg,
		store:     st,
		updater:   hierarchy.NewUpdater(reg),
		traverser: hierarchy.NewTraverser(reg, st),
	}
}

// create builds, updates and saves a row with the given associations.
func (w *world) create(t *testing.T, typeName string, assocs map[string]*store.Row) *store.Row {
	t.Helper()
	row := store.NewRow(typeName, w.reg, w.store)
	for name, target := range assocs {
		row.SetRelated(name, &pathcodec.Ref{Type: target.Type, ID: target.ID})
	}
	w.save(t, row)
	return row
}

// createID is create with a caller-chosen id, for tests asserting on exact
// path strings or prefix boundaries.
func (w *world) createID(t *testing.T, typeName, id string, assocs map[string]*store.Row) *store.Row {
	t.Helper()
	row := store.NewRow(typeName, w.reg, w.store)
	row.ID = id
	for name, target := range assocs {
		row.SetRelated(name, &pathcodec.Ref{Type: target.Type, ID: target.ID})
	}
	w.save(t, row)
	return row
}

func (w *world) save(t *testing.T, row *store.Row) {
	t.Helper()
	ctx := context.Background()
	if err := w.updater.Apply(ctx, row); err != nil {
		t.Fatalf("Apply failed for %s: %v", row.Type, err)
	}
	if err := w.store.Save(ctx, row); err != nil {
		t.Fatalf("Save failed for %s: %v", row.Type, err)
	}
}

func refTo(row *store.Row) *pathcodec.Ref {
	return &pathcodec.Ref{Type: row.Type, ID: row.ID}
}

func ids(recs []hierarchy.Record) map[string]bool {
	out := make(map[string]bool, len(recs))
	for _, rec := range recs {
		out[rec.RecordID()] = true
	}
	return out
}
