package hierarchy_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/dan-solli/treepath/pkg/hierarchy"
	"github.com/dan-solli/treepath/pkg/store"
)

func TestAncestorsRootToParentOrder(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	project := w.create(t, "Project", nil)
	task := w.create(t, "Task", map[string]*store.Row{"project": project})
	sub := w.create(t, "Subtask", map[string]*store.Row{"task": task})

	got, err := w.traverser.Ancestors(ctx, sub, false)
	if err != nil {
		t.Fatalf("Ancestors failed: %v", err)
	}
	want := []string{project.ID, task.ID}
	if len(got) != len(want) {
		t.Fatalf("ancestors = %d records, want %d", len(got), len(want))
	}
	for i, rec := range got {
		if rec.RecordID() != want[i] {
			t.Errorf("ancestor[%d] = %s, want %s", i, rec.RecordID(), want[i])
		}
	}

	withSelf, err := w.traverser.Ancestors(ctx, sub, true)
	if err != nil {
		t.Fatalf("Ancestors with self failed: %v", err)
	}
	if len(withSelf) != len(got)+1 {
		t.Fatalf("with self = %d records, want %d", len(withSelf), len(got)+1)
	}
	if last := withSelf[len(withSelf)-1]; last.RecordID() != sub.ID {
		t.Errorf("last ancestor with self = %s, want the record itself", last.RecordID())
	}
}

func TestAncestorsSkipsDeleted(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	project := w.create(t, "Project", nil)
	task := w.create(t, "Task", map[string]*store.Row{"project": project})
	sub := w.create(t, "Subtask", map[string]*store.Row{"task": task})

	if err := w.store.Delete(ctx, task.Type, task.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := w.traverser.Ancestors(ctx, sub, false)
	if err != nil {
		t.Fatalf("Ancestors failed: %v", err)
	}
	if len(got) != 1 || got[0].RecordID() != project.ID {
		t.Errorf("ancestors after delete = %v, want just the project", got)
	}
}

func TestAncestorModels(t *testing.T) {
	w := newWorld(t)
	project := w.create(t, "Project", nil)
	task := w.create(t, "Task", map[string]*store.Row{"project": project})
	sub := w.create(t, "Subtask", map[string]*store.Row{"task": task})

	if got, want := w.traverser.AncestorModels(sub, false), []string{"Project", "Task"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AncestorModels = %v, want %v", got, want)
	}
	if got, want := w.traverser.AncestorModels(sub, true), []string{"Project", "Task", "Subtask"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AncestorModels with self = %v, want %v", got, want)
	}
}

func TestParentAndRoot(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	project := w.create(t, "Project", nil)
	task := w.create(t, "Task", map[string]*store.Row{"project": project})
	sub := w.create(t, "Subtask", map[string]*store.Row{"task": task})

	parent, err := w.traverser.Parent(ctx, sub)
	if err != nil {
		t.Fatalf("Parent failed: %v", err)
	}
	if parent == nil || parent.RecordID() != task.ID {
		t.Errorf("parent = %v, want task %s", parent, task.ID)
	}

	root, err := w.traverser.Root(ctx, sub)
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	if root == nil || root.RecordID() != project.ID {
		t.Errorf("root = %v, want project %s", root, project.ID)
	}

	selfRoot, err := w.traverser.Root(ctx, project)
	if err != nil {
		t.Fatalf("Root of root failed: %v", err)
	}
	if selfRoot != nil {
		t.Errorf("root of a root = %v, want nil", selfRoot)
	}
}

func TestSiblings(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	project := w.create(t, "Project", nil)
	t1 := w.create(t, "Task", map[string]*store.Row{"project": project})
	t2 := w.create(t, "Task", map[string]*store.Row{"project": project})
	w.create(t, "Task", nil) // different tree, not a sibling

	got, err := w.traverser.Siblings(ctx, t1, hierarchy.Options{OwnTypeOnly: true})
	if err != nil {
		t.Fatalf("Siblings failed: %v", err)
	}
	if want := map[string]bool{t2.ID: true}; !reflect.DeepEqual(ids(got["Task"]), want) {
		t.Errorf("own-type siblings = %v, want only %s", ids(got["Task"]), t2.ID)
	}

	withSelf, err := w.traverser.Siblings(ctx, t1, hierarchy.Options{OwnTypeOnly: true, IncludeSelf: true})
	if err != nil {
		t.Fatalf("Siblings with self failed: %v", err)
	}
	if want := map[string]bool{t1.ID: true, t2.ID: true}; !reflect.DeepEqual(ids(withSelf["Task"]), want) {
		t.Errorf("siblings with self = %v, want %v", ids(withSelf["Task"]), want)
	}
}

func TestSiblingsAcrossTypes(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	project := w.create(t, "Project", nil)
	task := w.create(t, "Task", map[string]*store.Row{"project": project})
	sub := w.create(t, "Subtask", map[string]*store.Row{"task": task})
	comment := w.create(t, "Comment", map[string]*store.Row{"task": task})

	// All types under the shared parent, per the parent's association map.
	got, err := w.traverser.Siblings(ctx, sub, hierarchy.Options{})
	if err != nil {
		t.Fatalf("Siblings failed: %v", err)
	}
	if len(got["Comment"]) != 1 || got["Comment"][0].RecordID() != comment.ID {
		t.Errorf("comment siblings = %v, want %s", ids(got["Comment"]), comment.ID)
	}
	if len(got["Subtask"]) != 0 {
		t.Errorf("subtask siblings = %v, want none without self", ids(got["Subtask"]))
	}

	narrowed, err := w.traverser.Siblings(ctx, sub, hierarchy.Options{Models: []string{"Comment"}})
	if err != nil {
		t.Fatalf("Siblings narrowed failed: %v", err)
	}
	if len(narrowed) != 1 || len(narrowed["Comment"]) != 1 {
		t.Errorf("narrowed siblings = %v, want one comment", narrowed)
	}
}

func TestSiblingsOfRootEmpty(t *testing.T) {
	w := newWorld(t)
	project := w.create(t, "Project", nil)
	got, err := w.traverser.Siblings(context.Background(), project, hierarchy.Options{})
	if err != nil {
		t.Fatalf("Siblings failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("root siblings = %v, want empty", got)
	}
}

func TestSiblingsUnsupportedWithoutAssociationMap(t *testing.T) {
	w := newWorld(t, hierarchy.TypeConfig{
		Name:   "Note",
		Parent: hierarchy.FixedParent("comment"),
	})
	project := w.create(t, "Project", nil)
	task := w.create(t, "Task", map[string]*store.Row{"project": project})
	comment := w.create(t, "Comment", map[string]*store.Row{"task": task})
	note := w.create(t, "Note", map[string]*store.Row{"comment": comment})

	// Comment declares no children, so "all siblings of a note" is not
	// answerable without a type list.
	_, err := w.traverser.Siblings(context.Background(), note, hierarchy.Options{})
	if !errors.Is(err, hierarchy.ErrUnsupportedQuery) {
		t.Fatalf("Siblings error = %v, want ErrUnsupportedQuery", err)
	}

	// Constraining to the own type sidesteps the association map.
	got, err := w.traverser.Siblings(context.Background(), note, hierarchy.Options{OwnTypeOnly: true})
	if err != nil {
		t.Fatalf("own-type Siblings failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("own-type siblings = %v, want empty", got)
	}
}

func TestChildren(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	project := w.create(t, "Project", nil)
	task := w.create(t, "Task", map[string]*store.Row{"project": project})
	sub := w.create(t, "Subtask", map[string]*store.Row{"task": task})
	comment := w.create(t, "Comment", map[string]*store.Row{"task": task})

	got, err := w.traverser.Children(ctx, task, hierarchy.Options{})
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if !ids(got["Subtask"])[sub.ID] || !ids(got["Comment"])[comment.ID] {
		t.Errorf("children = %v, want subtask and comment", got)
	}

	narrowed, err := w.traverser.Children(ctx, task, hierarchy.Options{Models: []string{"Comment"}})
	if err != nil {
		t.Fatalf("Children narrowed failed: %v", err)
	}
	if len(narrowed) != 1 || len(narrowed["Comment"]) != 1 {
		t.Errorf("narrowed children = %v, want one comment", narrowed)
	}

	withSelf, err := w.traverser.Children(ctx, task, hierarchy.Options{IncludeSelf: true})
	if err != nil {
		t.Fatalf("Children with self failed: %v", err)
	}
	if !ids(withSelf["Task"])[task.ID] {
		t.Errorf("children with self = %v, want own record under Task", withSelf)
	}
}

func TestChildrenModels(t *testing.T) {
	w := newWorld(t)
	project := w.create(t, "Project", nil)
	task := w.create(t, "Task", map[string]*store.Row{"project": project})

	if got, want := w.traverser.ChildrenModels(task, false), []string{"Subtask", "Comment"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ChildrenModels = %v, want %v", got, want)
	}
	if got, want := w.traverser.ChildrenModels(task, true), []string{"Task", "Subtask", "Comment"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ChildrenModels with self = %v, want %v", got, want)
	}
}

func TestDescendantModels(t *testing.T) {
	w := newWorld(t)
	project := w.create(t, "Project", nil)

	got := w.traverser.DescendantModels(project, false)
	want := []string{"Task", "Subtask", "Comment"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DescendantModels = %v, want %v", got, want)
	}

	withSelf := w.traverser.DescendantModels(project, true)
	if !reflect.DeepEqual(withSelf, append([]string{"Project"}, want...)) {
		t.Errorf("DescendantModels with self = %v", withSelf)
	}
}

func TestDescendantModelsSelfReferential(t *testing.T) {
	w := newWorld(t, hierarchy.TypeConfig{
		Name:   "Folder",
		Parent: hierarchy.FixedParent("parent"),
		Children: []hierarchy.ChildAssociation{
			{Name: "folders", TargetType: "Folder", ForeignField: "parent"},
		},
	})
	folder := w.create(t, "Folder", nil)

	// The type reaches itself through the association map; expansion must
	// terminate and the type appears once regardless of includeSelf.
	for _, includeSelf := range []bool{false, true} {
		got := w.traverser.DescendantModels(folder, includeSelf)
		if !reflect.DeepEqual(got, []string{"Folder"}) {
			t.Errorf("DescendantModels(includeSelf=%v) = %v, want [Folder]", includeSelf, got)
		}
	}
}

func TestDescendantsOfRoot(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	p1 := w.create(t, "Project", nil)
	p2 := w.create(t, "Project", nil)
	task := w.create(t, "Task", map[string]*store.Row{"project": p1})
	sub := w.create(t, "Subtask", map[string]*store.Row{"task": task})
	other := w.create(t, "Task", map[string]*store.Row{"project": p2})

	got, err := w.traverser.Descendants(ctx, p1, hierarchy.Options{})
	if err != nil {
		t.Fatalf("Descendants failed: %v", err)
	}
	if !ids(got["Task"])[task.ID] || !ids(got["Subtask"])[sub.ID] {
		t.Errorf("descendants = %v, want task and subtask", got)
	}
	if ids(got["Task"])[other.ID] {
		t.Errorf("descendants include %s from another tree", other.ID)
	}
	if len(got["Project"]) != 0 {
		t.Errorf("descendants include the root itself: %v", ids(got["Project"]))
	}
}

func TestDescendantsOfNonRootPrefixBoundary(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	project := w.createID(t, "Project", "p", nil)
	t1 := w.createID(t, "Task", "t1", map[string]*store.Row{"project": project})
	t10 := w.createID(t, "Task", "t10", map[string]*store.Row{"project": project})
	s1 := w.createID(t, "Subtask", "s1", map[string]*store.Row{"task": t1})
	s10 := w.createID(t, "Subtask", "s10", map[string]*store.Row{"task": t10})

	// "Task|t1" must not prefix-match "Task|t10" descendants.
	got, err := w.traverser.Descendants(ctx, t1, hierarchy.Options{})
	if err != nil {
		t.Fatalf("Descendants failed: %v", err)
	}
	if !ids(got["Subtask"])[s1.ID] {
		t.Errorf("descendants = %v, want %s", got, s1.ID)
	}
	if ids(got["Subtask"])[s10.ID] {
		t.Errorf("token boundary leak: descendants of t1 include %s", s10.ID)
	}
}

func TestDescendantsUnsavedEmpty(t *testing.T) {
	w := newWorld(t)
	row := store.NewRow("Project", w.reg, w.store)
	got, err := w.traverser.Descendants(context.Background(), row, hierarchy.Options{})
	if err != nil {
		t.Fatalf("Descendants failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("descendants of unsaved record = %v, want empty", got)
	}
}

func TestCompact(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	project := w.create(t, "Project", nil)
	task := w.create(t, "Task", map[string]*store.Row{"project": project})
	w.create(t, "Subtask", map[string]*store.Row{"task": task})
	w.create(t, "Comment", map[string]*store.Row{"task": task})

	single, err := w.traverser.Descendants(ctx, project, hierarchy.Options{Models: []string{"Task"}})
	if err != nil {
		t.Fatalf("Descendants failed: %v", err)
	}
	flat, ok := single.Compact()
	if !ok || len(flat) != 1 {
		t.Errorf("Compact single-type = (%v, %v), want one record", flat, ok)
	}

	mixed, err := w.traverser.Descendants(ctx, task, hierarchy.Options{})
	if err != nil {
		t.Fatalf("Descendants failed: %v", err)
	}
	if _, ok := mixed.Compact(); ok {
		t.Errorf("Compact of %d types reported ok", len(mixed))
	}

	if flat, ok := (hierarchy.TypeMap{}).Compact(); !ok || flat != nil {
		t.Errorf("Compact of empty map = (%v, %v), want (nil, true)", flat, ok)
	}
}
