// Package hierarchy maintains materialized ancestry paths for records that
// form a forest of trees spanning heterogeneous record types.
//
// Each participating record carries three derived fields: a reference to its
// immediate parent, a reference to its tree root, and a string-encoded path of
// all its ancestors. The fields are recomputed by Updater before every persist
// and consumed by Traverser, which turns ancestor/descendant/sibling lookups
// into equality and prefix queries instead of recursive traversals.
package hierarchy

import (
	"context"

	"github.com/dan-solli/treepath/pkg/pathcodec"
)

// Record is the abstraction over an entity participating in a hierarchy.
// The storage layer provides the implementation; the core never assumes a
// concrete representation.
//
// The three derived fields (parent ref, root ref, ancestors path) are written
// only by Updater. A nil ref or empty path means the field is unset.
type Record interface {
	// TypeName returns the record's type tag.
	TypeName() string

	// RecordID returns the storage identifier, empty until first persist.
	RecordID() string

	// IsNew reports whether the record has never been persisted.
	IsNew() bool

	// ParentRef returns the persisted-field reference to the immediate
	// parent, nil for roots and records whose type omits the field.
	ParentRef() *pathcodec.Ref
	SetParentRef(ref *pathcodec.Ref)

	// RootRef returns the reference to the top-most ancestor, nil when the
	// record itself is a root (roots do not self-reference).
	RootRef() *pathcodec.Ref
	SetRootRef(ref *pathcodec.Ref)

	// AncestorsPath returns the encoded token sequence for every ancestor
	// from the root down to, but excluding, this record.
	AncestorsPath() string
	SetAncestorsPath(path string)

	// Related follows a named association to a single record. It reflects
	// the current in-memory value of the association, so a reassigned but
	// not yet persisted parent resolves to the new target.
	// Returns (nil, nil) when the association is unset or dangling.
	Related(ctx context.Context, name string) (Record, error)

	// RelatedAll follows a named collection association.
	RelatedAll(ctx context.Context, name string) ([]Record, error)

	// RelatedRef returns the current in-memory value of a named
	// association, nil when unset.
	RelatedRef(name string) *pathcodec.Ref

	// StoredRelatedRef returns the association value as of the last
	// persist, nil when it was unset or the record is new.
	StoredRelatedRef(name string) *pathcodec.Ref
}

// FieldRef is an equality filter on a named association field.
type FieldRef struct {
	Name string
	Ref  pathcodec.Ref
}

// Query describes one persistence lookup. Exactly one record type is queried
// at a time; traversal fans out over types and merges the results itself,
// since different types may live in different storage.
type Query struct {
	// Type restricts the query to one record type. Required.
	Type string

	// ParentRef filters on the derived parent reference.
	ParentRef *pathcodec.Ref

	// RootRef filters on the derived root reference.
	RootRef *pathcodec.Ref

	// Field filters on a named association field.
	Field *FieldRef

	// PathPrefix matches records whose ancestors path either equals the
	// prefix or starts with prefix+PathSep. The separator is part of the
	// match so "Task|t1" never captures "Task|t10" subtrees.
	PathPrefix string

	// PathSep is the path separator used for the prefix boundary. Required
	// when PathPrefix is set.
	PathSep string
}

// Finder is the persistence query interface the traversal engine consumes.
type Finder interface {
	// Get fetches one record by type and id. Returns (nil, nil) when the
	// record does not exist.
	Get(ctx context.Context, typeName, id string) (Record, error)

	// Select returns all records matching the query. Returns an empty
	// slice, not an error, when nothing matches.
	Select(ctx context.Context, q Query) ([]Record, error)
}

// Union merges two result collections, keyed by (type, id). Order is the
// first collection's order followed by unseen records of the second.
func Union(a, b []Record) []Record {
	seen := make(map[pathcodec.Ref]bool, len(a)+len(b))
	out := make([]Record, 0, len(a)+len(b))
	for _, rec := range a {
		key := pathcodec.Ref{Type: rec.TypeName(), ID: rec.RecordID()}
		if !seen[key] {
			seen[key] = true
			out = append(out, rec)
		}
	}
	for _, rec := range b {
		key := pathcodec.Ref{Type: rec.TypeName(), ID: rec.RecordID()}
		if !seen[key] {
			seen[key] = true
			out = append(out, rec)
		}
	}
	return out
}

// Difference returns the records of a that do not occur in b, keyed by
// (type, id), preserving a's order.
func Difference(a, b []Record) []Record {
	drop := make(map[pathcodec.Ref]bool, len(b))
	for _, rec := range b {
		drop[pathcodec.Ref{Type: rec.TypeName(), ID: rec.RecordID()}] = true
	}
	out := make([]Record, 0, len(a))
	for _, rec := range a {
		if !drop[pathcodec.Ref{Type: rec.TypeName(), ID: rec.RecordID()}] {
			out = append(out, rec)
		}
	}
	return out
}

// RefOf returns the (type, id) reference for a persisted record, or nil for
// an unsaved one. Unsaved records contribute no token anywhere.
func RefOf(rec Record) *pathcodec.Ref {
	if rec == nil || rec.RecordID() == "" {
		return nil
	}
	return &pathcodec.Ref{Type: rec.TypeName(), ID: rec.RecordID()}
}
