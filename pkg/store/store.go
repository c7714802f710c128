// Package store provides storage backends for hierarchy records.
package store

import (
	"context"

	"github.com/dan-solli/treepath/pkg/hierarchy"
)

// Store is the persistence interface for hierarchy rows. It extends the
// core's Finder with mutation operations. Save is the single persistence call
// of the update protocol; it performs no hierarchy computation itself.
//
// Concurrency is last-write-wins at the storage level. The store adds no
// locking or versioning beyond what the backend provides.
type Store interface {
	hierarchy.Finder

	// Save inserts or replaces a row. A row without an id gets one
	// assigned (UUID) before the write; timestamps are maintained here.
	// After a successful save the row counts as persisted and its
	// association snapshot is refreshed.
	Save(ctx context.Context, row *Row) error

	// Delete removes a row. Deleting a missing row is not an error.
	Delete(ctx context.Context, typeName, id string) error

	// Count returns the number of rows of one type, or of all types when
	// typeName is empty.
	Count(ctx context.Context, typeName string) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
