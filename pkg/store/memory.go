package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/treepath/pkg/hierarchy"
)

// MemoryStore is an in-memory Store for tests and embeddings that don't want
// a database file. It keeps rows per type under a single RWMutex and hands
// out clones, so callers never share mutable state with the stored copies.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]map[string]*Row // type -> id -> row
	reg  *hierarchy.Registry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(reg *hierarchy.Registry) *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]map[string]*Row),
		reg:  reg,
	}
}

// Save inserts or replaces a row, assigning an id and timestamps as needed.
func (s *MemoryStore) Save(ctx context.Context, row *Row) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	row.markPersisted(s.reg, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.rows[row.Type]
	if !ok {
		byID = make(map[string]*Row)
		s.rows[row.Type] = byID
	}
	byID[row.ID] = row.clone()
	return nil
}

// Get fetches one row by type and id. Returns (nil, nil) when absent.
func (s *MemoryStore) Get(ctx context.Context, typeName, id string) (hierarchy.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[typeName][id]
	if !ok {
		return nil, nil
	}
	return row.clone(), nil
}

// Select returns all rows matching the query, ordered by creation time then
// id to mirror the SQLite backend.
func (s *MemoryStore) Select(ctx context.Context, q hierarchy.Query) ([]hierarchy.Record, error) {
	s.mu.RLock()
	matched := make([]*Row, 0, 8)
	for _, row := range s.rows[q.Type] {
		if matches(q, row) {
			matched = append(matched, row.clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	out := make([]hierarchy.Record, len(matched))
	for i, row := range matched {
		out[i] = row
	}
	return out, nil
}

// Delete removes a row. Missing rows are not an error.
func (s *MemoryStore) Delete(ctx context.Context, typeName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[typeName], id)
	return nil
}

// Count returns the number of rows of one type, or all rows when typeName is
// empty.
func (s *MemoryStore) Count(ctx context.Context, typeName string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if typeName != "" {
		return int64(len(s.rows[typeName])), nil
	}
	var total int64
	for _, byID := range s.rows {
		total += int64(len(byID))
	}
	return total, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func matches(q hierarchy.Query, row *Row) bool {
	if q.ParentRef != nil {
		if row.parentRef == nil || *row.parentRef != *q.ParentRef {
			return false
		}
	}
	if q.RootRef != nil {
		if row.rootRef == nil || *row.rootRef != *q.RootRef {
			return false
		}
	}
	if q.Field != nil {
		ref, ok := row.assocs[q.Field.Name]
		if !ok || ref != q.Field.Ref {
			return false
		}
	}
	if q.PathPrefix != "" {
		path := row.ancestorsPath
		if path != q.PathPrefix && !strings.HasPrefix(path, q.PathPrefix+q.PathSep) {
			return false
		}
	}
	return true
}
