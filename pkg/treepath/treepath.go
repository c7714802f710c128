// Package treepath maintains materialized ancestry paths for trees of
// heterogeneous records, turning ancestor, descendant, sibling and child
// lookups into equality and prefix queries against three derived fields.
package treepath

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dan-solli/treepath/pkg/hierarchy"
	"github.com/dan-solli/treepath/pkg/metrics"
	"github.com/dan-solli/treepath/pkg/pathcodec"
	"github.com/dan-solli/treepath/pkg/store"
	"github.com/dan-solli/treepath/pkg/trace"
)

// Config holds configuration for a Treepath instance.
type Config struct {
	// Registry describes the participating record types. Required.
	Registry *hierarchy.Registry

	// Store is the persistence backend. When nil, DBPath selects a
	// SQLite store, and with both empty an in-memory store is used.
	Store store.Store

	// DBPath is a SQLite database path (or ":memory:").
	DBPath string

	// Logger receives debug diagnostics. Defaults to a no-op logger.
	Logger *zerolog.Logger

	// Metrics collects operation metrics. When nil the default depends on
	// build tags: a Prometheus collector with -tags metrics, a no-op
	// collector otherwise.
	Metrics metrics.Collector

	// Tracer exports operation traces. Nil disables tracing.
	Tracer trace.Exporter
}

// Treepath is the main entry point. Save is the single mutation path: it
// runs the three-stage derived-field update and then persists, so stored
// hierarchy fields are always the protocol's output.
type Treepath struct {
	reg       *hierarchy.Registry
	store     store.Store
	updater   *hierarchy.Updater
	traverser *hierarchy.Traverser
	metrics   metrics.Collector
	tracer    trace.Exporter
	log       zerolog.Logger
}

// New creates a Treepath instance, applying defaults for everything but the
// registry.
func New(cfg Config) (*Treepath, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("treepath: Registry is required")
	}

	st := cfg.Store
	if st == nil {
		if cfg.DBPath != "" {
			var err error
			st, err = store.NewSQLiteStore(cfg.DBPath, cfg.Registry)
			if err != nil {
				return nil, err
			}
		} else {
			st = store.NewMemoryStore(cfg.Registry)
		}
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = defaultCollector()
	}
	return &Treepath{
		reg:       cfg.Registry,
		store:     st,
		updater:   hierarchy.NewUpdater(cfg.Registry),
		traverser: hierarchy.NewTraverser(cfg.Registry, st),
		metrics:   collector,
		tracer:    cfg.Tracer,
		log:       log,
	}, nil
}

// NewRecord creates an unsaved row of the given type, bound to this
// instance's store.
func (t *Treepath) NewRecord(typeName string) *store.Row {
	return store.NewRow(typeName, t.reg, t.store)
}

// Save runs the derived-field update protocol on the row and persists it.
// Parent and root references are recomputed on every save; the ancestors
// path is computed at first save and recomputed only when the effective
// parent changed since the last one.
func (t *Treepath) Save(ctx context.Context, row *store.Row) error {
	start := time.Now()
	rec := trace.TraceRecord{
		Timestamp:   start,
		OperationID: uuid.New().String(),
		Operation:   "save",
		Status:      "success",
		IDs:         map[string]interface{}{"type": row.Type},
	}

	err := t.stage(ctx, &rec, "update-fields", func() error {
		return t.updater.Apply(ctx, row)
	})
	if err == nil {
		err = t.stage(ctx, &rec, "persist", func() error {
			return t.store.Save(ctx, row)
		})
	}

	rec.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		rec.Status = "error"
		rec.ErrorType = ClassifyError(err)
		t.metrics.RecordError(ctx, "save", rec.ErrorType)
	} else {
		rec.IDs["id"] = row.ID
		t.log.Debug().Str("type", row.Type).Str("id", row.ID).
			Str("path", row.AncestorsPath()).Msg("saved")
	}
	t.metrics.RecordOperation(ctx, "save", rec.Status, rec.DurationMs)
	t.exportTrace(ctx, &rec)
	return err
}

// Get fetches one row, or nil when it does not exist.
func (t *Treepath) Get(ctx context.Context, typeName, id string) (*store.Row, error) {
	rec, err := t.store.Get(ctx, typeName, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.(*store.Row), nil
}

// Delete removes a row. Descendants are not touched; their stored fields go
// stale the same way they do on re-parent.
func (t *Treepath) Delete(ctx context.Context, typeName, id string) error {
	return t.store.Delete(ctx, typeName, id)
}

// Parent returns the record's current parent, reflecting in-memory
// reassignment that has not been saved yet.
func (t *Treepath) Parent(ctx context.Context, rec hierarchy.Record) (hierarchy.Record, error) {
	return t.traverser.Parent(ctx, rec)
}

// Root returns the record's tree root, or nil for roots.
func (t *Treepath) Root(ctx context.Context, rec hierarchy.Record) (hierarchy.Record, error) {
	return t.traverser.Root(ctx, rec)
}

// Ancestors returns the record's ancestors in root-to-parent order.
func (t *Treepath) Ancestors(ctx context.Context, rec hierarchy.Record, includeSelf bool) ([]hierarchy.Record, error) {
	var out []hierarchy.Record
	err := t.query(ctx, "ancestors", func() (int, error) {
		var err error
		out, err = t.traverser.Ancestors(ctx, rec, includeSelf)
		return len(out), err
	})
	return out, err
}

// AncestorModels returns the distinct ancestor type sequence.
func (t *Treepath) AncestorModels(rec hierarchy.Record, includeSelf bool) []string {
	return t.traverser.AncestorModels(rec, includeSelf)
}

// Siblings returns records sharing the record's parent, grouped by type.
func (t *Treepath) Siblings(ctx context.Context, rec hierarchy.Record, opts hierarchy.Options) (hierarchy.TypeMap, error) {
	var out hierarchy.TypeMap
	err := t.query(ctx, "siblings", func() (int, error) {
		var err error
		out, err = t.traverser.Siblings(ctx, rec, opts)
		return mapSize(out), err
	})
	return out, err
}

// Children returns the record's direct children, grouped by type.
func (t *Treepath) Children(ctx context.Context, rec hierarchy.Record, opts hierarchy.Options) (hierarchy.TypeMap, error) {
	var out hierarchy.TypeMap
	err := t.query(ctx, "children", func() (int, error) {
		var err error
		out, err = t.traverser.Children(ctx, rec, opts)
		return mapSize(out), err
	})
	return out, err
}

// ChildrenModels returns the types reachable in one association hop.
func (t *Treepath) ChildrenModels(rec hierarchy.Record, includeSelf bool) []string {
	return t.traverser.ChildrenModels(rec, includeSelf)
}

// DescendantModels returns every type reachable through the association map.
func (t *Treepath) DescendantModels(rec hierarchy.Record, includeSelf bool) []string {
	return t.traverser.DescendantModels(rec, includeSelf)
}

// Descendants returns every record below this one, grouped by type.
func (t *Treepath) Descendants(ctx context.Context, rec hierarchy.Record, opts hierarchy.Options) (hierarchy.TypeMap, error) {
	var out hierarchy.TypeMap
	err := t.query(ctx, "descendants", func() (int, error) {
		var err error
		out, err = t.traverser.Descendants(ctx, rec, opts)
		return mapSize(out), err
	})
	return out, err
}

// RepairSubtree re-saves every record below the given one, top-down, so
// their stored root references and ancestor paths catch up after a
// re-parent. The walk follows child associations rather than stored paths,
// because stale paths are exactly what it exists to fix. Returns the number
// of records repaired.
func (t *Treepath) RepairSubtree(ctx context.Context, row *store.Row) (int, error) {
	start := time.Now()
	rec := trace.TraceRecord{
		Timestamp:   start,
		OperationID: uuid.New().String(),
		Operation:   "repair-subtree",
		Status:      "success",
		IDs:         map[string]interface{}{"type": row.Type, "id": row.ID},
	}

	repaired := 0
	visited := map[pathcodec.Ref]bool{{Type: row.Type, ID: row.ID}: true}
	queue := []*store.Row{row}

	var err error
	for len(queue) > 0 && err == nil {
		cur := queue[0]
		queue = queue[1:]

		var kids hierarchy.TypeMap
		kids, err = t.traverser.Children(ctx, cur, hierarchy.Options{})
		if err != nil {
			break
		}
		for _, typeName := range sortedKeys(kids) {
			for _, kid := range kids[typeName] {
				ref := pathcodec.Ref{Type: kid.TypeName(), ID: kid.RecordID()}
				if visited[ref] {
					continue
				}
				visited[ref] = true

				child, ok := kid.(*store.Row)
				if !ok {
					continue
				}
				if err = t.updater.Refresh(ctx, child); err != nil {
					break
				}
				if err = t.store.Save(ctx, child); err != nil {
					break
				}
				repaired++
				queue = append(queue, child)
			}
			if err != nil {
				break
			}
		}
	}

	rec.DurationMs = time.Since(start).Milliseconds()
	rec.IDs["repaired"] = repaired
	if err != nil {
		rec.Status = "error"
		rec.ErrorType = ClassifyError(err)
		t.metrics.RecordError(ctx, "repair-subtree", rec.ErrorType)
	}
	t.metrics.RecordOperation(ctx, "repair-subtree", rec.Status, rec.DurationMs)
	t.exportTrace(ctx, &rec)
	return repaired, err
}

// Store exposes the underlying store, mainly for direct queries in tests
// and embedding applications.
func (t *Treepath) Store() store.Store {
	return t.store
}

// Close releases the store and the trace exporter.
func (t *Treepath) Close() error {
	if t.tracer != nil {
		if err := t.tracer.Close(); err != nil {
			t.log.Warn().Err(err).Msg("trace exporter close failed")
		}
	}
	return t.store.Close()
}

// stage runs one protocol stage and records its span.
func (t *Treepath) stage(ctx context.Context, rec *trace.TraceRecord, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	span := trace.SpanRecord{
		Name:       name,
		DurationMs: time.Since(start).Milliseconds(),
		OK:         err == nil,
	}
	if err != nil {
		span.ErrorType = ClassifyError(err)
	}
	t.metrics.RecordStage(ctx, rec.Operation, name, span.DurationMs)
	rec.Spans = append(rec.Spans, span)
	return err
}

// query wraps a read operation with metrics and a single query span.
func (t *Treepath) query(ctx context.Context, op string, fn func() (int, error)) error {
	start := time.Now()
	matched, err := fn()
	durationMs := time.Since(start).Milliseconds()

	rec := trace.TraceRecord{
		Timestamp:   start,
		OperationID: uuid.New().String(),
		Operation:   op,
		DurationMs:  durationMs,
		Status:      "success",
		Spans: []trace.SpanRecord{{
			Name:       "query",
			DurationMs: durationMs,
			OK:         err == nil,
			Counters:   map[string]int64{"matched": int64(matched)},
		}},
	}
	if err != nil {
		rec.Status = "error"
		rec.ErrorType = ClassifyError(err)
		t.metrics.RecordError(ctx, op, rec.ErrorType)
	}
	t.metrics.RecordOperation(ctx, op, rec.Status, durationMs)
	t.exportTrace(ctx, &rec)
	return err
}

func (t *Treepath) exportTrace(ctx context.Context, rec *trace.TraceRecord) {
	if t.tracer == nil {
		return
	}
	if err := t.tracer.Export(ctx, rec); err != nil {
		// Trace export is best-effort; operations never fail on it.
		t.log.Warn().Err(err).Msg("trace export failed")
	}
}

func mapSize(m hierarchy.TypeMap) int {
	n := 0
	for _, recs := range m {
		n += len(recs)
	}
	return n
}

func sortedKeys(m hierarchy.TypeMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
