package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dan-solli/treepath/pkg/hierarchy"
	"github.com/dan-solli/treepath/pkg/pathcodec"
)

// SQLiteStore implements Store on a single records table keyed by (type, id).
// The derived parent and root references live in indexed columns so sibling
// and root-scoped descendant queries are plain index lookups; the ancestors
// path is indexed together with the type for prefix scans; named associations
// and free-form attributes are JSON columns queried via json_extract.
type SQLiteStore struct {
	db  *sql.DB
	reg *hierarchy.Registry
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite-backed store. The dbPath can be
// a file path or ":memory:".
func NewSQLiteStore(dbPath string, reg *hierarchy.Registry) (*SQLiteStore, error) {
	db, err := sql.Open(sqliteDriver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, reg: reg, log: zerolog.Nop()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// SetLogger installs a logger for non-critical diagnostics.
func (s *SQLiteStore) SetLogger(log zerolog.Logger) {
	s.log = log
}

// initSchema creates the records table and indexes if they don't exist, then
// applies additive migrations.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		type TEXT NOT NULL,
		id TEXT NOT NULL,
		parent_type TEXT,
		parent_id TEXT,
		root_type TEXT,
		root_id TEXT,
		ancestors_path TEXT NOT NULL DEFAULT '',
		assocs TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (type, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_parent ON records(parent_type, parent_id);
	CREATE INDEX IF NOT EXISTS idx_records_root ON records(root_type, root_id);
	CREATE INDEX IF NOT EXISTS idx_records_path ON records(type, ancestors_path);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.migrateSchema()
}

// migrateSchema adds columns introduced after the initial schema.
func (s *SQLiteStore) migrateSchema() error {
	if !s.columnExists("records", "attrs") {
		if _, err := s.db.Exec("ALTER TABLE records ADD COLUMN attrs TEXT"); err != nil {
			return fmt.Errorf("failed to add attrs column: %w", err)
		}
	}
	if !s.columnExists("records", "updated_at") {
		if _, err := s.db.Exec("ALTER TABLE records ADD COLUMN updated_at DATETIME"); err != nil {
			return fmt.Errorf("failed to add updated_at column: %w", err)
		}
	}
	return nil
}

// columnExists checks if a column exists in a table.
func (s *SQLiteStore) columnExists(tableName, columnName string) bool {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false
		}
		if name == columnName {
			return true
		}
	}
	return false
}

const rowColumns = "type, id, parent_type, parent_id, root_type, root_id, ancestors_path, assocs, attrs, created_at, updated_at"

// Save inserts or replaces a row, assigning an id and timestamps as needed.
func (s *SQLiteStore) Save(ctx context.Context, row *Row) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	var assocsJSON, attrsJSON []byte
	var err error
	if len(row.assocs) > 0 {
		if assocsJSON, err = json.Marshal(row.assocs); err != nil {
			return fmt.Errorf("failed to marshal associations: %w", err)
		}
	}
	if row.Attrs != nil {
		if attrsJSON, err = json.Marshal(row.Attrs); err != nil {
			return fmt.Errorf("failed to marshal attrs: %w", err)
		}
	}

	parentType, parentID := refColumns(row.parentRef)
	rootType, rootID := refColumns(row.rootRef)

	query := `
		INSERT OR REPLACE INTO records
			(type, id, parent_type, parent_id, root_type, root_id, ancestors_path, assocs, attrs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		row.Type, row.ID,
		parentType, parentID,
		rootType, rootID,
		row.ancestorsPath,
		nullableText(assocsJSON),
		nullableText(attrsJSON),
		row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	row.markPersisted(s.reg, s)
	s.log.Debug().Str("type", row.Type).Str("id", row.ID).Msg("record saved")
	return nil
}

// Get fetches one row by type and id. Returns (nil, nil) when absent.
func (s *SQLiteStore) Get(ctx context.Context, typeName, id string) (hierarchy.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM records WHERE type = ? AND id = ?", rowColumns)
	row, err := s.scanRow(s.db.QueryRowContext(ctx, query, typeName, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return row, nil
}

// Select returns all rows matching the query, ordered by creation time then
// id for deterministic results.
func (s *SQLiteStore) Select(ctx context.Context, q hierarchy.Query) ([]hierarchy.Record, error) {
	where := []string{"type = ?"}
	args := []interface{}{q.Type}

	if q.ParentRef != nil {
		where = append(where, "parent_type = ?", "parent_id = ?")
		args = append(args, q.ParentRef.Type, q.ParentRef.ID)
	}
	if q.RootRef != nil {
		where = append(where, "root_type = ?", "root_id = ?")
		args = append(args, q.RootRef.Type, q.RootRef.ID)
	}
	if q.Field != nil {
		where = append(where, "json_extract(assocs, ?) = ?", "json_extract(assocs, ?) = ?")
		args = append(args,
			"$."+q.Field.Name+".type", q.Field.Ref.Type,
			"$."+q.Field.Name+".id", q.Field.Ref.ID,
		)
	}
	if q.PathPrefix != "" {
		// Boundary-safe prefix: exact match (direct children) or the
		// prefix followed by the path separator (deeper descendants).
		where = append(where, `(ancestors_path = ? OR ancestors_path LIKE ? ESCAPE '\')`)
		args = append(args, q.PathPrefix, escapeLike(q.PathPrefix+q.PathSep)+"%")
	}

	query := fmt.Sprintf(
		"SELECT %s FROM records WHERE %s ORDER BY created_at, id",
		rowColumns, strings.Join(where, " AND "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	out := []hierarchy.Record{}
	for rows.Next() {
		row, err := s.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return out, nil
}

// Delete removes a row. Missing rows are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, typeName, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE type = ? AND id = ?", typeName, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Count returns the number of rows of one type, or all rows when typeName is
// empty.
func (s *SQLiteStore) Count(ctx context.Context, typeName string) (int64, error) {
	var count int64
	var err error
	if typeName == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE type = ?", typeName).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRow hydrates a Row from one result row and binds it to this store.
// The stored association snapshot equals the loaded state, since anything
// read from storage is by definition persisted.
func (s *SQLiteStore) scanRow(sc scanner) (*Row, error) {
	row := &Row{}
	var parentType, parentID, rootType, rootID, assocsJSON, attrsJSON sql.NullString
	var updatedAt sql.NullTime

	err := sc.Scan(
		&row.Type, &row.ID,
		&parentType, &parentID,
		&rootType, &rootID,
		&row.ancestorsPath,
		&assocsJSON, &attrsJSON,
		&row.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	row.parentRef = refFromColumns(parentType, parentID)
	row.rootRef = refFromColumns(rootType, rootID)
	if updatedAt.Valid {
		row.UpdatedAt = updatedAt.Time
	}
	if assocsJSON.Valid && assocsJSON.String != "" {
		if err := json.Unmarshal([]byte(assocsJSON.String), &row.assocs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal associations: %w", err)
		}
	}
	if row.assocs == nil {
		row.assocs = make(map[string]pathcodec.Ref)
	}
	if attrsJSON.Valid && attrsJSON.String != "" {
		if err := json.Unmarshal([]byte(attrsJSON.String), &row.Attrs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attrs: %w", err)
		}
	}

	row.markPersisted(s.reg, s)
	return row, nil
}

func refColumns(ref *pathcodec.Ref) (interface{}, interface{}) {
	if ref == nil {
		return nil, nil
	}
	return ref.Type, ref.ID
}

func refFromColumns(typeCol, idCol sql.NullString) *pathcodec.Ref {
	if !typeCol.Valid || typeCol.String == "" {
		return nil
	}
	return &pathcodec.Ref{Type: typeCol.String, ID: idCol.String}
}

func nullableText(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// escapeLike escapes LIKE wildcards so path prefixes containing % or _ match
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
