package output

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	coreoutput "github.com/kilianp07/gridsweep/core/output"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sweep_meta (
        collection TEXT PRIMARY KEY,
        record TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS sweep_rows (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        collection TEXT NOT NULL,
        tbl TEXT NOT NULL,
        run_id INTEGER NOT NULL,
        record TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_sweep_rows_run ON sweep_rows(collection, run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sweep_rows_tbl ON sweep_rows(collection, tbl)`,
}

// SQLiteSink stores collections in a SQLite database. All rows of a run are
// written in one transaction.
type SQLiteSink struct {
	db         *sql.DB
	collection string
}

// NewSQLiteSink returns an uninitialized database sink.
func NewSQLiteSink() *SQLiteSink { return &SQLiteSink{} }

// Init opens or creates the database at d.Path and ensures the schema.
func (s *SQLiteSink) Init(ctx context.Context, d coreoutput.Descriptor) error {
	if d.Path == "" {
		return errors.New("database sink: empty path")
	}
	db, err := sql.Open("sqlite", d.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return err
		}
	}
	s.db = db
	s.collection = d.Collection
	if s.collection == "" {
		s.collection = defaultBucket
	}
	return nil
}

func (s *SQLiteSink) ReadMeta(ctx context.Context) (coreoutput.Meta, error) {
	if s.db == nil {
		return coreoutput.Meta{}, coreoutput.ErrNotInitialized
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM sweep_meta WHERE collection = ?`, s.collection).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return coreoutput.Meta{}, coreoutput.ErrNoMeta
	}
	if err != nil {
		return coreoutput.Meta{}, err
	}
	var m coreoutput.Meta
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return coreoutput.Meta{}, fmt.Errorf("unmarshal meta: %w", err)
	}
	return m, nil
}

func (s *SQLiteSink) WriteMeta(ctx context.Context, m coreoutput.Meta) error {
	if s.db == nil {
		return coreoutput.ErrNotInitialized
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sweep_meta (collection, record) VALUES (?, ?)
         ON CONFLICT(collection) DO UPDATE SET record = excluded.record`,
		s.collection, string(b))
	return err
}

func (s *SQLiteSink) DeleteRuns(ctx context.Context, r coreoutput.RunRange) error {
	if s.db == nil {
		return coreoutput.ErrNotInitialized
	}
	query := `DELETE FROM sweep_rows WHERE collection = ? AND run_id >= ?`
	args := []any{s.collection, r.From}
	if r.To >= 0 {
		query += ` AND run_id <= ?`
		args = append(args, r.To)
	}
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// WriteRun inserts every row of the run in one transaction, the run table
// last.
func (s *SQLiteSink) WriteRun(ctx context.Context, runID int, tables []coreoutput.Table) (err error) {
	if s.db == nil {
		return coreoutput.ErrNotInitialized
	}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sweep_rows (collection, tbl, run_id, record) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	ordered := make([]coreoutput.Table, 0, len(tables))
	var runRows []coreoutput.Table
	for _, t := range tables {
		if t.Name == coreoutput.RunTable {
			runRows = append(runRows, t)
		} else {
			ordered = append(ordered, t)
		}
	}
	for _, t := range append(ordered, runRows...) {
		for _, rec := range t.Records() {
			b, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("table %s run %d: %w", t.Name, runID, err)
			}
			if _, err := stmt.ExecContext(ctx, s.collection, t.Name, runID, string(b)); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteSink) Runs(ctx context.Context) ([]int, error) {
	if s.db == nil {
		return nil, coreoutput.ErrNotInitialized
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT run_id FROM sweep_rows WHERE collection = ? AND tbl = ? ORDER BY run_id`,
		s.collection, coreoutput.RunTable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ReadTable returns the rows of a table ordered by run id.
func (s *SQLiteSink) ReadTable(ctx context.Context, name string) ([]coreoutput.Record, error) {
	if s.db == nil {
		return nil, coreoutput.ErrNotInitialized
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, record FROM sweep_rows WHERE collection = ? AND tbl = ? ORDER BY run_id, id`,
		s.collection, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []coreoutput.Record
	for rows.Next() {
		var (
			id   int
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		rec := coreoutput.Record{RunID: id}
		if err := json.Unmarshal([]byte(data), &rec.Values); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
