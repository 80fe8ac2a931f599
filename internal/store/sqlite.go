package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nvandessel/quorumlab/internal/constants"
)

// DBFileName is the run database file inside the data directory.
const DBFileName = "quorumlab.db"

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRunStore implements RunStore on a SQLite database.
type SQLiteRunStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens (creating if needed) the run database in dataDir.
func NewSQLiteRunStore(dataDir string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, DBFileName)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// SaveRun inserts or replaces a run.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run Run) (string, error) {
	run, err := prepare(run)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, kind, step, created_at, params_json, result_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, string(run.Step), run.CreatedAt.UTC().Format(timeLayout),
		string(run.Params), string(run.Result))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return run.ID, nil
}

// GetRun retrieves a run by ID or unique ID prefix.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("empty id: %w", ErrNotFound)
	}
	// Escape LIKE wildcards; run IDs are UUIDs but the argument is user input.
	pattern := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(id) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, step, created_at, params_json, result_json
		FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\'
		ORDER BY id LIMIT 3`, id, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].ID == id {
			return &runs[i], nil
		}
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	case 1:
		return &runs[0], nil
	}
	return nil, fmt.Errorf("%s matches several runs: %w", id, ErrAmbiguousID)
}

// ListRuns returns matching runs, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, kind, step, created_at, params_json, result_json FROM runs`
	var where []string
	var args []any
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Step != "" {
		where = append(where, "step = ?")
		args = append(args, string(filter.Step))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// DeleteRun removes a run by full ID.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	out := []Run{}
	for rows.Next() {
		var (
			r              Run
			step, created  string
			params, result string
		)
		if err := rows.Scan(&r.ID, &r.Kind, &step, &created, &params, &result); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		t, err := time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, created, err)
		}
		r.Step = constants.Step(step)
		r.CreatedAt = t
		r.Params = json.RawMessage(params)
		r.Result = json.RawMessage(result)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return out, nil
}
