// Package store keeps a history of preparation runs in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ftprep/internal/logging"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultFile is the database file name inside the workspace directory.
const DefaultFile = "history.db"

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get when no run has the given ID.
var ErrNotFound = errors.New("run not found")

// Status values recorded for a run.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusAborted = "aborted"
)

// Run is one processed input file.
type Run struct {
	ID           string
	StartedAt    time.Time
	Source       string
	Outputs      []string
	TaskType     string
	Rows         int
	Remediations []string
	Status       string
	Error        string
}

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open creates or opens the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.StoreDebug("opened run history at %s", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		source TEXT NOT NULL,
		outputs_json TEXT,
		task_type TEXT,
		row_count INTEGER NOT NULL DEFAULT 0,
		remediations_json TEXT,
		status TEXT NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores run, assigning an ID and start time when they are unset. It
// returns the stored ID.
func (s *Store) Record(run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = StatusOK
	}
	outputs, err := json.Marshal(nonNil(run.Outputs))
	if err != nil {
		return "", fmt.Errorf("failed to encode outputs: %w", err)
	}
	rems, err := json.Marshal(nonNil(run.Remediations))
	if err != nil {
		return "", fmt.Errorf("failed to encode remediations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO runs (id, started_at, source, outputs_json, task_type, row_count, remediations_json, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timeLayout), run.Source, string(outputs),
		run.TaskType, run.Rows, string(rems), run.Status, run.Error)
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	logging.Store("recorded run %s for %s (%s)", run.ID, run.Source, run.Status)
	return run.ID, nil
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, started_at, source, outputs_json, task_type, row_count, remediations_json, status, error
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Get returns the run with the given ID, or ErrNotFound.
func (s *Store) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT id, started_at, source, outputs_json, task_type, row_count, remediations_json, status, error
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// Prune deletes runs started before the retention window and returns how
// many were removed. A retention of zero or less keeps every run.
func (s *Store) Prune(retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-retention).UTC().Format(timeLayout)

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("pruned %d runs older than %s", n, retention)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run              Run
		started          string
		outputs, rems    sql.NullString
		taskType, errMsg sql.NullString
	)
	if err := sc.Scan(&run.ID, &started, &run.Source, &outputs, &taskType, &run.Rows, &rems, &run.Status, &errMsg); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad start time %q: %w", run.ID, started, err)
	}
	run.StartedAt = t
	run.TaskType = taskType.String
	run.Error = errMsg.String
	if outputs.Valid && outputs.String != "" {
		if err := json.Unmarshal([]byte(outputs.String), &run.Outputs); err != nil {
			return nil, fmt.Errorf("run %s: bad outputs: %w", run.ID, err)
		}
	}
	if rems.Valid && rems.String != "" {
		if err := json.Unmarshal([]byte(rems.String), &run.Remediations); err != nil {
			return nil, fmt.Errorf("run %s: bad remediations: %w", run.ID, err)
		}
	}
	return &run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
