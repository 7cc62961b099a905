// Package history persists finished analysis runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/article-analyzer/internal/domain"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

const defaultListLimit = 20

// Run is a stored analysis run.
type Run struct {
	ID          string
	Source      string
	Model       string
	CreatedAt   time.Time
	Duration    time.Duration
	StepCount   int
	FailedCount int
	// Results is only populated by Get.
	Results *domain.RunResults
}

// Store handles database operations
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, domain.IOError(fmt.Sprintf("create history directory %s", dir), err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, domain.IOError("failed to open history database", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, domain.IOError("failed to initialize history schema", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			step_count INTEGER NOT NULL,
			failed_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS step_results (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			step_id TEXT NOT NULL,
			label TEXT NOT NULL,
			text TEXT NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, position),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

// Save records a finished run and returns it with its new id.
func (s *Store) Save(ctx context.Context, source, model string, createdAt time.Time, duration time.Duration, results *domain.RunResults) (*Run, error) {
	run := &Run{
		ID:          uuid.NewString(),
		Source:      source,
		Model:       model,
		CreatedAt:   createdAt.UTC(),
		Duration:    duration,
		StepCount:   results.Len(),
		FailedCount: results.FailedCount(),
		Results:     results,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.IOError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, model, created_at, duration_ms, step_count, failed_count) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Model, run.CreatedAt, run.Duration.Milliseconds(), run.StepCount, run.FailedCount,
	)
	if err != nil {
		return nil, domain.IOError("failed to insert run", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO step_results (run_id, position, step_id, label, text, failed, duration_ms, prompt_tokens, completion_tokens) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, domain.IOError("failed to prepare step insert", err)
	}
	defer stmt.Close()

	for i, r := range results.Entries() {
		_, err := stmt.ExecContext(ctx,
			run.ID, i, r.StepID, r.Label, r.Text, r.Failed, r.Duration.Milliseconds(), r.Usage.PromptTokens, r.Usage.CompletionTokens,
		)
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("failed to insert step %s", r.StepID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.IOError("failed to commit run", err)
	}

	return run, nil
}

// List returns recent runs, most recent first, without step results.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, model, created_at, duration_ms, step_count, failed_count FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, domain.IOError("failed to query runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.IOError("failed to read runs", err)
	}

	return runs, nil
}

// Get returns one run with its step results in stored order.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, model, created_at, duration_ms, step_count, failed_count FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT step_id, label, text, failed, duration_ms, prompt_tokens, completion_tokens FROM step_results WHERE run_id = ? ORDER BY position ASC`,
		id,
	)
	if err != nil {
		return nil, domain.IOError("failed to query step results", err)
	}
	defer rows.Close()

	var entries []domain.StepResult
	for rows.Next() {
		var r domain.StepResult
		var durationMS int64
		if err := rows.Scan(&r.StepID, &r.Label, &r.Text, &r.Failed, &durationMS, &r.Usage.PromptTokens, &r.Usage.CompletionTokens); err != nil {
			return nil, domain.IOError("failed to scan step result", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.IOError("failed to read step results", err)
	}

	run.Results = domain.NewRunResults(entries)
	return run, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var durationMS int64
	err := row.Scan(&r.ID, &r.Source, &r.Model, &r.CreatedAt, &durationMS, &r.StepCount, &r.FailedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, domain.IOError("failed to scan run", err)
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return &r, nil
}
