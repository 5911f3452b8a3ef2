package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cddevrks/code-run/internal/job"
	"github.com/cddevrks/code-run/internal/storage"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateJob(ctx context.Context, j *job.Job) error {
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, language, code, status, output, error, execution_time_ms, memory_bytes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Language, j.Code, j.Status, j.Output, j.Error,
		j.ExecutionTimeMs, j.MemoryBytes,
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*job.Job, error) {
	// Try exact match first, then prefix match
	j, err := s.getJobExact(ctx, id)
	if err == nil {
		return j, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, language, code, status, output, error, execution_time_ms, memory_bytes, created_at, updated_at
		FROM jobs WHERE id LIKE ? || '%'`, id)
	if err != nil {
		return nil, fmt.Errorf("querying job: %w", err)
	}
	defer rows.Close()

	var matches []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, j)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("job not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous job prefix %q matches %d jobs", id, len(matches))
	}
}

func (s *SQLiteStore) getJobExact(ctx context.Context, id string) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, language, code, status, output, error, execution_time_ms, memory_bytes, created_at, updated_at
		FROM jobs WHERE id = ?`, id)
	return scanJobFromScanner(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, opts storage.JobListOptions) ([]job.Job, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, language, code, status, output, error, execution_time_ms, memory_bytes, created_at, updated_at FROM jobs`
	var args []any

	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}

	query += ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, j *job.Job) error {
	j.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, output = ?, error = ?, execution_time_ms = ?, memory_bytes = ?, updated_at = ?
		WHERE id = ?`,
		j.Status, j.Output, j.Error, j.ExecutionTimeMs, j.MemoryBytes,
		j.UpdatedAt.Format(time.RFC3339), j.ID,
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, id string) error {
	// Resolve prefix first
	j, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, j.ID)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanJobFromScanner(sc scanner) (*job.Job, error) {
	var j job.Job
	var createdAt, updatedAt string
	err := sc.Scan(&j.ID, &j.Language, &j.Code, &j.Status, &j.Output, &j.Error,
		&j.ExecutionTimeMs, &j.MemoryBytes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func scanJob(rows *sql.Rows) (*job.Job, error) {
	return scanJobFromScanner(rows)
}
