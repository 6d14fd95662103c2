package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sbk-go/internal/database/migrations"
	"sbk-go/internal/sbk"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// timeFormat is how timestamps are stored in TEXT columns.
const timeFormat = time.RFC3339Nano

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock sbk.Clock
}

// NewSQLiteDatabase opens the database at path, migrates it to the latest
// schema and refuses a dirty or newer schema. path can be a file path or
// ":memory:".
func NewSQLiteDatabase(path string, clock sbk.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	if err := migrations.CheckStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}
	if clock == nil {
		clock = sbk.RealClock{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Path returns the database location.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Snapshot operations

func (s *SQLiteDatabase) LoadSnapshot(name string) (*sbk.Snapshot, error) {
	ctx := context.Background()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT file_count FROM snapshots WHERE name = ?", name).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding snapshot: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT path, digest FROM snapshot_files WHERE snapshot_name = ? ORDER BY seq", name)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot files: %w", err)
	}
	defer rows.Close()

	snap := sbk.NewSnapshot()
	for rows.Next() {
		var rec sbk.FileRecord
		if err := rows.Scan(&rec.Path, &rec.Digest); err != nil {
			return nil, fmt.Errorf("scanning snapshot file: %w", err)
		}
		snap.Put(rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading snapshot files: %w", err)
	}
	if snap.Len() != count {
		return nil, fmt.Errorf("snapshot %q is inconsistent: %d files recorded, %d stored", name, count, snap.Len())
	}
	return snap, nil
}

func (s *SQLiteDatabase) SaveSnapshot(name string, snapshot *sbk.Snapshot) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (name, saved_at, file_count) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET saved_at = excluded.saved_at, file_count = excluded.file_count`,
		name, s.clock.Now().UTC().Format(timeFormat), snapshot.Len())
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_files WHERE snapshot_name = ?", name); err != nil {
		return fmt.Errorf("clearing snapshot files: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO snapshot_files (snapshot_name, seq, path, digest) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range snapshot.Records() {
		if _, err := stmt.ExecContext(ctx, name, i, rec.Path, rec.Digest); err != nil {
			return fmt.Errorf("saving %s: %w", rec.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Run history operations

func (s *SQLiteDatabase) RecordRun(result *sbk.JobResult) error {
	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}
	c := result.Counters
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO job_runs (
			run_id, job, status, started_at, finished_at,
			scanned, included, excluded, too_recent, changed,
			compressed, encrypted, archived, uploaded, failed, deleted, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Job, result.Status,
		result.StartedAt.UTC().Format(timeFormat), result.FinishedAt.UTC().Format(timeFormat),
		c.Scanned, c.Included, c.Excluded, c.TooRecent, c.Changed,
		c.Compressed, c.Encrypted, c.Archived, c.Uploaded, c.Failed, c.Deleted, errText,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListRuns(limit int) ([]*sbk.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, run_id, job, status, started_at, finished_at,
			scanned, included, excluded, too_recent, changed,
			compressed, encrypted, archived, uploaded, failed, deleted, error
		FROM job_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*sbk.RunRecord
	for rows.Next() {
		var r sbk.RunRecord
		var started, finished string
		c := &r.Counters
		err := rows.Scan(&r.ID, &r.RunID, &r.Job, &r.Status, &started, &finished,
			&c.Scanned, &c.Included, &c.Excluded, &c.TooRecent, &c.Changed,
			&c.Compressed, &c.Encrypted, &c.Archived, &c.Uploaded, &c.Failed, &c.Deleted, &r.Error)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(timeFormat, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Compile-time check that SQLiteDatabase implements sbk.Database interface
var _ sbk.Database = (*SQLiteDatabase)(nil)
