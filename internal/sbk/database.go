package sbk

import "time"

// Database persists snapshots between runs and keeps a history of job runs.
type Database interface {
	// LoadSnapshot returns the snapshot persisted under name, or nil when
	// no snapshot has ever been saved for it.
	LoadSnapshot(name string) (*Snapshot, error)

	// SaveSnapshot atomically replaces the snapshot stored under name.
	SaveSnapshot(name string, snapshot *Snapshot) error

	// RecordRun appends a job run to the history.
	RecordRun(result *JobResult) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*RunRecord, error)

	// Close closes the database connection.
	Close() error
}

// RunRecord is one row of run history.
type RunRecord struct {
	ID         int64
	RunID      string
	Job        string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Counters   Counters
	Error      string
}
