package sbk

import "time"

// Run statuses recorded in history.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusDryRun  = "dry-run"
)

// Counters tallies what a job run did.
type Counters struct {
	Dirs     int
	Scanned  int
	Included int
	Excluded int
	// TooRecent counts included files skipped by the age cutoff.
	TooRecent int

	Changed    int
	Compressed int
	Encrypted  int
	Archived   int
	Uploaded   int
	Failed     int

	Deleted    int
	PrunedDirs int
}

// JobResult reports the outcome of one job run.
type JobResult struct {
	RunID string
	Job   string
	Status string
	Counters

	ChangedPaths []string
	Groups       []ArchiveGroup
	FailedPaths  []string

	// IncludedFiles and ExcludedFiles are only filled by a filter dry run.
	IncludedFiles []string
	ExcludedFiles []string

	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *JobResult) fail(path string) {
	r.Failed++
	r.FailedPaths = append(r.FailedPaths, path)
}
