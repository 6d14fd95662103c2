package sbk

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"golang.org/x/sync/errgroup"
)

// ScanResult is the output of a scan: the digests of every included file
// that could be hashed, in discovery order.
type ScanResult struct {
	Snapshot *Snapshot
	Failed   []string
}

// Scanner walks a job's base path, applies its filters and age cutoff and
// hashes the files that remain.
type Scanner struct {
	fsmgr   FilesystemManager
	hasher  *Hasher
	logger  Logger
	clock   Clock
	workers int
}

// NewScanner creates a Scanner. workers > 1 hashes files concurrently.
func NewScanner(fsmgr FilesystemManager, hasher *Hasher, logger Logger, clock Clock, workers int) *Scanner {
	if workers < 1 {
		workers = 1
	}
	return &Scanner{fsmgr: fsmgr, hasher: hasher, logger: logger, clock: clock, workers: workers}
}

// Scan walks job.BasePath and hashes every included file. Per-file read
// failures are logged, counted in res and omitted from the snapshot; only a
// failure to walk the base path itself aborts the scan.
func (s *Scanner) Scan(ctx context.Context, job *Job, res *JobResult, progress ProgressFunc) (*ScanResult, error) {
	var cutoff time.Time
	if job.ConsiderOlder > 0 {
		cutoff = startOfDay(s.clock.Now()).AddDate(0, 0, -job.ConsiderOlder)
	}

	type slot struct {
		path   string
		digest string
		err    error
	}
	var slots []*slot
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	hash := func(sl *slot) {
		sl.digest, sl.err = s.hasher.Digest(sl.path)
	}

	walkErr := s.walk(gctx, job, res, progress, func(path string, info fs.FileInfo) {
		if !cutoff.IsZero() && !info.ModTime().Before(cutoff) {
			res.TooRecent++
			s.logger.Info("file skipped, modified within the age window", "job", job.Name, "path", path, "mtime", info.ModTime().Format(time.DateOnly))
			return
		}
		sl := &slot{path: path}
		slots = append(slots, sl)
		if s.workers == 1 {
			hash(sl)
			return
		}
		g.Go(func() error {
			hash(sl)
			return nil
		})
	})
	if err := g.Wait(); err != nil && walkErr == nil {
		walkErr = err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	out := &ScanResult{Snapshot: NewSnapshot()}
	for _, sl := range slots {
		if sl.err != nil {
			s.logger.Error("hashing failed", "job", job.Name, "path", sl.path, "error", sl.err)
			res.fail(sl.path)
			out.Failed = append(out.Failed, sl.path)
			continue
		}
		out.Snapshot.Put(FileRecord{Path: sl.path, Digest: sl.digest})
	}
	progress(ProgressEvent{Job: job.Name, Stage: StageScanning, Counters: res.Counters})
	return out, nil
}

// Partition reports which files the job's filters include and exclude
// without hashing anything. The age cutoff is not applied.
func (s *Scanner) Partition(ctx context.Context, job *Job, res *JobResult, progress ProgressFunc) error {
	return s.walk(ctx, job, res, progress, func(path string, _ fs.FileInfo) {
		res.IncludedFiles = append(res.IncludedFiles, path)
	})
}

// walk visits every regular file below job.BasePath, counts directories and
// filter decisions in res, and calls include for files that pass the filter.
func (s *Scanner) walk(ctx context.Context, job *Job, res *JobResult, progress ProgressFunc, include func(path string, info fs.FileInfo)) error {
	filter := job.filter()
	dryRun := job.TestFilters

	return s.fsmgr.Walk(job.BasePath, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == job.BasePath {
				return fmt.Errorf("walking %s: %w", path, err)
			}
			s.logger.Warn("cannot read entry, skipping", "job", job.Name, "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			res.Dirs++
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		res.Scanned++
		if !filter.Included(d.Name()) {
			res.Excluded++
			if dryRun {
				res.ExcludedFiles = append(res.ExcludedFiles, path)
			}
			progress(ProgressEvent{Job: job.Name, Stage: StageScanning, Path: path, Counters: res.Counters})
			return nil
		}
		res.Included++

		info, err := d.Info()
		if err != nil {
			s.logger.Error("stat failed", "job", job.Name, "path", path, "error", err)
			res.fail(path)
			return nil
		}
		include(path, info)
		progress(ProgressEvent{Job: job.Name, Stage: StageScanning, Path: path, Counters: res.Counters})
		return nil
	})
}
