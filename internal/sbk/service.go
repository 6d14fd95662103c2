package sbk

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Service runs backup jobs: scan, diff against the previous snapshot,
// transform and upload every changed unit, persist the new snapshot and
// clean up.
type Service struct {
	database Database
	fsmgr    FilesystemManager
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	hasher   *Hasher
	progress ProgressFunc
	workers  int
}

// NewService creates a new Service with the provided dependencies.
func NewService(database Database, fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		database: database,
		fsmgr:    fsmgr,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		hasher:   NewHasher(fsmgr, DefaultBlockSize),
		progress: nopProgress,
		workers:  1,
	}
}

// SetProgress installs a progress callback. nil disables progress reporting.
func (s *Service) SetProgress(fn ProgressFunc) {
	if fn == nil {
		fn = nopProgress
	}
	s.progress = fn
}

// SetWorkers sets how many files are hashed concurrently during a scan.
func (s *Service) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

// RunJob runs one backup job to completion and records it in the run
// history. Per-unit failures are counted in the result and never abort the
// job. A returned error means the job itself could not complete; the
// snapshot is then left untouched and nothing is deleted.
func (s *Service) RunJob(ctx context.Context, job *Job) (*JobResult, error) {
	res := &JobResult{
		RunID:     s.idgen.New(),
		Job:       job.Name,
		StartedAt: s.clock.Now(),
	}
	s.logger.Info("job started", "job", job.Name, "run_id", res.RunID, "base_path", job.BasePath)

	err := s.runJob(ctx, job, res)

	res.FinishedAt = s.clock.Now()
	switch {
	case err != nil:
		res.Status = StatusError
		res.Err = err
		s.logger.Error("job failed", "job", job.Name, "error", err)
	case job.TestFilters || job.TestArchive:
		res.Status = StatusDryRun
	default:
		res.Status = StatusSuccess
	}
	s.emit(job, res, StageDone, "", 0)

	if err := s.database.RecordRun(res); err != nil {
		s.logger.Warn("recording run history failed", "job", job.Name, "error", err)
	}
	s.logger.Info("job finished",
		"job", job.Name,
		"status", res.Status,
		"scanned", res.Scanned,
		"changed", res.Changed,
		"compressed", res.Compressed,
		"encrypted", res.Encrypted,
		"uploaded", res.Uploaded,
		"failed", res.Failed,
		"duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
	)
	return res, err
}

func (s *Service) runJob(ctx context.Context, job *Job, res *JobResult) error {
	if err := s.checkJob(job); err != nil {
		return err
	}
	scanner := NewScanner(s.fsmgr, s.hasher, s.logger, s.clock, s.workers)

	if job.TestFilters {
		if err := scanner.Partition(ctx, job, res, s.progress); err != nil {
			return fmt.Errorf("scanning %s: %w", job.BasePath, err)
		}
		s.logger.Info("filter test complete", "job", job.Name, "included", res.Included, "excluded", res.Excluded)
		return nil
	}

	scan, err := scanner.Scan(ctx, job, res, s.progress)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", job.BasePath, err)
	}

	s.emit(job, res, StageDiffing, "", 0)
	previous, err := s.database.LoadSnapshot(job.SnapshotKey())
	if err != nil {
		return fmt.Errorf("loading snapshot %q: %w", job.SnapshotKey(), err)
	}
	if previous == nil {
		s.logger.Info("no previous snapshot, every file is new", "job", job.Name, "snapshot", job.SnapshotKey())
	}
	changes := DetectChanges(scan.Snapshot, previous, job.Archive, job.BasePath, job.ArchiveDepth)
	res.Changed = len(changes.Paths)
	res.ChangedPaths = changes.Paths
	res.Groups = changes.Groups
	s.logger.Info("changes detected", "job", job.Name, "changed", res.Changed, "groups", len(res.Groups))

	if job.TestArchive {
		for _, g := range changes.Groups {
			s.logger.Info("archive group", "job", job.Name, "dir", g.Dir, "files", len(g.Files))
		}
		return nil
	}

	succeeded, err := s.processUnits(ctx, job, changes, res)
	if err != nil {
		return err
	}

	s.emit(job, res, StagePersisting, "", 0)
	if err := s.database.SaveSnapshot(job.SnapshotKey(), scan.Snapshot); err != nil {
		return fmt.Errorf("persisting snapshot %q: %w", job.SnapshotKey(), err)
	}

	s.cleanup(job, succeeded, res)
	return nil
}

// checkJob rejects jobs that cannot run at all.
func (s *Service) checkJob(job *Job) error {
	info, err := s.fsmgr.Stat(job.BasePath)
	if err != nil {
		return fmt.Errorf("base path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("base path is not a directory: %s", job.BasePath)
	}
	if job.TestFilters {
		return nil
	}
	if (job.Compress || job.Encrypt || job.Archive) && job.Temp == nil {
		return errors.New("no temp area configured")
	}
	if job.Encrypt && job.Encryptor == nil {
		return errors.New("encryption enabled but no encryptor configured")
	}
	if job.Upload && job.Vault == nil {
		return errors.New("upload enabled but no vault configured")
	}
	return nil
}

// processUnits transforms and uploads every changed unit and returns the
// source files whose unit went through without failure. Only cancellation
// stops it early.
func (s *Service) processUnits(ctx context.Context, job *Job, changes *ChangeSet, res *JobResult) ([]string, error) {
	units := len(changes.Paths)
	if job.Archive {
		units = len(changes.Groups)
	}

	pipeline := NewPipeline(job, s.fsmgr, s.logger)
	pipeline.onStage = func(stage Stage, path string) {
		s.emit(job, res, stage, path, units)
	}
	uploader := NewUploader(s.fsmgr, s.logger)

	var succeeded []string
	if job.Archive {
		s.warnSharedArchiveKeys(job, changes.Groups)
		for _, g := range changes.Groups {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			succeeded = append(succeeded, s.processGroup(ctx, job, pipeline, uploader, g, res, units)...)
		}
		return succeeded, nil
	}

	for _, path := range changes.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.processFile(ctx, job, pipeline, uploader, path, res, units) {
			succeeded = append(succeeded, path)
		}
	}
	return succeeded, nil
}

// warnSharedArchiveKeys logs groups whose archives land on the same object
// key. A subdirectory of base_path named like base_path itself collides with
// the base group; the later upload replaces the earlier one.
func (s *Service) warnSharedArchiveKeys(job *Job, groups []ArchiveGroup) {
	seen := make(map[string]string, len(groups))
	for _, g := range groups {
		key := RemoteKey(job.BasePath, job.RemotePrefix, g.Dir, filepath.Base(g.Dir)+".tar.gz")
		if first, ok := seen[key]; ok {
			s.logger.Warn("archive groups share an object key", "job", job.Name, "key", key, "dir", g.Dir, "other", first)
			continue
		}
		seen[key] = g.Dir
	}
}

func (s *Service) processFile(ctx context.Context, job *Job, pipeline *Pipeline, uploader *Uploader, path string, res *JobResult, units int) bool {
	info, err := s.fsmgr.Stat(path)
	if err != nil {
		s.logger.Error("stat failed", "job", job.Name, "path", path, "error", err)
		res.fail(path)
		return false
	}

	a, err := pipeline.Prepare(path, job.Compress, job.Encrypt)
	if err != nil {
		s.logger.Error("transform failed", "job", job.Name, "path", path, "error", err)
		res.fail(path)
		return false
	}
	defer pipeline.Release(a)
	if a.Compressed {
		res.Compressed++
	}
	if a.Encrypted {
		res.Encrypted++
	}

	if !job.Upload {
		return true
	}
	s.emit(job, res, StageUploading, path, units)
	key, err := uploader.Upload(ctx, job, a, path, info.ModTime())
	if err != nil {
		s.logger.Error("upload failed", "job", job.Name, "path", path, "key", key, "error", err)
		res.fail(path)
		return false
	}
	res.Uploaded++
	return true
}

// processGroup archives and uploads one group. A file that could not be
// transformed is its own failed unit; the rest of the group is still
// archived. A failure of the archive as a whole fails the group once.
func (s *Service) processGroup(ctx context.Context, job *Job, pipeline *Pipeline, uploader *Uploader, g ArchiveGroup, res *JobResult, units int) []string {
	a, report, err := pipeline.BuildArchive(g, job.Compress, job.Encrypt)
	res.Compressed += report.Compressed
	res.Encrypted += report.Encrypted
	for _, f := range report.Failed {
		res.fail(f)
	}
	if err != nil {
		s.logger.Error("archive failed", "job", job.Name, "dir", g.Dir, "error", err)
		res.fail(g.Dir)
		return nil
	}
	defer pipeline.Release(a)

	if len(report.Added) == 0 {
		s.logger.Warn("archive is empty, skipping", "job", job.Name, "dir", g.Dir)
		return nil
	}
	res.Archived++

	if !job.Upload {
		return report.Added
	}
	modTime := s.clock.Now()
	if info, err := s.fsmgr.Stat(g.Dir); err == nil {
		modTime = info.ModTime()
	}
	s.emit(job, res, StageUploading, g.Dir, units)
	key, err := uploader.Upload(ctx, job, a, g.Dir, modTime)
	if err != nil {
		s.logger.Error("upload failed", "job", job.Name, "dir", g.Dir, "key", key, "error", err)
		res.fail(g.Dir)
		return nil
	}
	res.Uploaded++
	return report.Added
}

// cleanup runs the destructive post-steps. It only runs once the snapshot is
// persisted, and its failures are logged, not returned.
func (s *Service) cleanup(job *Job, succeeded []string, res *JobResult) {
	if !job.DeleteSource && !job.DeleteEmptyDirs {
		return
	}
	s.emit(job, res, StageCleanup, "", 0)

	if job.DeleteSource {
		for _, path := range succeeded {
			if err := s.fsmgr.Remove(path); err != nil {
				s.logger.Warn("deleting source failed", "job", job.Name, "path", path, "error", err)
				continue
			}
			res.Deleted++
		}
	}
	if job.DeleteEmptyDirs {
		n, err := s.fsmgr.RemoveEmptyDirs(job.BasePath)
		if err != nil {
			s.logger.Warn("pruning empty directories failed", "job", job.Name, "error", err)
		}
		res.PrunedDirs = n
	}
	s.logger.Info("cleanup complete", "job", job.Name, "deleted", res.Deleted, "pruned_dirs", res.PrunedDirs)
}

func (s *Service) emit(job *Job, res *JobResult, stage Stage, path string, units int) {
	s.progress(ProgressEvent{Job: job.Name, Stage: stage, Path: path, Counters: res.Counters, Units: units})
}
