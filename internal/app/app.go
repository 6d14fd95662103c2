package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"sbk-go/internal/config"
	"sbk-go/internal/database"
	"sbk-go/internal/encryption"
	"sbk-go/internal/fs"
	"sbk-go/internal/sbk"
	"sbk-go/internal/staging"
	"sbk-go/internal/vault"
)

// SbkApp is the application layer between the CLI and sbk.Service.
// It constructs all dependencies from config, runs the configured jobs one
// after another, and manages the DB and log file lifecycle on Close.
type SbkApp struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	fsmgr   *fs.OSFilesystemManager
	logger  sbk.Logger
	logFile *dailyFile
	service *sbk.Service
	runID   string

	// buildJob is replaceable in tests.
	buildJob func(ctx context.Context, jc config.JobConfig) (*sbk.Job, func(), error)
}

// NewSbkApp creates a fully wired SbkApp from the given config. Warnings and
// errors are mirrored to stderr. The caller must call Close when done.
func NewSbkApp(cfg *config.Config, stderr io.Writer) (*SbkApp, error) {
	runID := uuid.New().String()
	logger, logFile, err := newLogger(cfg.LogDir, runID, stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg, sbk.RealClock{})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager()
	adapter := &slogAdapter{l: logger}
	svc := sbk.NewService(db, fsmgr, adapter, sbk.RealClock{}, sbk.UUIDGenerator{})
	svc.SetWorkers(cfg.Workers)

	a := &SbkApp{
		cfg:     cfg,
		db:      db,
		fsmgr:   fsmgr,
		logger:  adapter,
		logFile: logFile,
		service: svc,
		runID:   runID,
	}
	a.buildJob = a.buildJobFromConfig
	return a, nil
}

// SetProgress installs the progress callback used for every job.
func (a *SbkApp) SetProgress(fn sbk.ProgressFunc) {
	a.service.SetProgress(fn)
}

// ReportToConsole prints progress to f.
func (a *SbkApp) ReportToConsole(f *os.File) {
	a.SetProgress(newConsoleReporter(f).Report)
}

// RunAll runs every configured job in file order. A job that fails, or
// panics, is logged and recorded and the next job still runs. The returned
// error joins the job-level errors; per-unit failures only show in the
// results.
func (a *SbkApp) RunAll(ctx context.Context) ([]*sbk.JobResult, error) {
	jobs := a.cfg.OrderedJobs()
	a.logger.Info("run started", "jobs", len(jobs))

	var results []*sbk.JobResult
	var errs []error
	for _, jc := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := a.runJob(ctx, jc)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", jc.Name, err))
		}
	}

	a.logger.Info("run finished", "jobs", len(results), "failed_jobs", len(errs))
	return results, errors.Join(errs...)
}

// runJob builds and runs one job, turning a panic into a job error.
func (a *SbkApp) runJob(ctx context.Context, jc config.JobConfig) (res *sbk.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			a.logger.Error("job panicked", "job", jc.Name, "panic", r)
			res = a.recordFailure(jc, err)
		}
	}()

	job, cleanup, err := a.buildJob(ctx, jc)
	if err != nil {
		a.logger.Error("job setup failed", "job", jc.Name, "error", err)
		return a.recordFailure(jc, err), err
	}
	defer cleanup()

	return a.service.RunJob(ctx, job)
}

// recordFailure stores a run that failed before the service could start it.
func (a *SbkApp) recordFailure(jc config.JobConfig, err error) *sbk.JobResult {
	now := sbk.RealClock{}.Now()
	res := &sbk.JobResult{
		RunID:      uuid.New().String(),
		Job:        jc.Name,
		Status:     sbk.StatusError,
		Err:        err,
		StartedAt:  now,
		FinishedAt: now,
	}
	if rerr := a.db.RecordRun(res); rerr != nil {
		a.logger.Warn("recording run history failed", "job", jc.Name, "error", rerr)
	}
	return res
}

// buildJobFromConfig wires the filter, vault, encryptor and staging area a
// job needs. The returned cleanup closes the staging area.
func (a *SbkApp) buildJobFromConfig(ctx context.Context, jc config.JobConfig) (*sbk.Job, func(), error) {
	filter, err := fs.NewFilterMatcher(jc.Include, jc.Exclude, jc.IgnoreCase)
	if err != nil {
		return nil, nil, err
	}

	job := &sbk.Job{
		Name:            jc.Name,
		BasePath:        jc.BasePath,
		RemotePrefix:    jc.RemotePrefix,
		Compress:        jc.Compress,
		Encrypt:         jc.Encrypt,
		Upload:          jc.Upload,
		Compression:     sbk.Compression(jc.Compression),
		ConsiderOlder:   jc.ConsiderOlder,
		Filter:          filter,
		Archive:         jc.Archive,
		ArchiveDepth:    jc.ArchiveDepth,
		DeleteSource:    jc.DeleteSource,
		DeleteEmptyDirs: jc.DeleteEmptyDirs,
		SnapshotName:    jc.SnapshotName,
		TestFilters:     jc.TestFilters,
		TestArchive:     jc.TestArchive,
	}
	cleanup := func() {}
	if job.TestFilters || job.TestArchive {
		return job, cleanup, nil
	}

	if job.Upload {
		v, err := vault.NewVaultFromConfig(ctx, a.cfg, jc)
		if err != nil {
			return nil, nil, fmt.Errorf("creating vault: %w", err)
		}
		if err := v.ValidateSetup(ctx); err != nil {
			return nil, nil, fmt.Errorf("validating vault: %w", err)
		}
		job.Vault = v
	}

	if job.Encrypt {
		enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption, jc.KeyID)
		if err != nil {
			return nil, nil, fmt.Errorf("creating encryptor: %w", err)
		}
		job.Encryptor = enc
	}

	if job.Compress || job.Encrypt || job.Archive {
		area, swept, err := staging.NewAreaFromConfig(jc)
		if err != nil {
			return nil, nil, fmt.Errorf("creating staging area: %w", err)
		}
		if swept > 0 {
			a.logger.Warn("removed leftover temporary files", "job", jc.Name, "count", swept)
		}
		job.Temp = area
		cleanup = func() {
			if err := area.Close(); err != nil {
				a.logger.Warn("closing staging area", "job", jc.Name, "error", err)
			}
		}
	}

	return job, cleanup, nil
}

// History returns the most recent job runs, newest first.
func (a *SbkApp) History(limit int) ([]*sbk.RunRecord, error) {
	return a.db.ListRuns(limit)
}

// Close closes the database and the log file.
func (a *SbkApp) Close() error {
	var errs []error
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	if err := a.logFile.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing log file: %w", err))
	}
	return errors.Join(errs...)
}
