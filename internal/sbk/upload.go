package sbk

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// MetadataLastModified is the object metadata key carrying the local
// modification date of the source file or directory.
const MetadataLastModified = "local-last-modified"

// RemoteKey builds the object key for an artifact:
// remotePrefix/relative directory/artifact name. The prefix is omitted when
// empty and the relative directory when original sits directly under
// basePath.
func RemoteKey(basePath, remotePrefix, original, artifactName string) string {
	var parts []string
	if prefix := strings.Trim(remotePrefix, "/"); prefix != "" {
		parts = append(parts, prefix)
	}
	if original != basePath {
		rel, err := filepath.Rel(basePath, filepath.Dir(original))
		if err == nil && rel != "." && !outsideBase(rel) {
			parts = append(parts, filepath.ToSlash(rel))
		}
	}
	parts = append(parts, artifactName)
	return path.Join(parts...)
}

// Uploader ships artifacts to a job's vault.
type Uploader struct {
	fsmgr  FilesystemManager
	logger Logger
}

// NewUploader creates an Uploader.
func NewUploader(fsmgr FilesystemManager, logger Logger) *Uploader {
	return &Uploader{fsmgr: fsmgr, logger: logger}
}

// Upload stores artifact a in job's vault under the key derived from
// original and tags it with modTime. It returns the key. Failures are
// returned to the caller and never retried here.
func (u *Uploader) Upload(ctx context.Context, job *Job, a *Artifact, original string, modTime time.Time) (string, error) {
	key := RemoteKey(job.BasePath, job.RemotePrefix, original, a.Name)
	if job.Vault == nil {
		return key, errors.New("no vault configured")
	}

	info, err := u.fsmgr.Stat(a.Path)
	if err != nil {
		return key, fmt.Errorf("stat artifact: %w", err)
	}
	f, err := u.fsmgr.Open(a.Path)
	if err != nil {
		return key, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	metadata := map[string]string{MetadataLastModified: modTime.Format(time.DateOnly)}
	if err := job.Vault.Put(ctx, key, f, info.Size(), metadata); err != nil {
		return key, fmt.Errorf("uploading %s: %w", key, err)
	}
	u.logger.Info("uploaded", "job", job.Name, "key", key, "size", info.Size())
	return key, nil
}
