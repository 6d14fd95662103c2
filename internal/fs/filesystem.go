package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"sbk-go/internal/sbk"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Walk walks the tree rooted at root with filepath.WalkDir. A symlinked
// root is followed; symlinks below it are reported but not followed.
// Paths passed to fn always start with root as given.
func (m *OSFilesystemManager) Walk(root string, fn fs.WalkDirFunc) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil || resolved == filepath.Clean(root) {
		return filepath.WalkDir(root, fn)
	}
	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		return fn(underRoot(root, resolved, path), d, err)
	})
}

// underRoot rewrites path, found below resolved, to the same place below root.
func underRoot(root, resolved, path string) string {
	rel, err := filepath.Rel(resolved, path)
	if err != nil {
		return path
	}
	if rel == "." {
		return root
	}
	return filepath.Join(root, rel)
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path)
	}
	return os.Open(path)
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Remove deletes a single file. A file that is already gone is not an error.
func (m *OSFilesystemManager) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveEmptyDirs removes every directory below root that is empty, or
// becomes empty once its empty subdirectories are gone. root is kept.
func (m *OSFilesystemManager) RemoveEmptyDirs(root string) (int, error) {
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking %s: %w", root, err)
	}

	// Deepest first so parents see their children already removed.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			return removed, fmt.Errorf("removing %s: %w", dir, err)
		}
		removed++
	}
	return removed, nil
}

// Compile-time check that OSFilesystemManager implements sbk.FilesystemManager interface
var _ sbk.FilesystemManager = (*OSFilesystemManager)(nil)
