package testutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"sbk-go/internal/sbk"
)

// Tree builds a directory of test files under a temp root.
type Tree struct {
	t    *testing.T
	Root string
}

// NewTree creates an empty tree in a fresh temp directory.
func NewTree(t *testing.T) *Tree {
	t.Helper()
	return &Tree{t: t, Root: t.TempDir()}
}

// Path returns the absolute path of rel inside the tree.
func (tr *Tree) Path(rel string) string {
	return filepath.Join(tr.Root, filepath.FromSlash(rel))
}

// Write creates or replaces a file with content. Its modification time is
// left as the current time.
func (tr *Tree) Write(rel, content string) string {
	tr.t.Helper()
	path := tr.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tr.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tr.t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

// WriteAt creates a file and sets its modification time.
func (tr *Tree) WriteAt(rel, content string, mtime time.Time) string {
	tr.t.Helper()
	path := tr.Write(rel, content)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		tr.t.Fatalf("chtimes %s: %v", rel, err)
	}
	return path
}

// Mkdir creates an empty directory.
func (tr *Tree) Mkdir(rel string) string {
	tr.t.Helper()
	path := tr.Path(rel)
	if err := os.MkdirAll(path, 0o755); err != nil {
		tr.t.Fatalf("mkdir: %v", err)
	}
	return path
}

// Exists reports whether rel exists.
func (tr *Tree) Exists(rel string) bool {
	_, err := os.Stat(tr.Path(rel))
	return err == nil
}

// Files lists every regular file in the tree as slash-separated relative paths, sorted.
func (tr *Tree) Files() []string {
	tr.t.Helper()
	var files []string
	err := filepath.Walk(tr.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			rel, _ := filepath.Rel(tr.Root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		tr.t.Fatalf("walk: %v", err)
	}
	sort.Strings(files)
	return files
}

// FaultyFS wraps a FilesystemManager and fails Open for chosen paths, as a
// file that becomes unreadable mid-run would.
type FaultyFS struct {
	sbk.FilesystemManager

	mu       sync.Mutex
	failOpen map[string]bool
}

// NewFaultyFS wraps inner.
func NewFaultyFS(inner sbk.FilesystemManager) *FaultyFS {
	return &FaultyFS{FilesystemManager: inner, failOpen: make(map[string]bool)}
}

// FailOpen makes every later Open of path fail.
func (f *FaultyFS) FailOpen(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOpen[path] = true
}

func (f *FaultyFS) Open(path string) (io.ReadCloser, error) {
	f.mu.Lock()
	fail := f.failOpen[path]
	f.mu.Unlock()
	if fail {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}
	}
	return f.FilesystemManager.Open(path)
}
