package sbk

import (
	"io"
	"io/fs"
)

// FilesystemManager provides the filesystem operations the backup core needs.
// It abstracts file access so the scanner, pipeline and cleanup steps can be
// exercised against temporary trees in tests.
type FilesystemManager interface {
	// Walk walks the tree rooted at root in lexical order, calling fn for
	// each file or directory, with filepath.WalkDir semantics.
	Walk(root string, fn fs.WalkDirFunc) error

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// Remove deletes a single file. A missing file is not an error.
	Remove(path string) error

	// RemoveEmptyDirs deletes every empty directory below root, deepest
	// first, and returns how many were removed. root itself is kept.
	RemoveEmptyDirs(root string) (int, error)
}

// Filter decides whether a file name takes part in a backup.
// Exclusion always wins over inclusion.
type Filter interface {
	Included(name string) bool
}

// AllFiles is a Filter that includes every file.
type AllFiles struct{}

func (AllFiles) Included(string) bool { return true }
