package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"sbk-go/internal/sbk"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// It mirrors object keys into a directory tree and keeps each object's
// metadata in a TOML sidecar:
//
//	<root>/
//	  objects/
//	    <key>          (object content)
//	  metadata/
//	    <key>.toml     (object metadata)
type FileSystemVault struct {
	name        string
	root        string
	objectsDir  string
	metadataDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	objectsDir := filepath.Join(root, "objects")
	metadataDir := filepath.Join(root, "metadata")

	for _, dir := range []string{objectsDir, metadataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	return &FileSystemVault{
		name:        name,
		root:        root,
		objectsDir:  objectsDir,
		metadataDir: metadataDir,
	}, nil
}

// Put stores an object and its metadata. An existing object under the same
// key is replaced.
func (v *FileSystemVault) Put(ctx context.Context, key string, r io.Reader, size int64, metadata map[string]string) error {
	rel, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	objPath := filepath.Join(v.objectsDir, rel)
	if err := writeFileAtomic(objPath, r, size); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}

	if metadata == nil {
		metadata = map[string]string{}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(metadata); err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", key, err)
	}
	metaPath := filepath.Join(v.metadataDir, rel+".toml")
	if err := writeFileAtomic(metaPath, &buf, int64(buf.Len())); err != nil {
		return fmt.Errorf("storing metadata for %s: %w", key, err)
	}
	return nil
}

// Get writes the object stored under key to w.
func (v *FileSystemVault) Get(key string, w io.Writer) error {
	rel, err := cleanKey(key)
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(v.objectsDir, rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("object not found: %s", key)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

// Metadata returns the metadata stored with the object under key.
func (v *FileSystemVault) Metadata(key string) (map[string]string, error) {
	rel, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	metadata := make(map[string]string)
	if _, err := toml.DecodeFile(filepath.Join(v.metadataDir, rel+".toml"), &metadata); err != nil {
		return nil, fmt.Errorf("reading metadata for %s: %w", key, err)
	}
	return metadata, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	for _, dir := range []string{v.objectsDir, v.metadataDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// cleanKey turns an object key into a relative filesystem path, rejecting
// keys that would escape the vault.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if key == "" || cleaned == "/" || slices.Contains(strings.Split(key, "/"), "..") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.FromSlash(strings.TrimPrefix(cleaned, "/")), nil
}

// writeFileAtomic writes r to destPath through a temp file and rename, and
// checks that exactly expectedSize bytes were written.
func writeFileAtomic(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements sbk.Vault interface
var _ sbk.Vault = (*FileSystemVault)(nil)
