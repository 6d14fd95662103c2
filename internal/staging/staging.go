package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"sbk-go/internal/sbk"
)

// tempPrefix marks files owned by a staging area so leftovers from an
// interrupted run can be swept.
const tempPrefix = ".sbk-"

// Area is a directory of temporary artifacts. Every file it creates has a
// unique name, so concurrent units never collide, and is tracked until
// removed.
type Area struct {
	dir string

	mu    sync.Mutex
	files map[string]struct{}
}

// NewArea creates the staging directory if needed.
func NewArea(dir string) (*Area, error) {
	if dir == "" {
		return nil, errors.New("staging directory is not set")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving staging directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &Area{dir: abs, files: make(map[string]struct{})}, nil
}

// Dir returns the staging directory.
func (a *Area) Dir() string {
	return a.dir
}

// Create creates a new empty file whose name ends with the base of name.
func (a *Area) Create(name string) (*os.File, error) {
	path := filepath.Join(a.dir, tempPrefix+uuid.NewString()+"-"+filepath.Base(name))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.files[path] = struct{}{}
	a.mu.Unlock()
	return f, nil
}

// Remove deletes a file created by Create. Removing a file twice is not an
// error.
func (a *Area) Remove(path string) error {
	a.mu.Lock()
	delete(a.files, path)
	a.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Outstanding returns the files created and not yet removed, sorted.
func (a *Area) Outstanding() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	paths := make([]string, 0, len(a.files))
	for p := range a.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Sweep removes staging files left in the directory by earlier runs that
// did not finish. Files this area is tracking are kept.
func (a *Area) Sweep() (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, fmt.Errorf("reading staging directory: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		path := filepath.Join(a.dir, e.Name())
		if _, ok := a.files[path]; ok {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("removing %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

// Close removes every outstanding file.
func (a *Area) Close() error {
	var errs []error
	for _, path := range a.Outstanding() {
		if err := a.Remove(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compile-time check that Area implements sbk.TempArea interface
var _ sbk.TempArea = (*Area)(nil)
