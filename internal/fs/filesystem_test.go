package fs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestOSFilesystemManager_Walk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "b")
	writeFile(t, filepath.Join(root, "a", "x.txt"), "x")

	m := NewOSFilesystemManager()
	var files []string
	err := m.Walk(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	want := []string{"a/x.txt", "b.txt"}
	if len(files) != len(want) {
		t.Fatalf("got %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestOSFilesystemManager_Walk_SymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	writeFile(t, filepath.Join(target, "y.txt"), "y")
	writeFile(t, filepath.Join(target, "a", "x.txt"), "x")
	link := filepath.Join(t.TempDir(), "data")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	var dirs, files []string
	err := NewOSFilesystemManager().Walk(link, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	wantDirs := []string{link, filepath.Join(link, "a")}
	wantFiles := []string{filepath.Join(link, "a", "x.txt"), filepath.Join(link, "y.txt")}
	if len(dirs) != len(wantDirs) || dirs[0] != wantDirs[0] || dirs[1] != wantDirs[1] {
		t.Errorf("dirs = %v, want %v", dirs, wantDirs)
	}
	if len(files) != len(wantFiles) || files[0] != wantFiles[0] || files[1] != wantFiles[1] {
		t.Errorf("files = %v, want %v", files, wantFiles)
	}
}

func TestOSFilesystemManager_RemoveEmptyDirs_SymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	if err := os.MkdirAll(filepath.Join(target, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(t.TempDir(), "data")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	n, err := NewOSFilesystemManager().RemoveEmptyDirs(link)
	if err != nil {
		t.Fatalf("RemoveEmptyDirs: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("link target removed: %v", err)
	}
}

func TestOSFilesystemManager_Open(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "f.txt")
	writeFile(t, path, "hello")
	m := NewOSFilesystemManager()

	t.Run("reads file", func(t *testing.T) {
		rc, err := m.Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("got %q, want %q", data, "hello")
		}
	})

	t.Run("rejects directory", func(t *testing.T) {
		if _, err := m.Open(root); err == nil {
			t.Error("expected error opening a directory")
		}
	})
}

func TestOSFilesystemManager_Remove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "f.txt")
	writeFile(t, path, "x")
	m := NewOSFilesystemManager()

	if err := m.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists: %v", err)
	}
	if err := m.Remove(path); err != nil {
		t.Errorf("removing a missing file should succeed, got %v", err)
	}
}

func TestOSFilesystemManager_RemoveEmptyDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep", "file.txt"), "x")
	for _, dir := range []string{"empty", "nested/deeper/deepest", "keep/empty"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	m := NewOSFilesystemManager()
	n, err := m.RemoveEmptyDirs(root)
	if err != nil {
		t.Fatalf("RemoveEmptyDirs: %v", err)
	}
	// empty, nested, nested/deeper, nested/deeper/deepest, keep/empty
	if n != 5 {
		t.Errorf("removed %d directories, want 5", n)
	}

	for _, gone := range []string{"empty", "nested", "keep/empty"} {
		if _, err := os.Stat(filepath.Join(root, gone)); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", gone)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "keep", "file.txt")); err != nil {
		t.Errorf("file removed: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root removed: %v", err)
	}
}

func TestOSFilesystemManager_RemoveEmptyDirs_EmptyRootKept(t *testing.T) {
	root := t.TempDir()
	n, err := NewOSFilesystemManager().RemoveEmptyDirs(root)
	if err != nil {
		t.Fatalf("RemoveEmptyDirs: %v", err)
	}
	if n != 0 {
		t.Errorf("removed %d, want 0", n)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root removed: %v", err)
	}
}
