package sbk_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"

	"sbk-go/internal/database"
	sbkfs "sbk-go/internal/fs"
	"sbk-go/internal/sbk"
	"sbk-go/internal/staging"
	"sbk-go/internal/testutil"
	"sbk-go/internal/vault"
)

// fixture wires a Service against a real temp tree, an in-memory database
// and an in-memory vault.
type fixture struct {
	t        *testing.T
	tree     *testutil.Tree
	fsmgr    sbk.FilesystemManager
	db       *database.SQLiteDatabase
	vault    *vault.MemoryVault
	area     *staging.Area
	clock    *testutil.StubClock
	progress *testutil.ProgressRecorder
	svc      *sbk.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		tree:     testutil.NewTree(t),
		fsmgr:    sbkfs.NewOSFilesystemManager(),
		db:       testutil.NewTestDatabase(t),
		vault:    testutil.NewTestVault(),
		area:     testutil.NewTestArea(t),
		clock:    testutil.FixedClock(),
		progress: &testutil.ProgressRecorder{},
	}
	f.rebuild()
	return f
}

// rebuild recreates the service, e.g. after swapping fsmgr.
func (f *fixture) rebuild() {
	f.svc = sbk.NewService(f.db, f.fsmgr, sbk.NewNopLogger(), f.clock, testutil.NewStubIDGenerator())
	f.svc.SetProgress(f.progress.Record)
}

func (f *fixture) job() *sbk.Job {
	return &sbk.Job{
		Name:         "docs",
		BasePath:     f.tree.Root,
		RemotePrefix: "backup",
		Upload:       true,
		Vault:        f.vault,
		Encryptor:    testutil.NewTestEncryptor(),
		Temp:         f.area,
	}
}

func (f *fixture) run(job *sbk.Job) *sbk.JobResult {
	f.t.Helper()
	res, err := f.svc.RunJob(context.Background(), job)
	if err != nil {
		f.t.Fatalf("RunJob() error = %v", err)
	}
	return res
}

// rel converts absolute paths under the tree root to sorted slash paths.
func (f *fixture) rel(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := filepath.Rel(f.tree.Root, p)
		if err != nil {
			f.t.Fatalf("rel: %v", err)
		}
		out = append(out, filepath.ToSlash(r))
	}
	sort.Strings(out)
	return out
}

func assertStrings(t *testing.T, what string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", what, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s = %v, want %v", what, got, want)
		}
	}
}

func gunzip(t *testing.T, data []byte) []byte {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	out, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("gunzip: %v", err)
	}
	return out
}

// untar returns the entries of a tar.gz archive keyed by name.
func untar(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	tr := tar.NewReader(bytes.NewReader(gunzip(t, data)))
	entries := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("tar body: %v", err)
		}
		entries[hdr.Name] = body
	}
	return entries
}

func decrypt(t *testing.T, data []byte) []byte {
	t.Helper()
	dc, _ := testutil.NewTestEncryptor().Unlock("")
	var out bytes.Buffer
	if err := dc.Decrypt(bytes.NewReader(data), &out); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	return out.Bytes()
}
