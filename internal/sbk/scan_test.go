package sbk_test

import (
	"context"
	"testing"
	"time"

	sbkfs "sbk-go/internal/fs"
	"sbk-go/internal/sbk"
	"sbk-go/internal/testutil"
)

func scan(t *testing.T, fsmgr sbk.FilesystemManager, clock sbk.Clock, workers int, job *sbk.Job) (*sbk.ScanResult, *sbk.JobResult) {
	t.Helper()
	res := &sbk.JobResult{}
	s := sbk.NewScanner(fsmgr, sbk.NewHasher(fsmgr, 0), sbk.NewNopLogger(), clock, workers)
	out, err := s.Scan(context.Background(), job, res, func(sbk.ProgressEvent) {})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return out, res
}

func mustFilter(t *testing.T, include, exclude string, ignoreCase bool) sbk.Filter {
	t.Helper()
	m, err := sbkfs.NewFilterMatcher(include, exclude, ignoreCase)
	if err != nil {
		t.Fatalf("NewFilterMatcher() error = %v", err)
	}
	return m
}

func TestScanner_Filters(t *testing.T) {
	tests := []struct {
		name         string
		include      string
		exclude      string
		ignoreCase   bool
		wantIncluded []string
		wantExcluded int
	}{
		{
			name:         "no filters",
			wantIncluded: []string{"a.txt", "b.log", "sub/C.TXT", "sub/d.tmp"},
		},
		{
			name:         "include pattern",
			include:      `\.txt$`,
			wantIncluded: []string{"a.txt"},
			wantExcluded: 3,
		},
		{
			name:         "include ignoring case",
			include:      `\.txt$`,
			ignoreCase:   true,
			wantIncluded: []string{"a.txt", "sub/C.TXT"},
			wantExcluded: 2,
		},
		{
			name:         "exclude pattern",
			exclude:      `\.(tmp|log)$`,
			wantIncluded: []string{"a.txt", "sub/C.TXT"},
			wantExcluded: 2,
		},
		{
			name:         "exclude wins over include",
			include:      `\.(txt|tmp)$`,
			exclude:      `^d\.`,
			wantIncluded: []string{"a.txt"},
			wantExcluded: 3,
		},
		{
			name:         "pattern matches anywhere in the name",
			include:      `log`,
			wantIncluded: []string{"b.log"},
			wantExcluded: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tree := testutil.NewTree(t)
			tree.Write("a.txt", "a")
			tree.Write("b.log", "b")
			tree.Write("sub/C.TXT", "c")
			tree.Write("sub/d.tmp", "d")

			job := &sbk.Job{Name: "t", BasePath: tree.Root, Filter: mustFilter(t, tt.include, tt.exclude, tt.ignoreCase)}
			out, res := scan(t, sbkfs.NewOSFilesystemManager(), testutil.FixedClock(), 1, job)

			f := &fixture{t: t, tree: tree}
			assertStrings(t, "included", f.rel(out.Snapshot.Paths()), tt.wantIncluded)
			if res.Scanned != 4 {
				t.Errorf("Scanned = %d, want 4", res.Scanned)
			}
			if res.Excluded != tt.wantExcluded {
				t.Errorf("Excluded = %d, want %d", res.Excluded, tt.wantExcluded)
			}
			if res.Included != len(tt.wantIncluded) {
				t.Errorf("Included = %d, want %d", res.Included, len(tt.wantIncluded))
			}
			if res.Dirs != 2 {
				t.Errorf("Dirs = %d, want 2", res.Dirs)
			}
		})
	}
}

func TestScanner_ConsiderOlder(t *testing.T) {
	clock := testutil.FixedClock()
	now := clock.Now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day()-5, 0, 0, 0, 0, now.Location())

	tests := []struct {
		name          string
		considerOlder int
		mtime         time.Time
		wantIncluded  bool
	}{
		{name: "disabled includes fresh files", considerOlder: 0, mtime: now, wantIncluded: true},
		{name: "modified yesterday", considerOlder: 5, mtime: clock.DaysAgo(1), wantIncluded: false},
		{name: "modified ten days ago", considerOlder: 5, mtime: clock.DaysAgo(10), wantIncluded: true},
		{name: "modified exactly at the cutoff", considerOlder: 5, mtime: cutoff, wantIncluded: false},
		{name: "modified just before the cutoff", considerOlder: 5, mtime: cutoff.Add(-time.Second), wantIncluded: true},
		{name: "later the same day as the cutoff", considerOlder: 5, mtime: cutoff.Add(12 * time.Hour), wantIncluded: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tree := testutil.NewTree(t)
			tree.WriteAt("f.txt", "f", tt.mtime)

			job := &sbk.Job{Name: "t", BasePath: tree.Root, ConsiderOlder: tt.considerOlder}
			out, res := scan(t, sbkfs.NewOSFilesystemManager(), clock, 1, job)

			if got := out.Snapshot.Len() == 1; got != tt.wantIncluded {
				t.Errorf("included = %v, want %v", got, tt.wantIncluded)
			}
			wantTooRecent := 0
			if !tt.wantIncluded {
				wantTooRecent = 1
			}
			if res.TooRecent != wantTooRecent {
				t.Errorf("TooRecent = %d, want %d", res.TooRecent, wantTooRecent)
			}
			if res.Included != 1 {
				t.Errorf("Included = %d, want 1", res.Included)
			}
		})
	}
}

func TestScanner_HashFailure(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.Write("ok.txt", "ok")
	bad := tree.Write("bad.txt", "bad")

	faulty := testutil.NewFaultyFS(sbkfs.NewOSFilesystemManager())
	faulty.FailOpen(bad)

	out, res := scan(t, faulty, testutil.FixedClock(), 1, &sbk.Job{Name: "t", BasePath: tree.Root})

	if out.Snapshot.Len() != 1 {
		t.Errorf("snapshot has %d records, want 1", out.Snapshot.Len())
	}
	if _, ok := out.Snapshot.Get(bad); ok {
		t.Error("unreadable file recorded in snapshot")
	}
	assertStrings(t, "Failed", out.Failed, []string{bad})
	if res.Failed != 1 {
		t.Errorf("res.Failed = %d, want 1", res.Failed)
	}
}

func TestScanner_WorkersKeepOrder(t *testing.T) {
	tree := testutil.NewTree(t)
	for _, name := range []string{"z.txt", "a/1.txt", "a/2.txt", "b/c/3.txt", "m.txt", "b/4.txt"} {
		tree.Write(name, "content of "+name)
	}
	fsmgr := sbkfs.NewOSFilesystemManager()
	job := &sbk.Job{Name: "t", BasePath: tree.Root}

	serial, _ := scan(t, fsmgr, testutil.FixedClock(), 1, job)
	parallel, _ := scan(t, fsmgr, testutil.FixedClock(), 4, job)

	assertStrings(t, "order", parallel.Snapshot.Paths(), serial.Snapshot.Paths())
	if !serial.Snapshot.Equal(parallel.Snapshot) {
		t.Error("parallel scan digests differ from serial scan")
	}
}

func TestScanner_MissingBase(t *testing.T) {
	tree := testutil.NewTree(t)
	fsmgr := sbkfs.NewOSFilesystemManager()
	s := sbk.NewScanner(fsmgr, sbk.NewHasher(fsmgr, 0), sbk.NewNopLogger(), testutil.FixedClock(), 1)

	job := &sbk.Job{Name: "t", BasePath: tree.Path("nope")}
	if _, err := s.Scan(context.Background(), job, &sbk.JobResult{}, func(sbk.ProgressEvent) {}); err == nil {
		t.Error("Scan() expected error for missing base path")
	}
}

func TestScanner_Partition(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.Write("keep.txt", "k")
	tree.Write("drop.bak", "d")
	tree.WriteAt("fresh.txt", "f", testutil.FixedClock().Now())

	fsmgr := sbkfs.NewOSFilesystemManager()
	s := sbk.NewScanner(fsmgr, sbk.NewHasher(fsmgr, 0), sbk.NewNopLogger(), testutil.FixedClock(), 1)
	job := &sbk.Job{Name: "t", BasePath: tree.Root, TestFilters: true, ConsiderOlder: 3, Filter: mustFilter(t, "", `\.bak$`, false)}
	res := &sbk.JobResult{}

	if err := s.Partition(context.Background(), job, res, func(sbk.ProgressEvent) {}); err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	f := &fixture{t: t, tree: tree}
	assertStrings(t, "IncludedFiles", f.rel(res.IncludedFiles), []string{"fresh.txt", "keep.txt"})
	assertStrings(t, "ExcludedFiles", f.rel(res.ExcludedFiles), []string{"drop.bak"})
	if res.TooRecent != 0 {
		t.Errorf("TooRecent = %d, age cutoff should not apply", res.TooRecent)
	}
}
