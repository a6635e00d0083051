package walk

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/opencoff/pwalktools/internal/exclude"
	"github.com/opencoff/pwalktools/internal/fsinfo"
)

type record struct {
	path      string
	ext       string
	isDir     bool
	fileCount int64
	dirSize   int64
}

func collect(t *testing.T, root string, cfg *Config) []record {
	t.Helper()
	var mu sync.Mutex
	var recs []record

	cfg.Action = func(d *Descriptor, ext string, info *fsinfo.Info, fileCount, dirSize int64) error {
		mu.Lock()
		defer mu.Unlock()
		recs = append(recs, record{
			path:      d.Path.String(),
			ext:       ext,
			isDir:     fileCount != -1,
			fileCount: fileCount,
			dirSize:   dirSize,
		})
		return nil
	}
	cfg.ErrLog = func(format string, args ...any) { t.Logf(format, args...) }

	eng := New(cfg)
	if err := eng.Run(root); err != nil {
		t.Fatalf("Run: %s", err)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].path < recs[j].path })
	return recs
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBasicTreeRecordCounts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), 10)
	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "sub", "b.log"), 20)

	recs := collect(t, root, &Config{MaxThreads: 8, Excludes: exclude.New()})

	// 2 files + 2 directory summaries (root, sub) = 4 records.
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d: %+v", len(recs), recs)
	}

	var rootSummary, subSummary *record
	for i := range recs {
		r := &recs[i]
		switch r.path {
		case root:
			rootSummary = r
		case filepath.Join(root, "sub"):
			subSummary = r
		}
	}
	if rootSummary == nil || !rootSummary.isDir {
		t.Fatalf("missing root summary record: %+v", recs)
	}
	if rootSummary.fileCount != 2 {
		t.Fatalf("expected root file_count=2 (a.txt + sub), got %d", rootSummary.fileCount)
	}
	if subSummary == nil || !subSummary.isDir {
		t.Fatalf("missing sub summary record: %+v", recs)
	}
	if subSummary.fileCount != 1 || subSummary.dirSize != 20 {
		t.Fatalf("unexpected sub summary: %+v", subSummary)
	}
}

func TestIgnoreSnapshotsSuppressesDescentNotCount(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".snapshot"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, ".snapshot", "x"), 5)
	writeFile(t, filepath.Join(root, "y"), 7)

	recs := collect(t, root, &Config{MaxThreads: 8, IgnoreSnapshots: true, Excludes: exclude.New()})

	for _, r := range recs {
		if r.path == filepath.Join(root, ".snapshot", "x") {
			t.Fatalf("x should never be visited when snapshots are ignored: %+v", recs)
		}
		if r.path == filepath.Join(root, ".snapshot") {
			t.Fatalf(".snapshot should never get its own summary record: %+v", recs)
		}
	}

	for _, r := range recs {
		if r.path == root {
			if r.fileCount != 2 {
				t.Fatalf("expected root file_count=2 (.snapshot + y), got %d", r.fileCount)
			}
		}
	}
}

func TestExcludeSkipsDescent(t *testing.T) {
	root := t.TempDir()
	excludedDir := filepath.Join(root, "skip")
	if err := os.Mkdir(excludedDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(excludedDir, "hidden"), 3)

	excl := exclude.New()
	excl.Add(excludedDir)

	recs := collect(t, root, &Config{MaxThreads: 8, Excludes: excl})
	for _, r := range recs {
		if r.path == filepath.Join(excludedDir, "hidden") {
			t.Fatalf("excluded directory should not be descended into: %+v", recs)
		}
	}
}

func TestDepthLimitReportsZeroFilledSummary(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	subsub := filepath.Join(sub, "subsub")
	if err := os.MkdirAll(subsub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(subsub, "deep"), 99)

	// sub sits at depth 1; with DepthLimit=1, descent into subsub (a child
	// of sub) is suppressed, but subsub itself still gets a summary record.
	recs := collect(t, root, &Config{MaxThreads: 8, DepthLimit: 1, Excludes: exclude.New()})

	for _, r := range recs {
		if r.path == filepath.Join(subsub, "deep") {
			t.Fatalf("depth-limited directory's contents must not be visited: %+v", recs)
		}
	}

	var subsubRec *record
	for i := range recs {
		if recs[i].path == subsub {
			subsubRec = &recs[i]
		}
	}
	if subsubRec == nil {
		t.Fatalf("depth-limited directory must still get a summary record: %+v", recs)
	}
	if !subsubRec.isDir || subsubRec.fileCount != 0 || subsubRec.dirSize != 0 {
		t.Fatalf("expected zero-filled summary for depth-limited dir, got %+v", subsubRec)
	}
}

func TestFileExt(t *testing.T) {
	cases := map[string]string{
		"a.txt":     "txt",
		"archive":   "",
		".hidden":   "",
		"a.b.c":     "c",
		".hidden.x": "x",
	}
	for name, want := range cases {
		if got := fileExt(name); got != want {
			t.Errorf("fileExt(%q) = %q, want %q", name, got, want)
		}
	}
}
