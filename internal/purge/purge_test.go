package purge

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestOldFileQuarantinedIntoPpurge(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	touch(t, filepath.Join(root, "stale.dat"), old)
	touch(t, filepath.Join(root, "fresh.dat"), time.Now())

	var out bytes.Buffer
	cfg := &Config{
		MaxThreads:      8,
		PurgeThreshold:  time.Now().Add(-24 * time.Hour),
		RemoveThreshold: time.Now().Add(-72 * time.Hour),
		Out:             &out,
		ErrLog:          func(f string, a ...any) { t.Logf(f, a...) },
	}
	eng := New(cfg)
	if err := eng.Run(root); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(root, "stale.dat")); !os.IsNotExist(err) {
		t.Fatal("expected stale.dat to be moved out of its original location")
	}
	if _, err := os.Stat(filepath.Join(root, ".ppurge", "stale.dat")); err != nil {
		t.Fatalf(".ppurge/stale.dat missing: %s", err)
	}
	if _, err := os.Stat(filepath.Join(root, "fresh.dat")); err != nil {
		t.Fatal("fresh.dat should not have been purged")
	}

	line := out.String()
	if !strings.HasPrefix(line, "P,") {
		t.Fatalf("expected a 'P' quarantine record, got %q", line)
	}
	if !strings.Contains(line, "stale.dat") {
		t.Fatalf("expected quarantine record to name stale.dat: %q", line)
	}
}

func TestQuarantinedFilePastRemoveThresholdIsUnlinked(t *testing.T) {
	root := t.TempDir()
	veryOld := time.Now().Add(-240 * time.Hour)

	// Simulate a file already quarantined by a prior run: in .ppurge with
	// an old mtime, and an old .ppurge directory atime.
	if err := os.Mkdir(filepath.Join(root, ".ppurge"), 01777); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(root, ".ppurge", "ancient.dat"), veryOld)
	if err := os.Chtimes(filepath.Join(root, ".ppurge"), veryOld, veryOld); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cfg := &Config{
		MaxThreads:      8,
		PurgeThreshold:  time.Now().Add(-24 * time.Hour),
		RemoveThreshold: time.Now().Add(-48 * time.Hour),
		Out:             &out,
		ErrLog:          func(f string, a ...any) { t.Logf(f, a...) },
	}
	eng := New(cfg)
	if err := eng.Run(root); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(root, ".ppurge", "ancient.dat")); !os.IsNotExist(err) {
		t.Fatal("expected ancient.dat to be removed")
	}
	// .ppurge emptied out, so it should be removed too.
	if _, err := os.Stat(filepath.Join(root, ".ppurge")); !os.IsNotExist(err) {
		t.Fatal("expected emptied .ppurge directory to be removed")
	}

	if !strings.Contains(out.String(), "R,") {
		t.Fatalf("expected an 'R' removal record: %q", out.String())
	}
}

func TestSymlinksAreNeverPurged(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(root, "real.dat")
	touch(t, real, time.Now().Add(-48*time.Hour))
	link := filepath.Join(root, "link.dat")
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		MaxThreads:      8,
		PurgeThreshold:  time.Now().Add(-24 * time.Hour),
		RemoveThreshold: time.Now().Add(-72 * time.Hour),
		Out:             &bytes.Buffer{},
		ErrLog:          func(f string, a ...any) { t.Logf(f, a...) },
	}
	eng := New(cfg)
	if err := eng.Run(root); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Lstat(link); err != nil {
		t.Fatal("symlink should still be present, unpurged")
	}
}
