package exclude

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndContains(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "excl.txt")
	body := "/data/a\n/data/b/c\n"
	if err := os.WriteFile(fname, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(fname)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Contains("/data/a") {
		t.Fatal("expected /data/a excluded")
	}
	if !s.Contains("/data/b/c") {
		t.Fatal("expected /data/b/c excluded")
	}
	if s.Contains("/data/b") {
		t.Fatal("did not expect /data/b excluded (no prefix matching)")
	}
}

func TestNilSetNeverExcludes(t *testing.T) {
	var s *Set
	if s.Contains("/anything") {
		t.Fatal("nil set should never report a match")
	}
}
