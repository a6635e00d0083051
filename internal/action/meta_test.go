package action

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/opencoff/pwalktools/internal/fsinfo"
	"github.com/opencoff/pwalktools/internal/pathbuf"
	"github.com/opencoff/pwalktools/internal/walk"
)

func TestMetaFileRecordUsesParentStatInode(t *testing.T) {
	var buf bytes.Buffer
	act := NewMeta(&MetaConfig{Out: &buf})

	parent := &fsinfo.Info{Ino: 42}
	d := &walk.Descriptor{
		Path:        pathbuf.New("/data/a.txt"),
		Depth:       3,
		ParentStat:  parent,
		ParentInode: 7,
	}
	info := &fsinfo.Info{
		Ino:  99,
		Mtim: time.Unix(100, 0),
		Atim: time.Unix(100, 0),
		Ctim: time.Unix(100, 0),
	}

	if err := act(d, "txt", info, -1, 0); err != nil {
		t.Fatal(err)
	}

	line := buf.String()
	// File records use pino = parent directory's own inode (42), depth = d.Depth (3).
	if !strings.HasPrefix(line, "99,42,3,") {
		t.Fatalf("unexpected file record: %q", line)
	}
}

func TestMetaDirRecordUsesParentInodeAndDepthMinusOne(t *testing.T) {
	var buf bytes.Buffer
	act := NewMeta(&MetaConfig{Out: &buf})

	d := &walk.Descriptor{
		Path:        pathbuf.New("/data/sub"),
		Depth:       2,
		ParentStat:  &fsinfo.Info{Ino: 99},
		ParentInode: 7,
	}
	info := &fsinfo.Info{Ino: 99}

	if err := act(d, "", info, 3, 123); err != nil {
		t.Fatal(err)
	}

	line := buf.String()
	// Directory summary: pino = d.ParentInode (7), depth = d.Depth-1 (1).
	if !strings.HasPrefix(line, "99,7,1,") {
		t.Fatalf("unexpected dir record: %q", line)
	}
	if !strings.Contains(line, ",3,123\n") {
		t.Fatalf("expected trailing file_count,dir_size of 3,123: %q", line)
	}
}

func TestMetaChownRideAlong(t *testing.T) {
	var buf bytes.Buffer
	act := NewMeta(&MetaConfig{
		Out:          &buf,
		ChownEnabled: true,
		ChownFrom:    1000,
		ChownTo:      2000,
		ChownGroup:   2000,
	})

	d := &walk.Descriptor{
		Path:       pathbuf.New("/tmp/does-not-exist-xyz"),
		ParentStat: &fsinfo.Info{},
	}
	info := &fsinfo.Info{Uid: 1000}

	// chown on a nonexistent path fails; the action must still emit the
	// CSV record and must not propagate the chown error as a hard failure.
	if err := act(d, "", info, -1, 0); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a CSV record to be written regardless of chown outcome")
	}
}
