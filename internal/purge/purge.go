// purge.go - the age-based purge engine: spec.md §4.5's independent traversal
// variant, sharing the slot-table allocator shape but with inline
// quarantine/removal logic in place of the generic Action plug-in contract.
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2
//
// Grounded on original_source/ppurge.c's fileDir/rm_purged/create_ppurge,
// generalized from its fixed MAXTHRDS pthread array into slotpool.Pool.
//
// Deliberate deviation from ppurge.c (documented in DESIGN.md): the removal
// threshold is computed as a flat "now - 2*purgeDays*86400" horizon rather
// than ppurge.c's "Ptime*2" (which, since Ptime is itself an epoch value,
// makes the effective horizon silently drift with time-of-day); and the
// reported path for a removed (.ppurge-resident) file is the quarantine
// path itself ("<dir>/.ppurge/<name>") rather than ppurge.c's stale path
// buffer (a bug: rm_purged appends onto whatever name the enclosing loop
// had last written into cur->dname instead of resetting to ".ppurge/").
package purge

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/opencoff/pwalktools/internal/csvutil"
	"github.com/opencoff/pwalktools/internal/fsinfo"
	"github.com/opencoff/pwalktools/internal/pathbuf"
	"github.com/opencoff/pwalktools/internal/slotpool"
)

// Config is the purge engine's immutable, start-up-captured configuration.
type Config struct {
	MaxThreads int

	// PurgeThreshold: files with mtime below this instant are quarantined
	// into .ppurge. RemoveThreshold: quarantined files whose mtime (at
	// quarantine time, mtime is untouched by rename) is below this
	// instant are permanently removed, provided the .ppurge directory's
	// own atime is also below PurgeThreshold, per §12's resolved horizon.
	PurgeThreshold  time.Time
	RemoveThreshold time.Time

	Out    io.Writer
	ErrLog func(format string, args ...any)
}

// Descriptor is the purge engine's own worker descriptor: lighter than
// walk.Descriptor since purge never needs ParentStat/ParentInode.
type Descriptor struct {
	ID             int64
	Path           *pathbuf.Buffer
	Dir            *os.File
	Depth          int
	RecursionLevel int
}

// Engine runs one purge pass.
type Engine struct {
	cfg    *Config
	pool   *slotpool.Pool[Descriptor]
	outMu  sync.Mutex
	errLog func(format string, args ...any)
}

// New constructs an Engine from cfg.
func New(cfg *Config) *Engine {
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = 32
	}
	errLog := cfg.ErrLog
	if errLog == nil {
		errLog = func(string, ...any) {}
	}
	return &Engine{
		cfg:    cfg,
		pool:   slotpool.New[Descriptor](cfg.MaxThreads),
		errLog: errLog,
	}
}

// Run purges 'root' to completion.
func (e *Engine) Run(root string) error {
	dir, err := fsinfo.OpenDir(root)
	if err != nil {
		return err
	}

	idx, id, ok := e.pool.TryAcquire()
	if !ok {
		dir.Close()
		return nil
	}
	desc := e.pool.Descriptor(idx)
	*desc = Descriptor{
		ID:    id,
		Path:  pathbuf.New(root),
		Dir:   dir,
		Depth: 0,
	}

	go e.runWorker(idx)
	e.pool.Wait()
	return nil
}

func (e *Engine) runWorker(idx int) {
	d := e.pool.Descriptor(idx)
	e.descend(d)
	d.Dir.Close()
	e.pool.Release(idx)
}

func (e *Engine) descend(d *Descriptor) {
	dirfd := int(d.Dir.Fd())

	names, err := d.Dir.Readdirnames(-1)
	if err != nil {
		e.errLog("readdir %s: %s", d.Path.String(), err)
		return
	}

	mark := d.Path.Enter()
	var purgeDir *os.File
	var purgeDirAtime time.Time

	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}

		d.Path.SetChild(mark, name)
		childPath := d.Path.String()

		info, err := fsinfo.LstatAt(dirfd, name)
		if err != nil {
			e.errLog("stat %s: %s", childPath, err)
			continue
		}

		if info.IsDir() {
			if name == ".ppurge" {
				if purgeDir == nil {
					if pd, err := fsinfo.OpenDirAt(dirfd, name); err == nil {
						purgeDir = pd
						purgeDirAtime = info.Atim
					}
				}
				continue
			}
			e.descendSubdir(d, dirfd, name, childPath)
			continue
		}

		if info.Mtim.Unix() <= 0 || info.Atim.Unix() <= 0 {
			e.errLog("bad mtime: %s", childPath)
			if err := fsinfo.TouchNowAt(dirfd, name); err != nil {
				e.errLog("touch %s: %s", childPath, err)
			}
			continue
		}

		if info.Mode()&fs.ModeSymlink != 0 {
			continue
		}

		if info.Mtim.Before(e.cfg.PurgeThreshold) {
			if purgeDir == nil {
				purgeDir, purgeDirAtime = e.createPpurge(dirfd, childPath)
			}
			if purgeDir == nil {
				continue
			}
			if err := fsinfo.RenameAt(dirfd, name, int(purgeDir.Fd()), name); err != nil {
				e.errLog("rename %s to .ppurge: %s", childPath, err)
			} else {
				e.logRecord('P', d.Depth, childPath, info)
			}
		}
	}

	d.Path.Leave(mark)

	if purgeDir != nil {
		fcount := e.removePurged(d, dirfd, purgeDir, purgeDirAtime)
		purgeDir.Close()
		if fcount == 0 {
			if err := fsinfo.RmdirAt(dirfd, ".ppurge"); err != nil {
				e.errLog("rmdir .ppurge under %s: %s", d.Path.String(), err)
			}
		}
	}
}

// createPpurge opens (creating if necessary) the ".ppurge" quarantine
// directory relative to dirfd, grounded on ppurge.c's create_ppurge.
func (e *Engine) createPpurge(dirfd int, parentPath string) (*os.File, time.Time) {
	if pd, err := fsinfo.OpenDirAt(dirfd, ".ppurge"); err == nil {
		info, err := fsinfo.LstatAt(dirfd, ".ppurge")
		if err != nil {
			e.errLog("stat .ppurge under %s: %s", parentPath, err)
			return pd, time.Now()
		}
		return pd, info.Atim
	}
	if err := fsinfo.MkdirAt(dirfd, ".ppurge", 01777); err != nil {
		e.errLog("mkdir .ppurge under %s: %s", parentPath, err)
		return nil, time.Time{}
	}
	pd, err := fsinfo.OpenDirAt(dirfd, ".ppurge")
	if err != nil {
		e.errLog("open .ppurge under %s: %s", parentPath, err)
		return nil, time.Time{}
	}
	return pd, time.Now()
}

// removePurged scans the already-open ".ppurge" directory and unlinks every
// entry when the .ppurge directory's remembered atime is before
// PurgeThreshold and the entry's own mtime is before RemoveThreshold,
// returning the count of entries left behind.
func (e *Engine) removePurged(d *Descriptor, dirfd int, purgeDir *os.File, purgeDirAtime time.Time) int {
	names, err := purgeDir.Readdirnames(-1)
	if err != nil {
		e.errLog("readdir .ppurge under %s: %s", d.Path.String(), err)
		return -1
	}

	purgefd := int(purgeDir.Fd())
	markDir := d.Path.Enter()
	d.Path.SetChild(markDir, ".ppurge")
	markFile := d.Path.Enter()

	left := 0
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		d.Path.SetChild(markFile, name)
		childPath := d.Path.String()

		info, err := fsinfo.LstatAt(purgefd, name)
		if err != nil {
			e.errLog("stat %s: %s", childPath, err)
			continue
		}

		if purgeDirAtime.Before(e.cfg.PurgeThreshold) && info.Mtim.Before(e.cfg.RemoveThreshold) {
			if err := fsinfo.UnlinkAt(purgefd, name); err != nil {
				e.errLog("unlink %s: %s", childPath, err)
			} else {
				e.logRecord('R', d.Depth, childPath, info)
			}
		} else {
			left++
		}
	}

	d.Path.Leave(markFile)
	d.Path.Leave(markDir)
	return left
}

func (e *Engine) descendSubdir(d *Descriptor, dirfd int, name, childPath string) {
	childDir, err := fsinfo.OpenDirAt(dirfd, name)
	if err != nil {
		e.errLog("opendir %s: %s", childPath, err)
		return
	}

	if idx, id, ok := e.pool.TryAcquire(); ok {
		nd := e.pool.Descriptor(idx)
		*nd = Descriptor{
			ID:    id,
			Path:  d.Path.Clone(),
			Dir:   childDir,
			Depth: d.Depth + 1,
		}
		go e.runWorker(idx)
		return
	}

	ephemeral := &Descriptor{
		ID:             -1,
		Path:           d.Path.Clone(),
		Dir:            childDir,
		Depth:          d.Depth + 1,
		RecursionLevel: d.RecursionLevel + 1,
	}
	e.descend(ephemeral)
	ephemeral.Dir.Close()
}

// logRecord writes one "P" or "R" CSV line, serialized the same way the
// generic engine serializes Action invocations.
func (e *Engine) logRecord(kind byte, depth int, path string, info *fsinfo.Info) {
	e.outMu.Lock()
	defer e.outMu.Unlock()

	fname, ok := csvutil.Escape(path)
	if !ok {
		e.errLog("bad file name: %s", path)
	}
	fmt.Fprintf(e.cfg.Out, "%c,%d,\"%s\",%d,%d,%d,\"%07o\",%d,%d,%d\n",
		kind, depth, fname,
		info.Uid, info.Gid, info.Siz, info.StMode(),
		info.Atim.Unix(), info.Mtim.Unix(), info.Ctim.Unix())
}
