// repair.go - the shared-folder permission-repair engine: spec.md §4.6's
// independent traversal variant that calls its action on every entry (file
// or directory) before the descent decision, unlike the generic engine's
// file/directory-summary split.
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2
//
// Grounded on original_source/repairshr.c's repair_directory/
// repair_permissions/find_non_private_group, generalized from its fixed
// thread-data array into slotpool.Pool. Unlike walk/purge, this engine
// mirrors repairshr.c's plain path-based traversal (opendir/lstat/chmod/
// chown by full path string, not directory-relative *at calls): repair
// already has to build full paths for find_non_private_group's upward walk
// and for dry-run/changed-line logging, so there is no directory-relative
// fast path to take advantage of here.
//
// Termination: the slotpool.Pool's own WaitGroup replaces repairshr.c's
// "while (ThreadCNT > 0) usleep(1000);" busy-wait, per §12's resolved open
// question.
package repair

import (
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/opencoff/pwalktools/internal/exclude"
	"github.com/opencoff/pwalktools/internal/fsinfo"
	"github.com/opencoff/pwalktools/internal/pathbuf"
	"github.com/opencoff/pwalktools/internal/rlog"
	"github.com/opencoff/pwalktools/internal/slotpool"
)

// Config is the repair engine's immutable, start-up-captured configuration.
type Config struct {
	MaxThreads         int
	IgnoreSnapshots    bool
	OneFS              bool
	DryRun             bool
	ForceGroupWritable bool
	ChangeGroups       map[uint32]bool
	Excludes           *exclude.Set
	Log                *rlog.Log
}

// Descriptor is the repair engine's own worker descriptor.
type Descriptor struct {
	ID             int64
	Path           *pathbuf.Buffer
	Depth          int
	RecursionLevel int
}

// Engine runs one repair pass.
type Engine struct {
	cfg     *Config
	pool    *slotpool.Pool[Descriptor]
	rootDev uint64
}

// New constructs an Engine from cfg.
func New(cfg *Config) *Engine {
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = 32
	}
	if cfg.ChangeGroups == nil {
		cfg.ChangeGroups = map[uint32]bool{}
	}
	return &Engine{
		cfg:  cfg,
		pool: slotpool.New[Descriptor](cfg.MaxThreads),
	}
}

// Run repairs 'root' to completion.
func (e *Engine) Run(root string) error {
	root = strings.TrimRight(root, "/")
	if root == "" {
		root = "/"
	}

	info, err := fsinfo.Lstat(root)
	if err != nil {
		return err
	}
	e.rootDev = info.Dev

	idx, id, ok := e.pool.TryAcquire()
	if !ok {
		return nil
	}
	desc := e.pool.Descriptor(idx)
	*desc = Descriptor{
		ID:    id,
		Path:  pathbuf.New(root),
		Depth: 0,
	}

	go e.runWorker(idx)
	e.pool.Wait()
	return nil
}

func (e *Engine) runWorker(idx int) {
	d := e.pool.Descriptor(idx)
	e.descend(d)
	e.pool.Release(idx)
}

func (e *Engine) descend(d *Descriptor) {
	path := d.Path.String()

	dir, err := fsinfo.OpenDir(path)
	if err != nil {
		e.cfg.Log.Errorf("opendir %s: %s", path, err)
		return
	}
	defer dir.Close()

	names, err := dir.Readdirnames(-1)
	if err != nil {
		e.cfg.Log.Errorf("readdir %s: %s", path, err)
		return
	}

	mark := d.Path.Enter()

	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}

		d.Path.SetChild(mark, name)
		childPath := d.Path.String()

		info, err := fsinfo.Lstat(childPath)
		if err != nil {
			e.cfg.Log.Errorf("stat %s: %s", childPath, err)
			continue
		}

		if e.cfg.OneFS && info.Dev != e.rootDev {
			continue
		}

		e.repairPermissions(childPath, info)

		if !info.IsDir() {
			continue
		}
		if e.cfg.IgnoreSnapshots && name == ".snapshot" {
			continue
		}
		if e.cfg.Excludes.Contains(childPath) {
			continue
		}

		e.descendSubdir(d, childPath)
	}

	d.Path.Leave(mark)
}

func (e *Engine) descendSubdir(d *Descriptor, childPath string) {
	if idx, id, ok := e.pool.TryAcquire(); ok {
		nd := e.pool.Descriptor(idx)
		*nd = Descriptor{
			ID:    id,
			Path:  pathbuf.New(childPath),
			Depth: d.Depth + 1,
		}
		go e.runWorker(idx)
		return
	}

	ephemeral := &Descriptor{
		ID:             -1,
		Path:           pathbuf.New(childPath),
		Depth:          d.Depth + 1,
		RecursionLevel: d.RecursionLevel + 1,
	}
	e.descend(ephemeral)
}

// repairPermissions applies spec.md §6's repair rules to a single entry:
// setgid on directories, replacing a private/root/blacklisted group with
// the nearest non-private ancestor group, and raising group permissions to
// the configured minimum.
func (e *Engine) repairPermissions(path string, info *fsinfo.Info) {
	newMode := info.StMode()
	newGid := info.Gid
	changed := false

	isDir := info.IsDir()

	if isDir && newMode&unix.S_ISGID == 0 {
		newMode |= unix.S_ISGID
		changed = true
	}

	if info.Gid == info.Uid || info.Gid == 0 || e.cfg.ChangeGroups[info.Gid] {
		if gid, ok := e.findNonPrivateGroup(path); ok {
			newGid = gid
			changed = true
		} else {
			e.cfg.Log.Errorf("no suitable non-private group found for %s (gid=%d uid=%d)",
				path, info.Gid, info.Uid)
		}
	}

	if isDir {
		if e.cfg.ForceGroupWritable {
			if newMode&unix.S_IRWXG != unix.S_IRWXG {
				newMode |= unix.S_IRWXG
				changed = true
			}
		} else if newMode&unix.S_IRGRP == 0 || newMode&unix.S_IXGRP == 0 {
			newMode |= unix.S_IRGRP | unix.S_IXGRP
			changed = true
		}
	} else {
		if e.cfg.ForceGroupWritable {
			if newMode&(unix.S_IRGRP|unix.S_IWGRP) != (unix.S_IRGRP | unix.S_IWGRP) {
				newMode |= unix.S_IRGRP | unix.S_IWGRP
				changed = true
			}
		} else if newMode&unix.S_IRGRP == 0 {
			newMode |= unix.S_IRGRP
			changed = true
		}
	}

	if !changed {
		return
	}

	oldMode := info.StMode()
	if newMode != oldMode {
		if e.cfg.DryRun {
			e.cfg.Log.Info("would change mode of %s from %07o to %07o", path, oldMode, newMode)
		} else if err := fsinfo.ChmodPath(path, newMode); err != nil {
			e.cfg.Log.Errorf("change mode of %s: %s", path, err)
		} else {
			e.cfg.Log.Info("changed mode of %s from %07o to %07o", path, oldMode, newMode)
		}
	}

	if newGid != info.Gid {
		if e.cfg.DryRun {
			e.cfg.Log.Info("would change group of %s from %d to %d", path, info.Gid, newGid)
		} else if err := fsinfo.ChownPath(path, -1, int(newGid)); err != nil {
			e.cfg.Log.Errorf("change group of %s: %s", path, err)
		} else {
			e.cfg.Log.Info("changed group of %s from %d to %d", path, info.Gid, newGid)
		}
	}
}

// findNonPrivateGroup walks 'path' up to the root directory, one path
// component at a time, looking for the nearest ancestor (including path
// itself) whose group is neither private (gid == uid), root (gid == 0),
// nor on the change-groups blacklist.
func (e *Engine) findNonPrivateGroup(path string) (uint32, bool) {
	cur := path
	for len(cur) > 1 {
		info, err := fsinfo.Lstat(cur)
		if err == nil {
			if info.Gid != info.Uid && info.Gid != 0 && !e.cfg.ChangeGroups[info.Gid] {
				return info.Gid, true
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return 0, false
}
