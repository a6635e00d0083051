// engine.go - the generic parallel directory-walk engine.
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2
//
// This is spec.md §4.2/§4.3/§4.4's "directory worker": a worker reads one
// directory, classifies each entry, invokes an Action for file-like entries
// and once more for the directory's own summary, and for each subdirectory
// either offloads to a freshly spawned worker (via slotpool.Pool) or
// recurses synchronously on its own stack when the pool is exhausted.
//
// Modeled on go-fio's walk/walk.go worker loop (readDir + per-entry stat +
// classify + either enqueue or output), generalized from that package's
// unbounded channel-fed goroutine pool into spec.md's fixed slot-table
// allocator: a directory-worker either owns a slot (and is a detached
// goroutine) or is an ephemeral recursion frame sharing its caller's slot.
package walk

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/opencoff/pwalktools/internal/exclude"
	"github.com/opencoff/pwalktools/internal/fsinfo"
	"github.com/opencoff/pwalktools/internal/pathbuf"
	"github.com/opencoff/pwalktools/internal/slotpool"
)

// Action is the per-entry/per-directory-summary callback: spec.md §4.4's
// plug-in contract. fileCount == -1 marks a per-file invocation (dirSize is
// then meaningless); fileCount >= 0 marks a directory-summary invocation.
type Action func(d *Descriptor, ext string, info *fsinfo.Info, fileCount, dirSize int64) error

// Config is the engine's immutable, start-up-captured configuration.
type Config struct {
	MaxThreads      int
	IgnoreSnapshots bool
	DepthLimit      int // 0 == unlimited
	OneFS           bool
	Excludes        *exclude.Set
	Action          Action

	// ErrLog receives per-entry diagnostics; never consulted for control
	// flow, only for the "log and continue" failure semantics of §4.2/§7.
	ErrLog func(format string, args ...any)
}

// Engine runs one walk of a root directory under Config.
type Engine struct {
	cfg     *Config
	pool    *slotpool.Pool[Descriptor]
	rootDev uint64
	outMu   sync.Mutex
}

// New constructs an Engine from cfg.
func New(cfg *Config) *Engine {
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = 32
	}
	if cfg.ErrLog == nil {
		cfg.ErrLog = func(string, ...any) {}
	}
	return &Engine{
		cfg:  cfg,
		pool: slotpool.New[Descriptor](cfg.MaxThreads),
	}
}

// Run walks 'root' to completion: spawns the first worker and blocks until
// every worker (and every in-worker recursion it spawned) has finished.
func (e *Engine) Run(root string) error {
	root = strings.TrimSuffix(root, "/")
	if root == "" {
		root = "/"
	}

	if e.cfg.Excludes.Contains(root) {
		return nil
	}

	rootInfo, err := fsinfo.Lstat(root)
	if err != nil {
		return err
	}
	e.rootDev = rootInfo.Dev

	dir, err := fsinfo.OpenDir(root)
	if err != nil {
		return err
	}

	idx, id, ok := e.pool.TryAcquire()
	if !ok {
		// MaxThreads >= 1 and the pool is brand new: this cannot happen.
		dir.Close()
		return err
	}
	desc := e.pool.Descriptor(idx)
	*desc = Descriptor{
		ID:          id,
		Path:        pathbuf.New(root),
		Dir:         dir,
		Depth:       0,
		ParentStat:  rootInfo,
		ParentInode: 0,
	}

	go e.runWorker(idx)
	e.pool.Wait()
	return nil
}

// runWorker is the entry point for a detached worker goroutine owning slot
// 'idx'. It descends its directory and then releases its slot, per
// spec.md §4.2's termination rule.
func (e *Engine) runWorker(idx int) {
	d := e.pool.Descriptor(idx)
	e.descend(d)
	d.Dir.Close()
	e.pool.Release(idx)
}

// descend is the directory-worker body of spec.md §4.2. It is called both
// for detached workers (RecursionLevel == 0) and for in-worker recursion
// frames (RecursionLevel > 0); the only difference between the two is who
// closes the directory handle and whether a slot is released (runWorker
// does both for the former; for the latter handleSubdir closes the handle
// and no slot is released, since the frame does not own one).
func (e *Engine) descend(d *Descriptor) {
	dirfd := int(d.Dir.Fd())

	names, err := d.Dir.Readdirnames(-1)
	if err != nil {
		e.cfg.ErrLog("readdir %s: %s", d.Path.String(), err)
		return
	}

	mark := d.Path.Enter()
	var localCnt, localSz int64

	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}

		d.Path.SetChild(mark, name)
		childPath := d.Path.String()

		info, err := fsinfo.LstatAt(dirfd, name)
		if err != nil {
			e.cfg.ErrLog("stat %s: %s", childPath, err)
			continue
		}

		if e.cfg.OneFS && info.Dev != e.rootDev {
			continue
		}

		localCnt++
		localSz += info.Siz

		if info.IsDir() {
			e.handleSubdir(d, dirfd, name, childPath, info)
			continue
		}

		ext := fileExt(name)
		e.invoke(d, ext, info, -1, 0)
	}

	d.Path.Leave(mark)

	ext := fileExt(d.Path.String())
	e.invoke(d, ext, d.ParentStat, localCnt, localSz)
}

// handleSubdir applies the descent-suppression rules (snapshot, exclude,
// depth-limit) and then either offloads to a new worker or recurses
// synchronously, per spec.md §4.2.
func (e *Engine) handleSubdir(d *Descriptor, dirfd int, name, childPath string, info *fsinfo.Info) {
	if e.cfg.IgnoreSnapshots && name == ".snapshot" {
		return
	}
	if e.cfg.Excludes.Contains(childPath) {
		return
	}
	if e.cfg.DepthLimit > 0 && d.Depth == e.cfg.DepthLimit {
		// Contents are not visited, but the directory is still
		// reported -- a zero-filled summary using the parent's
		// descriptor to derive parent inode/depth.
		synth := &Descriptor{
			Path:        pathbuf.New(childPath),
			ParentStat:  info,
			ParentInode: d.ParentStat.Ino,
			Depth:       d.Depth + 1,
		}
		e.invoke(synth, fileExt(name), info, 0, 0)
		return
	}

	childDir, err := fsinfo.OpenDirAt(dirfd, name)
	if err != nil {
		e.cfg.ErrLog("opendir %s: %s", childPath, err)
		return
	}

	if idx, id, ok := e.pool.TryAcquire(); ok {
		nd := e.pool.Descriptor(idx)
		*nd = Descriptor{
			ID:          id,
			Path:        d.Path.Clone(),
			Dir:         childDir,
			Depth:       d.Depth + 1,
			ParentStat:  info,
			ParentInode: d.ParentStat.Ino,
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
		ParentStat:     info,
		ParentInode:    d.ParentStat.Ino,
	}
	e.descend(ephemeral)
	ephemeral.Dir.Close()
}

// invoke calls the configured Action under the output serializer lock,
// per spec.md §4.3.
func (e *Engine) invoke(d *Descriptor, ext string, info *fsinfo.Info, fileCount, dirSize int64) {
	e.outMu.Lock()
	defer e.outMu.Unlock()
	if err := e.cfg.Action(d, ext, info, fileCount, dirSize); err != nil {
		e.cfg.ErrLog("action %s: %s", d.Path.String(), err)
	}
}

// fileExt returns the substring after the last '.' in the basename of
// 'name', or "" if there is none or the '.' is the leading character of a
// dot-file. Shared by file-like and directory-summary invocations, per
// spec.md §4.2.
func fileExt(name string) string {
	base := filepath.Base(name)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return ""
	}
	return base[i+1:]
}
