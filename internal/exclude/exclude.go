// exclude.go - the exclude-file loader and exclude set.
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2
//
// One of spec.md's "explicitly out of scope" external collaborators: a
// simple line-per-path text reader (grounded on original_source/exclude.c's
// get_exclude_list). The Set type itself backs spec.md §5's "written once
// before any worker starts; read-only thereafter" exclude set, represented
// as an xsync.MapOf the way go-fio represents its own shared lookup tables
// (fiomap.go) -- a concurrency-safe set is the teacher's idiom for "many
// goroutines read this same table" even when, as here, no writes occur
// after construction.
package exclude

import (
	"bufio"
	"os"

	"github.com/puzpuzpuz/xsync/v3"
)

// Set is a concurrency-safe set of absolute paths that terminate descent
// when matched exactly.
type Set struct {
	m *xsync.MapOf[string, struct{}]
}

// New returns an empty Set.
func New() *Set {
	return &Set{m: xsync.NewMapOf[string, struct{}]()}
}

// Add inserts 'path' into the set.
func (s *Set) Add(path string) {
	s.m.Store(path, struct{}{})
}

// Contains reports whether 'path' is excluded.
func (s *Set) Contains(path string) bool {
	if s == nil {
		return false
	}
	_, ok := s.m.Load(path)
	return ok
}

// Load reads one absolute path per line from 'fname' and adds each to the
// set. Trailing newline is stripped per line; blank lines are skipped.
func Load(fname string) (*Set, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := New()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if len(line) == 0 {
			continue
		}
		s.Add(line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
