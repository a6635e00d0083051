// descriptor.go - the generic walk engine's per-worker descriptor type.
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2
package walk

import (
	"os"

	"github.com/opencoff/pwalktools/internal/fsinfo"
	"github.com/opencoff/pwalktools/internal/pathbuf"
)

// Descriptor is spec.md §3's "worker descriptor": the state a worker owns
// for the duration of one directory descent. ID is -1 while the slot is
// free; RecursionLevel is 0 for an independent worker and >0 for an
// in-worker recursion frame.
type Descriptor struct {
	ID             int64
	Path           *pathbuf.Buffer
	Dir            *os.File
	Depth          int
	RecursionLevel int
	ParentStat     *fsinfo.Info
	ParentInode    uint64
}
