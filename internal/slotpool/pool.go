// pool.go - the fixed-size worker-slot table and allocator.
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2
//
// This is the Go shape of spec.md §4.1: a pre-initialized pool of MAXTHRDS
// descriptors, each either free (id == -1) or owned by exactly one worker.
// TryAcquire is the serialized "hand out a free slot, or say no" decision;
// Release gives a slot back. Both run under the same mutex, so the
// busy-count check, the free-slot scan, and the id mint are atomic together
// -- this is the invariant spec.md calls out as the reason the lock exists.
//
// Modeled on go-fio's WorkPool[Work] (workpool.go): a generic pool type,
// a sync.WaitGroup tracking live workers, a mutex-guarded scalar state.
// Unlike WorkPool, slots here are a fixed array handed out by index (the
// allocator never blocks a caller; exhaustion is a normal, expected signal
// telling the caller to recurse in place instead of spawning).
package slotpool

import "sync"

// Pool is a fixed-size table of MAXTHRDS pre-allocated descriptors of type
// D. A zero value is not usable; construct with New.
type Pool[D any] struct {
	mu    sync.Mutex
	wg    sync.WaitGroup
	descs []D
	ids   []int64
	busy  int
	next  int64
	max   int
}

// New creates a Pool with 'max' slots (spec.md's MAXTHRDS, nominally 32).
func New[D any](max int) *Pool[D] {
	if max <= 0 {
		max = 32
	}
	p := &Pool[D]{
		descs: make([]D, max),
		ids:   make([]int64, max),
		max:   max,
	}
	for i := range p.ids {
		p.ids[i] = -1
	}
	return p
}

// Max returns the pool's fixed capacity (MAXTHRDS).
func (p *Pool[D]) Max() int { return p.max }

// TryAcquire hands out the lowest-indexed free slot and a freshly minted,
// globally unique id, or reports ok=false if the pool is already at
// capacity. No fairness guarantee is made and a failed call never blocks.
func (p *Pool[D]) TryAcquire() (idx int, id int64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.busy >= p.max {
		return 0, 0, false
	}
	for i, v := range p.ids {
		if v == -1 {
			id = p.next
			p.next++
			p.ids[i] = id
			p.busy++
			p.wg.Add(1)
			return i, id, true
		}
	}
	// busy < max but no free slot found: the invariant is broken.
	return 0, 0, false
}

// Descriptor returns a pointer to the descriptor owned by slot 'idx', for
// the caller to populate after a successful TryAcquire.
func (p *Pool[D]) Descriptor(idx int) *D { return &p.descs[idx] }

// Release marks slot 'idx' free again and signals the live-worker counter.
// Every worker that acquires a slot must call Release exactly once, on
// every exit path (spec.md §8 invariant 4: no slot leaks).
func (p *Pool[D]) Release(idx int) {
	p.mu.Lock()
	p.ids[idx] = -1
	p.busy--
	p.mu.Unlock()
	p.wg.Done()
}

// Busy returns the current count of owned slots (for tests/diagnostics).
func (p *Pool[D]) Busy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Wait blocks until every acquired slot has been released -- the "counting
// primitive signaled on slot release" spec.md names as the clean
// alternative to a busy-wait on the slot-table count.
func (p *Pool[D]) Wait() { p.wg.Wait() }
