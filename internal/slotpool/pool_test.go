package slotpool

import (
	"sync"
	"testing"
)

func TestAcquireReleaseBounded(t *testing.T) {
	p := New[int](2)

	i0, id0, ok := p.TryAcquire()
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}
	i1, id1, ok := p.TryAcquire()
	if !ok {
		t.Fatal("expected second acquire to succeed")
	}
	if id0 == id1 {
		t.Fatal("expected unique ids")
	}
	if i0 == i1 {
		t.Fatal("expected distinct slot indices")
	}

	if _, _, ok := p.TryAcquire(); ok {
		t.Fatal("expected pool exhaustion at capacity 2")
	}

	p.Release(i0)
	if _, _, ok := p.TryAcquire(); !ok {
		t.Fatal("expected acquire to succeed after release")
	}
	p.Release(i1)
}

func TestLowestIndexFirst(t *testing.T) {
	p := New[int](4)
	i0, _, _ := p.TryAcquire()
	i1, _, _ := p.TryAcquire()
	p.Release(i0)

	i2, _, ok := p.TryAcquire()
	if !ok {
		t.Fatal("acquire failed")
	}
	if i2 != i0 {
		t.Fatalf("expected lowest freed index %d reused, got %d", i0, i2)
	}
	p.Release(i1)
	p.Release(i2)
}

func TestWaitTracksLiveWorkers(t *testing.T) {
	p := New[int](8)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		idx, _, ok := p.TryAcquire()
		if !ok {
			t.Fatal("acquire failed")
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			p.Release(idx)
		}(idx)
	}
	wg.Wait()
	p.Wait()

	if busy := p.Busy(); busy != 0 {
		t.Fatalf("expected zero busy slots, got %d", busy)
	}
}
