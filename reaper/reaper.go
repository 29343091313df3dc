// Package reaper implements the FIFO-by-age death queue of spec.md §4.5:
// the classical Tierra selection pressure of reaping the oldest organism
// first, so fast reproducers accumulate more descendants before their turn
// comes up.
package reaper

import (
	"container/heap"

	"proteus/organism"
	"proteus/soup"
)

// MaxReapPerCall caps the number of kills a single ReapUntilFree call may
// perform, a safety valve against a pathological soup where reaping never
// frees enough room (spec.md §4.5).
const MaxReapPerCall = 100

type entry struct {
	birthCycle int64
	id         int64
	index      int
}

type byBirth []*entry

func (b byBirth) Len() int { return len(b) }
func (b byBirth) Less(i, j int) bool {
	if b[i].birthCycle != b[j].birthCycle {
		return b[i].birthCycle < b[j].birthCycle
	}
	return b[i].id < b[j].id
}
func (b byBirth) Swap(i, j int) {
	b[i], b[j] = b[j], b[i]
	b[i].index, b[j].index = i, j
}
func (b *byBirth) Push(x any) {
	e := x.(*entry)
	e.index = len(*b)
	*b = append(*b, e)
}
func (b *byBirth) Pop() any {
	old := *b
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*b = old[:n-1]
	return e
}

// Reaper is a priority queue of organism ids ordered by birth_cycle
// ascending. It may hold stale entries for organisms that died by other
// means (e.g. the error path via Unregister); cleanup is lazy, resolved at
// Reap time against the organism table.
type Reaper struct {
	pq       byBirth
	byID     map[int64]*entry
	table    *organism.Table
	soup     *soup.Soup
	deaths   int64 // total organisms reaped, lifetime counter
}

// New returns an empty reaper bound to the given organism table and soup.
func New(table *organism.Table, s *soup.Soup) *Reaper {
	return &Reaper{
		byID:  make(map[int64]*entry),
		table: table,
		soup:  s,
	}
}

// Register enqueues an organism for eventual reaping.
func (r *Reaper) Register(o *organism.Organism) {
	e := &entry{birthCycle: o.BirthCycle, id: o.ID}
	heap.Push(&r.pq, e)
	r.byID[o.ID] = e
}

// Unregister removes an organism from the queue, e.g. when it is killed by
// a means other than reaping (a lethal-error policy, if one is configured).
func (r *Reaper) Unregister(id int64) {
	e, ok := r.byID[id]
	if !ok {
		return
	}
	heap.Remove(&r.pq, e.index)
	delete(r.byID, id)
}

// Reap pops entries until it finds one still alive, kills it, frees its
// span and any pending allocation, and returns it. Returns nil if the
// queue drains without finding a living organism.
func (r *Reaper) Reap() *organism.Organism {
	for r.pq.Len() > 0 {
		e := heap.Pop(&r.pq).(*entry)
		delete(r.byID, e.id)

		o, ok := r.table.Get(e.id)
		if !ok || !o.Alive {
			continue
		}

		o.Kill()
		r.soup.Free(o.StartAddr, o.Size)
		if o.State.Pending != nil {
			r.soup.Free(o.State.Pending.Addr, o.State.Pending.Size)
			o.State.Pending = nil
		}
		r.deaths++
		return o
	}
	return nil
}

// ReapUntilFree repeatedly calls Reap while the soup cannot satisfy an
// allocation of `size` words by either its largest run or its total free
// cells (i.e. defragmentation alone would not suffice), the queue is
// non-empty, and the per-call kill cap has not been reached. Returns the
// number of organisms killed.
func (r *Reaper) ReapUntilFree(size int32) int {
	killed := 0
	for killed < MaxReapPerCall {
		stats := r.soup.Stats()
		if int32(stats.LargestFree) >= size || int32(stats.FreeCells) >= size {
			break
		}
		if r.pq.Len() == 0 {
			break
		}
		if r.Reap() == nil {
			break
		}
		killed++
	}
	return killed
}

// Deaths returns the lifetime count of organisms reaped.
func (r *Reaper) Deaths() int64 { return r.deaths }

// SetDeaths restores the lifetime counter from a checkpoint's statistics
// block.
func (r *Reaper) SetDeaths(n int64) { r.deaths = n }

// Len reports the number of (possibly stale) entries still queued.
func (r *Reaper) Len() int { return r.pq.Len() }
