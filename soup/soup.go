// Package soup implements the shared linear memory (spec.md §3) and the
// cell-ownership bitmap / next-fit allocator (spec.md §4.4). It is the only
// package that mutates soup words or ownership tags; the VCPU, the syscall
// handler, the reaper and the defragmenter all go through it.
package soup

import (
	"fmt"
	"math"
)

// Free is the owner tag of an unallocated cell.
const Free uint32 = 0

// Soup is the shared organism memory plus its parallel ownership map.
type Soup struct {
	words []int32
	owner []uint32

	cursor        int32
	nextAllocID   uint32
	lastCommitted uint32
}

// New allocates a soup of n words, all initially free and zeroed.
func New(n int) *Soup {
	if n <= 0 {
		panic("soup: size must be positive")
	}
	return &Soup{
		words:       make([]int32, n),
		owner:       make([]uint32, n),
		nextAllocID: 1,
	}
}

// Len returns the soup size N.
func (s *Soup) Len() int { return len(s.words) }

// InBounds reports whether addr is a valid soup index.
func (s *Soup) InBounds(addr int64) bool {
	return addr >= 0 && addr < int64(len(s.words))
}

// Read returns the word at addr. Caller must have bounds-checked.
func (s *Soup) Read(addr int32) int32 { return s.words[addr] }

// Write sets the word at addr. Caller must have bounds-checked.
func (s *Soup) Write(addr, val int32) { s.words[addr] = val }

// Owner returns the owner tag of the cell at addr.
func (s *Soup) Owner(addr int32) uint32 { return s.owner[addr] }

// SeedRandom fills every cell with a value produced by fill(i).
func (s *Soup) SeedRandom(fill func(i int) int32) {
	for i := range s.words {
		s.words[i] = fill(i)
	}
}

// Allocate scans forward from the cursor for a run of `size` consecutive
// free cells, wrapping once. On success it tags the run with a freshly
// minted alloc_id and returns (base, id). On failure it returns (-1, 0).
func (s *Soup) Allocate(size int32) (int32, uint32) {
	n := int32(len(s.words))
	if size <= 0 || size > n {
		return -1, 0
	}
	if base, ok := s.scanFrom(s.cursor, n, size); ok {
		return s.commit(base, size), s.lastID()
	}
	if base, ok := s.scanFrom(0, s.cursor, size); ok {
		return s.commit(base, size), s.lastID()
	}
	return -1, 0
}

// scanFrom looks for `size` consecutive free cells within [from, to).
// Runs may not wrap past `to`; the caller handles wraparound by issuing a
// second scan over [0, cursor).
func (s *Soup) scanFrom(from, to, size int32) (int32, bool) {
	if to <= from {
		return 0, false
	}
	run := int32(0)
	for i := from; i < to; i++ {
		if s.owner[i] == Free {
			run++
			if run == size {
				return i - size + 1, true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}

func (s *Soup) commit(base, size int32) int32 {
	id := s.nextAllocID
	s.nextAllocID++
	for i := base; i < base+size; i++ {
		s.owner[i] = id
	}
	n := int32(len(s.words))
	cursor := base + size
	if cursor >= n {
		cursor -= n
	}
	s.cursor = cursor
	s.lastCommitted = id
	return base
}

// lastID returns the alloc_id minted by the most recent commit. It exists
// so Allocate can return (base, id) from a single call site.
func (s *Soup) lastID() uint32 { return s.lastCommitted }

// Free releases every cell in [addr, addr+size) that is not already Free.
// Double-free is a no-op. If addr precedes the cursor, the cursor is moved
// back so the freed run is reused promptly.
func (s *Soup) Free(addr, size int32) {
	for i := addr; i < addr+size; i++ {
		s.owner[i] = Free
	}
	if addr < s.cursor {
		s.cursor = addr
	}
}

// FreeIfOwned frees [addr, addr+size) only if every cell carries the same
// non-Free tag. Returns whether it freed anything.
func (s *Soup) FreeIfOwned(addr, size int32) bool {
	if size <= 0 {
		return false
	}
	id := s.owner[addr]
	if id == Free {
		return false
	}
	for i := addr; i < addr+size; i++ {
		if s.owner[i] != id {
			return false
		}
	}
	s.Free(addr, size)
	return true
}

// FreeByID releases only the cells within [addr, addr+size) that currently
// carry exactly `id`, leaving other owners' cells intact. Returns the count
// of cells released.
func (s *Soup) FreeByID(addr, size int32, id uint32) int32 {
	var count int32
	for i := addr; i < addr+size; i++ {
		if s.owner[i] == id {
			s.owner[i] = Free
			count++
		}
	}
	if count > 0 && addr < s.cursor {
		s.cursor = addr
	}
	return count
}

// OwnedExclusively reports whether every cell in [addr, addr+size) carries
// exactly `id`. Used by SPAWN's ownership-consistency check (spec.md §4.3).
func (s *Soup) OwnedExclusively(addr, size int32, id uint32) bool {
	for i := addr; i < addr+size; i++ {
		if s.owner[i] != id {
			return false
		}
	}
	return true
}

// MarkUsed unconditionally tags [addr, addr+size) with a fresh alloc_id.
// The caller (the defragmenter) guarantees the range is free.
func (s *Soup) MarkUsed(addr, size int32) uint32 {
	id := s.nextAllocID
	s.nextAllocID++
	for i := addr; i < addr+size; i++ {
		s.owner[i] = id
	}
	return id
}

// MarkUsedWithID tags [addr, addr+size) with an explicit alloc_id, without
// touching the monotone counter. Used only by checkpoint restore, which
// re-establishes the exact ids a snapshot recorded before restoring the
// counter itself from the same snapshot.
func (s *Soup) MarkUsedWithID(addr, size int32, id uint32) {
	for i := addr; i < addr+size; i++ {
		s.owner[i] = id
	}
}

// Rebuild clears the entire ownership map and resets the cursor. The caller
// is responsible for re-marking used regions afterwards.
func (s *Soup) Rebuild() {
	for i := range s.owner {
		s.owner[i] = Free
	}
	s.cursor = 0
}

// NextAllocID returns the id that will be assigned to the next allocation,
// exposed for checkpoint round-tripping.
func (s *Soup) NextAllocID() uint32 { return s.nextAllocID }

// SetNextAllocID restores the monotone counter from a checkpoint. It is an
// error to set it below any alloc_id already present in the ownership map.
// Its order relative to MarkUsedWithID does not matter, since
// MarkUsedWithID leaves the counter alone.
func (s *Soup) SetNextAllocID(id uint32) { s.nextAllocID = id }

// Cursor exposes the allocator's next-fit cursor, for checkpointing.
func (s *Soup) Cursor() int32 { return s.cursor }

// SetCursor restores the cursor from a checkpoint.
func (s *Soup) SetCursor(c int32) { s.cursor = c }

// Words returns the raw backing slice. Callers must not retain it across a
// Rebuild/Allocate that could resize internal state (the soup never
// resizes after New, so this is safe to hold for the soup's lifetime).
func (s *Soup) Words() []int32 { return s.words }

// Counters reports the observable allocator statistics of spec.md §4.4.
type Counters struct {
	FreeCells    int
	LargestFree  int
	FreeRuns     int
	Fragmentation float64 // 1 - largestFree/totalFree, 0 when totalFree == 0
}

// Stats computes the current occupancy counters with a single linear scan.
func (s *Soup) Stats() Counters {
	var c Counters
	run := 0
	for _, o := range s.owner {
		if o == Free {
			run++
			c.FreeCells++
		} else {
			if run > 0 {
				c.FreeRuns++
				if run > c.LargestFree {
					c.LargestFree = run
				}
			}
			run = 0
		}
	}
	if run > 0 {
		c.FreeRuns++
		if run > c.LargestFree {
			c.LargestFree = run
		}
	}
	if c.FreeCells > 0 {
		c.Fragmentation = 1 - float64(c.LargestFree)/float64(c.FreeCells)
	}
	return c
}

// Entropy computes the Shannon entropy (base 2) of the soup's word-value
// distribution: a histogram over every word's value, turned into per-value
// probabilities, summed as -sum(p*log2(p)). A uniform soup (all zeros, or
// freshly allocated silence) has entropy 0; a soup full of distinct byte
// patterns approaches log2(N). Grounded on the teacher's RunStatistics soup
// entropy, which histograms instruction values across the soup the same way.
func (s *Soup) Entropy() float64 {
	if len(s.words) == 0 {
		return 0
	}
	counts := make(map[int32]int, len(s.words))
	for _, w := range s.words {
		counts[w]++
	}
	n := float64(len(s.words))
	var h float64
	for _, count := range counts {
		p := float64(count) / n
		h -= p * math.Log2(p)
	}
	return h
}

func (s *Soup) String() string {
	return fmt.Sprintf("soup(n=%d, nextAllocID=%d, cursor=%d)", len(s.words), s.nextAllocID, s.cursor)
}
