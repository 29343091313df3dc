// Package defrag implements the defragmenter of spec.md §4.6: in-place
// compaction of living organisms toward low addresses. Because Proteus code
// is position-independent (relative IP, GETADDR, relative jumps) organisms
// keep executing correctly after being relocated.
package defrag

import (
	"sort"

	"proteus/organism"
	"proteus/soup"
)

// ShouldRun reports whether the defragmenter's trigger condition holds:
// fragmentation exceeds theta and the largest free run cannot satisfy
// requiredSize (spec.md §4.6).
func ShouldRun(s *soup.Soup, theta float64, requiredSize int32) bool {
	stats := s.Stats()
	return stats.Fragmentation > theta && int32(stats.LargestFree) < requiredSize
}

// Run compacts every alive organism to the lowest addresses available, in
// ascending start-address order, then rebuilds the ownership map so that
// [0, nextFree) is owned exactly by the relocated organisms and
// [nextFree, N) is entirely free. Organisms holding a pending allocation
// have it cleared: the simplest correct policy given a pending span may or
// may not itself need to move (spec.md §4.6 step 5 commentary).
func Run(s *soup.Soup, table *organism.Table) {
	alive := table.Alive()
	sort.Slice(alive, func(i, j int) bool { return alive[i].StartAddr < alive[j].StartAddr })

	words := s.Words()
	type placement struct {
		org     *organism.Organism
		newBase int32
	}
	placements := make([]placement, 0, len(alive))

	nextFree := int32(0)
	for _, o := range alive {
		if o.StartAddr != nextFree {
			copy(words[nextFree:nextFree+o.Size], words[o.StartAddr:o.StartAddr+o.Size])
		}
		placements = append(placements, placement{org: o, newBase: nextFree})
		nextFree += o.Size
	}

	s.Rebuild()

	for _, p := range placements {
		o := p.org
		o.StartAddr = p.newBase
		o.State.StartAddr = p.newBase
		// IP is untouched: it is relative and remains valid after the move.
		o.State.Pending = nil
		id := s.MarkUsed(p.newBase, o.Size)
		o.AllocID = id
	}
}
