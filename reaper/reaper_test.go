package reaper

import (
	"testing"

	"github.com/stretchr/testify/require"

	"proteus/cpustate"
	"proteus/organism"
	"proteus/soup"
)

func TestReapOldestFirst(t *testing.T) {
	s := soup.New(32)
	table := organism.NewTable()
	r := New(table, s)

	base1, id1 := s.Allocate(4)
	o1 := table.Inject(1, base1, 4, id1, cpustate.New(base1))
	base2, id2 := s.Allocate(4)
	o2 := table.Inject(2, base2, 4, id2, cpustate.New(base2))

	r.Register(o2)
	r.Register(o1)

	reaped := r.Reap()
	require.Equal(t, o1.ID, reaped.ID)
	require.False(t, o1.Alive)
	require.Equal(t, soup.Free, s.Owner(base1))
}

func TestReapSkipsStaleEntries(t *testing.T) {
	s := soup.New(32)
	table := organism.NewTable()
	r := New(table, s)

	base1, id1 := s.Allocate(4)
	o1 := table.Inject(1, base1, 4, id1, cpustate.New(base1))
	r.Register(o1)
	o1.Kill() // killed by some other path, entry now stale

	base2, id2 := s.Allocate(4)
	o2 := table.Inject(2, base2, 4, id2, cpustate.New(base2))
	r.Register(o2)

	reaped := r.Reap()
	require.Equal(t, o2.ID, reaped.ID)
}

func TestReapEmptyQueueReturnsNil(t *testing.T) {
	s := soup.New(8)
	table := organism.NewTable()
	r := New(table, s)
	require.Nil(t, r.Reap())
}

func TestReapFreesPendingAllocation(t *testing.T) {
	s := soup.New(32)
	table := organism.NewTable()
	r := New(table, s)

	base, id := s.Allocate(4)
	o := table.Inject(1, base, 4, id, cpustate.New(base))
	pendingBase, pendingID := s.Allocate(4)
	o.State.Pending = &cpustate.PendingAlloc{Addr: pendingBase, Size: 4, AllocID: pendingID}
	r.Register(o)

	r.Reap()
	require.Equal(t, soup.Free, s.Owner(pendingBase))
}

func TestReapUntilFreeStopsWhenSatisfied(t *testing.T) {
	s := soup.New(16)
	table := organism.NewTable()
	r := New(table, s)

	for i := 0; i < 3; i++ {
		base, id := s.Allocate(4)
		o := table.Inject(int64(i), base, 4, id, cpustate.New(base))
		r.Register(o)
	}
	// 4 cells remain free already; asking for 4 should need no kills.
	killed := r.ReapUntilFree(4)
	require.Equal(t, 0, killed)
}

func TestReapUntilFreeKillsOldestUntilRoomExists(t *testing.T) {
	s := soup.New(16)
	table := organism.NewTable()
	r := New(table, s)

	for i := 0; i < 4; i++ {
		base, id := s.Allocate(4)
		o := table.Inject(int64(i), base, 4, id, cpustate.New(base))
		r.Register(o)
	}
	// soup full: need to reap to get 8 words free.
	killed := r.ReapUntilFree(8)
	require.Equal(t, 2, killed)
	require.Equal(t, int64(2), r.Deaths())
}

func TestUnregisterRemovesEntry(t *testing.T) {
	s := soup.New(16)
	table := organism.NewTable()
	r := New(table, s)

	base, id := s.Allocate(4)
	o := table.Inject(1, base, 4, id, cpustate.New(base))
	r.Register(o)
	r.Unregister(o.ID)
	require.Equal(t, 0, r.Len())
}
