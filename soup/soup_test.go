package soup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateBasic(t *testing.T) {
	s := New(16)
	base, id := s.Allocate(4)
	require.Equal(t, int32(0), base)
	require.Equal(t, uint32(1), id)
	require.True(t, s.OwnedExclusively(0, 4, id))

	base2, id2 := s.Allocate(4)
	require.Equal(t, int32(4), base2)
	require.NotEqual(t, id, id2)
}

func TestAllocateTooLarge(t *testing.T) {
	s := New(16)
	base, id := s.Allocate(17)
	require.Equal(t, int32(-1), base)
	require.Equal(t, uint32(0), id)
}

func TestAllocateWrapsAndFails(t *testing.T) {
	s := New(8)
	_, _ = s.Allocate(8) // fill completely
	base, _ := s.Allocate(1)
	require.Equal(t, int32(-1), base)
}

func TestFreeIsIdempotent(t *testing.T) {
	s := New(8)
	base, _ := s.Allocate(4)
	s.Free(base, 4)
	s.Free(base, 4) // double free, no-op
	require.Equal(t, Free, s.Owner(base))
}

func TestFreeByIDLeavesOtherOwners(t *testing.T) {
	s := New(8)
	base, id := s.Allocate(4)
	// simulate a parasite overwriting one cell's ownership directly
	s.owner[base+1] = 999
	freed := s.FreeByID(base, 4, id)
	require.Equal(t, int32(3), freed)
	require.Equal(t, uint32(999), s.Owner(base+1))
}

func TestFreeIfOwnedMixedFails(t *testing.T) {
	s := New(8)
	base, _ := s.Allocate(4)
	s.owner[base+1] = 999
	ok := s.FreeIfOwned(base, 4)
	require.False(t, ok)
}

func TestMarkUsedAndRebuild(t *testing.T) {
	s := New(8)
	id := s.MarkUsed(2, 3)
	require.True(t, s.OwnedExclusively(2, 3, id))
	s.Rebuild()
	stats := s.Stats()
	require.Equal(t, 8, stats.FreeCells)
}

func TestStatsFragmentation(t *testing.T) {
	s := New(10)
	s.MarkUsed(0, 2)
	s.MarkUsed(5, 2)
	stats := s.Stats()
	require.Equal(t, 6, stats.FreeCells)
	require.Equal(t, 3, stats.LargestFree) // cells 7,8,9
	require.Equal(t, 2, stats.FreeRuns)    // [2,5) and [7,10)
}

func TestCursorReusesFreedHole(t *testing.T) {
	s := New(8)
	base, _ := s.Allocate(4)
	s.Free(base, 4)
	base2, _ := s.Allocate(4)
	require.Equal(t, base, base2)
}
