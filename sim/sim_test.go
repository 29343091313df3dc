package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"proteus/ancestor"
)

func newTestSim(soupSize, maxOrganisms int, mutationRate float64, seed int64) *Simulator {
	cfg := DefaultConfig()
	cfg.SoupSize = soupSize
	cfg.MaxOrganisms = maxOrganisms
	cfg.MutationRate = mutationRate
	cfg.Seed = seed
	return New(cfg, nil)
}

func TestAncestorReplicatesAndPopulationCapsOut(t *testing.T) {
	s := newTestSim(1024, 8, 0, 42)
	genome := ancestor.Adam()
	_, err := s.Inject(genome, 0)
	require.NoError(t, err)

	sawMultiple := false
	for i := 0; i < 2000; i++ {
		s.RunOneCycle()
		if s.Table.Count() >= 2 {
			sawMultiple = true
		}
		if s.Table.Count() >= 8 {
			break
		}
	}
	require.True(t, sawMultiple)
	require.Equal(t, 8, s.Table.Count())
	assertConservation(t, s)
}

func TestConservationHoldsThroughoutRun(t *testing.T) {
	s := newTestSim(2048, 16, 0, 7)
	genome := ancestor.Adam()
	_, err := s.Inject(genome, 0)
	require.NoError(t, err)

	for i := 0; i < 3000; i++ {
		s.RunOneCycle()
		assertConservation(t, s)
	}
}

func TestMutationRateProducesDivergentChildren(t *testing.T) {
	s := newTestSim(4096, 32, 0.5, 99)
	genome := ancestor.Adam()
	_, err := s.Inject(genome, 0)
	require.NoError(t, err)

	for i := 0; i < 2000; i++ {
		s.RunOneCycle()
	}
	require.Greater(t, s.Stats().Mutations, int64(0))
}

func TestDeterministicReplay(t *testing.T) {
	run := func() ([]int64, Stats) {
		s := newTestSim(1024, 8, 0.1, 12345)
		_, _ = s.Inject(ancestor.Adam(), 0)
		for i := 0; i < 500; i++ {
			s.RunOneCycle()
		}
		var ids []int64
		for _, o := range s.Table.All() {
			ids = append(ids, o.ID)
		}
		return ids, s.Stats()
	}

	ids1, stats1 := run()
	ids2, stats2 := run()
	require.Equal(t, ids1, ids2)
	require.Equal(t, stats1, stats2)
}

func TestInjectAssignsAllocID(t *testing.T) {
	s := newTestSim(64, 4, 0, 1)
	o, err := s.Inject([]int32{1, 2, 3}, 10)
	require.NoError(t, err)
	require.True(t, s.Soup.OwnedExclusively(10, 3, o.AllocID))
	require.Equal(t, int64(-1), o.ParentID)
}

// assertConservation checks spec.md §8: free_cells + Σ size(O) + Σ
// size(pending) == N.
func assertConservation(t *testing.T, s *Simulator) {
	t.Helper()
	stats := s.Soup.Stats()
	total := stats.FreeCells
	for _, o := range s.Table.Alive() {
		total += int(o.Size)
		if o.State.Pending != nil {
			total += int(o.State.Pending.Size)
		}
	}
	require.Equal(t, s.Soup.Len(), total)
}
