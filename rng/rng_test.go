package rng

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicStream(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}
}

func TestSnapshotRestoreContinuesStream(t *testing.T) {
	a := New(7)
	for i := 0; i < 10; i++ {
		a.Float64()
	}
	snap := a.Snapshot()

	b := New(0)
	b.Restore(snap)

	for i := 0; i < 10; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}
}

func TestSnapshotDoesNotConsume(t *testing.T) {
	a := New(123)
	snap := a.Snapshot()
	want := a.Float64()

	b := New(0)
	b.Restore(snap)
	require.Equal(t, want, b.Float64())
}

func TestCoinFlipBounds(t *testing.T) {
	r := New(1)
	require.False(t, r.CoinFlip(0))
	require.True(t, r.CoinFlip(1))
}

func TestBitIndexRange(t *testing.T) {
	r := New(9)
	for i := 0; i < 1000; i++ {
		b := r.BitIndex()
		require.True(t, b < 32)
	}
}
