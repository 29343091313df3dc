// Package rng provides the single process-wide random generator described
// in spec.md §3: seeded once, explicitly injected (no package-level global),
// and snapshot-able so a checkpoint can resume the exact same stochastic
// stream. The standard library's math/rand.Rand does not expose its
// internal state for marshaling, so this wraps a small explicit xorshift64*
// generator instead — the same "seed once, draw in a fixed order" contract
// the teacher's math/rand.Seed usage follows, made serializable.
package rng

// RNG is a deterministic, explicitly-seeded generator. It is not safe for
// concurrent use; the simulator is single-threaded by design (spec.md §5).
type RNG struct {
	state uint64
	seed  int64
}

// New returns an RNG seeded with seed. A zero state is disallowed by
// xorshift64*, so a zero seed is folded into a fixed nonzero constant.
func New(seed int64) *RNG {
	r := &RNG{seed: seed}
	r.state = uint64(seed)
	if r.state == 0 {
		r.state = 0x9E3779B97F4A7C15
	}
	return r
}

// Seed reports the seed the RNG was constructed with (or last restored to).
func (r *RNG) Seed() int64 { return r.seed }

// next draws the next raw 64-bit value, advancing state.
func (r *RNG) next() uint64 {
	x := r.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	r.state = x
	return x * 0x2545F4914F6CDD1D
}

// Float64 returns a pseudo-random value in [0, 1).
func (r *RNG) Float64() float64 {
	return float64(r.next()>>11) / (1 << 53)
}

// CoinFlip reports true with probability p (clamped to [0,1]). Used for the
// COPY mutation decision (spec.md §4.2).
func (r *RNG) CoinFlip(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.Float64() < p
}

// Intn returns a pseudo-random integer in [0, n). Panics if n <= 0.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with n <= 0")
	}
	return int(r.next() % uint64(n))
}

// BitIndex returns a uniformly chosen bit index in [0, 32) for a mutation.
func (r *RNG) BitIndex() uint {
	return uint(r.Intn(32))
}

// State is the serializable snapshot of the generator (spec.md §6: "RNG
// state opaque blob").
type State struct {
	Seed      int64
	Generator uint64
}

// Snapshot captures the current state. Must be called before any further
// draws if it is to be used to resume reproducibly (spec.md §5: "saving
// does not consume the RNG").
func (r *RNG) Snapshot() State {
	return State{Seed: r.seed, Generator: r.state}
}

// Restore replaces the generator's state from a snapshot.
func (r *RNG) Restore(s State) {
	r.seed = s.Seed
	r.state = s.Generator
	if r.state == 0 {
		r.state = 0x9E3779B97F4A7C15
	}
}
