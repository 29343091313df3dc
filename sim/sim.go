// Package sim ties the core together into the deterministic, single-
// threaded cooperative scheduler of spec.md §4.7: per cycle it steps every
// alive organism once in increasing-id order, runs the syscall handler for
// ALLOCATE/SPAWN, prunes the dead, and (when allocation pressure or
// fragmentation demands it) runs the reaper and defragmenter.
package sim

import (
	"log/slog"

	"proteus/cpustate"
	"proteus/defrag"
	"proteus/frame"
	"proteus/organism"
	"proteus/reaper"
	"proteus/rng"
	"proteus/soup"
	"proteus/vcpu"
)

// Stats are the end-of-cycle observability counters of spec.md §4.7 / §6.
type Stats struct {
	Spawns      int64
	ErrorDeaths int64 // organisms killed by the (optional) error threshold
	ReaperKills int64
	Mutations   int64
}

// Simulator owns every piece of mutable state for one run: the soup, the
// organism table, the reaper, the RNG, and the policy configuration. It is
// not safe for concurrent use — spec.md §5 makes single-threaded execution
// a design invariant, not an implementation shortcut.
type Simulator struct {
	cfg Config
	log *slog.Logger

	Soup   *soup.Soup
	Table  *organism.Table
	Reaper *reaper.Reaper
	RNG    *rng.RNG

	cycle int64
	stats Stats

	recordFrame bool
	lastFrame   frame.Frame
	events      []frame.Event
	mutationsThisCycle int64
}

// New constructs a Simulator with a freshly allocated soup, seeded RNG, and
// empty organism table. The soup is randomized per the teacher's
// initializeSimulation convention (rand fill of the whole arena before
// injection).
func New(cfg Config, log *slog.Logger) *Simulator {
	s := newEmpty(cfg, log)
	s.Soup.SeedRandom(func(i int) int32 { return int32(uint32(s.RNG.Intn(1 << 31))) })
	return s
}

// NewEmpty constructs a Simulator like New, but with an all-zero soup. Used
// by checkpoint.Load, which restores non-zero regions explicitly and would
// otherwise have its zero-background cells overwritten by New's noise.
func NewEmpty(cfg Config, log *slog.Logger) *Simulator {
	return newEmpty(cfg, log)
}

func newEmpty(cfg Config, log *slog.Logger) *Simulator {
	if log == nil {
		log = slog.Default()
	}
	s := soup.New(cfg.SoupSize)
	r := rng.New(cfg.Seed)
	table := organism.NewTable()
	return &Simulator{
		cfg:    cfg,
		log:    log,
		Soup:   s,
		Table:  table,
		Reaper: reaper.New(table, s),
		RNG:    r,
	}
}

// Cycle returns the number of cycles executed so far.
func (s *Simulator) Cycle() int64 { return s.cycle }

// SetCycle restores the cycle counter from a checkpoint.
func (s *Simulator) SetCycle(c int64) { s.cycle = c }

// RestoreStats restores the spawn/error-death/mutation counters from a
// checkpoint's statistics block. ReaperKills is restored via
// s.Reaper.SetDeaths, not through this call.
func (s *Simulator) RestoreStats(spawns, errorDeaths, mutations int64) {
	s.stats.Spawns = spawns
	s.stats.ErrorDeaths = errorDeaths
	s.stats.Mutations = mutations
}

// Config returns the simulator's configuration.
func (s *Simulator) Config() Config { return s.cfg }

// Stats returns a copy of the current observability counters. ReaperKills
// is read live from the reaper, which is the single source of truth for
// that lifetime counter (also used to restore it from a checkpoint).
func (s *Simulator) Stats() Stats {
	st := s.stats
	st.ReaperKills = s.Reaper.Deaths()
	return st
}

// Inject places a genome at startAddr and registers a new organism for it,
// analogous to the teacher's initial population loop but driven by an
// externally supplied genome rather than a hard-coded ancestor (spec.md §9
// Open Question: "an implementation should not hard-code any specific
// genome").
func (s *Simulator) Inject(genome []int32, startAddr int32) (*organism.Organism, error) {
	size := int32(len(genome))
	id := s.Soup.MarkUsed(startAddr, size)
	for i, w := range genome {
		s.Soup.Write(startAddr+int32(i), w)
	}
	st := cpustate.New(startAddr)
	o := s.Table.Inject(s.cycle, startAddr, size, id, st)
	s.Reaper.Register(o)
	s.log.Info("injected organism", "id", o.ID, "start_addr", startAddr, "size", size)
	return o, nil
}

// RunCycles advances the simulation n cycles or until the population
// reaches zero, whichever comes first.
func (s *Simulator) RunCycles(n int64) {
	for i := int64(0); i < n; i++ {
		if s.Table.Count() == 0 {
			return
		}
		s.RunOneCycle()
	}
}

// RunOneCycle executes spec.md §4.7's per-cycle protocol once.
func (s *Simulator) RunOneCycle() *frame.Frame {
	s.events = s.events[:0]
	s.mutationsThisCycle = 0

	snapshot := s.Table.Alive() // stable id-ascending order (spec.md §4.7 step 1, §5)

	env := &vcpu.Env{
		Soup:           s.Soup,
		RNG:            s.RNG,
		MutationRate:   s.cfg.MutationRate,
		Observer:       s,
		Syscalls:       s,
		Cycle:          s.cycle,
		CheckOwnership: s.cfg.CheckSpawnOwnership,
	}

	for _, o := range snapshot {
		if !o.Alive {
			continue
		}
		res := vcpu.Step(o, env)
		s.recordStep(o, res)

		if s.cfg.ErrorThreshold > 0 && o.State.Errors >= s.cfg.ErrorThreshold && o.Alive {
			s.killByError(o)
		}
	}

	// Allocation pressure: if any ALLOCATE failed during this cycle, give
	// the reaper/defragmenter a chance before the next cycle's ALLOCATE
	// retries (spec.md §2, §4.7).
	s.maybeReclaim()

	fr := frame.Frame{
		Cycle:      s.cycle,
		Regions:    s.regions(),
		Organisms:  s.organismSnapshots(),
		Events:     append([]frame.Event(nil), s.events...),
		Population: s.Table.Count(),
	}
	s.lastFrame = fr
	s.cycle++
	return &fr
}

func (s *Simulator) killByError(o *organism.Organism) {
	o.Kill()
	s.Soup.Free(o.StartAddr, o.Size)
	if o.State.Pending != nil {
		s.Soup.Free(o.State.Pending.Addr, o.State.Pending.Size)
		o.State.Pending = nil
	}
	s.Reaper.Unregister(o.ID)
	s.stats.ErrorDeaths++
	s.events = append(s.events, frame.Event{Kind: frame.EventDeath, OrganismID: o.ID, Detail: "error-threshold"})
}

func (s *Simulator) recordStep(o *organism.Organism, res vcpu.Result) {
	switch res {
	case vcpu.OK:
		s.events = append(s.events, frame.Event{Kind: frame.EventInstruction, OrganismID: o.ID})
	case vcpu.ErrIPOutOfBounds, vcpu.ErrUnknownOpcode, vcpu.ErrMemOutOfBounds:
		s.events = append(s.events, frame.Event{Kind: frame.EventError, OrganismID: o.ID, Detail: res.String()})
	case vcpu.AllocOK:
		p := o.State.Pending
		s.events = append(s.events, frame.Event{Kind: frame.EventAllocation, OrganismID: o.ID, Addr: p.Addr, Size: p.Size})
	case vcpu.AllocFailed:
		s.events = append(s.events, frame.Event{Kind: frame.EventAllocationFailed, OrganismID: o.ID})
	case vcpu.SpawnOK:
		// the Spawn event itself is recorded from Syscalls.Spawn, where the
		// child id is known.
	}
}

// maybeReclaim runs the reaper and, if fragmentation still blocks progress,
// the defragmenter, whenever this cycle saw at least one failed ALLOCATE
// (spec.md §2: "if allocation pressure triggers, reaper and defragmenter
// run"). The target size is the current largest free run plus one word,
// just enough to make the next ALLOCATE of that size succeed.
func (s *Simulator) maybeReclaim() {
	pressured := false
	for _, e := range s.events {
		if e.Kind == frame.EventAllocationFailed {
			pressured = true
			break
		}
	}
	if !pressured {
		return
	}

	stats := s.Soup.Stats()
	required := int32(stats.LargestFree) + 1

	killed := s.Reaper.ReapUntilFree(required)
	if killed > 0 {
		s.log.Debug("reaper reclaimed space", "cycle", s.cycle, "killed", killed, "required", required)
	}

	if defrag.ShouldRun(s.Soup, s.cfg.DefragTheta, required) {
		s.log.Debug("defragmenting soup", "cycle", s.cycle)
		defrag.Run(s.Soup, s.Table)
	}
}

// Spawn implements vcpu.Syscalls. It enforces the population cap and, on
// success, registers the new organism with the table and the reaper
// (spec.md §4.3 step 3).
func (s *Simulator) Spawn(req vcpu.SpawnRequest) bool {
	if s.Table.Count() >= s.cfg.MaxOrganisms {
		return false
	}
	child := cpustate.New(req.Addr)
	o := s.Table.Spawn(req.ParentID, s.cycle, req.Addr, req.Size, req.AllocID, child)
	s.Reaper.Register(o)
	s.stats.Spawns++
	s.events = append(s.events, frame.Event{Kind: frame.EventSpawn, OrganismID: o.ID, ParentID: req.ParentID, Addr: req.Addr, Size: req.Size})
	return true
}

// OnMutation implements vcpu.MutationObserver.
func (s *Simulator) OnMutation(cycle int64, src, dst, original, mutated int32) {
	s.mutationsThisCycle++
	s.stats.Mutations++
	s.events = append(s.events, frame.Event{
		Kind: frame.EventMutation, Src: src, Dst: dst, Original: original, Mutated: mutated,
	})
}

func (s *Simulator) regions() []frame.Region {
	words := s.Soup.Words()
	var regions []frame.Region
	i := 0
	for i < len(words) {
		if words[i] == 0 {
			i++
			continue
		}
		start := i
		for i < len(words) && words[i] != 0 {
			i++
		}
		seg := make([]int32, i-start)
		copy(seg, words[start:i])
		regions = append(regions, frame.Region{Base: int32(start), Words: seg})
	}
	return regions
}

func (s *Simulator) organismSnapshots() []frame.OrganismSnapshot {
	alive := s.Table.Alive()
	out := make([]frame.OrganismSnapshot, 0, len(alive))
	for _, o := range alive {
		out = append(out, frame.OrganismSnapshot{
			ID:         o.ID,
			ParentID:   o.ParentID,
			StartAddr:  o.StartAddr,
			Size:       o.Size,
			IP:         o.State.IP,
			Age:        o.State.Age,
			Errors:     o.State.Errors,
			HasPending: o.State.Pending != nil,
		})
	}
	return out
}
