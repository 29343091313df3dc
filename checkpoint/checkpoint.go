// Package checkpoint implements the versioned snapshot format of spec.md
// §6: soup contents as run-length non-zero segments, every alive
// organism's full state, the RNG state blob, and the statistics block.
// Serialization uses encoding/gob the way the teacher's state.go snapshots
// a running simulation, wrapped in a small versioned binary container
// (magic + version prefix) so malformed or foreign files are rejected
// before anything is mutated.
package checkpoint

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"

	"proteus/cpustate"
	"proteus/organism"
	"proteus/rng"
	"proteus/sim"
)

// Magic identifies a Proteus checkpoint file (spec.md §6).
const Magic uint32 = 0x50524F54

// Version is the current checkpoint format version. Readers reject any
// version below 2 (spec.md §6).
const Version uint32 = 2

// Segment is a run of non-zero soup words (spec.md §6: "Zero cells are not
// stored").
type Segment struct {
	Base  int32
	Words []int32
}

// PendingAlloc mirrors cpustate.PendingAlloc for gob encoding.
type PendingAlloc struct {
	Addr, Size int32
	AllocID    uint32
}

// OrganismRecord is one alive organism's full checkpointed state.
type OrganismRecord struct {
	ID         int64
	StartAddr  int32
	Size       int32
	ParentID   int64
	BirthCycle int64
	AllocID    uint32
	IP         int32
	Errors     int64
	Age        int64
	Regs       [cpustate.NumRegisters]int32
	Pending    *PendingAlloc
}

// StatsBlock is the statistics section of spec.md §6.
type StatsBlock struct {
	Spawns      int64
	ReaperKills int64
	ErrorDeaths int64
	Mutations   int64
}

// body is the gob-encoded payload following the fixed magic/version header.
type body struct {
	Cycle        int64
	InitialSeed  int64
	RNGState     rng.State
	SoupSize     int32
	NextAllocID  uint32
	NextCursor   int32
	NextOrgID    int64
	Segments     []Segment
	Organisms    []OrganismRecord
	Stats        StatsBlock

	Config sim.Config
}

// Save writes a complete, versioned snapshot of s to w.
func Save(w io.Writer, s *sim.Simulator) error {
	rngSnap := s.RNG.Snapshot() // capture RNG state first: saving must not consume it (spec.md §5)

	b := body{
		Cycle:       s.Cycle(),
		InitialSeed: s.Config().Seed,
		RNGState:    rngSnap,
		SoupSize:    int32(s.Soup.Len()),
		NextAllocID: s.Soup.NextAllocID(),
		NextCursor:  s.Soup.Cursor(),
		NextOrgID:   s.Table.NextID(),
		Segments:    segments(s),
		Organisms:   organisms(s),
		Stats: StatsBlock{
			Spawns:      s.Stats().Spawns,
			ReaperKills: s.Stats().ReaperKills,
			ErrorDeaths: s.Stats().ErrorDeaths,
			Mutations:   s.Stats().Mutations,
		},
		Config: s.Config(),
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, Magic); err != nil {
		return fmt.Errorf("checkpoint: write magic: %w", err)
	}
	if err := binary.Write(bw, binary.BigEndian, Version); err != nil {
		return fmt.Errorf("checkpoint: write version: %w", err)
	}
	if err := gob.NewEncoder(bw).Encode(&b); err != nil {
		return fmt.Errorf("checkpoint: encode body: %w", err)
	}
	return bw.Flush()
}

func segments(s *sim.Simulator) []Segment {
	words := s.Soup.Words()
	var segs []Segment
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
		seg := Segment{Base: int32(start), Words: append([]int32(nil), words[start:i]...)}
		segs = append(segs, seg)
	}
	return segs
}

func organisms(s *sim.Simulator) []OrganismRecord {
	alive := s.Table.Alive()
	out := make([]OrganismRecord, 0, len(alive))
	for _, o := range alive {
		rec := OrganismRecord{
			ID:         o.ID,
			StartAddr:  o.StartAddr,
			Size:       o.Size,
			ParentID:   o.ParentID,
			BirthCycle: o.BirthCycle,
			AllocID:    o.AllocID,
			IP:         o.State.IP,
			Errors:     o.State.Errors,
			Age:        o.State.Age,
			Regs:       o.State.Regs,
		}
		if o.State.Pending != nil {
			rec.Pending = &PendingAlloc{
				Addr:    o.State.Pending.Addr,
				Size:    o.State.Pending.Size,
				AllocID: o.State.Pending.AllocID,
			}
		}
		out = append(out, rec)
	}
	return out
}

// Load reads a checkpoint and reconstructs a Simulator from it. It
// validates magic, version, and span-overlap invariants before mutating
// any live state (spec.md §7: "Checkpoint restore validates magic,
// version, and overlap invariants before mutating live state").
func Load(r io.Reader, log *slog.Logger) (*sim.Simulator, error) {
	br := bufio.NewReader(r)

	var magic, version uint32
	if err := binary.Read(br, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("checkpoint: read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("checkpoint: bad magic 0x%X, want 0x%X", magic, Magic)
	}
	if err := binary.Read(br, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("checkpoint: read version: %w", err)
	}
	if version < 2 {
		return nil, fmt.Errorf("checkpoint: version %d unsupported, want >= 2", version)
	}

	var b body
	if err := gob.NewDecoder(br).Decode(&b); err != nil {
		return nil, fmt.Errorf("checkpoint: decode body: %w", err)
	}

	if err := validateNoOverlap(b.Organisms); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	cfg := b.Config
	cfg.SoupSize = int(b.SoupSize)
	cfg.Seed = b.InitialSeed
	s := sim.NewEmpty(cfg, log)

	for _, seg := range b.Segments {
		for i, w := range seg.Words {
			s.Soup.Write(seg.Base+int32(i), w)
		}
	}

	for _, rec := range b.Organisms {
		s.Soup.MarkUsedWithID(rec.StartAddr, rec.Size, rec.AllocID)
		st := cpustate.State{StartAddr: rec.StartAddr, IP: rec.IP, Errors: rec.Errors, Age: rec.Age, Regs: rec.Regs}
		if rec.Pending != nil {
			st.Pending = &cpustate.PendingAlloc{Addr: rec.Pending.Addr, Size: rec.Pending.Size, AllocID: rec.Pending.AllocID}
			s.Soup.MarkUsedWithID(rec.Pending.Addr, rec.Pending.Size, rec.Pending.AllocID)
		}
		o := &organism.Organism{
			ID: rec.ID, ParentID: rec.ParentID, BirthCycle: rec.BirthCycle,
			StartAddr: rec.StartAddr, Size: rec.Size, AllocID: rec.AllocID,
			Alive: true, State: st,
		}
		s.Table.Restore(o)
		s.Reaper.Register(o)
	}

	s.Table.SetNextID(b.NextOrgID)
	s.Soup.SetNextAllocID(b.NextAllocID)
	s.Soup.SetCursor(b.NextCursor)
	s.RNG.Restore(b.RNGState)
	s.SetCycle(b.Cycle)
	s.RestoreStats(b.Stats.Spawns, b.Stats.ErrorDeaths, b.Stats.Mutations)
	s.Reaper.SetDeaths(b.Stats.ReaperKills)

	return s, nil
}

// validateNoOverlap checks that no two checkpointed organisms' spans
// intersect, before any of them are installed (spec.md §6 restore
// invariants: "ensure no overlaps before acceptance").
func validateNoOverlap(recs []OrganismRecord) error {
	type span struct{ lo, hi int32 }
	spans := make([]span, 0, len(recs))
	for _, r := range recs {
		if r.Size <= 0 {
			return fmt.Errorf("organism %d has non-positive size %d", r.ID, r.Size)
		}
		spans = append(spans, span{r.StartAddr, r.StartAddr + r.Size})
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a.lo < b.hi && b.lo < a.hi {
				return fmt.Errorf("organisms %d and %d have overlapping spans", recs[i].ID, recs[j].ID)
			}
		}
	}
	return nil
}
