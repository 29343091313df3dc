// Package organism holds organism identity, genealogy and the organism
// table (spec.md §3, §2). The table owns organisms; the reaper and
// scheduler hold only ids, per the "cyclic references" design note (§9).
package organism

import "proteus/cpustate"

// Organism is one executing program: identity, its span of the soup, and
// its CPU state.
type Organism struct {
	ID         int64
	ParentID   int64 // -1 for injected organisms
	BirthCycle int64

	StartAddr int32
	Size      int32
	AllocID   uint32

	Alive bool
	State cpustate.State

	Name string // optional human label
}

// Span reports the half-open interval this organism occupies.
func (o *Organism) Span() (lo, hi int32) {
	return o.StartAddr, o.StartAddr + o.Size
}

// Table owns every organism ever created and tracks the monotone id
// counter. Dead organisms remain in the table (for genealogy queries) but
// are excluded from Alive().
type Table struct {
	byID   map[int64]*Organism
	order  []int64 // insertion order, for stable iteration
	nextID int64
}

// NewTable returns an empty organism table.
func NewTable() *Table {
	return &Table{byID: make(map[int64]*Organism), nextID: 1}
}

// Inject registers an externally-created organism (parentID -1) at
// birthCycle, with the given span and starting CPU state. Returns the new
// organism.
func (t *Table) Inject(birthCycle int64, startAddr, size int32, allocID uint32, state cpustate.State) *Organism {
	return t.create(-1, birthCycle, startAddr, size, allocID, state)
}

// Spawn registers a child of parentID, created at birthCycle via SPAWN.
func (t *Table) Spawn(parentID int64, birthCycle int64, startAddr, size int32, allocID uint32, state cpustate.State) *Organism {
	return t.create(parentID, birthCycle, startAddr, size, allocID, state)
}

func (t *Table) create(parentID, birthCycle int64, startAddr, size int32, allocID uint32, state cpustate.State) *Organism {
	id := t.nextID
	t.nextID++
	o := &Organism{
		ID:         id,
		ParentID:   parentID,
		BirthCycle: birthCycle,
		StartAddr:  startAddr,
		Size:       size,
		AllocID:    allocID,
		Alive:      true,
		State:      state,
	}
	t.byID[id] = o
	t.order = append(t.order, id)
	return o
}

// Get looks up an organism by id, alive or dead.
func (t *Table) Get(id int64) (*Organism, bool) {
	o, ok := t.byID[id]
	return o, ok
}

// NextID returns the id that will be assigned to the next created organism,
// exposed for checkpoint round-tripping.
func (t *Table) NextID() int64 { return t.nextID }

// SetNextID restores the monotone counter from a checkpoint.
func (t *Table) SetNextID(id int64) { t.nextID = id }

// Restore registers an organism loaded verbatim from a checkpoint (its id,
// alloc_id and all CPU state already fixed). It does not consume NextID;
// callers must call SetNextID separately once all organisms are restored.
func (t *Table) Restore(o *Organism) {
	t.byID[o.ID] = o
	t.order = append(t.order, o.ID)
}

// Alive returns every living organism, sorted by id ascending (spec.md §4.7
// step 1, §5 ordering guarantee).
func (t *Table) Alive() []*Organism {
	out := make([]*Organism, 0, len(t.order))
	for _, id := range t.order {
		if o := t.byID[id]; o.Alive {
			out = append(out, o)
		}
	}
	// order is already insertion (== id) order since ids are monotone.
	return out
}

// Count returns the number of currently-alive organisms.
func (t *Table) Count() int {
	n := 0
	for _, id := range t.order {
		if t.byID[id].Alive {
			n++
		}
	}
	return n
}

// All returns every organism ever created, alive or dead, in id order.
func (t *Table) All() []*Organism {
	out := make([]*Organism, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// Kill marks an organism dead. It does not free its memory span; callers
// (the reaper, the error-cleanup path) are responsible for that via soup.
func (o *Organism) Kill() {
	o.Alive = false
}
