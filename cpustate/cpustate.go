// Package cpustate holds the per-organism CPU state described in spec.md §3:
// eight general registers, a relative instruction pointer, and the
// pending-allocation hand-off slot used by the ALLOCATE/SPAWN protocol.
package cpustate

// NumRegisters is the register file width (R0..R7).
const NumRegisters = 8

// PendingAlloc captures a successful ALLOCATE whose SPAWN has not yet
// occurred (spec.md §4.3).
type PendingAlloc struct {
	Addr    int32
	Size    int32
	AllocID uint32
}

// State is one organism's CPU state. StartAddr mirrors the organism's
// absolute base and is kept in lockstep with it by the defragmenter; IP
// is always relative to StartAddr.
type State struct {
	Regs [NumRegisters]int32

	IP        int32 // relative to StartAddr
	StartAddr int32 // absolute base, mirrors organism.StartAddr

	Errors int64
	Age    int64

	Pending *PendingAlloc // nil when no allocation is outstanding
}

// New returns a zero-initialized CPU state at the given absolute base.
func New(startAddr int32) State {
	return State{StartAddr: startAddr}
}

// AbsIP returns the absolute instruction pointer.
func (s *State) AbsIP() int64 {
	return int64(s.StartAddr) + int64(s.IP)
}

// Clone returns a deep copy: the pending slot is copied, not shared.
func (s *State) Clone() State {
	out := *s
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	return out
}
