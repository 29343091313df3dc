// Package vcpu implements the single-step interpreter of spec.md §4.2: one
// call consumes at most one instruction from a single organism. The VCPU
// owns opcode dispatch and the read/write/bounds-check plumbing against the
// soup; it delegates SPAWN materialization to a Syscalls implementation
// (the scheduler, which alone knows the population cap and owns the
// organism table) and ALLOCATE directly to the soup's memory manager.
package vcpu

import (
	"proteus/cpustate"
	"proteus/isa"
	"proteus/organism"
	"proteus/rng"
	"proteus/soup"
)

// Result is the outcome tag of one Step call (spec.md §4.2).
type Result int

const (
	OK Result = iota
	ErrIPOutOfBounds
	ErrUnknownOpcode
	ErrMemOutOfBounds
	AllocOK
	AllocFailed
	SpawnOK
	SpawnFailed
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case ErrIPOutOfBounds:
		return "ERR_IP_OUT_OF_BOUNDS"
	case ErrUnknownOpcode:
		return "ERR_UNKNOWN_OPCODE"
	case ErrMemOutOfBounds:
		return "ERR_MEM_OUT_OF_BOUNDS"
	case AllocOK:
		return "ALLOC_OK"
	case AllocFailed:
		return "ALLOC_FAILED"
	case SpawnOK:
		return "SPAWN_OK"
	case SpawnFailed:
		return "SPAWN_FAILED"
	default:
		return "UNKNOWN_RESULT"
	}
}

// MutationObserver is informed whenever a COPY mutates its copied value.
type MutationObserver interface {
	OnMutation(cycle int64, src, dst int32, original, mutated int32)
}

// SpawnRequest describes a materialization request handed to Syscalls.Spawn
// once the VCPU has validated the span is in-bounds and (if requested)
// ownership-consistent.
type SpawnRequest struct {
	ParentID int64
	Addr     int32
	Size     int32
	AllocID  uint32
}

// Syscalls is the scheduler-side half of the ALLOCATE/SPAWN protocol
// (spec.md §4.3): population-cap enforcement and organism creation.
type Syscalls interface {
	// Spawn attempts to materialize a child organism. It must itself
	// re-check the population cap; on success it registers the child with
	// the organism table and reaper and returns true.
	Spawn(req SpawnRequest) bool
}

// Env bundles everything Step needs beyond the organism itself. CheckOwnership
// controls whether SPAWN verifies that the pending span is still wholly
// owned by the pending alloc_id before materializing (spec.md §4.3,
// "(optional) ownership consistency").
type Env struct {
	Soup           *soup.Soup
	RNG            *rng.RNG
	MutationRate   float64
	Observer       MutationObserver // nil disables mutation reporting
	Syscalls       Syscalls
	Cycle          int64
	CheckOwnership bool
}

// Step executes exactly one instruction for org. Age is incremented on
// every call regardless of outcome.
func Step(org *organism.Organism, env *Env) Result {
	st := &org.State
	st.Age++

	absIP := st.AbsIP()
	if !env.Soup.InBounds(absIP) {
		st.Errors++
		return ErrIPOutOfBounds
	}

	word := uint32(env.Soup.Read(int32(absIP)))
	in := isa.Decode(word)
	if !in.Op.Valid() {
		st.Errors++
		st.IP++
		return ErrUnknownOpcode
	}

	switch in.Op {
	case isa.NOP:
		st.IP++
		return OK

	case isa.MOV:
		st.Regs[in.R1&7] = st.Regs[in.R2&7]
		st.IP++
		return OK

	case isa.MOVI:
		st.Regs[in.R1&7] = in.Imm
		st.IP++
		return OK

	case isa.GETADDR:
		st.Regs[in.R1&7] = st.StartAddr
		st.IP++
		return OK

	case isa.ADD:
		st.Regs[in.R1&7] += st.Regs[in.R2&7]
		st.IP++
		return OK

	case isa.SUB:
		st.Regs[in.R1&7] -= st.Regs[in.R2&7]
		st.IP++
		return OK

	case isa.INC:
		st.Regs[in.R1&7]++
		st.IP++
		return OK

	case isa.DEC:
		st.Regs[in.R1&7]--
		st.IP++
		return OK

	case isa.LOAD:
		addr := int64(st.StartAddr) + int64(st.Regs[in.R2&7])
		if !env.Soup.InBounds(addr) {
			st.Errors++
			st.IP++
			return ErrMemOutOfBounds
		}
		st.Regs[in.R1&7] = env.Soup.Read(int32(addr))
		st.IP++
		return OK

	case isa.STORE:
		addr := int64(st.StartAddr) + int64(st.Regs[in.R1&7])
		if !env.Soup.InBounds(addr) {
			st.Errors++
			st.IP++
			return ErrMemOutOfBounds
		}
		env.Soup.Write(int32(addr), st.Regs[in.R2&7])
		st.IP++
		return OK

	case isa.JMP:
		st.IP++
		st.IP += in.Offset
		return OK

	case isa.JMPZ:
		st.IP++
		if st.Regs[in.R1&7] == 0 {
			st.IP += in.Offset
		}
		return OK

	case isa.JLT:
		st.IP++
		if st.Regs[in.R1&7] < st.Regs[in.R2&7] {
			st.IP += in.Offset
		}
		return OK

	case isa.COPY:
		return stepCopy(org, env, in)

	case isa.ALLOCATE:
		return stepAllocate(org, env, in)

	case isa.SPAWN:
		return stepSpawn(org, env, in)

	case isa.SEARCH:
		return stepSearch(org, env, in)

	default:
		st.Errors++
		st.IP++
		return ErrUnknownOpcode
	}
}

func stepCopy(org *organism.Organism, env *Env, in isa.Instruction) Result {
	st := &org.State
	src := st.Regs[in.R1&7]
	dst := st.Regs[in.R2&7]

	if !env.Soup.InBounds(int64(src)) || !env.Soup.InBounds(int64(dst)) {
		st.Errors++
		st.IP++
		return ErrMemOutOfBounds
	}

	original := env.Soup.Read(src)
	val := original
	if env.RNG != nil && env.RNG.CoinFlip(env.MutationRate) {
		bit := env.RNG.BitIndex()
		val ^= 1 << bit
		if env.Observer != nil {
			env.Observer.OnMutation(env.Cycle, src, dst, original, val)
		}
	}
	env.Soup.Write(dst, val)
	st.IP++
	return OK
}

func stepAllocate(org *organism.Organism, env *Env, in isa.Instruction) Result {
	st := &org.State
	size := st.Regs[in.R1&7]

	if st.Pending != nil {
		env.Soup.FreeByID(st.Pending.Addr, st.Pending.Size, st.Pending.AllocID)
		st.Pending = nil
	}

	base, id := env.Soup.Allocate(size)
	if base < 0 {
		st.Regs[in.R2&7] = -1
		st.IP++
		return AllocFailed
	}
	st.Pending = &cpustate.PendingAlloc{Addr: base, Size: size, AllocID: id}
	st.Regs[in.R2&7] = base
	st.IP++
	return AllocOK
}

func stepSpawn(org *organism.Organism, env *Env, in isa.Instruction) Result {
	st := &org.State
	addr := st.Regs[in.R1&7]
	size := st.Regs[in.R2&7]
	st.IP++

	pending := st.Pending
	st.Pending = nil

	fail := func() Result {
		if pending != nil {
			env.Soup.FreeByID(pending.Addr, pending.Size, pending.AllocID)
		}
		return SpawnFailed
	}

	if pending == nil || size <= 0 {
		return fail()
	}
	if addr != pending.Addr || size != pending.Size {
		return fail()
	}
	if !env.Soup.InBounds(int64(addr)) || !env.Soup.InBounds(int64(addr)+int64(size)-1) {
		return fail()
	}
	if env.CheckOwnership && !env.Soup.OwnedExclusively(addr, size, pending.AllocID) {
		return fail()
	}
	if env.Syscalls == nil {
		return fail()
	}

	ok := env.Syscalls.Spawn(SpawnRequest{
		ParentID: org.ID,
		Addr:     addr,
		Size:     size,
		AllocID:  pending.AllocID,
	})
	if !ok {
		return fail()
	}
	return SpawnOK
}

func stepSearch(org *organism.Organism, env *Env, in isa.Instruction) Result {
	st := &org.State
	start := st.Regs[in.R1&7]
	tmplAddr := st.Regs[in.R2&7]
	length := st.Regs[in.R3&7]

	result := int32(-1)
	n := int32(env.Soup.Len())

	if start < 0 {
		start = 0
	}
	if length > 0 && tmplAddr >= 0 && env.Soup.InBounds(int64(tmplAddr)) && env.Soup.InBounds(int64(tmplAddr)+int64(length)-1) {
		limit := n - length
		for i := start; i <= limit; i++ {
			if matchesTemplate(env.Soup, i, tmplAddr, length) {
				result = i
				break
			}
		}
	}

	st.Regs[in.R4&7] = result
	st.IP++
	return OK
}

func matchesTemplate(s *soup.Soup, at, tmpl, length int32) bool {
	for k := int32(0); k < length; k++ {
		if s.Read(at+k) != s.Read(tmpl+k) {
			return false
		}
	}
	return true
}
