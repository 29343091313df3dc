// Package ancestor provides example self-replicating genomes for tests and
// demonstrations; the CLI does not use it. None of this is wired into the
// core: spec.md §9 is explicit that "the specific
// ancestor genome is a collaborator input" and the runtime must not
// hard-code one. sim, checkpoint and vcpu never import this package.
package ancestor

import "proteus/isa"

// Adam is a minimal self-replicator: it allocates a span the size of its
// own genome, copies itself into it word by word (subject to COPY's
// mutation rate), spawns the child, and loops forever. It uses GETADDR so
// it replicates correctly from any injection address (position-independent
// code, spec.md §4.6).
func Adam() []int32 {
	prog := []isa.Instruction{
		{Op: isa.MOVI, R1: 0, Imm: 13}, // 0: R0 = genome size
		{Op: isa.ALLOCATE, R1: 0, R2: 1}, // 1: R1 = allocated base (or -1)
		{Op: isa.GETADDR, R1: 3}, // 2: R3 = my own start_addr
		{Op: isa.MOVI, R1: 2, Imm: 0}, // 3: R2 = i = 0
		{Op: isa.MOV, R1: 4, R2: 3}, // 4 (loop): R4 = R3
		{Op: isa.ADD, R1: 4, R2: 2}, // 5: R4 += i  (src = start_addr+i)
		{Op: isa.MOV, R1: 5, R2: 1}, // 6: R5 = R1
		{Op: isa.ADD, R1: 5, R2: 2}, // 7: R5 += i  (dst = alloc_base+i)
		{Op: isa.COPY, R1: 4, R2: 5}, // 8: soup[dst] = soup[src] (maybe mutated)
		{Op: isa.INC, R1: 2}, // 9: i++
		{Op: isa.JLT, R1: 2, R2: 0, Offset: -7}, // 10: if i < size, loop to 4
		{Op: isa.SPAWN, R1: 1, R2: 0}, // 11: spawn the child
		{Op: isa.JMP, Offset: -13}, // 12: restart from 0
	}
	words := make([]int32, len(prog))
	for i, in := range prog {
		w, err := isa.Encode(in)
		if err != nil {
			panic(err) // a bug in this fixture, not a runtime condition
		}
		words[i] = int32(w)
	}
	return words
}
