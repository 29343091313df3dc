// Package disasm renders decoded Proteus instructions back to assembly
// text, one line per soup word. Mnemonics come from isa's opcode name
// table; operands are formatted by a switch on isa.Opcode grouped by
// operand shape.
package disasm

import (
	"fmt"
	"io"
	"strings"

	"proteus/isa"
)

// Line is one disassembled instruction: its address, the raw word, and its
// rendered text.
type Line struct {
	Addr int32
	Word int32
	Text string
}

// Disassemble decodes every word in words, formatting jump-form operands
// as an absolute target address (addr+1+offset) alongside the raw signed
// offset, since the offset alone is not useful without doing that
// arithmetic by hand.
func Disassemble(words []int32) []Line {
	out := make([]Line, len(words))
	for i, w := range words {
		addr := int32(i)
		in := isa.Decode(uint32(w))
		out[i] = Line{Addr: addr, Word: w, Text: format(addr, in)}
	}
	return out
}

// Write renders lines in "addr: text" form, one per line, to w.
func Write(w io.Writer, lines []Line) error {
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%6d: %s\n", l.Addr, l.Text); err != nil {
			return err
		}
	}
	return nil
}

func format(addr int32, in isa.Instruction) string {
	if !in.Op.Valid() {
		return fmt.Sprintf("??? (0x%02X)", byte(in.Op))
	}

	reg := func(r byte) string { return fmt.Sprintf("r%d", r&7) }
	jumpTarget := func() string {
		target := addr + 1 + in.Offset
		return fmt.Sprintf("%d (%+d)", target, in.Offset)
	}

	var operands []string
	switch in.Op {
	case isa.NOP:
	case isa.MOV, isa.ADD, isa.SUB, isa.LOAD, isa.STORE, isa.COPY, isa.ALLOCATE, isa.SPAWN:
		operands = []string{reg(in.R1), reg(in.R2)}
	case isa.MOVI:
		operands = []string{reg(in.R1), fmt.Sprintf("%d", in.Imm)}
	case isa.GETADDR, isa.INC, isa.DEC:
		operands = []string{reg(in.R1)}
	case isa.JMP:
		operands = []string{jumpTarget()}
	case isa.JMPZ:
		operands = []string{reg(in.R1), jumpTarget()}
	case isa.JLT:
		operands = []string{reg(in.R1), reg(in.R2), jumpTarget()}
	case isa.SEARCH:
		operands = []string{reg(in.R1), reg(in.R2), reg(in.R3), reg(in.R4)}
	}

	if len(operands) == 0 {
		return in.Op.String()
	}
	return in.Op.String() + " " + strings.Join(operands, ", ")
}
