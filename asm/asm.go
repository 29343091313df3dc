// Package asm implements a two-pass assembler for the Proteus ISA (v1.2):
// pass one walks the source computing each label's address, pass two
// encodes every instruction against the completed symbol table so forward
// references resolve correctly. Jump-form mnemonics assemble their target
// label into the position-independent offset the VCPU expects: offset =
// label_address - current_address - 1, matching the "IP advances first,
// then the offset is added" semantics of isa.Decode / vcpu.Step.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"proteus/isa"
)

type operandKind int

const (
	kindReg operandKind = iota
	kindImm
	kindLabel
)

// operandSpecs lists, for each mnemonic, the kind of each operand in
// source order. Register-kind operands fill isa.Instruction.R1..R4 in
// that same order; at most one imm or label operand appears per mnemonic.
var operandSpecs = map[string][]operandKind{
	"NOP":      {},
	"MOV":      {kindReg, kindReg},
	"MOVI":     {kindReg, kindImm},
	"GETADDR":  {kindReg},
	"ADD":      {kindReg, kindReg},
	"SUB":      {kindReg, kindReg},
	"INC":      {kindReg},
	"DEC":      {kindReg},
	"LOAD":     {kindReg, kindReg},
	"STORE":    {kindReg, kindReg},
	"JMP":      {kindLabel},
	"JMPZ":     {kindReg, kindLabel},
	"JLT":      {kindReg, kindReg, kindLabel},
	"COPY":     {kindReg, kindReg},
	"ALLOCATE": {kindReg, kindReg},
	"SPAWN":    {kindReg, kindReg},
	"SEARCH":   {kindReg, kindReg, kindReg, kindReg},
}

// directiveWord reserves one soup word initialized to a literal or a
// resolved label address; it never becomes an isa.Instruction.
const directiveWord = ".word"

// parsedLine is an assembled line awaiting pass-two address resolution.
type parsedLine struct {
	no       int
	addr     int32
	mnemonic string // "" for a bare label with no instruction on its line
	operands []string
}

// Assemble translates Proteus assembly source into soup words. Errors
// report the 1-based source line at which they occurred.
func Assemble(src string) ([]int32, error) {
	lines := splitLines(src)
	syms := newSymbolTable()

	parsed := make([]parsedLine, 0, len(lines))
	var addr int32
	for _, l := range lines {
		if l.label != "" {
			if err := syms.define(l.label, addr); err != nil {
				return nil, fmt.Errorf("line %d: %w", l.no, err)
			}
		}
		if l.mnemonic == "" {
			continue
		}
		parsed = append(parsed, parsedLine{no: l.no, addr: addr, mnemonic: l.mnemonic, operands: l.operands})
		addr++
	}

	words := make([]int32, len(parsed))
	for i, pl := range parsed {
		w, err := encodeLine(pl, syms)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", pl.no, err)
		}
		words[i] = w
	}
	return words, nil
}

func encodeLine(pl parsedLine, syms *symbolTable) (int32, error) {
	mnemonic := strings.ToUpper(pl.mnemonic)

	if mnemonic == strings.ToUpper(directiveWord) {
		return encodeWordDirective(pl, syms)
	}

	op, ok := isa.Mnemonics[mnemonic]
	if !ok {
		return 0, fmt.Errorf("unknown mnemonic %q", pl.mnemonic)
	}
	spec, ok := operandSpecs[mnemonic]
	if !ok {
		return 0, fmt.Errorf("mnemonic %q has no operand specification", mnemonic)
	}
	if len(pl.operands) != len(spec) {
		return 0, fmt.Errorf("%s expects %d operand(s), got %d", mnemonic, len(spec), len(pl.operands))
	}

	in := isa.Instruction{Op: op}
	regSlot := 0
	for i, kind := range spec {
		tok := pl.operands[i]
		switch kind {
		case kindReg:
			r, err := parseRegister(tok)
			if err != nil {
				return 0, err
			}
			switch regSlot {
			case 0:
				in.R1 = r
			case 1:
				in.R2 = r
			case 2:
				in.R3 = r
			case 3:
				in.R4 = r
			}
			regSlot++
		case kindImm:
			v, err := parseImmediate(tok)
			if err != nil {
				return 0, err
			}
			in.Imm = v
		case kindLabel:
			// A literal jump operand is already the offset; a symbol
			// resolves to an absolute address and must be converted.
			if v, err := parseImmediate(tok); err == nil {
				in.Offset = v
				break
			}
			target, err := syms.resolve(tok)
			if err != nil {
				return 0, err
			}
			in.Offset = target - pl.addr - 1
		}
	}

	word, err := isa.Encode(in)
	if err != nil {
		return 0, err
	}
	return int32(word), nil
}

func encodeWordDirective(pl parsedLine, syms *symbolTable) (int32, error) {
	if len(pl.operands) != 1 {
		return 0, fmt.Errorf(".word expects 1 operand, got %d", len(pl.operands))
	}
	tok := pl.operands[0]
	if v, err := parseImmediate(tok); err == nil {
		return v, nil
	}
	return syms.resolve(tok)
}

func parseRegister(tok string) (byte, error) {
	lower := strings.ToLower(tok)
	if len(lower) != 2 || lower[0] != 'r' || lower[1] < '0' || lower[1] > '7' {
		return 0, fmt.Errorf("not a register: %q (want r0..r7)", tok)
	}
	return lower[1] - '0', nil
}

func parseImmediate(tok string) (int32, error) {
	base := 10
	s := tok
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", tok)
	}
	return int32(v), nil
}
