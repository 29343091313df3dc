package asm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"proteus/isa"
)

func TestAssembleSimpleProgram(t *testing.T) {
	src := `
		MOVI r0, 5
		MOVI r1, 0
	loop:
		JLT r1, r0, body
		JMP end
	body:
		INC r1
		JMP loop
	end:
		NOP
	`
	words, err := Assemble(src)
	require.NoError(t, err)
	require.Len(t, words, 7)

	in := isa.Decode(uint32(words[0]))
	require.Equal(t, isa.MOVI, in.Op)
	require.EqualValues(t, 5, in.Imm)

	jlt := isa.Decode(uint32(words[2]))
	require.Equal(t, isa.JLT, jlt.Op)
	require.EqualValues(t, 1, jlt.Offset) // body is at addr 4, jlt at addr 2: 4-2-1=1

	jmpEnd := isa.Decode(uint32(words[3]))
	require.Equal(t, isa.JMP, jmpEnd.Op)
	require.EqualValues(t, 2, jmpEnd.Offset) // end is at addr 6, jmp at addr 3: 6-3-1=2

	jmpLoop := isa.Decode(uint32(words[5]))
	require.Equal(t, isa.JMP, jmpLoop.Op)
	require.EqualValues(t, -4, jmpLoop.Offset) // loop is at addr 2, jmp at addr 5: 2-5-1=-4
}

func TestAssembleJumpWithLiteralOffset(t *testing.T) {
	words, err := Assemble("JMP -1\n")
	require.NoError(t, err)
	require.Len(t, words, 1)

	in := isa.Decode(uint32(words[0]))
	require.Equal(t, isa.JMP, in.Op)
	require.EqualValues(t, -1, in.Offset)
}

func TestAssembleWordDirectiveLiteralAndLabel(t *testing.T) {
	src := `
	start:
		.word 0x2A
		.word start
	`
	words, err := Assemble(src)
	require.NoError(t, err)
	require.Equal(t, []int32{0x2A, 0}, words)
}

func TestAssembleUndefinedLabel(t *testing.T) {
	_, err := Assemble("JMP nowhere\n")
	require.Error(t, err)
}

func TestAssembleRedefinedLabel(t *testing.T) {
	src := "a:\n  NOP\na:\n  NOP\n"
	_, err := Assemble(src)
	require.Error(t, err)
}

func TestAssembleWrongOperandCount(t *testing.T) {
	_, err := Assemble("MOV r0\n")
	require.Error(t, err)
}

func TestAssembleBadRegister(t *testing.T) {
	_, err := Assemble("MOV r9, r0\n")
	require.Error(t, err)
}

func TestAssembleUnknownMnemonic(t *testing.T) {
	_, err := Assemble("FROBNICATE r0\n")
	require.Error(t, err)
}

func TestAssembleMovFullOpcodeSet(t *testing.T) {
	src := `
		GETADDR r0
		ADD r0, r1
		SUB r0, r1
		DEC r0
		LOAD r0, r1
		STORE r0, r1
		COPY r0, r1
		ALLOCATE r0, r1
		SPAWN r0, r1
		SEARCH r0, r1, r2, r3
	`
	words, err := Assemble(src)
	require.NoError(t, err)
	require.Len(t, words, 10)
	require.Equal(t, isa.SEARCH, isa.Decode(uint32(words[9])).Op)
}
