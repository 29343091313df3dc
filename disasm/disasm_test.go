package disasm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"proteus/asm"
	"proteus/isa"
)

func TestDisassembleRoundTripsMnemonics(t *testing.T) {
	src := `
		MOVI r0, 5
		ADD r0, r1
		JLT r0, r1, target
	target:
		NOP
	`
	words, err := asm.Assemble(src)
	require.NoError(t, err)

	lines := Disassemble(words)
	require.Len(t, lines, 4)
	require.Equal(t, "MOVI r0, 5", lines[0].Text)
	require.Equal(t, "ADD r0, r1", lines[1].Text)
	require.Contains(t, lines[2].Text, "JLT r0, r1,")
	require.Equal(t, "NOP", lines[3].Text)
}

func TestDisassembleJumpShowsAbsoluteTarget(t *testing.T) {
	in := isa.Instruction{Op: isa.JMP, Offset: -3}
	word, err := isa.Encode(in)
	require.NoError(t, err)

	lines := Disassemble([]int32{int32(word)})
	require.Equal(t, "JMP -2 (-3)", lines[0].Text) // addr 0: target = 0+1+(-3) = -2
}

func TestDisassembleUnknownOpcode(t *testing.T) {
	lines := Disassemble([]int32{int32(-1) << 24}) // opcode byte 0xFF
	require.Contains(t, lines[0].Text, "???")
}

func TestWriteFormatsAddresses(t *testing.T) {
	words, err := asm.Assemble("NOP\nNOP\n")
	require.NoError(t, err)
	var sb strings.Builder
	require.NoError(t, Write(&sb, Disassemble(words)))
	require.Contains(t, sb.String(), "0: NOP")
	require.Contains(t, sb.String(), "1: NOP")
}
