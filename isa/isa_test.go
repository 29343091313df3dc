package isa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMOVIRoundTrip(t *testing.T) {
	for _, imm := range []int32{0, MaxImm21} {
		word, err := Encode(Instruction{Op: MOVI, R1: 3, Imm: imm})
		require.NoError(t, err)
		got := Decode(word)
		require.Equal(t, MOVI, got.Op)
		require.Equal(t, byte(3), got.R1)
		require.Equal(t, imm, got.Imm)
	}
}

func TestMOVIOutOfRange(t *testing.T) {
	_, err := Encode(Instruction{Op: MOVI, Imm: MaxImm21 + 1})
	require.Error(t, err)
	_, err = Encode(Instruction{Op: MOVI, Imm: -1})
	require.Error(t, err)
}

func TestJLTRoundTrip(t *testing.T) {
	offsets := []int32{MinJumpOff, -1, 0, 1, MaxJumpOff}
	cases := 0
	for ra := byte(0); ra < 8; ra++ {
		rb := 7 - ra
		for _, off := range offsets {
			word, err := Encode(Instruction{Op: JLT, R1: ra, R2: rb, Offset: off})
			require.NoError(t, err)
			got := Decode(word)
			require.Equal(t, JLT, got.Op)
			require.Equal(t, ra, got.R1)
			require.Equal(t, rb, got.R2)
			require.Equal(t, off, got.Offset)
			cases++
		}
	}
	require.Equal(t, 40, cases)
}

func TestJMPOutOfRange(t *testing.T) {
	_, err := Encode(Instruction{Op: JMP, Offset: MaxJumpOff + 1})
	require.Error(t, err)
	_, err = Encode(Instruction{Op: JMP, Offset: MinJumpOff - 1})
	require.Error(t, err)
}

func TestUnknownOpcodeDecodesButInvalid(t *testing.T) {
	word := uint32(0xFF) << 24
	in := Decode(word)
	require.False(t, in.Op.Valid())
}

func TestEncodeUnknownOpcodeErrors(t *testing.T) {
	_, err := Encode(Instruction{Op: Opcode(200)})
	require.Error(t, err)
}

func TestRegisterFormRoundTrip(t *testing.T) {
	word, err := Encode(Instruction{Op: SEARCH, R1: 1, R2: 2, R3: 3, R4: 4})
	require.NoError(t, err)
	got := Decode(word)
	require.Equal(t, SEARCH, got.Op)
	require.Equal(t, byte(1), got.R1)
	require.Equal(t, byte(2), got.R2)
	require.Equal(t, byte(3), got.R3)
	require.Equal(t, byte(4), got.R4)
}
