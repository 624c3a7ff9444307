package fd1094

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func countBlanked(moreFFFF bool) (n int) {
	for v := 0; v < 0x10000; v++ {
		if IsBlanked(uint16(v), moreFFFF) {
			n++
		}
	}
	return
}

func TestMaskedOpcodes(t *testing.T) {
	masked := make(map[uint16]bool)
	for _, op := range maskedOpcodes {
		masked[op] = true
	}

	// BTST, MOVE.B/W/L, MOVEA, CHK, MOVE to CCR/SR, MOVEM, OR, DIVU,
	// SUB, SUBA, CMP, CMPA, AND, MULS, ADD and ADDA
	for _, op := range []uint16{
		0x013a, 0x083a, 0x103a, 0x13fa, 0x2f3a, 0x207a, 0x303a, 0x3e7a,
		0x41ba, 0x4fba, 0x44fa, 0x46fa, 0x4cba, 0x4cfa, 0x803a, 0x80fa,
		0x903a, 0x91fa, 0xb07a, 0xb1fa, 0xc0ba, 0xc1fa, 0xd03a, 0xdffa,
	} {
		assert.True(t, masked[op], "0x%04x", op)
	}

	// LEA, PEA, JSR and JMP don't read the operand, MOVE.B to An and
	// destinations beyond abs.l aren't valid
	for _, op := range []uint16{
		0x41fa, 0x43fa, 0x45fa, 0x47fa, 0x49fa, 0x4bfa, 0x4dfa, 0x4ffa,
		0x487a, 0x4eba, 0x4efa, 0x107a, 0x15fa, 0x2ffa, 0x813a,
	} {
		assert.False(t, masked[op], "0x%04x", op)
		assert.False(t, IsBlanked(op, false), "0x%04x", op)
	}

	// The stricter variant catches JSR and JMP with its own rule
	assert.True(t, IsBlanked(0x4eba, true))
	assert.True(t, IsBlanked(0x4efa, true))
	assert.False(t, IsBlanked(0x41fa, true))

	assert.True(t, sort.SliceIsSorted(maskedOpcodes[:], func(i, j int) bool {
		return maskedOpcodes[i] < maskedOpcodes[j]
	}))

	for _, op := range maskedOpcodes {
		// Source EA is always mode 7 register 2
		assert.Equal(t, uint16(0x3a), op&0x3f, "0x%04x", op)
	}
}

func TestBlankTableConservative(t *testing.T) {
	masked := make(map[uint16]bool)
	for _, op := range maskedOpcodes {
		masked[op] = true
	}

	for v := 0; v < 0x10000; v++ {
		op := uint16(v)
		assert.Equal(t, masked[op&0xfffe], IsBlanked(op, false), "0x%04x", op)
	}

	assert.Equal(t, 2*len(maskedOpcodes), countBlanked(false))
}

func TestBlankTableAggressive(t *testing.T) {
	masked := make(map[uint16]bool)
	for _, op := range maskedOpcodes {
		masked[op] = true
	}

	for v := 0; v < 0x10000; v++ {
		op := uint16(v)
		expected := masked[op&0xfffe] || op&0xff80 == 0x4e80 || op&0xf0f8 == 0x50c8 || op&0xf000 == 0x6000
		assert.Equal(t, expected, IsBlanked(op, true), "0x%04x", op)
	}

	assert.Equal(t, 5126, countBlanked(true))
}

func TestBlankTableIdempotent(t *testing.T) {
	key := testKey()
	gk := DeriveGlobalKeys(key.Global(), 0)

	_ = Decode(0x100, 0x1234, key, gk, false)
	before := blankTable

	_ = Decode(0x100, 0x1234, key, gk, false)
	_ = Decode(0x1100, 0xa5a5, key, gk, false)
	assert.Equal(t, before, blankTable)
}

func TestDecodeBlanks(t *testing.T) {
	key := testKey()
	gk := DeriveGlobalKeys(key.Global(), 0)

	// 0x0234 uses the conservative table, 774 masked values plus the one
	// value that genuinely decodes to 0xffff
	assert.Equal(t, 0, bitByte(key.At(0x0234), 6))

	n := 0
	for v := 0; v < 0x10000; v++ {
		if Decode(0x0234, uint16(v), key, gk, false) == Blank {
			n++
		}
	}
	assert.Equal(t, 775, n)
}
