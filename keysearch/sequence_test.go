package keysearch

import (
	"context"
	"testing"

	"github.com/bodgit/fd1094/fd1094"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOpcodeSequence(t *testing.T) {
	g := Generator{Shift: 10, Add: 0x3e023}

	key := new(fd1094.Key)
	key.SetGlobal(fd1094.GlobalKey{0x12, 0xab, 0xc5, 0xd3})
	Generate(key, g, 0x1234)

	var state fd1094.State
	state.Reset(key.Global())

	const basePC = 0x0400

	code := []uint16{0xa5a5, 0xc3d2, 0x8f31, 0xe0e7}
	words := make([]uint16, len(code))
	fd1094.DecodeWords(words, code, basePC, key, state.Keys())
	mask := []uint16{0xffff, 0xffff, 0xffff, 0xffff}

	expected := append([]uint8(nil), key[basePC:basePC+4]...)

	// Scramble the bytes being searched for
	broken := *key
	for i := basePC; i < basePC+4; i++ {
		broken[i] = 0x80
	}

	found, err := New(0, nil).FindOpcodeSequence(context.Background(), basePC, &broken, state.Keys(), code, words, mask)
	require.NoError(t, err)
	require.NotEmpty(t, found)

	var match *SequenceMatch
	for i := range found {
		if found[i].Generator == g && assert.ObjectsAreEqual(expected, found[i].Bytes) {
			match = &found[i]
		}
	}
	require.NotNil(t, match)
	assert.Equal(t, key.Global(), match.Global)

	// The key holds the first match
	assert.Equal(t, found[0].Bytes, []uint8(broken[basePC:basePC+4]))

	// The recovered seed only knows the low state bits but they are all the
	// generator output depends on
	base := ReconstructBaseSeed(g, basePC, match.Seed)
	rebuilt := new(fd1094.Key)
	Generate(rebuilt, g, base)
	for i := 4; i < fd1094.KeySize; i++ {
		assert.Equal(t, key[i], rebuilt[i], "index 0x%04x", i)
	}
}

func TestFindOpcodeSequenceWrap(t *testing.T) {
	g := Generator{Shift: 8, Add: 0x1a019}

	key := new(fd1094.Key)
	key.SetGlobal(fd1094.GlobalKey{0x12, 0xab, 0xc5, 0xd3})
	Generate(key, g, 0x1234)

	var state fd1094.State
	state.Reset(key.Global())

	// The run crosses into the next 0x2000 words, the key index of the
	// third word drops back to 0x1000
	const basePC = 0x1ffe

	indexes := make([]uint32, 4)
	for i := range indexes {
		indexes[i] = fd1094.KeyIndex(basePC + uint32(i))
	}
	assert.Equal(t, []uint32{0x1ffe, 0x1fff, 0x1000, 0x1001}, indexes)

	code := []uint16{0xa5a5, 0xc3d2, 0x8f31, 0xe0e7}
	words := make([]uint16, len(code))
	fd1094.DecodeWords(words, code, basePC, key, state.Keys())
	mask := []uint16{0xffff, 0xffff, 0xffff, 0xffff}

	expected := make([]uint8, len(indexes))
	broken := *key
	for i, index := range indexes {
		expected[i] = key[index]
		broken[index] = 0x40
	}

	found, err := New(0, nil).FindOpcodeSequence(context.Background(), basePC, &broken, state.Keys(), code, words, mask)
	require.NoError(t, err)

	var match *SequenceMatch
	for i := range found {
		if found[i].Generator == g && assert.ObjectsAreEqual(expected, found[i].Bytes) {
			match = &found[i]
		}
	}
	require.NotNil(t, match)

	rebuilt := new(fd1094.Key)
	Generate(rebuilt, g, ReconstructBaseSeed(g, indexes[0], match.Seed))
	for i := 4; i < fd1094.KeySize; i++ {
		assert.Equal(t, key[i], rebuilt[i], "index 0x%04x", i)
	}
}

func TestFindOpcodeSequenceNoMatch(t *testing.T) {
	key := new(fd1094.Key)
	key.SetGlobal(fd1094.GlobalKey{0x12, 0xab, 0xc5, 0xd3})
	for i := 4; i < fd1094.KeySize; i++ {
		key[i] = 0x80 | 0x15
	}
	before := *key

	var state fd1094.State
	state.Reset(key.Global())

	// 0x0000 always decodes to 0x4000
	found, err := New(0, nil).FindOpcodeSequence(context.Background(), 0x0400, key, state.Keys(),
		[]uint16{0x0000, 0x0000}, []uint16{0x1234, 0x0000}, []uint16{0xffff, 0xffff})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Equal(t, before, *key)
}

func TestFindOpcodeSequenceLength(t *testing.T) {
	key := new(fd1094.Key)

	_, err := New(0, nil).FindOpcodeSequence(context.Background(), 0x0400, key, fd1094.GlobalKeys{},
		[]uint16{0x0000}, []uint16{0x1234, 0x0000}, []uint16{0xffff, 0xffff})
	assert.Equal(t, errSequenceLength, err)

	_, err = New(0, nil).FindOpcodeSequence(context.Background(), 0x0400, key, fd1094.GlobalKeys{}, nil, nil, nil)
	assert.Equal(t, errSequenceLength, err)
}

func TestHighBits(t *testing.T) {
	assert.Equal(t, []uint8{0x80, 0xc0}, highBits(0x0004))
	assert.Equal(t, []uint8{0x40, 0xc0}, highBits(0x1004))
	assert.Equal(t, []uint8{0x00, 0x40, 0x80, 0xc0}, highBits(0x1000))
}
