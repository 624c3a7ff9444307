package keysearch

import (
	"context"
	"testing"

	"github.com/bodgit/fd1094/fd1094"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEncrypted = [4]uint16{0x2f3c, 0xa5a5, 0x4e75, 0xc3d2}

func testVectors(g fd1094.GlobalKey) Vectors {
	key := new(fd1094.Key)
	key.SetGlobal(g)

	var state fd1094.State
	state.Reset(g)

	v := Vectors{
		Encrypted: testEncrypted,
		Mask:      [4]uint16{0xffff, 0xffff, 0xffff, 0xffff},
	}
	for i := range v.Desired {
		v.Desired[i] = fd1094.Decode(uint32(i), testEncrypted[i], key, state.Keys(), true)
	}

	return v
}

func TestNewVectors(t *testing.T) {
	v := NewVectors(testEncrypted, 0x00ffeffe, 0x00000400)
	assert.Equal(t, [4]uint16{0x00ff, 0xeffe, 0x0000, 0x0400}, v.Desired)
	assert.Equal(t, [4]uint16{0xffff, 0xffff, 0xffff, 0xffff}, v.Mask)
}

func TestFindGlobalKey(t *testing.T) {
	g := fd1094.GlobalKeyFromUint32(0x12abc5d3)
	v := testVectors(g)
	assert.Equal(t, [4]uint16{0x6230, 0xe527, 0x9815, 0x8065}, v.Desired)

	s := New(4, nil)

	m, ok, err := s.FindGlobalKey(context.Background(), v, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x10abc5c3), m.Key.Uint32())
	assert.Equal(t, v.Desired, m.Decoded)

	// The start is inclusive
	m, ok, err = s.FindGlobalKey(context.Background(), v, g.Uint32())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, g, m.Key)

	m, ok, err = s.FindGlobalKey(context.Background(), v, g.Uint32()+1)
	require.NoError(t, err)
	if ok {
		assert.Greater(t, m.Key.Uint32(), g.Uint32())
	}
}

func TestGlobalKeys(t *testing.T) {
	g := fd1094.GlobalKeyFromUint32(0x12abc5d3)
	v := testVectors(g)

	var keys []uint32
	err := New(3, nil).GlobalKeys(context.Background(), v, 0, func(m GlobalKeyMatch) bool {
		keys = append(keys, m.Key.Uint32())
		return m.Key != g
	})
	require.NoError(t, err)

	require.Len(t, keys, 18)
	assert.Equal(t, uint32(0x10abc5c3), keys[0])
	assert.Equal(t, g.Uint32(), keys[len(keys)-1])

	for i := 1; i < len(keys); i++ {
		assert.Greater(t, keys[i], keys[i-1])
	}
}

func TestFindGlobalKeyWorkers(t *testing.T) {
	v := testVectors(fd1094.GlobalKeyFromUint32(0x7ffad1c0))

	var results []GlobalKeyMatch
	for _, workers := range []int{1, 5, 64} {
		m, ok, err := New(workers, nil).FindGlobalKey(context.Background(), v, 0x40000000)
		require.NoError(t, err)
		require.True(t, ok)
		results = append(results, m)
	}

	assert.Equal(t, results[0], results[1])
	assert.Equal(t, results[0], results[2])
}

func TestFindGlobalKeyCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := New(1, nil).FindGlobalKey(ctx, testVectors(fd1094.GlobalKeyFromUint32(0xfff8c0c0)), 0)
	assert.Equal(t, context.Canceled, err)
	assert.False(t, ok)
}

func TestFindGlobalKeyExhausted(t *testing.T) {
	// No global key byte can turn 0x0000 into anything but 0x4000 as the
	// top three bits are clear
	v := Vectors{
		Encrypted: [4]uint16{0x0000, 0x0000, 0x0000, 0x0000},
		Desired:   [4]uint16{0x1234, 0x0000, 0x0000, 0x0000},
		Mask:      [4]uint16{0xffff, 0x0000, 0x0000, 0x0000},
	}

	_, ok, err := New(0, nil).FindGlobalKey(context.Background(), v, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}
