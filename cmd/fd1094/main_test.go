package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUint32(t *testing.T) {
	v, err := parseUint32("0x12abc5d3")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12abc5d3), v)

	v, err = parseUint32("1024")
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), v)

	_, err = parseUint32("0x100000000")
	assert.Error(t, err)
}

func TestParseWords(t *testing.T) {
	words, err := parseWords("4e75, 2f3c,ffff")
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x4e75, 0x2f3c, 0xffff}, words)

	_, err = parseWords("4e75,10000")
	assert.Error(t, err)
}
