package fd1094

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequest(t *testing.T) {
	assert.Equal(t, Request(0x0042), SelectState(0x42))
	assert.Equal(t, Request(0x0142), ResetToState(0x42))
	assert.Equal(t, Request(0x0200), EnterIRQ())
	assert.Equal(t, Request(0x0300), ExitIRQ())
}

func TestDeriveGlobalKeys(t *testing.T) {
	g := GlobalKey{0x00, 0x00, 0x00, 0x00}

	tables := []struct {
		state uint8
		keys  GlobalKeys
	}{
		{0x00, GlobalKeys{0x00, 0x00, 0x00}},
		{0x01, GlobalKeys{0x04, 0x80, 0x80}},
		{0x02, GlobalKeys{0x01, 0x10, 0x01}},
		{0x04, GlobalKeys{0x80, 0x40, 0x04}},
		{0x08, GlobalKeys{0x20, 0x02, 0x20}},
		{0x10, GlobalKeys{0x42, 0x08, 0x00}},
		{0x20, GlobalKeys{0x08, 0x00, 0x18}},
		{0x40, GlobalKeys{0x10, 0x24, 0x00}},
		{0x80, GlobalKeys{0x00, 0x01, 0x42}},
		{0xff, GlobalKeys{0xff, 0xff, 0xff}},
	}

	for _, table := range tables {
		assert.Equal(t, table.keys, DeriveGlobalKeys(g, table.state), "state 0x%02x", table.state)
	}

	// Toggles are XORed into the raw bytes
	assert.Equal(t, GlobalKeys{0x11 ^ 0x04, 0xaf ^ 0x80, 0x59 ^ 0x80}, DeriveGlobalKeys(GlobalKey{0xa7, 0x11, 0xaf, 0x59}, 0x01))
}

func TestStateTransitions(t *testing.T) {
	g := GlobalKey{0x5c, 0x11, 0xaf, 0x59}

	s := new(State)
	assert.Equal(t, uint8(0), s.Reset(g))
	assert.Equal(t, GlobalKeys{0x11, 0xaf, 0x59}, s.Keys())

	assert.Equal(t, uint8(0x31), s.Set(g, SelectState(0x31)))
	assert.Equal(t, DeriveGlobalKeys(g, 0x31), s.Keys())
	assert.False(t, s.IRQ())

	assert.Equal(t, uint8(0x5c), s.Set(g, EnterIRQ()))
	assert.True(t, s.IRQ())
	assert.Equal(t, uint8(0x31), s.Selected())
	assert.Equal(t, DeriveGlobalKeys(g, 0x5c), s.Keys())

	// Selecting while in IRQ mode only changes the state restored on RTE
	assert.Equal(t, uint8(0x5c), s.Set(g, SelectState(0x07)))
	assert.Equal(t, uint8(0x07), s.Set(g, ExitIRQ()))

	s.Set(g, EnterIRQ())
	assert.Equal(t, uint8(0x12), s.Set(g, ResetToState(0x12)))
	assert.False(t, s.IRQ())
}

func TestStateRTEIdempotence(t *testing.T) {
	g := GlobalKey{0xe3, 0xfa, 0xc4, 0xd1}

	for state := 0; state < 256; state++ {
		s := new(State)
		s.Set(g, ResetToState(uint8(state)))
		before := *s

		s.Set(g, EnterIRQ())
		s.Set(g, ExitIRQ())

		assert.Equal(t, before, *s)
	}
}
