package fd1094

// Request is a state change request as decoded by the driver from a
// CMPI.L #$0xyyFFFF, D0 instruction: 0x00yy selects state yy, 0x01yy
// selects state yy and leaves IRQ mode, 0x02yy enters IRQ mode and 0x03yy
// leaves it
type Request uint16

const (
	requestSelect Request = 0x0000
	requestReset  Request = 0x0100
	requestIRQ    Request = 0x0200
	requestRTE    Request = 0x0300
)

// SelectState returns a Request that selects state s
func SelectState(s uint8) Request {
	return requestSelect | Request(s)
}

// ResetToState returns a Request that selects state s and leaves IRQ mode
func ResetToState(s uint8) Request {
	return requestReset | Request(s)
}

// EnterIRQ returns a Request that enters IRQ mode
func EnterIRQ() Request {
	return requestIRQ
}

// ExitIRQ returns a Request that leaves IRQ mode, as on RTE
func ExitIRQ() Request {
	return requestRTE
}

// GlobalKeys are the three effective global key bytes consumed by Decode
type GlobalKeys struct {
	K1, K2, K3 uint8
}

// DeriveGlobalKeys toggles bits of the raw global key according to the
// effective state
func DeriveGlobalKeys(g GlobalKey, state uint8) GlobalKeys {
	gk := GlobalKeys{g[1], g[2], g[3]}

	if state&0x01 != 0 {
		gk.K1 ^= 0x04
		gk.K2 ^= 0x80
		gk.K3 ^= 0x80
	}
	if state&0x02 != 0 {
		gk.K1 ^= 0x01
		gk.K2 ^= 0x10
		gk.K3 ^= 0x01
	}
	if state&0x04 != 0 {
		gk.K1 ^= 0x80
		gk.K2 ^= 0x40
		gk.K3 ^= 0x04
	}
	if state&0x08 != 0 {
		gk.K1 ^= 0x20
		gk.K2 ^= 0x02
		gk.K3 ^= 0x20
	}
	if state&0x10 != 0 {
		gk.K1 ^= 0x02
		gk.K1 ^= 0x40
		gk.K2 ^= 0x08
	}
	if state&0x20 != 0 {
		gk.K1 ^= 0x08
		gk.K3 ^= 0x08
		gk.K3 ^= 0x10
	}
	if state&0x40 != 0 {
		gk.K1 ^= 0x10
		gk.K2 ^= 0x20
		gk.K2 ^= 0x04
	}
	if state&0x80 != 0 {
		gk.K2 ^= 0x01
		gk.K3 ^= 0x02
		gk.K3 ^= 0x40
	}

	return gk
}

// State tracks the CPU state of one FD1094 and the global keys derived from
// it. The zero value is the state after reset with the global keys not yet
// derived; call Reset before decoding
type State struct {
	selected uint8
	irq      bool
	keys     GlobalKeys
}

// Set applies r, rederives the global keys from g and returns the
// effective state
func (s *State) Set(g GlobalKey, r Request) uint8 {
	switch r & 0x0300 {
	case requestSelect:
		s.selected = uint8(r)
	case requestReset:
		s.selected = uint8(r)
		s.irq = false
	case requestIRQ:
		s.irq = true
	case requestRTE:
		s.irq = false
	}

	state := s.Effective(g)
	s.keys = DeriveGlobalKeys(g, state)

	return state
}

// Reset selects state 0 and leaves IRQ mode
func (s *State) Reset(g GlobalKey) uint8 {
	return s.Set(g, ResetToState(0))
}

// Effective returns the state in use, which is the IRQ state stored in the
// global key while in IRQ mode
func (s *State) Effective(g GlobalKey) uint8 {
	if s.irq {
		return g[0]
	}
	return s.selected
}

// Selected returns the state last selected by the program
func (s *State) Selected() uint8 {
	return s.selected
}

// IRQ returns true in IRQ mode
func (s *State) IRQ() bool {
	return s.irq
}

// Keys returns the global keys derived by the last call to Set
func (s *State) Keys() GlobalKeys {
	return s.keys
}
