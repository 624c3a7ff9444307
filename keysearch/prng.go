package keysearch

import (
	"fmt"

	"github.com/bodgit/fd1094/fd1094"
)

// Multiplier is shared by every generator seen in the tool used to create
// the keys
const Multiplier = 0x10029

const seedMask = 0x3fffff

var (
	// Adds are the known additive constants
	Adds = [...]uint32{0x1a019, 0x3e023, 0x52005, 0x7600f}
	// Shifts are the known output shifts. -4 only outputs the bottom two
	// state bits above a fixed 0xd nibble
	Shifts = [...]int{-4, 8, 9, 10, 11, 12, 13}
)

// Generator is one of the linear congruential generators that produced the
// low six bits of the key bytes
type Generator struct {
	Shift int
	Add   uint32
}

// Generators returns every known generator, shift major
func Generators() []Generator {
	g := make([]Generator, 0, len(Shifts)*len(Adds))
	for _, shift := range Shifts {
		for _, add := range Adds {
			g = append(g, Generator{shift, add})
		}
	}
	return g
}

func (g Generator) String() string {
	return fmt.Sprintf("shift %d add 0x%05x", g.Shift, g.Add)
}

// Next advances seed
func (g Generator) Next(seed uint32) uint32 {
	return seed*Multiplier + g.Add
}

// Output returns the six key bits produced by the state seed
func (g Generator) Output(seed uint32) uint8 {
	return uint8((seed<<4 | 0xd) >> uint(g.Shift+4) & 0x3f)
}

type jump struct {
	mul, add uint32
}

func (j jump) apply(seed uint32) uint32 {
	return seed*j.mul + j.add
}

// jump returns the affine map equivalent to calling Next n times
func (g Generator) jump(n uint32) jump {
	j, step := jump{1, 0}, jump{Multiplier, g.Add}
	for ; n > 0; n >>= 1 {
		if n&1 != 0 {
			j = jump{j.mul * step.mul, j.add*step.mul + step.add}
		}
		step = jump{step.mul * step.mul, step.add*step.mul + step.add}
	}
	return j
}

// seedBits is how many low state bits the output depends on. Higher bits
// never feed back into lower ones so only these need searching
func (g Generator) seedBits() uint {
	return uint(g.Shift + 6)
}

// PRNGMatch is a generator and the state before the first of a run of
// bytes it reproduces
type PRNGMatch struct {
	Generator Generator
	Seed      uint32
}

func (g Generator) find(b []byte) (uint32, bool) {
	for seed := uint32(0); seed < 1<<g.seedBits(); seed++ {
		s, ok := seed, true
		for _, x := range b {
			s = g.Next(s)
			if g.Output(s) != x&0x3f {
				ok = false
				break
			}
		}
		if ok {
			return seed, true
		}
	}
	return 0, false
}

// IsValidSequence returns the first generator and seed, in the order of
// Generators and then ascending seed, that produces the low six bits of
// every byte of b
func IsValidSequence(b []byte) (PRNGMatch, bool) {
	if len(b) == 0 {
		return PRNGMatch{}, false
	}

	for _, g := range Generators() {
		if seed, ok := g.find(b); ok {
			return PRNGMatch{g, seed}, true
		}
	}

	return PRNGMatch{}, false
}

// Generate fills key indexes 4 onwards from the state seed left after the
// global key. The always set high bit is added; the other high bit is left
// clear
func Generate(key *fd1094.Key, g Generator, seed uint32) uint32 {
	for i := uint32(4); i < fd1094.KeySize; i++ {
		seed = g.Next(seed)
		key[i] = fd1094.MaskForKeyIndex(i) | g.Output(seed)
	}
	return seed
}

// ReconstructBaseSeed takes startSeed, the state before the key byte at
// index keyBaseAddr, and returns the state left after the global key, from
// which Generate recreates the key. The generator is only ever stepped
// forward: it is run once around its cycle to find the period and then on
// to the wanted state
func ReconstructBaseSeed(g Generator, keyBaseAddr uint32, startSeed uint32) uint32 {
	if keyBaseAddr < 4 {
		return startSeed & seedMask
	}

	var period uint32
	for s := startSeed; period <= seedMask; {
		s = g.Next(s)
		period++
		if s&seedMask == startSeed&seedMask {
			break
		}
	}

	steps := (period - (keyBaseAddr-4)%period) % period

	s := startSeed
	for i := uint32(0); i < steps; i++ {
		s = g.Next(s)
	}

	return s & seedMask
}
