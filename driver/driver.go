/*
Package driver connects the FD1094 decoder to an emulated 68000: it tracks
the state change instructions, decodes the boot vectors and caches decoded
pages of the program for each state.
*/
package driver

import (
	"io/ioutil"
	"strconv"

	"github.com/bodgit/fd1094/fd1094"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// DefaultPageWords is the number of words decoded and cached at a time
const DefaultPageWords = 0x1000

// Program is the code space seen by the CPU
type Program interface {
	// Fetch returns the opcode or operand word at a word address
	Fetch(address uint32) uint16
	// Vector returns word n of the initial SP and PC read at reset
	Vector(n int) uint16
	// Reset puts the CPU back into its power on state
	Reset()
	// Observe applies a state change and returns the effective state
	Observe(r fd1094.Request) uint8
}

// Open returns a Program for rom. A nil key means the CPU isn't an FD1094
// and the program is returned unchanged
func Open(rom []uint16, key *fd1094.Key, pageWords int) Program {
	if key == nil {
		return plain(rom)
	}
	return NewDecrypter(rom, key, pageWords)
}

type plain []uint16

func (p plain) Fetch(address uint32) uint16 {
	if int(address) >= len(p) {
		return fd1094.Blank
	}
	return p[address]
}

func (p plain) Vector(n int) uint16 {
	return p.Fetch(uint32(n))
}

func (plain) Reset() {}

func (plain) Observe(fd1094.Request) uint8 {
	return 0
}

// Decrypter is the Program of an FD1094
type Decrypter struct {
	rom       []uint16
	key       *fd1094.Key
	state     fd1094.State
	pageWords uint32
	pages     *gocache.Cache

	current      []uint16
	currentPage  uint32
	currentState uint8

	// Log receives state changes, nil discards them
	Log logrus.FieldLogger
}

// NewDecrypter returns a Decrypter in its reset state
func NewDecrypter(rom []uint16, key *fd1094.Key, pageWords int) *Decrypter {
	if pageWords <= 0 {
		pageWords = DefaultPageWords
	}

	d := &Decrypter{
		rom:       rom,
		key:       key,
		pageWords: uint32(pageWords),
		pages:     gocache.New(gocache.NoExpiration, 0),
	}
	d.Reset()

	return d
}

var discard = &logrus.Logger{
	Out:       ioutil.Discard,
	Formatter: new(logrus.TextFormatter),
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.PanicLevel,
}

func (d *Decrypter) log() logrus.FieldLogger {
	if d.Log != nil {
		return d.Log
	}
	return discard
}

func cacheKey(state uint8, page uint32) string {
	return strconv.FormatUint(uint64(state), 16) + ":" + strconv.FormatUint(uint64(page), 16)
}

// page returns the decoded page for the current state
func (d *Decrypter) page(page uint32) []uint16 {
	state := d.state.Effective(d.key.Global())
	if d.current != nil && d.currentPage == page && d.currentState == state {
		return d.current
	}

	k := cacheKey(state, page)
	if x, ok := d.pages.Get(k); ok {
		d.current = x.([]uint16)
	} else {
		start := page * d.pageWords
		end := start + d.pageWords
		if end > uint32(len(d.rom)) {
			end = uint32(len(d.rom))
		}

		decoded := make([]uint16, end-start)
		fd1094.DecodeWords(decoded, d.rom[start:end], start, d.key, d.state.Keys())
		d.pages.Set(k, decoded, gocache.NoExpiration)
		d.current = decoded
	}
	d.currentPage, d.currentState = page, state

	return d.current
}

// Fetch returns the decoded word at address, reading past the end of the
// program returns 0xffff
func (d *Decrypter) Fetch(address uint32) uint16 {
	if int(address) >= len(d.rom) {
		return fd1094.Blank
	}
	return d.page(address / d.pageWords)[address%d.pageWords]
}

// Vector decodes word n of the reset vectors, which are decoded differently
// to normal fetches from the same addresses
func (d *Decrypter) Vector(n int) uint16 {
	if n < 0 || n > 3 || n >= len(d.rom) {
		return fd1094.Blank
	}
	return fd1094.Decode(uint32(n), d.rom[n], d.key, d.state.Keys(), true)
}

// Reset selects state 0 and leaves IRQ mode
func (d *Decrypter) Reset() {
	d.Observe(fd1094.ResetToState(0))
}

// Observe applies a state change
func (d *Decrypter) Observe(r fd1094.Request) uint8 {
	state := d.state.Set(d.key.Global(), r)
	d.log().WithFields(logrus.Fields{
		"request": strconv.FormatUint(uint64(r), 16),
		"state":   state,
		"irq":     d.state.IRQ(),
	}).Debug("State change")
	return state
}

// State returns the effective state
func (d *Decrypter) State() uint8 {
	return d.state.Effective(d.key.Global())
}

// DecodeAt decodes the word at address in the current state without
// touching the cache
func (d *Decrypter) DecodeAt(address uint32) uint16 {
	if int(address) >= len(d.rom) {
		return fd1094.Blank
	}
	return fd1094.Decode(address, d.rom[address], d.key, d.state.Keys(), false)
}

// SetKeyByte changes one byte of the key, discarding every cached page
func (d *Decrypter) SetKeyByte(index uint32, value uint8) {
	d.key[index&(fd1094.KeySize-1)] = value
	d.pages.Flush()
	d.current = nil

	// The global key may have changed
	d.state.Set(d.key.Global(), fd1094.SelectState(d.state.Selected()))
}

// Cached returns the number of decoded pages held
func (d *Decrypter) Cached() int {
	return d.pages.ItemCount()
}

// ParseStateChange recognises the CMPI.L #$0xyyFFFF, D0 instruction that
// the FD1094 intercepts to change state
func ParseStateChange(opcode, hi, lo uint16) (fd1094.Request, bool) {
	if opcode != 0x0c80 || lo != 0xffff || hi&0xfc00 != 0 {
		return 0, false
	}
	return fd1094.Request(hi), true
}

// Step checks the decoded instruction at address for a state change,
// applying it if found
func (d *Decrypter) Step(address uint32) (uint8, bool) {
	r, ok := ParseStateChange(d.Fetch(address), d.Fetch(address+1), d.Fetch(address+2))
	if !ok {
		return d.State(), false
	}
	return d.Observe(r), true
}
