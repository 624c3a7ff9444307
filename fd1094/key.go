/*
Package fd1094 implements the decryption performed by the Sega FD1094, a
68000 with on-chip program decryption driven by a battery backed key.
*/
package fd1094

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// KeySize is the size of a key in bytes, one byte for every word address
// modulo 0x2000
const KeySize = 0x2000

// ErrKeySize is returned when key data isn't exactly KeySize bytes
var ErrKeySize = errors.New("fd1094: key must be 8192 bytes")

// GlobalKey is the four byte prefix of a key. The first byte is the state
// used while in IRQ mode, the remaining three are the raw global key bytes
type GlobalKey [4]uint8

// GlobalKeyFromUint32 splits k into a GlobalKey, most significant byte first
func GlobalKeyFromUint32(k uint32) (g GlobalKey) {
	binary.BigEndian.PutUint32(g[:], k)
	return
}

// Uint32 returns the global key packed most significant byte first
func (g GlobalKey) Uint32() uint32 {
	return binary.BigEndian.Uint32(g[:])
}

func (g GlobalKey) String() string {
	return fmt.Sprintf("%08x", g.Uint32())
}

// Key is the full per-address key table
type Key [KeySize]uint8

// NewKey returns a Key copied from b which must be exactly KeySize bytes
func NewKey(b []byte) (*Key, error) {
	k := new(Key)
	if err := k.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return k, nil
}

// Global returns the global key stored in the first four bytes
func (k *Key) Global() (g GlobalKey) {
	copy(g[:], k[:4])
	return
}

// SetGlobal overwrites the first four bytes with g
func (k *Key) SetGlobal(g GlobalKey) {
	copy(k[:4], g[:])
}

// At returns the key byte used to decode the word at address
func (k *Key) At(address uint32) uint8 {
	return k[KeyIndex(address)]
}

// MarshalBinary returns the key in its persisted form
func (k *Key) MarshalBinary() ([]byte, error) {
	b := make([]byte, KeySize)
	copy(b, k[:])
	return b, nil
}

// UnmarshalBinary replaces the key with b
func (k *Key) UnmarshalBinary(b []byte) error {
	if len(b) != KeySize {
		return ErrKeySize
	}
	copy(k[:], b)
	return nil
}

// KeyIndex maps a word address to the index of its key byte. The first four
// words of every 0x1000 word block after the first are looked up in the
// upper half of the key so they don't collide with the global key
func KeyIndex(address uint32) uint32 {
	if address&0x0ffc == 0 && address >= 4 {
		return address&0x1fff | 0x1000
	}
	return address & 0x1fff
}

// MaskForKeyIndex returns the high bit that is always set in a valid key
// byte at index, or zero for the four special indexes of each half
func MaskForKeyIndex(index uint32) uint8 {
	switch {
	case index&0x0ffc == 0:
		return 0x00
	case index < 0x1000:
		return 0x80
	default:
		return 0x40
	}
}
