package keysearch

import (
	"context"

	"github.com/bodgit/fd1094/fd1094"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Vectors describes the four reset vector words: as read from the ROM, the
// expected plaintext and which of its bits must match
type Vectors struct {
	Encrypted [4]uint16
	Desired   [4]uint16
	Mask      [4]uint16
}

// NewVectors returns Vectors expecting the exact initial sp and pc
func NewVectors(encrypted [4]uint16, sp, pc uint32) Vectors {
	return Vectors{
		Encrypted: encrypted,
		Desired:   [4]uint16{uint16(sp >> 16), uint16(sp), uint16(pc >> 16), uint16(pc)},
		Mask:      [4]uint16{0xffff, 0xffff, 0xffff, 0xffff},
	}
}

func (v *Vectors) check(address uint32, key *fd1094.Key, gk fd1094.GlobalKeys) (uint16, bool) {
	d := fd1094.Decode(address, v.Encrypted[address], key, gk, true)
	return d, d&v.Mask[address] == v.Desired[address]&v.Mask[address]
}

// GlobalKeyMatch is a global key satisfying the vectors along with the
// vectors decoded with it
type GlobalKeyMatch struct {
	Key     fd1094.GlobalKey
	Decoded [4]uint16
}

func validKey1(k int) bool {
	return k&0xf8 == 0xa8 || k&0xf8 == 0xf8
}

func validKey23(k int) bool {
	return k&0xc0 == 0xc0
}

// firstMatch returns the lowest global key starting with key0 that is not
// below startWith. Each vector word only depends on the key bytes up to its
// own address so every level prunes the next
func firstMatch(v *Vectors, key0 int, startWith uint32) (GlobalKeyMatch, bool) {
	var (
		key   fd1094.Key
		state fd1094.State
		m     GlobalKeyMatch
		ok    bool
	)

	key[0] = uint8(key0)
	state.Reset(key.Global())
	if m.Decoded[0], ok = v.check(0, &key, state.Keys()); !ok {
		return m, false
	}

	tight0 := uint32(key0) == startWith>>24
	start1 := 0
	if tight0 {
		start1 = int(startWith >> 16 & 0xff)
	}

	for key1 := start1; key1 < 0x100; key1++ {
		if !validKey1(key1) {
			continue
		}
		key[1] = uint8(key1)
		state.Reset(key.Global())
		if m.Decoded[1], ok = v.check(1, &key, state.Keys()); !ok {
			continue
		}

		tight1 := tight0 && key1 == start1
		start2 := 0
		if tight1 {
			start2 = int(startWith >> 8 & 0xff)
		}

		for key2 := start2; key2 < 0x100; key2++ {
			if !validKey23(key2) {
				continue
			}
			key[2] = uint8(key2)
			state.Reset(key.Global())
			if m.Decoded[2], ok = v.check(2, &key, state.Keys()); !ok {
				continue
			}

			start3 := 0
			if tight1 && key2 == start2 {
				start3 = int(startWith & 0xff)
			}

			for key3 := start3; key3 < 0x100; key3++ {
				if !validKey23(key3) {
					continue
				}
				key[3] = uint8(key3)
				state.Reset(key.Global())
				if m.Decoded[3], ok = v.check(3, &key, state.Keys()); !ok {
					continue
				}

				m.Key = key.Global()
				return m, true
			}
		}
	}

	return m, false
}

// FindGlobalKey returns the lowest global key not below startWith that
// decodes the vectors as expected after a reset. The first key byte is
// searched in parallel batches; the lowest match of a batch is returned so
// the result is the same as a sequential search
func (s *Searcher) FindGlobalKey(ctx context.Context, v Vectors, startWith uint32) (GlobalKeyMatch, bool, error) {
	workers := s.workers()
	log := s.log()

	for base := int(startWith >> 24); base < 0x100; base += workers {
		if err := ctx.Err(); err != nil {
			return GlobalKeyMatch{}, false, err
		}

		n := workers
		if base+n > 0x100 {
			n = 0x100 - base
		}

		log.WithFields(logrus.Fields{"from": base, "to": base + n - 1}).Debug("Searching first global key byte")

		results := make([]*GlobalKeyMatch, n)

		var g errgroup.Group
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				if m, ok := firstMatch(&v, base+i, startWith); ok {
					results[i] = &m
				}
				return nil
			})
		}
		_ = g.Wait()

		for _, r := range results {
			if r != nil {
				log.WithField("key", r.Key).Info("Found global key")
				return *r, true, nil
			}
		}
	}

	return GlobalKeyMatch{}, false, nil
}

// GlobalKeys calls fn with every matching global key in ascending order
// starting from startWith until fn returns false or the key space is
// exhausted
func (s *Searcher) GlobalKeys(ctx context.Context, v Vectors, startWith uint32, fn func(GlobalKeyMatch) bool) error {
	for {
		m, ok, err := s.FindGlobalKey(ctx, v, startWith)
		if err != nil {
			return err
		}
		if !ok || !fn(m) {
			return nil
		}

		k := m.Key.Uint32()
		if k == 0xffffffff {
			return nil
		}
		startWith = k + 1
	}
}
