package keysearch

import (
	"context"

	"github.com/bodgit/fd1094/fd1094"
	"github.com/sirupsen/logrus"
)

// SequenceMatch is a combination of first key byte and generator that
// decodes a whole opcode sequence
type SequenceMatch struct {
	Global    fd1094.GlobalKey
	Generator Generator
	// Seed is the generator state before the key byte of the first word
	Seed uint32
	// Bytes are the key bytes for each word of the sequence
	Bytes []uint8
}

// highBits returns the possible high two bits of a key byte at index
func highBits(index uint32) []uint8 {
	switch fd1094.MaskForKeyIndex(index) {
	case 0x80:
		return []uint8{0x80, 0xc0}
	case 0x40:
		return []uint8{0x40, 0xc0}
	default:
		return []uint8{0x00, 0x40, 0x80, 0xc0}
	}
}

type sequence struct {
	basePC  uint32
	key     *fd1094.Key
	gk      fd1094.GlobalKeys
	code    []uint16
	words   []uint16
	mask    []uint16
	indexes []uint32
}

func (s *sequence) matches(i int) bool {
	d := fd1094.Decode(s.basePC+uint32(i), s.code[i], s.key, s.gk, false)
	return d&s.mask[i] == s.words[i]&s.mask[i]
}

// jumps returns, for every word, the generator jump from the state of the
// first word's key byte to the state of its own. Key indexes go backwards
// where a run crosses into the next 0x2000 words, which is a forward jump
// modulo the period of the state bits the output depends on
func (s *sequence) jumps(g Generator) []jump {
	period := uint32(1) << g.seedBits()

	j := make([]jump, len(s.indexes))
	for i, index := range s.indexes {
		j[i] = g.jump((index - s.indexes[0]) & (period - 1))
	}

	return j
}

// try assumes the key byte of the first word is already in place and
// generates the rest of the run from seed, guessing the high bit of each
// byte
func (s *sequence) try(g Generator, jumps []jump, seed uint32) ([]uint8, bool) {
	b := make([]uint8, 1, len(s.words))
	b[0] = s.key[s.indexes[0]]

	first := g.Next(seed)
	for i := 1; i < len(s.words); i++ {
		low := g.Output(jumps[i].apply(first))

		found := false
		for _, hi := range highBits(s.indexes[i]) {
			s.key[s.indexes[i]] = hi | low
			if s.matches(i) {
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
		b = append(b, s.key[s.indexes[i]])
	}

	return b, true
}

// FindOpcodeSequence searches for key bytes that decode code, the words
// found at basePC onwards, to the expected sequence under mask. The global
// key must already be known; gk are the global keys derived for the state
// the code runs in. The key byte of the first word is brute forced and the
// remaining bytes are assumed to come from one of the known generators.
// Every match found is returned. The key is left holding the bytes of the
// first match, or untouched if there isn't one
func (s *Searcher) FindOpcodeSequence(ctx context.Context, basePC uint32, key *fd1094.Key, gk fd1094.GlobalKeys, code, words, mask []uint16) ([]SequenceMatch, error) {
	if len(words) == 0 || len(words) != len(mask) || len(code) < len(words) {
		return nil, errSequenceLength
	}

	seq := &sequence{
		basePC:  basePC,
		key:     key,
		gk:      gk,
		code:    code,
		words:   words,
		mask:    mask,
		indexes: make([]uint32, len(words)),
	}

	saved := make([]uint8, len(words))
	for i := range words {
		seq.indexes[i] = fd1094.KeyIndex(basePC + uint32(i))
		saved[i] = key[seq.indexes[i]]
	}

	log := s.log().WithField("pc", basePC)

	var found []SequenceMatch

	first := seq.indexes[0]
	fixed := fd1094.MaskForKeyIndex(first)

	for c := 0; c < 0x100; c++ {
		if uint8(c)&fixed != fixed {
			continue
		}
		if err := ctx.Err(); err != nil {
			for i, x := range saved {
				key[seq.indexes[i]] = x
			}
			return nil, err
		}

		key[first] = uint8(c)
		if !seq.matches(0) {
			continue
		}

		for _, g := range Generators() {
			jumps := seq.jumps(g)
			for seed := uint32(0); seed < 1<<g.seedBits(); seed++ {
				if g.Output(g.Next(seed)) != uint8(c)&0x3f {
					continue
				}

				key[first] = uint8(c)
				b, ok := seq.try(g, jumps, seed)
				if !ok {
					continue
				}

				m := SequenceMatch{
					Global:    key.Global(),
					Generator: g,
					Seed:      seed,
					Bytes:     b,
				}
				log.WithFields(logrus.Fields{
					"key":       m.Global,
					"generator": g,
					"seed":      seed,
				}).Info("Found opcode sequence")
				found = append(found, m)
			}
		}
	}

	if len(found) > 0 {
		for i, x := range found[0].Bytes {
			key[seq.indexes[i]] = x
		}
	} else {
		for i, x := range saved {
			key[seq.indexes[i]] = x
		}
	}

	return found, nil
}
