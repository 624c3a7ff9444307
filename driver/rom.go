package driver

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"io/ioutil"

	"github.com/bodgit/plumbing"
)

var (
	errInvalidInterleave = errors.New("driver: program ROMs must come in even/odd pairs")
	errOddSize           = errors.New("driver: program isn't a whole number of words")
)

// interleave pairs the bytes of the even and odd halves of a 16-bit wide
// program into words. A short half reads as erased EPROM
func interleave(even, odd []byte) []byte {
	n := len(even)
	if len(odd) > n {
		n = len(odd)
	}

	b := bytes.Repeat([]byte{0xff}, 2*n)
	for i, x := range even {
		b[2*i] = x
	}
	for i, x := range odd {
		b[2*i+1] = x
	}

	return b
}

// LoadProgram builds a word image from a single big-endian image or from
// pairs of even and odd byte ROMs, padding it with 0xff to a whole number
// of pages
func LoadProgram(pageWords int, readers ...io.Reader) ([]uint16, error) {
	var r io.Reader
	switch {
	case len(readers) == 1:
		r = readers[0]
	case len(readers) == 0 || len(readers)%2 != 0:
		return nil, errInvalidInterleave
	default:
		var pairs []io.Reader
		for i := 0; i < len(readers); i += 2 {
			even, err := ioutil.ReadAll(readers[i])
			if err != nil {
				return nil, err
			}
			odd, err := ioutil.ReadAll(readers[i+1])
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, bytes.NewReader(interleave(even, odd)))
		}
		r = io.MultiReader(pairs...)
	}

	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if len(b)%2 != 0 {
		return nil, errOddSize
	}

	size := len(b)
	if page := 2 * pageWords; page > 0 && size%page != 0 {
		size += page - size%page
	}

	padded, err := ioutil.ReadAll(plumbing.PaddedReader(bytes.NewReader(b), int64(size), 0xff))
	if err != nil {
		return nil, err
	}

	rom := make([]uint16, len(padded)/2)
	for i := range rom {
		rom[i] = binary.BigEndian.Uint16(padded[i*2:])
	}

	return rom, nil
}
