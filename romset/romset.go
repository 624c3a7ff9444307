/*
Package romset reads the key and program ROMs of an FD1094 game from a
directory or a zip file, as distributed for MAME.
*/
package romset

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bodgit/fd1094/driver"
	"github.com/bodgit/fd1094/fd1094"
	"github.com/gabriel-vasile/mimetype"
)

// KeyExtension is the conventional file extension of a key ROM
const KeyExtension = ".key"

var (
	// ErrNoKey is returned when the set has no key ROM, the program is
	// then assumed to be unencrypted
	ErrNoKey = errors.New("romset: no key")

	errUnsupportedFormat = errors.New("romset: unsupported format")
	errNoProgram         = errors.New("romset: no program ROMs")
	errROMNotFound       = errors.New("romset: ROM not found")
)

// Set is a loaded ROM set
type Set struct {
	Name    string
	Key     *fd1094.Key
	Program []uint16
}

type romOpener interface {
	list() ([]string, error)
	open(string) ([]byte, error)
}

type zipReader struct {
	path string
}

func (zr zipReader) list() ([]string, error) {
	z, err := zip.OpenReader(zr.path)
	if err != nil {
		return nil, err
	}
	defer z.Close()

	var names []string
	for _, f := range z.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}

	return names, nil
}

func (zr zipReader) open(name string) ([]byte, error) {
	z, err := zip.OpenReader(zr.path)
	if err != nil {
		return nil, err
	}
	defer z.Close()

	for _, f := range z.File {
		if f.Name != name {
			continue
		}

		r, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer r.Close()

		b := new(bytes.Buffer)
		if _, err := io.Copy(b, r); err != nil {
			return nil, err
		}

		return b.Bytes(), nil
	}

	return nil, fmt.Errorf("%w: %s", errROMNotFound, name)
}

type directoryReader struct {
	path string
}

func (dr directoryReader) list() ([]string, error) {
	infos, err := ioutil.ReadDir(dr.path)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}

	return names, nil
}

func (dr directoryReader) open(name string) ([]byte, error) {
	b, err := ioutil.ReadFile(filepath.Join(dr.path, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errROMNotFound, name)
		}
		return nil, err
	}
	return b, nil
}

func newOpener(path string) (romOpener, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return directoryReader{path}, nil
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, err
	}

	switch mime.Extension() {
	case ".zip":
		return zipReader{path}, nil
	default:
		return nil, errUnsupportedFormat
	}
}

// ReadKey reads a key ROM image from r
func ReadKey(r io.Reader) (*fd1094.Key, error) {
	b, err := ioutil.ReadAll(io.LimitReader(r, fd1094.KeySize+1))
	if err != nil {
		return nil, err
	}
	return fd1094.NewKey(b)
}

// Open loads the set at path which is either a directory or a zip file.
// The program ROMs are the named files in order, or every file that isn't
// a key in name order if none are given; pairs of files are interleaved
// as even and odd bytes. If there is no key ROM the Set is still returned
// along with ErrNoKey
func Open(path string, pageWords int, program ...string) (*Set, error) {
	o, err := newOpener(path)
	if err != nil {
		return nil, err
	}

	names, err := o.list()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	s := &Set{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	var keyName string
	for _, name := range names {
		if strings.EqualFold(filepath.Ext(name), KeyExtension) {
			keyName = name
			break
		}
	}

	if len(program) == 0 {
		for _, name := range names {
			if name != keyName {
				program = append(program, name)
			}
		}
	}

	if len(program) == 0 {
		return nil, errNoProgram
	}

	var readers []io.Reader
	for _, name := range program {
		b, err := o.open(name)
		if err != nil {
			return nil, err
		}
		readers = append(readers, bytes.NewReader(b))
	}

	if s.Program, err = driver.LoadProgram(pageWords, readers...); err != nil {
		return nil, err
	}

	if keyName == "" {
		return s, ErrNoKey
	}

	b, err := o.open(keyName)
	if err != nil {
		return nil, err
	}

	if s.Key, err = ReadKey(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("%s: %w", keyName, err)
	}

	return s, nil
}

// Open returns the Program the CPU sees for the set
func (s *Set) Open(pageWords int) driver.Program {
	return driver.Open(s.Program, s.Key, pageWords)
}
