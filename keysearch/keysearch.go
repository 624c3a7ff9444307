/*
Package keysearch recovers FD1094 keys from partial knowledge of the
decrypted program. The searches are brute force and meant to be run from
tools rather than while emulating.
*/
package keysearch

import (
	"errors"
	"io/ioutil"
	"runtime"

	"github.com/sirupsen/logrus"
)

var errSequenceLength = errors.New("keysearch: code, sequence and mask lengths don't match")

// Searcher holds the settings shared by the searches
type Searcher struct {
	// Workers is the number of values of the first global key byte
	// searched in parallel, zero uses one per CPU
	Workers int
	// Log receives progress and matches, nil discards them
	Log logrus.FieldLogger
}

// New returns a Searcher using workers goroutines and logging to log
func New(workers int, log logrus.FieldLogger) *Searcher {
	return &Searcher{
		Workers: workers,
		Log:     log,
	}
}

func (s *Searcher) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

func (s *Searcher) log() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}
