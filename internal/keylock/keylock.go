// Package keylock provides a fixed pool of mutexes selected by key hash, so
// callers get per-key mutual exclusion without a global lock or an
// ever-growing map of mutexes.
package keylock

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 256

// Striped maps keys onto a fixed set of mutexes.
type Striped struct {
	locks []sync.Mutex
}

// New returns a Striped lock with n stripes (256 when n <= 0).
func New(n int) *Striped {
	if n <= 0 {
		n = defaultStripes
	}
	return &Striped{locks: make([]sync.Mutex, n)}
}

// Lock acquires the stripe owning key and returns its unlock func.
func (s *Striped) Lock(key string) func() {
	mu := &s.locks[s.index(key)]
	mu.Lock()
	return mu.Unlock
}

func (s *Striped) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(s.locks)))
}
