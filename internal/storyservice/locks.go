package storyservice

import (
	"slices"
	"sync"
)

// slugLocks serialises the read-check-write sequence of writers per story so
// an If-Match checksum is compared against the file that is then replaced.
type slugLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSlugLocks() *slugLocks {
	return &slugLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the locks for slugs in sorted order and returns the release
// func.
func (l *slugLocks) lock(slugs ...string) func() {
	slugs = slices.Clone(slugs)
	slices.Sort(slugs)
	slugs = slices.Compact(slugs)

	held := make([]*sync.Mutex, 0, len(slugs))
	for _, slug := range slugs {
		l.mu.Lock()
		m, ok := l.locks[slug]
		if !ok {
			m = &sync.Mutex{}
			l.locks[slug] = m
		}
		l.mu.Unlock()
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
