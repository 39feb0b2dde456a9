// Package ulid generates the opaque identifiers used for blocks and editor sessions.
package ulid

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     io.Reader
	entropyOnce sync.Once

	mu        sync.RWMutex
	generator = defaultGenerator
)

func defaultEntropy() io.Reader {
	entropyOnce.Do(func() {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		entropy = &ulid.LockedMonotonicReader{
			MonotonicReader: ulid.Monotonic(rng, 0),
		}
	})
	return entropy
}

func defaultGenerator() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), defaultEntropy()).String()
}

// GenerateID returns a new identifier. Identifiers are monotonic within a process.
func GenerateID() string {
	mu.RLock()
	g := generator
	mu.RUnlock()
	return g()
}

// ValidID reports whether id was produced by GenerateID.
func ValidID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// MockGenerator makes GenerateID return ids from seq, in order, then repeat the last one.
// Intended for tests only.
func MockGenerator(seq ...string) {
	var i int
	var lock sync.Mutex
	mu.Lock()
	generator = func() string {
		lock.Lock()
		defer lock.Unlock()
		if len(seq) == 0 {
			return ""
		}
		id := seq[i]
		if i < len(seq)-1 {
			i++
		}
		return id
	}
	mu.Unlock()
}

// ResetGenerator restores the default generator.
func ResetGenerator() {
	mu.Lock()
	generator = defaultGenerator
	mu.Unlock()
}
