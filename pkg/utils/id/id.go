// Package id generates request identifiers.
//
// IDs are ULIDs: 26 characters, lexicographically sortable by creation time,
// and monotonic within the same millisecond.
//
//	rid := id.NewULID() // e.g. "01ARZ3NDEKTSV4RRFFQ69G5FAV"
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator defines the interface for ID generators.
type Generator interface {
	// Generate creates a new unique ID.
	Generate() string
}

// ULIDGenerator generates monotonic ULIDs. It is safe for concurrent use.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// ULIDOption is a functional option for ULIDGenerator.
type ULIDOption func(*ULIDGenerator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ULIDOption {
	return func(g *ULIDGenerator) {
		g.now = now
	}
}

// NewULIDGenerator creates a ULID generator reading randomness from r.
// A nil reader means crypto/rand.
func NewULIDGenerator(r io.Reader, opts ...ULIDOption) *ULIDGenerator {
	if r == nil {
		r = rand.Reader
	}
	g := &ULIDGenerator{
		entropy: ulid.Monotonic(r, 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a new ULID string. If the entropy source fails the ID
// falls back to ulid.Make.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

var (
	defaultULID     *ULIDGenerator
	defaultULIDOnce sync.Once
)

// NewULID returns a ULID from the process-wide generator.
func NewULID() string {
	defaultULIDOnce.Do(func() {
		defaultULID = NewULIDGenerator(nil)
	})
	return defaultULID.Generate()
}

// IsULID reports whether s parses as a ULID.
func IsULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
