package spud

import (
	"io"
	"sync"
	"time"

	"github.com/go-spud/spud-go/internal/wire"
)

// FixedIDSource is a deterministic substitute for crypto/rand during tests.
// It hands out a fixed sequence of identifiers, one per Read, and tracks how
// many have been drawn so far; exhausting the sequence returns io.EOF rather
// than falling back to real entropy, so a test notices if it asked for more
// identifiers than it seeded.
type FixedIDSource struct {
	mu   sync.Mutex
	ids  [][]byte
	used int
}

// NewFixedIDSource builds a source that returns ids in order.
func NewFixedIDSource(ids ...wire.ID) *FixedIDSource {
	src := &FixedIDSource{ids: make([][]byte, len(ids))}
	for i, id := range ids {
		cp := make([]byte, len(id))
		copy(cp, id[:])
		src.ids[i] = cp
	}
	return src
}

// Read implements the signature wire.RandRead expects.
func (s *FixedIDSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used >= len(s.ids) {
		return 0, io.EOF
	}
	n := copy(p, s.ids[s.used])
	s.used++
	return n, nil
}

// Calls reports how many identifiers have been drawn so far.
func (s *FixedIDSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Reset rewinds the source back to its first identifier.
func (s *FixedIDSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = 0
}

// Install overrides wire.RandRead with s for the life of the calling test,
// restoring the real source on cleanup.
func (s *FixedIDSource) Install(t testingT) {
	t.Helper()
	prev := wire.RandRead
	wire.RandRead = s.Read
	t.Cleanup(func() { wire.RandRead = prev })
}

// testingT is the subset of *testing.T this package needs, so callers don't
// have to import "testing" into a non-test build to hold a *FixedIDSource.
type testingT interface {
	Helper()
	Cleanup(func())
}

// FakeClock is a manually-advanced clock for deterministic manager tests;
// its Now method is a manager.Config.Clock value.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock builds a clock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the clock's current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
