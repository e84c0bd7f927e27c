package spud

import (
	"io"
	"testing"
	"time"

	"github.com/go-spud/spud-go/internal/wire"
)

func TestFixedIDSourceReturnsSeededSequence(t *testing.T) {
	first := wire.ID{1, 1, 1, 1, 1, 1, 1, 1}
	second := wire.ID{2, 2, 2, 2, 2, 2, 2, 2}
	src := NewFixedIDSource(first, second)

	var buf [8]byte
	n, err := src.Read(buf[:])
	if err != nil || n != 8 {
		t.Fatalf("unexpected first read: n=%d err=%v", n, err)
	}
	if wire.ID(buf) != first {
		t.Errorf("expected first id %v, got %v", first, wire.ID(buf))
	}

	n, err = src.Read(buf[:])
	if err != nil || n != 8 {
		t.Fatalf("unexpected second read: n=%d err=%v", n, err)
	}
	if wire.ID(buf) != second {
		t.Errorf("expected second id %v, got %v", second, wire.ID(buf))
	}

	if _, err := src.Read(buf[:]); err != io.EOF {
		t.Errorf("expected io.EOF once exhausted, got %v", err)
	}
	if src.Calls() != 2 {
		t.Errorf("expected 2 calls recorded, got %d", src.Calls())
	}
}

func TestFixedIDSourceInstallOverridesNewID(t *testing.T) {
	want := wire.ID{9, 8, 7, 6, 5, 4, 3, 2}
	src := NewFixedIDSource(want)
	src.Install(t)

	got, err := wire.NewID()
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	if got != want {
		t.Errorf("expected NewID to return the seeded id %v, got %v", want, got)
	}
}

func TestFixedIDSourceReset(t *testing.T) {
	id := wire.ID{3, 3, 3, 3, 3, 3, 3, 3}
	src := NewFixedIDSource(id)
	var buf [8]byte
	_, _ = src.Read(buf[:])
	src.Reset()
	if src.Calls() != 0 {
		t.Errorf("expected Reset to zero the call count, got %d", src.Calls())
	}
	n, err := src.Read(buf[:])
	if err != nil || n != 8 {
		t.Fatalf("expected a replayed read after Reset: n=%d err=%v", n, err)
	}
}

func TestFakeClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	if !clock.Now().Equal(start) {
		t.Errorf("expected initial time %v, got %v", start, clock.Now())
	}

	clock.Advance(5 * time.Second)
	if !clock.Now().Equal(start.Add(5 * time.Second)) {
		t.Errorf("expected advanced time, got %v", clock.Now())
	}

	later := start.Add(time.Hour)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("expected Set time %v, got %v", later, clock.Now())
	}
}
