//go:generate mockgen -destination=mock_allocator.go -package=testutil github.com/allocsim/allocsim/sim ObjectAllocator

// Package testutil provides shared test infrastructure for the allocator
// replay simulator. Its CountingAllocator is a deterministic stand-in for the
// backing allocator that records every call and can inject failures.
package testutil

import (
	"github.com/cockroachdb/errors"

	"github.com/allocsim/allocsim/sim"
)

// AcquireCall records one Acquire or AcquireDiscreteUnit call.
type AcquireCall struct {
	SizeClass int
	Source    uint64 // coarse handle ID for discrete carvings, 0 otherwise
}

// CountingAllocator hands out handles without a real pool. Capacity follows
// the size class exactly, so it never runs out unless told to.
type CountingAllocator struct {
	Bits int

	// FailOnAcquire makes the Nth Acquire call (1-based) fail with ErrExhausted.
	// Zero disables the failure.
	FailOnAcquire int
	// FailOnUnit makes the Nth AcquireDiscreteUnit call (1-based) fail.
	FailOnUnit int
	// FailOnRelease makes the Nth Release call (1-based) fail with
	// ErrInvalidHandle. The handle stays live.
	FailOnRelease int

	Acquires []AcquireCall
	Releases []sim.Handle

	live         map[uint64]sim.Handle
	carved       map[uint64]int64
	nextID       uint64
	coarseCalls  int
	unitCalls    int
	releaseCalls int
	peakLive     int
}

var _ sim.ObjectAllocator = &CountingAllocator{}

// NewCountingAllocator returns an allocator with the given page size.
func NewCountingAllocator(pageBits int) *CountingAllocator {
	return &CountingAllocator{
		Bits:   pageBits,
		live:   make(map[uint64]sim.Handle),
		carved: make(map[uint64]int64),
	}
}

func (c *CountingAllocator) PageBits() int { return c.Bits }

func (c *CountingAllocator) Acquire(sizeClass int) (sim.Handle, error) {
	c.Acquires = append(c.Acquires, AcquireCall{SizeClass: sizeClass})
	c.coarseCalls++
	if c.FailOnAcquire > 0 && c.coarseCalls == c.FailOnAcquire {
		return sim.Handle{}, errors.Wrapf(sim.ErrExhausted, "injected failure on acquire %d", c.FailOnAcquire)
	}
	if sizeClass < c.Bits {
		return sim.Handle{}, errors.Wrapf(sim.ErrExhausted, "size class %d below page size", sizeClass)
	}
	c.nextID++
	h := sim.Handle{
		ID:       c.nextID,
		SizeBits: sizeClass,
		Capacity: int64(1) << (sizeClass - c.Bits),
		Offset:   int64(c.nextID) << 32,
	}
	c.track(h)
	return h, nil
}

func (c *CountingAllocator) AcquireDiscreteUnit(source sim.Handle) (sim.Handle, error) {
	c.Acquires = append(c.Acquires, AcquireCall{SizeClass: c.Bits, Source: source.ID})
	c.unitCalls++
	if c.FailOnUnit > 0 && c.unitCalls == c.FailOnUnit {
		return sim.Handle{}, errors.Wrapf(sim.ErrExhausted, "injected failure on unit %d", c.FailOnUnit)
	}
	if got, ok := c.live[source.ID]; !ok || got != source {
		return sim.Handle{}, errors.Wrapf(sim.ErrInvalidHandle, "unknown source %s", source)
	}
	n := c.carved[source.ID]
	if n >= source.Capacity {
		return sim.Handle{}, errors.Wrapf(sim.ErrExhausted, "%s fully carved", source)
	}
	c.carved[source.ID] = n + 1
	c.nextID++
	u := sim.Handle{
		ID:       c.nextID,
		SizeBits: c.Bits,
		Capacity: 1,
		Offset:   source.Offset + n<<c.Bits,
	}
	c.track(u)
	return u, nil
}

func (c *CountingAllocator) Release(h sim.Handle) error {
	c.releaseCalls++
	if c.FailOnRelease > 0 && c.releaseCalls == c.FailOnRelease {
		return errors.Wrapf(sim.ErrInvalidHandle, "injected failure on release %d of %s", c.FailOnRelease, h)
	}
	got, ok := c.live[h.ID]
	if !ok || got != h {
		return errors.Wrapf(sim.ErrInvalidHandle, "release of %s", h)
	}
	delete(c.live, h.ID)
	delete(c.carved, h.ID)
	c.Releases = append(c.Releases, h)
	return nil
}

// Outstanding returns the number of live handles.
func (c *CountingAllocator) Outstanding() int {
	return len(c.live)
}

// PeakOutstanding returns the largest number of simultaneously live handles.
func (c *CountingAllocator) PeakOutstanding() int {
	return c.peakLive
}

// CoarseAcquires returns the number of Acquire calls, excluding unit carvings.
func (c *CountingAllocator) CoarseAcquires() int {
	return c.coarseCalls
}

func (c *CountingAllocator) track(h sim.Handle) {
	c.live[h.ID] = h
	if len(c.live) > c.peakLive {
		c.peakLive = len(c.live)
	}
}
