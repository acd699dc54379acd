package sim

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrExhausted is returned when the backing allocator cannot satisfy an acquire.
	ErrExhausted = errors.New("backing allocator exhausted")

	// ErrInvalidHandle is returned when a handle is unknown or already released.
	ErrInvalidHandle = errors.New("invalid or released backing handle")
)

// Handle is an ownership token for a region obtained from an ObjectAllocator.
type Handle struct {
	ID       uint64 // allocator-assigned, never reused; 0 is the zero handle
	SizeBits int    // log2 of the region size in bytes
	Capacity int64  // number of minimum-size units the region covers
	Offset   int64  // byte offset inside the backing pool
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.ID == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("handle#%d(2^%d@%d)", h.ID, h.SizeBits, h.Offset)
}

// ObjectAllocator is the allocator under test. Its splitting and merging
// policy is opaque to the simulation core.
type ObjectAllocator interface {
	// Acquire returns a region of 2^sizeClass bytes whose Capacity is
	// 2^(sizeClass-PageBits()) units, or an error wrapping ErrExhausted.
	Acquire(sizeClass int) (Handle, error)
	// AcquireDiscreteUnit carves one minimum-size unit out of a live coarse
	// handle. Errors wrap ErrExhausted or ErrInvalidHandle.
	AcquireDiscreteUnit(source Handle) (Handle, error)
	// Release reclaims a handle. A second release of the same handle
	// returns an error wrapping ErrInvalidHandle.
	Release(h Handle) error
	// PageBits returns log2 of the minimum unit size in bytes.
	PageBits() int
}

// NewObjectAllocatorFunc is set by sim/buddy's init() to break the import
// cycle between sim (interface owner) and sim/buddy (implementation).
var NewObjectAllocatorFunc func(pageBits, poolBits int) ObjectAllocator

// NewObjectAllocator builds the default backing allocator for cfg.
// Panics if no implementation has been registered.
func NewObjectAllocator(cfg SimConfig) ObjectAllocator {
	if NewObjectAllocatorFunc == nil {
		panic("NewObjectAllocatorFunc not registered: import sim/buddy to register it " +
			"(add: import _ \"github.com/allocsim/allocsim/sim/buddy\")")
	}
	return NewObjectAllocatorFunc(cfg.PageBits, cfg.PoolBits)
}
