package sim

import (
	"math/bits"

	"github.com/cockroachdb/errors"
)

// Lease is everything a record owns in the backing allocator.
type Lease struct {
	Coarse Handle   // the region acquired for the request
	Units  []Handle // carved unit handles; discrete mode only
}

// Acquirer obtains and returns the units of one request. BulkAcquirer and
// DiscreteAcquirer implement it over any ObjectAllocator, so the Simulator
// and Ledger are written once against this interface.
type Acquirer interface {
	// Acquire obtains units minimum-size units of the given size class.
	// On error the returned Lease holds whatever was obtained before the
	// failure; it is not rolled back.
	Acquire(sizeClass int, units int64) (Lease, error)
	// Release returns every handle in the lease to the allocator.
	Release(l Lease) error
	Mode() AcquisitionMode
}

// NewAcquirer returns the adapter for mode over alloc.
func NewAcquirer(mode AcquisitionMode, alloc ObjectAllocator) (Acquirer, error) {
	if alloc == nil {
		return nil, errors.New("nil object allocator")
	}
	switch mode {
	case AcquisitionBulk, "":
		return &BulkAcquirer{alloc: alloc}, nil
	case AcquisitionDiscrete:
		return &DiscreteAcquirer{alloc: alloc}, nil
	default:
		return nil, errors.Newf("unknown acquisition mode %q", mode)
	}
}

// SizeClassFor returns the log2 byte size of the region that covers units
// minimum-size units: ceil(log2(units)) + pageBits. Non power-of-two counts
// round up to the next class.
func SizeClassFor(units int64, pageBits int) int {
	if units < 1 {
		panic("SizeClassFor: units must be >= 1")
	}
	return bits.Len64(uint64(units-1)) + pageBits
}

// BulkAcquirer obtains a request with a single contiguous acquire.
type BulkAcquirer struct {
	alloc ObjectAllocator
}

func (b *BulkAcquirer) Mode() AcquisitionMode { return AcquisitionBulk }

func (b *BulkAcquirer) Acquire(sizeClass int, units int64) (Lease, error) {
	h, err := b.alloc.Acquire(sizeClass)
	if err != nil {
		return Lease{}, errors.Wrapf(err, "bulk acquire of %d units", units)
	}
	want := int64(1) << (sizeClass - b.alloc.PageBits())
	if h.Capacity != want {
		return Lease{Coarse: h}, errors.AssertionFailedf(
			"allocator granted %d units for size class %d, want %d", h.Capacity, sizeClass, want)
	}
	return Lease{Coarse: h}, nil
}

func (b *BulkAcquirer) Release(l Lease) error {
	return b.alloc.Release(l.Coarse)
}

// DiscreteAcquirer acquires one coarse region of the aggregate size and then
// carves and registers each unit individually.
type DiscreteAcquirer struct {
	alloc ObjectAllocator
}

func (d *DiscreteAcquirer) Mode() AcquisitionMode { return AcquisitionDiscrete }

func (d *DiscreteAcquirer) Acquire(sizeClass int, units int64) (Lease, error) {
	coarse, err := d.alloc.Acquire(sizeClass)
	if err != nil {
		return Lease{}, errors.Wrapf(err, "discrete acquire of coarse region for %d units", units)
	}
	lease := Lease{Coarse: coarse, Units: make([]Handle, 0, units)}
	for j := int64(0); j < units; j++ {
		u, err := d.alloc.AcquireDiscreteUnit(coarse)
		if err != nil {
			// partial carvings stay with the allocator until process teardown
			return lease, errors.Wrapf(err, "carving unit %d of %d from %s", j, units, coarse)
		}
		lease.Units = append(lease.Units, u)
	}
	return lease, nil
}

func (d *DiscreteAcquirer) Release(l Lease) error {
	for i := len(l.Units) - 1; i >= 0; i-- {
		if err := d.alloc.Release(l.Units[i]); err != nil {
			return errors.Wrapf(err, "releasing unit %d of %s", i, l.Coarse)
		}
	}
	return d.alloc.Release(l.Coarse)
}
