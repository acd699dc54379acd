// Package buddy implements a split-based binary buddy allocator over a fixed
// pool. It is the default backing allocator replayed by the simulator.
//
// A coarse handle is a power-of-two region of at least one page. Discrete
// units may be carved out of a live coarse handle one page at a time;
// releasing the coarse handle revokes any units still carved from it.
package buddy

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/sirupsen/logrus"

	"github.com/allocsim/allocsim/sim"
)

type block struct {
	offset   int64
	order    int
	prevFree *block
	nextFree *block
}

type grant struct {
	handle   sim.Handle
	parent   uint64 // 0 for coarse handles
	blk      *block // coarse handles only
	carved   int64  // units carved so far (coarse only)
	children []uint64
}

// Stats is a point-in-time snapshot of allocator bookkeeping.
type Stats struct {
	PoolBytes       int64
	UsedBytes       int64
	LiveCoarse      int
	LiveUnits       int
	Acquires        int64
	UnitAcquires    int64
	Releases        int64
	Splits          int64
	Merges          int64
	Exhaustions     int64
	FreeBlocksOrder []int // free block count per order, index 0 = one page
}

// Allocator is a binary buddy allocator. Not thread-safe.
type Allocator struct {
	pageBits int
	poolBits int
	maxOrder int

	freeHeads   []*block
	freeByOrder []*swiss.Map[int64, *block] // order -> offset -> free block
	handles     *swiss.Map[uint64, *grant]
	nextHandle  uint64

	usedBytes int64
	liveUnits int
	stats     Stats
}

var _ sim.ObjectAllocator = &Allocator{}

// New creates an allocator managing 2^poolBits bytes in pages of 2^pageBits.
// Panics if poolBits < pageBits or either is negative.
func New(pageBits, poolBits int) *Allocator {
	if pageBits < 0 || poolBits < pageBits || poolBits > 62 {
		panic(errors.AssertionFailedf("buddy: invalid geometry pageBits=%d poolBits=%d", pageBits, poolBits))
	}
	maxOrder := poolBits - pageBits
	a := &Allocator{
		pageBits:    pageBits,
		poolBits:    poolBits,
		maxOrder:    maxOrder,
		freeHeads:   make([]*block, maxOrder+1),
		freeByOrder: make([]*swiss.Map[int64, *block], maxOrder+1),
		handles:     swiss.NewMap[uint64, *grant](64),
	}
	for o := range a.freeByOrder {
		a.freeByOrder[o] = swiss.NewMap[int64, *block](8)
	}
	a.pushFree(&block{offset: 0, order: maxOrder})
	return a
}

// PageBits returns log2 of the minimum unit size in bytes.
func (a *Allocator) PageBits() int {
	return a.pageBits
}

// PoolBits returns log2 of the pool size in bytes.
func (a *Allocator) PoolBits() int {
	return a.poolBits
}

// Acquire returns a 2^sizeClass byte region, splitting larger free blocks as needed.
func (a *Allocator) Acquire(sizeClass int) (sim.Handle, error) {
	if sizeClass < a.pageBits || sizeClass > a.poolBits {
		a.stats.Exhaustions++
		return sim.Handle{}, errors.Wrapf(sim.ErrExhausted,
			"size class %d outside pool range [%d, %d]", sizeClass, a.pageBits, a.poolBits)
	}
	want := sizeClass - a.pageBits

	o := want
	for o <= a.maxOrder && a.freeHeads[o] == nil {
		o++
	}
	if o > a.maxOrder {
		a.stats.Exhaustions++
		logrus.Debugf("buddy: no free block for size class %d (%d bytes in use)", sizeClass, a.usedBytes)
		return sim.Handle{}, errors.Wrapf(sim.ErrExhausted, "no free block for size class %d", sizeClass)
	}

	blk := a.freeHeads[o]
	a.removeFree(blk)
	for blk.order > want {
		blk.order--
		a.pushFree(&block{offset: blk.offset + a.orderBytes(blk.order), order: blk.order})
		a.stats.Splits++
	}

	a.nextHandle++
	h := sim.Handle{
		ID:       a.nextHandle,
		SizeBits: sizeClass,
		Capacity: int64(1) << want,
		Offset:   blk.offset,
	}
	a.handles.Put(h.ID, &grant{handle: h, blk: blk})
	a.usedBytes += a.orderBytes(want)
	a.stats.Acquires++
	return h, nil
}

// AcquireDiscreteUnit carves the next page out of a live coarse handle.
func (a *Allocator) AcquireDiscreteUnit(source sim.Handle) (sim.Handle, error) {
	g, err := a.lookup(source)
	if err != nil {
		return sim.Handle{}, err
	}
	if g.parent != 0 {
		return sim.Handle{}, errors.Wrapf(sim.ErrInvalidHandle, "%s is a unit handle, not a coarse region", source)
	}
	if g.carved >= g.handle.Capacity {
		a.stats.Exhaustions++
		return sim.Handle{}, errors.Wrapf(sim.ErrExhausted, "%s is fully carved (%d units)", source, g.carved)
	}

	a.nextHandle++
	u := sim.Handle{
		ID:       a.nextHandle,
		SizeBits: a.pageBits,
		Capacity: 1,
		Offset:   g.handle.Offset + g.carved<<a.pageBits,
	}
	g.carved++
	g.children = append(g.children, u.ID)
	a.handles.Put(u.ID, &grant{handle: u, parent: source.ID})
	a.liveUnits++
	a.stats.UnitAcquires++
	return u, nil
}

// Release reclaims a handle. Releasing a coarse handle revokes its carved
// units and merges the block with free buddies.
func (a *Allocator) Release(h sim.Handle) error {
	g, err := a.lookup(h)
	if err != nil {
		return err
	}
	a.handles.Delete(h.ID)
	a.stats.Releases++

	if g.parent != 0 {
		a.liveUnits--
		return nil
	}

	for _, child := range g.children {
		if c, ok := a.handles.Get(child); ok && c.parent == h.ID {
			a.handles.Delete(child)
			a.liveUnits--
		}
	}

	blk := g.blk
	a.usedBytes -= a.orderBytes(blk.order)
	for blk.order < a.maxOrder {
		buddyOffset := blk.offset ^ a.orderBytes(blk.order)
		buddy, ok := a.freeByOrder[blk.order].Get(buddyOffset)
		if !ok {
			break
		}
		a.removeFree(buddy)
		if buddyOffset < blk.offset {
			blk.offset = buddyOffset
		}
		blk.order++
		a.stats.Merges++
	}
	a.pushFree(blk)
	return nil
}

// Outstanding returns the number of live handles, coarse and unit.
func (a *Allocator) Outstanding() int {
	return a.handles.Count()
}

// Stats returns a snapshot of allocator bookkeeping.
func (a *Allocator) Stats() Stats {
	s := a.stats
	s.PoolBytes = a.orderBytes(a.maxOrder)
	s.UsedBytes = a.usedBytes
	s.LiveUnits = a.liveUnits
	s.LiveCoarse = a.handles.Count() - a.liveUnits
	s.FreeBlocksOrder = make([]int, a.maxOrder+1)
	for o, m := range a.freeByOrder {
		s.FreeBlocksOrder[o] = m.Count()
	}
	return s
}

// Validate checks free-list integrity and byte accounting.
func (a *Allocator) Validate() error {
	var freeBytes int64
	for o := 0; o <= a.maxOrder; o++ {
		listCount := 0
		for blk := a.freeHeads[o]; blk != nil; blk = blk.nextFree {
			if blk.order != o {
				return errors.Errorf("block at offset %d is on the order %d free list but has order %d", blk.offset, o, blk.order)
			}
			if blk.nextFree != nil && blk.nextFree.prevFree != blk {
				return errors.Errorf("block at offset %d lists the block at offset %d as its next block, but the reverse reference is broken", blk.offset, blk.nextFree.offset)
			}
			if blk.offset&(a.orderBytes(o)-1) != 0 {
				return errors.Errorf("free block at offset %d is misaligned for order %d", blk.offset, o)
			}
			if got, ok := a.freeByOrder[o].Get(blk.offset); !ok || got != blk {
				return errors.Errorf("free block at offset %d (order %d) missing from the offset index", blk.offset, o)
			}
			listCount++
			freeBytes += a.orderBytes(o)
		}
		if listCount != a.freeByOrder[o].Count() {
			return errors.Errorf("order %d free list has %d blocks but the offset index has %d", o, listCount, a.freeByOrder[o].Count())
		}
	}
	if freeBytes+a.usedBytes != a.orderBytes(a.maxOrder) {
		return errors.Errorf("free bytes (%d) plus used bytes (%d) do not cover the pool (%d)", freeBytes, a.usedBytes, a.orderBytes(a.maxOrder))
	}
	return nil
}

// BuildStatsString writes the allocator statistics as a JSON object.
func (a *Allocator) BuildStatsString(writer *jwriter.Writer) {
	s := a.Stats()
	obj := writer.Object()
	defer obj.End()

	obj.Name("PoolBytes").Int(int(s.PoolBytes))
	obj.Name("UsedBytes").Int(int(s.UsedBytes))
	obj.Name("LiveCoarse").Int(s.LiveCoarse)
	obj.Name("LiveUnits").Int(s.LiveUnits)
	obj.Name("Acquires").Int(int(s.Acquires))
	obj.Name("UnitAcquires").Int(int(s.UnitAcquires))
	obj.Name("Releases").Int(int(s.Releases))
	obj.Name("Splits").Int(int(s.Splits))
	obj.Name("Merges").Int(int(s.Merges))
	obj.Name("Exhaustions").Int(int(s.Exhaustions))

	arr := obj.Name("FreeBlocksPerOrder").Array()
	for _, n := range s.FreeBlocksOrder {
		arr.Int(n)
	}
	arr.End()
}

func (a *Allocator) lookup(h sim.Handle) (*grant, error) {
	if h.IsZero() {
		return nil, errors.Wrap(sim.ErrInvalidHandle, "zero handle")
	}
	g, ok := a.handles.Get(h.ID)
	if !ok {
		return nil, errors.Wrapf(sim.ErrInvalidHandle, "%s is unknown or already released", h)
	}
	if g.handle != h {
		return nil, errors.Wrapf(sim.ErrInvalidHandle, "%s does not match the granted %s", h, g.handle)
	}
	return g, nil
}

func (a *Allocator) orderBytes(order int) int64 {
	return int64(1) << (order + a.pageBits)
}

// pushFree inserts blk at the head of its order's free list.
func (a *Allocator) pushFree(blk *block) {
	blk.prevFree = nil
	blk.nextFree = a.freeHeads[blk.order]
	if blk.nextFree != nil {
		blk.nextFree.prevFree = blk
	}
	a.freeHeads[blk.order] = blk
	a.freeByOrder[blk.order].Put(blk.offset, blk)
}

// removeFree detaches blk from its order's free list.
func (a *Allocator) removeFree(blk *block) {
	if blk.prevFree != nil {
		blk.prevFree.nextFree = blk.nextFree
	} else {
		a.freeHeads[blk.order] = blk.nextFree
	}
	if blk.nextFree != nil {
		blk.nextFree.prevFree = blk.prevFree
	}
	blk.prevFree = nil
	blk.nextFree = nil
	a.freeByOrder[blk.order].Delete(blk.offset)
}
