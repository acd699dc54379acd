package sim

import (
	"github.com/cockroachdb/errors"
)

// AllocationRecord is one outstanding simulated allocation.
type AllocationRecord struct {
	CreationStep int64 // iteration that created the record; non-decreasing along the ledger
	ExpiryTime   int64 // step at which the record is retired; always > CreationStep
	UnitCount    int64 // units requested by the workload
	SizeClass    int   // log2 byte size of the backing region
	Lease        Lease // backing handles, exclusively owned until release
}

// nilSlot terminates the chain.
const nilSlot = -1

// sentinelSlot is the permanent chain head: creation 0, expiry 0, no lease.
const sentinelSlot = 0

type ledgerNode struct {
	rec        AllocationRecord
	prev, next int
	live       bool
}

// RetireResult summarises one retirement scan.
type RetireResult struct {
	Records int   // records retired
	Units   int64 // sum of their UnitCount
}

// Ledger is the creation-ordered sequence of outstanding allocation records.
// Records live in an index-stable arena; the chain is a doubly-linked list of
// slot indices starting at the sentinel, so unlinking during a scan is a
// single operation. Slots of retired records are recycled.
//
// Thread-safety: NOT thread-safe. Owned by one Simulator.
type Ledger struct {
	nodes        []ledgerNode
	freeSlots    []int
	tail         int
	count        int
	units        int64
	lastCreation int64
}

// NewLedger creates an empty ledger holding only the sentinel.
func NewLedger() *Ledger {
	l := &Ledger{
		nodes: make([]ledgerNode, 1, 128),
		tail:  sentinelSlot,
	}
	l.nodes[sentinelSlot] = ledgerNode{prev: nilSlot, next: nilSlot, live: true}
	return l
}

// Len returns the number of outstanding records (sentinel excluded).
func (l *Ledger) Len() int {
	return l.count
}

// OutstandingUnits returns the sum of UnitCount over outstanding records.
func (l *Ledger) OutstandingUnits() int64 {
	return l.units
}

// Append inserts rec at the tail in O(1).
// Returns an error if rec would break creation ordering or expire in the past.
func (l *Ledger) Append(rec AllocationRecord) error {
	if rec.CreationStep < 1 {
		return errors.AssertionFailedf("record creation step must be >= 1, got %d", rec.CreationStep)
	}
	if rec.CreationStep < l.lastCreation {
		return errors.AssertionFailedf("record created at step %d appended after step %d", rec.CreationStep, l.lastCreation)
	}
	if rec.ExpiryTime <= rec.CreationStep {
		return errors.AssertionFailedf("record created at step %d expires at %d, want a later step", rec.CreationStep, rec.ExpiryTime)
	}

	slot := l.allocSlot()
	l.nodes[slot] = ledgerNode{rec: rec, prev: l.tail, next: nilSlot, live: true}
	l.nodes[l.tail].next = slot
	l.tail = slot

	l.count++
	l.units += rec.UnitCount
	l.lastCreation = rec.CreationStep
	return nil
}

// RetireExpired scans forward from the record after the sentinel and retires
// every record whose ExpiryTime equals step. The scan stops at the first record
// created after step. release is called once per retired record before it is
// unlinked; if release fails the record stays in the ledger and the error is
// returned with the partial result.
func (l *Ledger) RetireExpired(step int64, release func(AllocationRecord) error) (RetireResult, error) {
	var res RetireResult
	cur := l.nodes[sentinelSlot].next
	for cur != nilSlot {
		n := &l.nodes[cur]
		if n.rec.CreationStep > step {
			break
		}
		next := n.next
		if n.rec.ExpiryTime == step {
			if err := release(n.rec); err != nil {
				return res, errors.Wrapf(err, "retiring record created at step %d", n.rec.CreationStep)
			}
			res.Records++
			res.Units += n.rec.UnitCount
			l.unlink(cur)
		}
		cur = next
	}
	return res, nil
}

// Drain retires every outstanding record in creation order.
func (l *Ledger) Drain(release func(AllocationRecord) error) (RetireResult, error) {
	var res RetireResult
	for cur := l.nodes[sentinelSlot].next; cur != nilSlot; cur = l.nodes[sentinelSlot].next {
		rec := l.nodes[cur].rec
		if err := release(rec); err != nil {
			return res, errors.Wrapf(err, "draining record created at step %d", rec.CreationStep)
		}
		res.Records++
		res.Units += rec.UnitCount
		l.unlink(cur)
	}
	return res, nil
}

// Each calls fn for every outstanding record in creation order until fn
// returns false.
func (l *Ledger) Each(fn func(AllocationRecord) bool) {
	for cur := l.nodes[sentinelSlot].next; cur != nilSlot; cur = l.nodes[cur].next {
		if !fn(l.nodes[cur].rec) {
			return
		}
	}
}

// Validate walks the chain and checks links, ordering and counters.
func (l *Ledger) Validate() error {
	head := l.nodes[sentinelSlot]
	if head.prev != nilSlot || head.rec.CreationStep != 0 || head.rec.ExpiryTime != 0 {
		return errors.New("sentinel record has been modified")
	}

	actualCount := 0
	var actualUnits, lastCreation int64
	prev := sentinelSlot
	for cur := head.next; cur != nilSlot; cur = l.nodes[cur].next {
		n := l.nodes[cur]
		if !n.live {
			return errors.Errorf("slot %d is linked but not live", cur)
		}
		if n.prev != prev {
			return errors.Errorf("slot %d lists slot %d as previous, want %d", cur, n.prev, prev)
		}
		if n.rec.CreationStep < lastCreation {
			return errors.Errorf("slot %d created at step %d follows step %d", cur, n.rec.CreationStep, lastCreation)
		}
		if n.rec.ExpiryTime <= n.rec.CreationStep {
			return errors.Errorf("slot %d expires at %d, not after creation step %d", cur, n.rec.ExpiryTime, n.rec.CreationStep)
		}
		lastCreation = n.rec.CreationStep
		actualCount++
		actualUnits += n.rec.UnitCount
		prev = cur
	}

	if prev != l.tail {
		return errors.Errorf("tail is slot %d but the chain ends at slot %d", l.tail, prev)
	}
	if actualCount != l.count {
		return errors.Errorf("the listed number of records (%d) does not match the actual number of records (%d)", l.count, actualCount)
	}
	if actualUnits != l.units {
		return errors.Errorf("the listed outstanding units (%d) do not match the actual units (%d)", l.units, actualUnits)
	}
	return nil
}

func (l *Ledger) allocSlot() int {
	if n := len(l.freeSlots); n > 0 {
		slot := l.freeSlots[n-1]
		l.freeSlots = l.freeSlots[:n-1]
		return slot
	}
	l.nodes = append(l.nodes, ledgerNode{})
	return len(l.nodes) - 1
}

// unlink detaches slot from the chain and recycles it.
func (l *Ledger) unlink(slot int) {
	n := &l.nodes[slot]
	// a - slot - b => a - b
	l.nodes[n.prev].next = n.next
	if n.next != nilSlot {
		l.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}

	l.count--
	l.units -= n.rec.UnitCount

	*n = ledgerNode{prev: nilSlot, next: nilSlot}
	l.freeSlots = append(l.freeSlots, slot)
}
