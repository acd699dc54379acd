// Package trace provides event recording for allocator replay analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// AcquireRecord captures one successful request acquisition.
type AcquireRecord struct {
	Step      int64 // iteration that created the record
	Units     int64
	SizeClass int
	Expiry    int64 // step at which the record will be retired
}

// RetireRecord captures one record released by a retirement scan.
type RetireRecord struct {
	Step         int64 // iteration whose scan released the record; 0 for teardown
	CreationStep int64
	Units        int64
}

// Lifetime returns the number of steps the record was outstanding.
func (r RetireRecord) Lifetime() int64 {
	return r.Step - r.CreationStep
}
