// Package sim provides the workload-replay core of the allocator simulator.
//
// # Reading Guide
//
// Start with these three files to understand the replay kernel:
//   - ledger.go: the creation-ordered record of outstanding allocations and its retirement scan
//   - acquire.go: bulk and discrete acquisition over a backing allocator
//   - simulator.go: the per-iteration draw, acquire, append, retire loop
//
// # Architecture
//
// The sim package defines interfaces and bridge types; implementations live in
// sub-packages:
//   - sim/buddy/: split/merge buddy allocator used as the default backing allocator
//   - sim/workload/: size policies, expiry delays and YAML workload specs
//   - sim/trace/: acquire and retirement event recording
//
// sim/buddy registers itself via init() by setting NewObjectAllocatorFunc.
//
// # Key Interfaces
//
//   - ObjectAllocator: acquire a size class, carve discrete units, release handles
//   - Acquirer: obtain and return every handle of one request in a given mode
package sim
