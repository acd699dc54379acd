// register.go wires the buddy allocator into the sim package's registration
// variable (NewObjectAllocatorFunc). This init() runs when any package imports
// sim/buddy, breaking the import cycle between sim/ (interface owner) and
// sim/buddy/ (implementation).
package buddy

import "github.com/allocsim/allocsim/sim"

func init() {
	sim.NewObjectAllocatorFunc = func(pageBits, poolBits int) sim.ObjectAllocator {
		return New(pageBits, poolBits)
	}
}
