package sim_test

// Blank import triggers sim/buddy's init(), which registers NewObjectAllocatorFunc.
// This allows package sim's internal test files to build the default allocator
// without directly importing sim/buddy (which would create an import cycle).
import _ "github.com/allocsim/allocsim/sim/buddy"
