package sim

import (
	"github.com/cockroachdb/errors"

	"github.com/allocsim/allocsim/sim/trace"
	"github.com/allocsim/allocsim/sim/workload"
)

// AcquisitionMode selects how a request's units are obtained from the
// backing allocator.
type AcquisitionMode string

const (
	// AcquisitionBulk obtains all units of a request with one contiguous acquire.
	AcquisitionBulk AcquisitionMode = "bulk"
	// AcquisitionDiscrete acquires one coarse region and carves each unit from it.
	AcquisitionDiscrete AcquisitionMode = "discrete"
)

// TeardownPolicy decides what happens to records still in the ledger after
// the last iteration.
type TeardownPolicy string

const (
	// TeardownLeave leaves outstanding records unreleased (peak-allocation measurement).
	TeardownLeave TeardownPolicy = "leave"
	// TeardownRelease retires every outstanding record in creation order.
	TeardownRelease TeardownPolicy = "release"
)

// Reference defaults.
const (
	DefaultIterations = 80000
	DefaultPageBits   = 12 // 4096-byte minimum unit
	DefaultPoolBits   = 30
	DefaultSeed       = 42
)

// SimConfig groups every knob of a replay run.
type SimConfig struct {
	Seed            int64
	Iterations      int64           // number of simulated steps (must be > 0)
	RetentionWindow int64           // exclusive bound of the expiry delay (must be >= 2)
	SizePolicy      string          // uniform|pow2|pow2-skewed|constant, or A|B|C
	ConstantSize    int64           // unit count for the constant policy
	Mode            AcquisitionMode // bulk (default) or discrete
	PageBits        int             // log2 of the minimum allocation unit in bytes
	PoolBits        int             // log2 of the backing pool in bytes
	Teardown        TeardownPolicy  // leave (default) or release
	TraceLevel      trace.TraceLevel
}

// DefaultConfig returns the reference workload configuration.
func DefaultConfig() SimConfig {
	return SimConfig{
		Seed:            DefaultSeed,
		Iterations:      DefaultIterations,
		RetentionWindow: workload.DefaultRetentionWindow,
		SizePolicy:      workload.PolicyPowerOfTwo,
		ConstantSize:    1,
		Mode:            AcquisitionBulk,
		PageBits:        DefaultPageBits,
		PoolBits:        DefaultPoolBits,
		Teardown:        TeardownLeave,
		TraceLevel:      trace.TraceLevelNone,
	}
}

// Validate reports the first invalid field, if any.
func (c SimConfig) Validate() error {
	if c.Iterations <= 0 {
		return errors.Newf("iterations must be > 0, got %d", c.Iterations)
	}
	if c.RetentionWindow < 2 {
		return errors.Newf("retention window must be >= 2, got %d", c.RetentionWindow)
	}
	policy, ok := workload.CanonicalPolicyName(c.SizePolicy)
	if !ok {
		return errors.Newf("unknown size policy %q", c.SizePolicy)
	}
	if policy == workload.PolicyConstant && c.ConstantSize < 1 {
		return errors.Newf("constant size policy requires a positive size, got %d", c.ConstantSize)
	}
	if c.Mode != AcquisitionBulk && c.Mode != AcquisitionDiscrete {
		return errors.Newf("unknown acquisition mode %q; valid: bulk, discrete", c.Mode)
	}
	if c.Teardown != TeardownLeave && c.Teardown != TeardownRelease {
		return errors.Newf("unknown teardown policy %q; valid: leave, release", c.Teardown)
	}
	if c.PageBits < 0 || c.PageBits > 40 {
		return errors.Newf("page bits must be in [0, 40], got %d", c.PageBits)
	}
	if c.PoolBits < c.PageBits || c.PoolBits > 62 {
		return errors.Newf("pool bits must be in [page bits (%d), 62], got %d", c.PageBits, c.PoolBits)
	}
	if !trace.IsValidTraceLevel(string(c.TraceLevel)) {
		return errors.Newf("unknown trace level %q", c.TraceLevel)
	}
	return nil
}
