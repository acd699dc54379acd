package workload

import (
	"fmt"
	"math/bits"
	"math/rand"
	"strings"

	"github.com/cockroachdb/errors"
)

// PowerOfTwoSizes are the unit counts drawn by the power-of-two policies,
// smallest first.
var PowerOfTwoSizes = [11]int64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024}

// UniformSizeBound is the exclusive upper bound of the uniform policy.
const UniformSizeBound = 1024

// Canonical policy names.
const (
	PolicyUniform    = "uniform"
	PolicyPowerOfTwo = "pow2"
	PolicySkewed     = "pow2-skewed"
	PolicyConstant   = "constant"
)

// SizePolicy generates the number of allocation units requested at a step.
type SizePolicy interface {
	// Sample returns a positive unit count (>= 1).
	Sample(rng *rand.Rand) int64
	// Name returns the canonical policy name.
	Name() string
}

// UniformSizePolicy draws uniformly from [1, 1024). A zero draw is re-sampled.
type UniformSizePolicy struct{}

func (UniformSizePolicy) Sample(rng *rand.Rand) int64 {
	return nonZero(rng, UniformSizeBound)
}

func (UniformSizePolicy) Name() string { return PolicyUniform }

// PowerOfTwoSizePolicy draws uniformly among the 11 power-of-two classes.
type PowerOfTwoSizePolicy struct{}

func (PowerOfTwoSizePolicy) Sample(rng *rand.Rand) int64 {
	return PowerOfTwoSizes[rng.Intn(len(PowerOfTwoSizes))]
}

func (PowerOfTwoSizePolicy) Name() string { return PolicyPowerOfTwo }

// SkewedPowerOfTwoSizePolicy draws b from [1, 1024] and maps it through
// SkewedSizeForDraw, so small unit counts dominate the workload.
type SkewedPowerOfTwoSizePolicy struct{}

func (SkewedPowerOfTwoSizePolicy) Sample(rng *rand.Rand) int64 {
	return SkewedSizeForDraw(rng.Intn(UniformSizeBound) + 1)
}

func (SkewedPowerOfTwoSizePolicy) Name() string { return PolicySkewed }

// SkewedSizeForDraw maps a draw b in [1, 1024] onto a power-of-two class.
// Buckets are {1}, {2}, (2,4], ..., (512,1024]; the first bucket maps to the
// largest class (1024) and the last to the smallest (1).
func SkewedSizeForDraw(b int) int64 {
	if b < 1 || b > UniformSizeBound {
		panic(fmt.Sprintf("SkewedSizeForDraw: draw must be in [1, %d], got %d", UniformSizeBound, b))
	}
	// ceil(log2(b)) is the bucket index: b=1 -> 0, b=2 -> 1, b in (2,4] -> 2, ...
	bucket := bits.Len(uint(b - 1))
	return PowerOfTwoSizes[len(PowerOfTwoSizes)-1-bucket]
}

// ConstantSizePolicy always returns the same unit count.
// Used to pin the workload in reproducibility scenarios.
type ConstantSizePolicy struct {
	value int64
}

func (s *ConstantSizePolicy) Sample(_ *rand.Rand) int64 {
	if s.value < 1 {
		return 1
	}
	return s.value
}

func (s *ConstantSizePolicy) Name() string { return PolicyConstant }

// policyAliases maps accepted spellings onto canonical names.
var policyAliases = map[string]string{
	"a": PolicyUniform, PolicyUniform: PolicyUniform,
	"b": PolicyPowerOfTwo, PolicyPowerOfTwo: PolicyPowerOfTwo,
	"c": PolicySkewed, PolicySkewed: PolicySkewed,
	PolicyConstant: PolicyConstant,
}

// CanonicalPolicyName resolves an alias (A/B/C, any case) to its canonical name.
func CanonicalPolicyName(name string) (string, bool) {
	canonical, ok := policyAliases[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// NewSizePolicy creates a SizePolicy by name. constant is only read by the
// "constant" policy and must be >= 1 there.
func NewSizePolicy(name string, constant int64) (SizePolicy, error) {
	canonical, ok := CanonicalPolicyName(name)
	if !ok {
		return nil, errors.Newf("unknown size policy %q; valid: uniform (A), pow2 (B), pow2-skewed (C), constant", name)
	}
	switch canonical {
	case PolicyUniform:
		return UniformSizePolicy{}, nil
	case PolicyPowerOfTwo:
		return PowerOfTwoSizePolicy{}, nil
	case PolicySkewed:
		return SkewedPowerOfTwoSizePolicy{}, nil
	default:
		if constant < 1 {
			return nil, errors.Newf("constant size policy requires a positive size, got %d", constant)
		}
		return &ConstantSizePolicy{value: constant}, nil
	}
}

// nonZero draws from [0, bound) until the draw is not zero.
func nonZero(rng *rand.Rand, bound int64) int64 {
	v := rng.Int63n(bound)
	for v == 0 {
		v = rng.Int63n(bound)
	}
	return v
}
