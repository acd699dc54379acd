package workload

import (
	"math/rand"

	"github.com/cockroachdb/errors"
)

// DefaultRetentionWindow is the reference upper bound on allocation lifetime.
const DefaultRetentionWindow = 80

// DelaySampler produces the number of steps a new allocation lives before it
// becomes eligible for release.
type DelaySampler struct {
	bound int64
}

// NewDelaySampler creates a sampler drawing from [1, bound).
// bound must be >= 2, otherwise the domain is empty.
func NewDelaySampler(bound int64) (*DelaySampler, error) {
	if bound < 2 {
		return nil, errors.Newf("retention window must be >= 2, got %d", bound)
	}
	return &DelaySampler{bound: bound}, nil
}

// Sample returns a delay in [1, bound). Zero draws are re-sampled.
func (d *DelaySampler) Sample(rng *rand.Rand) int64 {
	return nonZero(rng, d.bound)
}

// Bound returns the exclusive upper bound of the delay domain.
func (d *DelaySampler) Bound() int64 {
	return d.bound
}

// ExpiryFor returns the step at which an allocation created at step expires.
func (d *DelaySampler) ExpiryFor(rng *rand.Rand, step int64) int64 {
	return step + d.Sample(rng)
}
