package workload

import (
	"math/rand"
	"testing"
)

// scriptedSource replays a fixed Int63 sequence, then repeats the last value.
type scriptedSource struct {
	values []int64
	pos    int
}

func (s *scriptedSource) Int63() int64 {
	v := s.values[s.pos]
	if s.pos < len(s.values)-1 {
		s.pos++
	}
	return v
}

func (s *scriptedSource) Seed(int64) {}

func TestUniformSizePolicy_NeverZeroAndBelowBound(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := UniformSizePolicy{}
	for i := 0; i < 50000; i++ {
		v := p.Sample(rng)
		if v < 1 || v > 1023 {
			t.Fatalf("sample %d: %d outside [1, 1023]", i, v)
		}
	}
}

func TestUniformSizePolicy_ZeroDrawIsResampled(t *testing.T) {
	// GIVEN a source whose first draw maps to 0 and second to 5
	rng := rand.New(&scriptedSource{values: []int64{0, 1024, 5}})

	// WHEN the uniform policy samples
	got := UniformSizePolicy{}.Sample(rng)

	// THEN both zero draws are discarded rather than clamped
	if got != 5 {
		t.Errorf("Sample() = %d, want 5 after re-sampling zero draws", got)
	}
}

func TestPowerOfTwoPolicies_DrawOnlyFromClasses(t *testing.T) {
	valid := make(map[int64]bool, len(PowerOfTwoSizes))
	for _, s := range PowerOfTwoSizes {
		valid[s] = true
	}
	for _, p := range []SizePolicy{PowerOfTwoSizePolicy{}, SkewedPowerOfTwoSizePolicy{}} {
		t.Run(p.Name(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			seen := make(map[int64]int)
			for i := 0; i < 50000; i++ {
				v := p.Sample(rng)
				if !valid[v] {
					t.Fatalf("sample %d: %d is not a power-of-two class", i, v)
				}
				seen[v]++
			}
			if len(seen) != len(PowerOfTwoSizes) {
				t.Errorf("observed %d distinct classes, want %d", len(seen), len(PowerOfTwoSizes))
			}
		})
	}
}

func TestSkewedSizeForDraw_BucketBoundaries(t *testing.T) {
	tests := []struct {
		draw int
		want int64
	}{
		{1, 1024},
		{2, 512},
		{3, 256},
		{4, 256},
		{5, 128},
		{8, 128},
		{9, 64},
		{16, 64},
		{17, 32},
		{33, 16},
		{65, 8},
		{129, 4},
		{256, 4},
		{257, 2},
		{512, 2},
		{513, 1},
		{1024, 1},
	}
	for _, tt := range tests {
		if got := SkewedSizeForDraw(tt.draw); got != tt.want {
			t.Errorf("SkewedSizeForDraw(%d) = %d, want %d", tt.draw, got, tt.want)
		}
	}
}

func TestSkewedSizeForDraw_OutOfDomain_Panics(t *testing.T) {
	for _, b := range []int{0, 1025} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("SkewedSizeForDraw(%d) did not panic", b)
				}
			}()
			SkewedSizeForDraw(b)
		}()
	}
}

func TestSkewedPolicy_FavoursSmallSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := SkewedPowerOfTwoSizePolicy{}
	small, large := 0, 0
	for i := 0; i < 20000; i++ {
		switch p.Sample(rng) {
		case 1:
			small++
		case 1024:
			large++
		}
	}
	// half of the draw range lands in (512, 1024] -> size 1; only b == 1 yields 1024
	if small < 9000 || large > 100 {
		t.Errorf("skew not observed: size1=%d size1024=%d", small, large)
	}
}

func TestPolicies_DeterministicForSeed(t *testing.T) {
	for _, name := range []string{"A", "B", "C"} {
		p, err := NewSizePolicy(name, 0)
		if err != nil {
			t.Fatal(err)
		}
		r1 := rand.New(rand.NewSource(99))
		r2 := rand.New(rand.NewSource(99))
		for i := 0; i < 100; i++ {
			if a, b := p.Sample(r1), p.Sample(r2); a != b {
				t.Fatalf("policy %s draw %d diverged: %d vs %d", name, i, a, b)
			}
		}
	}
}

func TestNewSizePolicy_Aliases(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"A", PolicyUniform},
		{"b", PolicyPowerOfTwo},
		{" C ", PolicySkewed},
		{"uniform", PolicyUniform},
		{"pow2", PolicyPowerOfTwo},
		{"pow2-skewed", PolicySkewed},
	}
	for _, tt := range tests {
		p, err := NewSizePolicy(tt.name, 0)
		if err != nil {
			t.Fatalf("NewSizePolicy(%q): %v", tt.name, err)
		}
		if p.Name() != tt.want {
			t.Errorf("NewSizePolicy(%q).Name() = %q, want %q", tt.name, p.Name(), tt.want)
		}
	}
}

func TestNewSizePolicy_Errors(t *testing.T) {
	if _, err := NewSizePolicy("zipf", 0); err == nil {
		t.Error("expected error for unknown policy")
	}
	if _, err := NewSizePolicy("constant", 0); err == nil {
		t.Error("expected error for constant policy without a size")
	}
}

func TestConstantSizePolicy_ReturnsValue(t *testing.T) {
	p, err := NewSizePolicy("constant", 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if v := p.Sample(nil); v != 1 {
			t.Fatalf("Sample() = %d, want 1", v)
		}
	}
}
