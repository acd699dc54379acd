package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ReferenceWorkload(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(80000), cfg.Iterations)
	assert.Equal(t, int64(80), cfg.RetentionWindow)
	assert.Equal(t, "pow2", cfg.SizePolicy)
	assert.Equal(t, AcquisitionBulk, cfg.Mode)
	assert.Equal(t, 12, cfg.PageBits)
	assert.Equal(t, TeardownLeave, cfg.Teardown)
}

func TestSimConfig_Validate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimConfig)
	}{
		{"zero iterations", func(c *SimConfig) { c.Iterations = 0 }},
		{"window below 2", func(c *SimConfig) { c.RetentionWindow = 1 }},
		{"unknown policy", func(c *SimConfig) { c.SizePolicy = "D" }},
		{"unknown mode", func(c *SimConfig) { c.Mode = "scatter" }},
		{"unknown teardown", func(c *SimConfig) { c.Teardown = "free" }},
		{"negative page bits", func(c *SimConfig) { c.PageBits = -1 }},
		{"pool smaller than page", func(c *SimConfig) { c.PoolBits = c.PageBits - 1 }},
		{"unknown trace level", func(c *SimConfig) { c.TraceLevel = "decisions" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSimConfig_Validate_AcceptsAliases(t *testing.T) {
	for _, alias := range []string{"A", "B", "C", "uniform", "pow2-skewed", "constant"} {
		cfg := DefaultConfig()
		cfg.SizePolicy = alias
		assert.NoError(t, cfg.Validate(), alias)
	}
}

func TestNewObjectAllocator_UsesRegisteredFactory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageBits, cfg.PoolBits = 10, 20
	alloc := NewObjectAllocator(cfg)
	assert.Equal(t, 10, alloc.PageBits())
}
