package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/buddy"
	"github.com/allocsim/allocsim/sim/workload"
)

// newTestRunCmd returns a run command with freshly registered flags, so no
// Changed state or flag value leaks between tests.
func newTestRunCmd(t *testing.T, args map[string]string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "run"}
	registerRunFlags(c)
	for name, value := range args {
		require.NoError(t, c.Flags().Set(name, value), "setting --%s", name)
	}
	return c
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveConfig_FlagDefaultsMatchReferenceConfig(t *testing.T) {
	cfg, err := resolveConfig(newTestRunCmd(t, nil))
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultConfig(), cfg)
}

func TestResolveConfig_ProfileFillsOnlyUnsetFlags(t *testing.T) {
	// GIVEN a profile that sets iterations and policy
	defaults := writeFile(t, "defaults.yaml", `
version: "1"
profiles:
  small:
    iterations: 500
    size_policy: C
    teardown: release
`)
	// WHEN --iterations is also given explicitly
	c := newTestRunCmd(t, map[string]string{
		"profile":           "small",
		"defaults-filepath": defaults,
		"iterations":        "20",
	})
	cfg, err := resolveConfig(c)
	require.NoError(t, err)

	// THEN the explicit flag wins and the profile fills the rest
	assert.Equal(t, int64(20), cfg.Iterations)
	assert.Equal(t, "C", cfg.SizePolicy)
	assert.Equal(t, sim.TeardownRelease, cfg.Teardown)
}

func TestResolveConfig_WorkloadSpecOverridesProfile(t *testing.T) {
	defaults := writeFile(t, "defaults.yaml", `
profiles:
  base:
    retention_window: 10
    acquisition_mode: bulk
`)
	spec := writeFile(t, "spec.yaml", `
version: "1"
seed: 9
retention_window: 20
acquisition_mode: discrete
`)
	cfg, err := resolveConfig(newTestRunCmd(t, map[string]string{
		"profile":           "base",
		"defaults-filepath": defaults,
		"workload-spec":     spec,
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(20), cfg.RetentionWindow)
	assert.Equal(t, sim.AcquisitionDiscrete, cfg.Mode)
	assert.Equal(t, int64(9), cfg.Seed)
}

func TestResolveConfig_UnknownProfile(t *testing.T) {
	defaults := writeFile(t, "defaults.yaml", "profiles:\n  a:\n    iterations: 1\n")
	_, err := resolveConfig(newTestRunCmd(t, map[string]string{
		"profile":           "b",
		"defaults-filepath": defaults,
	}))
	assert.ErrorContains(t, err, `unknown profile "b"`)
}

func TestResolveConfig_InvalidWorkloadSpec(t *testing.T) {
	spec := writeFile(t, "spec.yaml", "teardown: free\n")
	_, err := resolveConfig(newTestRunCmd(t, map[string]string{"workload-spec": spec}))
	assert.Error(t, err)
}

func TestResolveConfig_UnitSize(t *testing.T) {
	// GIVEN an 8 KiB unit
	cfg, err := resolveConfig(newTestRunCmd(t, map[string]string{"unit-size": "8192"}))

	// THEN page bits follow the unit size
	require.NoError(t, err)
	assert.Equal(t, 13, cfg.PageBits)

	// AND a non power of two is rejected
	_, err = resolveConfig(newTestRunCmd(t, map[string]string{"unit-size": "3000"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, buddy.ErrNotPowerOfTwo))

	// AND disagreeing with an explicit --page-bits is rejected
	_, err = resolveConfig(newTestRunCmd(t, map[string]string{"unit-size": "8192", "page-bits": "12"}))
	assert.Error(t, err)
}

func TestResolveConfig_WorkloadSpecPageBitsZero(t *testing.T) {
	// GIVEN a spec asking for a 1-byte unit
	spec := writeFile(t, "spec.yaml", "page_bits: 0\npool_bits: 16\n")

	// WHEN no page-bits flag is given
	cfg, err := resolveConfig(newTestRunCmd(t, map[string]string{"workload-spec": spec}))

	// THEN the zero is applied rather than treated as unset
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.PageBits)
	assert.Equal(t, 16, cfg.PoolBits)
}

func TestResolveConfig_InvalidFlagValues(t *testing.T) {
	for flag, value := range map[string]string{
		"retention-window": "1",
		"iterations":       "0",
		"size-policy":      "D",
		"mode":             "scatter",
		"teardown":         "free",
		"trace-level":      "decisions",
	} {
		_, err := resolveConfig(newTestRunCmd(t, map[string]string{flag: value}))
		assert.Error(t, err, "--%s=%s", flag, value)
	}
}

func TestRunReplay_PrintsDoneLine(t *testing.T) {
	// GIVEN a short run
	newTestRunCmd(t, nil)
	cfg := sim.DefaultConfig()
	cfg.Iterations = 50

	// WHEN replayed
	var out bytes.Buffer
	res, err := runReplay(cfg, &out)

	// THEN the completion line reports iterations + 1
	require.NoError(t, err)
	assert.Equal(t, res.Metrics.DoneLine()+"\n", out.String())
	assert.Contains(t, out.String(), "iteration 51")
}

func TestRunReplay_ExhaustionStillPrintsPartialTotals(t *testing.T) {
	newTestRunCmd(t, nil)
	cfg := sim.DefaultConfig()
	cfg.Iterations = 10
	cfg.SizePolicy = workload.PolicyConstant
	cfg.ConstantSize = 2
	cfg.PoolBits = cfg.PageBits + 1

	var out bytes.Buffer
	_, err := runReplay(cfg, &out)

	require.Error(t, err)
	assert.True(t, errors.Is(err, sim.ErrExhausted))
	assert.Equal(t, "[DONE]: total 2 iteration 1\n", out.String())
}

func TestRunReplay_WritesStatsJSONAndSummary(t *testing.T) {
	// GIVEN --stats-json and --summary
	path := filepath.Join(t.TempDir(), "stats.json")
	newTestRunCmd(t, map[string]string{"stats-json": path, "summary": "true"})
	cfg := sim.DefaultConfig()
	cfg.Iterations = 100

	// WHEN replayed
	var out bytes.Buffer
	_, err := runReplay(cfg, &out)
	require.NoError(t, err)

	// THEN the summary follows the [DONE] line and the stats include the allocator
	assert.Contains(t, out.String(), "Replay Metrics")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, 101, decoded["Iteration"])
	alloc, ok := decoded["Allocator"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1<<sim.DefaultPoolBits, alloc["PoolBytes"])
}
