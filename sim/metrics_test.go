package sim

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_DoneLine_Format(t *testing.T) {
	m := NewMetrics()
	m.TotalUnits = 12345
	m.Iteration = 80001
	assert.Equal(t, "[DONE]: total 12345 iteration 80001", m.DoneLine())
}

func TestMetrics_Print_Summary(t *testing.T) {
	// GIVEN metrics of an aborted run
	m := NewMetrics()
	m.TotalUnits = 7
	m.Acquires = 3
	m.SizeClassCounts[12] = 2
	m.SizeClassCounts[14] = 1

	// WHEN printed
	var buf bytes.Buffer
	m.Print(&buf)

	// THEN status and size class breakdown appear, smallest class first
	out := buf.String()
	assert.Contains(t, out, "Replay Metrics")
	assert.Contains(t, out, "aborted")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("2^12")), bytes.Index(buf.Bytes(), []byte("2^14")))
}

func TestMetrics_WriteJSON_RoundTrips(t *testing.T) {
	// GIVEN completed-run metrics
	m := NewMetrics()
	m.TotalUnits = 42
	m.Iteration = 11
	m.Completed = true
	m.PeakLedgerLen = 5
	m.SizeClassCounts[13] = 4
	path := filepath.Join(t.TempDir(), "stats.json")

	// WHEN written with an allocator section
	err := m.WriteJSON(path, func(w *jwriter.Writer) {
		obj := w.Object()
		obj.Name("Splits").Int(3)
		obj.End()
	})
	require.NoError(t, err)

	// THEN the file is valid JSON carrying every section
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, 42, decoded["TotalUnits"])
	assert.Equal(t, true, decoded["Completed"])
	assert.EqualValues(t, 5, decoded["PeakLedgerLen"])
	assert.Equal(t, map[string]any{"13": float64(4)}, decoded["SizeClasses"])
	assert.Equal(t, map[string]any{"Splits": float64(3)}, decoded["Allocator"])
}

func TestMetrics_WriteJSON_BadPath(t *testing.T) {
	m := NewMetrics()
	err := m.WriteJSON(filepath.Join(t.TempDir(), "missing", "stats.json"), nil)
	assert.Error(t, err)
}
