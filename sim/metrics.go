// Tracks run-wide totals of a replay: units processed, records retired,
// ledger high-water marks and the [DONE] reporting line.

package sim

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Metrics aggregates statistics about a replay run for final reporting.
type Metrics struct {
	TotalUnits     int64 // units requested by every successful iteration
	Iteration      int64 // index printed on the [DONE] line
	Completed      bool  // false when the run aborted on an allocator failure
	RetiredRecords int64 // records released by retirement scans
	RetiredUnits   int64 // units of those records (informational)
	Acquires       int64 // successful request acquisitions
	Releases       int64 // successful lease releases, teardown included

	PeakOutstandingUnits int64 // max units held by the ledger at once
	PeakLedgerLen        int   // max outstanding records at once

	TeardownRecords int64 // records released by the teardown pass
	TeardownUnits   int64
	LeftOutstanding int   // records still held when the run ended

	SizeClassCounts map[int]int64 // size class → acquisitions
}

// NewMetrics returns empty metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SizeClassCounts: make(map[int]int64),
	}
}

// DoneLine renders the run summary line. On failure TotalUnits excludes the
// in-flight request and Iteration is the last successful index; on completion
// Iteration is one past the final iteration.
func (m *Metrics) DoneLine() string {
	return fmt.Sprintf("[DONE]: total %d iteration %d", m.TotalUnits, m.Iteration)
}

// Print writes a human summary of the run to w.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Replay Metrics ===")
	if m.Completed {
		fmt.Fprintln(w, "Status               : completed")
	} else {
		fmt.Fprintln(w, "Status               : aborted")
	}
	fmt.Fprintf(w, "Total Units          : %d\n", m.TotalUnits)
	fmt.Fprintf(w, "Acquisitions         : %d\n", m.Acquires)
	fmt.Fprintf(w, "Releases             : %d\n", m.Releases)
	fmt.Fprintf(w, "Retired Records      : %d (%d units)\n", m.RetiredRecords, m.RetiredUnits)
	fmt.Fprintf(w, "Peak Outstanding     : %d units, %d records\n", m.PeakOutstandingUnits, m.PeakLedgerLen)
	if m.TeardownRecords > 0 {
		fmt.Fprintf(w, "Teardown Released    : %d records (%d units)\n", m.TeardownRecords, m.TeardownUnits)
	}
	fmt.Fprintf(w, "Left Outstanding     : %d records\n", m.LeftOutstanding)
	for _, sc := range m.sortedSizeClasses() {
		fmt.Fprintf(w, "  size class 2^%-2d    : %d\n", sc, m.SizeClassCounts[sc])
	}
}

// WriteJSON writes the metrics as a single JSON object. extra, when non-nil,
// is called to append allocator statistics under the "Allocator" key.
func (m *Metrics) WriteJSON(path string, extra func(*jwriter.Writer)) error {
	w := jwriter.NewWriter()
	m.buildJSON(&w, extra)
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "encoding metrics")
	}
	if err := os.WriteFile(path, w.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "writing metrics to %s", path)
	}
	return nil
}

func (m *Metrics) buildJSON(w *jwriter.Writer, extra func(*jwriter.Writer)) {
	obj := w.Object()
	defer obj.End()

	obj.Name("TotalUnits").Int(int(m.TotalUnits))
	obj.Name("Iteration").Int(int(m.Iteration))
	obj.Name("Completed").Bool(m.Completed)
	obj.Name("Acquires").Int(int(m.Acquires))
	obj.Name("Releases").Int(int(m.Releases))
	obj.Name("RetiredRecords").Int(int(m.RetiredRecords))
	obj.Name("RetiredUnits").Int(int(m.RetiredUnits))
	obj.Name("PeakOutstandingUnits").Int(int(m.PeakOutstandingUnits))
	obj.Name("PeakLedgerLen").Int(m.PeakLedgerLen)
	obj.Name("TeardownRecords").Int(int(m.TeardownRecords))
	obj.Name("TeardownUnits").Int(int(m.TeardownUnits))
	obj.Name("LeftOutstanding").Int(m.LeftOutstanding)

	classes := obj.Name("SizeClasses").Object()
	for _, sc := range m.sortedSizeClasses() {
		classes.Name(fmt.Sprintf("%d", sc)).Int(int(m.SizeClassCounts[sc]))
	}
	classes.End()

	if extra != nil {
		extra(obj.Name("Allocator"))
	}
}

func (m *Metrics) sortedSizeClasses() []int {
	keys := make([]int, 0, len(m.SizeClassCounts))
	for sc := range m.SizeClassCounts {
		keys = append(keys, sc)
	}
	sort.Ints(keys)
	return keys
}
