package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalAcquires   int
	TotalRetires    int
	UnitsAcquired   int64
	UnitsRetired    int64
	MeanLifetime    float64 // over scan retirements only
	MaxLifetime     int64
	SizeClassCounts map[int]int // size class → number of acquires
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		SizeClassCounts: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalAcquires = len(st.Acquires)
	for _, a := range st.Acquires {
		summary.UnitsAcquired += a.Units
		summary.SizeClassCounts[a.SizeClass]++
	}

	summary.TotalRetires = len(st.Retires)
	var lifetimeSum int64
	scanned := 0
	for _, r := range st.Retires {
		summary.UnitsRetired += r.Units
		if r.Step == 0 {
			continue
		}
		lt := r.Lifetime()
		lifetimeSum += lt
		scanned++
		if lt > summary.MaxLifetime {
			summary.MaxLifetime = lt
		}
	}
	if scanned > 0 {
		summary.MeanLifetime = float64(lifetimeSum) / float64(scanned)
	}

	return summary
}
