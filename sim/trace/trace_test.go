package trace

import (
	"testing"
)

func TestSimulationTrace_RecordAcquire_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for events
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})

	// WHEN an acquire record is recorded
	st.RecordAcquire(AcquireRecord{Step: 1, Units: 4, SizeClass: 14, Expiry: 9})

	// THEN the trace contains one acquire record with correct data
	if len(st.Acquires) != 1 {
		t.Fatalf("expected 1 acquire, got %d", len(st.Acquires))
	}
	if st.Acquires[0].SizeClass != 14 {
		t.Errorf("expected size class 14, got %d", st.Acquires[0].SizeClass)
	}
}

func TestSimulationTrace_RecordRetire_PreservesOrder(t *testing.T) {
	// GIVEN a trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})

	// WHEN multiple retirements are added
	st.RecordRetire(RetireRecord{Step: 5, CreationStep: 1, Units: 1})
	st.RecordRetire(RetireRecord{Step: 6, CreationStep: 3, Units: 2})

	// THEN insertion order is preserved
	if len(st.Retires) != 2 {
		t.Fatalf("expected 2 retires, got %d", len(st.Retires))
	}
	if st.Retires[0].Step != 5 || st.Retires[1].Step != 6 {
		t.Error("retire records out of order")
	}
	if st.Retires[1].Lifetime() != 3 {
		t.Errorf("expected lifetime 3, got %d", st.Retires[1].Lifetime())
	}
}

func TestSimulationTrace_Enabled(t *testing.T) {
	var nilTrace *SimulationTrace
	if nilTrace.Enabled() {
		t.Error("nil trace must not be enabled")
	}
	if NewSimulationTrace(TraceConfig{Level: TraceLevelNone}).Enabled() {
		t.Error("none level must not be enabled")
	}
	if !NewSimulationTrace(TraceConfig{Level: TraceLevelEvents}).Enabled() {
		t.Error("events level must be enabled")
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"", true},
		{"none", true},
		{"events", true},
		{"decisions", false},
		{"EVENTS", false},
	}
	for _, tc := range tests {
		if got := IsValidTraceLevel(tc.level); got != tc.want {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tc.level, got, tc.want)
		}
	}
}
