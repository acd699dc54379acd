package trace

// TraceLevel controls the verbosity of event tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures every acquire and retirement.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects event records during a replay run.
type SimulationTrace struct {
	Config   TraceConfig
	Acquires []AcquireRecord
	Retires  []RetireRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Acquires: make([]AcquireRecord, 0),
		Retires:  make([]RetireRecord, 0),
	}
}

// Enabled reports whether records should be collected.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelEvents
}

// RecordAcquire appends an acquire record.
func (st *SimulationTrace) RecordAcquire(record AcquireRecord) {
	st.Acquires = append(st.Acquires, record)
}

// RecordRetire appends a retirement record.
func (st *SimulationTrace) RecordRetire(record RetireRecord) {
	st.Retires = append(st.Retires, record)
}
