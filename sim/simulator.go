package sim

import (
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/allocsim/allocsim/sim/trace"
	"github.com/allocsim/allocsim/sim/workload"
)

// Result is what a run hands back to its caller. Metrics is always populated,
// including when Run returns an error.
type Result struct {
	Metrics *Metrics
	Trace   *trace.SimulationTrace // nil unless tracing is enabled
}

// Simulator is the replay driver. It owns the ledger and is the only user of
// the backing allocator for the duration of a run.
//
// Thread-safety: NOT thread-safe. Run executes one sequential loop.
type Simulator struct {
	Config   SimConfig
	Ledger   *Ledger
	Metrics  *Metrics
	Trace    *trace.SimulationTrace
	acquirer Acquirer
	pageBits int

	sizes     workload.SizePolicy
	delays    *workload.DelaySampler
	sizeRNG   *rand.Rand
	expiryRNG *rand.Rand
}

// NewSimulator creates a Simulator replaying cfg against alloc.
// Panics on an invalid config or a nil allocator; callers that take user
// input should call cfg.Validate first.
func NewSimulator(cfg SimConfig, alloc ObjectAllocator) *Simulator {
	if err := cfg.Validate(); err != nil {
		panic(errors.Wrap(err, "NewSimulator: invalid config"))
	}
	if alloc == nil {
		panic("NewSimulator: object allocator must not be nil")
	}
	acquirer, err := NewAcquirer(cfg.Mode, alloc)
	if err != nil {
		panic(errors.Wrap(err, "NewSimulator"))
	}
	sizes, err := workload.NewSizePolicy(cfg.SizePolicy, cfg.ConstantSize)
	if err != nil {
		panic(errors.Wrap(err, "NewSimulator"))
	}
	delays, err := workload.NewDelaySampler(cfg.RetentionWindow)
	if err != nil {
		panic(errors.Wrap(err, "NewSimulator"))
	}

	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	s := &Simulator{
		Config:    cfg,
		Ledger:    NewLedger(),
		Metrics:   NewMetrics(),
		acquirer:  acquirer,
		pageBits:  alloc.PageBits(),
		sizes:     sizes,
		delays:    delays,
		sizeRNG:   rng.ForSubsystem(SubsystemSize),
		expiryRNG: rng.ForSubsystem(SubsystemExpiry),
	}
	if cfg.TraceLevel == trace.TraceLevelEvents {
		s.Trace = trace.NewSimulationTrace(trace.TraceConfig{Level: cfg.TraceLevel})
	}
	return s
}

// Run replays Config.Iterations steps. Any allocator failure aborts the run:
// the returned error wraps ErrExhausted or ErrInvalidHandle and the Result
// carries the totals of the iterations that completed before it.
func (s *Simulator) Run() (*Result, error) {
	logrus.Infof("Replaying %d iterations: policy=%s mode=%s window=%d seed=%d",
		s.Config.Iterations, s.sizes.Name(), s.acquirer.Mode(), s.delays.Bound(), s.Config.Seed)

	for i := int64(1); i <= s.Config.Iterations; i++ {
		if err := s.Step(i); err != nil {
			s.Metrics.Iteration = i - 1
			s.Metrics.LeftOutstanding = s.Ledger.Len()
			logrus.Errorf("[step %07d] aborting: %v", i, err)
			return s.result(), errors.Wrapf(err, "iteration %d", i)
		}
	}

	if err := s.teardown(); err != nil {
		s.Metrics.Iteration = s.Config.Iterations
		s.Metrics.LeftOutstanding = s.Ledger.Len()
		return s.result(), err
	}

	s.Metrics.Completed = true
	s.Metrics.Iteration = s.Config.Iterations + 1
	s.Metrics.LeftOutstanding = s.Ledger.Len()
	logrus.Infof("Replay finished: %d units over %d iterations", s.Metrics.TotalUnits, s.Config.Iterations)
	return s.result(), nil
}

// Step executes iteration i: draw, acquire, append, retire, accumulate.
// The grand total only grows once every stage of the iteration succeeded.
func (s *Simulator) Step(i int64) error {
	units := s.sizes.Sample(s.sizeRNG)
	expiry := s.delays.ExpiryFor(s.expiryRNG, i)
	sizeClass := SizeClassFor(units, s.pageBits)

	lease, err := s.acquirer.Acquire(sizeClass, units)
	if err != nil {
		return err
	}
	s.Metrics.Acquires++
	s.Metrics.SizeClassCounts[sizeClass]++

	rec := AllocationRecord{
		CreationStep: i,
		ExpiryTime:   expiry,
		UnitCount:    units,
		SizeClass:    sizeClass,
		Lease:        lease,
	}
	if err := s.Ledger.Append(rec); err != nil {
		return err
	}
	if s.Trace.Enabled() {
		s.Trace.RecordAcquire(trace.AcquireRecord{Step: i, Units: units, SizeClass: sizeClass, Expiry: expiry})
	}
	s.observePeaks()

	retired, err := s.Ledger.RetireExpired(i, func(r AllocationRecord) error {
		return s.release(i, r)
	})
	s.Metrics.RetiredRecords += int64(retired.Records)
	s.Metrics.RetiredUnits += retired.Units
	if err != nil {
		return err
	}
	if retired.Records > 0 {
		logrus.Debugf("[step %07d] retired %d records (%d units), %d outstanding",
			i, retired.Records, retired.Units, s.Ledger.Len())
	}

	s.Metrics.TotalUnits += units
	return nil
}

func (s *Simulator) release(step int64, r AllocationRecord) error {
	if err := s.acquirer.Release(r.Lease); err != nil {
		return err
	}
	s.Metrics.Releases++
	if s.Trace.Enabled() {
		s.Trace.RecordRetire(trace.RetireRecord{Step: step, CreationStep: r.CreationStep, Units: r.UnitCount})
	}
	return nil
}

// teardown applies the configured policy to records that outlived the run.
func (s *Simulator) teardown() error {
	if s.Ledger.Len() == 0 {
		return nil
	}
	switch s.Config.Teardown {
	case TeardownRelease:
		drained, err := s.Ledger.Drain(func(r AllocationRecord) error {
			return s.release(0, r)
		})
		s.Metrics.TeardownRecords += int64(drained.Records)
		s.Metrics.TeardownUnits += drained.Units
		if err != nil {
			return errors.Wrap(err, "teardown")
		}
		logrus.Infof("Teardown released %d records (%d units)", drained.Records, drained.Units)
	default:
		logrus.Warnf("Teardown left %d records (%d units) outstanding", s.Ledger.Len(), s.Ledger.OutstandingUnits())
	}
	return nil
}

func (s *Simulator) observePeaks() {
	if n := s.Ledger.Len(); n > s.Metrics.PeakLedgerLen {
		s.Metrics.PeakLedgerLen = n
	}
	if u := s.Ledger.OutstandingUnits(); u > s.Metrics.PeakOutstandingUnits {
		s.Metrics.PeakOutstandingUnits = u
	}
}

func (s *Simulator) result() *Result {
	return &Result{Metrics: s.Metrics, Trace: s.Trace}
}
