package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/allocsim/allocsim/sim"
)

var (
	sweepSeeds   int64 // number of consecutive seeds to replay
	sweepWorkers int   // pool size
)

// SweepOutcome is the result of one seed in a sweep.
type SweepOutcome struct {
	Seed    int64
	Metrics *sim.Metrics
	Err     error
}

// sweepCmd replays the configured workload once per seed. Every replay owns
// its own simulator and allocator; only independent runs execute in parallel.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Replay the workload for a range of seeds in parallel",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		configureLogOutput()

		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		outcomes, err := runSweep(cfg, sweepSeeds, sweepWorkers)
		if err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		if failed := printSweep(os.Stdout, outcomes); failed > 0 {
			logrus.Errorf("%d of %d seeds aborted", failed, len(outcomes))
			os.Exit(1)
		}
	},
}

// runSweep replays cfg for seeds cfg.Seed .. cfg.Seed+count-1 on a pool of
// workers. Outcomes are returned in seed order regardless of completion order.
func runSweep(cfg sim.SimConfig, count int64, workers int) ([]SweepOutcome, error) {
	if count < 1 {
		return nil, errors.Newf("--seeds must be >= 1, got %d", count)
	}
	if workers < 1 {
		return nil, errors.Newf("--workers must be >= 1, got %d", workers)
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v interface{}) {
		logrus.Errorf("sweep worker panicked: %v", v)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "creating worker pool")
	}
	defer pool.Release()
	return sweepOnPool(pool, cfg, count)
}

// sweepOnPool submits one replay per seed to pool and waits for every
// submitted replay before returning, including when a submission fails.
func sweepOnPool(pool *ants.Pool, cfg sim.SimConfig, count int64) ([]SweepOutcome, error) {
	outcomes := make([]SweepOutcome, count)
	var wg sync.WaitGroup
	for i := int64(0); i < count; i++ {
		idx := i
		runCfg := cfg
		runCfg.Seed = cfg.Seed + idx
		runCfg.TraceLevel = ""
		outcomes[idx] = SweepOutcome{Seed: runCfg.Seed, Err: errors.New("replay did not run")}

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			res, err := sim.NewSimulator(runCfg, sim.NewObjectAllocator(runCfg)).Run()
			outcomes[idx] = SweepOutcome{Seed: runCfg.Seed, Metrics: res.Metrics, Err: err}
		}); err != nil {
			wg.Done()
			wg.Wait()
			return outcomes, errors.Wrapf(err, "submitting seed %d", runCfg.Seed)
		}
	}
	wg.Wait()
	return outcomes, nil
}

// printSweep writes one [DONE] line per seed and returns the number of
// aborted replays.
func printSweep(out io.Writer, outcomes []SweepOutcome) int {
	failed := 0
	for _, o := range outcomes {
		if o.Metrics == nil {
			fmt.Fprintf(out, "seed %d: %v\n", o.Seed, o.Err)
			failed++
			continue
		}
		fmt.Fprintf(out, "seed %d: %s\n", o.Seed, o.Metrics.DoneLine())
		if o.Err != nil {
			logrus.Warnf("seed %d aborted: %v", o.Seed, o.Err)
			failed++
		}
	}
	return failed
}

func init() {
	registerReplayFlags(sweepCmd)
	sweepCmd.Flags().Int64Var(&sweepSeeds, "seeds", 8, "Number of consecutive seeds to replay, starting at --seed")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 4, "Number of replays executing at once")

	rootCmd.AddCommand(sweepCmd)
}
