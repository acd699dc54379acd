package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/buddy"
	"github.com/allocsim/allocsim/sim/trace"
	"github.com/allocsim/allocsim/sim/workload"
)

var (
	// CLI flags for the replay workload
	seed            int64  // Seed for the size stream; the expiry stream is derived from it
	iterations      int64  // Number of simulated steps
	retentionWindow int64  // Exclusive upper bound of the expiry delay
	sizePolicy      string // Size policy name or alias
	constantSize    int64  // Unit count drawn by the constant policy
	logLevel        string // Log verbosity level

	// CLI flags for the backing allocator
	acquisitionMode string // bulk or discrete
	pageBits        int    // log2 of the minimum unit in bytes
	poolBits        int    // log2 of the pool in bytes
	unitSize        int64  // minimum unit in bytes; overrides page-bits when set
	teardown        string // leave or release

	// Output and preset flags
	traceLevel       string // none or events
	statsJSONPath    string // optional JSON stats dump
	printSummary     bool   // print the human summary after the [DONE] line
	workloadSpecPath string // YAML workload spec
	profileName      string // preset from defaults.yaml
	defaultsFilePath string // path to defaults.yaml
	logFilePath      string // rotated log file; stderr when empty
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "allocsim",
	Short: "Workload-replay simulator for object allocators",
}

// runCmd executes a replay using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay the synthetic allocation workload against the buddy allocator",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
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

		startTime := time.Now()
		res, runErr := runReplay(cfg, os.Stdout)
		logrus.Infof("Replay took %v", time.Since(startTime))

		if runErr != nil {
			logrus.Errorf("Replay aborted: %v", runErr)
			os.Exit(1)
		}
		if res.Trace != nil {
			summary := trace.Summarize(res.Trace)
			logrus.Infof("Trace: %d acquires, %d retires, mean lifetime %.2f steps, max %d",
				summary.TotalAcquires, summary.TotalRetires, summary.MeanLifetime, summary.MaxLifetime)
		}
	},
}

// resolveConfig merges, lowest precedence first: flag defaults, the
// --profile preset, the --workload-spec file, and flags set explicitly.
func resolveConfig(cmd *cobra.Command) (sim.SimConfig, error) {
	cfg := sim.SimConfig{
		Seed:            seed,
		Iterations:      iterations,
		RetentionWindow: retentionWindow,
		SizePolicy:      sizePolicy,
		ConstantSize:    constantSize,
		Mode:            sim.AcquisitionMode(acquisitionMode),
		PageBits:        pageBits,
		PoolBits:        poolBits,
		Teardown:        sim.TeardownPolicy(teardown),
		TraceLevel:      trace.TraceLevel(traceLevel),
	}

	if profileName != "" {
		p, err := GetProfile(profileName, defaultsFilePath)
		if err != nil {
			return cfg, err
		}
		applySpec(cmd, &cfg, p)
		logrus.Infof("Applied profile %q from %s", profileName, defaultsFilePath)
	}

	if workloadSpecPath != "" {
		spec, err := workload.LoadWorkloadSpec(workloadSpecPath)
		if err != nil {
			return cfg, err
		}
		if err := spec.Validate(); err != nil {
			return cfg, errors.Wrapf(err, "workload spec %s", workloadSpecPath)
		}
		applySpec(cmd, &cfg, spec)
		logrus.Infof("Applied workload spec %s", workloadSpecPath)
	}

	if cmd.Flags().Changed("unit-size") {
		if err := buddy.CheckPow2(unitSize, "--unit-size"); err != nil {
			return cfg, err
		}
		if cmd.Flags().Changed("page-bits") && buddy.Log2(unitSize) != pageBits {
			return cfg, errors.Newf("--unit-size %d disagrees with --page-bits %d", unitSize, pageBits)
		}
		cfg.PageBits = buddy.Log2(unitSize)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applySpec copies every field spec sets into cfg, unless the matching flag
// was given explicitly on the command line.
func applySpec(cmd *cobra.Command, cfg *sim.SimConfig, spec *workload.WorkloadSpec) {
	unset := func(flag string) bool { return !cmd.Flags().Changed(flag) }

	if spec.Seed != nil && unset("seed") {
		cfg.Seed = *spec.Seed
	}
	if spec.Iterations > 0 && unset("iterations") {
		cfg.Iterations = spec.Iterations
	}
	if spec.RetentionWindow > 0 && unset("retention-window") {
		cfg.RetentionWindow = spec.RetentionWindow
	}
	if spec.SizePolicy != "" && unset("size-policy") {
		cfg.SizePolicy = spec.SizePolicy
	}
	if spec.ConstantSize > 0 && unset("constant-size") {
		cfg.ConstantSize = spec.ConstantSize
	}
	if spec.AcquisitionMode != "" && unset("mode") {
		cfg.Mode = sim.AcquisitionMode(spec.AcquisitionMode)
	}
	if spec.PageBits != nil && unset("page-bits") && unset("unit-size") {
		cfg.PageBits = *spec.PageBits
	}
	if spec.PoolBits > 0 && unset("pool-bits") {
		cfg.PoolBits = spec.PoolBits
	}
	if spec.Teardown != "" && unset("teardown") {
		cfg.Teardown = sim.TeardownPolicy(spec.Teardown)
	}
}

// runReplay runs cfg against a fresh buddy allocator and writes the [DONE]
// line to out. The line is written on success and on allocator failure.
func runReplay(cfg sim.SimConfig, out io.Writer) (*sim.Result, error) {
	alloc := sim.NewObjectAllocator(cfg)
	res, err := sim.NewSimulator(cfg, alloc).Run()
	fmt.Fprintln(out, res.Metrics.DoneLine())

	if printSummary {
		res.Metrics.Print(out)
	}
	inspect, _ := alloc.(inspectableAllocator)
	if statsJSONPath != "" {
		var extra func(*jwriter.Writer)
		if inspect != nil {
			extra = inspect.BuildStatsString
		}
		if werr := res.Metrics.WriteJSON(statsJSONPath, extra); werr != nil {
			logrus.Errorf("Failed to write stats: %v", werr)
		} else {
			logrus.Infof("Stats written to %s", statsJSONPath)
		}
	}
	if inspect != nil {
		if verr := inspect.Validate(); verr != nil {
			logrus.Errorf("Allocator bookkeeping inconsistent after replay: %v", verr)
		}
	}
	return res, err
}

// inspectableAllocator is implemented by allocators that can dump their
// statistics and check their own bookkeeping, such as *buddy.Allocator.
type inspectableAllocator interface {
	BuildStatsString(w *jwriter.Writer)
	Validate() error
}

var _ inspectableAllocator = (*buddy.Allocator)(nil)

// configureLogOutput redirects logrus to a rotating file when --log-file is set.
func configureLogOutput() {
	if logFilePath == "" {
		return
	}
	logrus.SetOutput(&lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    64, // megabytes
		MaxBackups: 3,
	})
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	registerRunFlags(runCmd)

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}

// registerRunFlags binds the run flags to cmd, resetting every flag variable
// to its default.
func registerRunFlags(cmd *cobra.Command) {
	registerReplayFlags(cmd)
	cmd.Flags().StringVar(&statsJSONPath, "stats-json", "", "Write run and allocator statistics as JSON to this path")
	cmd.Flags().BoolVar(&printSummary, "summary", false, "Print a metrics summary after the [DONE] line")
}

// registerReplayFlags binds the flags shared by every replaying command.
func registerReplayFlags(cmd *cobra.Command) {
	def := sim.DefaultConfig()

	cmd.Flags().Int64Var(&seed, "seed", def.Seed, "Seed for random size and expiry generation")
	cmd.Flags().Int64Var(&iterations, "iterations", def.Iterations, "Number of simulated steps")
	cmd.Flags().Int64Var(&retentionWindow, "retention-window", def.RetentionWindow, "Exclusive upper bound of the expiry delay in steps")
	cmd.Flags().StringVar(&sizePolicy, "size-policy", def.SizePolicy, "Size policy (uniform|pow2|pow2-skewed|constant, or A|B|C)")
	cmd.Flags().Int64Var(&constantSize, "constant-size", def.ConstantSize, "Unit count for the constant size policy")
	cmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.Flags().StringVar(&logFilePath, "log-file", "", "Write logs to this file with size-based rotation instead of stderr")

	// Backing allocator configs
	cmd.Flags().StringVar(&acquisitionMode, "mode", string(def.Mode), "Acquisition mode (bulk, discrete)")
	cmd.Flags().IntVar(&pageBits, "page-bits", def.PageBits, "log2 of the minimum allocation unit in bytes")
	cmd.Flags().IntVar(&poolBits, "pool-bits", def.PoolBits, "log2 of the backing pool size in bytes")
	cmd.Flags().Int64Var(&unitSize, "unit-size", int64(1)<<def.PageBits, "Minimum allocation unit in bytes (power of two); overrides --page-bits")
	cmd.Flags().StringVar(&teardown, "teardown", string(def.Teardown), "Outstanding records at the end of the run (leave, release)")

	// Output and presets
	cmd.Flags().StringVar(&traceLevel, "trace-level", string(def.TraceLevel), "Event trace level (none, events)")
	cmd.Flags().StringVar(&workloadSpecPath, "workload-spec", "", "Path to a YAML or TOML workload spec")
	cmd.Flags().StringVar(&profileName, "profile", "", "Named preset from the defaults file")
	cmd.Flags().StringVar(&defaultsFilePath, "defaults-filepath", "defaults.yaml", "Path to the defaults file")
}
