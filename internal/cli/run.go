package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/collatzlab/collatz-tester-go/internal/report"
	"github.com/collatzlab/collatz-tester-go/internal/run"
	"github.com/collatzlab/collatz-tester-go/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Tests      uint64
	Min        string
	Max        string
	Seed       int64
	BatchSize  int
	StepLimit  uint64
	DBPath     string
	ResultsLog string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Test a batch of random numbers",
		Long: `Run a testing session: draw random integers from the configured
range, skip any the store has seen before, and iterate the rest until
they reach 1. Progress is committed in batches, so an interrupted
session loses at most one batch and never retests what it finished.

Example:
  collatz run --tests 100000
  collatz run --min 1000000 --max 9000000 --seed 42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, opts)
		},
	}

	cmd.Flags().Uint64Var(&opts.Tests, "tests", 0, "numbers to test this session (default from config)")
	cmd.Flags().StringVar(&opts.Min, "min", "", "lower sampling bound, decimal (default from config)")
	cmd.Flags().StringVar(&opts.Max, "max", "", "upper sampling bound, decimal (default from config)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "PRNG seed; 0 draws one from OS entropy")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "fingerprints per commit (default from config)")
	cmd.Flags().Uint64Var(&opts.StepLimit, "step-limit", 0, "steps before a sequence counts as an anomaly (default from config)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the SQLite store (default from config)")
	cmd.Flags().StringVar(&opts.ResultsLog, "results-log", "", "path to the human-readable results log (default from config)")

	return cmd
}

func runSession(cmd *cobra.Command, opts *RunOptions) error {
	cfg, logger, err := opts.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("tests") {
		cfg.Run.Tests = opts.Tests
	}
	if flags.Changed("min") {
		cfg.Run.Min = opts.Min
	}
	if flags.Changed("max") {
		cfg.Run.Max = opts.Max
	}
	if flags.Changed("seed") {
		cfg.Run.Seed = opts.Seed
	}
	if flags.Changed("batch-size") {
		cfg.Run.BatchSize = opts.BatchSize
	}
	if flags.Changed("step-limit") {
		cfg.Run.StepLimit = opts.StepLimit
	}
	if flags.Changed("db") {
		cfg.DB.Path = opts.DBPath
	}
	if flags.Changed("results-log") {
		cfg.Run.ResultsLog = opts.ResultsLog
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	min, max, err := cfg.Run.Range()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid range", err)
	}
	mode := run.ModeEntropy
	if cfg.Run.Seed != 0 {
		mode = run.ModeReproducible
	}
	gen, err := run.NewGenerator(min, max, mode, cfg.Run.Seed)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build generator", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := store.Open(ctx, cfg.DB.Path, store.Options{
		Logger:            logger,
		BusyTimeout:       cfg.DB.BusyTimeout,
		QuarantineCorrupt: cfg.DB.QuarantineCorrupt,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("store close failed")
		}
	}()

	before, err := st.Count(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read store", err)
	}

	runner, err := run.New(run.Config{
		Store:     st,
		Generator: gen,
		Logger:    logger,
		Tests:     cfg.Run.Tests,
		BatchSize: cfg.Run.BatchSize,
		StepLimit: cfg.Run.StepLimit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build runner", err)
	}

	sess, runErr := runner.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return WrapExitError(ExitFailure, "session failed", runErr)
	}
	// runErr is nil or a graceful interrupt past this point; either way
	// everything tested so far has been committed.
	epilogue := context.WithoutCancel(ctx)

	after, err := st.Count(epilogue)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read store", err)
	}

	if cfg.Run.ResultsLog != "" {
		entry := report.LogEntry(sess, after, time.Now())
		if err := report.AppendFile(cfg.Run.ResultsLog, entry); err != nil {
			logger.Error().Err(err).Str("path", cfg.Run.ResultsLog).Msg("results log write failed")
		}
	}

	if runErr != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Interrupted; progress saved.")
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Summary(sess, report.Totals{
		UniqueAfter:  after,
		UniqueBefore: before,
	}))
	return nil
}
