// Package run drives testing sessions: draw a candidate, skip it if any
// run ever saw it, evaluate it otherwise, and commit progress in batches.
package run

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/collatzlab/collatz-tester-go/internal/collatz"
	"github.com/collatzlab/collatz-tester-go/internal/fingerprint"
	"github.com/collatzlab/collatz-tester-go/internal/store"
)

// DefaultMaxAttemptsFactor caps total draws at planned tests times this
// factor, so a nearly saturated range ends the run instead of spinning.
const DefaultMaxAttemptsFactor = 100

// EvaluateFunc computes one sequence. It exists so tests can swap in a
// counting or failing evaluator; production wiring uses collatz.Evaluate.
type EvaluateFunc func(n *big.Int, stepLimit uint64) collatz.Result

// Config wires a Runner. Store, Generator and Tests are required.
type Config struct {
	Store     *store.Store
	Generator Generator
	Logger    zerolog.Logger
	Tests     uint64
	BatchSize int
	StepLimit uint64
	Evaluate  EvaluateFunc
	// MaxAttemptsFactor overrides DefaultMaxAttemptsFactor when positive.
	MaxAttemptsFactor uint64
}

// Runner executes one session. Build a new one per run; the session
// cache must start empty.
type Runner struct {
	store       *store.Store
	gen         Generator
	batcher     *store.Batcher
	cache       *Cache
	logger      zerolog.Logger
	evaluate    EvaluateFunc
	tests       uint64
	stepLimit   uint64
	maxAttempts uint64
}

// New validates cfg and assembles a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("runner: store is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("runner: generator is required")
	}
	if cfg.Tests == 0 {
		return nil, fmt.Errorf("runner: tests must be positive")
	}
	evaluate := cfg.Evaluate
	if evaluate == nil {
		evaluate = collatz.Evaluate
	}
	stepLimit := cfg.StepLimit
	if stepLimit == 0 {
		stepLimit = collatz.DefaultStepLimit
	}
	factor := cfg.MaxAttemptsFactor
	if factor == 0 {
		factor = DefaultMaxAttemptsFactor
	}
	return &Runner{
		store:       cfg.Store,
		gen:         cfg.Generator,
		batcher:     store.NewBatcher(cfg.Store, cfg.BatchSize),
		cache:       NewCache(),
		logger:      cfg.Logger.With().Str("component", "runner").Logger(),
		evaluate:    evaluate,
		tests:       cfg.Tests,
		stepLimit:   stepLimit,
		maxAttempts: cfg.Tests * factor,
	}, nil
}

// Run executes the session until the planned count is reached, the
// attempt cap trips, or ctx is canceled. Work committed before an error
// stays durable; on cancellation the in-flight batch is flushed before
// returning, so only a hard crash can lose (at most) one batch.
func (r *Runner) Run(ctx context.Context) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Planned:   r.tests,
	}
	allTime, err := r.store.LoadAllTime(ctx)
	if err != nil {
		return nil, err
	}
	sess.AllTime = allTime

	checkpoint := r.tests / 20
	if checkpoint == 0 {
		checkpoint = 1
	}

	r.logger.Info().
		Str("session_id", sess.ID).
		Uint64("tests", r.tests).
		Uint64("step_limit", r.stepLimit).
		Msg("session starting")

	for sess.Tested < r.tests && sess.Attempts < r.maxAttempts {
		if ctx.Err() != nil {
			if ferr := r.finish(context.WithoutCancel(ctx), sess); ferr != nil {
				return sess, ferr
			}
			return sess, ctx.Err()
		}

		sess.Attempts++
		n := r.gen.Next()
		fp := fingerprint.New(n)

		if r.cache.Seen(fp) {
			sess.DuplicatesCache++
			continue
		}
		tested, err := r.store.Contains(ctx, fp)
		if err != nil {
			return sess, err
		}
		if tested {
			sess.DuplicatesStore++
			r.cache.Record(fp)
			continue
		}

		res := r.evaluate(n, r.stepLimit)
		r.cache.Record(fp)

		if !res.Terminated {
			sess.Anomalies = append(sess.Anomalies, Entry{Num: n, Steps: res.Steps, Peak: res.Peak})
			r.logger.Warn().
				Str("num", n.String()).
				Uint64("steps", res.Steps).
				Msg("sequence did not reach 1 within the step limit")
		}

		sess.observe(n, res.Steps, res.Peak)
		newLongest, newPeak := sess.AllTime.Observe(n, res.Steps, res.Peak)
		sess.NewLongestRecord = sess.NewLongestRecord || newLongest
		sess.NewPeakRecord = sess.NewPeakRecord || newPeak

		if err := r.batcher.Add(ctx, fp); err != nil {
			return sess, err
		}
		if sess.Tested%checkpoint == 0 {
			if err := r.reportProgress(ctx, sess); err != nil {
				return sess, err
			}
		}
	}

	if err := r.finish(ctx, sess); err != nil {
		return sess, err
	}
	if sess.Tested < r.tests {
		r.logger.Warn().
			Uint64("tested", sess.Tested).
			Uint64("attempts", sess.Attempts).
			Msg("attempt cap reached before the planned count; range may be saturated")
	}
	r.logger.Info().
		Uint64("tested", sess.Tested).
		Uint64("duplicates", sess.DuplicatesCache+sess.DuplicatesStore).
		Dur("elapsed", sess.Elapsed).
		Msg("session complete")
	return sess, nil
}

// reportProgress commits the current batch and logs a checkpoint line.
// Checkpoints land every 5% of the planned count.
func (r *Runner) reportProgress(ctx context.Context, sess *Session) error {
	if err := r.commit(ctx, sess); err != nil {
		return err
	}
	elapsed := time.Since(sess.StartedAt).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(sess.Tested) / elapsed
	}
	r.logger.Info().
		Uint64("tested", sess.Tested).
		Uint64("planned", sess.Planned).
		Uint64("dup_cache", sess.DuplicatesCache).
		Uint64("dup_store", sess.DuplicatesStore).
		Float64("per_sec", rate).
		Msg("progress checkpoint")
	return nil
}

// finish commits everything outstanding and stamps the elapsed time.
func (r *Runner) finish(ctx context.Context, sess *Session) error {
	if err := r.commit(ctx, sess); err != nil {
		return err
	}
	sess.Elapsed = time.Since(sess.StartedAt)
	return nil
}

// commit stages the stats rows and flushes them with the pending
// fingerprints in one transaction.
func (r *Runner) commit(ctx context.Context, sess *Session) error {
	encoded, err := sess.AllTime.Encode()
	if err != nil {
		return err
	}
	r.batcher.SetStat(store.KeyAllTime, encoded)
	r.batcher.SetStat(store.KeyLastSession, sess.ID)
	r.batcher.SetStat(store.KeyLastUpdated, time.Now().UTC().Format(time.RFC3339))
	return r.batcher.Flush(ctx)
}
