// Package store persists fingerprints of tested numbers in SQLite.
//
// The schema is two tables: tested (one 32-byte hash per number) and
// stats (string key/value rows, notably the all_time_stats JSON). All
// writes go through transactions so a crash loses at most the batch in
// flight, never previously committed work. WAL journaling lets a second
// process open the same file read-only while a run is writing.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/collatzlab/collatz-tester-go/internal/fingerprint"
)

// DefaultPath is the store filename used when the config names none. It
// matches what earlier tooling created, so existing databases are picked
// up in place.
const DefaultPath = "collatz_tested.db"

const (
	defaultBusyTimeout = 5 * time.Second
	busyMaxRetries     = 5
	busyBaseDelay      = 50 * time.Millisecond
)

// Stats keys with a fixed meaning. KeyAllTime holds the JSON document
// older tooling wrote under the same key; the others are additive.
const (
	KeyAllTime     = "all_time_stats"
	KeyLastSession = "last_session_id"
	KeyLastUpdated = "last_updated"
)

// Options configures Open.
type Options struct {
	// Logger receives integrity warnings. The zero value logs nothing.
	Logger zerolog.Logger
	// ReadOnly opens the file without write access. Validation failures
	// are returned instead of repaired, and write operations fail with
	// ErrReadOnly.
	ReadOnly bool
	// QuarantineCorrupt moves a file that failed validation aside as
	// <path>.corrupt.<timestamp> instead of deleting it.
	QuarantineCorrupt bool
	// BusyTimeout bounds how long SQLite itself waits on a locked file
	// before the bounded retry loop kicks in. Defaults to five seconds.
	BusyTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = defaultBusyTimeout
	}
	return o
}

// Store is a handle to one database file. It is safe for use from a
// single goroutine; the connection pool is capped at one connection so
// statements never interleave.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
	logger   zerolog.Logger
}

// Open validates the file at path and returns a handle to it. A missing
// file is created, a file that is not a usable store is cleared (or
// quarantined) and recreated with a loud warning, and an existing healthy
// store is reused as-is. Read-only opens never modify the file; they
// return ErrCorrupt instead of repairing.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With().Str("component", "store").Str("path", path).Logger()

	disp, reason, err := inspectFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: inspect %s: %v", ErrStorageUnavailable, path, err)
	}
	switch disp {
	case fileMissing:
		if opts.ReadOnly {
			return nil, fmt.Errorf("open read-only %s: %w", path, os.ErrNotExist)
		}
		logger.Info().Msg("creating new store")
	case fileCorrupt:
		if opts.ReadOnly {
			return nil, fmt.Errorf("%w: %s", ErrCorrupt, reason)
		}
		if err := clearCorrupt(logger, path, reason, opts.QuarantineCorrupt); err != nil {
			return nil, err
		}
	}

	s, err := openAndValidate(ctx, path, opts, logger)
	if err == nil || opts.ReadOnly || !errors.Is(err, ErrCorrupt) {
		return s, err
	}

	// The header sniff passed but the driver or quick_check rejected the
	// file. Clear it and build a fresh store; a second failure is fatal.
	if cerr := clearCorrupt(logger, path, err.Error(), opts.QuarantineCorrupt); cerr != nil {
		return nil, cerr
	}
	return openAndValidate(ctx, path, opts, logger)
}

func openAndValidate(ctx context.Context, path string, opts Options, logger zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, opts.BusyTimeout.Milliseconds())
	if opts.ReadOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)", path, opts.BusyTimeout.Milliseconds())
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorageUnavailable, path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, readOnly: opts.ReadOnly, logger: logger}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	err := s.withBusyRetry(ctx, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
	if err != nil {
		if isNotADBErr(err) {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return err
	}

	if !s.readOnly {
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
		} {
			if _, err := s.db.ExecContext(ctx, pragma); err != nil {
				if isNotADBErr(err) {
					return fmt.Errorf("%w: %v", ErrCorrupt, err)
				}
				return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, pragma, err)
			}
		}
		if err := runMigrations(ctx, s.db); err != nil {
			if isNotADBErr(err) {
				return fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	return s.Validate(ctx)
}

// Contains reports whether fp has been committed by any prior run.
func (s *Store) Contains(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tested WHERE hash = ?`, fp.Bytes()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query tested: %w", err)
	}
	return true, nil
}

// CommitBatch writes fingerprints and stats rows in one transaction:
// either all of it becomes durable or none of it does. Fingerprints
// already present are skipped silently, so replaying a batch after a
// crash is harmless.
func (s *Store) CommitBatch(ctx context.Context, fps []fingerprint.Fingerprint, stats map[string]string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if len(fps) == 0 && len(stats) == 0 {
		return nil
	}
	return s.withBusyRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		defer tx.Rollback()

		if len(fps) > 0 {
			ins, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO tested (hash) VALUES (?)`)
			if err != nil {
				return fmt.Errorf("prepare insert: %w", err)
			}
			defer ins.Close()
			for _, fp := range fps {
				if _, err := ins.ExecContext(ctx, fp.Bytes()); err != nil {
					return fmt.Errorf("insert fingerprint: %w", err)
				}
			}
		}
		for k, v := range stats {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO stats (key, value) VALUES (?, ?)`, k, v); err != nil {
				return fmt.Errorf("write stat %s: %w", k, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		return nil
	})
}

// InsertMany commits fingerprints with no stats change.
func (s *Store) InsertMany(ctx context.Context, fps []fingerprint.Fingerprint) error {
	return s.CommitBatch(ctx, fps, nil)
}

// StatsGet returns the value stored under key, with ok false when the
// key has never been written.
func (s *Store) StatsGet(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM stats WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query stats: %w", err)
	}
	return value, true, nil
}

// StatsSet writes one stats row outside any batch.
func (s *Store) StatsSet(ctx context.Context, key, value string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.withBusyRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO stats (key, value) VALUES (?, ?)`, key, value)
		if err != nil {
			return fmt.Errorf("write stat %s: %w", key, err)
		}
		return nil
	})
}

// Count returns the number of committed fingerprints.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tested`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tested: %w", err)
	}
	return n, nil
}

// Validate runs quick_check and confirms the required tables exist.
// A nil return means the handle is serving a healthy store.
func (s *Store) Validate(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&result); err != nil {
		return fmt.Errorf("%w: quick_check: %v", ErrCorrupt, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: quick_check: %s", ErrCorrupt, result)
	}
	var tables int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('tested', 'stats')`,
	).Scan(&tables)
	if err != nil {
		return fmt.Errorf("%w: schema probe: %v", ErrCorrupt, err)
	}
	if tables != 2 {
		return fmt.Errorf("%w: required tables missing", ErrCorrupt)
	}
	return nil
}

// SizeBytes returns the current size of the database file.
func (s *Store) SizeBytes() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Path returns the database file path this handle serves.
func (s *Store) Path() string { return s.path }

// ReadOnly reports whether write operations are disabled on this handle.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Close checkpoints the WAL (writable handles only, best effort) and
// releases the connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	var errs error
	if !s.readOnly {
		if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("wal checkpoint: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("close database: %w", err))
	}
	s.db = nil
	return errs
}

// withBusyRetry retries fn with exponential backoff while SQLite reports
// lock contention. Exhaustion surfaces as ErrStorageUnavailable so
// callers treat a never-released lock like any other fatal storage
// failure.
func (s *Store) withBusyRetry(ctx context.Context, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(busyMaxRetries, retry.NewExponential(busyBaseDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if isBusyErr(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil && isBusyErr(err) {
		return fmt.Errorf("%w: lock not released: %v", ErrStorageUnavailable, err)
	}
	return err
}
