// Package migrate imports a legacy JSON results file into the SQLite
// store. The old format kept every tested number as a decimal literal in
// one giant document; files run to gigabytes, so the importer streams the
// array instead of decoding it whole.
package migrate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/big"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/collatzlab/collatz-tester-go/internal/fingerprint"
	"github.com/collatzlab/collatz-tester-go/internal/store"
)

const (
	// DefaultLegacyPath is where the old tooling kept its JSON file.
	DefaultLegacyPath = "collatz_tested_numbers.json"

	// DefaultBatchSize controls how many fingerprints go into each
	// insert transaction during import.
	DefaultBatchSize = 10000

	progressEvery = 100000
)

// ErrNoLegacyData means the legacy JSON file does not exist, so there is
// nothing to migrate.
var ErrNoLegacyData = errors.New("no legacy data")

// Options configure a legacy import.
type Options struct {
	JSONPath   string
	DBPath     string
	BatchSize  int
	SkipBackup bool // default is to copy the store aside first
	Logger     zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.JSONPath == "" {
		o.JSONPath = DefaultLegacyPath
	}
	if o.DBPath == "" {
		o.DBPath = store.DefaultPath
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// Result summarizes a completed import.
type Result struct {
	Read          int64  // numbers decoded from the legacy file
	Imported      int64  // fingerprints new to the store
	Duplicates    int64  // already present, or repeated in the file
	StatsImported bool   // legacy file carried an all-time stats document
	BackupPath    string // empty when no backup was taken
	StoreCount    int64  // rows in the store after the import
}

// Import streams the legacy JSON file into the store at opts.DBPath.
// The store keeps whatever it already held; the legacy numbers are added
// on top and duplicates collapse silently. A missing legacy file returns
// ErrNoLegacyData so callers can treat it as "nothing to do".
func Import(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	f, err := os.Open(opts.JSONPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoLegacyData, opts.JSONPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open legacy file: %w", err)
	}
	defer f.Close()

	res := &Result{}
	if !opts.SkipBackup {
		backupPath, err := Backup(opts.DBPath)
		if err != nil {
			return nil, err
		}
		if backupPath != "" {
			opts.Logger.Info().Str("backup", backupPath).Msg("store backed up")
		}
		res.BackupPath = backupPath
	}

	st, err := store.Open(ctx, opts.DBPath, store.Options{Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	defer st.Close()

	before, err := st.Count(ctx)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bufio.NewReaderSize(f, 1<<20))
	dec.UseNumber()
	if err := walkLegacyFile(ctx, dec, st, opts, res); err != nil {
		return nil, err
	}

	after, err := st.Count(ctx)
	if err != nil {
		return nil, err
	}
	res.Imported = after - before
	res.Duplicates = res.Read - res.Imported
	res.StoreCount = after

	opts.Logger.Info().
		Int64("read", res.Read).
		Int64("imported", res.Imported).
		Int64("duplicates", res.Duplicates).
		Int64("store_count", res.StoreCount).
		Msg("import complete")
	return res, nil
}

// walkLegacyFile visits the top-level object one key at a time. Keys the
// importer does not care about (total_tested, last_updated) are skipped
// without materializing them.
func walkLegacyFile(ctx context.Context, dec *json.Decoder, st *store.Store, opts Options, res *Result) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("parse legacy file: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("legacy file: expected top-level object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("parse legacy file: %w", err)
		}
		key, _ := keyTok.(string)

		switch key {
		case "tested_numbers":
			if err := importNumbers(ctx, dec, st, opts, res); err != nil {
				return err
			}
		case "all_time_stats":
			var at store.AllTimeStats
			if err := dec.Decode(&at); err != nil {
				return fmt.Errorf("parse all_time_stats: %w", err)
			}
			doc, err := at.Encode()
			if err != nil {
				return err
			}
			if err := st.StatsSet(ctx, store.KeyAllTime, doc); err != nil {
				return err
			}
			res.StatsImported = true
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("parse legacy file: %w", err)
			}
		}
	}
	return nil
}

func importNumbers(ctx context.Context, dec *json.Decoder, st *store.Store, opts Options, res *Result) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("parse tested_numbers: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("tested_numbers: expected array, got %v", tok)
	}

	batch := make([]fingerprint.Fingerprint, 0, opts.BatchSize)
	n := new(big.Int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("parse tested_numbers: %w", err)
		}
		num, ok := tok.(json.Number)
		if !ok {
			return fmt.Errorf("tested_numbers: expected integer, got %T", tok)
		}
		if _, ok := n.SetString(num.String(), 10); !ok {
			return fmt.Errorf("tested_numbers: invalid integer %q", num)
		}

		batch = append(batch, fingerprint.New(n))
		res.Read++
		if len(batch) >= opts.BatchSize {
			if err := st.InsertMany(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			if res.Read%progressEvery == 0 {
				opts.Logger.Info().Int64("read", res.Read).Msg("import progress")
			}
		}
	}
	// Closing bracket.
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("parse tested_numbers: %w", err)
	}

	if len(batch) > 0 {
		if err := st.InsertMany(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// Backup copies the store file aside before an import touches it. It
// returns the backup path, or "" when there is no store to back up.
func Backup(dbPath string) (string, error) {
	src, err := os.Open(dbPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open store for backup: %w", err)
	}
	defer src.Close()

	backupPath := fmt.Sprintf("%s.backup.%s", dbPath, time.Now().Format("20060102_150405"))
	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return backupPath, nil
}
