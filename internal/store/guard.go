package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// sqliteHeader is the 16-byte magic every SQLite database starts with.
var sqliteHeader = []byte("SQLite format 3\x00")

type fileDisposition int

const (
	fileOK fileDisposition = iota
	fileMissing
	fileCorrupt
)

// inspectFile decides what is sitting at path before SQLite touches it.
// The header sniff is what catches large-file-transport pointer stubs:
// a few lines of text where a database used to be. A zero-length file is
// fine; SQLite initializes it on first write.
func inspectFile(path string) (fileDisposition, string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileMissing, "", nil
	}
	if err != nil {
		return fileCorrupt, "", err
	}
	if info.IsDir() {
		return fileCorrupt, "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fileOK, "", nil
	}
	if info.Size() < int64(len(sqliteHeader)) {
		return fileCorrupt, fmt.Sprintf("file is %d bytes, too short for a database header", info.Size()), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fileCorrupt, "", err
	}
	defer f.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return fileCorrupt, "", err
	}
	if !bytes.Equal(header, sqliteHeader) {
		return fileCorrupt, "file does not start with the SQLite header (placeholder or stub content)", nil
	}
	return fileOK, "", nil
}

// clearCorrupt gets an unusable file out of the way so a fresh store can
// be created at the same path. The -wal and -shm siblings go too; a stale
// WAL replayed into a new database would corrupt it all over again. The
// warning is deliberately loud: losing the tested set means re-testing,
// which is wasted work but never wrong results.
func clearCorrupt(logger zerolog.Logger, path, reason string, quarantine bool) error {
	var errs error
	if quarantine {
		dst := fmt.Sprintf("%s.corrupt.%s", path, time.Now().Format("20060102_150405"))
		if err := os.Rename(path, dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
		} else {
			logger.Warn().
				Str("reason", reason).
				Str("quarantined_to", dst).
				Msg("store failed validation; moved aside, starting fresh")
		}
	} else {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
		} else {
			logger.Warn().
				Str("reason", reason).
				Msg("store failed validation; deleted, starting fresh")
		}
	}
	for _, sibling := range []string{path + "-wal", path + "-shm"} {
		if err := os.Remove(sibling); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: clear corrupt store: %v", ErrStorageUnavailable, errs)
	}
	return nil
}
