package store

import (
	"errors"
	"strings"
)

var (
	// ErrStorageUnavailable means the store cannot be used at all: the
	// file could not be opened, recreated, or a lock was never released.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCorrupt means the file failed validation. Writable opens recover
	// from this internally; read-only opens surface it.
	ErrCorrupt = errors.New("store failed validation")
	// ErrReadOnly is returned by write operations on a read-only handle.
	ErrReadOnly = errors.New("store is read-only")
)

// isBusyErr reports whether err is SQLite lock contention. The driver
// exposes these as text, same as constraint errors.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// isNotADBErr reports whether err is SQLite refusing the file outright,
// which the header sniff cannot always predict.
func isNotADBErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "not a database") ||
		strings.Contains(msg, "malformed")
}
