package store

import (
	"context"

	"github.com/collatzlab/collatz-tester-go/internal/fingerprint"
)

// DefaultBatchSize is how many fingerprints accumulate before an
// automatic commit. Large enough to amortize transaction overhead,
// small enough that a crash loses under a second of work.
const DefaultBatchSize = 1000

// Batcher accumulates fingerprints and pending stats rows and commits
// them together. One transaction per flush; a crash between flushes
// loses only the buffered entries.
type Batcher struct {
	store   *Store
	size    int
	pending []fingerprint.Fingerprint
	stats   map[string]string
}

// NewBatcher wraps s with a commit buffer of the given size. A size of
// zero or less selects DefaultBatchSize.
func NewBatcher(s *Store, size int) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{
		store:   s,
		size:    size,
		pending: make([]fingerprint.Fingerprint, 0, size),
	}
}

// Add buffers one fingerprint, committing the batch once it is full.
func (b *Batcher) Add(ctx context.Context, fp fingerprint.Fingerprint) error {
	b.pending = append(b.pending, fp)
	if len(b.pending) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// SetStat stages a stats row to ride the next flush's transaction, so
// stats can never describe numbers whose fingerprints were lost.
func (b *Batcher) SetStat(key, value string) {
	if b.stats == nil {
		b.stats = make(map[string]string)
	}
	b.stats[key] = value
}

// Flush commits everything buffered. On failure the buffer is kept
// intact so the caller may retry or surface the error.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.pending) == 0 && len(b.stats) == 0 {
		return nil
	}
	if err := b.store.CommitBatch(ctx, b.pending, b.stats); err != nil {
		return err
	}
	b.pending = b.pending[:0]
	b.stats = nil
	return nil
}

// Pending returns how many fingerprints are buffered but not committed.
func (b *Batcher) Pending() int { return len(b.pending) }
