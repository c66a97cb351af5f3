package store

import (
	"context"
	"errors"
	"testing"
)

func TestBatcherAutoFlushAtSize(t *testing.T) {
	ctx := context.Background()
	s := mustOpen(t, testPath(t), Options{})
	b := NewBatcher(s, 3)

	for i := int64(1); i <= 2; i++ {
		if err := b.Add(ctx, fpOf(i)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("count = %d before the batch filled, want 0", n)
	}
	if b.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", b.Pending())
	}

	// The third Add fills the batch and commits it.
	if err := b.Add(ctx, fpOf(3)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending = %d after auto flush, want 0", b.Pending())
	}
	n, err = s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d after auto flush, want 3", n)
	}
}

func TestBatcherStatsRideTheFlush(t *testing.T) {
	ctx := context.Background()
	path := testPath(t)
	s := mustOpen(t, path, Options{})
	b := NewBatcher(s, 100)

	if err := b.Add(ctx, fpOf(27)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	b.SetStat(KeyAllTime, `{"total_numbers":1}`)
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	value, ok, err := s.StatsGet(ctx, KeyAllTime)
	if err != nil || !ok {
		t.Fatalf("stats row missing after flush: err=%v", err)
	}
	if value != `{"total_numbers":1}` {
		t.Errorf("stats value = %q", value)
	}

	// A later flush with no staged stats must not rewrite the row.
	if err := b.Add(ctx, fpOf(31)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	value, _, _ = s.StatsGet(ctx, KeyAllTime)
	if value != `{"total_numbers":1}` {
		t.Errorf("stats value overwritten by statless flush: %q", value)
	}
}

func TestBatcherEmptyFlushIsNoop(t *testing.T) {
	s := mustOpen(t, testPath(t), Options{})
	b := NewBatcher(s, 10)
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("empty Flush: %v", err)
	}
}

func TestBatcherKeepsBufferOnFailure(t *testing.T) {
	ctx := context.Background()
	path := testPath(t)

	w, err := Open(ctx, path, Options{})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	w.Close()

	r := mustOpen(t, path, Options{ReadOnly: true})
	b := NewBatcher(r, 10)
	if err := b.Add(ctx, fpOf(27)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Flush(ctx); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Flush on read-only store: err = %v, want ErrReadOnly", err)
	}
	if b.Pending() != 1 {
		t.Errorf("Pending = %d after failed flush, want 1", b.Pending())
	}
}

func TestBatcherDefaultSize(t *testing.T) {
	s := mustOpen(t, testPath(t), Options{})
	b := NewBatcher(s, 0)
	if b.size != DefaultBatchSize {
		t.Errorf("size = %d, want %d", b.size, DefaultBatchSize)
	}
}
