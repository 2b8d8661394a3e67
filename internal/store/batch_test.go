package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/anjalik1505/town-functions-sub002/internal/store"
	"github.com/anjalik1505/town-functions-sub002/internal/store/memory"
)

// The writer commits full batches on Ready so callers never trip the cap,
// regardless of how many mutations a fan-out produces.
func TestBatchWriterRollsOver(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	w := store.NewBatchWriterWithLimit(s, 3)

	for i := 0; i < 8; i++ {
		b, err := w.Ready(ctx)
		if err != nil {
			t.Fatalf("ready %d: %v", i, err)
		}
		if err := s.TimeBuckets().AddUser(ctx, "monday_9", fmt.Sprintf("u%d", i), b); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		if w.Pending() > 3 {
			t.Fatalf("writer exceeded its cap: %d pending", w.Pending())
		}
	}
	// Two full batches are committed, the rest is pending.
	users, err := s.TimeBuckets().ListUsers(ctx, "monday_9")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 6 {
		t.Fatalf("committed rows: want 6, got %d", len(users))
	}
	if w.Pending() != 2 {
		t.Fatalf("pending: want 2, got %d", w.Pending())
	}

	if err := w.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	users, _ = s.TimeBuckets().ListUsers(ctx, "monday_9")
	if len(users) != 8 {
		t.Fatalf("after flush: want 8, got %d", len(users))
	}
	if w.Pending() != 0 {
		t.Fatalf("pending after flush: %d", w.Pending())
	}
}

func TestBatchWriterFlushEmpty(t *testing.T) {
	ctx := context.Background()
	w := store.NewBatchWriter(memory.New())

	if err := w.Flush(ctx); err != nil {
		t.Fatalf("flush with no batch: %v", err)
	}

	// Flush right after a rollover boundary must not commit an empty batch.
	s := memory.New()
	w = store.NewBatchWriterWithLimit(s, 2)
	for i := 0; i < 2; i++ {
		b, err := w.Ready(ctx)
		if err != nil {
			t.Fatalf("ready: %v", err)
		}
		if err := s.Phones().Put(ctx, fmt.Sprintf("+1%010d", i), "u1", b); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("flush full batch: %v", err)
	}
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("second flush: %v", err)
	}
}
