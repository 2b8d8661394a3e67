package memory

import (
	"context"
	"testing"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
	"github.com/anjalik1505/town-functions-sub002/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestClaimLeaseLapses(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }

	ev := &model.Event{Type: "update_created", AggregateID: "a1", Payload: []byte(`{}`)}
	if err := s.Events().Append(ctx, ev, nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	first, err := s.Events().Claim(ctx, 10, 30*time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("claim: want 1 event, got %d", len(first))
	}

	if again, _ := s.Events().Claim(ctx, 10, 30*time.Second); len(again) != 0 {
		t.Fatalf("leased event re-claimed: %+v", again)
	}

	// A crashed worker never resolves the event; after the lease lapses it
	// is delivered again with the attempt count untouched.
	now = now.Add(31 * time.Second)
	redelivered, err := s.Events().Claim(ctx, 10, 30*time.Second)
	if err != nil {
		t.Fatalf("claim after lapse: %v", err)
	}
	if len(redelivered) != 1 || redelivered[0].ID != first[0].ID {
		t.Fatalf("redelivery: %+v", redelivered)
	}
	if redelivered[0].AttemptCount != 0 {
		t.Fatalf("lapsed lease counted as attempt: %d", redelivered[0].AttemptCount)
	}
}

func TestBackoffSchedule(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }

	ev := &model.Event{Type: "update_created", AggregateID: "a1", Payload: []byte(`{}`)}
	if err := s.Events().Append(ctx, ev, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	claimed, err := s.Events().Claim(ctx, 1, time.Second)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v %d", err, len(claimed))
	}
	id := claimed[0].ID

	// Delays double per failure and cap at five minutes.
	want := []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		32 * time.Second, 64 * time.Second, 128 * time.Second, 256 * time.Second,
		300 * time.Second, 300 * time.Second,
	}
	for i, delay := range want {
		if err := s.Events().MarkFailed(ctx, id, len(want)+1); err != nil {
			t.Fatalf("mark failed %d: %v", i, err)
		}
		pending, err := s.Events().ListByStatus(ctx, model.EventPending, 1)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(pending) != 1 {
			t.Fatalf("event left pending pool at attempt %d", i+1)
		}
		got := pending[0].NextAttemptAt.Sub(now)
		if got != delay {
			t.Fatalf("attempt %d: want delay %v, got %v", i+1, delay, got)
		}
	}
}

func TestEventIDsFollowCommitOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	b := s.NewBatch()
	for _, agg := range []string{"x", "y", "z"} {
		ev := &model.Event{Type: "update_created", AggregateID: agg, Payload: []byte(`{}`)}
		if err := s.Events().Append(ctx, ev, b); err != nil {
			t.Fatalf("stage %s: %v", agg, err)
		}
	}
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	pending, err := s.Events().ListByStatus(ctx, model.EventPending, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("want 3 events, got %d", len(pending))
	}
	for i, want := range []string{"x", "y", "z"} {
		if pending[i].AggregateID != want {
			t.Fatalf("position %d: want %s, got %s", i, want, pending[i].AggregateID)
		}
		if i > 0 && pending[i].ID <= pending[i-1].ID {
			t.Fatalf("ids not ascending: %d then %d", pending[i-1].ID, pending[i].ID)
		}
	}
}

func TestBatchFromOtherStoreRejected(t *testing.T) {
	ctx := context.Background()
	s1 := New()
	s2 := New()

	b := s2.NewBatch()
	err := s1.Phones().Put(ctx, "+10000000000", "u1", b)
	if err == nil {
		t.Fatal("foreign batch accepted")
	}
}
