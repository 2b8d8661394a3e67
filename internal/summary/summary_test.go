package summary

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store/memory"
)

// stubSummarizer folds by concatenating bodies, so tests can assert both
// fold order and chaining. Failures are scripted per body.
type stubSummarizer struct {
	mu        sync.Mutex
	calls     []string
	selfCalls []string
	transient map[string]int
	permanent map[string]bool
}

func newStub() *stubSummarizer {
	return &stubSummarizer{transient: map[string]int{}, permanent: map[string]bool{}}
}

func (s *stubSummarizer) FoldRelationship(_ context.Context, req FoldRequest) (FoldResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permanent[req.Body] {
		return FoldResult{}, backoff.Permanent(errors.New("rejected"))
	}
	if s.transient[req.Body] > 0 {
		s.transient[req.Body]--
		return FoldResult{}, errors.New("unavailable")
	}
	s.calls = append(s.calls, req.Body)
	return FoldResult{Summary: chain(req.Summary, req.Body), Suggestions: "ask about " + req.Body}, nil
}

func (s *stubSummarizer) FoldSelf(_ context.Context, req SelfFoldRequest) (SelfFoldResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfCalls = append(s.selfCalls, req.Body)
	return SelfFoldResult{
		Summary:     chain(req.Summary, req.Body),
		Suggestions: "reflect on " + req.Body,
		Insights:    model.Insights{EmotionalOverview: "eo " + req.Body},
	}, nil
}

func chain(prev, body string) string {
	if prev == "" {
		return body
	}
	return prev + "|" + body
}

func upd(id, creator, body string, at time.Time) *model.Update {
	return &model.Update{UpdateID: id, CreatorID: creator, Body: body, Sentiment: "calm", CreatedAt: at}
}

func ts(i int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC)
}

func TestFoldUpdateAdvancesState(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	stub := newStub()
	eng := NewEngine(st, stub, zerolog.Nop())

	if err := eng.FoldUpdate(ctx, upd("u1", "alice", "ran a marathon", ts(1)), "bob", Demographics{Gender: "female"}); err != nil {
		t.Fatalf("FoldUpdate: %v", err)
	}
	if err := eng.FoldUpdate(ctx, upd("u2", "alice", "slept all day", ts(2)), "bob", Demographics{}); err != nil {
		t.Fatalf("FoldUpdate: %v", err)
	}

	rs, err := st.Summaries().Get(ctx, model.PairID("alice", "bob"), "alice")
	if err != nil {
		t.Fatalf("Get summary: %v", err)
	}
	if rs.UpdateCount != 2 {
		t.Fatalf("UpdateCount = %d, want 2", rs.UpdateCount)
	}
	if rs.LastUpdateID != "u2" {
		t.Fatalf("LastUpdateID = %q, want u2", rs.LastUpdateID)
	}
	if rs.Summary != "ran a marathon|slept all day" {
		t.Fatalf("Summary = %q", rs.Summary)
	}
	if rs.TargetID != "bob" || rs.CreatorID != "alice" {
		t.Fatalf("direction = %s->%s", rs.CreatorID, rs.TargetID)
	}
}

func TestFoldUpdateRedeliveryIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	stub := newStub()
	eng := NewEngine(st, stub, zerolog.Nop())

	u := upd("u1", "alice", "moved house", ts(1))
	for i := 0; i < 3; i++ {
		if err := eng.FoldUpdate(ctx, u, "bob", Demographics{}); err != nil {
			t.Fatalf("FoldUpdate #%d: %v", i, err)
		}
	}

	rs, err := st.Summaries().Get(ctx, model.PairID("alice", "bob"), "alice")
	if err != nil {
		t.Fatalf("Get summary: %v", err)
	}
	if rs.UpdateCount != 1 {
		t.Fatalf("UpdateCount = %d, want 1", rs.UpdateCount)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("summarizer called %d times, want 1", len(stub.calls))
	}
}

func TestFoldUpdateRetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	stub := newStub()
	stub.transient["flaky"] = 1
	eng := NewEngine(st, stub, zerolog.Nop())

	if err := eng.FoldUpdate(ctx, upd("u1", "alice", "flaky", ts(1)), "bob", Demographics{}); err != nil {
		t.Fatalf("FoldUpdate: %v", err)
	}
	rs, err := st.Summaries().Get(ctx, model.PairID("alice", "bob"), "alice")
	if err != nil {
		t.Fatalf("Get summary: %v", err)
	}
	if rs.UpdateCount != 1 {
		t.Fatalf("UpdateCount = %d, want 1", rs.UpdateCount)
	}
}

func TestFoldUpdateKeepsPriorStateOnExhaustion(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	stub := newStub()
	eng := NewEngine(st, stub, zerolog.Nop())

	if err := eng.FoldUpdate(ctx, upd("u1", "alice", "first", ts(1)), "bob", Demographics{}); err != nil {
		t.Fatalf("FoldUpdate: %v", err)
	}
	stub.permanent["second"] = true
	if err := eng.FoldUpdate(ctx, upd("u2", "alice", "second", ts(2)), "bob", Demographics{}); err == nil {
		t.Fatal("FoldUpdate succeeded, want error")
	}

	rs, err := st.Summaries().Get(ctx, model.PairID("alice", "bob"), "alice")
	if err != nil {
		t.Fatalf("Get summary: %v", err)
	}
	if rs.UpdateCount != 1 || rs.LastUpdateID != "u1" || rs.Summary != "first" {
		t.Fatalf("prior state mutated: count=%d last=%q summary=%q", rs.UpdateCount, rs.LastUpdateID, rs.Summary)
	}
}

func TestFoldHistoryFoldsOldestFirst(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	stub := newStub()
	eng := NewEngine(st, stub, zerolog.Nop())

	// Newest-first input, the order the backfill streams in.
	var items []*model.Update
	for i := 12; i >= 1; i-- {
		items = append(items, upd(fmt.Sprintf("u%02d", i), "bea", fmt.Sprintf("day %d", i), ts(i)))
	}

	folded, err := eng.FoldHistory(ctx, "bea", "adam", items, Demographics{})
	if err != nil {
		t.Fatalf("FoldHistory: %v", err)
	}
	if folded != 12 {
		t.Fatalf("folded = %d, want 12", folded)
	}
	for i, body := range stub.calls {
		if want := fmt.Sprintf("day %d", i+1); body != want {
			t.Fatalf("fold %d = %q, want %q", i, body, want)
		}
	}

	rs, err := st.Summaries().Get(ctx, model.PairID("adam", "bea"), "bea")
	if err != nil {
		t.Fatalf("Get summary: %v", err)
	}
	if rs.UpdateCount != 12 {
		t.Fatalf("UpdateCount = %d, want 12", rs.UpdateCount)
	}
	if rs.LastUpdateID != "u12" {
		t.Fatalf("LastUpdateID = %q, want u12", rs.LastUpdateID)
	}

	// A redelivered backfill resumes past the stored marker and changes
	// nothing.
	folded, err = eng.FoldHistory(ctx, "bea", "adam", items, Demographics{})
	if err != nil {
		t.Fatalf("FoldHistory rerun: %v", err)
	}
	if folded != 0 {
		t.Fatalf("rerun folded = %d, want 0", folded)
	}
	rs, err = st.Summaries().Get(ctx, model.PairID("adam", "bea"), "bea")
	if err != nil {
		t.Fatalf("Get summary: %v", err)
	}
	if rs.UpdateCount != 12 {
		t.Fatalf("UpdateCount after rerun = %d, want 12", rs.UpdateCount)
	}
}

func TestFoldHistoryResumesAfterStoredMarker(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	stub := newStub()
	eng := NewEngine(st, stub, zerolog.Nop())

	items := []*model.Update{
		upd("u1", "bea", "one", ts(1)),
		upd("u2", "bea", "two", ts(2)),
		upd("u3", "bea", "three", ts(3)),
		upd("u4", "bea", "four", ts(4)),
	}
	if _, err := eng.FoldHistory(ctx, "bea", "adam", items[:2], Demographics{}); err != nil {
		t.Fatalf("seed FoldHistory: %v", err)
	}

	folded, err := eng.FoldHistory(ctx, "bea", "adam", items, Demographics{})
	if err != nil {
		t.Fatalf("FoldHistory: %v", err)
	}
	if folded != 2 {
		t.Fatalf("folded = %d, want 2", folded)
	}
	rs, err := st.Summaries().Get(ctx, model.PairID("adam", "bea"), "bea")
	if err != nil {
		t.Fatalf("Get summary: %v", err)
	}
	if rs.UpdateCount != 4 || rs.LastUpdateID != "u4" {
		t.Fatalf("count=%d last=%q, want 4/u4", rs.UpdateCount, rs.LastUpdateID)
	}
	if rs.Summary != "one|two|three|four" {
		t.Fatalf("Summary = %q", rs.Summary)
	}
}

func TestFoldHistorySkipsFailedItem(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	stub := newStub()
	stub.permanent["two"] = true
	eng := NewEngine(st, stub, zerolog.Nop())

	items := []*model.Update{
		upd("u3", "bea", "three", ts(3)),
		upd("u2", "bea", "two", ts(2)),
		upd("u1", "bea", "one", ts(1)),
	}
	folded, err := eng.FoldHistory(ctx, "bea", "adam", items, Demographics{})
	if err != nil {
		t.Fatalf("FoldHistory: %v", err)
	}
	if folded != 2 {
		t.Fatalf("folded = %d, want 2", folded)
	}
	rs, err := st.Summaries().Get(ctx, model.PairID("adam", "bea"), "bea")
	if err != nil {
		t.Fatalf("Get summary: %v", err)
	}
	if rs.UpdateCount != 2 || rs.Summary != "one|three" {
		t.Fatalf("count=%d summary=%q, want 2/one|three", rs.UpdateCount, rs.Summary)
	}
}

func TestFoldHistoryAllFailedKeepsNothing(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	stub := newStub()
	stub.permanent["only"] = true
	eng := NewEngine(st, stub, zerolog.Nop())

	_, err := eng.FoldHistory(ctx, "bea", "adam", []*model.Update{upd("u1", "bea", "only", ts(1))}, Demographics{})
	if err == nil {
		t.Fatal("FoldHistory succeeded, want error")
	}
	if _, err := st.Summaries().Get(ctx, model.PairID("adam", "bea"), "bea"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get after failed fold = %v, want ErrNotFound", err)
	}
}

func TestFoldSelfGuardedByLatestUpdate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	stub := newStub()
	eng := NewEngine(st, stub, zerolog.Nop())

	if err := st.Profiles().Create(ctx, &model.Profile{UserID: "alice", Username: "al", Name: "Alice"}, nil); err != nil {
		t.Fatalf("Create profile: %v", err)
	}
	if err := st.Profiles().SetLastUpdate(ctx, "alice", "u2", "🌊", ts(2), nil); err != nil {
		t.Fatalf("SetLastUpdate: %v", err)
	}
	p, err := st.Profiles().Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get profile: %v", err)
	}

	// u1 is no longer the latest update; its fold must be dropped.
	if err := eng.FoldSelf(ctx, p, upd("u1", "alice", "stale", ts(1))); err != nil {
		t.Fatalf("FoldSelf stale: %v", err)
	}
	if len(stub.selfCalls) != 0 {
		t.Fatalf("stale fold reached summarizer: %v", stub.selfCalls)
	}

	if err := eng.FoldSelf(ctx, p, upd("u2", "alice", "fresh", ts(2))); err != nil {
		t.Fatalf("FoldSelf: %v", err)
	}
	p, err = st.Profiles().Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get profile: %v", err)
	}
	if p.Summary != "fresh" || p.Insights.EmotionalOverview != "eo fresh" {
		t.Fatalf("profile fold state = %q / %q", p.Summary, p.Insights.EmotionalOverview)
	}
	if p.LastUpdateID != "u2" {
		t.Fatalf("LastUpdateID = %q, want u2", p.LastUpdateID)
	}
}
