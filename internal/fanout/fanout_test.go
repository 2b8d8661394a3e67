package fanout

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store/memory"
	"github.com/anjalik1505/town-functions-sub002/internal/summary"
	"github.com/anjalik1505/town-functions-sub002/internal/visibility"
)

// stubSummarizer folds by concatenating bodies so tests can assert fold
// order and chaining without a real service.
type stubSummarizer struct {
	mu    sync.Mutex
	folds []string
	self  []string
}

func (s *stubSummarizer) FoldRelationship(_ context.Context, req summary.FoldRequest) (summary.FoldResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folds = append(s.folds, req.Body)
	next := req.Body
	if req.Summary != "" {
		next = req.Summary + "|" + req.Body
	}
	return summary.FoldResult{Summary: next}, nil
}

func (s *stubSummarizer) FoldSelf(_ context.Context, req summary.SelfFoldRequest) (summary.SelfFoldResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.self = append(s.self, req.Body)
	return summary.SelfFoldResult{Summary: "self " + req.Body}, nil
}

func (s *stubSummarizer) foldCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.folds)
}

type push struct {
	token, title, body string
	silent             bool
	data               map[string]string
}

// captureGateway records pushes instead of delivering them.
type captureGateway struct {
	mu    sync.Mutex
	sends []push
}

func (c *captureGateway) Send(_ context.Context, token, title, body string, data map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, push{token: token, title: title, body: body, data: data})
	return nil
}

func (c *captureGateway) SendSilent(_ context.Context, token string, data map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, push{token: token, silent: true, data: data})
	return nil
}

func (c *captureGateway) byToken() map[string]push {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]push, len(c.sends))
	for _, p := range c.sends {
		out[p.token] = p
	}
	return out
}

func ts(i int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC)
}

type fixture struct {
	st   *memory.Store
	stub *stubSummarizer
	gw   *captureGateway
	eng  *Engine
}

func newFixture() *fixture {
	st := memory.New()
	stub := &stubSummarizer{}
	gw := &captureGateway{}
	eng := NewEngine(st, summary.NewEngine(st, stub, zerolog.Nop()), gw, zerolog.Nop())
	return &fixture{st: st, stub: stub, gw: gw, eng: eng}
}

func (f *fixture) profile(t *testing.T, id, notifyMode, token string) {
	t.Helper()
	p := &model.Profile{
		UserID:      id,
		Username:    id,
		Name:        "The " + id,
		Timezone:    "UTC",
		NotifyMode:  notifyMode,
		DeviceToken: token,
	}
	if err := f.st.Profiles().Create(context.Background(), p, nil); err != nil {
		t.Fatalf("seed profile %s: %v", id, err)
	}
}

func (f *fixture) befriend(t *testing.T, a, b string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	rows := []*model.Friendship{
		{OwnerID: a, FriendID: b, Status: model.StatusAccepted, Friend: model.ProfileSnapshot{Username: b, Name: "The " + b}, CreatedAt: at, UpdatedAt: at},
		{OwnerID: b, FriendID: a, Status: model.StatusAccepted, Friend: model.ProfileSnapshot{Username: a, Name: "The " + a}, CreatedAt: at, UpdatedAt: at},
	}
	for _, r := range rows {
		if err := f.st.Friendships().Put(ctx, r, nil); err != nil {
			t.Fatalf("seed friendship %s/%s: %v", r.OwnerID, r.FriendID, err)
		}
	}
}

func (f *fixture) update(t *testing.T, u *model.Update) {
	t.Helper()
	if u.VisibleTo == nil {
		u.VisibleTo = visibility.Compute(u.CreatorID, u.FriendIDs, u.GroupIDs)
	}
	if err := f.st.Updates().Create(context.Background(), u, nil); err != nil {
		t.Fatalf("seed update %s: %v", u.UpdateID, err)
	}
}

func (f *fixture) entry(t *testing.T, owner, updateID string) *model.FeedEntry {
	t.Helper()
	fe, err := f.st.Feeds().Get(context.Background(), owner, updateID)
	if err != nil {
		t.Fatalf("feed entry %s/%s: %v", owner, updateID, err)
	}
	return fe
}

func TestHandleUpdateCreatedFansOutToFriendsAndGroups(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.profile(t, "alice", model.NotifyAll, "tok-alice")
	f.profile(t, "bob", model.NotifyAll, "tok-bob")
	f.profile(t, "cara", model.NotifySilent, "tok-cara")
	f.profile(t, "dave", model.NotifyAll, "tok-dave")
	f.befriend(t, "alice", "bob", ts(0))
	f.befriend(t, "alice", "cara", ts(0))

	g := &model.Group{
		GroupID: "g1",
		Name:    "climbers",
		Members: []string{"cara", "dave"},
		MemberProfiles: map[string]model.ProfileSnapshot{
			"cara": {Username: "cara"},
			"dave": {Username: "dave"},
		},
		CreatedAt: ts(0),
		UpdatedAt: ts(0),
	}
	if err := f.st.Groups().Create(ctx, g, nil); err != nil {
		t.Fatalf("seed group: %v", err)
	}

	u := &model.Update{
		UpdateID:  "u1",
		CreatorID: "alice",
		Body:      "summited",
		Emoji:     "⛰️",
		FriendIDs: []string{"bob", "cara"},
		GroupIDs:  []string{"g1"},
		Creator:   model.ProfileSnapshot{Username: "alice", Name: "The alice"},
		CreatedAt: ts(10),
	}
	f.update(t, u)
	// The request path stamps the creator's latest-update cache in the
	// creation batch; the self fold is guarded on it.
	if err := f.st.Profiles().SetLastUpdate(ctx, "alice", "u1", "⛰️", ts(10), nil); err != nil {
		t.Fatalf("stamp creator cache: %v", err)
	}

	if err := f.eng.HandleUpdateCreated(ctx, events.UpdateCreatedPayload{UpdateID: "u1", CreatorID: "alice"}); err != nil {
		t.Fatalf("HandleUpdateCreated: %v", err)
	}

	owners, err := f.st.Feeds().ListOwnersByUpdate(ctx, "u1")
	if err != nil {
		t.Fatalf("list owners: %v", err)
	}
	if len(owners) != 4 {
		t.Fatalf("owners = %v, want alice, bob, cara, dave", owners)
	}
	if fe := f.entry(t, "alice", "u1"); !fe.DirectVisible || fe.FriendID != "alice" {
		t.Fatalf("self entry = %+v", fe)
	}
	if fe := f.entry(t, "bob", "u1"); !fe.DirectVisible || fe.FriendID != "alice" {
		t.Fatalf("bob entry = %+v", fe)
	}
	// Cara is both an explicit friend and a group member; direct wins.
	if fe := f.entry(t, "cara", "u1"); !fe.DirectVisible || len(fe.GroupIDs) != 0 {
		t.Fatalf("cara entry = %+v", fe)
	}
	fe := f.entry(t, "dave", "u1")
	if fe.DirectVisible || len(fe.GroupIDs) != 1 || fe.GroupIDs[0] != "g1" {
		t.Fatalf("dave entry = %+v", fe)
	}
	if !fe.CreatedAt.Equal(ts(10)) {
		t.Fatalf("entry CreatedAt = %v, want copy of update's", fe.CreatedAt)
	}

	for _, friend := range []string{"bob", "cara"} {
		fr, err := f.st.Friendships().Get(ctx, friend, "alice")
		if err != nil {
			t.Fatalf("friendship %s/alice: %v", friend, err)
		}
		if fr.LastUpdateEmoji != "⛰️" || fr.LastUpdateAt == nil || !fr.LastUpdateAt.Equal(ts(10)) {
			t.Fatalf("%s cache = %+v", friend, fr)
		}
	}

	for _, friend := range []string{"bob", "cara"} {
		rs, err := f.st.Summaries().Get(ctx, model.PairID("alice", friend), "alice")
		if err != nil {
			t.Fatalf("summary alice->%s: %v", friend, err)
		}
		if rs.UpdateCount != 1 || rs.LastUpdateID != "u1" {
			t.Fatalf("summary alice->%s = %+v", friend, rs)
		}
	}
	// Group-only recipients get no relationship summary.
	if _, err := f.st.Summaries().Get(ctx, model.PairID("alice", "dave"), "alice"); err == nil {
		t.Fatal("unexpected summary for group-only recipient")
	}

	prof, err := f.st.Profiles().Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get creator: %v", err)
	}
	if prof.Summary != "self summited" {
		t.Fatalf("self summary = %q", prof.Summary)
	}

	pushes := f.gw.byToken()
	if p, ok := pushes["tok-bob"]; !ok || p.silent || p.data["update_id"] != "u1" {
		t.Fatalf("bob push = %+v", pushes)
	}
	if p, ok := pushes["tok-cara"]; !ok || !p.silent {
		t.Fatalf("cara push = %+v", pushes)
	}
	if _, ok := pushes["tok-dave"]; ok {
		t.Fatal("group-only recipient was pushed")
	}

	// Redelivery reuses every upsert and guard.
	if err := f.eng.HandleUpdateCreated(ctx, events.UpdateCreatedPayload{UpdateID: "u1", CreatorID: "alice"}); err != nil {
		t.Fatalf("redelivered HandleUpdateCreated: %v", err)
	}
	owners, _ = f.st.Feeds().ListOwnersByUpdate(ctx, "u1")
	if len(owners) != 4 {
		t.Fatalf("owners after redelivery = %v", owners)
	}
	for _, friend := range []string{"bob", "cara"} {
		rs, _ := f.st.Summaries().Get(ctx, model.PairID("alice", friend), "alice")
		if rs.UpdateCount != 1 {
			t.Fatalf("summary alice->%s count after redelivery = %d", friend, rs.UpdateCount)
		}
	}
}

func TestHandleUpdateCreatedMissingUpdate(t *testing.T) {
	f := newFixture()
	err := f.eng.HandleUpdateCreated(context.Background(), events.UpdateCreatedPayload{UpdateID: "ghost", CreatorID: "alice"})
	if err != nil {
		t.Fatalf("HandleUpdateCreated: %v", err)
	}
	if f.stub.foldCount() != 0 {
		t.Fatal("missing update reached the summarizer")
	}
}

func TestHandleUpdateSharedAddsOnlyNewRecipients(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.profile(t, "alice", model.NotifyAll, "")
	f.profile(t, "bob", model.NotifyAll, "")
	f.profile(t, "cara", model.NotifyAll, "tok-cara")
	f.profile(t, "dave", model.NotifyAll, "")
	f.befriend(t, "alice", "bob", ts(0))
	f.befriend(t, "alice", "cara", ts(0))

	g := &model.Group{
		GroupID:        "g1",
		Name:           "club",
		Members:        []string{"dave"},
		MemberProfiles: map[string]model.ProfileSnapshot{"dave": {Username: "dave"}},
		CreatedAt:      ts(0),
		UpdatedAt:      ts(0),
	}
	if err := f.st.Groups().Create(ctx, g, nil); err != nil {
		t.Fatalf("seed group: %v", err)
	}

	u := &model.Update{
		UpdateID:  "u1",
		CreatorID: "alice",
		Body:      "baked bread",
		FriendIDs: []string{"bob"},
		Creator:   model.ProfileSnapshot{Username: "alice"},
		CreatedAt: ts(5),
	}
	f.update(t, u)
	if err := f.eng.HandleUpdateCreated(ctx, events.UpdateCreatedPayload{UpdateID: "u1", CreatorID: "alice"}); err != nil {
		t.Fatalf("HandleUpdateCreated: %v", err)
	}
	baseFolds := f.stub.foldCount()

	// The request path applies the share union before the trigger runs.
	add := model.ShareTargets{
		FriendIDs: []string{"cara"},
		GroupIDs:  []string{"g1"},
		Friends:   map[string]model.ProfileSnapshot{"cara": {Username: "cara"}},
		Groups:    map[string]model.GroupSnapshot{"g1": {Name: "club"}},
	}
	if err := f.st.Updates().Share(ctx, "u1", add, nil); err != nil {
		t.Fatalf("share: %v", err)
	}
	payload := events.UpdateSharedPayload{
		UpdateID:       "u1",
		CreatorID:      "alice",
		AddedFriendIDs: []string{"cara"},
		AddedGroupIDs:  []string{"g1"},
	}
	if err := f.eng.HandleUpdateShared(ctx, payload); err != nil {
		t.Fatalf("HandleUpdateShared: %v", err)
	}

	owners, _ := f.st.Feeds().ListOwnersByUpdate(ctx, "u1")
	if len(owners) != 4 {
		t.Fatalf("owners = %v, want alice, bob, cara, dave", owners)
	}
	if fe := f.entry(t, "cara", "u1"); !fe.DirectVisible || fe.FriendID != "alice" {
		t.Fatalf("cara entry = %+v", fe)
	}
	if fe := f.entry(t, "dave", "u1"); fe.DirectVisible || len(fe.GroupIDs) != 1 {
		t.Fatalf("dave entry = %+v", fe)
	}

	// Only the added friend is folded; bob's summary is untouched.
	if got := f.stub.foldCount(); got != baseFolds+1 {
		t.Fatalf("folds after share = %d, want %d", got, baseFolds+1)
	}
	rs, err := f.st.Summaries().Get(ctx, model.PairID("alice", "cara"), "alice")
	if err != nil || rs.UpdateCount != 1 {
		t.Fatalf("summary alice->cara = %+v, %v", rs, err)
	}
	rs, err = f.st.Summaries().Get(ctx, model.PairID("alice", "bob"), "alice")
	if err != nil || rs.UpdateCount != 1 {
		t.Fatalf("summary alice->bob = %+v, %v", rs, err)
	}

	// Only cara is pushed about the share.
	pushes := f.gw.byToken()
	if len(pushes) != 1 {
		t.Fatalf("pushes = %+v, want only cara", pushes)
	}

	// Redelivery adds nothing.
	if err := f.eng.HandleUpdateShared(ctx, payload); err != nil {
		t.Fatalf("redelivered HandleUpdateShared: %v", err)
	}
	if got := f.stub.foldCount(); got != baseFolds+1 {
		t.Fatalf("folds after redelivery = %d, want %d", got, baseFolds+1)
	}
	owners, _ = f.st.Feeds().ListOwnersByUpdate(ctx, "u1")
	if len(owners) != 4 {
		t.Fatalf("owners after redelivery = %v", owners)
	}
}

func TestHandleUpdateSharedUpgradesGroupEntryToDirect(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.profile(t, "alice", model.NotifyAll, "")
	f.profile(t, "cara", model.NotifyAll, "")
	f.befriend(t, "alice", "cara", ts(0))

	g := &model.Group{
		GroupID:        "g1",
		Name:           "club",
		Members:        []string{"cara"},
		MemberProfiles: map[string]model.ProfileSnapshot{"cara": {Username: "cara"}},
		CreatedAt:      ts(0),
		UpdatedAt:      ts(0),
	}
	if err := f.st.Groups().Create(ctx, g, nil); err != nil {
		t.Fatalf("seed group: %v", err)
	}

	u := &model.Update{
		UpdateID:  "u1",
		CreatorID: "alice",
		Body:      "planted basil",
		GroupIDs:  []string{"g1"},
		Creator:   model.ProfileSnapshot{Username: "alice"},
		CreatedAt: ts(5),
	}
	f.update(t, u)
	if err := f.eng.HandleUpdateCreated(ctx, events.UpdateCreatedPayload{UpdateID: "u1", CreatorID: "alice"}); err != nil {
		t.Fatalf("HandleUpdateCreated: %v", err)
	}
	if fe := f.entry(t, "cara", "u1"); fe.DirectVisible {
		t.Fatalf("cara entry before share = %+v", fe)
	}

	add := model.ShareTargets{
		FriendIDs: []string{"cara"},
		Friends:   map[string]model.ProfileSnapshot{"cara": {Username: "cara"}},
	}
	if err := f.st.Updates().Share(ctx, "u1", add, nil); err != nil {
		t.Fatalf("share: %v", err)
	}
	payload := events.UpdateSharedPayload{UpdateID: "u1", CreatorID: "alice", AddedFriendIDs: []string{"cara"}}
	if err := f.eng.HandleUpdateShared(ctx, payload); err != nil {
		t.Fatalf("HandleUpdateShared: %v", err)
	}

	fe := f.entry(t, "cara", "u1")
	if !fe.DirectVisible || fe.FriendID != "alice" {
		t.Fatalf("cara entry after share = %+v", fe)
	}
	owners, _ := f.st.Feeds().ListOwnersByUpdate(ctx, "u1")
	if len(owners) != 2 {
		t.Fatalf("owners = %v, want alice and cara", owners)
	}
}

func TestFanOutRecipientsScenario(t *testing.T) {
	// friend_ids=[B, C], group G={C, D}: recipients are exactly the
	// creator, B, C, D, with D group-visible.
	ctx := context.Background()
	f := newFixture()
	for _, id := range []string{"a", "b", "c", "d"} {
		f.profile(t, id, model.NotifyNone, "")
	}
	g := &model.Group{
		GroupID: "G",
		Name:    "g",
		Members: []string{"c", "d"},
		MemberProfiles: map[string]model.ProfileSnapshot{
			"c": {Username: "c"}, "d": {Username: "d"},
		},
		CreatedAt: ts(0),
		UpdatedAt: ts(0),
	}
	if err := f.st.Groups().Create(ctx, g, nil); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	u := &model.Update{
		UpdateID:  "u1",
		CreatorID: "a",
		Body:      "x",
		FriendIDs: []string{"b", "c"},
		GroupIDs:  []string{"G"},
		CreatedAt: ts(1),
	}
	f.update(t, u)

	if err := f.eng.HandleUpdateCreated(ctx, events.UpdateCreatedPayload{UpdateID: "u1", CreatorID: "a"}); err != nil {
		t.Fatalf("HandleUpdateCreated: %v", err)
	}
	owners, _ := f.st.Feeds().ListOwnersByUpdate(ctx, "u1")
	want := []string{"a", "b", "c", "d"}
	if fmt.Sprint(owners) != fmt.Sprint(want) {
		t.Fatalf("owners = %v, want %v", owners, want)
	}
	if fe := f.entry(t, "d", "u1"); fe.DirectVisible || fmt.Sprint(fe.GroupIDs) != "[G]" {
		t.Fatalf("d entry = %+v", fe)
	}
}
