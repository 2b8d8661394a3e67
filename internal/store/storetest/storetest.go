// Package storetest holds the contract test applied to every Store
// implementation. Adapter packages call Run from their own tests with a
// constructor that yields an empty store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
	"github.com/anjalik1505/town-functions-sub002/internal/visibility"
)

func Run(t *testing.T, open func(t *testing.T) store.Store) {
	cases := []struct {
		name string
		fn   func(*testing.T, store.Store)
	}{
		{"ProfileLifecycle", testProfileLifecycle},
		{"PhoneDirectory", testPhoneDirectory},
		{"BatchAtomicity", testBatchAtomicity},
		{"BatchCap", testBatchCap},
		{"FriendshipUpsert", testFriendshipUpsert},
		{"FriendshipPagination", testFriendshipPagination},
		{"CursorFailClosed", testCursorFailClosed},
		{"UpdateShare", testUpdateShare},
		{"UpdateSnapshots", testUpdateSnapshots},
		{"UpdateListings", testUpdateListings},
		{"Comments", testComments},
		{"Reactions", testReactions},
		{"FeedEntries", testFeedEntries},
		{"SummaryFold", testSummaryFold},
		{"GroupMembership", testGroupMembership},
		{"TimeBuckets", testTimeBuckets},
		{"EventQueue", testEventQueue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			tc.fn(t, s)
		})
	}
}

// ts returns second-aligned instants so both adapters round-trip them
// exactly.
func ts(i int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC)
}

func profile(userID, username string) *model.Profile {
	return &model.Profile{
		UserID:     userID,
		Username:   username,
		Name:       "Someone " + username,
		Timezone:   "UTC",
		NotifyMode: model.NotifyAll,
		CreatedAt:  ts(0),
		UpdatedAt:  ts(0),
	}
}

func testProfileLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	profiles := s.Profiles()

	if err := profiles.Create(ctx, profile("u1", "alice"), nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := profiles.Create(ctx, profile("u1", "alice2"), nil); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate user id: want ErrConflict, got %v", err)
	}
	if err := profiles.Create(ctx, profile("u2", "alice"), nil); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate username: want ErrConflict, got %v", err)
	}

	got, err := profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "alice" || got.FriendCount != 0 {
		t.Fatalf("unexpected profile: %+v", got)
	}

	edit := model.ProfileEdit{Username: "alice", Name: "Alice A", Avatar: "a.png", Timezone: "Europe/Berlin"}
	if err := profiles.ApplyEdit(ctx, "u1", edit, nil); err != nil {
		t.Fatalf("apply edit: %v", err)
	}
	if err := profiles.AddFriendCount(ctx, "u1", 1, nil); err != nil {
		t.Fatalf("add friend count: %v", err)
	}
	if err := profiles.AddFriendCount(ctx, "u1", 1, nil); err != nil {
		t.Fatalf("add friend count: %v", err)
	}
	if err := profiles.AddGroup(ctx, "u1", "g1", nil); err != nil {
		t.Fatalf("add group: %v", err)
	}
	if err := profiles.AddGroup(ctx, "u1", "g1", nil); err != nil {
		t.Fatalf("re-add group: %v", err)
	}

	got, err = profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get after edit: %v", err)
	}
	if got.Name != "Alice A" || got.Timezone != "Europe/Berlin" {
		t.Fatalf("edit not applied: %+v", got)
	}
	if got.FriendCount != 2 {
		t.Fatalf("friend count: want 2, got %d", got.FriendCount)
	}
	if !reflect.DeepEqual(got.GroupIDs, []string{"g1"}) {
		t.Fatalf("group ids: want [g1], got %v", got.GroupIDs)
	}

	if err := profiles.SetLastUpdate(ctx, "u1", "up1", "🙂", ts(5), nil); err != nil {
		t.Fatalf("set last update: %v", err)
	}
	got, _ = profiles.Get(ctx, "u1")
	if got.LastUpdateID != "up1" || got.LastUpdateEmoji != "🙂" || got.LastUpdateAt == nil || !got.LastUpdateAt.Equal(ts(5)) {
		t.Fatalf("last update cache: %+v", got)
	}
	// An older stamp, as a redelivered trigger would write, must not
	// regress the cache.
	if err := profiles.SetLastUpdate(ctx, "u1", "up0", "😐", ts(3), nil); err != nil {
		t.Fatalf("stale set last update: %v", err)
	}
	got, _ = profiles.Get(ctx, "u1")
	if got.LastUpdateID != "up1" || !got.LastUpdateAt.Equal(ts(5)) {
		t.Fatalf("last update cache regressed: %+v", got)
	}

	if err := profiles.Delete(ctx, "u1", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := profiles.Get(ctx, "u1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("get deleted: want ErrNotFound, got %v", err)
	}
}

func testPhoneDirectory(t *testing.T, s store.Store) {
	ctx := context.Background()
	phones := s.Phones()

	if _, err := phones.Lookup(ctx, "+4915200000001"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("empty lookup: want ErrNotFound, got %v", err)
	}
	if err := phones.Put(ctx, "+4915200000001", "u1", nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := phones.Put(ctx, "+4915200000001", "u2", nil); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	userID, err := phones.Lookup(ctx, "+4915200000001")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if userID != "u2" {
		t.Fatalf("lookup: want u2, got %s", userID)
	}
	if err := phones.Delete(ctx, "+4915200000001", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := phones.Lookup(ctx, "+4915200000001"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("lookup after delete: want ErrNotFound, got %v", err)
	}
}

func testBatchAtomicity(t *testing.T, s store.Store) {
	ctx := context.Background()

	u := &model.Update{
		UpdateID:  "up-batch",
		CreatorID: "u1",
		Body:      "hello",
		VisibleTo: visibility.Compute("u1", nil, nil),
		Creator:   model.ProfileSnapshot{Username: "alice"},
		CreatedAt: ts(0),
	}
	ev := &model.Event{Type: "update_created", AggregateID: u.UpdateID, Payload: []byte(`{"update_id":"up-batch"}`)}

	b := s.NewBatch()
	if err := s.Updates().Create(ctx, u, b); err != nil {
		t.Fatalf("stage update: %v", err)
	}
	if err := s.Events().Append(ctx, ev, b); err != nil {
		t.Fatalf("stage event: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("batch len: want 2, got %d", b.Len())
	}

	if _, err := s.Updates().Get(ctx, u.UpdateID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("update visible before commit: %v", err)
	}

	if err := b.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Updates().Get(ctx, u.UpdateID); err != nil {
		t.Fatalf("update after commit: %v", err)
	}
	pending, err := s.Events().ListByStatus(ctx, model.EventPending, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].AggregateID != u.UpdateID {
		t.Fatalf("pending events: %+v", pending)
	}

	// A failing batch applies nothing.
	if err := s.Profiles().Create(ctx, profile("u9", "taken"), nil); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	bad := s.NewBatch()
	if err := s.Phones().Put(ctx, "+4915200000002", "u9", bad); err != nil {
		t.Fatalf("stage phone: %v", err)
	}
	if err := s.Profiles().Create(ctx, profile("u9", "other"), bad); err != nil {
		t.Fatalf("stage conflicting create: %v", err)
	}
	if err := bad.Commit(ctx); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("conflicting commit: want ErrConflict, got %v", err)
	}
	if _, err := s.Phones().Lookup(ctx, "+4915200000002"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("phone applied despite failed batch: %v", err)
	}
}

func testBatchCap(t *testing.T, s store.Store) {
	ctx := context.Background()

	b := s.NewBatch()
	for i := 0; i <= store.MaxBatchOps; i++ {
		if err := s.TimeBuckets().AddUser(ctx, "monday_9", "user", b); err != nil {
			t.Fatalf("stage op %d: %v", i, err)
		}
	}
	if b.Len() != store.MaxBatchOps+1 {
		t.Fatalf("batch len: want %d, got %d", store.MaxBatchOps+1, b.Len())
	}
	if err := b.Commit(ctx); !errors.Is(err, store.ErrBatchTooLarge) {
		t.Fatalf("oversized commit: want ErrBatchTooLarge, got %v", err)
	}
	users, err := s.TimeBuckets().ListUsers(ctx, "monday_9")
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("oversized batch applied ops: %v", users)
	}
}

func testFriendshipUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()
	friendships := s.Friendships()

	f := &model.Friendship{
		OwnerID:   "u1",
		FriendID:  "u2",
		Status:    model.StatusAccepted,
		Friend:    model.ProfileSnapshot{Username: "bob"},
		CreatedAt: ts(0),
		UpdatedAt: ts(0),
	}
	if err := friendships.Put(ctx, f, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := friendships.SetLastUpdate(ctx, "u1", "u2", "🎉", ts(3), nil); err != nil {
		t.Fatalf("set last update: %v", err)
	}

	again := &model.Friendship{
		OwnerID:   "u1",
		FriendID:  "u2",
		Status:    model.StatusAccepted,
		Friend:    model.ProfileSnapshot{Username: "bob", Name: "Bob B"},
		CreatedAt: ts(9),
		UpdatedAt: ts(9),
	}
	if err := friendships.Put(ctx, again, nil); err != nil {
		t.Fatalf("re-put: %v", err)
	}

	got, err := friendships.Get(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(ts(0)) {
		t.Fatalf("created_at overwritten: %v", got.CreatedAt)
	}
	if got.LastUpdateEmoji != "🎉" || got.LastUpdateAt == nil || !got.LastUpdateAt.Equal(ts(3)) {
		t.Fatalf("last-update cache lost on upsert: %+v", got)
	}

	if err := friendships.SetLastUpdate(ctx, "u1", "u2", "🕰", ts(1), nil); err != nil {
		t.Fatalf("stale set last update: %v", err)
	}
	got, _ = friendships.Get(ctx, "u1", "u2")
	if got.LastUpdateEmoji != "🎉" || !got.LastUpdateAt.Equal(ts(3)) {
		t.Fatalf("last-update cache regressed: %+v", got)
	}
	if got.Friend.Name != "Bob B" {
		t.Fatalf("snapshot not refreshed: %+v", got.Friend)
	}
}

func testFriendshipPagination(t *testing.T, s store.Store) {
	ctx := context.Background()
	friendships := s.Friendships()

	want := []string{"f9", "f8", "f7", "f6", "f5", "f4", "f3", "f2", "f1", "f0"}
	for i := 0; i < 10; i++ {
		f := &model.Friendship{
			OwnerID:   "owner",
			FriendID:  want[9-i],
			Status:    model.StatusAccepted,
			CreatedAt: ts(i),
			UpdatedAt: ts(i),
		}
		if err := friendships.Put(ctx, f, nil); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	var got []string
	cursor := ""
	pages := 0
	for {
		items, next, err := friendships.List(ctx, "owner", store.Page{Limit: 4, Cursor: cursor})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, f := range items {
			got = append(got, f.FriendID)
		}
		pages++
		if next == "" {
			break
		}
		cursor = next
		if pages > 5 {
			t.Fatal("cursor never terminated")
		}
	}
	if pages != 3 {
		t.Fatalf("pages: want 3, got %d", pages)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order: want %v, got %v", want, got)
	}
}

func testCursorFailClosed(t *testing.T, s store.Store) {
	ctx := context.Background()
	friendships := s.Friendships()

	for i := 0; i < 3; i++ {
		f := &model.Friendship{
			OwnerID:   "owner-a",
			FriendID:  []string{"x", "y", "z"}[i],
			Status:    model.StatusAccepted,
			CreatedAt: ts(i),
			UpdatedAt: ts(i),
		}
		if err := friendships.Put(ctx, f, nil); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	items, next, err := friendships.List(ctx, "owner-a", store.Page{Limit: 10, Cursor: "garbage"})
	if err != nil {
		t.Fatalf("garbage cursor: %v", err)
	}
	if len(items) != 0 || next != "" {
		t.Fatalf("garbage cursor leaked rows: %d items", len(items))
	}

	// A cursor minted for one owner's listing is refused for another's.
	_, wrongOwner, err := friendships.List(ctx, "owner-a", store.Page{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if wrongOwner == "" {
		t.Fatal("expected a continuation cursor")
	}
	items, _, err = friendships.List(ctx, "owner-b", store.Page{Limit: 10, Cursor: wrongOwner})
	if err != nil {
		t.Fatalf("cross-owner cursor: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("cross-owner cursor leaked %d rows", len(items))
	}
}

func testUpdateShare(t *testing.T, s store.Store) {
	ctx := context.Background()
	updates := s.Updates()

	u := &model.Update{
		UpdateID:      "up1",
		CreatorID:     "alice",
		Body:          "went climbing",
		FriendIDs:     []string{"bob"},
		VisibleTo:     visibility.Compute("alice", []string{"bob"}, nil),
		Creator:       model.ProfileSnapshot{Username: "alice"},
		SharedFriends: map[string]model.ProfileSnapshot{"bob": {Username: "bob"}},
		CreatedAt:     ts(0),
	}
	if err := updates.Create(ctx, u, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	add := model.ShareTargets{
		FriendIDs: []string{"cara"},
		GroupIDs:  []string{"g1"},
		Friends:   map[string]model.ProfileSnapshot{"cara": {Username: "cara"}},
		Groups:    map[string]model.GroupSnapshot{"g1": {Name: "Climbers"}},
	}
	if err := updates.Share(ctx, "up1", add, nil); err != nil {
		t.Fatalf("share: %v", err)
	}
	if err := updates.Share(ctx, "up1", add, nil); err != nil {
		t.Fatalf("replayed share: %v", err)
	}

	got, err := updates.Get(ctx, "up1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got.FriendIDs, []string{"bob", "cara"}) {
		t.Fatalf("friend ids: %v", got.FriendIDs)
	}
	if !reflect.DeepEqual(got.GroupIDs, []string{"g1"}) {
		t.Fatalf("group ids: %v", got.GroupIDs)
	}
	wantVisible := []string{visibility.Friend("alice"), visibility.Friend("bob"), visibility.Friend("cara"), visibility.Group("g1")}
	if !reflect.DeepEqual(got.VisibleTo, wantVisible) {
		t.Fatalf("visible_to: want %v, got %v", wantVisible, got.VisibleTo)
	}
	if len(got.SharedFriends) != 2 || len(got.SharedGroups) != 1 {
		t.Fatalf("snapshots: %+v %+v", got.SharedFriends, got.SharedGroups)
	}

	if err := updates.RemoveFriend(ctx, "up1", "cara", nil); err != nil {
		t.Fatalf("remove friend: %v", err)
	}
	got, _ = updates.Get(ctx, "up1")
	if !reflect.DeepEqual(got.FriendIDs, []string{"bob"}) {
		t.Fatalf("friend ids after removal: %v", got.FriendIDs)
	}
	for _, id := range got.VisibleTo {
		if id == visibility.Friend("cara") {
			t.Fatal("visibility identifier survived removal")
		}
	}
	if _, ok := got.SharedFriends["cara"]; ok {
		t.Fatal("snapshot survived removal")
	}

	if err := updates.RemoveGroup(ctx, "up1", "g1", nil); err != nil {
		t.Fatalf("remove group: %v", err)
	}
	got, _ = updates.Get(ctx, "up1")
	if len(got.GroupIDs) != 0 || len(got.SharedGroups) != 0 {
		t.Fatalf("group share survived removal: %+v", got)
	}
}

func testUpdateSnapshots(t *testing.T, s store.Store) {
	ctx := context.Background()
	updates := s.Updates()

	u := &model.Update{
		UpdateID:      "up1",
		CreatorID:     "alice",
		Body:          "hello",
		FriendIDs:     []string{"bob"},
		VisibleTo:     visibility.Compute("alice", []string{"bob"}, nil),
		Creator:       model.ProfileSnapshot{Username: "alice"},
		SharedFriends: map[string]model.ProfileSnapshot{"bob": {Username: "bob"}},
		CreatedAt:     ts(0),
	}
	if err := updates.Create(ctx, u, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := updates.SetCreatorSnapshot(ctx, "up1", model.ProfileSnapshot{Username: "alice", Name: "Alice"}, nil); err != nil {
		t.Fatalf("set creator snapshot: %v", err)
	}
	if err := updates.SetFriendSnapshot(ctx, "up1", "bob", model.ProfileSnapshot{Username: "bobby"}, nil); err != nil {
		t.Fatalf("set friend snapshot: %v", err)
	}
	// Rewriting a non-recipient must not add one.
	if err := updates.SetFriendSnapshot(ctx, "up1", "mallory", model.ProfileSnapshot{Username: "mallory"}, nil); err != nil {
		t.Fatalf("set stranger snapshot: %v", err)
	}

	got, err := updates.Get(ctx, "up1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Creator.Name != "Alice" {
		t.Fatalf("creator snapshot: %+v", got.Creator)
	}
	if got.SharedFriends["bob"].Username != "bobby" {
		t.Fatalf("friend snapshot: %+v", got.SharedFriends)
	}
	if _, ok := got.SharedFriends["mallory"]; ok {
		t.Fatal("snapshot write added a recipient")
	}

	if err := updates.AddCommentCount(ctx, "up1", 1, nil); err != nil {
		t.Fatalf("add comment count: %v", err)
	}
	if err := updates.AddReactionCount(ctx, "up1", 1, nil); err != nil {
		t.Fatalf("add reaction count: %v", err)
	}
	if err := updates.AddReactionCount(ctx, "up1", -1, nil); err != nil {
		t.Fatalf("drop reaction count: %v", err)
	}
	got, _ = updates.Get(ctx, "up1")
	if got.CommentCount != 1 || got.ReactionCount != 0 {
		t.Fatalf("counters: %d %d", got.CommentCount, got.ReactionCount)
	}
}

func testUpdateListings(t *testing.T, s store.Store) {
	ctx := context.Background()
	updates := s.Updates()

	for i := 0; i < 5; i++ {
		u := &model.Update{
			UpdateID:   []string{"a", "b", "c", "d", "e"}[i],
			CreatorID:  "alice",
			Body:       "post",
			AllVillage: i%2 == 0,
			VisibleTo:  visibility.Compute("alice", nil, nil),
			CreatedAt:  ts(i),
		}
		if i == 4 {
			u.SharedFriends = map[string]model.ProfileSnapshot{"bob": {Username: "bob"}}
		}
		if err := updates.Create(ctx, u, nil); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	all, err := updates.ListAllVillageByCreator(ctx, "alice")
	if err != nil {
		t.Fatalf("list all-village: %v", err)
	}
	var ids []string
	for _, u := range all {
		ids = append(ids, u.UpdateID)
	}
	if !reflect.DeepEqual(ids, []string{"e", "c", "a"}) {
		t.Fatalf("all-village order: %v", ids)
	}

	page1, next, err := updates.ListByCreator(ctx, "alice", store.Page{Limit: 3})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if len(page1) != 3 || next == "" {
		t.Fatalf("page 1: %d items, cursor %q", len(page1), next)
	}
	page2, next, err := updates.ListByCreator(ctx, "alice", store.Page{Limit: 3, Cursor: next})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2) != 2 || next != "" {
		t.Fatalf("page 2: %d items, cursor %q", len(page2), next)
	}

	shared, err := updates.ListIDsBySharedFriend(ctx, "bob")
	if err != nil {
		t.Fatalf("list by shared friend: %v", err)
	}
	if !reflect.DeepEqual(shared, []string{"e"}) {
		t.Fatalf("shared-friend listing: %v", shared)
	}
}

func testComments(t *testing.T, s store.Store) {
	ctx := context.Background()
	comments := s.Comments()

	for i := 0; i < 5; i++ {
		c := &model.Comment{
			CommentID: []string{"c1", "c2", "c3", "c4", "c5"}[i],
			UpdateID:  "up1",
			AuthorID:  "bob",
			Author:    model.ProfileSnapshot{Username: "bob"},
			Body:      "nice",
			CreatedAt: ts(i),
		}
		if err := comments.Create(ctx, c, nil); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	// Threads read oldest first.
	page1, next, err := comments.List(ctx, "up1", store.Page{Limit: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, c := range page1 {
		ids = append(ids, c.CommentID)
	}
	if !reflect.DeepEqual(ids, []string{"c1", "c2", "c3"}) || next == "" {
		t.Fatalf("page 1: %v cursor %q", ids, next)
	}
	page2, next, err := comments.List(ctx, "up1", store.Page{Limit: 3, Cursor: next})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	ids = ids[:0]
	for _, c := range page2 {
		ids = append(ids, c.CommentID)
	}
	if !reflect.DeepEqual(ids, []string{"c4", "c5"}) || next != "" {
		t.Fatalf("page 2: %v cursor %q", ids, next)
	}

	if err := comments.SetAuthorSnapshot(ctx, "c1", model.ProfileSnapshot{Username: "bobby"}, nil); err != nil {
		t.Fatalf("set author snapshot: %v", err)
	}
	got, err := comments.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Author.Username != "bobby" {
		t.Fatalf("author snapshot: %+v", got.Author)
	}

	byAuthor, err := comments.ListIDsByAuthor(ctx, "bob")
	if err != nil {
		t.Fatalf("list by author: %v", err)
	}
	if len(byAuthor) != 5 {
		t.Fatalf("by author: %v", byAuthor)
	}
	if err := comments.Delete(ctx, "c1", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := comments.Get(ctx, "c1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
}

func testReactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	reactions := s.Reactions()

	re := &model.Reaction{UpdateID: "up1", UserID: "bob", Type: "heart", CreatedAt: ts(0)}
	if err := reactions.Put(ctx, re, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	replay := &model.Reaction{UpdateID: "up1", UserID: "bob", Type: "heart", CreatedAt: ts(9)}
	if err := reactions.Put(ctx, replay, nil); err != nil {
		t.Fatalf("replayed put: %v", err)
	}

	got, err := reactions.Get(ctx, "up1", "bob", "heart")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(ts(0)) {
		t.Fatalf("replay overwrote created_at: %v", got.CreatedAt)
	}

	other := &model.Reaction{UpdateID: "up1", UserID: "bob", Type: "laugh", CreatedAt: ts(1)}
	if err := reactions.Put(ctx, other, nil); err != nil {
		t.Fatalf("second type: %v", err)
	}
	byUpdate, err := reactions.ListByUpdate(ctx, "up1")
	if err != nil {
		t.Fatalf("list by update: %v", err)
	}
	if len(byUpdate) != 2 {
		t.Fatalf("by update: %d", len(byUpdate))
	}

	if err := reactions.Delete(ctx, "up1", "bob", "heart", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := reactions.Get(ctx, "up1", "bob", "heart"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
}

func testFeedEntries(t *testing.T, s store.Store) {
	ctx := context.Background()
	feeds := s.Feeds()

	e := &model.FeedEntry{OwnerID: "bob", UpdateID: "up1", CreatedAt: ts(0), DirectVisible: true, FriendID: "alice"}
	if err := feeds.Put(ctx, e, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	// A replay carrying extra group context keeps the original created_at.
	again := &model.FeedEntry{OwnerID: "bob", UpdateID: "up1", CreatedAt: ts(7), DirectVisible: true, FriendID: "alice", GroupIDs: []string{"g1"}}
	if err := feeds.Put(ctx, again, nil); err != nil {
		t.Fatalf("re-put: %v", err)
	}
	got, err := feeds.Get(ctx, "bob", "up1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(ts(0)) {
		t.Fatalf("created_at overwritten: %v", got.CreatedAt)
	}
	if !reflect.DeepEqual(got.GroupIDs, []string{"g1"}) {
		t.Fatalf("group ids not refreshed: %v", got.GroupIDs)
	}

	for i := 2; i < 6; i++ {
		e := &model.FeedEntry{OwnerID: "bob", UpdateID: fmt.Sprintf("up%d", i), CreatedAt: ts(i), DirectVisible: true}
		if err := feeds.Put(ctx, e, nil); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	items, next, err := feeds.List(ctx, "bob", store.Page{Limit: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, it := range items {
		ids = append(ids, it.UpdateID)
	}
	if !reflect.DeepEqual(ids, []string{"up5", "up4", "up3"}) || next == "" {
		t.Fatalf("feed page: %v cursor %q", ids, next)
	}

	owners, err := feeds.ListOwnersByUpdate(ctx, "up1")
	if err != nil {
		t.Fatalf("owners: %v", err)
	}
	if !reflect.DeepEqual(owners, []string{"bob"}) {
		t.Fatalf("owners: %v", owners)
	}
	if err := feeds.Delete(ctx, "bob", "up1", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := feeds.Get(ctx, "bob", "up1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
}

func testSummaryFold(t *testing.T, s store.Store) {
	ctx := context.Background()
	summaries := s.Summaries()
	pair := model.PairID("alice", "bob")

	first := &model.RelationshipSummary{
		PairID:       pair,
		CreatorID:    "alice",
		TargetID:     "bob",
		Summary:      "alice went climbing",
		LastUpdateID: "up1",
		UpdatedAt:    ts(1),
	}
	if err := summaries.Upsert(ctx, first, 1, nil); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := &model.RelationshipSummary{
		PairID:       pair,
		CreatorID:    "alice",
		TargetID:     "bob",
		Summary:      "alice went climbing, then baked bread",
		LastUpdateID: "up2",
		UpdatedAt:    ts(2),
	}
	if err := summaries.Upsert(ctx, second, 1, nil); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := summaries.Get(ctx, pair, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UpdateCount != 2 {
		t.Fatalf("update count: want 2, got %d", got.UpdateCount)
	}
	if got.LastUpdateID != "up2" || got.Summary != second.Summary {
		t.Fatalf("fold state: %+v", got)
	}

	// The reverse direction is independent state under the same pair id.
	reverse := &model.RelationshipSummary{
		PairID:       pair,
		CreatorID:    "bob",
		TargetID:     "alice",
		Summary:      "bob started running",
		LastUpdateID: "up9",
		UpdatedAt:    ts(3),
	}
	if err := summaries.Upsert(ctx, reverse, 1, nil); err != nil {
		t.Fatalf("reverse upsert: %v", err)
	}
	got, err = summaries.Get(ctx, pair, "bob")
	if err != nil {
		t.Fatalf("get reverse: %v", err)
	}
	if got.UpdateCount != 1 || got.TargetID != "alice" {
		t.Fatalf("reverse direction: %+v", got)
	}

	both, err := summaries.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(both) != 2 {
		t.Fatalf("list by user: %d rows", len(both))
	}
}

func testGroupMembership(t *testing.T, s store.Store) {
	ctx := context.Background()
	groups := s.Groups()

	g := &model.Group{
		GroupID:        "g1",
		Name:           "Climbers",
		Members:        []string{"alice"},
		MemberProfiles: map[string]model.ProfileSnapshot{"alice": {Username: "alice"}},
		CreatedAt:      ts(0),
		UpdatedAt:      ts(0),
	}
	if err := groups.Create(ctx, g, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := groups.AddMember(ctx, "g1", "bob", model.ProfileSnapshot{Username: "bob"}, nil); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := groups.AddMember(ctx, "g1", "bob", model.ProfileSnapshot{Username: "bob", Name: "Bob"}, nil); err != nil {
		t.Fatalf("re-add member: %v", err)
	}

	got, err := groups.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got.Members, []string{"alice", "bob"}) {
		t.Fatalf("members: %v", got.Members)
	}
	if got.MemberProfiles["bob"].Name != "Bob" {
		t.Fatalf("member snapshot not refreshed: %+v", got.MemberProfiles)
	}
	if len(got.MemberProfiles) != len(got.Members) {
		t.Fatalf("snapshot keys diverged from members: %+v", got)
	}

	if err := groups.SetMemberSnapshot(ctx, "g1", "ghost", model.ProfileSnapshot{Username: "ghost"}, nil); err != nil {
		t.Fatalf("set stranger snapshot: %v", err)
	}
	got, _ = groups.Get(ctx, "g1")
	if _, ok := got.MemberProfiles["ghost"]; ok {
		t.Fatal("snapshot write added a member")
	}

	if err := groups.RemoveMember(ctx, "g1", "bob", nil); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	got, _ = groups.Get(ctx, "g1")
	if len(got.Members) != 1 || len(got.MemberProfiles) != 1 {
		t.Fatalf("removal left residue: %+v", got)
	}
}

func testTimeBuckets(t *testing.T, s store.Store) {
	ctx := context.Background()
	buckets := s.TimeBuckets()

	if err := buckets.AddUser(ctx, "monday_9", "u1", nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := buckets.AddUser(ctx, "monday_9", "u1", nil); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if err := buckets.AddUser(ctx, "monday_9", "u2", nil); err != nil {
		t.Fatalf("add second: %v", err)
	}

	users, err := buckets.ListUsers(ctx, "monday_9")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(users, []string{"u1", "u2"}) {
		t.Fatalf("users: %v", users)
	}
	if _, err := buckets.Get(ctx, "monday_9"); err != nil {
		t.Fatalf("get bucket: %v", err)
	}

	if err := buckets.RemoveUser(ctx, "monday_9", "u1", nil); err != nil {
		t.Fatalf("remove: %v", err)
	}
	users, _ = buckets.ListUsers(ctx, "monday_9")
	if !reflect.DeepEqual(users, []string{"u2"}) {
		t.Fatalf("users after removal: %v", users)
	}
}

func testEventQueue(t *testing.T, s store.Store) {
	ctx := context.Background()
	events := s.Events()

	for _, agg := range []string{"a1", "a2", "a3"} {
		e := &model.Event{Type: "update_created", AggregateID: agg, Payload: []byte(`{}`)}
		if err := events.Append(ctx, e, nil); err != nil {
			t.Fatalf("append %s: %v", agg, err)
		}
	}

	claimed, err := events.Claim(ctx, 2, time.Hour)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 2 || claimed[0].AggregateID != "a1" || claimed[1].AggregateID != "a2" {
		t.Fatalf("claim order: %+v", claimed)
	}

	// Leased rows are invisible to a second claim.
	rest, err := events.Claim(ctx, 10, time.Hour)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(rest) != 1 || rest[0].AggregateID != "a3" {
		t.Fatalf("second claim: %+v", rest)
	}

	if err := events.MarkDone(ctx, claimed[0].ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if err := events.MarkFailed(ctx, claimed[1].ID, 3); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// Failed once: still pending, but not due until the backoff lapses.
	if again, _ := events.Claim(ctx, 10, time.Hour); len(again) != 0 {
		t.Fatalf("backoff ignored: %+v", again)
	}

	if err := events.MarkFailed(ctx, claimed[1].ID, 3); err != nil {
		t.Fatalf("mark failed 2: %v", err)
	}
	if err := events.MarkFailed(ctx, claimed[1].ID, 3); err != nil {
		t.Fatalf("mark failed 3: %v", err)
	}
	dead, err := events.ListByStatus(ctx, model.EventDead, 10)
	if err != nil {
		t.Fatalf("list dead: %v", err)
	}
	if len(dead) != 1 || dead[0].ID != claimed[1].ID || dead[0].AttemptCount != 3 {
		t.Fatalf("dead letter: %+v", dead)
	}

	counts, err := events.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[model.EventDone] != 1 || counts[model.EventDead] != 1 || counts[model.EventPending] != 1 {
		t.Fatalf("counts: %v", counts)
	}

	// Requeue resurrects a dead event with a fresh attempt budget.
	if err := events.Requeue(ctx, dead[0].ID); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	revived, err := events.Claim(ctx, 10, time.Hour)
	if err != nil {
		t.Fatalf("claim revived: %v", err)
	}
	if len(revived) != 1 || revived[0].ID != dead[0].ID || revived[0].AttemptCount != 0 {
		t.Fatalf("revived: %+v", revived)
	}

	if err := events.Requeue(ctx, claimed[0].ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("requeue non-dead: want ErrNotFound, got %v", err)
	}
}
