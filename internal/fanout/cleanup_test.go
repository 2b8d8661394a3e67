package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
)

func TestHandleUpdateDeletedRemovesDependents(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.profile(t, "alice", model.NotifyNone, "")
	f.profile(t, "bob", model.NotifyNone, "")

	f.update(t, &model.Update{UpdateID: "u1", CreatorID: "alice", Body: "oops", FriendIDs: []string{"bob"}, CreatedAt: ts(1)})
	for _, owner := range []string{"alice", "bob"} {
		e := &model.FeedEntry{OwnerID: owner, UpdateID: "u1", CreatedAt: ts(1), DirectVisible: true, FriendID: "alice"}
		if err := f.st.Feeds().Put(ctx, e, nil); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}
	for _, c := range []*model.Comment{
		{CommentID: "c1", UpdateID: "u1", AuthorID: "bob", Body: "ha", CreatedAt: ts(2)},
		{CommentID: "c2", UpdateID: "u1", AuthorID: "alice", Body: "anyway", CreatedAt: ts(3)},
	} {
		if err := f.st.Comments().Create(ctx, c, nil); err != nil {
			t.Fatalf("seed comment: %v", err)
		}
	}
	if err := f.st.Reactions().Put(ctx, &model.Reaction{UpdateID: "u1", UserID: "bob", Type: "heart", CreatedAt: ts(2)}, nil); err != nil {
		t.Fatalf("seed reaction: %v", err)
	}

	// The request path drops the row itself before the trigger fires.
	if err := f.st.Updates().Delete(ctx, "u1", nil); err != nil {
		t.Fatalf("delete update: %v", err)
	}

	payload := events.UpdateDeletedPayload{UpdateID: "u1", CreatorID: "alice"}
	if err := f.eng.HandleUpdateDeleted(ctx, payload); err != nil {
		t.Fatalf("HandleUpdateDeleted: %v", err)
	}

	for _, owner := range []string{"alice", "bob"} {
		if _, err := f.st.Feeds().Get(ctx, owner, "u1"); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("%s entry survived: %v", owner, err)
		}
	}
	for _, id := range []string{"c1", "c2"} {
		if _, err := f.st.Comments().Get(ctx, id); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("comment %s survived: %v", id, err)
		}
	}
	if _, err := f.st.Reactions().Get(ctx, "u1", "bob", "heart"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("reaction survived: %v", err)
	}

	// With everything gone a second delivery finds no dependents.
	if err := f.eng.HandleUpdateDeleted(ctx, payload); err != nil {
		t.Fatalf("redelivered HandleUpdateDeleted: %v", err)
	}
}

func TestHandleProfileDeletedCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.profile(t, "bob", model.NotifyAll, "tok-bob")
	f.profile(t, "cara", model.NotifyAll, "tok-cara")
	f.befriend(t, "bob", "cara", ts(0))
	if err := f.st.Profiles().AddFriendCount(ctx, "bob", 1, nil); err != nil {
		t.Fatalf("seed friend count: %v", err)
	}

	g := &model.Group{
		GroupID: "g1",
		Name:    "book club",
		Members: []string{"bob", "cara"},
		MemberProfiles: map[string]model.ProfileSnapshot{
			"bob": {Username: "bob"}, "cara": {Username: "cara"},
		},
		CreatedAt: ts(0),
		UpdatedAt: ts(0),
	}
	if err := f.st.Groups().Create(ctx, g, nil); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	if err := f.st.Phones().Put(ctx, "+4915200000077", "cara", nil); err != nil {
		t.Fatalf("seed phone: %v", err)
	}
	if err := f.st.TimeBuckets().AddUser(ctx, "monday_9", "cara", nil); err != nil {
		t.Fatalf("seed bucket: %v", err)
	}

	// Cara authored one update bob can see, and bob reacted to it.
	f.update(t, &model.Update{UpdateID: "cu1", CreatorID: "cara", Body: "mine", FriendIDs: []string{"bob"}, CreatedAt: ts(1)})
	for _, owner := range []string{"cara", "bob"} {
		e := &model.FeedEntry{OwnerID: owner, UpdateID: "cu1", CreatedAt: ts(1), DirectVisible: true, FriendID: "cara"}
		if err := f.st.Feeds().Put(ctx, e, nil); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}
	if err := f.st.Reactions().Put(ctx, &model.Reaction{UpdateID: "cu1", UserID: "bob", Type: "fire", CreatedAt: ts(2)}, nil); err != nil {
		t.Fatalf("seed reaction: %v", err)
	}

	// Bob authored one update cara engaged with.
	f.update(t, &model.Update{
		UpdateID:      "bu1",
		CreatorID:     "bob",
		Body:          "bob's news",
		FriendIDs:     []string{"cara"},
		SharedFriends: map[string]model.ProfileSnapshot{"cara": {Username: "cara"}},
		CreatedAt:     ts(1),
	})
	for _, owner := range []string{"bob", "cara"} {
		e := &model.FeedEntry{OwnerID: owner, UpdateID: "bu1", CreatedAt: ts(1), DirectVisible: true, FriendID: "bob"}
		if err := f.st.Feeds().Put(ctx, e, nil); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}
	if err := f.st.Comments().Create(ctx, &model.Comment{CommentID: "cc1", UpdateID: "bu1", AuthorID: "cara", Body: "lovely", CreatedAt: ts(3)}, nil); err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	if err := f.st.Updates().AddCommentCount(ctx, "bu1", 1, nil); err != nil {
		t.Fatalf("seed comment count: %v", err)
	}
	if err := f.st.Reactions().Put(ctx, &model.Reaction{UpdateID: "bu1", UserID: "cara", Type: "heart", CreatedAt: ts(3)}, nil); err != nil {
		t.Fatalf("seed reaction: %v", err)
	}
	if err := f.st.Updates().AddReactionCount(ctx, "bu1", 1, nil); err != nil {
		t.Fatalf("seed reaction count: %v", err)
	}

	pair := model.PairID("bob", "cara")
	for _, rs := range []*model.RelationshipSummary{
		{PairID: pair, CreatorID: "cara", TargetID: "bob", Summary: "cara so far", LastUpdateID: "cu1", UpdatedAt: ts(1)},
		{PairID: pair, CreatorID: "bob", TargetID: "cara", Summary: "bob so far", LastUpdateID: "bu1", UpdatedAt: ts(1)},
	} {
		if err := f.st.Summaries().Upsert(ctx, rs, 1, nil); err != nil {
			t.Fatalf("seed summary: %v", err)
		}
	}

	inv := &model.Invite{InviteID: "inv1", InviterID: "cara", Status: model.StatusPending, CreatedAt: ts(0), UpdatedAt: ts(0)}
	if err := f.st.Invites().Create(ctx, inv, nil); err != nil {
		t.Fatalf("seed invite: %v", err)
	}
	jr := &model.JoinRequest{RequestID: "jr1", RequesterID: "cara", ReceiverID: "bob", Status: model.StatusPending, CreatedAt: ts(0), UpdatedAt: ts(0)}
	if err := f.st.JoinRequests().Create(ctx, jr, nil); err != nil {
		t.Fatalf("seed join request: %v", err)
	}

	// The request path deletes the row and snapshots cleanup targets into
	// the event payload.
	if err := f.st.Profiles().Delete(ctx, "cara", nil); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	payload := events.ProfileDeletedPayload{
		UserID:      "cara",
		Phone:       "+4915200000077",
		FriendIDs:   []string{"bob"},
		GroupIDs:    []string{"g1"},
		NudgeBucket: "monday_9",
	}
	if err := f.eng.HandleProfileDeleted(ctx, payload); err != nil {
		t.Fatalf("HandleProfileDeleted: %v", err)
	}

	if _, err := f.st.Friendships().Get(ctx, "bob", "cara"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("bob/cara friendship survived: %v", err)
	}
	if _, err := f.st.Friendships().Get(ctx, "cara", "bob"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cara/bob friendship survived: %v", err)
	}
	bob, err := f.st.Profiles().Get(ctx, "bob")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if bob.FriendCount != 0 {
		t.Fatalf("bob.FriendCount = %d, want 0", bob.FriendCount)
	}

	// Cara's authored update went away with every dependent.
	if _, err := f.st.Updates().Get(ctx, "cu1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cu1 survived: %v", err)
	}
	if _, err := f.st.Feeds().Get(ctx, "bob", "cu1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("bob's cu1 entry survived: %v", err)
	}
	if _, err := f.st.Reactions().Get(ctx, "cu1", "bob", "fire"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("bob's reaction on cu1 survived: %v", err)
	}

	// Bob's update lost cara as recipient and her engagement.
	bu1, err := f.st.Updates().Get(ctx, "bu1")
	if err != nil {
		t.Fatalf("get bu1: %v", err)
	}
	if len(bu1.FriendIDs) != 0 {
		t.Fatalf("bu1 friend ids = %v", bu1.FriendIDs)
	}
	if _, ok := bu1.SharedFriends["cara"]; ok {
		t.Fatal("bu1 kept cara's snapshot")
	}
	if bu1.CommentCount != 0 || bu1.ReactionCount != 0 {
		t.Fatalf("bu1 counts = %d/%d, want 0/0", bu1.CommentCount, bu1.ReactionCount)
	}
	if _, err := f.st.Comments().Get(ctx, "cc1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cara's comment survived: %v", err)
	}
	if _, err := f.st.Reactions().Get(ctx, "bu1", "cara", "heart"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cara's reaction survived: %v", err)
	}
	if ids, _ := f.st.Feeds().ListUpdateIDsByOwner(ctx, "cara"); len(ids) != 0 {
		t.Fatalf("cara's feed survived: %v", ids)
	}
	// Bob keeps his own entry for his own update.
	if _, err := f.st.Feeds().Get(ctx, "bob", "bu1"); err != nil {
		t.Fatalf("bob's bu1 entry: %v", err)
	}

	if got, _ := f.st.Summaries().ListByUser(ctx, "bob"); len(got) != 0 {
		t.Fatalf("summaries survived: %+v", got)
	}
	if _, err := f.st.Invites().Get(ctx, "inv1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("invite survived: %v", err)
	}
	if _, err := f.st.JoinRequests().Get(ctx, "jr1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("join request survived: %v", err)
	}
	g1, err := f.st.Groups().Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if len(g1.Members) != 1 || g1.Members[0] != "bob" {
		t.Fatalf("group members = %v, want [bob]", g1.Members)
	}
	if _, ok := g1.MemberProfiles["cara"]; ok {
		t.Fatal("group kept cara's snapshot")
	}
	if _, err := f.st.Phones().Lookup(ctx, "+4915200000077"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("phone survived: %v", err)
	}
	if users, _ := f.st.TimeBuckets().ListUsers(ctx, "monday_9"); len(users) != 0 {
		t.Fatalf("bucket membership survived: %v", users)
	}

	// Redelivery must not decrement bob's counters again.
	if err := f.eng.HandleProfileDeleted(ctx, payload); err != nil {
		t.Fatalf("redelivered HandleProfileDeleted: %v", err)
	}
	bob, _ = f.st.Profiles().Get(ctx, "bob")
	if bob.FriendCount != 0 {
		t.Fatalf("bob.FriendCount after redelivery = %d", bob.FriendCount)
	}
	bu1, _ = f.st.Updates().Get(ctx, "bu1")
	if bu1.CommentCount != 0 || bu1.ReactionCount != 0 {
		t.Fatalf("bu1 counts after redelivery = %d/%d", bu1.CommentCount, bu1.ReactionCount)
	}
}
