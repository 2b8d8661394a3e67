package propagation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store/memory"
)

func ts(i int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC)
}

var (
	oldSnap = model.ProfileSnapshot{Username: "cara", Name: "Cara", Avatar: "old.png"}
	bobSnap = model.ProfileSnapshot{Username: "bob", Name: "Bob"}
)

// seedWorld builds every document kind that embeds cara's snapshot.
func seedWorld(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()

	for _, p := range []*model.Profile{
		{UserID: "bob", Username: "bob", Name: "Bob", Timezone: "UTC"},
		{UserID: "cara", Username: "cara", Name: "Cara", Avatar: "old.png", Phone: "+4915200000001", Timezone: "UTC"},
	} {
		if err := st.Profiles().Create(ctx, p, nil); err != nil {
			t.Fatalf("seed profile %s: %v", p.UserID, err)
		}
	}
	if err := st.Profiles().AddGroup(ctx, "cara", "g1", nil); err != nil {
		t.Fatalf("seed group membership: %v", err)
	}
	if err := st.Phones().Put(ctx, "+4915200000001", "cara", nil); err != nil {
		t.Fatalf("seed phone: %v", err)
	}

	rows := []*model.Friendship{
		{OwnerID: "bob", FriendID: "cara", Status: model.StatusAccepted, Friend: oldSnap, CreatedAt: ts(0), UpdatedAt: ts(0)},
		{OwnerID: "cara", FriendID: "bob", Status: model.StatusAccepted, Friend: bobSnap, CreatedAt: ts(0), UpdatedAt: ts(0)},
	}
	for _, r := range rows {
		if err := st.Friendships().Put(ctx, r, nil); err != nil {
			t.Fatalf("seed friendship: %v", err)
		}
	}

	g := &model.Group{
		GroupID: "g1",
		Name:    "garden",
		Members: []string{"bob", "cara"},
		MemberProfiles: map[string]model.ProfileSnapshot{
			"bob": bobSnap, "cara": oldSnap,
		},
		CreatedAt: ts(0),
		UpdatedAt: ts(0),
	}
	if err := st.Groups().Create(ctx, g, nil); err != nil {
		t.Fatalf("seed group: %v", err)
	}

	for _, u := range []*model.Update{
		{UpdateID: "cu1", CreatorID: "cara", Creator: oldSnap, Body: "hers", VisibleTo: []string{"friend:bob"}, FriendIDs: []string{"bob"}, CreatedAt: ts(1)},
		{UpdateID: "bu1", CreatorID: "bob", Creator: bobSnap, Body: "his", VisibleTo: []string{"friend:cara"}, FriendIDs: []string{"cara"},
			SharedFriends: map[string]model.ProfileSnapshot{"cara": oldSnap}, CreatedAt: ts(1)},
	} {
		if err := st.Updates().Create(ctx, u, nil); err != nil {
			t.Fatalf("seed update %s: %v", u.UpdateID, err)
		}
	}

	c := &model.Comment{CommentID: "cc1", UpdateID: "bu1", AuthorID: "cara", Author: oldSnap, Body: "neat", CreatedAt: ts(2)}
	if err := st.Comments().Create(ctx, c, nil); err != nil {
		t.Fatalf("seed comment: %v", err)
	}

	inv := &model.Invite{InviteID: "inv1", InviterID: "cara", Inviter: oldSnap, Status: model.StatusPending, CreatedAt: ts(0), UpdatedAt: ts(0)}
	if err := st.Invites().Create(ctx, inv, nil); err != nil {
		t.Fatalf("seed invite: %v", err)
	}
	for _, r := range []*model.JoinRequest{
		{RequestID: "jr1", RequesterID: "cara", ReceiverID: "bob", Requester: oldSnap, Receiver: bobSnap, Status: model.StatusPending, CreatedAt: ts(0), UpdatedAt: ts(0)},
		{RequestID: "jr2", RequesterID: "bob", ReceiverID: "cara", Requester: bobSnap, Receiver: oldSnap, Status: model.StatusPending, CreatedAt: ts(0), UpdatedAt: ts(0)},
	} {
		if err := st.JoinRequests().Create(ctx, r, nil); err != nil {
			t.Fatalf("seed join request %s: %v", r.RequestID, err)
		}
	}
}

func TestHandleProfileUpdatedRewritesEverySnapshot(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedWorld(t, st)
	eng := NewEngine(st, zerolog.Nop())

	payload := events.ProfileUpdatedPayload{
		UserID: "cara",
		Before: events.ProfileFields{Username: "cara", Name: "Cara", Avatar: "old.png", Phone: "+4915200000001"},
		After:  events.ProfileFields{Username: "cara", Name: "Cara Lin", Avatar: "new.png", Phone: "+4915200000002"},
	}
	if err := eng.HandleProfileUpdated(ctx, payload); err != nil {
		t.Fatalf("HandleProfileUpdated: %v", err)
	}

	check := func(where string, got model.ProfileSnapshot) {
		t.Helper()
		if got.Name != "Cara Lin" || got.Avatar != "new.png" {
			t.Fatalf("%s snapshot = %+v, want rewritten", where, got)
		}
	}
	fr, err := st.Friendships().Get(ctx, "bob", "cara")
	if err != nil {
		t.Fatalf("friendship: %v", err)
	}
	check("friendship", fr.Friend)
	g, err := st.Groups().Get(ctx, "g1")
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	check("group member", g.MemberProfiles["cara"])
	cu, err := st.Updates().Get(ctx, "cu1")
	if err != nil {
		t.Fatalf("cu1: %v", err)
	}
	check("update creator", cu.Creator)
	bu, err := st.Updates().Get(ctx, "bu1")
	if err != nil {
		t.Fatalf("bu1: %v", err)
	}
	check("recipient map", bu.SharedFriends["cara"])
	c, err := st.Comments().Get(ctx, "cc1")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	check("comment author", c.Author)
	inv, err := st.Invites().Get(ctx, "inv1")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	check("invite inviter", inv.Inviter)
	jr1, err := st.JoinRequests().Get(ctx, "jr1")
	if err != nil {
		t.Fatalf("jr1: %v", err)
	}
	check("request requester", jr1.Requester)
	jr2, err := st.JoinRequests().Get(ctx, "jr2")
	if err != nil {
		t.Fatalf("jr2: %v", err)
	}
	check("request receiver", jr2.Receiver)

	// Bob's own snapshots were not touched.
	if bu.Creator.Name != "Bob" {
		t.Fatalf("bu1 creator mutated: %+v", bu.Creator)
	}
	if fr2, _ := st.Friendships().Get(ctx, "cara", "bob"); fr2.Friend.Name != "Bob" {
		t.Fatalf("cara's row about bob mutated: %+v", fr2.Friend)
	}
	if jr1.Receiver.Name != "Bob" {
		t.Fatalf("jr1 receiver mutated: %+v", jr1.Receiver)
	}

	// The directory moved to the new number.
	if uid, err := st.Phones().Lookup(ctx, "+4915200000002"); err != nil || uid != "cara" {
		t.Fatalf("new phone lookup = %q, %v", uid, err)
	}
	if _, err := st.Phones().Lookup(ctx, "+4915200000001"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("old phone still mapped: %v", err)
	}

	// The same event again rewrites to the same state.
	if err := eng.HandleProfileUpdated(ctx, payload); err != nil {
		t.Fatalf("redelivered HandleProfileUpdated: %v", err)
	}
	fr, _ = st.Friendships().Get(ctx, "bob", "cara")
	check("friendship after redelivery", fr.Friend)
}

func TestHandleProfileUpdatedPhoneOnly(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedWorld(t, st)
	eng := NewEngine(st, zerolog.Nop())

	payload := events.ProfileUpdatedPayload{
		UserID: "cara",
		Before: events.ProfileFields{Username: "cara", Name: "Cara", Avatar: "old.png", Phone: "+4915200000001"},
		After:  events.ProfileFields{Username: "cara", Name: "Cara", Avatar: "old.png", Phone: "+4915200000003"},
	}
	if err := eng.HandleProfileUpdated(ctx, payload); err != nil {
		t.Fatalf("HandleProfileUpdated: %v", err)
	}

	if uid, err := st.Phones().Lookup(ctx, "+4915200000003"); err != nil || uid != "cara" {
		t.Fatalf("new phone lookup = %q, %v", uid, err)
	}
	// No identity change, so snapshots keep their seeded values.
	fr, _ := st.Friendships().Get(ctx, "bob", "cara")
	if fr.Friend.Avatar != "old.png" {
		t.Fatalf("phone-only event rewrote snapshots: %+v", fr.Friend)
	}
}

func TestHandleProfileUpdatedClearedPhone(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedWorld(t, st)
	eng := NewEngine(st, zerolog.Nop())

	payload := events.ProfileUpdatedPayload{
		UserID: "cara",
		Before: events.ProfileFields{Username: "cara", Name: "Cara", Avatar: "old.png", Phone: "+4915200000001"},
		After:  events.ProfileFields{Username: "cara", Name: "Cara", Avatar: "old.png"},
	}
	if err := eng.HandleProfileUpdated(ctx, payload); err != nil {
		t.Fatalf("HandleProfileUpdated: %v", err)
	}
	if _, err := st.Phones().Lookup(ctx, "+4915200000001"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cleared phone still mapped: %v", err)
	}
}

func TestHandleProfileUpdatedNoChange(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedWorld(t, st)
	eng := NewEngine(st, zerolog.Nop())

	same := events.ProfileFields{Username: "cara", Name: "Cara", Avatar: "old.png", Phone: "+4915200000001"}
	if err := eng.HandleProfileUpdated(ctx, events.ProfileUpdatedPayload{UserID: "cara", Before: same, After: same}); err != nil {
		t.Fatalf("HandleProfileUpdated: %v", err)
	}
	if uid, err := st.Phones().Lookup(ctx, "+4915200000001"); err != nil || uid != "cara" {
		t.Fatalf("no-op event touched the directory: %q, %v", uid, err)
	}
}
