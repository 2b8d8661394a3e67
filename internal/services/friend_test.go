package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
)

func TestAcceptJoinRequestCreatesFriendship(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedProfile(t, "alice")
	h.seedProfile(t, "bob")

	jr, err := h.friend.CreateJoinRequest(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if jr.Status != model.StatusPending || jr.Requester.Username != "alice" || jr.Receiver.Username != "bob" {
		t.Fatalf("unexpected request: %+v", jr)
	}

	if err := h.friend.AcceptJoinRequest(ctx, "bob", jr.RequestID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		f, err := h.st.Friendships().Get(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("friendship %s->%s: %v", pair[0], pair[1], err)
		}
		if f.Status != model.StatusAccepted || f.Friend.Username != pair[1] {
			t.Fatalf("friendship %s->%s malformed: %+v", pair[0], pair[1], f)
		}
	}
	for _, id := range []string{"alice", "bob"} {
		p, err := h.st.Profiles().Get(ctx, id)
		if err != nil {
			t.Fatalf("profile %s: %v", id, err)
		}
		if p.FriendCount != 1 {
			t.Fatalf("friend count for %s: %d", id, p.FriendCount)
		}
	}

	got, err := h.st.JoinRequests().Get(ctx, jr.RequestID)
	if err != nil || got.Status != model.StatusAccepted {
		t.Fatalf("request status: %+v %v", got, err)
	}

	evs := h.pendingEvents(t, events.TypeFriendshipCreated)
	if len(evs) != 2 {
		t.Fatalf("expected one event per direction row, got %d", len(evs))
	}
	owners := map[string]string{}
	for _, e := range evs {
		var fp events.FriendshipCreatedPayload
		decodePayload(t, e, &fp)
		owners[fp.OwnerID] = fp.FriendID
	}
	if owners["alice"] != "bob" || owners["bob"] != "alice" {
		t.Fatalf("unexpected event payloads: %v", owners)
	}
}

func TestCreateJoinRequestConflicts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedProfile(t, "alice")
	h.seedProfile(t, "bob")

	if _, err := h.friend.CreateJoinRequest(ctx, "alice", "alice"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("self request: expected ErrValidation, got %v", err)
	}

	if _, err := h.friend.CreateJoinRequest(ctx, "alice", "bob"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := h.friend.CreateJoinRequest(ctx, "alice", "bob"); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate request: expected ErrConflict, got %v", err)
	}
	if _, err := h.friend.CreateJoinRequest(ctx, "bob", "alice"); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("reverse request: expected ErrConflict, got %v", err)
	}
}

func TestCreateJoinRequestWhenAlreadyFriends(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedProfile(t, "alice")
	h.seedProfile(t, "bob")
	h.befriend(t, "alice", "bob")

	if _, err := h.friend.CreateJoinRequest(ctx, "alice", "bob"); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAcceptJoinRequestOnlyReceiver(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedProfile(t, "alice")
	h.seedProfile(t, "bob")

	jr, err := h.friend.CreateJoinRequest(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	if err := h.friend.AcceptJoinRequest(ctx, "alice", jr.RequestID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("requester accept: expected ErrForbidden, got %v", err)
	}

	if err := h.friend.RejectJoinRequest(ctx, "bob", jr.RequestID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := h.friend.AcceptJoinRequest(ctx, "bob", jr.RequestID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("accept after reject: expected ErrConflict, got %v", err)
	}
}

func TestInviteFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedProfile(t, "alice")

	inv, err := h.friend.CreateInvite(ctx, "alice", "+4915200000042")
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if inv.Status != model.StatusPending || inv.Inviter.Username != "alice" {
		t.Fatalf("unexpected invite: %+v", inv)
	}

	// The invited phone signs up.
	if _, err := h.profile.CreateProfile(ctx, &model.Profile{
		UserID:   "newbie",
		Username: "newbie",
		Phone:    "+4915200000042",
	}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := h.friend.AcceptInvite(ctx, "newbie", inv.InviteID); err != nil {
		t.Fatalf("accept invite: %v", err)
	}

	if _, err := h.st.Friendships().Get(ctx, "alice", "newbie"); err != nil {
		t.Fatalf("friendship missing: %v", err)
	}
	got, err := h.st.Invites().Get(ctx, inv.InviteID)
	if err != nil || got.Status != model.StatusAccepted {
		t.Fatalf("invite status: %+v %v", got, err)
	}
}

func TestCreateInviteForRegisteredPhone(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedProfile(t, "alice")
	h.seedProfile(t, "bob")
	if err := h.st.Phones().Put(ctx, "+491234", "bob", nil); err != nil {
		t.Fatalf("seed phone: %v", err)
	}

	if _, err := h.friend.CreateInvite(ctx, "alice", "+491234"); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAcceptInviteRequiresMatchingPhone(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedProfile(t, "alice")

	inv, err := h.friend.CreateInvite(ctx, "alice", "+495555")
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	if _, err := h.profile.CreateProfile(ctx, &model.Profile{UserID: "cara", Username: "cara", Phone: "+496666"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := h.friend.AcceptInvite(ctx, "cara", inv.InviteID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGetRelationshipSummaryDirection(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seedProfile(t, "alice")
	h.seedProfile(t, "bob")
	h.seedProfile(t, "mallory")
	h.befriend(t, "alice", "bob")

	// bob's updates as seen by alice.
	sum := &model.RelationshipSummary{
		PairID:       model.PairID("alice", "bob"),
		CreatorID:    "bob",
		TargetID:     "alice",
		Summary:      "bob planted roses",
		LastUpdateID: "u9",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := h.st.Summaries().Upsert(ctx, sum, 1, nil); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	got, err := h.friend.GetRelationshipSummary(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if got.Summary != "bob planted roses" || got.CreatorID != "bob" {
		t.Fatalf("wrong direction returned: %+v", got)
	}

	// The opposite direction has no state yet.
	if _, err := h.friend.GetRelationshipSummary(ctx, "bob", "alice"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := h.friend.GetRelationshipSummary(ctx, "mallory", "bob"); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("stranger: expected ErrForbidden, got %v", err)
	}
}
