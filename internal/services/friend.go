package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// FriendService handles invites, join requests, and the friendship records
// they produce. Friendship creation always writes both direction rows, both
// counters, and one friendship_created event per row in a single batch; the
// historical backfill runs from the trigger side.
type FriendService struct {
	store store.Store
}

func NewFriendService(s store.Store) *FriendService { return &FriendService{store: s} }

// CreateInvite records a phone invitation. Phones already registered belong
// to existing users, who should be reached with a join request instead.
func (s *FriendService) CreateInvite(ctx context.Context, inviterID, phone string) (*model.Invite, error) {
	inviter, err := s.store.Profiles().Get(ctx, inviterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Phones().Lookup(ctx, phone); err == nil {
		return nil, fmt.Errorf("phone belongs to an existing user: %w", model.ErrConflict)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	inv := &model.Invite{
		InviteID:  uuid.NewString(),
		InviterID: inviterID,
		Inviter:   model.SnapshotOf(inviter),
		Phone:     phone,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Invites().Create(ctx, inv, nil); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvites returns the invites the user has sent.
func (s *FriendService) ListInvites(ctx context.Context, inviterID string) ([]*model.Invite, error) {
	return s.store.Invites().ListByInviter(ctx, inviterID)
}

// AcceptInvite turns a pending invite into a friendship. The acceptor must
// own the invited phone number.
func (s *FriendService) AcceptInvite(ctx context.Context, userID, inviteID string) error {
	inv, err := s.store.Invites().Get(ctx, inviteID)
	if err != nil {
		return err
	}
	if inv.Status != model.StatusPending {
		return fmt.Errorf("invite %s already %s: %w", inviteID, inv.Status, model.ErrConflict)
	}
	acceptor, err := s.store.Profiles().Get(ctx, userID)
	if err != nil {
		return err
	}
	if acceptor.Phone == "" || acceptor.Phone != inv.Phone {
		return fmt.Errorf("invite %s: %w", inviteID, model.ErrForbidden)
	}

	b := s.store.NewBatch()
	if err := s.store.Invites().SetStatus(ctx, inviteID, model.StatusAccepted, b); err != nil {
		return err
	}
	if err := s.createFriendship(ctx, b, inv.InviterID, userID); err != nil {
		return err
	}
	return b.Commit(ctx)
}

// CreateJoinRequest asks an existing user for friendship. Conflicts: already
// friends, or a pending request in either direction.
func (s *FriendService) CreateJoinRequest(ctx context.Context, requesterID, receiverID string) (*model.JoinRequest, error) {
	if requesterID == receiverID {
		return nil, fmt.Errorf("cannot befriend yourself: %w", model.ErrValidation)
	}
	requester, err := s.store.Profiles().Get(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.store.Profiles().Get(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Friendships().Get(ctx, requesterID, receiverID); err == nil {
		return nil, fmt.Errorf("already friends: %w", model.ErrConflict)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	for _, pair := range [][2]string{{requesterID, receiverID}, {receiverID, requesterID}} {
		r, err := s.store.JoinRequests().GetByPair(ctx, pair[0], pair[1])
		if err == nil && r.Status == model.StatusPending {
			return nil, fmt.Errorf("request already pending: %w", model.ErrConflict)
		}
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	jr := &model.JoinRequest{
		RequestID:   uuid.NewString(),
		RequesterID: requesterID,
		ReceiverID:  receiverID,
		Requester:   model.SnapshotOf(requester),
		Receiver:    model.SnapshotOf(receiver),
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.JoinRequests().Create(ctx, jr, nil); err != nil {
		return nil, err
	}
	return jr, nil
}

// ListJoinRequests returns requests involving the user in either role.
func (s *FriendService) ListJoinRequests(ctx context.Context, userID string) ([]*model.JoinRequest, error) {
	return s.store.JoinRequests().ListByUser(ctx, userID)
}

// AcceptJoinRequest accepts a pending request addressed to the caller and
// creates the friendship in the same batch as the status flip.
func (s *FriendService) AcceptJoinRequest(ctx context.Context, userID, requestID string) error {
	jr, err := s.store.JoinRequests().Get(ctx, requestID)
	if err != nil {
		return err
	}
	if jr.ReceiverID != userID {
		return fmt.Errorf("request %s: %w", requestID, model.ErrForbidden)
	}
	if jr.Status != model.StatusPending {
		return fmt.Errorf("request %s already %s: %w", requestID, jr.Status, model.ErrConflict)
	}

	b := s.store.NewBatch()
	if err := s.store.JoinRequests().SetStatus(ctx, requestID, model.StatusAccepted, b); err != nil {
		return err
	}
	if err := s.createFriendship(ctx, b, jr.RequesterID, jr.ReceiverID); err != nil {
		return err
	}
	return b.Commit(ctx)
}

// RejectJoinRequest declines a pending request addressed to the caller.
func (s *FriendService) RejectJoinRequest(ctx context.Context, userID, requestID string) error {
	jr, err := s.store.JoinRequests().Get(ctx, requestID)
	if err != nil {
		return err
	}
	if jr.ReceiverID != userID {
		return fmt.Errorf("request %s: %w", requestID, model.ErrForbidden)
	}
	if jr.Status != model.StatusPending {
		return fmt.Errorf("request %s already %s: %w", requestID, jr.Status, model.ErrConflict)
	}
	return s.store.JoinRequests().SetStatus(ctx, requestID, model.StatusRejected, nil)
}

// ListFriends pages through the user's friendship rows, which carry the
// counterpart snapshot and latest-update cache the client renders.
func (s *FriendService) ListFriends(ctx context.Context, userID string, page store.Page) ([]*model.Friendship, string, error) {
	return s.store.Friendships().List(ctx, userID, page)
}

// GetRelationshipSummary returns the fold of the friend's updates as seen by
// the caller.
func (s *FriendService) GetRelationshipSummary(ctx context.Context, userID, friendID string) (*model.RelationshipSummary, error) {
	if _, err := s.store.Friendships().Get(ctx, userID, friendID); errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("summary for %s: %w", friendID, model.ErrForbidden)
	} else if err != nil {
		return nil, err
	}
	return s.store.Summaries().Get(ctx, model.PairID(userID, friendID), friendID)
}

// createFriendship queues both direction rows, both counters, and one event
// per row onto b. The mirror event lets either side observe the creation;
// the backfill handler acts only on the primary direction.
func (s *FriendService) createFriendship(ctx context.Context, b store.Batch, aID, bID string) error {
	profs, err := s.store.Profiles().GetBatch(ctx, []string{aID, bID})
	if err != nil {
		return err
	}
	pa, pb := profs[aID], profs[bID]
	if pa == nil || pb == nil {
		return fmt.Errorf("friendship %s/%s: %w", aID, bID, model.ErrNotFound)
	}
	if _, err := s.store.Friendships().Get(ctx, aID, bID); err == nil {
		return fmt.Errorf("already friends: %w", model.ErrConflict)
	} else if !errors.Is(err, model.ErrNotFound) {
		return err
	}

	now := time.Now().UTC()
	rows := []*model.Friendship{
		{OwnerID: aID, FriendID: bID, Status: model.StatusAccepted, Friend: model.SnapshotOf(pb), CreatedAt: now, UpdatedAt: now},
		{OwnerID: bID, FriendID: aID, Status: model.StatusAccepted, Friend: model.SnapshotOf(pa), CreatedAt: now, UpdatedAt: now},
	}
	for _, row := range rows {
		if err := s.store.Friendships().Put(ctx, row, b); err != nil {
			return err
		}
		if err := s.store.Profiles().AddFriendCount(ctx, row.OwnerID, 1, b); err != nil {
			return err
		}
		ev, err := events.New(events.TypeFriendshipCreated, row.OwnerID, events.FriendshipCreatedPayload{
			OwnerID:  row.OwnerID,
			FriendID: row.FriendID,
		})
		if err != nil {
			return err
		}
		if err := s.store.Events().Append(ctx, ev, b); err != nil {
			return err
		}
	}
	return nil
}
