package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// GroupService handles friend groups. The member set and the member
// snapshot map always move together so the keys-equal-members invariant
// holds after every statement.
type GroupService struct {
	store store.Store
}

func NewGroupService(s store.Store) *GroupService { return &GroupService{store: s} }

// CreateGroup creates a group with the caller plus the named friends as
// members, and records the membership on every member's profile.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID, name, icon string, memberIDs []string) (*model.Group, error) {
	if name == "" {
		return nil, fmt.Errorf("group name required: %w", model.ErrValidation)
	}
	friendSet, err := s.friendSet(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	members := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		if !friendSet[id] {
			return nil, fmt.Errorf("member %s is not a friend: %w", id, model.ErrValidation)
		}
		seen[id] = true
		members = append(members, id)
	}

	profs, err := s.store.Profiles().GetBatch(ctx, members)
	if err != nil {
		return nil, err
	}
	snaps := make(map[string]model.ProfileSnapshot, len(profs))
	for id, p := range profs {
		snaps[id] = model.SnapshotOf(p)
	}

	now := time.Now().UTC()
	g := &model.Group{
		GroupID:        uuid.NewString(),
		Name:           name,
		Icon:           icon,
		Members:        members,
		MemberProfiles: snaps,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	b := s.store.NewBatch()
	if err := s.store.Groups().Create(ctx, g, b); err != nil {
		return nil, err
	}
	for _, id := range members {
		if err := s.store.Profiles().AddGroup(ctx, id, g.GroupID, b); err != nil {
			return nil, err
		}
	}
	if err := b.Commit(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// GetGroup returns a group to one of its members.
func (s *GroupService) GetGroup(ctx context.Context, userID, groupID string) (*model.Group, error) {
	g, err := s.store.Groups().Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !contains(g.Members, userID) {
		return nil, fmt.Errorf("group %s: %w", groupID, model.ErrForbidden)
	}
	return g, nil
}

// AddMember adds one of the caller's friends to a group the caller belongs
// to. Adding an existing member is a no-op.
func (s *GroupService) AddMember(ctx context.Context, userID, groupID, memberID string) error {
	g, err := s.store.Groups().Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !contains(g.Members, userID) {
		return fmt.Errorf("group %s: %w", groupID, model.ErrForbidden)
	}
	if contains(g.Members, memberID) {
		return nil
	}
	friendSet, err := s.friendSet(ctx, userID)
	if err != nil {
		return err
	}
	if !friendSet[memberID] {
		return fmt.Errorf("member %s is not a friend: %w", memberID, model.ErrValidation)
	}
	p, err := s.store.Profiles().Get(ctx, memberID)
	if err != nil {
		return err
	}

	b := s.store.NewBatch()
	if err := s.store.Groups().AddMember(ctx, groupID, memberID, model.SnapshotOf(p), b); err != nil {
		return err
	}
	if err := s.store.Profiles().AddGroup(ctx, memberID, groupID, b); err != nil {
		return err
	}
	return b.Commit(ctx)
}

// Leave removes the caller from a group.
func (s *GroupService) Leave(ctx context.Context, userID, groupID string) error {
	g, err := s.store.Groups().Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !contains(g.Members, userID) {
		return fmt.Errorf("group %s: %w", groupID, model.ErrForbidden)
	}

	b := s.store.NewBatch()
	if err := s.store.Groups().RemoveMember(ctx, groupID, userID, b); err != nil {
		return err
	}
	if err := s.store.Profiles().RemoveGroup(ctx, userID, groupID, b); err != nil {
		return err
	}
	return b.Commit(ctx)
}

func (s *GroupService) friendSet(ctx context.Context, userID string) (map[string]bool, error) {
	ids, err := s.store.Friendships().ListIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
