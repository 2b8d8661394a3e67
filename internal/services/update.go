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
	"github.com/anjalik1505/town-functions-sub002/internal/visibility"
)

// UpdateService handles update creation, sharing, and feed reads. Fan-out to
// recipient feeds happens asynchronously in the trigger handlers; the request
// path only persists the update with its visibility set and snapshots.
type UpdateService struct {
	store store.Store
}

func NewUpdateService(s store.Store) *UpdateService { return &UpdateService{store: s} }

// CreateUpdate persists a new update. The caller sets creator, body,
// sentiment fields, and recipient lists; all_village resolves to the
// creator's current friend list. Snapshots and the visible_to set are
// captured here, and the creator's own latest-update cache advances in the
// same batch as the insert.
func (s *UpdateService) CreateUpdate(ctx context.Context, u *model.Update) (*model.Update, error) {
	creator, err := s.store.Profiles().Get(ctx, u.CreatorID)
	if err != nil {
		return nil, err
	}

	friendIDs, friendSet, err := s.friendSet(ctx, u.CreatorID)
	if err != nil {
		return nil, err
	}
	if u.AllVillage {
		u.FriendIDs = friendIDs
		u.GroupIDs = nil
	} else {
		for _, fid := range u.FriendIDs {
			if !friendSet[fid] {
				return nil, fmt.Errorf("recipient %s is not a friend: %w", fid, model.ErrValidation)
			}
		}
	}

	friends, groups, err := s.snapshotRecipients(ctx, u.CreatorID, u.FriendIDs, u.GroupIDs)
	if err != nil {
		return nil, err
	}

	if u.UpdateID == "" {
		u.UpdateID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	u.Creator = model.SnapshotOf(creator)
	u.SharedFriends = friends
	u.SharedGroups = groups
	u.VisibleTo = visibility.Compute(u.CreatorID, u.FriendIDs, u.GroupIDs)
	u.CommentCount = 0
	u.ReactionCount = 0

	ev, err := events.New(events.TypeUpdateCreated, u.UpdateID, events.UpdateCreatedPayload{
		UpdateID:  u.UpdateID,
		CreatorID: u.CreatorID,
	})
	if err != nil {
		return nil, err
	}

	b := s.store.NewBatch()
	if err := s.store.Updates().Create(ctx, u, b); err != nil {
		return nil, err
	}
	if err := s.store.Profiles().SetLastUpdate(ctx, u.CreatorID, u.UpdateID, u.Emoji, u.CreatedAt, b); err != nil {
		return nil, err
	}
	if err := s.store.Events().Append(ctx, ev, b); err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUpdate returns one update if the requester may view it.
func (s *UpdateService) GetUpdate(ctx context.Context, requesterID, updateID string) (*model.Update, error) {
	u, err := s.store.Updates().Get(ctx, updateID)
	if err != nil {
		return nil, err
	}
	if !visibility.CanView(requesterID, u.CreatorID, u.VisibleTo) {
		return nil, fmt.Errorf("update %s: %w", updateID, model.ErrForbidden)
	}
	return u, nil
}

// ListMyUpdates pages through the requester's own updates, newest first.
func (s *UpdateService) ListMyUpdates(ctx context.Context, userID string, page store.Page) ([]*model.Update, string, error) {
	return s.store.Updates().ListByCreator(ctx, userID, page)
}

// GetFeed pages through the requester's feed index and joins each entry to
// its update. Entries whose update is gone, or whose grant lapsed after a
// recipient removal, are skipped; the index row itself is only removed by
// the deletion cascades.
func (s *UpdateService) GetFeed(ctx context.Context, userID string, page store.Page) ([]*model.Update, string, error) {
	entries, next, err := s.store.Feeds().List(ctx, userID, page)
	if err != nil {
		return nil, "", err
	}
	out := make([]*model.Update, 0, len(entries))
	for _, fe := range entries {
		u, err := s.store.Updates().Get(ctx, fe.UpdateID)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		if !entryVisible(fe, u.CreatorID, u.VisibleTo) {
			continue
		}
		out = append(out, u)
	}
	return out, next, nil
}

// entryVisible re-checks a feed entry's grant against the update's current
// visible_to. Direct entries use the plain friend-or-creator check; group
// entries hold as long as any granting group is still a recipient.
func entryVisible(fe *model.FeedEntry, creatorID string, visibleTo []string) bool {
	if fe.DirectVisible || fe.OwnerID == creatorID {
		return visibility.CanView(fe.OwnerID, creatorID, visibleTo)
	}
	for _, gid := range fe.GroupIDs {
		if visibility.Contains(visibleTo, visibility.Group(gid)) {
			return true
		}
	}
	return false
}

// DeleteUpdate removes an update. Feed entries, comments, and reactions are
// cleaned up by the deletion trigger.
func (s *UpdateService) DeleteUpdate(ctx context.Context, userID, updateID string) error {
	u, err := s.store.Updates().Get(ctx, updateID)
	if err != nil {
		return err
	}
	if u.CreatorID != userID {
		return fmt.Errorf("update %s: %w", updateID, model.ErrForbidden)
	}

	ev, err := events.New(events.TypeUpdateDeleted, updateID, events.UpdateDeletedPayload{
		UpdateID:  updateID,
		CreatorID: u.CreatorID,
	})
	if err != nil {
		return err
	}

	b := s.store.NewBatch()
	if err := s.store.Updates().Delete(ctx, updateID, b); err != nil {
		return err
	}
	if err := s.store.Events().Append(ctx, ev, b); err != nil {
		return err
	}
	return b.Commit(ctx)
}

// ShareUpdate extends an update's audience. Only genuinely new recipients
// are unioned in and carried on the share event, so repeating a share call
// is a no-op end to end.
func (s *UpdateService) ShareUpdate(ctx context.Context, userID, updateID string, friendIDs, groupIDs []string) (*model.Update, error) {
	u, err := s.store.Updates().Get(ctx, updateID)
	if err != nil {
		return nil, err
	}
	if u.CreatorID != userID {
		return nil, fmt.Errorf("update %s: %w", updateID, model.ErrForbidden)
	}

	addFriends := missing(u.FriendIDs, friendIDs)
	addGroups := missing(u.GroupIDs, groupIDs)
	if len(addFriends) == 0 && len(addGroups) == 0 {
		return u, nil
	}

	_, friendSet, err := s.friendSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, fid := range addFriends {
		if !friendSet[fid] {
			return nil, fmt.Errorf("recipient %s is not a friend: %w", fid, model.ErrValidation)
		}
	}

	friends, groups, err := s.snapshotRecipients(ctx, userID, addFriends, addGroups)
	if err != nil {
		return nil, err
	}

	add := model.ShareTargets{
		FriendIDs: addFriends,
		GroupIDs:  addGroups,
		Friends:   friends,
		Groups:    groups,
	}
	ev, err := events.New(events.TypeUpdateShared, updateID, events.UpdateSharedPayload{
		UpdateID:       updateID,
		CreatorID:      userID,
		AddedFriendIDs: addFriends,
		AddedGroupIDs:  addGroups,
	})
	if err != nil {
		return nil, err
	}

	b := s.store.NewBatch()
	if err := s.store.Updates().Share(ctx, updateID, add, b); err != nil {
		return nil, err
	}
	if err := s.store.Events().Append(ctx, ev, b); err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.Updates().Get(ctx, updateID)
}

// RemoveFriendRecipient revokes one friend's visibility. The feed index row
// stays until a deletion cascade; feed reads filter on visible_to.
func (s *UpdateService) RemoveFriendRecipient(ctx context.Context, userID, updateID, friendID string) error {
	u, err := s.store.Updates().Get(ctx, updateID)
	if err != nil {
		return err
	}
	if u.CreatorID != userID {
		return fmt.Errorf("update %s: %w", updateID, model.ErrForbidden)
	}
	return s.store.Updates().RemoveFriend(ctx, updateID, friendID, nil)
}

// RemoveGroupRecipient revokes one group's visibility.
func (s *UpdateService) RemoveGroupRecipient(ctx context.Context, userID, updateID, groupID string) error {
	u, err := s.store.Updates().Get(ctx, updateID)
	if err != nil {
		return err
	}
	if u.CreatorID != userID {
		return fmt.Errorf("update %s: %w", updateID, model.ErrForbidden)
	}
	return s.store.Updates().RemoveGroup(ctx, updateID, groupID, nil)
}

// friendSet returns the creator's accepted friends as both an ordered list
// and a set.
func (s *UpdateService) friendSet(ctx context.Context, userID string) ([]string, map[string]bool, error) {
	ids, err := s.store.Friendships().ListIDs(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return ids, set, nil
}

// snapshotRecipients captures profile snapshots for friend recipients and
// group snapshots for group recipients, checking the creator belongs to
// every named group. Friends whose profile vanished are dropped from the
// snapshot map; their ids still gate visibility.
func (s *UpdateService) snapshotRecipients(ctx context.Context, creatorID string, friendIDs, groupIDs []string) (map[string]model.ProfileSnapshot, map[string]model.GroupSnapshot, error) {
	var friends map[string]model.ProfileSnapshot
	if len(friendIDs) > 0 {
		profs, err := s.store.Profiles().GetBatch(ctx, friendIDs)
		if err != nil {
			return nil, nil, err
		}
		friends = make(map[string]model.ProfileSnapshot, len(profs))
		for id, p := range profs {
			friends[id] = model.SnapshotOf(p)
		}
	}

	var groups map[string]model.GroupSnapshot
	if len(groupIDs) > 0 {
		gs, err := s.store.Groups().GetBatch(ctx, groupIDs)
		if err != nil {
			return nil, nil, err
		}
		groups = make(map[string]model.GroupSnapshot, len(gs))
		for _, gid := range groupIDs {
			g, ok := gs[gid]
			if !ok {
				return nil, nil, fmt.Errorf("group %s: %w", gid, model.ErrValidation)
			}
			if !contains(g.Members, creatorID) {
				return nil, nil, fmt.Errorf("group %s: %w", gid, model.ErrForbidden)
			}
			groups[gid] = model.GroupSnapshot{Name: g.Name, Icon: g.Icon}
		}
	}
	return friends, groups, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// missing returns the members of want not already in have, deduplicated,
// preserving want's order.
func missing(have, want []string) []string {
	set := make(map[string]bool, len(have))
	for _, id := range have {
		set[id] = true
	}
	var out []string
	for _, id := range want {
		if set[id] {
			continue
		}
		set[id] = true
		out = append(out, id)
	}
	return out
}
