package memory

import (
	"context"
	"sort"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
	"github.com/anjalik1505/town-functions-sub002/internal/visibility"
)

type updates struct{ s *Store }

func cloneUpdate(u model.Update) *model.Update {
	u.FriendIDs = dup(u.FriendIDs)
	u.GroupIDs = dup(u.GroupIDs)
	u.VisibleTo = dup(u.VisibleTo)
	u.SharedFriends = dupSnaps(u.SharedFriends)
	u.SharedGroups = dupGroupSnaps(u.SharedGroups)
	return &u
}

func (r *updates) Create(ctx context.Context, u *model.Update, b store.Batch) error {
	stored := *cloneUpdate(*u)
	return r.s.apply(b, memOp{
		insertKey: memKey("updates", stored.UpdateID),
		conflicts: func(s *Store) bool { _, ok := s.updates[stored.UpdateID]; return ok },
		apply:     func(s *Store) { s.updates[stored.UpdateID] = stored },
	})
}

func (r *updates) Get(ctx context.Context, updateID string) (*model.Update, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.updates[updateID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneUpdate(u), nil
}

func (r *updates) ListByCreator(ctx context.Context, creatorID string, page store.Page) ([]*model.Update, string, error) {
	key := store.UpdatesQueryKey(creatorID)
	limit := page.Clamp()

	r.s.mu.RLock()
	var all []model.Update
	for _, u := range r.s.updates {
		if u.CreatorID == creatorID {
			all = append(all, u)
		}
	}
	r.s.mu.RUnlock()

	sortUpdatesDesc(all)

	if page.Cursor != "" {
		at, id, ok := store.DecodeCursor(page.Cursor, key)
		if !ok {
			return nil, "", nil
		}
		all = after(all, func(u model.Update) (time.Time, string) { return u.CreatedAt, u.UpdateID }, at, id)
	}

	var out []*model.Update
	for i := 0; i < len(all) && i < limit; i++ {
		out = append(out, cloneUpdate(all[i]))
	}
	next := ""
	if len(all) > limit {
		last := out[len(out)-1]
		next = store.EncodeCursor(key, last.CreatedAt, last.UpdateID)
	}
	return out, next, nil
}

func (r *updates) ListAllVillageByCreator(ctx context.Context, creatorID string) ([]*model.Update, error) {
	r.s.mu.RLock()
	var all []model.Update
	for _, u := range r.s.updates {
		if u.CreatorID == creatorID && u.AllVillage {
			all = append(all, u)
		}
	}
	r.s.mu.RUnlock()

	sortUpdatesDesc(all)
	out := make([]*model.Update, 0, len(all))
	for _, u := range all {
		out = append(out, cloneUpdate(u))
	}
	return out, nil
}

func sortUpdatesDesc(all []model.Update) {
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].UpdateID > all[j].UpdateID
	})
}

func (r *updates) ListIDsByCreator(ctx context.Context, creatorID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []string
	for id, u := range r.s.updates {
		if u.CreatorID == creatorID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *updates) ListIDsBySharedFriend(ctx context.Context, userID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []string
	for id, u := range r.s.updates {
		if _, ok := u.SharedFriends[userID]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *updates) Share(ctx context.Context, updateID string, add model.ShareTargets, b store.Batch) error {
	friendIDs := dup(add.FriendIDs)
	groupIDs := dup(add.GroupIDs)
	friends := dupSnaps(add.Friends)
	groupSnaps := dupGroupSnaps(add.Groups)
	return r.mutate(b, updateID, func(s *Store, u *model.Update) {
		for _, id := range friendIDs {
			u.FriendIDs = appendMissing(u.FriendIDs, id)
			u.VisibleTo = appendMissing(u.VisibleTo, visibility.Friend(id))
		}
		for _, id := range groupIDs {
			u.GroupIDs = appendMissing(u.GroupIDs, id)
			u.VisibleTo = appendMissing(u.VisibleTo, visibility.Group(id))
		}
		if len(friends) > 0 && u.SharedFriends == nil {
			u.SharedFriends = map[string]model.ProfileSnapshot{}
		}
		for id, snap := range friends {
			u.SharedFriends[id] = snap
		}
		if len(groupSnaps) > 0 && u.SharedGroups == nil {
			u.SharedGroups = map[string]model.GroupSnapshot{}
		}
		for id, snap := range groupSnaps {
			u.SharedGroups[id] = snap
		}
	})
}

func (r *updates) RemoveFriend(ctx context.Context, updateID, friendID string, b store.Batch) error {
	return r.mutate(b, updateID, func(s *Store, u *model.Update) {
		u.FriendIDs = removeString(u.FriendIDs, friendID)
		u.VisibleTo = removeString(u.VisibleTo, visibility.Friend(friendID))
		delete(u.SharedFriends, friendID)
	})
}

func (r *updates) RemoveGroup(ctx context.Context, updateID, groupID string, b store.Batch) error {
	return r.mutate(b, updateID, func(s *Store, u *model.Update) {
		u.GroupIDs = removeString(u.GroupIDs, groupID)
		u.VisibleTo = removeString(u.VisibleTo, visibility.Group(groupID))
		delete(u.SharedGroups, groupID)
	})
}

func (r *updates) SetCreatorSnapshot(ctx context.Context, updateID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.mutate(b, updateID, func(s *Store, u *model.Update) { u.Creator = snap })
}

func (r *updates) SetFriendSnapshot(ctx context.Context, updateID, userID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.mutate(b, updateID, func(s *Store, u *model.Update) {
		if _, ok := u.SharedFriends[userID]; ok {
			u.SharedFriends[userID] = snap
		}
	})
}

func (r *updates) AddCommentCount(ctx context.Context, updateID string, delta int, b store.Batch) error {
	return r.mutate(b, updateID, func(s *Store, u *model.Update) { u.CommentCount += delta })
}

func (r *updates) AddReactionCount(ctx context.Context, updateID string, delta int, b store.Batch) error {
	return r.mutate(b, updateID, func(s *Store, u *model.Update) { u.ReactionCount += delta })
}

func (r *updates) mutate(b store.Batch, updateID string, fn func(*Store, *model.Update)) error {
	return r.s.apply(b, memOp{apply: func(s *Store) {
		u, ok := s.updates[updateID]
		if !ok {
			return
		}
		c := *cloneUpdate(u)
		fn(s, &c)
		s.updates[updateID] = c
	}})
}

func (r *updates) Delete(ctx context.Context, updateID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { delete(s.updates, updateID) }})
}
