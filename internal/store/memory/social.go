package memory

import (
	"context"
	"sort"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type friendships struct{ s *Store }

func cloneFriendship(f model.Friendship) *model.Friendship {
	f.LastUpdateAt = dupTime(f.LastUpdateAt)
	return &f
}

// Put inserts or refreshes one direction row. On refresh only status, the
// snapshot, and updated_at change; created_at and the last-update cache
// survive, as in the SQL upsert.
func (r *friendships) Put(ctx context.Context, f *model.Friendship, b store.Batch) error {
	stored := *cloneFriendship(*f)
	return r.s.apply(b, memOp{apply: func(s *Store) {
		rows, ok := s.friendships[stored.OwnerID]
		if !ok {
			rows = map[string]model.Friendship{}
			s.friendships[stored.OwnerID] = rows
		}
		if prev, ok := rows[stored.FriendID]; ok {
			prev.Status = stored.Status
			prev.Friend = stored.Friend
			prev.UpdatedAt = stored.UpdatedAt
			rows[stored.FriendID] = prev
			return
		}
		rows[stored.FriendID] = stored
	}})
}

func (r *friendships) Get(ctx context.Context, ownerID, friendID string) (*model.Friendship, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.friendships[ownerID][friendID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneFriendship(f), nil
}

func (r *friendships) List(ctx context.Context, ownerID string, page store.Page) ([]*model.Friendship, string, error) {
	key := store.FriendsQueryKey(ownerID)
	limit := page.Clamp()

	r.s.mu.RLock()
	all := make([]model.Friendship, 0, len(r.s.friendships[ownerID]))
	for _, f := range r.s.friendships[ownerID] {
		all = append(all, f)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].FriendID > all[j].FriendID
	})

	if page.Cursor != "" {
		at, id, ok := store.DecodeCursor(page.Cursor, key)
		if !ok {
			return nil, "", nil
		}
		all = after(all, func(f model.Friendship) (time.Time, string) { return f.CreatedAt, f.FriendID }, at, id)
	}

	var out []*model.Friendship
	for i := 0; i < len(all) && i < limit; i++ {
		out = append(out, cloneFriendship(all[i]))
	}
	next := ""
	if len(all) > limit {
		last := out[len(out)-1]
		next = store.EncodeCursor(key, last.CreatedAt, last.FriendID)
	}
	return out, next, nil
}

func (r *friendships) ListIDs(ctx context.Context, ownerID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []string
	for id := range r.s.friendships[ownerID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (r *friendships) SetFriendSnapshot(ctx context.Context, ownerID, friendID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.mutate(b, ownerID, friendID, func(s *Store, f *model.Friendship) {
		f.Friend = snap
	})
}

func (r *friendships) SetLastUpdate(ctx context.Context, ownerID, friendID, emoji string, at time.Time, b store.Batch) error {
	return r.mutate(b, ownerID, friendID, func(s *Store, f *model.Friendship) {
		if f.LastUpdateAt != nil && f.LastUpdateAt.After(at) {
			return
		}
		f.LastUpdateEmoji = emoji
		t := at
		f.LastUpdateAt = &t
	})
}

func (r *friendships) mutate(b store.Batch, ownerID, friendID string, fn func(*Store, *model.Friendship)) error {
	return r.s.apply(b, memOp{apply: func(s *Store) {
		f, ok := s.friendships[ownerID][friendID]
		if !ok {
			return
		}
		fn(s, &f)
		f.UpdatedAt = s.Now()
		s.friendships[ownerID][friendID] = f
	}})
}

func (r *friendships) Delete(ctx context.Context, ownerID, friendID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { delete(s.friendships[ownerID], friendID) }})
}

// after drops rows at or before the cursor position in a descending listing.
func after[T any](all []T, keyOf func(T) (time.Time, string), at time.Time, id string) []T {
	out := all[:0]
	for _, v := range all {
		vAt, vID := keyOf(v)
		if vAt.Before(at) || (vAt.Equal(at) && vID < id) {
			out = append(out, v)
		}
	}
	return out
}

type invites struct{ s *Store }

func (r *invites) Create(ctx context.Context, inv *model.Invite, b store.Batch) error {
	stored := *inv
	return r.s.apply(b, memOp{
		insertKey: memKey("invites", stored.InviteID),
		conflicts: func(s *Store) bool { _, ok := s.invites[stored.InviteID]; return ok },
		apply:     func(s *Store) { s.invites[stored.InviteID] = stored },
	})
}

func (r *invites) Get(ctx context.Context, inviteID string) (*model.Invite, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invites[inviteID]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := inv
	return &c, nil
}

func (r *invites) ListByInviter(ctx context.Context, inviterID string) ([]*model.Invite, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Invite
	for _, inv := range r.s.invites {
		if inv.InviterID == inviterID {
			c := inv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *invites) SetStatus(ctx context.Context, inviteID, status string, b store.Batch) error {
	return r.mutate(b, inviteID, func(s *Store, inv *model.Invite) { inv.Status = status })
}

func (r *invites) SetInviterSnapshot(ctx context.Context, inviteID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.mutate(b, inviteID, func(s *Store, inv *model.Invite) { inv.Inviter = snap })
}

func (r *invites) mutate(b store.Batch, inviteID string, fn func(*Store, *model.Invite)) error {
	return r.s.apply(b, memOp{apply: func(s *Store) {
		inv, ok := s.invites[inviteID]
		if !ok {
			return
		}
		fn(s, &inv)
		inv.UpdatedAt = s.Now()
		s.invites[inviteID] = inv
	}})
}

func (r *invites) Delete(ctx context.Context, inviteID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { delete(s.invites, inviteID) }})
}

type joinRequests struct{ s *Store }

func (r *joinRequests) Create(ctx context.Context, jr *model.JoinRequest, b store.Batch) error {
	stored := *jr
	return r.s.apply(b, memOp{
		insertKey: memKey("join_requests", stored.RequesterID, stored.ReceiverID),
		conflicts: func(s *Store) bool {
			if _, ok := s.joinRequests[stored.RequestID]; ok {
				return true
			}
			for _, ex := range s.joinRequests {
				if ex.RequesterID == stored.RequesterID && ex.ReceiverID == stored.ReceiverID {
					return true
				}
			}
			return false
		},
		apply: func(s *Store) { s.joinRequests[stored.RequestID] = stored },
	})
}

func (r *joinRequests) Get(ctx context.Context, requestID string) (*model.JoinRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	jr, ok := r.s.joinRequests[requestID]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := jr
	return &c, nil
}

func (r *joinRequests) GetByPair(ctx context.Context, requesterID, receiverID string) (*model.JoinRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *model.JoinRequest
	for _, jr := range r.s.joinRequests {
		if jr.RequesterID != requesterID || jr.ReceiverID != receiverID {
			continue
		}
		if latest == nil || jr.CreatedAt.After(latest.CreatedAt) {
			c := jr
			latest = &c
		}
	}
	if latest == nil {
		return nil, model.ErrNotFound
	}
	return latest, nil
}

func (r *joinRequests) ListByUser(ctx context.Context, userID string) ([]*model.JoinRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.JoinRequest
	for _, jr := range r.s.joinRequests {
		if jr.RequesterID == userID || jr.ReceiverID == userID {
			c := jr
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *joinRequests) SetStatus(ctx context.Context, requestID, status string, b store.Batch) error {
	return r.mutate(b, requestID, func(s *Store, jr *model.JoinRequest) { jr.Status = status })
}

func (r *joinRequests) SetRequesterSnapshot(ctx context.Context, requestID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.mutate(b, requestID, func(s *Store, jr *model.JoinRequest) { jr.Requester = snap })
}

func (r *joinRequests) SetReceiverSnapshot(ctx context.Context, requestID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.mutate(b, requestID, func(s *Store, jr *model.JoinRequest) { jr.Receiver = snap })
}

func (r *joinRequests) mutate(b store.Batch, requestID string, fn func(*Store, *model.JoinRequest)) error {
	return r.s.apply(b, memOp{apply: func(s *Store) {
		jr, ok := s.joinRequests[requestID]
		if !ok {
			return
		}
		fn(s, &jr)
		jr.UpdatedAt = s.Now()
		s.joinRequests[requestID] = jr
	}})
}

func (r *joinRequests) Delete(ctx context.Context, requestID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { delete(s.joinRequests, requestID) }})
}
