package memory

import (
	"context"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type profiles struct{ s *Store }

func cloneProfile(p model.Profile) *model.Profile {
	p.GroupIDs = dup(p.GroupIDs)
	p.FriendsToCleanup = dup(p.FriendsToCleanup)
	p.LastUpdateAt = dupTime(p.LastUpdateAt)
	return &p
}

// Create stores the identity and settings fields only; counters, caches,
// and fold output always start zero, as in the SQL insert.
func (r *profiles) Create(ctx context.Context, p *model.Profile, b store.Batch) error {
	stored := model.Profile{
		UserID:       p.UserID,
		Username:     p.Username,
		Name:         p.Name,
		Avatar:       p.Avatar,
		Phone:        p.Phone,
		Gender:       p.Gender,
		AgeBucket:    p.AgeBucket,
		Timezone:     p.Timezone,
		DeviceToken:  p.DeviceToken,
		NotifyMode:   p.NotifyMode,
		NudgeEnabled: p.NudgeEnabled,
		NudgeWeekday: p.NudgeWeekday,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	return r.s.apply(b, memOp{
		insertKey: memKey("profiles", stored.UserID),
		conflicts: func(s *Store) bool {
			if _, ok := s.profiles[stored.UserID]; ok {
				return true
			}
			for _, ex := range s.profiles {
				if ex.Username == stored.Username {
					return true
				}
			}
			return false
		},
		apply: func(s *Store) { s.profiles[stored.UserID] = stored },
	})
}

func (r *profiles) Get(ctx context.Context, userID string) (*model.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (r *profiles) GetBatch(ctx context.Context, userIDs []string) (map[string]*model.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]*model.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := r.s.profiles[id]; ok {
			out[id] = cloneProfile(p)
		}
	}
	return out, nil
}

// mutate edits the profile in place when it exists; a missing row is a
// no-op, matching an UPDATE that affects zero rows.
func (r *profiles) mutate(b store.Batch, userID string, fn func(*Store, *model.Profile)) error {
	return r.s.apply(b, memOp{apply: func(s *Store) {
		p, ok := s.profiles[userID]
		if !ok {
			return
		}
		fn(s, &p)
		p.UpdatedAt = s.Now()
		s.profiles[userID] = p
	}})
}

func (r *profiles) ApplyEdit(ctx context.Context, userID string, e model.ProfileEdit, b store.Batch) error {
	return r.mutate(b, userID, func(s *Store, p *model.Profile) {
		p.Username = e.Username
		p.Name = e.Name
		p.Avatar = e.Avatar
		p.Phone = e.Phone
		p.Gender = e.Gender
		p.AgeBucket = e.AgeBucket
		p.Timezone = e.Timezone
	})
}

func (r *profiles) ApplySettings(ctx context.Context, userID string, set model.ProfileSettings, b store.Batch) error {
	return r.mutate(b, userID, func(s *Store, p *model.Profile) {
		p.DeviceToken = set.DeviceToken
		p.NotifyMode = set.NotifyMode
		p.NudgeEnabled = set.NudgeEnabled
		p.NudgeWeekday = set.NudgeWeekday
	})
}

func (r *profiles) SetSelfSummary(ctx context.Context, userID string, sum model.SelfSummary, b store.Batch) error {
	return r.mutate(b, userID, func(s *Store, p *model.Profile) {
		p.Summary = sum.Summary
		p.Suggestions = sum.Suggestions
		p.Insights = sum.Insights
		p.LastUpdateID = sum.LastUpdateID
	})
}

func (r *profiles) SetLastUpdate(ctx context.Context, userID, updateID, emoji string, at time.Time, b store.Batch) error {
	return r.mutate(b, userID, func(s *Store, p *model.Profile) {
		if p.LastUpdateAt != nil && p.LastUpdateAt.After(at) {
			return
		}
		p.LastUpdateID = updateID
		p.LastUpdateEmoji = emoji
		t := at
		p.LastUpdateAt = &t
	})
}

func (r *profiles) AddFriendCount(ctx context.Context, userID string, delta int, b store.Batch) error {
	return r.mutate(b, userID, func(s *Store, p *model.Profile) {
		p.FriendCount += delta
	})
}

func (r *profiles) AddGroup(ctx context.Context, userID, groupID string, b store.Batch) error {
	return r.mutate(b, userID, func(s *Store, p *model.Profile) {
		p.GroupIDs = appendMissing(dup(p.GroupIDs), groupID)
	})
}

func (r *profiles) RemoveGroup(ctx context.Context, userID, groupID string, b store.Batch) error {
	return r.mutate(b, userID, func(s *Store, p *model.Profile) {
		p.GroupIDs = removeString(dup(p.GroupIDs), groupID)
	})
}

func (r *profiles) SetNudgeBucket(ctx context.Context, userID, bucket string, b store.Batch) error {
	return r.mutate(b, userID, func(s *Store, p *model.Profile) {
		p.NudgeBucket = bucket
	})
}

func (r *profiles) SetFriendsToCleanup(ctx context.Context, userID string, friendIDs []string, b store.Batch) error {
	ids := dup(friendIDs)
	return r.mutate(b, userID, func(s *Store, p *model.Profile) {
		p.FriendsToCleanup = ids
	})
}

func (r *profiles) Delete(ctx context.Context, userID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { delete(s.profiles, userID) }})
}

func appendMissing(in []string, v string) []string {
	for _, x := range in {
		if x == v {
			return in
		}
	}
	return append(in, v)
}

func removeString(in []string, v string) []string {
	out := in[:0]
	for _, x := range in {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

type phones struct{ s *Store }

func (r *phones) Put(ctx context.Context, phone, userID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { s.phones[phone] = userID }})
}

func (r *phones) Lookup(ctx context.Context, phone string) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	userID, ok := r.s.phones[phone]
	if !ok {
		return "", model.ErrNotFound
	}
	return userID, nil
}

func (r *phones) Delete(ctx context.Context, phone string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { delete(s.phones, phone) }})
}
