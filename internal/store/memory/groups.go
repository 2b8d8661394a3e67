package memory

import (
	"context"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type groups struct{ s *Store }

func cloneGroup(g model.Group) *model.Group {
	g.Members = dup(g.Members)
	g.MemberProfiles = dupSnaps(g.MemberProfiles)
	return &g
}

func (r *groups) Create(ctx context.Context, g *model.Group, b store.Batch) error {
	stored := *cloneGroup(*g)
	return r.s.apply(b, memOp{
		insertKey: memKey("groups", stored.GroupID),
		conflicts: func(s *Store) bool { _, ok := s.groups[stored.GroupID]; return ok },
		apply:     func(s *Store) { s.groups[stored.GroupID] = stored },
	})
}

func (r *groups) Get(ctx context.Context, groupID string) (*model.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	g, ok := r.s.groups[groupID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneGroup(g), nil
}

func (r *groups) GetBatch(ctx context.Context, groupIDs []string) (map[string]*model.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]*model.Group, len(groupIDs))
	for _, id := range groupIDs {
		if g, ok := r.s.groups[id]; ok {
			out[id] = cloneGroup(g)
		}
	}
	return out, nil
}

// AddMember grows the member set and the snapshot map together.
// Re-adding an existing member only refreshes the snapshot.
func (r *groups) AddMember(ctx context.Context, groupID, userID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.mutate(b, groupID, func(s *Store, g *model.Group) {
		g.Members = appendMissing(g.Members, userID)
		if g.MemberProfiles == nil {
			g.MemberProfiles = map[string]model.ProfileSnapshot{}
		}
		g.MemberProfiles[userID] = snap
	})
}

func (r *groups) RemoveMember(ctx context.Context, groupID, userID string, b store.Batch) error {
	return r.mutate(b, groupID, func(s *Store, g *model.Group) {
		g.Members = removeString(g.Members, userID)
		delete(g.MemberProfiles, userID)
	})
}

func (r *groups) SetMemberSnapshot(ctx context.Context, groupID, userID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.mutate(b, groupID, func(s *Store, g *model.Group) {
		if _, ok := g.MemberProfiles[userID]; ok {
			g.MemberProfiles[userID] = snap
		}
	})
}

func (r *groups) mutate(b store.Batch, groupID string, fn func(*Store, *model.Group)) error {
	return r.s.apply(b, memOp{apply: func(s *Store) {
		g, ok := s.groups[groupID]
		if !ok {
			return
		}
		c := *cloneGroup(g)
		fn(s, &c)
		c.UpdatedAt = s.Now()
		s.groups[groupID] = c
	}})
}
