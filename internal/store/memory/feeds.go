package memory

import (
	"context"
	"sort"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type feeds struct{ s *Store }

func cloneFeedEntry(e model.FeedEntry) *model.FeedEntry {
	e.GroupIDs = dup(e.GroupIDs)
	return &e
}

// Put upserts by (owner, update). A replayed fan-out refreshes the
// visibility flags but keeps the original created_at.
func (r *feeds) Put(ctx context.Context, e *model.FeedEntry, b store.Batch) error {
	stored := *cloneFeedEntry(*e)
	return r.s.apply(b, memOp{apply: func(s *Store) {
		rows, ok := s.feeds[stored.OwnerID]
		if !ok {
			rows = map[string]model.FeedEntry{}
			s.feeds[stored.OwnerID] = rows
		}
		if prev, ok := rows[stored.UpdateID]; ok {
			prev.DirectVisible = stored.DirectVisible
			prev.FriendID = stored.FriendID
			prev.GroupIDs = stored.GroupIDs
			rows[stored.UpdateID] = prev
			return
		}
		rows[stored.UpdateID] = stored
	}})
}

func (r *feeds) Get(ctx context.Context, ownerID, updateID string) (*model.FeedEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.feeds[ownerID][updateID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneFeedEntry(e), nil
}

func (r *feeds) List(ctx context.Context, ownerID string, page store.Page) ([]*model.FeedEntry, string, error) {
	key := store.FeedQueryKey(ownerID)
	limit := page.Clamp()

	r.s.mu.RLock()
	all := make([]model.FeedEntry, 0, len(r.s.feeds[ownerID]))
	for _, e := range r.s.feeds[ownerID] {
		all = append(all, e)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].UpdateID > all[j].UpdateID
	})

	if page.Cursor != "" {
		at, id, ok := store.DecodeCursor(page.Cursor, key)
		if !ok {
			return nil, "", nil
		}
		all = after(all, func(e model.FeedEntry) (time.Time, string) { return e.CreatedAt, e.UpdateID }, at, id)
	}

	var out []*model.FeedEntry
	for i := 0; i < len(all) && i < limit; i++ {
		out = append(out, cloneFeedEntry(all[i]))
	}
	next := ""
	if len(all) > limit {
		last := out[len(out)-1]
		next = store.EncodeCursor(key, last.CreatedAt, last.UpdateID)
	}
	return out, next, nil
}

func (r *feeds) ListOwnersByUpdate(ctx context.Context, updateID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []string
	for ownerID, rows := range r.s.feeds {
		if _, ok := rows[updateID]; ok {
			out = append(out, ownerID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *feeds) ListUpdateIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []string
	for updateID := range r.s.feeds[ownerID] {
		out = append(out, updateID)
	}
	sort.Strings(out)
	return out, nil
}

func (r *feeds) Delete(ctx context.Context, ownerID, updateID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { delete(s.feeds[ownerID], updateID) }})
}
