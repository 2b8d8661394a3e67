package memory

import (
	"context"
	"sort"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type comments struct{ s *Store }

func (r *comments) Create(ctx context.Context, c *model.Comment, b store.Batch) error {
	stored := *c
	return r.s.apply(b, memOp{
		insertKey: memKey("comments", stored.CommentID),
		conflicts: func(s *Store) bool { _, ok := s.comments[stored.CommentID]; return ok },
		apply:     func(s *Store) { s.comments[stored.CommentID] = stored },
	})
}

func (r *comments) Get(ctx context.Context, commentID string) (*model.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.comments[commentID]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := c
	return &out, nil
}

func (r *comments) List(ctx context.Context, updateID string, page store.Page) ([]*model.Comment, string, error) {
	key := store.CommentsQueryKey(updateID)
	limit := page.Clamp()

	r.s.mu.RLock()
	var all []model.Comment
	for _, c := range r.s.comments {
		if c.UpdateID == updateID {
			all = append(all, c)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].CommentID < all[j].CommentID
	})

	if page.Cursor != "" {
		at, id, ok := store.DecodeCursor(page.Cursor, key)
		if !ok {
			return nil, "", nil
		}
		kept := all[:0]
		for _, c := range all {
			if c.CreatedAt.After(at) || (c.CreatedAt.Equal(at) && c.CommentID > id) {
				kept = append(kept, c)
			}
		}
		all = kept
	}

	var out []*model.Comment
	for i := 0; i < len(all) && i < limit; i++ {
		c := all[i]
		out = append(out, &c)
	}
	next := ""
	if len(all) > limit {
		last := out[len(out)-1]
		next = store.EncodeCursor(key, last.CreatedAt, last.CommentID)
	}
	return out, next, nil
}

func (r *comments) ListIDsByUpdate(ctx context.Context, updateID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []string
	for id, c := range r.s.comments {
		if c.UpdateID == updateID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *comments) ListIDsByAuthor(ctx context.Context, authorID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []string
	for id, c := range r.s.comments {
		if c.AuthorID == authorID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *comments) SetAuthorSnapshot(ctx context.Context, commentID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) {
		c, ok := s.comments[commentID]
		if !ok {
			return
		}
		c.Author = snap
		s.comments[commentID] = c
	}})
}

func (r *comments) Delete(ctx context.Context, commentID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { delete(s.comments, commentID) }})
}

type reactions struct{ s *Store }

func reactionKey(updateID, userID, reactionType string) string {
	return memKey("reactions", updateID, userID, reactionType)
}

// Put is idempotent; re-adding an existing reaction keeps the original row.
func (r *reactions) Put(ctx context.Context, re *model.Reaction, b store.Batch) error {
	stored := *re
	return r.s.apply(b, memOp{apply: func(s *Store) {
		k := reactionKey(stored.UpdateID, stored.UserID, stored.Type)
		if _, ok := s.reactions[k]; ok {
			return
		}
		s.reactions[k] = stored
	}})
}

func (r *reactions) Get(ctx context.Context, updateID, userID, reactionType string) (*model.Reaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	re, ok := r.s.reactions[reactionKey(updateID, userID, reactionType)]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := re
	return &out, nil
}

func (r *reactions) ListByUpdate(ctx context.Context, updateID string) ([]*model.Reaction, error) {
	return r.list(func(re model.Reaction) bool { return re.UpdateID == updateID })
}

func (r *reactions) ListByUser(ctx context.Context, userID string) ([]*model.Reaction, error) {
	return r.list(func(re model.Reaction) bool { return re.UserID == userID })
}

func (r *reactions) list(match func(model.Reaction) bool) ([]*model.Reaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Reaction
	for _, re := range r.s.reactions {
		if match(re) {
			c := re
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return reactionSortKey(out[i]) < reactionSortKey(out[j])
	})
	return out, nil
}

func reactionSortKey(re *model.Reaction) string {
	return memKey(re.UpdateID, re.UserID, re.Type)
}

func (r *reactions) Delete(ctx context.Context, updateID, userID, reactionType string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) {
		delete(s.reactions, reactionKey(updateID, userID, reactionType))
	}})
}
