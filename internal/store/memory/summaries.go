package memory

import (
	"context"
	"sort"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type summaries struct{ s *Store }

func (r *summaries) Get(ctx context.Context, pairID, creatorID string) (*model.RelationshipSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rs, ok := r.s.summaries[memKey(pairID, creatorID)]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := rs
	return &c, nil
}

// Upsert replaces the fold text and advances update_count by countDelta on
// the stored row, so interleaved folds never lose an increment.
func (r *summaries) Upsert(ctx context.Context, rs *model.RelationshipSummary, countDelta int, b store.Batch) error {
	stored := *rs
	return r.s.apply(b, memOp{apply: func(s *Store) {
		k := memKey(stored.PairID, stored.CreatorID)
		if prev, ok := s.summaries[k]; ok {
			prev.Summary = stored.Summary
			prev.Suggestions = stored.Suggestions
			prev.LastUpdateID = stored.LastUpdateID
			prev.UpdateCount += countDelta
			prev.UpdatedAt = stored.UpdatedAt
			s.summaries[k] = prev
			return
		}
		stored.UpdateCount = countDelta
		stored.CreatedAt = stored.UpdatedAt
		s.summaries[k] = stored
	}})
}

func (r *summaries) ListByUser(ctx context.Context, userID string) ([]*model.RelationshipSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.RelationshipSummary
	for _, rs := range r.s.summaries {
		if rs.CreatorID == userID || rs.TargetID == userID {
			c := rs
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PairID != out[j].PairID {
			return out[i].PairID < out[j].PairID
		}
		return out[i].CreatorID < out[j].CreatorID
	})
	return out, nil
}

func (r *summaries) Delete(ctx context.Context, pairID, creatorID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { delete(s.summaries, memKey(pairID, creatorID)) }})
}
