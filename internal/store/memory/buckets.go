package memory

import (
	"context"
	"sort"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type timeBuckets struct{ s *Store }

func (r *timeBuckets) Get(ctx context.Context, bucketKey string) (*model.TimeBucket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tb, ok := r.s.buckets[bucketKey]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := tb
	return &c, nil
}

// AddUser creates the bucket row on first membership and touches it on
// every add.
func (r *timeBuckets) AddUser(ctx context.Context, bucketKey, userID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) {
		s.buckets[bucketKey] = model.TimeBucket{BucketKey: bucketKey, LastTouched: s.Now()}
		users, ok := s.bucketUsers[bucketKey]
		if !ok {
			users = map[string]bool{}
			s.bucketUsers[bucketKey] = users
		}
		users[userID] = true
	}})
}

func (r *timeBuckets) RemoveUser(ctx context.Context, bucketKey, userID string, b store.Batch) error {
	return r.s.apply(b, memOp{apply: func(s *Store) { delete(s.bucketUsers[bucketKey], userID) }})
}

func (r *timeBuckets) ListUsers(ctx context.Context, bucketKey string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []string
	for id := range r.s.bucketUsers[bucketKey] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
