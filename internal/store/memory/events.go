package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type events struct{ s *Store }

func cloneEvent(e model.Event) *model.Event {
	if e.Payload != nil {
		p := make([]byte, len(e.Payload))
		copy(p, e.Payload)
		e.Payload = p
	}
	return &e
}

// Append assigns the id at apply time so batched events number in commit
// order, like a bigserial column.
func (r *events) Append(ctx context.Context, e *model.Event, b store.Batch) error {
	stored := *cloneEvent(*e)
	return r.s.apply(b, memOp{apply: func(s *Store) {
		now := s.Now()
		stored.ID = s.nextEventID
		s.nextEventID++
		stored.Status = model.EventPending
		stored.AttemptCount = 0
		stored.NextAttemptAt = now
		stored.CreatedAt = now
		stored.UpdatedAt = now
		s.events[stored.ID] = stored
	}})
}

// Claim leases up to limit due pending events, pushing next_attempt_at
// forward by the lease so other workers skip them until it lapses.
func (r *events) Claim(ctx context.Context, limit int, lease time.Duration) ([]*model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.Now()

	var due []int64
	for id, e := range r.s.events {
		if e.Status == model.EventPending && !e.NextAttemptAt.After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*model.Event, 0, len(due))
	for _, id := range due {
		e := r.s.events[id]
		e.NextAttemptAt = now.Add(lease)
		e.UpdatedAt = now
		r.s.events[id] = e
		out = append(out, cloneEvent(e))
	}
	return out, nil
}

func (r *events) MarkDone(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return model.ErrNotFound
	}
	e.Status = model.EventDone
	e.UpdatedAt = r.s.Now()
	r.s.events[id] = e
	return nil
}

// MarkFailed reschedules with exponential backoff capped at five minutes,
// parking the event as dead once the attempt budget is spent.
func (r *events) MarkFailed(ctx context.Context, id int64, maxAttempts int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return model.ErrNotFound
	}
	now := r.s.Now()
	backoff := math.Min(math.Pow(2, float64(e.AttemptCount+1)), 300)
	e.AttemptCount++
	if e.AttemptCount >= maxAttempts {
		e.Status = model.EventDead
	} else {
		e.Status = model.EventPending
	}
	e.NextAttemptAt = now.Add(time.Duration(backoff) * time.Second)
	e.UpdatedAt = now
	r.s.events[id] = e
	return nil
}

func (r *events) Requeue(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok || e.Status != model.EventDead {
		return model.ErrNotFound
	}
	now := r.s.Now()
	e.Status = model.EventPending
	e.AttemptCount = 0
	e.NextAttemptAt = now
	e.UpdatedAt = now
	r.s.events[id] = e
	return nil
}

func (r *events) ListByStatus(ctx context.Context, status string, limit int) ([]*model.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ids []int64
	for id, e := range r.s.events {
		if e.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*model.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneEvent(r.s.events[id]))
	}
	return out, nil
}

func (r *events) Counts(ctx context.Context) (map[string]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := map[string]int64{}
	for _, e := range r.s.events {
		out[e.Status]++
	}
	return out, nil
}
