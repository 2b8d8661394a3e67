package postgres

import (
	"context"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type events struct{ s *pgStore }

const eventCols = `id, event_type, aggregate_id, payload, status, attempt_count,
       next_attempt_at, created_at, updated_at`

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Type, &e.AggregateID, &e.Payload, &e.Status,
		&e.AttemptCount, &e.NextAttemptAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *events) Append(ctx context.Context, e *model.Event, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO events (event_type, aggregate_id, payload, status, attempt_count, next_attempt_at)
        VALUES ($1,$2,$3::jsonb,'pending',0,now())
    `, e.Type, e.AggregateID, e.Payload)
}

// Claim leases up to limit due pending events for one dispatch cycle.
// SKIP LOCKED keeps concurrent workers off each other's rows, and pushing
// next_attempt_at forward by the lease hides claimed rows until the worker
// either resolves them or the lease lapses.
func (r *events) Claim(ctx context.Context, limit int, lease time.Duration) ([]*model.Event, error) {
	rows, err := r.s.db.QueryContext(ctx, `
        UPDATE events SET next_attempt_at = now() + make_interval(secs => $2), updated_at = now()
        WHERE id IN (
            SELECT id FROM events
            WHERE status = 'pending' AND next_attempt_at <= now()
            ORDER BY id ASC
            FOR UPDATE SKIP LOCKED
            LIMIT $1
        )
        RETURNING `+eventCols, limit, lease.Seconds())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *events) MarkDone(ctx context.Context, id int64) error {
	res, err := r.s.db.ExecContext(ctx, `
        UPDATE events SET status='done', updated_at=now() WHERE id=$1
    `, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkFailed schedules the retry with exponential backoff capped at five
// minutes, parking the event as dead once the attempt budget is spent.
func (r *events) MarkFailed(ctx context.Context, id int64, maxAttempts int) error {
	res, err := r.s.db.ExecContext(ctx, `
        UPDATE events SET
            status = CASE WHEN attempt_count + 1 >= $2 THEN 'dead' ELSE 'pending' END,
            attempt_count = attempt_count + 1,
            next_attempt_at = now() + make_interval(secs => LEAST(POWER(2, attempt_count + 1), 300)),
            updated_at = now()
        WHERE id=$1
    `, id, maxAttempts)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Requeue returns a dead event to the pending pool with a fresh attempt
// budget. Operator action, never called by the dispatcher.
func (r *events) Requeue(ctx context.Context, id int64) error {
	res, err := r.s.db.ExecContext(ctx, `
        UPDATE events SET status='pending', attempt_count=0, next_attempt_at=now(), updated_at=now()
        WHERE id=$1 AND status='dead'
    `, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *events) ListByStatus(ctx context.Context, status string, limit int) ([]*model.Event, error) {
	rows, err := r.s.db.QueryContext(ctx, `
        SELECT `+eventCols+` FROM events WHERE status=$1 ORDER BY id ASC LIMIT $2
    `, status, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *events) Counts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT status, count(*) FROM events GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := map[string]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
