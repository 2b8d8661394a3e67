package postgres

import (
	"context"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type timeBuckets struct{ s *pgStore }

func (r *timeBuckets) Get(ctx context.Context, bucketKey string) (*model.TimeBucket, error) {
	var tb model.TimeBucket
	err := r.s.db.QueryRowContext(ctx, `
        SELECT bucket_key, last_touched FROM time_buckets WHERE bucket_key=$1
    `, bucketKey).Scan(&tb.BucketKey, &tb.LastTouched)
	if err != nil {
		return nil, mapErr(err)
	}
	return &tb, nil
}

// AddUser creates the bucket row on first membership and touches it on every
// add, so Get always reflects the newest write.
func (r *timeBuckets) AddUser(ctx context.Context, bucketKey, userID string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        WITH bucket AS (
            INSERT INTO time_buckets (bucket_key, last_touched) VALUES ($1, now())
            ON CONFLICT (bucket_key) DO UPDATE SET last_touched = now()
        )
        INSERT INTO time_bucket_users (bucket_key, user_id) VALUES ($1, $2)
        ON CONFLICT (bucket_key, user_id) DO NOTHING
    `, bucketKey, userID)
}

func (r *timeBuckets) RemoveUser(ctx context.Context, bucketKey, userID string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        DELETE FROM time_bucket_users WHERE bucket_key=$1 AND user_id=$2
    `, bucketKey, userID)
}

func (r *timeBuckets) ListUsers(ctx context.Context, bucketKey string) ([]string, error) {
	rows, err := r.s.db.QueryContext(ctx, `
        SELECT user_id FROM time_bucket_users WHERE bucket_key=$1 ORDER BY user_id
    `, bucketKey)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
