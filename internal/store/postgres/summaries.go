package postgres

import (
	"context"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type summaries struct{ s *pgStore }

const summaryCols = `pair_id, creator_id, target_id, summary, suggestions, last_update_id,
       update_count, created_at, updated_at`

func scanSummary(row rowScanner) (*model.RelationshipSummary, error) {
	var rs model.RelationshipSummary
	err := row.Scan(&rs.PairID, &rs.CreatorID, &rs.TargetID, &rs.Summary, &rs.Suggestions,
		&rs.LastUpdateID, &rs.UpdateCount, &rs.CreatedAt, &rs.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &rs, nil
}

func (r *summaries) Get(ctx context.Context, pairID, creatorID string) (*model.RelationshipSummary, error) {
	row := r.s.db.QueryRowContext(ctx, `
        SELECT `+summaryCols+` FROM user_summaries WHERE pair_id=$1 AND creator_id=$2
    `, pairID, creatorID)
	return scanSummary(row)
}

// Upsert replaces the fold text and advances update_count by countDelta in
// the statement itself, so concurrent folds never lose an increment.
func (r *summaries) Upsert(ctx context.Context, rs *model.RelationshipSummary, countDelta int, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO user_summaries (pair_id, creator_id, target_id, summary, suggestions,
                                    last_update_id, update_count, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
        ON CONFLICT (pair_id, creator_id) DO UPDATE SET
            summary        = EXCLUDED.summary,
            suggestions    = EXCLUDED.suggestions,
            last_update_id = EXCLUDED.last_update_id,
            update_count   = user_summaries.update_count + $7,
            updated_at     = EXCLUDED.updated_at
    `, rs.PairID, rs.CreatorID, rs.TargetID, rs.Summary, rs.Suggestions,
		rs.LastUpdateID, countDelta, rs.UpdatedAt)
}

func (r *summaries) ListByUser(ctx context.Context, userID string) ([]*model.RelationshipSummary, error) {
	rows, err := r.s.db.QueryContext(ctx, `
        SELECT `+summaryCols+` FROM user_summaries
        WHERE creator_id=$1 OR target_id=$1
        ORDER BY pair_id, creator_id
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.RelationshipSummary
	for rows.Next() {
		rs, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (r *summaries) Delete(ctx context.Context, pairID, creatorID string, b store.Batch) error {
	return r.s.exec(ctx, b, `DELETE FROM user_summaries WHERE pair_id=$1 AND creator_id=$2`, pairID, creatorID)
}
