package postgres

import (
	"context"

	"github.com/lib/pq"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type feeds struct{ s *pgStore }

const feedCols = `owner_id, update_id, created_at, direct_visible, friend_id, group_ids`

func scanFeedEntry(row rowScanner) (*model.FeedEntry, error) {
	var e model.FeedEntry
	err := row.Scan(&e.OwnerID, &e.UpdateID, &e.CreatedAt, &e.DirectVisible, &e.FriendID, pq.Array(&e.GroupIDs))
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *feeds) Put(ctx context.Context, e *model.FeedEntry, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO feed_entries (owner_id, update_id, created_at, direct_visible, friend_id, group_ids)
        VALUES ($1,$2,$3,$4,$5,$6::text[])
        ON CONFLICT (owner_id, update_id) DO UPDATE SET
            direct_visible = EXCLUDED.direct_visible,
            friend_id      = EXCLUDED.friend_id,
            group_ids      = EXCLUDED.group_ids
    `, e.OwnerID, e.UpdateID, e.CreatedAt, e.DirectVisible, e.FriendID, pq.Array(e.GroupIDs))
}

func (r *feeds) Get(ctx context.Context, ownerID, updateID string) (*model.FeedEntry, error) {
	row := r.s.db.QueryRowContext(ctx, `
        SELECT `+feedCols+` FROM feed_entries WHERE owner_id=$1 AND update_id=$2
    `, ownerID, updateID)
	return scanFeedEntry(row)
}

func (r *feeds) List(ctx context.Context, ownerID string, page store.Page) ([]*model.FeedEntry, string, error) {
	key := store.FeedQueryKey(ownerID)
	limit := page.Clamp()

	query := `SELECT ` + feedCols + ` FROM feed_entries WHERE owner_id=$1
        ORDER BY created_at DESC, update_id DESC LIMIT $2`
	args := []interface{}{ownerID, limit + 1}
	if page.Cursor != "" {
		at, id, ok := store.DecodeCursor(page.Cursor, key)
		if !ok {
			return nil, "", nil
		}
		query = `SELECT ` + feedCols + ` FROM feed_entries
            WHERE owner_id=$1 AND (created_at, update_id) < ($2, $3)
            ORDER BY created_at DESC, update_id DESC LIMIT $4`
		args = []interface{}{ownerID, at, id, limit + 1}
	}

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.FeedEntry
	for rows.Next() {
		e, err := scanFeedEntry(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		next = store.EncodeCursor(key, last.CreatedAt, last.UpdateID)
	}
	return out, next, nil
}

func (r *feeds) ListOwnersByUpdate(ctx context.Context, updateID string) ([]string, error) {
	return r.listColumn(ctx, `SELECT owner_id FROM feed_entries WHERE update_id=$1 ORDER BY owner_id`, updateID)
}

func (r *feeds) ListUpdateIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	return r.listColumn(ctx, `SELECT update_id FROM feed_entries WHERE owner_id=$1 ORDER BY update_id`, ownerID)
}

func (r *feeds) listColumn(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := r.s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *feeds) Delete(ctx context.Context, ownerID, updateID string, b store.Batch) error {
	return r.s.exec(ctx, b, `DELETE FROM feed_entries WHERE owner_id=$1 AND update_id=$2`, ownerID, updateID)
}
