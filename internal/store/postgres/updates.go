package postgres

import (
	"context"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
	"github.com/anjalik1505/town-functions-sub002/internal/visibility"
)

type updates struct{ s *pgStore }

const updateCols = `update_id, creator_id, body, sentiment, score, emoji, friend_ids, group_ids,
       visible_to, all_village, comment_count, reaction_count, creator_snapshot,
       shared_friends, shared_groups, created_at`

func scanUpdate(row rowScanner) (*model.Update, error) {
	var u model.Update
	var creator, sharedFriends, sharedGroups []byte
	err := row.Scan(
		&u.UpdateID, &u.CreatorID, &u.Body, &u.Sentiment, &u.Score, &u.Emoji,
		pq.Array(&u.FriendIDs), pq.Array(&u.GroupIDs), pq.Array(&u.VisibleTo),
		&u.AllVillage, &u.CommentCount, &u.ReactionCount,
		&creator, &sharedFriends, &sharedGroups, &u.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(creator) > 0 {
		if err := json.Unmarshal(creator, &u.Creator); err != nil {
			return nil, err
		}
	}
	if len(sharedFriends) > 0 {
		if err := json.Unmarshal(sharedFriends, &u.SharedFriends); err != nil {
			return nil, err
		}
	}
	if len(sharedGroups) > 0 {
		if err := json.Unmarshal(sharedGroups, &u.SharedGroups); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

func (r *updates) Create(ctx context.Context, u *model.Update, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO updates (update_id, creator_id, body, sentiment, score, emoji, friend_ids, group_ids,
                             visible_to, all_village, comment_count, reaction_count, creator_snapshot,
                             shared_friends, shared_groups, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7::text[],$8::text[],$9::text[],$10,$11,$12,$13::jsonb,$14::jsonb,$15::jsonb,$16)
    `, u.UpdateID, u.CreatorID, u.Body, u.Sentiment, u.Score, u.Emoji,
		pq.Array(u.FriendIDs), pq.Array(u.GroupIDs), pq.Array(u.VisibleTo),
		u.AllVillage, u.CommentCount, u.ReactionCount,
		marshalJSON(u.Creator), marshalJSON(u.SharedFriends), marshalJSON(u.SharedGroups), u.CreatedAt)
}

func (r *updates) Get(ctx context.Context, updateID string) (*model.Update, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+updateCols+` FROM updates WHERE update_id=$1`, updateID)
	return scanUpdate(row)
}

func (r *updates) ListByCreator(ctx context.Context, creatorID string, page store.Page) ([]*model.Update, string, error) {
	key := store.UpdatesQueryKey(creatorID)
	limit := page.Clamp()

	query := `SELECT ` + updateCols + ` FROM updates WHERE creator_id=$1
        ORDER BY created_at DESC, update_id DESC LIMIT $2`
	args := []interface{}{creatorID, limit + 1}
	if page.Cursor != "" {
		at, id, ok := store.DecodeCursor(page.Cursor, key)
		if !ok {
			return nil, "", nil
		}
		query = `SELECT ` + updateCols + ` FROM updates
            WHERE creator_id=$1 AND (created_at, update_id) < ($2, $3)
            ORDER BY created_at DESC, update_id DESC LIMIT $4`
		args = []interface{}{creatorID, at, id, limit + 1}
	}

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Update
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, u)
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

func (r *updates) ListAllVillageByCreator(ctx context.Context, creatorID string) ([]*model.Update, error) {
	rows, err := r.s.db.QueryContext(ctx, `
        SELECT `+updateCols+` FROM updates WHERE creator_id=$1 AND all_village
        ORDER BY created_at DESC, update_id DESC
    `, creatorID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Update
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *updates) ListIDsByCreator(ctx context.Context, creatorID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT update_id FROM updates WHERE creator_id=$1 ORDER BY update_id`, creatorID)
}

func (r *updates) ListIDsBySharedFriend(ctx context.Context, userID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT update_id FROM updates WHERE shared_friends ? $1 ORDER BY update_id`, userID)
}

func (r *updates) listIDs(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := r.s.db.QueryContext(ctx, query, arg)
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

// Share appends only missing recipients so replays are no-ops; snapshot maps
// merge by key so re-shared recipients keep one entry. The recipient lists
// arrive deduplicated from the service layer.
func (r *updates) Share(ctx context.Context, updateID string, add model.ShareTargets, b store.Batch) error {
	ids := append(visibility.Friends(add.FriendIDs), visibility.Groups(add.GroupIDs)...)
	return r.s.exec(ctx, b, `
        UPDATE updates SET
            friend_ids = friend_ids || ARRAY(SELECT x FROM unnest($2::text[]) WITH ORDINALITY AS t(x, ord) WHERE NOT (x = ANY(friend_ids)) ORDER BY ord),
            group_ids  = group_ids  || ARRAY(SELECT x FROM unnest($3::text[]) WITH ORDINALITY AS t(x, ord) WHERE NOT (x = ANY(group_ids)) ORDER BY ord),
            visible_to = visible_to || ARRAY(SELECT x FROM unnest($4::text[]) WITH ORDINALITY AS t(x, ord) WHERE NOT (x = ANY(visible_to)) ORDER BY ord),
            shared_friends = shared_friends || $5::jsonb,
            shared_groups  = shared_groups  || $6::jsonb
        WHERE update_id=$1
    `, updateID, pq.Array(add.FriendIDs), pq.Array(add.GroupIDs), pq.Array(ids),
		marshalJSON(add.Friends), marshalJSON(add.Groups))
}

func (r *updates) RemoveFriend(ctx context.Context, updateID, friendID string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE updates SET
            friend_ids = array_remove(friend_ids, $2),
            visible_to = array_remove(visible_to, $3),
            shared_friends = shared_friends - $2
        WHERE update_id=$1
    `, updateID, friendID, visibility.Friend(friendID))
}

func (r *updates) RemoveGroup(ctx context.Context, updateID, groupID string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE updates SET
            group_ids  = array_remove(group_ids, $2),
            visible_to = array_remove(visible_to, $3),
            shared_groups = shared_groups - $2
        WHERE update_id=$1
    `, updateID, groupID, visibility.Group(groupID))
}

func (r *updates) SetCreatorSnapshot(ctx context.Context, updateID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE updates SET creator_snapshot=$2::jsonb WHERE update_id=$1
    `, updateID, marshalJSON(snap))
}

// SetFriendSnapshot rewrites one recipient's snapshot in place; it never
// adds a recipient the update does not already have.
func (r *updates) SetFriendSnapshot(ctx context.Context, updateID, userID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE updates SET shared_friends = jsonb_set(shared_friends, ARRAY[$2], $3::jsonb)
        WHERE update_id=$1 AND shared_friends ? $2
    `, updateID, userID, marshalJSON(snap))
}

func (r *updates) AddCommentCount(ctx context.Context, updateID string, delta int, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE updates SET comment_count = comment_count + $2 WHERE update_id=$1
    `, updateID, delta)
}

func (r *updates) AddReactionCount(ctx context.Context, updateID string, delta int, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE updates SET reaction_count = reaction_count + $2 WHERE update_id=$1
    `, updateID, delta)
}

func (r *updates) Delete(ctx context.Context, updateID string, b store.Batch) error {
	return r.s.exec(ctx, b, `DELETE FROM updates WHERE update_id=$1`, updateID)
}
