package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type friendships struct{ s *pgStore }

const friendshipCols = `owner_id, friend_id, status, friend_snapshot, last_update_emoji, last_update_at, created_at, updated_at`

func scanFriendship(row rowScanner) (*model.Friendship, error) {
	var f model.Friendship
	var snap []byte
	err := row.Scan(&f.OwnerID, &f.FriendID, &f.Status, &snap, &f.LastUpdateEmoji, &f.LastUpdateAt, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(snap) > 0 {
		if err := json.Unmarshal(snap, &f.Friend); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func (r *friendships) Put(ctx context.Context, f *model.Friendship, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO friendships (owner_id, friend_id, status, friend_snapshot, last_update_emoji, last_update_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4::jsonb,$5,$6,$7,$8)
        ON CONFLICT (owner_id, friend_id) DO UPDATE
        SET status = EXCLUDED.status, friend_snapshot = EXCLUDED.friend_snapshot, updated_at = EXCLUDED.updated_at
    `, f.OwnerID, f.FriendID, f.Status, marshalJSON(f.Friend), f.LastUpdateEmoji, f.LastUpdateAt, f.CreatedAt, f.UpdatedAt)
}

func (r *friendships) Get(ctx context.Context, ownerID, friendID string) (*model.Friendship, error) {
	row := r.s.db.QueryRowContext(ctx, `
        SELECT `+friendshipCols+` FROM friendships WHERE owner_id=$1 AND friend_id=$2
    `, ownerID, friendID)
	return scanFriendship(row)
}

func (r *friendships) List(ctx context.Context, ownerID string, page store.Page) ([]*model.Friendship, string, error) {
	key := store.FriendsQueryKey(ownerID)
	limit := page.Clamp()

	query := `SELECT ` + friendshipCols + ` FROM friendships WHERE owner_id=$1
        ORDER BY created_at DESC, friend_id DESC LIMIT $2`
	args := []interface{}{ownerID, limit + 1}
	if page.Cursor != "" {
		at, id, ok := store.DecodeCursor(page.Cursor, key)
		if !ok {
			return nil, "", nil
		}
		query = `SELECT ` + friendshipCols + ` FROM friendships
            WHERE owner_id=$1 AND (created_at, friend_id) < ($2, $3)
            ORDER BY created_at DESC, friend_id DESC LIMIT $4`
		args = []interface{}{ownerID, at, id, limit + 1}
	}

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Friendship
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		next = store.EncodeCursor(key, last.CreatedAt, last.FriendID)
	}
	return out, next, nil
}

func (r *friendships) ListIDs(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT friend_id FROM friendships WHERE owner_id=$1 ORDER BY friend_id`, ownerID)
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

func (r *friendships) SetFriendSnapshot(ctx context.Context, ownerID, friendID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE friendships SET friend_snapshot=$3::jsonb, updated_at=now() WHERE owner_id=$1 AND friend_id=$2
    `, ownerID, friendID, marshalJSON(snap))
}

func (r *friendships) SetLastUpdate(ctx context.Context, ownerID, friendID, emoji string, at time.Time, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE friendships SET last_update_emoji=$3, last_update_at=$4, updated_at=now()
        WHERE owner_id=$1 AND friend_id=$2
          AND (last_update_at IS NULL OR last_update_at <= $4)
    `, ownerID, friendID, emoji, at)
}

func (r *friendships) Delete(ctx context.Context, ownerID, friendID string, b store.Batch) error {
	return r.s.exec(ctx, b, `DELETE FROM friendships WHERE owner_id=$1 AND friend_id=$2`, ownerID, friendID)
}

type invites struct{ s *pgStore }

const inviteCols = `invite_id, inviter_id, inviter_snapshot, phone, status, created_at, updated_at`

func scanInvite(row rowScanner) (*model.Invite, error) {
	var inv model.Invite
	var snap []byte
	err := row.Scan(&inv.InviteID, &inv.InviterID, &snap, &inv.Phone, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(snap) > 0 {
		if err := json.Unmarshal(snap, &inv.Inviter); err != nil {
			return nil, err
		}
	}
	return &inv, nil
}

func (r *invites) Create(ctx context.Context, inv *model.Invite, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO invites (invite_id, inviter_id, inviter_snapshot, phone, status, created_at, updated_at)
        VALUES ($1,$2,$3::jsonb,$4,$5,$6,$7)
    `, inv.InviteID, inv.InviterID, marshalJSON(inv.Inviter), inv.Phone, inv.Status, inv.CreatedAt, inv.UpdatedAt)
}

func (r *invites) Get(ctx context.Context, inviteID string) (*model.Invite, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+inviteCols+` FROM invites WHERE invite_id=$1`, inviteID)
	return scanInvite(row)
}

func (r *invites) ListByInviter(ctx context.Context, inviterID string) ([]*model.Invite, error) {
	rows, err := r.s.db.QueryContext(ctx, `
        SELECT `+inviteCols+` FROM invites WHERE inviter_id=$1 ORDER BY created_at DESC
    `, inviterID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *invites) SetStatus(ctx context.Context, inviteID, status string, b store.Batch) error {
	return r.s.exec(ctx, b, `UPDATE invites SET status=$2, updated_at=now() WHERE invite_id=$1`, inviteID, status)
}

func (r *invites) SetInviterSnapshot(ctx context.Context, inviteID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE invites SET inviter_snapshot=$2::jsonb, updated_at=now() WHERE invite_id=$1
    `, inviteID, marshalJSON(snap))
}

func (r *invites) Delete(ctx context.Context, inviteID string, b store.Batch) error {
	return r.s.exec(ctx, b, `DELETE FROM invites WHERE invite_id=$1`, inviteID)
}

type joinRequests struct{ s *pgStore }

const joinRequestCols = `request_id, requester_id, receiver_id, requester_snapshot, receiver_snapshot, status, created_at, updated_at`

func scanJoinRequest(row rowScanner) (*model.JoinRequest, error) {
	var jr model.JoinRequest
	var reqSnap, recvSnap []byte
	err := row.Scan(&jr.RequestID, &jr.RequesterID, &jr.ReceiverID, &reqSnap, &recvSnap, &jr.Status, &jr.CreatedAt, &jr.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(reqSnap) > 0 {
		if err := json.Unmarshal(reqSnap, &jr.Requester); err != nil {
			return nil, err
		}
	}
	if len(recvSnap) > 0 {
		if err := json.Unmarshal(recvSnap, &jr.Receiver); err != nil {
			return nil, err
		}
	}
	return &jr, nil
}

func (r *joinRequests) Create(ctx context.Context, jr *model.JoinRequest, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO join_requests (request_id, requester_id, receiver_id, requester_snapshot, receiver_snapshot, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4::jsonb,$5::jsonb,$6,$7,$8)
    `, jr.RequestID, jr.RequesterID, jr.ReceiverID, marshalJSON(jr.Requester), marshalJSON(jr.Receiver), jr.Status, jr.CreatedAt, jr.UpdatedAt)
}

func (r *joinRequests) Get(ctx context.Context, requestID string) (*model.JoinRequest, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+joinRequestCols+` FROM join_requests WHERE request_id=$1`, requestID)
	return scanJoinRequest(row)
}

func (r *joinRequests) GetByPair(ctx context.Context, requesterID, receiverID string) (*model.JoinRequest, error) {
	row := r.s.db.QueryRowContext(ctx, `
        SELECT `+joinRequestCols+` FROM join_requests WHERE requester_id=$1 AND receiver_id=$2
        ORDER BY created_at DESC LIMIT 1
    `, requesterID, receiverID)
	return scanJoinRequest(row)
}

func (r *joinRequests) ListByUser(ctx context.Context, userID string) ([]*model.JoinRequest, error) {
	rows, err := r.s.db.QueryContext(ctx, `
        SELECT `+joinRequestCols+` FROM join_requests
        WHERE requester_id=$1 OR receiver_id=$1 ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.JoinRequest
	for rows.Next() {
		jr, err := scanJoinRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, jr)
	}
	return out, rows.Err()
}

func (r *joinRequests) SetStatus(ctx context.Context, requestID, status string, b store.Batch) error {
	return r.s.exec(ctx, b, `UPDATE join_requests SET status=$2, updated_at=now() WHERE request_id=$1`, requestID, status)
}

func (r *joinRequests) SetRequesterSnapshot(ctx context.Context, requestID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE join_requests SET requester_snapshot=$2::jsonb, updated_at=now() WHERE request_id=$1
    `, requestID, marshalJSON(snap))
}

func (r *joinRequests) SetReceiverSnapshot(ctx context.Context, requestID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE join_requests SET receiver_snapshot=$2::jsonb, updated_at=now() WHERE request_id=$1
    `, requestID, marshalJSON(snap))
}

func (r *joinRequests) Delete(ctx context.Context, requestID string, b store.Batch) error {
	return r.s.exec(ctx, b, `DELETE FROM join_requests WHERE request_id=$1`, requestID)
}
