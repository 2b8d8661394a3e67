package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type profiles struct{ s *pgStore }

const profileCols = `user_id, username, name, avatar, phone, gender, age_bucket, timezone,
       device_token, notify_mode, nudge_enabled, nudge_weekday, nudge_bucket,
       summary, suggestions, insights, last_update_id, last_update_at, last_update_emoji,
       group_ids, friend_count, friends_to_cleanup, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	var p model.Profile
	var insights []byte
	var weekday int
	err := row.Scan(
		&p.UserID, &p.Username, &p.Name, &p.Avatar, &p.Phone, &p.Gender, &p.AgeBucket, &p.Timezone,
		&p.DeviceToken, &p.NotifyMode, &p.NudgeEnabled, &weekday, &p.NudgeBucket,
		&p.Summary, &p.Suggestions, &insights, &p.LastUpdateID, &p.LastUpdateAt, &p.LastUpdateEmoji,
		pq.Array(&p.GroupIDs), &p.FriendCount, pq.Array(&p.FriendsToCleanup), &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(insights) > 0 {
		if err := json.Unmarshal(insights, &p.Insights); err != nil {
			return nil, err
		}
	}
	p.NudgeWeekday = time.Weekday(weekday)
	return &p, nil
}

func (r *profiles) Create(ctx context.Context, p *model.Profile, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO profiles (user_id, username, name, avatar, phone, gender, age_bucket, timezone,
                              device_token, notify_mode, nudge_enabled, nudge_weekday, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    `, p.UserID, p.Username, p.Name, p.Avatar, p.Phone, p.Gender, p.AgeBucket, p.Timezone,
		p.DeviceToken, p.NotifyMode, p.NudgeEnabled, int(p.NudgeWeekday), p.CreatedAt, p.UpdatedAt)
}

func (r *profiles) Get(ctx context.Context, userID string) (*model.Profile, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE user_id=$1`, userID)
	return scanProfile(row)
}

func (r *profiles) GetBatch(ctx context.Context, userIDs []string) (map[string]*model.Profile, error) {
	out := make(map[string]*model.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE user_id = ANY($1::text[])`, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}

func (r *profiles) ApplyEdit(ctx context.Context, userID string, e model.ProfileEdit, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE profiles SET username=$2, name=$3, avatar=$4, phone=$5, gender=$6, age_bucket=$7,
                            timezone=$8, updated_at=now()
        WHERE user_id=$1
    `, userID, e.Username, e.Name, e.Avatar, e.Phone, e.Gender, e.AgeBucket, e.Timezone)
}

func (r *profiles) ApplySettings(ctx context.Context, userID string, s model.ProfileSettings, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE profiles SET device_token=$2, notify_mode=$3, nudge_enabled=$4, nudge_weekday=$5, updated_at=now()
        WHERE user_id=$1
    `, userID, s.DeviceToken, s.NotifyMode, s.NudgeEnabled, int(s.NudgeWeekday))
}

func (r *profiles) SetSelfSummary(ctx context.Context, userID string, s model.SelfSummary, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE profiles SET summary=$2, suggestions=$3, insights=$4::jsonb, last_update_id=$5, updated_at=now()
        WHERE user_id=$1
    `, userID, s.Summary, s.Suggestions, marshalJSON(s.Insights), s.LastUpdateID)
}

func (r *profiles) SetLastUpdate(ctx context.Context, userID, updateID, emoji string, at time.Time, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE profiles SET last_update_id=$2, last_update_emoji=$3, last_update_at=$4, updated_at=now()
        WHERE user_id=$1
          AND (last_update_at IS NULL OR last_update_at <= $4)
    `, userID, updateID, emoji, at)
}

func (r *profiles) AddFriendCount(ctx context.Context, userID string, delta int, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE profiles SET friend_count = friend_count + $2, updated_at=now() WHERE user_id=$1
    `, userID, delta)
}

func (r *profiles) AddGroup(ctx context.Context, userID, groupID string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE profiles
        SET group_ids = CASE WHEN $2 = ANY(group_ids) THEN group_ids ELSE array_append(group_ids, $2) END,
            updated_at = now()
        WHERE user_id=$1
    `, userID, groupID)
}

func (r *profiles) RemoveGroup(ctx context.Context, userID, groupID string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE profiles SET group_ids = array_remove(group_ids, $2), updated_at=now() WHERE user_id=$1
    `, userID, groupID)
}

func (r *profiles) SetNudgeBucket(ctx context.Context, userID, bucket string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE profiles SET nudge_bucket=$2, updated_at=now() WHERE user_id=$1
    `, userID, bucket)
}

func (r *profiles) SetFriendsToCleanup(ctx context.Context, userID string, friendIDs []string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE profiles SET friends_to_cleanup=$2::text[], updated_at=now() WHERE user_id=$1
    `, userID, pq.Array(friendIDs))
}

func (r *profiles) Delete(ctx context.Context, userID string, b store.Batch) error {
	return r.s.exec(ctx, b, `DELETE FROM profiles WHERE user_id=$1`, userID)
}

type phones struct{ s *pgStore }

func (r *phones) Put(ctx context.Context, phone, userID string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO phone_directory (phone, user_id) VALUES ($1,$2)
        ON CONFLICT (phone) DO UPDATE SET user_id = EXCLUDED.user_id
    `, phone, userID)
}

func (r *phones) Lookup(ctx context.Context, phone string) (string, error) {
	var userID string
	err := r.s.db.QueryRowContext(ctx, `SELECT user_id FROM phone_directory WHERE phone=$1`, phone).Scan(&userID)
	if err != nil {
		return "", mapErr(err)
	}
	return userID, nil
}

func (r *phones) Delete(ctx context.Context, phone string, b store.Batch) error {
	return r.s.exec(ctx, b, `DELETE FROM phone_directory WHERE phone=$1`, phone)
}
