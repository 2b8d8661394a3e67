package postgres

import (
	"context"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type groups struct{ s *pgStore }

const groupCols = `group_id, name, icon, members, member_profiles, created_at, updated_at`

func scanGroup(row rowScanner) (*model.Group, error) {
	var g model.Group
	var profiles []byte
	err := row.Scan(&g.GroupID, &g.Name, &g.Icon, pq.Array(&g.Members), &profiles, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(profiles) > 0 {
		if err := json.Unmarshal(profiles, &g.MemberProfiles); err != nil {
			return nil, err
		}
	}
	return &g, nil
}

func (r *groups) Create(ctx context.Context, g *model.Group, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO groups (group_id, name, icon, members, member_profiles, created_at, updated_at)
        VALUES ($1,$2,$3,$4::text[],$5::jsonb,$6,$7)
    `, g.GroupID, g.Name, g.Icon, pq.Array(g.Members), marshalJSON(g.MemberProfiles), g.CreatedAt, g.UpdatedAt)
}

func (r *groups) Get(ctx context.Context, groupID string) (*model.Group, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM groups WHERE group_id=$1`, groupID)
	return scanGroup(row)
}

func (r *groups) GetBatch(ctx context.Context, groupIDs []string) (map[string]*model.Group, error) {
	if len(groupIDs) == 0 {
		return map[string]*model.Group{}, nil
	}
	rows, err := r.s.db.QueryContext(ctx, `
        SELECT `+groupCols+` FROM groups WHERE group_id = ANY($1::text[])
    `, pq.Array(groupIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]*model.Group, len(groupIDs))
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out[g.GroupID] = g
	}
	return out, rows.Err()
}

// AddMember grows the member list and snapshot map in one statement so the
// keys always track the member set. Re-adding an existing member only
// refreshes the snapshot.
func (r *groups) AddMember(ctx context.Context, groupID, userID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE groups SET
            members = CASE WHEN $2 = ANY(members) THEN members ELSE array_append(members, $2) END,
            member_profiles = jsonb_set(member_profiles, ARRAY[$2], $3::jsonb),
            updated_at = now()
        WHERE group_id=$1
    `, groupID, userID, marshalJSON(snap))
}

func (r *groups) RemoveMember(ctx context.Context, groupID, userID string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE groups SET
            members = array_remove(members, $2),
            member_profiles = member_profiles - $2,
            updated_at = now()
        WHERE group_id=$1
    `, groupID, userID)
}

// SetMemberSnapshot rewrites one member's snapshot; membership is untouched
// and missing members are not added.
func (r *groups) SetMemberSnapshot(ctx context.Context, groupID, userID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE groups SET member_profiles = jsonb_set(member_profiles, ARRAY[$2], $3::jsonb)
        WHERE group_id=$1 AND member_profiles ? $2
    `, groupID, userID, marshalJSON(snap))
}
