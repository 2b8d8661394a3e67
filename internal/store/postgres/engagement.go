package postgres

import (
	"context"
	"encoding/json"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

type comments struct{ s *pgStore }

const commentCols = `comment_id, update_id, author_id, author_snapshot, body, created_at`

func scanComment(row rowScanner) (*model.Comment, error) {
	var c model.Comment
	var author []byte
	err := row.Scan(&c.CommentID, &c.UpdateID, &c.AuthorID, &author, &c.Body, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(author) > 0 {
		if err := json.Unmarshal(author, &c.Author); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (r *comments) Create(ctx context.Context, c *model.Comment, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO comments (comment_id, update_id, author_id, author_snapshot, body, created_at)
        VALUES ($1,$2,$3,$4::jsonb,$5,$6)
    `, c.CommentID, c.UpdateID, c.AuthorID, marshalJSON(c.Author), c.Body, c.CreatedAt)
}

func (r *comments) Get(ctx context.Context, commentID string) (*model.Comment, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+commentCols+` FROM comments WHERE comment_id=$1`, commentID)
	return scanComment(row)
}

// List returns a thread oldest first so pages read top to bottom.
func (r *comments) List(ctx context.Context, updateID string, page store.Page) ([]*model.Comment, string, error) {
	key := store.CommentsQueryKey(updateID)
	limit := page.Clamp()

	query := `SELECT ` + commentCols + ` FROM comments WHERE update_id=$1
        ORDER BY created_at ASC, comment_id ASC LIMIT $2`
	args := []interface{}{updateID, limit + 1}
	if page.Cursor != "" {
		at, id, ok := store.DecodeCursor(page.Cursor, key)
		if !ok {
			return nil, "", nil
		}
		query = `SELECT ` + commentCols + ` FROM comments
            WHERE update_id=$1 AND (created_at, comment_id) > ($2, $3)
            ORDER BY created_at ASC, comment_id ASC LIMIT $4`
		args = []interface{}{updateID, at, id, limit + 1}
	}

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		next = store.EncodeCursor(key, last.CreatedAt, last.CommentID)
	}
	return out, next, nil
}

func (r *comments) ListIDsByUpdate(ctx context.Context, updateID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT comment_id FROM comments WHERE update_id=$1 ORDER BY comment_id`, updateID)
}

func (r *comments) ListIDsByAuthor(ctx context.Context, authorID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT comment_id FROM comments WHERE author_id=$1 ORDER BY comment_id`, authorID)
}

func (r *comments) listIDs(ctx context.Context, query string, arg string) ([]string, error) {
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

func (r *comments) SetAuthorSnapshot(ctx context.Context, commentID string, snap model.ProfileSnapshot, b store.Batch) error {
	return r.s.exec(ctx, b, `
        UPDATE comments SET author_snapshot=$2::jsonb WHERE comment_id=$1
    `, commentID, marshalJSON(snap))
}

func (r *comments) Delete(ctx context.Context, commentID string, b store.Batch) error {
	return r.s.exec(ctx, b, `DELETE FROM comments WHERE comment_id=$1`, commentID)
}

type reactions struct{ s *pgStore }

func scanReaction(row rowScanner) (*model.Reaction, error) {
	var re model.Reaction
	err := row.Scan(&re.UpdateID, &re.UserID, &re.Type, &re.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &re, nil
}

func (r *reactions) Put(ctx context.Context, re *model.Reaction, b store.Batch) error {
	return r.s.exec(ctx, b, `
        INSERT INTO reactions (update_id, user_id, reaction_type, created_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (update_id, user_id, reaction_type) DO NOTHING
    `, re.UpdateID, re.UserID, re.Type, re.CreatedAt)
}

func (r *reactions) Get(ctx context.Context, updateID, userID, reactionType string) (*model.Reaction, error) {
	row := r.s.db.QueryRowContext(ctx, `
        SELECT update_id, user_id, reaction_type, created_at FROM reactions
        WHERE update_id=$1 AND user_id=$2 AND reaction_type=$3
    `, updateID, userID, reactionType)
	return scanReaction(row)
}

func (r *reactions) ListByUpdate(ctx context.Context, updateID string) ([]*model.Reaction, error) {
	return r.list(ctx, `
        SELECT update_id, user_id, reaction_type, created_at FROM reactions
        WHERE update_id=$1 ORDER BY created_at ASC, user_id ASC
    `, updateID)
}

func (r *reactions) ListByUser(ctx context.Context, userID string) ([]*model.Reaction, error) {
	return r.list(ctx, `
        SELECT update_id, user_id, reaction_type, created_at FROM reactions
        WHERE user_id=$1 ORDER BY created_at ASC, update_id ASC
    `, userID)
}

func (r *reactions) list(ctx context.Context, query string, arg string) ([]*model.Reaction, error) {
	rows, err := r.s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Reaction
	for rows.Next() {
		re, err := scanReaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, rows.Err()
}

func (r *reactions) Delete(ctx context.Context, updateID, userID, reactionType string, b store.Batch) error {
	return r.s.exec(ctx, b, `
        DELETE FROM reactions WHERE update_id=$1 AND user_id=$2 AND reaction_type=$3
    `, updateID, userID, reactionType)
}
