// Package postgres implements store.Store on PostgreSQL via database/sql
// and the pgx stdlib driver. Batches buffer parameterized statements and
// replay them inside one transaction on Commit; set unions, map element
// rewrites, and counter changes are single idempotent statements.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Profiles() store.Profiles         { return &profiles{s} }
func (s *pgStore) Phones() store.Phones             { return &phones{s} }
func (s *pgStore) Friendships() store.Friendships   { return &friendships{s} }
func (s *pgStore) Invites() store.Invites           { return &invites{s} }
func (s *pgStore) JoinRequests() store.JoinRequests { return &joinRequests{s} }
func (s *pgStore) Updates() store.Updates           { return &updates{s} }
func (s *pgStore) Comments() store.Comments         { return &comments{s} }
func (s *pgStore) Reactions() store.Reactions       { return &reactions{s} }
func (s *pgStore) Feeds() store.Feeds               { return &feeds{s} }
func (s *pgStore) Summaries() store.Summaries       { return &summaries{s} }
func (s *pgStore) Groups() store.Groups             { return &groups{s} }
func (s *pgStore) TimeBuckets() store.TimeBuckets   { return &timeBuckets{s} }
func (s *pgStore) Events() store.Events             { return &events{s} }

func (s *pgStore) NewBatch() store.Batch { return &pgBatch{db: s.db} }

func (s *pgStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *pgStore) Close() error { return s.db.Close() }

// Bootstrap opens the database and applies the schema. Used by service
// startup; tests use EnsureSchema directly.
func Bootstrap(ctx context.Context, dsn string) (store.Store, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// pgBatch buffers statements for one atomic commit.
type pgBatch struct {
	db  *sql.DB
	ops []batchOp
}

type batchOp struct {
	query string
	args  []interface{}
}

func (b *pgBatch) add(query string, args ...interface{}) {
	b.ops = append(b.ops, batchOp{query: query, args: args})
}

func (b *pgBatch) Len() int { return len(b.ops) }

func (b *pgBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	if len(b.ops) > store.MaxBatchOps {
		return store.ErrBatchTooLarge
	}
	tx, err := b.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, op := range b.ops {
		if _, err := tx.ExecContext(ctx, op.query, op.args...); err != nil {
			return mapErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	b.ops = nil
	return nil
}

var errWrongBatch = errors.New("batch belongs to a different store")

// exec applies one mutation immediately when b is nil, otherwise defers it
// to the batch commit.
func (s *pgStore) exec(ctx context.Context, b store.Batch, query string, args ...interface{}) error {
	if b == nil {
		_, err := s.db.ExecContext(ctx, query, args...)
		return mapErr(err)
	}
	pb, ok := b.(*pgBatch)
	if !ok {
		return errWrongBatch
	}
	pb.add(query, args...)
	return nil
}

// mapErr converts driver errors to the model sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", model.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func marshalJSON(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// requireRow maps a zero-row UPDATE or DELETE to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
