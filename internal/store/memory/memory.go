// Package memory backs the Store interface with plain maps. It exists for
// unit tests and local development and mirrors the postgres adapter's
// semantics, including the batch op cap and the event claim lease.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

var errWrongBatch = errors.New("batch was not created by this store")

// Store is safe for concurrent use. Now is the clock behind leases, backoff,
// and updated_at stamps; tests replace it to control time.
type Store struct {
	mu  sync.RWMutex
	Now func() time.Time

	profiles     map[string]model.Profile
	phones       map[string]string
	friendships  map[string]map[string]model.Friendship
	invites      map[string]model.Invite
	joinRequests map[string]model.JoinRequest
	updates      map[string]model.Update
	comments     map[string]model.Comment
	reactions    map[string]model.Reaction
	feeds        map[string]map[string]model.FeedEntry
	summaries    map[string]model.RelationshipSummary
	groups       map[string]model.Group
	buckets      map[string]model.TimeBucket
	bucketUsers  map[string]map[string]bool
	events       map[int64]model.Event
	nextEventID  int64
}

func New() *Store {
	return &Store{
		Now:          time.Now,
		profiles:     map[string]model.Profile{},
		phones:       map[string]string{},
		friendships:  map[string]map[string]model.Friendship{},
		invites:      map[string]model.Invite{},
		joinRequests: map[string]model.JoinRequest{},
		updates:      map[string]model.Update{},
		comments:     map[string]model.Comment{},
		reactions:    map[string]model.Reaction{},
		feeds:        map[string]map[string]model.FeedEntry{},
		summaries:    map[string]model.RelationshipSummary{},
		groups:       map[string]model.Group{},
		buckets:      map[string]model.TimeBucket{},
		bucketUsers:  map[string]map[string]bool{},
		events:       map[int64]model.Event{},
		nextEventID:  1,
	}
}

func (s *Store) Profiles() store.Profiles         { return &profiles{s} }
func (s *Store) Phones() store.Phones             { return &phones{s} }
func (s *Store) Friendships() store.Friendships   { return &friendships{s} }
func (s *Store) Invites() store.Invites           { return &invites{s} }
func (s *Store) JoinRequests() store.JoinRequests { return &joinRequests{s} }
func (s *Store) Updates() store.Updates           { return &updates{s} }
func (s *Store) Comments() store.Comments         { return &comments{s} }
func (s *Store) Reactions() store.Reactions       { return &reactions{s} }
func (s *Store) Feeds() store.Feeds               { return &feeds{s} }
func (s *Store) Summaries() store.Summaries       { return &summaries{s} }
func (s *Store) Groups() store.Groups             { return &groups{s} }
func (s *Store) TimeBuckets() store.TimeBuckets   { return &timeBuckets{s} }
func (s *Store) Events() store.Events             { return &events{s} }

func (s *Store) NewBatch() store.Batch { return &memBatch{s: s} }

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// memOp is one deferred mutation. insertKey and conflicts guard inserts
// that must not clobber an existing row; apply itself cannot fail.
type memOp struct {
	insertKey string
	conflicts func(*Store) bool
	apply     func(*Store)
}

type memBatch struct {
	s   *Store
	ops []memOp
}

func (b *memBatch) Len() int { return len(b.ops) }

// Commit checks the cap and every insert precondition before applying
// anything, so a failed batch leaves the store untouched.
func (b *memBatch) Commit(ctx context.Context) error {
	if len(b.ops) > store.MaxBatchOps {
		return store.ErrBatchTooLarge
	}
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	for _, op := range b.ops {
		if op.conflicts == nil {
			continue
		}
		if op.conflicts(s) || seen[op.insertKey] {
			return fmt.Errorf("%w: %s", model.ErrConflict, op.insertKey)
		}
		seen[op.insertKey] = true
	}
	for _, op := range b.ops {
		op.apply(s)
	}
	b.ops = nil
	return nil
}

func (s *Store) apply(b store.Batch, op memOp) error {
	if b == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if op.conflicts != nil && op.conflicts(s) {
			return fmt.Errorf("%w: %s", model.ErrConflict, op.insertKey)
		}
		op.apply(s)
		return nil
	}
	mb, ok := b.(*memBatch)
	if !ok || mb.s != s {
		return errWrongBatch
	}
	mb.ops = append(mb.ops, op)
	return nil
}

func memKey(parts ...string) string { return strings.Join(parts, "/") }

func dup(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func dupTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func dupSnaps(in map[string]model.ProfileSnapshot) map[string]model.ProfileSnapshot {
	if in == nil {
		return nil
	}
	out := make(map[string]model.ProfileSnapshot, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func dupGroupSnaps(in map[string]model.GroupSnapshot) map[string]model.GroupSnapshot {
	if in == nil {
		return nil
	}
	out := make(map[string]model.GroupSnapshot, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
