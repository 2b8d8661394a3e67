package store

import (
	"context"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
)

// Store exposes persistence operations required by services and trigger
// handlers. Implementations live under internal/store/<driver>/.
//
// Mutation methods take a trailing Batch. Passing nil applies the mutation
// immediately in its own transaction; passing a batch defers it to the
// batch's atomic commit. Counter mutations are store-native increments,
// never read-modify-write.
type Store interface {
	Profiles() Profiles
	Phones() Phones
	Friendships() Friendships
	Invites() Invites
	JoinRequests() JoinRequests
	Updates() Updates
	Comments() Comments
	Reactions() Reactions
	Feeds() Feeds
	Summaries() Summaries
	Groups() Groups
	TimeBuckets() TimeBuckets
	Events() Events

	NewBatch() Batch
	Ping(ctx context.Context) error
	Close() error
}

type Profiles interface {
	Create(ctx context.Context, p *model.Profile, b Batch) error
	Get(ctx context.Context, userID string) (*model.Profile, error)
	GetBatch(ctx context.Context, userIDs []string) (map[string]*model.Profile, error)
	ApplyEdit(ctx context.Context, userID string, e model.ProfileEdit, b Batch) error
	ApplySettings(ctx context.Context, userID string, s model.ProfileSettings, b Batch) error
	SetSelfSummary(ctx context.Context, userID string, s model.SelfSummary, b Batch) error
	// SetLastUpdate advances the latest-update cache. Stamps older than the
	// stored last_update_at are dropped, so redelivered triggers never
	// regress the cache.
	SetLastUpdate(ctx context.Context, userID, updateID, emoji string, at time.Time, b Batch) error
	AddFriendCount(ctx context.Context, userID string, delta int, b Batch) error
	AddGroup(ctx context.Context, userID, groupID string, b Batch) error
	RemoveGroup(ctx context.Context, userID, groupID string, b Batch) error
	SetNudgeBucket(ctx context.Context, userID, bucket string, b Batch) error
	SetFriendsToCleanup(ctx context.Context, userID string, friendIDs []string, b Batch) error
	Delete(ctx context.Context, userID string, b Batch) error
}

// Phones is the phone-number directory used by invites and signup.
type Phones interface {
	Put(ctx context.Context, phone, userID string, b Batch) error
	Lookup(ctx context.Context, phone string) (string, error)
	Delete(ctx context.Context, phone string, b Batch) error
}

type Friendships interface {
	Put(ctx context.Context, f *model.Friendship, b Batch) error
	Get(ctx context.Context, ownerID, friendID string) (*model.Friendship, error)
	List(ctx context.Context, ownerID string, page Page) ([]*model.Friendship, string, error)
	ListIDs(ctx context.Context, ownerID string) ([]string, error)
	SetFriendSnapshot(ctx context.Context, ownerID, friendID string, snap model.ProfileSnapshot, b Batch) error
	// SetLastUpdate advances the counterpart's latest-update cache; older
	// stamps are dropped.
	SetLastUpdate(ctx context.Context, ownerID, friendID, emoji string, at time.Time, b Batch) error
	Delete(ctx context.Context, ownerID, friendID string, b Batch) error
}

type Invites interface {
	Create(ctx context.Context, inv *model.Invite, b Batch) error
	Get(ctx context.Context, inviteID string) (*model.Invite, error)
	ListByInviter(ctx context.Context, inviterID string) ([]*model.Invite, error)
	SetStatus(ctx context.Context, inviteID, status string, b Batch) error
	SetInviterSnapshot(ctx context.Context, inviteID string, snap model.ProfileSnapshot, b Batch) error
	Delete(ctx context.Context, inviteID string, b Batch) error
}

type JoinRequests interface {
	Create(ctx context.Context, r *model.JoinRequest, b Batch) error
	Get(ctx context.Context, requestID string) (*model.JoinRequest, error)
	// GetByPair returns the most recent request from requester to receiver.
	GetByPair(ctx context.Context, requesterID, receiverID string) (*model.JoinRequest, error)
	ListByUser(ctx context.Context, userID string) ([]*model.JoinRequest, error)
	SetStatus(ctx context.Context, requestID, status string, b Batch) error
	SetRequesterSnapshot(ctx context.Context, requestID string, snap model.ProfileSnapshot, b Batch) error
	SetReceiverSnapshot(ctx context.Context, requestID string, snap model.ProfileSnapshot, b Batch) error
	Delete(ctx context.Context, requestID string, b Batch) error
}

type Updates interface {
	Create(ctx context.Context, u *model.Update, b Batch) error
	Get(ctx context.Context, updateID string) (*model.Update, error)
	ListByCreator(ctx context.Context, creatorID string, page Page) ([]*model.Update, string, error)
	// ListAllVillageByCreator returns every share-with-everyone update by
	// one creator, newest first. Used by the friendship backfill.
	ListAllVillageByCreator(ctx context.Context, creatorID string) ([]*model.Update, error)
	ListIDsByCreator(ctx context.Context, creatorID string) ([]string, error)
	ListIDsBySharedFriend(ctx context.Context, userID string) ([]string, error)
	// Share unions the added recipients into the id lists, visible_to, and
	// snapshot maps in one idempotent statement.
	Share(ctx context.Context, updateID string, add model.ShareTargets, b Batch) error
	RemoveFriend(ctx context.Context, updateID, friendID string, b Batch) error
	RemoveGroup(ctx context.Context, updateID, groupID string, b Batch) error
	SetCreatorSnapshot(ctx context.Context, updateID string, snap model.ProfileSnapshot, b Batch) error
	SetFriendSnapshot(ctx context.Context, updateID, userID string, snap model.ProfileSnapshot, b Batch) error
	AddCommentCount(ctx context.Context, updateID string, delta int, b Batch) error
	AddReactionCount(ctx context.Context, updateID string, delta int, b Batch) error
	Delete(ctx context.Context, updateID string, b Batch) error
}

type Comments interface {
	Create(ctx context.Context, c *model.Comment, b Batch) error
	Get(ctx context.Context, commentID string) (*model.Comment, error)
	List(ctx context.Context, updateID string, page Page) ([]*model.Comment, string, error)
	ListIDsByUpdate(ctx context.Context, updateID string) ([]string, error)
	ListIDsByAuthor(ctx context.Context, authorID string) ([]string, error)
	SetAuthorSnapshot(ctx context.Context, commentID string, snap model.ProfileSnapshot, b Batch) error
	Delete(ctx context.Context, commentID string, b Batch) error
}

type Reactions interface {
	Put(ctx context.Context, r *model.Reaction, b Batch) error
	Get(ctx context.Context, updateID, userID, reactionType string) (*model.Reaction, error)
	ListByUpdate(ctx context.Context, updateID string) ([]*model.Reaction, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Reaction, error)
	Delete(ctx context.Context, updateID, userID, reactionType string, b Batch) error
}

type Feeds interface {
	// Put upserts by (owner, update); replaying a fan-out is a no-op.
	Put(ctx context.Context, e *model.FeedEntry, b Batch) error
	Get(ctx context.Context, ownerID, updateID string) (*model.FeedEntry, error)
	List(ctx context.Context, ownerID string, page Page) ([]*model.FeedEntry, string, error)
	ListOwnersByUpdate(ctx context.Context, updateID string) ([]string, error)
	ListUpdateIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
	Delete(ctx context.Context, ownerID, updateID string, b Batch) error
}

type Summaries interface {
	Get(ctx context.Context, pairID, creatorID string) (*model.RelationshipSummary, error)
	// Upsert replaces the fold state and advances update_count by countDelta
	// natively; on first insert the count starts at countDelta.
	Upsert(ctx context.Context, s *model.RelationshipSummary, countDelta int, b Batch) error
	ListByUser(ctx context.Context, userID string) ([]*model.RelationshipSummary, error)
	Delete(ctx context.Context, pairID, creatorID string, b Batch) error
}

type Groups interface {
	Create(ctx context.Context, g *model.Group, b Batch) error
	Get(ctx context.Context, groupID string) (*model.Group, error)
	GetBatch(ctx context.Context, groupIDs []string) (map[string]*model.Group, error)
	// AddMember extends the member set and snapshot map together so the
	// keys-equal-members invariant holds per statement.
	AddMember(ctx context.Context, groupID, userID string, snap model.ProfileSnapshot, b Batch) error
	RemoveMember(ctx context.Context, groupID, userID string, b Batch) error
	SetMemberSnapshot(ctx context.Context, groupID, userID string, snap model.ProfileSnapshot, b Batch) error
}

type TimeBuckets interface {
	Get(ctx context.Context, bucketKey string) (*model.TimeBucket, error)
	AddUser(ctx context.Context, bucketKey, userID string, b Batch) error
	RemoveUser(ctx context.Context, bucketKey, userID string, b Batch) error
	ListUsers(ctx context.Context, bucketKey string) ([]string, error)
}

// Events is the trigger queue. Append shares the batch with the mutation
// that caused the event; Claim leases due pending rows for one dispatch
// cycle so concurrent workers never double-claim.
type Events interface {
	Append(ctx context.Context, e *model.Event, b Batch) error
	Claim(ctx context.Context, limit int, lease time.Duration) ([]*model.Event, error)
	MarkDone(ctx context.Context, id int64) error
	// MarkFailed reschedules with exponential backoff, parking the event as
	// dead once attempt_count reaches maxAttempts.
	MarkFailed(ctx context.Context, id int64, maxAttempts int) error
	Requeue(ctx context.Context, id int64) error
	ListByStatus(ctx context.Context, status string, limit int) ([]*model.Event, error)
	Counts(ctx context.Context) (map[string]int64, error)
}
