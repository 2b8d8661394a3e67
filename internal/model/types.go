package model

import "time"

// Statuses shared by invites, join requests, and friendships.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Notification modes stored on a profile.
const (
	NotifyAll    = "all"
	NotifySilent = "silent"
	NotifyNone   = "none"
)

// ProfileSnapshot is the denormalized identity copy embedded in dependent
// documents. Snapshots are captured at write time and rewritten only by the
// propagation pass.
type ProfileSnapshot struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
}

// Insights are the self-summary fields produced by the summarizer.
type Insights struct {
	EmotionalOverview string `json:"emotionalOverview,omitempty"`
	KeyMoments        string `json:"keyMoments,omitempty"`
	RecurringThemes   string `json:"recurringThemes,omitempty"`
	Progress          string `json:"progress,omitempty"`
}

// Profile is the canonical per-user record.
type Profile struct {
	UserID           string       `json:"userId"`
	Username         string       `json:"username"`
	Name             string       `json:"name"`
	Avatar           string       `json:"avatar,omitempty"`
	Phone            string       `json:"phone,omitempty"`
	Gender           string       `json:"gender,omitempty"`
	AgeBucket        string       `json:"ageBucket,omitempty"`
	Timezone         string       `json:"timezone"`
	DeviceToken      string       `json:"deviceToken,omitempty"`
	NotifyMode       string       `json:"notifyMode"`
	NudgeEnabled     bool         `json:"nudgeEnabled"`
	NudgeWeekday     time.Weekday `json:"nudgeWeekday"`
	NudgeBucket      string       `json:"nudgeBucket,omitempty"`
	Summary          string       `json:"summary,omitempty"`
	Suggestions      string       `json:"suggestions,omitempty"`
	Insights         Insights     `json:"insights"`
	LastUpdateID     string       `json:"lastUpdateId,omitempty"`
	LastUpdateAt     *time.Time   `json:"lastUpdateAt,omitempty"`
	LastUpdateEmoji  string       `json:"lastUpdateEmoji,omitempty"`
	GroupIDs         []string     `json:"groupIds,omitempty"`
	FriendCount      int          `json:"friendCount"`
	FriendsToCleanup []string     `json:"friendsToCleanup,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// SnapshotOf extracts the denormalized identity copy of p.
func SnapshotOf(p *Profile) ProfileSnapshot {
	return ProfileSnapshot{Username: p.Username, Name: p.Name, Avatar: p.Avatar}
}

// ProfileEdit is the caller-editable profile field set. Applied as a whole;
// counters, AI fields, and caches are never written through an edit.
type ProfileEdit struct {
	Username  string
	Name      string
	Avatar    string
	Phone     string
	Gender    string
	AgeBucket string
	Timezone  string
}

// ProfileSettings are the notification and nudge preferences.
type ProfileSettings struct {
	DeviceToken  string
	NotifyMode   string
	NudgeEnabled bool
	NudgeWeekday time.Weekday
}

// SelfSummary is the profile-resident output of a self fold.
type SelfSummary struct {
	Summary      string
	Suggestions  string
	Insights     Insights
	LastUpdateID string
}

// GroupSnapshot is the denormalized group copy embedded in updates.
type GroupSnapshot struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Update is one content item. Immutable after creation except for counters,
// recipient lists, and the embedded snapshots.
type Update struct {
	UpdateID      string                     `json:"updateId"`
	CreatorID     string                     `json:"creatorId"`
	Body          string                     `json:"body"`
	Sentiment     string                     `json:"sentiment,omitempty"`
	Score         float64                    `json:"score,omitempty"`
	Emoji         string                     `json:"emoji,omitempty"`
	FriendIDs     []string                   `json:"friendIds,omitempty"`
	GroupIDs      []string                   `json:"groupIds,omitempty"`
	VisibleTo     []string                   `json:"visibleTo"`
	AllVillage    bool                       `json:"allVillage"`
	CommentCount  int                        `json:"commentCount"`
	ReactionCount int                        `json:"reactionCount"`
	Creator       ProfileSnapshot            `json:"creator"`
	SharedFriends map[string]ProfileSnapshot `json:"sharedFriends,omitempty"`
	SharedGroups  map[string]GroupSnapshot   `json:"sharedGroups,omitempty"`
	CreatedAt     time.Time                  `json:"createdAt"`
}

// ShareTargets is the recipient set added by one share call, with the
// snapshots captured for them at share time.
type ShareTargets struct {
	FriendIDs []string
	GroupIDs  []string
	Friends   map[string]ProfileSnapshot
	Groups    map[string]GroupSnapshot
}

// FeedEntry is one per (recipient, update) pair, stored under the recipient.
type FeedEntry struct {
	OwnerID       string    `json:"ownerId"`
	UpdateID      string    `json:"updateId"`
	CreatedAt     time.Time `json:"createdAt"`
	DirectVisible bool      `json:"directVisible"`
	FriendID      string    `json:"friendId,omitempty"`
	GroupIDs      []string  `json:"groupIds,omitempty"`
}

// Friendship is one direction of a relation; the counterpart row always
// exists with the same status.
type Friendship struct {
	OwnerID         string          `json:"ownerId"`
	FriendID        string          `json:"friendId"`
	Status          string          `json:"status"`
	Friend          ProfileSnapshot `json:"friend"`
	LastUpdateEmoji string          `json:"lastUpdateEmoji,omitempty"`
	LastUpdateAt    *time.Time      `json:"lastUpdateAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// RelationshipSummary is the running fold of one creator's updates as seen
// by one target. Keyed by (PairID, CreatorID); the pair id is
// order-independent, the creator id discriminates direction.
type RelationshipSummary struct {
	PairID       string    `json:"pairId"`
	CreatorID    string    `json:"creatorId"`
	TargetID     string    `json:"targetId"`
	Summary      string    `json:"summary"`
	Suggestions  string    `json:"suggestions,omitempty"`
	LastUpdateID string    `json:"lastUpdateId"`
	UpdateCount  int       `json:"updateCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PairID returns the order-independent identity for a user pair.
// PairID(a, b) == PairID(b, a).
func PairID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// Invite is a phone invitation authored by an existing user.
type Invite struct {
	InviteID  string          `json:"inviteId"`
	InviterID string          `json:"inviterId"`
	Inviter   ProfileSnapshot `json:"inviter"`
	Phone     string          `json:"phone,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// JoinRequest is a friendship request between two existing users.
type JoinRequest struct {
	RequestID   string          `json:"requestId"`
	RequesterID string          `json:"requesterId"`
	ReceiverID  string          `json:"receiverId"`
	Requester   ProfileSnapshot `json:"requester"`
	Receiver    ProfileSnapshot `json:"receiver"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Group holds a member set and a snapshot per member; snapshot keys always
// equal the member set.
type Group struct {
	GroupID        string                     `json:"groupId"`
	Name           string                     `json:"name"`
	Icon           string                     `json:"icon,omitempty"`
	Members        []string                   `json:"members"`
	MemberProfiles map[string]ProfileSnapshot `json:"memberProfiles"`
	CreatedAt      time.Time                  `json:"createdAt"`
	UpdatedAt      time.Time                  `json:"updatedAt"`
}

// Comment on an update.
type Comment struct {
	CommentID string          `json:"commentId"`
	UpdateID  string          `json:"updateId"`
	AuthorID  string          `json:"authorId"`
	Author    ProfileSnapshot `json:"author"`
	Body      string          `json:"body"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Reaction on an update, at most one per (update, user, type).
type Reaction struct {
	UpdateID  string    `json:"updateId"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// PhoneEntry maps a phone number to the owning user.
type PhoneEntry struct {
	Phone  string `json:"phone"`
	UserID string `json:"userId"`
}

// TimeBucket groups users whose nudge slot falls on one UTC weekday/hour.
type TimeBucket struct {
	BucketKey   string    `json:"bucketKey"`
	LastTouched time.Time `json:"lastTouched"`
}

// Event statuses.
const (
	EventPending = "pending"
	EventDone    = "done"
	EventDead    = "dead"
)

// Event is one queued trigger invocation, written in the same batch as the
// mutation that caused it and delivered at-least-once, unordered.
type Event struct {
	ID            int64     `json:"id"`
	Type          string    `json:"type"`
	AggregateID   string    `json:"aggregateId"`
	Payload       []byte    `json:"payload"`
	Status        string    `json:"status"`
	AttemptCount  int       `json:"attemptCount"`
	NextAttemptAt time.Time `json:"nextAttemptAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
