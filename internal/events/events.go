// Package events defines the trigger catalogue: the event types appended to
// the store alongside the mutations that cause them, and the payload shape
// each handler consumes. Delivery is at-least-once and unordered, so every
// payload carries what a handler needs to run idempotently.
package events

import (
	"encoding/json"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
)

// Event types routed by the dispatcher.
const (
	TypeUpdateCreated        = "update_created"
	TypeUpdateShared         = "update_shared"
	TypeUpdateDeleted        = "update_deleted"
	TypeFriendshipCreated    = "friendship_created"
	TypeProfileUpdated       = "profile_updated"
	TypeNudgeSettingsChanged = "nudge_settings_changed"
	TypeProfileDeleted       = "profile_deleted"
)

// New builds a pending event with the payload marshaled to JSON.
func New(eventType, aggregateID string, payload interface{}) (*model.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &model.Event{
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     raw,
		Status:      model.EventPending,
	}, nil
}

// UpdateCreatedPayload announces a new update; the handler reads the update
// document itself.
type UpdateCreatedPayload struct {
	UpdateID  string `json:"updateId"`
	CreatorID string `json:"creatorId"`
}

// UpdateSharedPayload carries only the recipients added by a share call so
// the incremental fan-out never re-walks earlier recipients.
type UpdateSharedPayload struct {
	UpdateID       string   `json:"updateId"`
	CreatorID      string   `json:"creatorId"`
	AddedFriendIDs []string `json:"addedFriendIds,omitempty"`
	AddedGroupIDs  []string `json:"addedGroupIds,omitempty"`
}

// UpdateDeletedPayload identifies a deleted update; dependent feed entries,
// comments, and reactions are found by update id.
type UpdateDeletedPayload struct {
	UpdateID  string `json:"updateId"`
	CreatorID string `json:"creatorId"`
}

// FriendshipCreatedPayload is emitted once per direction row. Only the
// direction whose owner id sorts first runs the historical backfill.
type FriendshipCreatedPayload struct {
	OwnerID  string `json:"ownerId"`
	FriendID string `json:"friendId"`
}

// ProfileFields are the denormalized profile fields whose edits propagate.
type ProfileFields struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// ProfileUpdatedPayload carries both sides of a profile edit. The diff is
// computed from the payload, not the live document, so redelivery rewrites
// the same fields.
type ProfileUpdatedPayload struct {
	UserID string        `json:"userId"`
	Before ProfileFields `json:"before"`
	After  ProfileFields `json:"after"`
}

// NudgeSettingsChangedPayload asks the scheduler to reconcile one user's
// bucket membership against their current settings.
type NudgeSettingsChangedPayload struct {
	UserID string `json:"userId"`
}

// ProfileDeletedPayload snapshots everything the cascade needs after the
// profile document is gone.
type ProfileDeletedPayload struct {
	UserID      string   `json:"userId"`
	Phone       string   `json:"phone,omitempty"`
	FriendIDs   []string `json:"friendIds,omitempty"`
	GroupIDs    []string `json:"groupIds,omitempty"`
	NudgeBucket string   `json:"nudgeBucket,omitempty"`
}
