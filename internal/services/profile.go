// Package services orchestrates use cases over the store. Handlers in
// internal/api only translate HTTP; consistency work (snapshots, batches,
// trigger events) lives here and in the trigger handlers.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// ProfileService handles profile lifecycle and settings.
type ProfileService struct {
	store store.Store
}

func NewProfileService(s store.Store) *ProfileService { return &ProfileService{store: s} }

// CreateProfile bootstraps a new account: the profile document, the phone
// directory entry, and the event that places the user in a nudge bucket.
func (s *ProfileService) CreateProfile(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	if _, err := s.store.Profiles().Get(ctx, p.UserID); err == nil {
		return nil, fmt.Errorf("profile %s: %w", p.UserID, model.ErrConflict)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if p.Phone != "" {
		if owner, err := s.store.Phones().Lookup(ctx, p.Phone); err == nil && owner != p.UserID {
			return nil, fmt.Errorf("phone already registered: %w", model.ErrConflict)
		} else if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.NotifyMode == "" {
		p.NotifyMode = model.NotifyAll
	}

	ev, err := events.New(events.TypeNudgeSettingsChanged, p.UserID, events.NudgeSettingsChangedPayload{UserID: p.UserID})
	if err != nil {
		return nil, err
	}

	b := s.store.NewBatch()
	if err := s.store.Profiles().Create(ctx, p, b); err != nil {
		return nil, err
	}
	if p.Phone != "" {
		if err := s.store.Phones().Put(ctx, p.Phone, p.UserID, b); err != nil {
			return nil, err
		}
	}
	if err := s.store.Events().Append(ctx, ev, b); err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProfile returns a profile. Reading someone else's profile requires an
// accepted friendship.
func (s *ProfileService) GetProfile(ctx context.Context, requesterID, userID string) (*model.Profile, error) {
	if requesterID != userID {
		f, err := s.store.Friendships().Get(ctx, requesterID, userID)
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("profile %s: %w", userID, model.ErrForbidden)
		}
		if err != nil {
			return nil, err
		}
		if f.Status != model.StatusAccepted {
			return nil, fmt.Errorf("profile %s: %w", userID, model.ErrForbidden)
		}
	}
	return s.store.Profiles().Get(ctx, userID)
}

// UpdateProfile applies an edit and, when a denormalized field changed,
// emits the propagation event carrying both sides of the diff.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, e model.ProfileEdit) (*model.Profile, error) {
	prev, err := s.store.Profiles().Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if e.Phone != "" && e.Phone != prev.Phone {
		if owner, lerr := s.store.Phones().Lookup(ctx, e.Phone); lerr == nil && owner != userID {
			return nil, fmt.Errorf("phone already registered: %w", model.ErrConflict)
		} else if lerr != nil && !errors.Is(lerr, model.ErrNotFound) {
			return nil, lerr
		}
	}

	before := events.ProfileFields{Username: prev.Username, Name: prev.Name, Avatar: prev.Avatar, Phone: prev.Phone}
	after := events.ProfileFields{Username: e.Username, Name: e.Name, Avatar: e.Avatar, Phone: e.Phone}

	b := s.store.NewBatch()
	if err := s.store.Profiles().ApplyEdit(ctx, userID, e, b); err != nil {
		return nil, err
	}
	if before != after {
		ev, err := events.New(events.TypeProfileUpdated, userID, events.ProfileUpdatedPayload{
			UserID: userID,
			Before: before,
			After:  after,
		})
		if err != nil {
			return nil, err
		}
		if err := s.store.Events().Append(ctx, ev, b); err != nil {
			return nil, err
		}
	}
	if err := b.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.Profiles().Get(ctx, userID)
}

// UpdateSettings changes device and nudge settings and asks the scheduler
// to reconcile bucket membership.
func (s *ProfileService) UpdateSettings(ctx context.Context, userID string, set model.ProfileSettings) error {
	if _, err := s.store.Profiles().Get(ctx, userID); err != nil {
		return err
	}

	ev, err := events.New(events.TypeNudgeSettingsChanged, userID, events.NudgeSettingsChangedPayload{UserID: userID})
	if err != nil {
		return err
	}

	b := s.store.NewBatch()
	if err := s.store.Profiles().ApplySettings(ctx, userID, set, b); err != nil {
		return err
	}
	if err := s.store.Events().Append(ctx, ev, b); err != nil {
		return err
	}
	return b.Commit(ctx)
}

// DeleteProfile removes the account. The friend list is snapshotted into
// friends_to_cleanup before the delete so the cascade survives a crash
// between the two writes, and again into the event payload the cascade
// actually consumes.
func (s *ProfileService) DeleteProfile(ctx context.Context, userID string) error {
	p, err := s.store.Profiles().Get(ctx, userID)
	if err != nil {
		return err
	}
	friendIDs, err := s.store.Friendships().ListIDs(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.store.Profiles().SetFriendsToCleanup(ctx, userID, friendIDs, nil); err != nil {
		return err
	}

	ev, err := events.New(events.TypeProfileDeleted, userID, events.ProfileDeletedPayload{
		UserID:      userID,
		Phone:       p.Phone,
		FriendIDs:   friendIDs,
		GroupIDs:    p.GroupIDs,
		NudgeBucket: p.NudgeBucket,
	})
	if err != nil {
		return err
	}

	b := s.store.NewBatch()
	if err := s.store.Profiles().Delete(ctx, userID, b); err != nil {
		return err
	}
	if err := s.store.Events().Append(ctx, ev, b); err != nil {
		return err
	}
	return b.Commit(ctx)
}
