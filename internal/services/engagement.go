package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/notify"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
	"github.com/anjalik1505/town-functions-sub002/internal/visibility"
)

// EngagementService handles comments and reactions on updates.
type EngagementService struct {
	store store.Store
	gw    notify.Gateway
	log   zerolog.Logger
}

func NewEngagementService(s store.Store, gw notify.Gateway, log zerolog.Logger) *EngagementService {
	return &EngagementService{store: s, gw: gw, log: log.With().Str("component", "engagement").Logger()}
}

// AddComment creates a comment and bumps the update's counter in one batch,
// then notifies the update's creator best effort.
func (s *EngagementService) AddComment(ctx context.Context, authorID, updateID, body string) (*model.Comment, error) {
	u, err := s.store.Updates().Get(ctx, updateID)
	if err != nil {
		return nil, err
	}
	if !visibility.CanView(authorID, u.CreatorID, u.VisibleTo) {
		return nil, fmt.Errorf("update %s: %w", updateID, model.ErrForbidden)
	}
	author, err := s.store.Profiles().Get(ctx, authorID)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{
		CommentID: uuid.NewString(),
		UpdateID:  updateID,
		AuthorID:  authorID,
		Author:    model.SnapshotOf(author),
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	b := s.store.NewBatch()
	if err := s.store.Comments().Create(ctx, c, b); err != nil {
		return nil, err
	}
	if err := s.store.Updates().AddCommentCount(ctx, updateID, 1, b); err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, err
	}

	if authorID != u.CreatorID {
		s.notifyCreator(ctx, u.CreatorID, author.Name+" commented on your update", c.Body, map[string]string{
			"type":     "comment",
			"updateId": updateID,
		})
	}
	return c, nil
}

// ListComments pages through an update's comments, oldest first.
func (s *EngagementService) ListComments(ctx context.Context, requesterID, updateID string, page store.Page) ([]*model.Comment, string, error) {
	u, err := s.store.Updates().Get(ctx, updateID)
	if err != nil {
		return nil, "", err
	}
	if !visibility.CanView(requesterID, u.CreatorID, u.VisibleTo) {
		return nil, "", fmt.Errorf("update %s: %w", updateID, model.ErrForbidden)
	}
	return s.store.Comments().List(ctx, updateID, page)
}

// DeleteComment removes the author's own comment and decrements the counter.
func (s *EngagementService) DeleteComment(ctx context.Context, userID, commentID string) error {
	c, err := s.store.Comments().Get(ctx, commentID)
	if err != nil {
		return err
	}
	if c.AuthorID != userID {
		return fmt.Errorf("comment %s: %w", commentID, model.ErrForbidden)
	}

	b := s.store.NewBatch()
	if err := s.store.Comments().Delete(ctx, commentID, b); err != nil {
		return err
	}
	if err := s.store.Updates().AddCommentCount(ctx, c.UpdateID, -1, b); err != nil {
		return err
	}
	return b.Commit(ctx)
}

// AddReaction records a reaction. Re-reacting with the same type is a no-op,
// so the counter moves at most once per (update, user, type).
func (s *EngagementService) AddReaction(ctx context.Context, userID, updateID, reactionType string) error {
	u, err := s.store.Updates().Get(ctx, updateID)
	if err != nil {
		return err
	}
	if !visibility.CanView(userID, u.CreatorID, u.VisibleTo) {
		return fmt.Errorf("update %s: %w", updateID, model.ErrForbidden)
	}

	if _, err := s.store.Reactions().Get(ctx, updateID, userID, reactionType); err == nil {
		return nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return err
	}

	r := &model.Reaction{
		UpdateID:  updateID,
		UserID:    userID,
		Type:      reactionType,
		CreatedAt: time.Now().UTC(),
	}

	b := s.store.NewBatch()
	if err := s.store.Reactions().Put(ctx, r, b); err != nil {
		return err
	}
	if err := s.store.Updates().AddReactionCount(ctx, updateID, 1, b); err != nil {
		return err
	}
	return b.Commit(ctx)
}

// RemoveReaction deletes a reaction if present.
func (s *EngagementService) RemoveReaction(ctx context.Context, userID, updateID, reactionType string) error {
	if _, err := s.store.Reactions().Get(ctx, updateID, userID, reactionType); errors.Is(err, model.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}

	b := s.store.NewBatch()
	if err := s.store.Reactions().Delete(ctx, updateID, userID, reactionType, b); err != nil {
		return err
	}
	if err := s.store.Updates().AddReactionCount(ctx, updateID, -1, b); err != nil {
		return err
	}
	return b.Commit(ctx)
}

// notifyCreator sends a push honoring the creator's notification mode.
// Failures are logged and never surfaced to the commenter.
func (s *EngagementService) notifyCreator(ctx context.Context, creatorID, title, body string, data map[string]string) {
	p, err := s.store.Profiles().Get(ctx, creatorID)
	if err != nil || p.DeviceToken == "" || p.NotifyMode == model.NotifyNone {
		return
	}
	if p.NotifyMode == model.NotifySilent {
		err = s.gw.SendSilent(ctx, p.DeviceToken, data)
	} else {
		err = s.gw.Send(ctx, p.DeviceToken, title, body, data)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", creatorID).Msg("creator notification failed")
	}
}
