package fanout

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
	"github.com/anjalik1505/town-functions-sub002/internal/summary"
)

// HandleFriendshipCreated backfills each side's feed with the other side's
// share-with-everyone history and folds that history into the pair's
// summaries. Both direction rows emit an event; only the one whose owner id
// sorts first runs, so the pair is processed exactly once per delivery and
// the mirror event is a no-op.
func (e *Engine) HandleFriendshipCreated(ctx context.Context, p events.FriendshipCreatedPayload) error {
	if p.OwnerID >= p.FriendID {
		e.log.Debug().
			Str("owner_id", p.OwnerID).
			Str("friend_id", p.FriendID).
			Msg("mirror friendship event skipped")
		return nil
	}
	if err := e.backfill(ctx, p.OwnerID, p.FriendID); err != nil {
		return err
	}
	return e.backfill(ctx, p.FriendID, p.OwnerID)
}

// backfill grants gainerID visibility into creatorID's all-village history:
// a feed entry per item, an idempotent visibility extension on the item
// itself, and one summary fold over the whole run. Items are streamed
// newest first and isolated from each other; a failed item is retried by
// the next delivery.
func (e *Engine) backfill(ctx context.Context, gainerID, creatorID string) error {
	// The creator-owned row carries the friendship creation time and the
	// gainer's snapshot captured at acceptance.
	rel, err := e.st.Friendships().Get(ctx, creatorID, gainerID)
	if errors.Is(err, model.ErrNotFound) {
		// Dissolved before the trigger ran; nothing to grant.
		return nil
	}
	if err != nil {
		return fmt.Errorf("load friendship %s/%s: %w", creatorID, gainerID, err)
	}

	all, err := e.st.Updates().ListAllVillageByCreator(ctx, creatorID)
	if err != nil {
		return fmt.Errorf("list history of %s: %w", creatorID, err)
	}
	// Only genuine history. Anything created after the friendship reaches
	// the gainer through its own creation fan-out, which also folds it, so
	// including it here would process it twice.
	items := make([]*model.Update, 0, len(all))
	for _, u := range all {
		if u.CreatedAt.Before(rel.CreatedAt) {
			items = append(items, u)
		}
	}
	if len(items) == 0 {
		return nil
	}

	share := model.ShareTargets{
		FriendIDs: []string{gainerID},
		Friends:   map[string]model.ProfileSnapshot{gainerID: rel.Friend},
	}
	w := store.NewBatchWriter(e.st)
	failed := 0
	for _, u := range items {
		if err := e.backfillItem(ctx, w, u, gainerID, share); err != nil {
			failed++
			e.log.Warn().Err(err).
				Str("update_id", u.UpdateID).
				Str("gainer_id", gainerID).
				Msg("backfill item failed")
		}
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("flush backfill %s<-%s: %w", gainerID, creatorID, err)
	}

	newest := items[0]
	if err := e.st.Friendships().SetLastUpdate(ctx, gainerID, creatorID, newest.Emoji, newest.CreatedAt, nil); err != nil {
		e.log.Warn().Err(err).Str("gainer_id", gainerID).Msg("backfill cache refresh failed")
	}

	demo := summary.Demographics{}
	if prof, err := e.st.Profiles().Get(ctx, creatorID); err == nil {
		demo = summary.Demographics{Gender: prof.Gender, AgeBucket: prof.AgeBucket}
	} else if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("load creator %s: %w", creatorID, err)
	}
	folded, err := e.folds.FoldHistory(ctx, creatorID, gainerID, items, demo)
	if err != nil {
		return err
	}
	e.log.Info().
		Str("gainer_id", gainerID).
		Str("creator_id", creatorID).
		Int("items", len(items)).
		Int("folded", folded).
		Msg("backfill complete")

	if failed > 0 {
		return fmt.Errorf("backfill %s<-%s: %d of %d items failed", gainerID, creatorID, failed, len(items))
	}
	return nil
}

func (e *Engine) backfillItem(ctx context.Context, w *store.BatchWriter, u *model.Update, gainerID string, share model.ShareTargets) error {
	b, err := w.Ready(ctx)
	if err != nil {
		return err
	}
	if err := e.st.Updates().Share(ctx, u.UpdateID, share, b); err != nil {
		return err
	}
	b, err = w.Ready(ctx)
	if err != nil {
		return err
	}
	return e.st.Feeds().Put(ctx, &model.FeedEntry{
		OwnerID:       gainerID,
		UpdateID:      u.UpdateID,
		CreatedAt:     u.CreatedAt,
		DirectVisible: true,
		FriendID:      u.CreatorID,
	}, b)
}
