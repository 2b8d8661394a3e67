package fanout

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// HandleUpdateDeleted removes everything hanging off a deleted update: feed
// entries, comments, and reactions. Point deletes only, so replays are
// no-ops.
func (e *Engine) HandleUpdateDeleted(ctx context.Context, p events.UpdateDeletedPayload) error {
	w := store.NewBatchWriter(e.st)
	if err := e.cleanupUpdate(ctx, w, p.UpdateID); err != nil {
		return err
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("flush update cleanup %s: %w", p.UpdateID, err)
	}
	return nil
}

// cleanupUpdate queues deletion of one update's dependents. The update row
// itself stays with the caller: the update-deleted path has already lost it,
// the account cascade deletes it alongside.
func (e *Engine) cleanupUpdate(ctx context.Context, w *store.BatchWriter, updateID string) error {
	owners, err := e.st.Feeds().ListOwnersByUpdate(ctx, updateID)
	if err != nil {
		return fmt.Errorf("list feed owners of %s: %w", updateID, err)
	}
	for _, o := range owners {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Feeds().Delete(ctx, o, updateID, b); err != nil {
			return err
		}
	}

	commentIDs, err := e.st.Comments().ListIDsByUpdate(ctx, updateID)
	if err != nil {
		return fmt.Errorf("list comments of %s: %w", updateID, err)
	}
	for _, id := range commentIDs {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Comments().Delete(ctx, id, b); err != nil {
			return err
		}
	}

	reactions, err := e.st.Reactions().ListByUpdate(ctx, updateID)
	if err != nil {
		return fmt.Errorf("list reactions of %s: %w", updateID, err)
	}
	for _, r := range reactions {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Reactions().Delete(ctx, r.UpdateID, r.UserID, r.Type, b); err != nil {
			return err
		}
	}
	return nil
}

// HandleProfileDeleted runs the account-deletion cascade. The profile row
// is already gone, so everything the cascade needs rides in the payload
// snapshot. Streams are isolated: one stream's failure is reported after
// the others have run, and the next delivery resumes whatever remains.
func (e *Engine) HandleProfileDeleted(ctx context.Context, p events.ProfileDeletedPayload) error {
	w := store.NewBatchWriter(e.st)

	var errs []error
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			e.log.Error().Err(err).Str("user_id", p.UserID).Str("stream", name).Msg("cascade stream failed")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("friendships", func() error { return e.cleanupFriendships(ctx, w, p.UserID, p.FriendIDs) })
	step("updates", func() error { return e.cleanupAuthoredUpdates(ctx, w, p.UserID) })
	step("shared", func() error { return e.cleanupRecipientEntries(ctx, w, p.UserID) })
	step("feed", func() error { return e.cleanupOwnFeed(ctx, w, p.UserID) })
	step("engagement", func() error { return e.cleanupEngagement(ctx, w, p.UserID) })
	step("summaries", func() error { return e.cleanupSummaries(ctx, w, p.UserID) })
	step("invites", func() error { return e.cleanupInvitesAndRequests(ctx, w, p.UserID) })
	step("membership", func() error { return e.cleanupMembership(ctx, w, p) })

	if err := w.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush cascade: %w", err))
	}
	return errors.Join(errs...)
}

// cleanupFriendships drops both direction rows per friend and gives back
// the counterpart's friend_count. The counterpart row is probed first so a
// redelivered cascade never decrements twice.
func (e *Engine) cleanupFriendships(ctx context.Context, w *store.BatchWriter, userID string, friendIDs []string) error {
	for _, fid := range friendIDs {
		if _, err := e.st.Friendships().Get(ctx, fid, userID); errors.Is(err, model.ErrNotFound) {
			continue
		} else if err != nil {
			return fmt.Errorf("probe friendship %s/%s: %w", fid, userID, err)
		}
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Friendships().Delete(ctx, fid, userID, b); err != nil {
			return err
		}
		b, err = w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Friendships().Delete(ctx, userID, fid, b); err != nil {
			return err
		}
		b, err = w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Profiles().AddFriendCount(ctx, fid, -1, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cleanupAuthoredUpdates(ctx context.Context, w *store.BatchWriter, userID string) error {
	ids, err := e.st.Updates().ListIDsByCreator(ctx, userID)
	if err != nil {
		return fmt.Errorf("list authored updates: %w", err)
	}
	for _, id := range ids {
		if err := e.cleanupUpdate(ctx, w, id); err != nil {
			return err
		}
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Updates().Delete(ctx, id, b); err != nil {
			return err
		}
	}
	return nil
}

// cleanupRecipientEntries strips the user from other creators' updates:
// recipient id lists, visibility identifier, and snapshot map in one
// statement per update.
func (e *Engine) cleanupRecipientEntries(ctx context.Context, w *store.BatchWriter, userID string) error {
	ids, err := e.st.Updates().ListIDsBySharedFriend(ctx, userID)
	if err != nil {
		return fmt.Errorf("list shared updates: %w", err)
	}
	for _, id := range ids {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Updates().RemoveFriend(ctx, id, userID, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cleanupOwnFeed(ctx context.Context, w *store.BatchWriter, userID string) error {
	ids, err := e.st.Feeds().ListUpdateIDsByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("list own feed: %w", err)
	}
	for _, id := range ids {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Feeds().Delete(ctx, userID, id, b); err != nil {
			return err
		}
	}
	return nil
}

// cleanupEngagement removes the user's comments and reactions and gives the
// counters back. Listing live rows keeps redelivery honest: rows deleted by
// an earlier delivery no longer appear, so their counters move only once.
func (e *Engine) cleanupEngagement(ctx context.Context, w *store.BatchWriter, userID string) error {
	commentIDs, err := e.st.Comments().ListIDsByAuthor(ctx, userID)
	if err != nil {
		return fmt.Errorf("list authored comments: %w", err)
	}
	for _, cid := range commentIDs {
		c, err := e.st.Comments().Get(ctx, cid)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load comment %s: %w", cid, err)
		}
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Updates().AddCommentCount(ctx, c.UpdateID, -1, b); err != nil {
			return err
		}
		b, err = w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Comments().Delete(ctx, cid, b); err != nil {
			return err
		}
	}

	reactions, err := e.st.Reactions().ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list reactions: %w", err)
	}
	for _, r := range reactions {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Updates().AddReactionCount(ctx, r.UpdateID, -1, b); err != nil {
			return err
		}
		b, err = w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Reactions().Delete(ctx, r.UpdateID, r.UserID, r.Type, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cleanupSummaries(ctx context.Context, w *store.BatchWriter, userID string) error {
	sums, err := e.st.Summaries().ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list summaries: %w", err)
	}
	for _, s := range sums {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Summaries().Delete(ctx, s.PairID, s.CreatorID, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cleanupInvitesAndRequests(ctx context.Context, w *store.BatchWriter, userID string) error {
	invs, err := e.st.Invites().ListByInviter(ctx, userID)
	if err != nil {
		return fmt.Errorf("list invites: %w", err)
	}
	for _, inv := range invs {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Invites().Delete(ctx, inv.InviteID, b); err != nil {
			return err
		}
	}

	reqs, err := e.st.JoinRequests().ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list join requests: %w", err)
	}
	for _, r := range reqs {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.JoinRequests().Delete(ctx, r.RequestID, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cleanupMembership(ctx context.Context, w *store.BatchWriter, p events.ProfileDeletedPayload) error {
	for _, gid := range p.GroupIDs {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Groups().RemoveMember(ctx, gid, p.UserID, b); err != nil {
			return err
		}
	}
	if p.Phone != "" {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Phones().Delete(ctx, p.Phone, b); err != nil {
			return err
		}
	}
	if p.NudgeBucket != "" {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.TimeBuckets().RemoveUser(ctx, p.NudgeBucket, p.UserID, b); err != nil {
			return err
		}
	}
	return nil
}
