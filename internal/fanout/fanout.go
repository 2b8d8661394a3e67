// Package fanout materializes per-recipient feed entries for every update.
// It handles the creation fan-out, the incremental fan-out after a share,
// the historical backfill when a friendship forms, and the cleanup cascades
// when an update or a whole account disappears. Every handler is safe under
// duplicate and out-of-order delivery.
package fanout

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/notify"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
	"github.com/anjalik1505/town-functions-sub002/internal/summary"
)

// Engine drives feed materialization and the summary folds that ride along
// with it.
type Engine struct {
	st    store.Store
	folds *summary.Engine
	gw    notify.Gateway
	log   zerolog.Logger
}

func NewEngine(st store.Store, folds *summary.Engine, gw notify.Gateway, log zerolog.Logger) *Engine {
	return &Engine{st: st, folds: folds, gw: gw, log: log.With().Str("component", "fanout").Logger()}
}

// HandleUpdateCreated fans a new update out to every recipient, refreshes
// the friendship last-update caches, folds the relationship and self
// summaries, and pushes direct-share notifications.
func (e *Engine) HandleUpdateCreated(ctx context.Context, p events.UpdateCreatedPayload) error {
	u, err := e.st.Updates().Get(ctx, p.UpdateID)
	if errors.Is(err, model.ErrNotFound) {
		// Deleted before the trigger ran; the deletion handler owns cleanup.
		e.log.Debug().Str("update_id", p.UpdateID).Msg("update gone before fan-out")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load update %s: %w", p.UpdateID, err)
	}

	if err := e.fanOut(ctx, u); err != nil {
		return err
	}

	creator, err := e.st.Profiles().Get(ctx, u.CreatorID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load creator %s: %w", u.CreatorID, err)
	}
	if err := e.fold(ctx, creator, u, u.FriendIDs, true); err != nil {
		return err
	}

	e.notifyDirect(ctx, u, u.FriendIDs)
	return nil
}

// HandleUpdateShared extends an earlier fan-out to the recipients added by
// one share call. Only the added ids are walked, so re-sharing never
// revisits the original audience.
func (e *Engine) HandleUpdateShared(ctx context.Context, p events.UpdateSharedPayload) error {
	u, err := e.st.Updates().Get(ctx, p.UpdateID)
	if errors.Is(err, model.ErrNotFound) {
		e.log.Debug().Str("update_id", p.UpdateID).Msg("update gone before share fan-out")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load update %s: %w", p.UpdateID, err)
	}

	if err := e.incrementalFanOut(ctx, u, p.AddedFriendIDs, p.AddedGroupIDs); err != nil {
		return err
	}

	creator, err := e.st.Profiles().Get(ctx, u.CreatorID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load creator %s: %w", u.CreatorID, err)
	}
	// The self summary already absorbed this update at creation.
	if err := e.fold(ctx, creator, u, p.AddedFriendIDs, false); err != nil {
		return err
	}

	e.notifyDirect(ctx, u, p.AddedFriendIDs)
	return nil
}

// fanOut writes one feed entry per recipient: the creator's self entry,
// direct entries for explicit friends, group entries for everyone reachable
// only through a group. Direct visibility wins when both apply.
func (e *Engine) fanOut(ctx context.Context, u *model.Update) error {
	members, err := e.groupMembers(ctx, u.CreatorID, u.GroupIDs)
	if err != nil {
		return err
	}

	w := store.NewBatchWriter(e.st)
	direct := map[string]bool{u.CreatorID: true}
	if err := e.putEntry(ctx, w, &model.FeedEntry{
		OwnerID:       u.CreatorID,
		UpdateID:      u.UpdateID,
		CreatedAt:     u.CreatedAt,
		DirectVisible: true,
		FriendID:      u.CreatorID,
	}); err != nil {
		return err
	}
	for _, f := range u.FriendIDs {
		if direct[f] {
			continue
		}
		direct[f] = true
		if err := e.putEntry(ctx, w, &model.FeedEntry{
			OwnerID:       f,
			UpdateID:      u.UpdateID,
			CreatedAt:     u.CreatedAt,
			DirectVisible: true,
			FriendID:      u.CreatorID,
		}); err != nil {
			return err
		}
		if err := e.refreshFriendCache(ctx, w, f, u); err != nil {
			return err
		}
	}
	for m, gids := range members {
		if direct[m] {
			continue
		}
		if err := e.putEntry(ctx, w, &model.FeedEntry{
			OwnerID:   m,
			UpdateID:  u.UpdateID,
			CreatedAt: u.CreatedAt,
			GroupIDs:  gids,
		}); err != nil {
			return err
		}
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("flush fan-out for %s: %w", u.UpdateID, err)
	}
	return nil
}

// incrementalFanOut covers only the recipients a share call added. Existing
// entries are kept untouched except for one case: a group-visible entry is
// upgraded when its owner becomes an explicit friend, because direct
// visibility supersedes group visibility.
func (e *Engine) incrementalFanOut(ctx context.Context, u *model.Update, addedFriends, addedGroups []string) error {
	members, err := e.groupMembers(ctx, u.CreatorID, addedGroups)
	if err != nil {
		return err
	}

	w := store.NewBatchWriter(e.st)
	seen := map[string]bool{u.CreatorID: true}
	for _, f := range addedFriends {
		if seen[f] {
			continue
		}
		seen[f] = true
		existing, err := e.st.Feeds().Get(ctx, f, u.UpdateID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("probe feed entry %s/%s: %w", f, u.UpdateID, err)
		}
		if existing != nil && existing.DirectVisible {
			continue
		}
		if err := e.putEntry(ctx, w, &model.FeedEntry{
			OwnerID:       f,
			UpdateID:      u.UpdateID,
			CreatedAt:     u.CreatedAt,
			DirectVisible: true,
			FriendID:      u.CreatorID,
		}); err != nil {
			return err
		}
		if err := e.refreshFriendCache(ctx, w, f, u); err != nil {
			return err
		}
	}

	// u was re-read after the share mutation, so FriendIDs already holds
	// the full direct audience.
	allDirect := make(map[string]bool, len(u.FriendIDs))
	for _, f := range u.FriendIDs {
		allDirect[f] = true
	}
	for m, gids := range members {
		if seen[m] || allDirect[m] {
			continue
		}
		existing, err := e.st.Feeds().Get(ctx, m, u.UpdateID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("probe feed entry %s/%s: %w", m, u.UpdateID, err)
		}
		if existing != nil {
			continue
		}
		if err := e.putEntry(ctx, w, &model.FeedEntry{
			OwnerID:   m,
			UpdateID:  u.UpdateID,
			CreatedAt: u.CreatedAt,
			GroupIDs:  gids,
		}); err != nil {
			return err
		}
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("flush share fan-out for %s: %w", u.UpdateID, err)
	}
	return nil
}

// groupMembers maps every member reachable through the given groups to the
// subset of group ids granting them visibility, creator excluded.
func (e *Engine) groupMembers(ctx context.Context, creatorID string, groupIDs []string) (map[string][]string, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	groups, err := e.st.Groups().GetBatch(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	members := make(map[string][]string)
	for _, gid := range groupIDs {
		g := groups[gid]
		if g == nil {
			e.log.Warn().Str("group_id", gid).Msg("recipient group missing")
			continue
		}
		for _, m := range g.Members {
			if m == creatorID {
				continue
			}
			members[m] = append(members[m], gid)
		}
	}
	return members, nil
}

func (e *Engine) putEntry(ctx context.Context, w *store.BatchWriter, fe *model.FeedEntry) error {
	b, err := w.Ready(ctx)
	if err != nil {
		return fmt.Errorf("feed batch: %w", err)
	}
	return e.st.Feeds().Put(ctx, fe, b)
}

func (e *Engine) refreshFriendCache(ctx context.Context, w *store.BatchWriter, friendID string, u *model.Update) error {
	b, err := w.Ready(ctx)
	if err != nil {
		return fmt.Errorf("cache batch: %w", err)
	}
	return e.st.Friendships().SetLastUpdate(ctx, friendID, u.CreatorID, u.Emoji, u.CreatedAt, b)
}

// fold advances the summaries touched by one update: one relationship fold
// per direct friend and, for fresh creations, the creator's self summary.
// Folds are independent and run concurrently; the first failure is returned
// after all have finished so redelivery can retry the guarded remainder.
func (e *Engine) fold(ctx context.Context, creator *model.Profile, u *model.Update, friendIDs []string, includeSelf bool) error {
	demo := summary.Demographics{Gender: creator.Gender, AgeBucket: creator.AgeBucket}
	var g errgroup.Group
	if includeSelf {
		g.Go(func() error { return e.folds.FoldSelf(ctx, creator, u) })
	}
	seen := map[string]bool{u.CreatorID: true}
	for _, f := range friendIDs {
		if seen[f] {
			continue
		}
		seen[f] = true
		g.Go(func() error { return e.folds.FoldUpdate(ctx, u, f, demo) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fold summaries for %s: %w", u.UpdateID, err)
	}
	return nil
}

// notifyDirect pushes a share alert to each explicit friend recipient.
// Delivery is best effort; failures are logged and never fail the trigger.
func (e *Engine) notifyDirect(ctx context.Context, u *model.Update, friendIDs []string) {
	targets := make([]string, 0, len(friendIDs))
	seen := map[string]bool{u.CreatorID: true}
	for _, f := range friendIDs {
		if seen[f] {
			continue
		}
		seen[f] = true
		targets = append(targets, f)
	}
	if len(targets) == 0 {
		return
	}
	profs, err := e.st.Profiles().GetBatch(ctx, targets)
	if err != nil {
		e.log.Warn().Err(err).Str("update_id", u.UpdateID).Msg("load push recipients")
		return
	}

	name := u.Creator.Name
	if name == "" {
		name = u.Creator.Username
	}
	title := fmt.Sprintf("%s shared an update", name)
	data := map[string]string{
		"type":       "update",
		"update_id":  u.UpdateID,
		"creator_id": u.CreatorID,
	}
	for _, id := range targets {
		p := profs[id]
		if p == nil || p.DeviceToken == "" || p.NotifyMode == model.NotifyNone {
			continue
		}
		var err error
		if p.NotifyMode == model.NotifySilent {
			err = e.gw.SendSilent(ctx, p.DeviceToken, data)
		} else {
			err = e.gw.Send(ctx, p.DeviceToken, title, u.Emoji, data)
		}
		if err != nil {
			e.log.Warn().Err(err).Str("user_id", id).Str("update_id", u.UpdateID).Msg("push failed")
		}
	}
}
