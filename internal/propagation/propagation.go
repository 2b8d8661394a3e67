// Package propagation rewrites denormalized profile copies after an
// identity edit. Every dependent document embedding the user's snapshot is
// walked in its own stream and rewritten to the event's After fields, so a
// redelivered event applies the same rewrite again and converges.
package propagation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// Engine walks the dependent collections of one profile.
type Engine struct {
	st  store.Store
	log zerolog.Logger
}

func NewEngine(st store.Store, log zerolog.Logger) *Engine {
	return &Engine{st: st, log: log.With().Str("component", "propagation").Logger()}
}

// HandleProfileUpdated diffs the event's Before and After fields and
// propagates only what changed: a phone move remaps the directory, an
// identity change rewrites every embedded snapshot. Unchanged profiles cost
// nothing.
func (e *Engine) HandleProfileUpdated(ctx context.Context, p events.ProfileUpdatedPayload) error {
	identity := p.Before.Username != p.After.Username ||
		p.Before.Name != p.After.Name ||
		p.Before.Avatar != p.After.Avatar
	phone := p.Before.Phone != p.After.Phone
	if !identity && !phone {
		return nil
	}

	if phone {
		if err := e.remapPhone(ctx, p); err != nil {
			return fmt.Errorf("remap phone for %s: %w", p.UserID, err)
		}
	}
	if !identity {
		return nil
	}

	snap := model.ProfileSnapshot{
		Username: p.After.Username,
		Name:     p.After.Name,
		Avatar:   p.After.Avatar,
	}

	streams := []struct {
		name string
		run  func(context.Context, *store.BatchWriter) error
	}{
		{"friendships", func(ctx context.Context, w *store.BatchWriter) error {
			return e.rewriteFriendRows(ctx, w, p.UserID, snap)
		}},
		{"groups", func(ctx context.Context, w *store.BatchWriter) error {
			return e.rewriteGroupMembers(ctx, w, p.UserID, snap)
		}},
		{"updates", func(ctx context.Context, w *store.BatchWriter) error {
			return e.rewriteAuthoredUpdates(ctx, w, p.UserID, snap)
		}},
		{"recipients", func(ctx context.Context, w *store.BatchWriter) error {
			return e.rewriteRecipientMaps(ctx, w, p.UserID, snap)
		}},
		{"comments", func(ctx context.Context, w *store.BatchWriter) error {
			return e.rewriteComments(ctx, w, p.UserID, snap)
		}},
		{"invites", func(ctx context.Context, w *store.BatchWriter) error {
			return e.rewriteInvites(ctx, w, p.UserID, snap)
		}},
		{"requests", func(ctx context.Context, w *store.BatchWriter) error {
			return e.rewriteJoinRequests(ctx, w, p.UserID, snap)
		}},
	}

	var g errgroup.Group
	for _, s := range streams {
		g.Go(func() error {
			w := store.NewBatchWriter(e.st)
			if err := s.run(ctx, w); err != nil {
				return fmt.Errorf("propagate %s for %s: %w", s.name, p.UserID, err)
			}
			return w.Flush(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.log.Info().Str("user_id", p.UserID).Msg("snapshot propagation complete")
	return nil
}

// remapPhone moves the directory entry in one atomic commit so the number
// is never claimable by someone else mid-edit.
func (e *Engine) remapPhone(ctx context.Context, p events.ProfileUpdatedPayload) error {
	b := e.st.NewBatch()
	if p.Before.Phone != "" {
		if err := e.st.Phones().Delete(ctx, p.Before.Phone, b); err != nil {
			return err
		}
	}
	if p.After.Phone != "" {
		if err := e.st.Phones().Put(ctx, p.After.Phone, p.UserID, b); err != nil {
			return err
		}
	}
	return b.Commit(ctx)
}

// rewriteFriendRows refreshes the counterpart rows; each friend's row is
// the one carrying this user's snapshot.
func (e *Engine) rewriteFriendRows(ctx context.Context, w *store.BatchWriter, userID string, snap model.ProfileSnapshot) error {
	ids, err := e.st.Friendships().ListIDs(ctx, userID)
	if err != nil {
		return err
	}
	for _, fid := range ids {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Friendships().SetFriendSnapshot(ctx, fid, userID, snap, b); err != nil {
			return err
		}
	}
	return nil
}

// rewriteGroupMembers reads the membership list off the live profile; the
// event payload carries no group ids. A missing profile means the deletion
// cascade owns group cleanup.
func (e *Engine) rewriteGroupMembers(ctx context.Context, w *store.BatchWriter, userID string, snap model.ProfileSnapshot) error {
	prof, err := e.st.Profiles().Get(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, gid := range prof.GroupIDs {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Groups().SetMemberSnapshot(ctx, gid, userID, snap, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) rewriteAuthoredUpdates(ctx context.Context, w *store.BatchWriter, userID string, snap model.ProfileSnapshot) error {
	ids, err := e.st.Updates().ListIDsByCreator(ctx, userID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Updates().SetCreatorSnapshot(ctx, id, snap, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) rewriteRecipientMaps(ctx context.Context, w *store.BatchWriter, userID string, snap model.ProfileSnapshot) error {
	ids, err := e.st.Updates().ListIDsBySharedFriend(ctx, userID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Updates().SetFriendSnapshot(ctx, id, userID, snap, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) rewriteComments(ctx context.Context, w *store.BatchWriter, userID string, snap model.ProfileSnapshot) error {
	ids, err := e.st.Comments().ListIDsByAuthor(ctx, userID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Comments().SetAuthorSnapshot(ctx, id, snap, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) rewriteInvites(ctx context.Context, w *store.BatchWriter, userID string, snap model.ProfileSnapshot) error {
	invs, err := e.st.Invites().ListByInviter(ctx, userID)
	if err != nil {
		return err
	}
	for _, inv := range invs {
		b, err := w.Ready(ctx)
		if err != nil {
			return err
		}
		if err := e.st.Invites().SetInviterSnapshot(ctx, inv.InviteID, snap, b); err != nil {
			return err
		}
	}
	return nil
}

// rewriteJoinRequests touches whichever side of each request the user is
// on; a self request would be rewritten on both sides, which is harmless.
func (e *Engine) rewriteJoinRequests(ctx context.Context, w *store.BatchWriter, userID string, snap model.ProfileSnapshot) error {
	reqs, err := e.st.JoinRequests().ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if r.RequesterID == userID {
			b, err := w.Ready(ctx)
			if err != nil {
				return err
			}
			if err := e.st.JoinRequests().SetRequesterSnapshot(ctx, r.RequestID, snap, b); err != nil {
				return err
			}
		}
		if r.ReceiverID == userID {
			b, err := w.Ready(ctx)
			if err != nil {
				return err
			}
			if err := e.st.JoinRequests().SetReceiverSnapshot(ctx, r.RequestID, snap, b); err != nil {
				return err
			}
		}
	}
	return nil
}
