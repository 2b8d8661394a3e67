// Package summary maintains the AI relationship summaries: one running fold
// per (pair, creator) direction, advanced one update at a time through the
// external summarization service, plus the self-summary variant folded into
// the creator's own profile.
package summary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// Demographics is the lightweight context sent with every fold so the
// service can phrase output for the person being summarized.
type Demographics struct {
	Gender    string `json:"gender,omitempty"`
	AgeBucket string `json:"ageBucket,omitempty"`
}

// FoldRequest carries the prior fold state plus the new update.
type FoldRequest struct {
	Summary     string       `json:"summary"`
	Suggestions string       `json:"suggestions"`
	Body        string       `json:"body"`
	Sentiment   string       `json:"sentiment,omitempty"`
	Context     Demographics `json:"context"`
}

// FoldResult is the advanced fold state.
type FoldResult struct {
	Summary     string `json:"summary"`
	Suggestions string `json:"suggestions"`
}

// SelfFoldRequest is the self-summary variant; it additionally round-trips
// the insight fields stored on the profile.
type SelfFoldRequest struct {
	Summary     string         `json:"summary"`
	Suggestions string         `json:"suggestions"`
	Insights    model.Insights `json:"insights"`
	Body        string         `json:"body"`
	Sentiment   string         `json:"sentiment,omitempty"`
	Context     Demographics   `json:"context"`
}

// SelfFoldResult is the advanced self-summary state.
type SelfFoldResult struct {
	Summary     string         `json:"summary"`
	Suggestions string         `json:"suggestions"`
	Insights    model.Insights `json:"insights"`
}

// Summarizer is the external summarization service: a pure fold from prior
// state plus one update to new state.
type Summarizer interface {
	FoldRelationship(ctx context.Context, req FoldRequest) (FoldResult, error)
	FoldSelf(ctx context.Context, req SelfFoldRequest) (SelfFoldResult, error)
}

// Retry policy for summarizer calls. On exhaustion the prior persisted state
// is kept unchanged.
const (
	maxFoldAttempts = 4
	foldBaseBackoff = 200 * time.Millisecond
	foldMaxInterval = 5 * time.Second
)

// Engine owns fold state management: lookups, resume guards, count
// increments, and persistence. The summarizer itself stays stateless.
type Engine struct {
	st  store.Store
	sum Summarizer
	log zerolog.Logger
}

func NewEngine(st store.Store, sum Summarizer, log zerolog.Logger) *Engine {
	return &Engine{st: st, sum: sum, log: log.With().Str("component", "summary").Logger()}
}

// FoldUpdate advances the (creator -> target) summary by one update.
// Redelivered events are no-ops: the stored last_update_id already equals
// the update id after the first successful fold.
func (e *Engine) FoldUpdate(ctx context.Context, u *model.Update, targetID string, demo Demographics) error {
	pairID := model.PairID(u.CreatorID, targetID)
	existing, err := e.st.Summaries().Get(ctx, pairID, u.CreatorID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("load summary %s/%s: %w", pairID, u.CreatorID, err)
	}
	state := FoldResult{}
	if existing != nil {
		if existing.LastUpdateID == u.UpdateID {
			return nil
		}
		state = FoldResult{Summary: existing.Summary, Suggestions: existing.Suggestions}
	}

	state, err = e.foldRelationship(ctx, FoldRequest{
		Summary:     state.Summary,
		Suggestions: state.Suggestions,
		Body:        u.Body,
		Sentiment:   u.Sentiment,
		Context:     demo,
	})
	if err != nil {
		return fmt.Errorf("fold %s/%s: %w", pairID, u.CreatorID, err)
	}

	return e.persist(ctx, pairID, u.CreatorID, targetID, state, u.UpdateID, 1)
}

// FoldHistory folds several updates by one creator into the
// (creator -> target) summary, oldest first so the final text reflects
// chronological order. Only the final state is persisted, with update_count
// advanced by the number of updates actually folded.
//
// The stored last_update_id doubles as a resume marker: when it names one of
// the given updates, folding restarts after that position, which makes a
// redelivered backfill a no-op.
func (e *Engine) FoldHistory(ctx context.Context, creatorID, targetID string, items []*model.Update, demo Demographics) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	asc := make([]*model.Update, len(items))
	copy(asc, items)
	sort.Slice(asc, func(i, j int) bool {
		if !asc[i].CreatedAt.Equal(asc[j].CreatedAt) {
			return asc[i].CreatedAt.Before(asc[j].CreatedAt)
		}
		return asc[i].UpdateID < asc[j].UpdateID
	})

	pairID := model.PairID(creatorID, targetID)
	existing, err := e.st.Summaries().Get(ctx, pairID, creatorID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return 0, fmt.Errorf("load summary %s/%s: %w", pairID, creatorID, err)
	}
	state := FoldResult{}
	start := 0
	if existing != nil {
		state = FoldResult{Summary: existing.Summary, Suggestions: existing.Suggestions}
		for i, u := range asc {
			if u.UpdateID == existing.LastUpdateID {
				start = i + 1
				break
			}
		}
	}
	if start >= len(asc) {
		return 0, nil
	}

	folded := 0
	lastID := ""
	for _, u := range asc[start:] {
		next, err := e.foldRelationship(ctx, FoldRequest{
			Summary:     state.Summary,
			Suggestions: state.Suggestions,
			Body:        u.Body,
			Sentiment:   u.Sentiment,
			Context:     demo,
		})
		if err != nil {
			// One update's failure never aborts the rest of the fold.
			e.log.Warn().Err(err).
				Str("pair_id", pairID).
				Str("update_id", u.UpdateID).
				Msg("fold skipped")
			continue
		}
		state = next
		lastID = u.UpdateID
		folded++
	}
	if folded == 0 {
		return 0, fmt.Errorf("fold history %s/%s: every fold failed", pairID, creatorID)
	}

	if err := e.persist(ctx, pairID, creatorID, targetID, state, lastID, folded); err != nil {
		return 0, err
	}
	return folded, nil
}

// FoldSelf advances the creator's own profile summary and insights.
// The fold runs only while the update is still the profile's latest; a
// stale event must never overwrite state derived from newer content.
func (e *Engine) FoldSelf(ctx context.Context, p *model.Profile, u *model.Update) error {
	if p.LastUpdateID != u.UpdateID {
		e.log.Debug().
			Str("user_id", p.UserID).
			Str("update_id", u.UpdateID).
			Msg("self fold superseded")
		return nil
	}

	var res SelfFoldResult
	req := SelfFoldRequest{
		Summary:     p.Summary,
		Suggestions: p.Suggestions,
		Insights:    p.Insights,
		Body:        u.Body,
		Sentiment:   u.Sentiment,
		Context:     Demographics{Gender: p.Gender, AgeBucket: p.AgeBucket},
	}
	op := func() error {
		var err error
		res, err = e.sum.FoldSelf(ctx, req)
		return err
	}
	if err := backoff.Retry(op, e.policy(ctx)); err != nil {
		return fmt.Errorf("self fold %s: %w", p.UserID, err)
	}

	return e.st.Profiles().SetSelfSummary(ctx, p.UserID, model.SelfSummary{
		Summary:      res.Summary,
		Suggestions:  res.Suggestions,
		Insights:     res.Insights,
		LastUpdateID: u.UpdateID,
	}, nil)
}

func (e *Engine) foldRelationship(ctx context.Context, req FoldRequest) (FoldResult, error) {
	var res FoldResult
	op := func() error {
		var err error
		res, err = e.sum.FoldRelationship(ctx, req)
		return err
	}
	if err := backoff.Retry(op, e.policy(ctx)); err != nil {
		return FoldResult{}, err
	}
	return res, nil
}

func (e *Engine) policy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = foldBaseBackoff
	exp.MaxInterval = foldMaxInterval
	return backoff.WithContext(backoff.WithMaxRetries(exp, maxFoldAttempts-1), ctx)
}

func (e *Engine) persist(ctx context.Context, pairID, creatorID, targetID string, state FoldResult, lastUpdateID string, countDelta int) error {
	rs := &model.RelationshipSummary{
		PairID:       pairID,
		CreatorID:    creatorID,
		TargetID:     targetID,
		Summary:      state.Summary,
		Suggestions:  state.Suggestions,
		LastUpdateID: lastUpdateID,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := e.st.Summaries().Upsert(ctx, rs, countDelta, nil); err != nil {
		return fmt.Errorf("persist summary %s/%s: %w", pairID, creatorID, err)
	}
	return nil
}
