// Package nudge keeps the weekly time-bucket index consistent with profile
// settings and runs the hourly sweep that sends nudge notifications.
package nudge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/notify"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// Nudges target nine in the morning local time on the user's chosen
// weekday. Members who posted within the activity window are skipped.
const (
	nudgeHour            = 9
	recentActivityWindow = 24 * time.Hour

	nudgeTitle = "How was your week?"
	nudgeBody  = "Your friends would love to hear from you."
)

// BucketKey resolves the UTC slot in which the next <weekday> 09:00 local
// to tz falls, formatted "{weekday}_{hour}". Resolving the next occurrence
// in the zone applies whichever UTC offset is in force then, so buckets
// follow daylight-saving shifts on their own.
func BucketKey(tz string, weekday time.Weekday, now time.Time) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("load zone %q: %w", tz, err)
	}
	local := now.In(loc)
	days := (int(weekday) - int(local.Weekday()) + 7) % 7
	next := time.Date(local.Year(), local.Month(), local.Day()+days, nudgeHour, 0, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 7)
	}
	return keyAt(next.UTC()), nil
}

// CurrentKey is the bucket the sweep drains right now.
func CurrentKey(now time.Time) string {
	return keyAt(now.UTC())
}

func keyAt(t time.Time) string {
	return fmt.Sprintf("%s_%d", strings.ToLower(t.Weekday().String()), t.Hour())
}

// Config controls the sweep cadence.
type Config struct {
	Interval time.Duration
}

// Scheduler owns bucket membership and the hourly sweep.
type Scheduler struct {
	st  store.Store
	gw  notify.Gateway
	log zerolog.Logger
	cfg Config
	now func() time.Time
}

func NewScheduler(st store.Store, gw notify.Gateway, cfg Config, log zerolog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Scheduler{
		st:  st,
		gw:  gw,
		log: log.With().Str("component", "nudge").Logger(),
		cfg: cfg,
		now: time.Now,
	}
}

// HandleSettingsChanged reconciles one user's membership after a nudge or
// timezone settings write.
func (s *Scheduler) HandleSettingsChanged(ctx context.Context, p events.NudgeSettingsChangedPayload) error {
	return s.Reconcile(ctx, p.UserID)
}

// Reconcile moves the user out of their recorded bucket and into the one
// their current settings resolve to, updating the profile's bucket key in
// the same commit so membership and record never drift apart.
func (s *Scheduler) Reconcile(ctx context.Context, userID string) error {
	prof, err := s.st.Profiles().Get(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		// Deleted since the event fired; the cascade drops membership.
		return nil
	}
	if err != nil {
		return fmt.Errorf("load profile %s: %w", userID, err)
	}

	want := ""
	if prof.NudgeEnabled {
		want, err = BucketKey(prof.Timezone, prof.NudgeWeekday, s.now())
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("unknown timezone, scheduling in UTC")
			if want, err = BucketKey("UTC", prof.NudgeWeekday, s.now()); err != nil {
				return err
			}
		}
	}
	if want == prof.NudgeBucket {
		return nil
	}

	b := s.st.NewBatch()
	if prof.NudgeBucket != "" {
		if err := s.st.TimeBuckets().RemoveUser(ctx, prof.NudgeBucket, userID, b); err != nil {
			return err
		}
	}
	if want != "" {
		if err := s.st.TimeBuckets().AddUser(ctx, want, userID, b); err != nil {
			return err
		}
	}
	if err := s.st.Profiles().SetNudgeBucket(ctx, userID, want, b); err != nil {
		return err
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("move %s to bucket %q: %w", userID, want, err)
	}
	s.log.Info().Str("user_id", userID).Str("bucket", want).Msg("nudge bucket reconciled")
	return nil
}

// Sweep drains the current hour's bucket: one batched profile load, stale
// members dropped, recently active members suppressed, the rest nudged.
func (s *Scheduler) Sweep(ctx context.Context) error {
	key := CurrentKey(s.now())
	users, err := s.st.TimeBuckets().ListUsers(ctx, key)
	if err != nil {
		return fmt.Errorf("list bucket %s: %w", key, err)
	}
	if len(users) == 0 {
		return nil
	}
	profs, err := s.st.Profiles().GetBatch(ctx, users)
	if err != nil {
		return fmt.Errorf("load members of %s: %w", key, err)
	}

	now := s.now()
	sent := 0
	for _, uid := range users {
		prof, ok := profs[uid]
		if !ok {
			// Deleted account whose cascade lost a race with this sweep.
			if err := s.st.TimeBuckets().RemoveUser(ctx, key, uid, nil); err != nil {
				s.log.Warn().Err(err).Str("user_id", uid).Msg("stale bucket member cleanup failed")
			}
			continue
		}
		if !eligible(prof, now) {
			continue
		}
		if err := s.gw.Send(ctx, prof.DeviceToken, nudgeTitle, nudgeBody, map[string]string{"type": "nudge"}); err != nil {
			s.log.Warn().Err(err).Str("user_id", uid).Msg("nudge send failed")
			continue
		}
		sent++
	}
	s.log.Info().Str("bucket", key).Int("members", len(users)).Int("sent", sent).Msg("nudge sweep complete")
	return nil
}

func eligible(p *model.Profile, now time.Time) bool {
	if !p.NudgeEnabled || p.DeviceToken == "" || p.NotifyMode == model.NotifyNone {
		return false
	}
	if p.LastUpdateAt != nil && now.Sub(*p.LastUpdateAt) < recentActivityWindow {
		return false
	}
	return true
}

// Run sweeps once per interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.cfg.Interval).Msg("nudge scheduler starting")
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("nudge scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("nudge sweep failed")
			}
		}
	}
}
