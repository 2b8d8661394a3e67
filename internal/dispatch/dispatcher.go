// Package dispatch polls the event queue and routes claimed events to
// registered trigger handlers. Delivery is at-least-once and unordered;
// a failing handler is rescheduled with exponential backoff until the
// attempt ceiling parks the event dead.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// Handler consumes one claimed event.
type Handler func(ctx context.Context, e *model.Event) error

// Typed adapts a payload-typed handler to Handler by decoding the event's
// JSON payload. A payload that does not decode counts as a handler failure
// and follows the normal retry path.
func Typed[P any](h func(context.Context, P) error) Handler {
	return func(ctx context.Context, e *model.Event) error {
		var p P
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		return h(ctx, p)
	}
}

// Config controls claim size, polling cadence, lease length, the retry
// ceiling, and handler concurrency.
type Config struct {
	BatchSize   int
	Interval    time.Duration
	Lease       time.Duration
	MaxAttempts int
	Concurrency int
}

// Dispatcher drives the trigger loop for one worker process.
type Dispatcher struct {
	st       store.Store
	handlers map[string]Handler
	cfg      Config
	log      zerolog.Logger
}

func New(st store.Store, cfg Config, log zerolog.Logger) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Dispatcher{
		st:       st,
		handlers: map[string]Handler{},
		cfg:      cfg,
		log:      log.With().Str("component", "dispatch").Logger(),
	}
}

// Register routes eventType to h. Registration must finish before Run.
func (d *Dispatcher) Register(eventType string, h Handler) {
	d.handlers[eventType] = h
}

// Run polls until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info().
		Int("batch", d.cfg.BatchSize).
		Dur("interval", d.cfg.Interval).
		Int("max_attempts", d.cfg.MaxAttempts).
		Msg("dispatcher starting")
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.ProcessOnce(ctx); err != nil {
				d.log.Error().Err(err).Msg("dispatch cycle failed")
			}
		}
	}
}

// ProcessOnce claims one batch of due events and runs their handlers
// concurrently, returning the claimed count so callers can drain in a
// loop.
func (d *Dispatcher) ProcessOnce(ctx context.Context) (int, error) {
	evs, err := d.st.Events().Claim(ctx, d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, fmt.Errorf("claim events: %w", err)
	}
	if len(evs) == 0 {
		return 0, nil
	}
	eventsClaimed.Add(float64(len(evs)))

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for _, e := range evs {
		g.Go(func() error {
			d.process(ctx, e)
			return nil
		})
	}
	_ = g.Wait()
	return len(evs), nil
}

func (d *Dispatcher) process(ctx context.Context, e *model.Event) {
	h, ok := d.handlers[e.Type]
	if !ok {
		d.log.Error().Str("type", e.Type).Int64("id", e.ID).Msg("no handler registered")
		d.fail(ctx, e)
		return
	}

	start := time.Now()
	err := h(ctx, e)
	handleDuration.WithLabelValues(e.Type).Observe(time.Since(start).Seconds())
	if err != nil {
		d.log.Warn().Err(err).
			Str("type", e.Type).
			Int64("id", e.ID).
			Int("attempt", e.AttemptCount+1).
			Msg("handler failed")
		d.fail(ctx, e)
		return
	}

	if err := d.st.Events().MarkDone(ctx, e.ID); err != nil {
		// The lease expires and the event is redelivered; handlers are
		// idempotent, so the stray attempt is harmless.
		d.log.Error().Err(err).Int64("id", e.ID).Msg("mark done failed")
		return
	}
	eventsDone.WithLabelValues(e.Type).Inc()
}

func (d *Dispatcher) fail(ctx context.Context, e *model.Event) {
	if err := d.st.Events().MarkFailed(ctx, e.ID, d.cfg.MaxAttempts); err != nil {
		d.log.Error().Err(err).Int64("id", e.ID).Msg("mark failed failed")
		return
	}
	if e.AttemptCount+1 >= d.cfg.MaxAttempts {
		eventsDead.WithLabelValues(e.Type).Inc()
		d.log.Error().Str("type", e.Type).Int64("id", e.ID).Msg("event parked dead")
		return
	}
	eventsRetried.WithLabelValues(e.Type).Inc()
}
