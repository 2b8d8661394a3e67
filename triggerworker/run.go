package triggerworker

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/anjalik1505/town-functions-sub002/internal/config"
	"github.com/anjalik1505/town-functions-sub002/internal/dispatch"
	"github.com/anjalik1505/town-functions-sub002/internal/events"
	"github.com/anjalik1505/town-functions-sub002/internal/factory"
	"github.com/anjalik1505/town-functions-sub002/internal/fanout"
	"github.com/anjalik1505/town-functions-sub002/internal/health"
	"github.com/anjalik1505/town-functions-sub002/internal/nudge"
	"github.com/anjalik1505/town-functions-sub002/internal/platform/logger"
	"github.com/anjalik1505/town-functions-sub002/internal/propagation"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
	"github.com/anjalik1505/town-functions-sub002/internal/summary"
)

// Run starts the trigger worker and blocks until shutdown or error.
func Run() error {
	log := logger.New("trigger-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("store_driver", cfg.StoreDriver).
		Str("summarizer_url", cfg.SummarizerURL).
		Int("nudge_interval_seconds", cfg.NudgeIntervalSeconds).
		Msg("Trigger worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}
	defer func() { _ = st.Close() }()

	sum, err := factory.NewSummarizer(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Summarizer unavailable")
		return err
	}
	gw := factory.NewNotifyGateway(cfg, log)

	// The worker cannot make progress without the store or the summarizer,
	// so block until both answer probes.
	if err := waitUntilHealthy(ctx, cfg, log, st, sum); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	folds := summary.NewEngine(st, sum, log)
	fan := fanout.NewEngine(st, folds, gw, log)
	prop := propagation.NewEngine(st, log)
	scheduler := nudge.NewScheduler(st, gw, nudge.Config{
		Interval: time.Duration(cfg.NudgeIntervalSeconds) * time.Second,
	}, log)

	// Zero values fall through to dispatcher defaults.
	d := dispatch.New(st, dispatch.Config{
		Interval:    time.Duration(cfg.DispatchIntervalSeconds) * time.Second,
		BatchSize:   cfg.DispatchBatchSize,
		Concurrency: cfg.DispatchConcurrency,
		MaxAttempts: cfg.DispatchMaxAttempts,
	}, log)

	d.Register(events.TypeUpdateCreated, dispatch.Typed(fan.HandleUpdateCreated))
	d.Register(events.TypeUpdateShared, dispatch.Typed(fan.HandleUpdateShared))
	d.Register(events.TypeUpdateDeleted, dispatch.Typed(fan.HandleUpdateDeleted))
	d.Register(events.TypeFriendshipCreated, dispatch.Typed(fan.HandleFriendshipCreated))
	d.Register(events.TypeProfileDeleted, dispatch.Typed(fan.HandleProfileDeleted))
	d.Register(events.TypeProfileUpdated, dispatch.Typed(prop.HandleProfileUpdated))
	d.Register(events.TypeNudgeSettingsChanged, dispatch.Typed(scheduler.HandleSettingsChanged))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("trigger worker exit")
		return err
	}
	log.Info().Msg("Trigger worker exited")
	return nil
}

// waitUntilHealthy starts dependency checkers and blocks until every one
// reports healthy, or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, sum *summary.Client) error {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	sumChecker := summary.NewHealthChecker(sum, log, probeTimeout)
	go sumChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker, sumChecker)
	go svcHealth.Start(ctx, time.Second)

	timeoutSeconds := cfg.BootstrapTimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 5
	}
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
