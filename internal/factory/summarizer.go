package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/config"
	"github.com/anjalik1505/town-functions-sub002/internal/summary"
)

// NewSummarizer creates the summarization service client.
// Launches an async warmup ping; returns the client immediately for fast startup.
func NewSummarizer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*summary.Client, error) {
	if cfg.SummarizerURL == "" {
		return nil, fmt.Errorf("summarizer URL not configured - required for fold processing")
	}

	client := summary.NewClient(cfg.SummarizerURL)

	go func() {
		warmupTimeout := time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
		warmupCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
		defer cancel()

		if err := client.Ping(warmupCtx); err != nil {
			log.Warn().Err(err).Str("url", cfg.SummarizerURL).Msg("summarizer warmup ping failed")
		} else {
			log.Debug().Str("url", cfg.SummarizerURL).Msg("summarizer warmup ping completed")
		}
	}()

	return client, nil
}
