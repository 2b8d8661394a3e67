package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/config"
	storepkg "github.com/anjalik1505/town-functions-sub002/internal/store"
	"github.com/anjalik1505/town-functions-sub002/internal/store/memory"
	storepg "github.com/anjalik1505/town-functions-sub002/internal/store/postgres"
)

// NewStore returns a store.Store for the configured driver.
// For postgres the connection opens synchronously since health checks need
// it immediately; the schema check runs async so startup stays fast.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), nil
	case "postgres":
		dsn := cfg.PostgresDSN
		if dsn == "" {
			return nil, fmt.Errorf("TOWN_POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}

		db, err := storepg.Open(dsn)
		if err != nil {
			return nil, err
		}

		go func() {
			bootstrapTimeout := time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
			bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
			defer cancel()

			if err := storepg.EnsureSchema(bootstrapCtx, db); err != nil {
				log.Warn().Err(err).Str("driver", cfg.StoreDriver).Msg("store bootstrap check failed")
			} else {
				log.Debug().Str("driver", cfg.StoreDriver).Msg("store bootstrap check completed")
			}
		}()

		return storepg.NewWithDB(db), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER: %s", cfg.StoreDriver)
	}
}
