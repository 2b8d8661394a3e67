package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/config"
	"github.com/anjalik1505/town-functions-sub002/internal/factory"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// openStore connects to the shared postgres store using TOWN_* env config.
// The memory driver is per-process, so a CLI against it would only ever see
// an empty store.
func openStore(ctx context.Context) (store.Store, *config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreDriver != "postgres" {
		return nil, nil, fmt.Errorf("townctl requires the postgres store; set TOWN_STORE_DRIVER=postgres and TOWN_POSTGRES_DSN")
	}
	log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(os.Stdout, string(data))
	return nil
}
