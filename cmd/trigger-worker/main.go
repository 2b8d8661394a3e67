package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/anjalik1505/town-functions-sub002/triggerworker"
)

func main() {
	if err := triggerworker.Run(); err != nil {
		log.Error().Err(err).Msg("trigger-worker exited with error")
		os.Exit(1)
	}
}
