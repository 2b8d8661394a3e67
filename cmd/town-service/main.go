package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/anjalik1505/town-functions-sub002/townservice"
)

func main() {
	if err := townservice.Run(); err != nil {
		log.Error().Err(err).Msg("town-service exited with error")
		os.Exit(1)
	}
}
