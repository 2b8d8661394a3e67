package factory

import (
	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/config"
	"github.com/anjalik1505/town-functions-sub002/internal/notify"
)

// NewNotifyGateway creates the push gateway client. An empty URL disables
// pushes, which is the normal local setup.
func NewNotifyGateway(cfg *config.Config, log zerolog.Logger) notify.Gateway {
	if cfg.NotifierURL == "" {
		log.Info().Msg("notifier URL not set; push notifications disabled")
		return notify.NopGateway{}
	}
	return notify.NewClient(cfg.NotifierURL)
}
