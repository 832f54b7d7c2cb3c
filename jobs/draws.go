package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"lotto/services"
)

// StartDrawScheduler closes open draws whose betting window has passed.
// Runs every minute; the close is idempotent, so overlapping runs after a
// slow tick are harmless.
func StartDrawScheduler(draws *services.DrawService, log zerolog.Logger) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("@every 1m", func() {
		if _, err := draws.CloseExpired(context.Background()); err != nil {
			log.Error().Err(err).Msg("closing expired draws")
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("registering draw scheduler")
		return c
	}
	c.Start()
	return c
}
