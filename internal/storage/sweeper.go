package storage

import (
	"context"
	"time"

	"ordering_assistant/src/logger"
)

// StartSweeper runs SweepExpired every interval until ctx is done. The
// returned channel is closed once the worker has exited.
func StartSweeper(ctx context.Context, store *ContextStore, interval time.Duration, maxAgeMinutes int) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	log := logger.With("sweeper")

	go func() {
		defer close(done)
		defer ticker.Stop()
		log.Info().Dur("interval", interval).Int("max_age_minutes", maxAgeMinutes).Msg("session sweeper started")

		for {
			select {
			case <-ticker.C:
				if removed := store.SweepExpired(ctx, maxAgeMinutes); removed > 0 {
					log.Info().Int("removed", removed).Int("active", store.Len()).Msg("expired sessions swept")
				}
			case <-ctx.Done():
				log.Info().Err(ctx.Err()).Msg("session sweeper shutting down")
				return
			}
		}
	}()

	return done
}
