package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultIdleThreshold = 5 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
	DefaultStatsInterval = time.Minute
)

// Run drives the background sweeps: the idle-room reaper and the
// periodic stats log. Blocks until ctx is done.
func (s *Service) Run(ctx context.Context, sweepEvery, idleThreshold, statsEvery time.Duration) {
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepInterval
	}
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	if statsEvery <= 0 {
		statsEvery = DefaultStatsInterval
	}

	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()
	stats := time.NewTicker(statsEvery)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n := s.CleanupInactiveRooms(time.Now(), idleThreshold); n > 0 {
				log.Info().Str("module", "app.reaper").Int("rooms", n).Msg("swept inactive rooms")
			}
		case <-stats.C:
			st := s.Stats()
			log.Info().Str("module", "app.reaper").
				Int("users", st.TotalUsers).
				Int("rooms", st.TotalRooms).
				Int("active_rooms", st.ActiveRooms).
				Msg("presence stats")
		}
	}
}
