package worker

import (
	"context"
	"time"

	"github.com/prepdesk/examtake/internal/service"
	"github.com/rs/zerolog"
)

// ClockWorker is the periodic trigger behind every live session's
// countdown. It never carries time state of its own: each tick re-derives
// the timer views from absolute timestamps, so missed ticks self-correct
// on the next one.
type ClockWorker struct {
	svc  *service.AttemptService
	tick time.Duration
	log  zerolog.Logger
}

// NewClockWorker creates a ClockWorker with the configured cadence.
func NewClockWorker(svc *service.AttemptService, tick time.Duration, log zerolog.Logger) *ClockWorker {
	if tick <= 0 {
		tick = time.Second
	}
	return &ClockWorker{
		svc:  svc,
		tick: tick,
		log:  log.With().Str("component", "clock_worker").Logger(),
	}
}

// Start begins the tick loop. Call in a goroutine.
func (w *ClockWorker) Start(ctx context.Context) {
	w.log.Info().Dur("tick", w.tick).Msg("Worker started")

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case now := <-ticker.C:
			w.svc.Tick(ctx, now)
		}
	}
}
