package worker

import (
	"context"
	"time"

	"github.com/openexam/openexam-backend/internal/service"
	"github.com/rs/zerolog"
)

// TimeoutWorker periodically closes sessions whose time limit has expired,
// so abandoned sessions are graded even if the student never comes back.
type TimeoutWorker struct {
	sessions *service.ExamSessionService
	interval time.Duration
	log      zerolog.Logger
}

// NewTimeoutWorker creates a new TimeoutWorker.
func NewTimeoutWorker(sessions *service.ExamSessionService, interval time.Duration, log zerolog.Logger) *TimeoutWorker {
	return &TimeoutWorker{
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "timeout_worker").Logger(),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (w *TimeoutWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("TimeoutWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("TimeoutWorker stopping")
			return
		case <-ticker.C:
			swept, err := w.sessions.SweepTimeouts(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("Timeout sweep failed")
				continue
			}
			if swept > 0 {
				w.log.Info().Int("count", swept).Msg("Closed timed-out sessions")
			}
		}
	}
}
