package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openexam/openexam-backend/internal/config"
	"github.com/openexam/openexam-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// BehaviorWorker drains proctoring events from the Redis queue into the
// sessions' abnormal-behavior logs. Events arrive from the WebSocket stream
// at typing speed; batching keeps the drain cheap under load.
type BehaviorWorker struct {
	sessions *service.ExamSessionService
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewBehaviorWorker creates a new BehaviorWorker.
func NewBehaviorWorker(sessions *service.ExamSessionService, rdb *redis.Client, log zerolog.Logger) *BehaviorWorker {
	return &BehaviorWorker{
		sessions: sessions,
		rdb:      rdb,
		log:      log.With().Str("component", "behavior_worker").Logger(),
	}
}

type behaviorPayload struct {
	SessionID   string `json:"session_id"`
	UserID      int    `json:"user_id"`
	PaperID     string `json:"paper_id"`
	Timestamp   int64  `json:"timestamp"`
	Description string `json:"description"`
}

// Start runs the drain loop until the context is cancelled.
func (w *BehaviorWorker) Start(ctx context.Context) {
	w.log.Info().Msg("BehaviorWorker started")

	buffer := make([]*behaviorPayload, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.BehaviorQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // Queue empty, loop back to check the flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload behaviorPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe applies the batch item by item, requeueing what fails. Behavior
// entries end up appended to per-session JSON logs, so there is no bulk path.
func (w *BehaviorWorker) flushSafe(ctx context.Context, batch []*behaviorPayload) {
	requeueList := make([]*behaviorPayload, 0)

	for _, p := range batch {
		sessionID, err := uuid.Parse(p.SessionID)
		if err != nil {
			w.log.Error().Str("session_id", p.SessionID).Msg("Dropping behavior event with invalid UUID")
			continue
		}

		err = w.sessions.RecordAbnormalBehavior(ctx, sessionID, p.Description)
		if err != nil {
			var notFound *service.NotFoundError
			if errors.As(err, &notFound) {
				// Session is gone; the event has nowhere to go.
				w.log.Warn().Str("session_id", p.SessionID).Msg("Dropping behavior event for unknown session")
				continue
			}
			w.log.Error().Err(err).Str("session_id", p.SessionID).Msg("Record failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *BehaviorWorker) requeue(ctx context.Context, items []*behaviorPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.BehaviorQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing if the DB is down hard.
	time.Sleep(2 * time.Second)
}

func (w *BehaviorWorker) shutdown(buffer []*behaviorPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
