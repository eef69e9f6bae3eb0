package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/repository"
)

const (
	AnswerBatchSize    = 100
	AnswerBatchTimeout = 2 * time.Second
	AnswerPollTimeout  = 1 * time.Second
)

// AutosaveWorker consumes the persist queue and UPSERTs answers into
// PostgreSQL in batches. Redis absorbs the per-keystroke write rate; the
// database sees a couple of batched statements per second at most.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine; it exits after draining
// when ctx is cancelled.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]*repository.AnswerQueuePayload, 0, AnswerBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AnswerBatchSize || time.Since(lastFlush) >= AnswerBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return

		default:
			item, err := w.rdb.BLPop(ctx, AnswerPollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var p repository.AnswerQueuePayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Unmarshal error")
				continue
			}
			batch = append(batch, &p)
		}
	}
}

// flushSafe persists a batch, requeueing it on failure so answers survive a
// database hiccup.
func (w *AutosaveWorker) flushSafe(ctx context.Context, batch []*repository.AnswerQueuePayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.flush(ctx, batch); err != nil {
		w.log.Error().Err(err).Int("count", len(batch)).Msg("Flush error, requeueing batch")
		for _, p := range batch {
			raw, mErr := json.Marshal(p)
			if mErr != nil {
				continue
			}
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
		}
		time.Sleep(5 * time.Second)
		return
	}

	w.log.Debug().Int("count", len(batch)).Msg("Answers persisted")
}

// flush UPSERTs the whole batch in one UNNEST statement. A later save of
// the same question wins because batch order follows queue order.
func (w *AutosaveWorker) flush(ctx context.Context, batch []*repository.AnswerQueuePayload) error {
	sessionIDs := make([]uuid.UUID, 0, len(batch))
	questionIDs := make([]uuid.UUID, 0, len(batch))
	values := make([]string, 0, len(batch))
	lates := make([]bool, 0, len(batch))

	for _, p := range batch {
		sessionID, err := uuid.Parse(p.SessionID)
		if err != nil {
			w.log.Error().Str("session_id", p.SessionID).Msg("Malformed session id, dropping")
			continue
		}
		questionID, err := uuid.Parse(p.QuestionID)
		if err != nil {
			w.log.Error().Str("question_id", p.QuestionID).Msg("Malformed question id, dropping")
			continue
		}
		sessionIDs = append(sessionIDs, sessionID)
		questionIDs = append(questionIDs, questionID)
		values = append(values, p.Value)
		lates = append(lates, p.Late)
	}
	if len(sessionIDs) == 0 {
		return nil
	}

	_, err := w.pool.Exec(ctx,
		`INSERT INTO student_answers (session_id, question_id, value, late)
		 SELECT * FROM UNNEST($1::uuid[], $2::uuid[], $3::text[], $4::boolean[])
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET value = EXCLUDED.value, late = EXCLUDED.late, updated_at = NOW()`,
		sessionIDs, questionIDs, values, lates,
	)
	return err
}

// drain empties whatever is still queued before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	batch := make([]*repository.AnswerQueuePayload, 0, AnswerBatchSize)
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}
		var p repository.AnswerQueuePayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}
		batch = append(batch, &p)
		if len(batch) >= AnswerBatchSize {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
		}
	}
	w.flushSafe(ctx, batch)
}
