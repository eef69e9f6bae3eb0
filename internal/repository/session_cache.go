package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/examgate/examgate-backend/internal/config"
)

// AnswerQueuePayload is the write-behind envelope pushed to the persist
// queue and consumed by the autosave worker.
type AnswerQueuePayload struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
	Late       bool   `json:"late"`
}

// SessionCache keeps hot session state (start time, question order, answer
// buffer) in Redis so reloads and timing checks skip PostgreSQL.
type SessionCache struct {
	rdb *redis.Client
}

// NewSessionCache creates a new SessionCache.
func NewSessionCache(rdb *redis.Client) *SessionCache {
	return &SessionCache{rdb: rdb}
}

// SetStartTime stores a session's start as a Unix timestamp.
func (c *SessionCache) SetStartTime(ctx context.Context, sessionID uuid.UUID, start time.Time) error {
	return c.rdb.Set(ctx, config.CacheKey.SessionStartKey(sessionID.String()), start.Unix(), 0).Err()
}

// GetStartTime retrieves a session's start time. The boolean is false on a
// cache miss — the caller falls back to PostgreSQL and self-heals.
func (c *SessionCache) GetStartTime(ctx context.Context, sessionID uuid.UUID) (time.Time, bool, error) {
	val, err := c.rdb.Get(ctx, config.CacheKey.SessionStartKey(sessionID.String())).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(unix, 0), true, nil
}

// SetQuestionOrder stores the session's question order snapshot.
func (c *SessionCache) SetQuestionOrder(ctx context.Context, sessionID uuid.UUID, order []uuid.UUID) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, config.CacheKey.SessionOrderKey(sessionID.String()), raw, 0).Err()
}

// GetQuestionOrder retrieves the snapshot; false on cache miss.
func (c *SessionCache) GetQuestionOrder(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, bool, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.SessionOrderKey(sessionID.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var order []uuid.UUID
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, false, err
	}
	return order, true, nil
}

// BufferAnswer writes the answer into the session's hash (for fast state
// reloads) and pushes a persist job for the autosave worker.
func (c *SessionCache) BufferAnswer(ctx context.Context, sessionID, questionID uuid.UUID, value string, late bool) error {
	if err := c.rdb.HSet(ctx, config.CacheKey.SessionAnswersKey(sessionID.String()),
		questionID.String(), value).Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(AnswerQueuePayload{
		SessionID:  sessionID.String(),
		QuestionID: questionID.String(),
		Value:      value,
		Late:       late,
	})
	if err != nil {
		return err
	}
	return c.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw).Err()
}

// Answers retrieves the buffered answer hash, keyed by question ID.
func (c *SessionCache) Answers(ctx context.Context, sessionID uuid.UUID) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID.String())).Result()
}

// Clear drops all cached state of a session after it is graded.
func (c *SessionCache) Clear(ctx context.Context, sessionID uuid.UUID) error {
	id := sessionID.String()
	return c.rdb.Del(ctx,
		config.CacheKey.SessionStartKey(id),
		config.CacheKey.SessionOrderKey(id),
		config.CacheKey.SessionAnswersKey(id),
	).Err()
}
