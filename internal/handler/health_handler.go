package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/examgate/examgate-backend/internal/response"
)

// HealthHandler reports service liveness and backing store reachability.
type HealthHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(pool *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{pool: pool, rdb: rdb, startTime: time.Now()}
}

// Health godoc
// GET /api/v1/health
// Pings PostgreSQL and Redis; returns 503 if either is unreachable.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	dbOK := h.pool.Ping(ctx) == nil
	redisOK := h.rdb.Ping(ctx).Err() == nil

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	body := gin.H{
		"status":     "ok",
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
		"postgres":   dbOK,
		"redis":      redisOK,
		"goroutines": runtime.NumGoroutine(),
		"heap_bytes": mem.HeapAlloc,
	}
	if !dbOK || !redisOK {
		body["status"] = "degraded"
		response.Success(c, http.StatusServiceUnavailable, body)
		return
	}

	response.Success(c, http.StatusOK, body)
}
