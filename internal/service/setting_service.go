package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/repository"
)

// Well-known setting keys. Settings are per-deployment runtime configuration
// that admins change without a restart; anything needing a restart belongs in
// env config instead.
const (
	SettingMaintenanceMode     = "maintenance_mode"
	SettingDefaultStartBuffer  = "default_start_buffer_minutes"
	SettingDefaultEndBuffer    = "default_end_buffer_minutes"
	SettingDisableAccessGuards = "disable_access_guards"
)

const settingCacheTTL = 5 * time.Minute

// SettingService is the runtime configuration store: PostgreSQL is the
// source of truth, Redis is a short-lived read-through cache invalidated on
// write.
type SettingService struct {
	settingRepo *repository.SettingRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSettingService creates a new SettingService.
func NewSettingService(settingRepo *repository.SettingRepository, rdb *redis.Client, log zerolog.Logger) *SettingService {
	return &SettingService{
		settingRepo: settingRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "setting_service").Logger(),
	}
}

// GetAll returns every setting as a key/value map. Reads straight from
// PostgreSQL — this is an admin screen, not a hot path.
func (s *SettingService) GetAll(ctx context.Context) (map[string]string, error) {
	settings, err := s.settingRepo.GetAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get all settings")
		return nil, err
	}

	out := make(map[string]string, len(settings))
	for _, setting := range settings {
		out[setting.Key] = setting.Value
	}
	return out, nil
}

// Update upserts the given settings and invalidates their cache entries.
func (s *SettingService) Update(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		if err := s.settingRepo.Upsert(ctx, key, value); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("failed to update setting")
			return err
		}
		if err := s.rdb.Del(ctx, config.CacheKey.SettingKey(key)).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("setting cache invalidation failed")
		}
	}
	return nil
}

// Get returns one setting value, or the fallback when the key is unset.
// Hot-path callers hit the Redis cache; misses fall through to PostgreSQL
// and repopulate it.
func (s *SettingService) Get(ctx context.Context, key, fallback string) string {
	cacheKey := config.CacheKey.SettingKey(key)

	cached, err := s.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		return cached
	}
	if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("key", key).Msg("setting cache read failed")
	}

	setting, err := s.settingRepo.GetByKey(ctx, key)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.log.Error().Err(err).Str("key", key).Msg("failed to get setting")
		}
		return fallback
	}

	if err := s.rdb.Set(ctx, cacheKey, setting.Value, settingCacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("setting cache write failed")
	}
	return setting.Value
}

// GetBool reads a boolean setting; anything but "true"/"1" is false.
func (s *SettingService) GetBool(ctx context.Context, key string, fallback bool) bool {
	def := "false"
	if fallback {
		def = "true"
	}
	v := s.Get(ctx, key, def)
	return v == "true" || v == "1"
}
