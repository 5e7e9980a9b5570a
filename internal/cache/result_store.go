package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prepdesk/examtake/internal/config"
	"github.com/prepdesk/examtake/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// resultTTL bounds how long a scored outcome stays cached; the remote
// result endpoint remains the fallback after expiry.
const resultTTL = 0 // no expiry: results are small and immutable

// RedisResultStore caches the scored outcome of submitted attempts.
// Implements attempt.ResultCache.
type RedisResultStore struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisResultStore creates the production result cache.
func NewRedisResultStore(rdb *redis.Client, log zerolog.Logger) *RedisResultStore {
	return &RedisResultStore{
		rdb: rdb,
		log: log.With().Str("component", "result_store").Logger(),
	}
}

// SaveResult caches the scored outcome as JSON.
func (s *RedisResultStore) SaveResult(ctx context.Context, attemptID int64, res *model.SubmitResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	key := config.CacheKey.AttemptResultKey(attemptID)
	if err := s.rdb.Set(ctx, key, raw, resultTTL).Err(); err != nil {
		return fmt.Errorf("cache result: %w", err)
	}
	return nil
}

// LoadResult returns the cached outcome, or (nil, nil) when absent.
// A corrupted entry is treated as absent, not as a failure.
func (s *RedisResultStore) LoadResult(ctx context.Context, attemptID int64) (*model.SubmitResult, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptResultKey(attemptID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached result: %w", err)
	}

	var res model.SubmitResult
	if err := json.Unmarshal(raw, &res); err != nil {
		s.log.Debug().Int64("attempt_id", attemptID).Msg("Discarding malformed cached result")
		return nil, nil
	}
	return &res, nil
}
