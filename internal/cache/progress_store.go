package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prepdesk/examtake/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisProgressStore keeps the resume bookkeeping: the last-visited
// position per attempt and the per-user pointer to the most recent
// practice attempt. Implements attempt.PositionRecorder.
type RedisProgressStore struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisProgressStore creates the production progress store.
func NewRedisProgressStore(rdb *redis.Client, log zerolog.Logger) *RedisProgressStore {
	return &RedisProgressStore{
		rdb: rdb,
		log: log.With().Str("component", "progress_store").Logger(),
	}
}

// SetLastPosition records the last-visited position of an attempt.
func (s *RedisProgressStore) SetLastPosition(ctx context.Context, attemptID int64, position int) error {
	key := config.CacheKey.AttemptLastPositionKey(attemptID)
	if err := s.rdb.Set(ctx, key, strconv.Itoa(position), 0).Err(); err != nil {
		return fmt.Errorf("record last position: %w", err)
	}
	return nil
}

// LastPosition returns the last-visited position, or found=false when
// nothing (or something unreadable) is stored.
func (s *RedisProgressStore) LastPosition(ctx context.Context, attemptID int64) (int, bool, error) {
	val, err := s.rdb.Get(ctx, config.CacheKey.AttemptLastPositionKey(attemptID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read last position: %w", err)
	}
	p, convErr := strconv.Atoi(val)
	if convErr != nil || p < 1 {
		s.log.Debug().Str("value", val).Msg("Discarding malformed last position")
		return 0, false, nil
	}
	return p, true, nil
}

// SetLastPracticeAttempt points a user at their most recent practice
// attempt so it can be resumed from the home screen.
func (s *RedisProgressStore) SetLastPracticeAttempt(ctx context.Context, userKey string, attemptID int64) error {
	key := config.CacheKey.LastPracticeAttemptKey(userKey)
	if err := s.rdb.Set(ctx, key, strconv.FormatInt(attemptID, 10), 0).Err(); err != nil {
		return fmt.Errorf("record last practice attempt: %w", err)
	}
	return nil
}

// LastPracticeAttempt resolves the resume pointer for a user.
func (s *RedisProgressStore) LastPracticeAttempt(ctx context.Context, userKey string) (int64, bool, error) {
	val, err := s.rdb.Get(ctx, config.CacheKey.LastPracticeAttemptKey(userKey)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read last practice attempt: %w", err)
	}
	id, convErr := strconv.ParseInt(val, 10, 64)
	if convErr != nil || id < 1 {
		s.log.Debug().Str("value", val).Msg("Discarding malformed practice attempt pointer")
		return 0, false, nil
	}
	return id, true, nil
}
