package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prepdesk/examtake/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisAnsweredStore persists per-attempt answered-position sets as Redis
// sets. Implements attempt.AnsweredStore.
type RedisAnsweredStore struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisAnsweredStore creates the production answered-set store.
func NewRedisAnsweredStore(rdb *redis.Client, log zerolog.Logger) *RedisAnsweredStore {
	return &RedisAnsweredStore{
		rdb: rdb,
		log: log.With().Str("component", "answered_store").Logger(),
	}
}

// Load reads the persisted positions for an attempt. A missing key is an
// empty set; malformed members are skipped, never fatal, so a corrupted
// entry degrades to "not yet known answered" rather than an error.
func (s *RedisAnsweredStore) Load(ctx context.Context, attemptID int64) ([]int, error) {
	members, err := s.rdb.SMembers(ctx, config.CacheKey.AttemptAnsweredKey(attemptID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load answered set: %w", err)
	}
	return parsePositions(members, s.log), nil
}

// Add persists one answered position. SADD is naturally idempotent.
func (s *RedisAnsweredStore) Add(ctx context.Context, attemptID int64, position int) error {
	key := config.CacheKey.AttemptAnsweredKey(attemptID)
	if err := s.rdb.SAdd(ctx, key, strconv.Itoa(position)).Err(); err != nil {
		return fmt.Errorf("persist answered position: %w", err)
	}
	return nil
}

// parsePositions converts raw set members into positions, dropping
// anything that is not a positive integer.
func parsePositions(members []string, log zerolog.Logger) []int {
	out := make([]int, 0, len(members))
	for _, m := range members {
		p, err := strconv.Atoi(m)
		if err != nil || p < 1 {
			log.Debug().Str("member", m).Msg("Skipping malformed answered-set member")
			continue
		}
		out = append(out, p)
	}
	return out
}
