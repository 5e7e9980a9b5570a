package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptAnsweredKey returns the cache key for an attempt's answered-position set.
func (r *CacheKeyStruct) AttemptAnsweredKey(attemptID int64) string {
	return fmt.Sprintf("attempt:%d:answered", attemptID)
}

// AttemptLastPositionKey returns the cache key for an attempt's last-visited position.
func (r *CacheKeyStruct) AttemptLastPositionKey(attemptID int64) string {
	return fmt.Sprintf("attempt:%d:lastpos", attemptID)
}

// AttemptResultKey returns the cache key for an attempt's cached submit result.
func (r *CacheKeyStruct) AttemptResultKey(attemptID int64) string {
	return fmt.Sprintf("attempt:%d:result", attemptID)
}

// LastPracticeAttemptKey returns the cache key for a user's most recent
// practice attempt pointer, used by the resume flow.
func (r *CacheKeyStruct) LastPracticeAttemptKey(userKey string) string {
	return fmt.Sprintf("user:%s:last_practice_attempt", userKey)
}

var CacheKey = NewCacheKeyStruct()
