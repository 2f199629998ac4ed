package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// KnockLimiter enforces the once-per-week knock rule. The week boundary
// is the ISO week: Monday local midnight.
type KnockLimiter interface {
	// Allow atomically claims this week's knock from one user to another.
	// It returns false when the knock was already used this week.
	Allow(ctx context.Context, fromUserID, toUserID string, now time.Time) (bool, error)
}

// RedisKnockLimiter backs the rule with a SETNX key that expires at the
// start of the next ISO week.
type RedisKnockLimiter struct {
	client *redis.Client
}

func NewRedisKnockLimiter(client *redis.Client) *RedisKnockLimiter {
	return &RedisKnockLimiter{client: client}
}

func (l *RedisKnockLimiter) Allow(ctx context.Context, fromUserID, toUserID string, now time.Time) (bool, error) {
	year, week := now.ISOWeek()
	key := fmt.Sprintf("knock:%s:%s:%d-%02d", fromUserID, toUserID, year, week)

	ok, err := l.client.SetNX(ctx, key, now.Unix(), TimeUntilNextWeek(now)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim knock key: %v", err)
	}
	return ok, nil
}

// TimeUntilNextWeek is the duration from now until the next ISO week
// starts (Monday local midnight).
func TimeUntilNextWeek(now time.Time) time.Duration {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	nextMonday := day.AddDate(0, 0, 8-wd)
	return nextMonday.Sub(now)
}
