// Package ratelimit caps how often a team may submit flags or redeem tokens.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether identifier may make another request.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// Unlimited allows everything; used when Redis is not configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }

type RedisLimiterConfig struct {
	RedisClient *redis.Client
	LimiterKey  string
	PerMinute   int64
	FailOpen    bool
}

// RedisLimiter is a fixed one-minute window per identifier. When Redis is
// unreachable it answers FailOpen together with the error.
type RedisLimiter struct {
	db         *redis.Client
	limiterKey string
	perMinute  int64
	failOpen   bool
}

func NewRedisLimiter(config RedisLimiterConfig) *RedisLimiter {
	return &RedisLimiter{
		db:         config.RedisClient,
		limiterKey: config.LimiterKey,
		perMinute:  config.PerMinute,
		failOpen:   config.FailOpen,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	if l.perMinute <= 0 {
		return true, nil
	}
	key := "ctf-ratelimit-" + l.limiterKey + "-" + identifier

	pipe := l.db.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.failOpen, err
	}
	return incr.Val() <= l.perMinute, nil
}
