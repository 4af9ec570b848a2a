package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         "localhost:1",
		DialTimeout:  10 * time.Millisecond,
		ReadTimeout:  10 * time.Millisecond,
		WriteTimeout: 10 * time.Millisecond,
		MaxRetries:   -1,
	})
}

func TestRedisLimiterUnreachable(t *testing.T) {
	tests := []struct {
		name     string
		failOpen bool
	}{
		{"fail open", true},
		{"fail closed", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdb := deadRedis()
			defer rdb.Close()
			l := NewRedisLimiter(RedisLimiterConfig{
				RedisClient: rdb,
				LimiterKey:  "submit",
				PerMinute:   5,
				FailOpen:    tt.failOpen,
			})

			ok, err := l.Allow(context.Background(), "team-1")
			if err == nil {
				t.Fatal("Allow with dead redis returned nil error")
			}
			if ok != tt.failOpen {
				t.Errorf("Allow = %v, want %v", ok, tt.failOpen)
			}
		})
	}
}

func TestRedisLimiterDisabled(t *testing.T) {
	l := NewRedisLimiter(RedisLimiterConfig{RedisClient: deadRedis(), PerMinute: 0})
	ok, err := l.Allow(context.Background(), "team-1")
	if !ok || err != nil {
		t.Errorf("Allow = %v, %v, want true, nil", ok, err)
	}
}

func TestUnlimited(t *testing.T) {
	if ok, _ := (Unlimited{}).Allow(context.Background(), "x"); !ok {
		t.Error("Unlimited denied a request")
	}
}
