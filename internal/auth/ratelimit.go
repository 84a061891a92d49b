package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRatePoints = 500
	DefaultRateWindow = 15 * time.Minute
)

// RateLimiter is a fixed-window per-IP counter shared by every auth route.
type RateLimiter struct {
	Redis  *redis.Client
	Points int64
	Window time.Duration
}

func NewRateLimiter(client *redis.Client, points int64, window time.Duration) *RateLimiter {
	if points <= 0 {
		points = DefaultRatePoints
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{Redis: client, Points: points, Window: window}
}

func (r *RateLimiter) ipKey(ip string) string {
	return "auth_rate:" + ip
}

// Allow consumes one point for ip. When the window is exhausted it returns
// false and the time left until the counter resets.
func (r *RateLimiter) Allow(ctx context.Context, ip string) (bool, time.Duration, error) {
	key := r.ipKey(ip)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, r.Window)
	}
	if attempts <= r.Points {
		return true, 0, nil
	}

	ttl, err := r.Redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// A counter without expiry would lock the ip out forever.
		r.Redis.Expire(ctx, key, r.Window)
		ttl = r.Window
	}
	return false, ttl, nil
}
