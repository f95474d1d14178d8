package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const loginAttemptsKeyPrefix = "login_attempts:"

// LoginThrottle counts failed logins per username in Redis within a sliding
// window. It fails open: when Redis is unreachable the throttle allows the
// attempt and logs, so an outage never locks everybody out.
type LoginThrottle struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
	logger      *zap.Logger
}

// NewLoginThrottle builds a throttle. A nil client disables it.
func NewLoginThrottle(client *redis.Client, maxAttempts int, window time.Duration, logger *zap.Logger) *LoginThrottle {
	return &LoginThrottle{client: client, maxAttempts: maxAttempts, window: window, logger: logger}
}

// Allow reports whether another login attempt for the username may proceed.
func (t *LoginThrottle) Allow(ctx context.Context, username string) bool {
	if t == nil || t.client == nil || t.maxAttempts <= 0 {
		return true
	}
	count, err := t.client.Get(ctx, loginAttemptsKeyPrefix+username).Int()
	if err != nil && err != redis.Nil {
		t.logger.Warn("login throttle unavailable", zap.Error(err))
		return true
	}
	return count < t.maxAttempts
}

// RecordFailure bumps the failure counter, starting the window on the first
// failure.
func (t *LoginThrottle) RecordFailure(ctx context.Context, username string) {
	if t == nil || t.client == nil {
		return
	}
	key := loginAttemptsKeyPrefix + username
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		t.logger.Warn("login throttle unavailable", zap.Error(err))
		return
	}
	if count == 1 {
		t.client.Expire(ctx, key, t.window)
	}
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, username string) {
	if t == nil || t.client == nil {
		return
	}
	if err := t.client.Del(ctx, loginAttemptsKeyPrefix+username).Err(); err != nil {
		t.logger.Warn("login throttle unavailable", zap.Error(err))
	}
}
