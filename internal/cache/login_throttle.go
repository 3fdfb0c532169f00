package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// failureScript counts a failure in a fixed window: the first failure starts the window.
var failureScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('EXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

// LoginThrottle counts failed logins per email in a fixed window.
type LoginThrottle struct {
	client      redis.Cmdable
	maxFailures int64
	window      time.Duration
}

// NewLoginThrottle builds a throttle. maxFailures <= 0 disables blocking.
func NewLoginThrottle(client redis.Cmdable, maxFailures int, window time.Duration) *LoginThrottle {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginThrottle{client: client, maxFailures: int64(maxFailures), window: window}
}

// Blocked reports whether email has used up its failure budget, and how long until the window
// resets.
func (t *LoginThrottle) Blocked(ctx context.Context, email string) (bool, time.Duration, error) {
	if t.maxFailures <= 0 {
		return false, 0, nil
	}
	key := loginFailureKey(email)
	count, err := t.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("read login failures: %w", err)
	}
	if count < t.maxFailures {
		return false, 0, nil
	}

	ttl, err := t.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = t.window
	}
	return true, ttl, nil
}

// RecordFailure adds one failure and returns the count in the current window.
func (t *LoginThrottle) RecordFailure(ctx context.Context, email string) (int64, error) {
	seconds := int64(t.window / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	count, err := failureScript.Run(ctx, t.client, []string{loginFailureKey(email)}, seconds).Int64()
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	return count, nil
}

// Reset clears the failure counter for email.
func (t *LoginThrottle) Reset(ctx context.Context, email string) error {
	return t.client.Del(ctx, loginFailureKey(email)).Err()
}
