package server

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle bounds failed login attempts per username+address using a
// fixed-window Redis counter. With no Redis configured the throttle is a
// no-op; it also fails open on Redis errors so an outage cannot lock
// analysts out.
type LoginThrottle struct {
	Rdb    *redis.Client
	Max    int
	Window time.Duration
}

func (t *LoginThrottle) key(username, addr string) string {
	return "insight:login:fail:" + username + ":" + addr
}

// Blocked reports whether this username+address has exhausted its attempts.
func (t *LoginThrottle) Blocked(ctx context.Context, username, addr string) bool {
	if t == nil || t.Rdb == nil || t.Max <= 0 {
		return false
	}
	n, err := t.Rdb.Get(ctx, t.key(username, addr)).Int()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[HTTP] login throttle read: %v", err)
		}
		return false
	}
	return n >= t.Max
}

// Fail records one failed attempt.
func (t *LoginThrottle) Fail(ctx context.Context, username, addr string) {
	if t == nil || t.Rdb == nil {
		return
	}
	key := t.key(username, addr)
	n, err := t.Rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[HTTP] login throttle incr: %v", err)
		return
	}
	if n == 1 {
		t.Rdb.Expire(ctx, key, t.Window)
	}
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, username, addr string) {
	if t == nil || t.Rdb == nil {
		return
	}
	if err := t.Rdb.Del(ctx, t.key(username, addr)).Err(); err != nil {
		log.Printf("[HTTP] login throttle reset: %v", err)
	}
}
