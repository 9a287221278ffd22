// Package kvstore holds short-lived process state (rate-limit windows, revoked tokens,
// login failure counters, admission locks) behind one interface so a single instance can
// keep it in memory and a multi-instance deployment can move it to redis.
package kvstore

import (
	"context"
	"time"
)

type Store interface {
	// Incr adds one to key and returns the new value. The first increment of a key starts
	// its expiry window; later increments do not extend it (fixed window).
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX sets key only if absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	// CompareAndDelete removes key only while it still holds value.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	// CompareAndExpire resets key's TTL only while it still holds value.
	CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}
