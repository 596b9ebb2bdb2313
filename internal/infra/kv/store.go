// Package kv defines the shared key-value store used by the response cache,
// the rate limiter and the work queue, plus an in-process implementation and
// a supervisor that fails over between backends.
package kv

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrNil is returned by Get when the key does not exist.
var ErrNil = errors.New("kv: nil")

// Score bounds for range queries.
var (
	MinScore = math.Inf(-1)
	MaxScore = math.Inf(1)
)

// ZMember is a sorted-set member with its score.
type ZMember struct {
	Member string
	Score  float64
}

// WindowResult is the outcome of a sliding-window admission.
type WindowResult struct {
	Admitted bool
	// Count is the number of members in the window before this admission.
	Count int64
	// Oldest is the score of the oldest member still in the window. It is
	// only set when the admission was refused.
	Oldest float64
}

// Store is the subset of Redis semantics the pipeline relies on.
// Every method is a single atomic operation on the backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	ZAdd(ctx context.Context, key string, members ...ZMember) error
	// ZRem returns the number of members actually removed.
	ZRem(ctx context.Context, key string, members ...string) (int64, error)
	// ZRangeByScore returns members with min <= score <= max in ascending
	// score order. A limit <= 0 returns all of them.
	ZRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]ZMember, error)
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) (int64, error)
	ZCard(ctx context.Context, key string) (int64, error)

	// AdmitWindow drops members scored at or below now minus window, then
	// adds member at now when fewer than limit remain and sets the key to
	// expire after window. All of it happens as one operation.
	AdmitWindow(ctx context.Context, key, member string, now time.Time, window time.Duration, limit int64) (WindowResult, error)

	Ping(ctx context.Context) error
	Close() error
}
