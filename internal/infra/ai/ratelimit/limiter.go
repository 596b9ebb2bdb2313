// Package ratelimit implements a sliding-window limiter over the shared
// key-value store, so every process in a deployment sees the same window.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/interviewer/internal/infra/kv"
	"github.com/vietddude/interviewer/internal/pipeline/metrics"
)

// Rule is the budget of one named window.
type Rule struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// Decision is the outcome of a Check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits requests against per-name sliding windows.
type Limiter struct {
	store kv.Store
	rules map[string]Rule
	now   func() time.Time
	log   *slog.Logger
}

// New creates a limiter. Names without a rule are always admitted.
func New(store kv.Store, rules map[string]Rule) *Limiter {
	copied := make(map[string]Rule, len(rules))
	for name, rule := range rules {
		copied[name] = rule
	}
	return &Limiter{
		store: store,
		rules: copied,
		now:   time.Now,
		log:   slog.Default().With("component", "ratelimit"),
	}
}

// SetRule adds or replaces the rule for name. It is not safe to call
// concurrently with Check.
func (l *Limiter) SetRule(name string, rule Rule) {
	l.rules[name] = rule
}

func key(name string) string {
	return "ratelimit:" + name
}

// Check drops timestamps older than the window, then admits the request if
// fewer than MaxRequests remain. The store does both in one atomic step.
// Store errors fail open.
func (l *Limiter) Check(ctx context.Context, name string) Decision {
	rule, ok := l.rules[name]
	if !ok || rule.MaxRequests <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true, Remaining: -1}
	}

	now := l.now()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
	res, err := l.store.AdmitWindow(ctx, key(name), member, now, rule.Window, int64(rule.MaxRequests))
	if err != nil {
		return l.failOpen(name, err)
	}

	if !res.Admitted {
		metrics.RateLimitedTotal.WithLabelValues(name).Inc()
		if res.Count == 0 {
			return Decision{Allowed: false, RetryAfter: rule.Window}
		}
		nowMs := float64(now.UnixMilli())
		retry := time.Duration(res.Oldest+float64(rule.Window.Milliseconds())-nowMs) * time.Millisecond
		return Decision{Allowed: false, RetryAfter: max(retry, 0)}
	}

	return Decision{Allowed: true, Remaining: rule.MaxRequests - int(res.Count) - 1}
}

func (l *Limiter) failOpen(name string, err error) Decision {
	l.log.Warn("Rate limiter store unavailable, admitting request", "limiter", name, "error", err)
	return Decision{Allowed: true, Remaining: -1}
}
