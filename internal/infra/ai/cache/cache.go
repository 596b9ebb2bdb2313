// Package cache is a content-addressed cache of parsed model responses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vietddude/interviewer/internal/infra/kv"
	"github.com/vietddude/interviewer/internal/pipeline/metrics"
)

// Config holds cache TTLs.
type Config struct {
	EvaluationTTL time.Duration `yaml:"evaluation_ttl"`
	GenerationTTL time.Duration `yaml:"generation_ttl"`
}

// DefaultConfig keeps evaluations briefly and generated templates for a week.
func DefaultConfig() Config {
	return Config{
		EvaluationTTL: time.Hour,
		GenerationTTL: 7 * 24 * time.Hour,
	}
}

// Stats is a snapshot of cache counters since process start.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Writes  int64   `json:"writes"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// Cache stores parsed results keyed by a hash of the normalized request.
// Every store failure is treated as a miss.
type Cache struct {
	store kv.Store
	cfg   Config
	log   *slog.Logger

	hits, misses, writes, errs atomic.Int64
}

// New creates a cache over store.
func New(store kv.Store, cfg Config) *Cache {
	return &Cache{
		store: store,
		cfg:   cfg,
		log:   slog.Default().With("component", "cache"),
	}
}

// foldedParams are enum-like parameters compared without case.
var foldedParams = map[string]bool{
	"category":   true,
	"difficulty": true,
	"role":       true,
	"language":   true,
}

// Key derives the cache key for an operation and its parameters. Key order
// and surrounding whitespace do not change the key. Free text such as an
// answer keeps its case, so any edit to it is a miss.
func Key(op string, params map[string]any) string {
	data, _ := json.Marshal(normalize("", params))
	sum := sha256.Sum256(data)
	return "ai:cache:" + op + ":" + hex.EncodeToString(sum[:])
}

func normalize(key string, v any) any {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if foldedParams[key] {
			s = strings.ToLower(s)
		}
		return s
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			k = strings.ToLower(strings.TrimSpace(k))
			out[k] = normalize(k, e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(key, e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(key, e)
		}
		return out
	}
	return v
}

// Get returns the cached value for key.
func (c *Cache) Get(ctx context.Context, op, key string) (json.RawMessage, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNil) {
			c.errs.Add(1)
			c.log.Warn("Cache read failed", "operation", op, "error", err)
		}
		c.misses.Add(1)
		metrics.CacheRequestsTotal.WithLabelValues(op, "miss").Inc()
		return nil, false
	}
	c.hits.Add(1)
	metrics.CacheRequestsTotal.WithLabelValues(op, "hit").Inc()
	return data, true
}

// Set stores value under key with the TTL of its operation class.
func (c *Cache) Set(ctx context.Context, op, key string, value json.RawMessage, evaluation bool) {
	ttl := c.cfg.GenerationTTL
	if evaluation {
		ttl = c.cfg.EvaluationTTL
	}
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.errs.Add(1)
		c.log.Warn("Cache write failed", "operation", op, "error", err)
		return
	}
	c.writes.Add(1)
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Writes: c.writes.Load(),
		Errors: c.errs.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
