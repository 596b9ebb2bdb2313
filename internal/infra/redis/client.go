package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/interviewer/internal/infra/kv"
)

// Client implements kv.Store on a Redis server.
type Client struct {
	name string
	rdb  *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client and verifies the connection.
func NewClient(name string, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", name, err)
	}

	return &Client{name: name, rdb: rdb}, nil
}

// Name returns the label the client was created with.
func (c *Client) Name() string {
	return c.name
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	return val, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}

func (c *Client) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	v, err := c.rdb.IncrBy(ctx, key, n).Result()
	if err != nil {
		return 0, fmt.Errorf("incrby failed: %w", err)
	}
	return v, nil
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("expire failed: %w", err)
	}
	return nil
}

func (c *Client) ZAdd(ctx context.Context, key string, members ...kv.ZMember) error {
	zs := make([]redis.Z, len(members))
	for i, m := range members {
		zs[i] = redis.Z{Score: m.Score, Member: m.Member}
	}
	if err := c.rdb.ZAdd(ctx, key, zs...).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

func (c *Client) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	n, err := c.rdb.ZRem(ctx, key, args...).Result()
	if err != nil {
		return 0, fmt.Errorf("zrem failed: %w", err)
	}
	return n, nil
}

func (c *Client) ZRangeByScore(
	ctx context.Context,
	key string,
	min, max float64,
	limit int64,
) ([]kv.ZMember, error) {
	opt := &redis.ZRangeBy{Min: formatScore(min), Max: formatScore(max)}
	if limit > 0 {
		opt.Count = limit
	}
	results, err := c.rdb.ZRangeByScoreWithScores(ctx, key, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore failed: %w", err)
	}

	out := make([]kv.ZMember, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, kv.ZMember{Member: member, Score: z.Score})
	}
	return out, nil
}

func (c *Client) ZRemRangeByScore(ctx context.Context, key string, min, max float64) (int64, error) {
	n, err := c.rdb.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Result()
	if err != nil {
		return 0, fmt.Errorf("zremrangebyscore failed: %w", err)
	}
	return n, nil
}

func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return n, nil
}

// admitWindowScript prunes, counts and conditionally adds in one round trip
// so concurrent callers cannot all observe the same count.
var admitWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  return {0, count, oldest[2] or ''}
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {1, count, ''}
`)

func (c *Client) AdmitWindow(
	ctx context.Context,
	key, member string,
	now time.Time,
	window time.Duration,
	limit int64,
) (kv.WindowResult, error) {
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	vals, err := admitWindowScript.Run(ctx, c.rdb, []string{key},
		nowMs-windowMs, nowMs, limit, member, windowMs).Slice()
	if err != nil {
		return kv.WindowResult{}, fmt.Errorf("admit window failed: %w", err)
	}
	if len(vals) != 3 {
		return kv.WindowResult{}, fmt.Errorf("admit window: unexpected reply %v", vals)
	}

	admitted, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	res := kv.WindowResult{Admitted: admitted == 1, Count: count}
	if s, ok := vals[2].(string); ok && s != "" {
		if res.Oldest, err = strconv.ParseFloat(s, 64); err != nil {
			return kv.WindowResult{}, fmt.Errorf("admit window: bad score %q: %w", s, err)
		}
	}
	return res, nil
}

// formatScore renders a score bound in Redis range syntax.
func formatScore(f float64) string {
	switch {
	case f == kv.MinScore:
		return "-inf"
	case f == kv.MaxScore:
		return "+inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
