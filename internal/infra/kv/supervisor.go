package kv

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/vietddude/interviewer/internal/pipeline/metrics"
)

type backend struct {
	name  string
	store Store
}

// Supervisor is a Store that forwards to an active backend and swaps to the
// secondary when the primary reports quota exhaustion or becomes unreachable.
// Callers keep one Supervisor reference for the lifetime of the process.
type Supervisor struct {
	primary   *backend
	secondary *backend
	active    atomic.Pointer[backend]
	log       *slog.Logger
}

// NewSupervisor creates a supervisor. secondary may be nil, in which case
// errors from the primary are returned as is.
func NewSupervisor(primary, secondary Store) *Supervisor {
	s := &Supervisor{
		primary: &backend{name: "primary", store: primary},
		log:     slog.Default().With("component", "kv-supervisor"),
	}
	if secondary != nil {
		s.secondary = &backend{name: "secondary", store: secondary}
	}
	s.active.Store(s.primary)
	metrics.StoreActiveBackend.WithLabelValues("primary").Set(1)
	return s
}

// Active returns the name of the backend currently serving requests.
func (s *Supervisor) Active() string {
	return s.active.Load().name
}

// ShouldFailover reports whether err means the backend itself is unusable,
// as opposed to a failure of a single operation.
func ShouldFailover(err error) bool {
	if err == nil || errors.Is(err, ErrNil) || errors.Is(err, context.Canceled) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"max requests limit exceeded",
		"max daily request limit",
		"quota",
		"no such host",
		"connection refused",
		"oom command not allowed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// failover swaps from the given backend to the secondary. It returns the
// backend that should serve the retry, or nil when no swap happened.
func (s *Supervisor) failover(from *backend, cause error) *backend {
	if s.secondary == nil || from != s.primary {
		return nil
	}
	if s.active.CompareAndSwap(s.primary, s.secondary) {
		s.log.Warn("Switching key-value store to secondary", "error", cause)
		metrics.StoreFailovers.Inc()
		metrics.StoreActiveBackend.WithLabelValues("primary").Set(0)
		metrics.StoreActiveBackend.WithLabelValues("secondary").Set(1)
	}
	return s.active.Load()
}

func do[T any](s *Supervisor, fn func(Store) (T, error)) (T, error) {
	b := s.active.Load()
	v, err := fn(b.store)
	if err == nil || !ShouldFailover(err) {
		return v, err
	}
	next := s.failover(b, err)
	if next == nil {
		return v, err
	}
	return fn(next.store)
}

func (s *Supervisor) Get(ctx context.Context, key string) ([]byte, error) {
	return do(s, func(st Store) ([]byte, error) { return st.Get(ctx, key) })
}

func (s *Supervisor) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := do(s, func(st Store) (struct{}, error) { return struct{}{}, st.Set(ctx, key, value, ttl) })
	return err
}

func (s *Supervisor) Del(ctx context.Context, keys ...string) error {
	_, err := do(s, func(st Store) (struct{}, error) { return struct{}{}, st.Del(ctx, keys...) })
	return err
}

func (s *Supervisor) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return do(s, func(st Store) (int64, error) { return st.IncrBy(ctx, key, n) })
}

func (s *Supervisor) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := do(s, func(st Store) (struct{}, error) { return struct{}{}, st.Expire(ctx, key, ttl) })
	return err
}

func (s *Supervisor) ZAdd(ctx context.Context, key string, members ...ZMember) error {
	_, err := do(s, func(st Store) (struct{}, error) { return struct{}{}, st.ZAdd(ctx, key, members...) })
	return err
}

func (s *Supervisor) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	return do(s, func(st Store) (int64, error) { return st.ZRem(ctx, key, members...) })
}

func (s *Supervisor) ZRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]ZMember, error) {
	return do(s, func(st Store) ([]ZMember, error) { return st.ZRangeByScore(ctx, key, min, max, limit) })
}

func (s *Supervisor) ZRemRangeByScore(ctx context.Context, key string, min, max float64) (int64, error) {
	return do(s, func(st Store) (int64, error) { return st.ZRemRangeByScore(ctx, key, min, max) })
}

func (s *Supervisor) ZCard(ctx context.Context, key string) (int64, error) {
	return do(s, func(st Store) (int64, error) { return st.ZCard(ctx, key) })
}

func (s *Supervisor) AdmitWindow(
	ctx context.Context,
	key, member string,
	now time.Time,
	window time.Duration,
	limit int64,
) (WindowResult, error) {
	return do(s, func(st Store) (WindowResult, error) {
		return st.AdmitWindow(ctx, key, member, now, window, limit)
	})
}

func (s *Supervisor) Ping(ctx context.Context) error {
	return s.active.Load().store.Ping(ctx)
}

// Close closes both backends.
func (s *Supervisor) Close() error {
	err := s.primary.store.Close()
	if s.secondary != nil {
		err = errors.Join(err, s.secondary.store.Close())
	}
	return err
}
