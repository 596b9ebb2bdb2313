package kv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mocks
// =============================================================================

// brokenStore fails every call with err.
type brokenStore struct {
	*MemoryStore
	err   error
	calls int
}

func (b *brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	b.calls++
	return nil, b.err
}

func (b *brokenStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.calls++
	return b.err
}

// =============================================================================
// MemoryStore
// =============================================================================

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	s := NewMemoryStore()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNil)
}

func TestMemoryStore_ZRemReportsClaims(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.ZAdd(ctx, "z", ZMember{Member: "a", Score: 1}))

	n, err := s.ZRem(ctx, "z", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.ZRem(ctx, "z", "a")
	require.NoError(t, err)
	assert.Zero(t, n, "second remover must not claim the member")
}

func TestMemoryStore_ZRangeByScore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 5; i >= 1; i-- {
		require.NoError(t, s.ZAdd(ctx, "z", ZMember{Member: fmt.Sprint(i), Score: float64(i)}))
	}

	got, err := s.ZRangeByScore(ctx, "z", 2, 4, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].Member)
	assert.Equal(t, "4", got[2].Member)

	got, err = s.ZRangeByScore(ctx, "z", MinScore, MaxScore, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Member)

	removed, err := s.ZRemRangeByScore(ctx, "z", MinScore, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	card, err := s.ZCard(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)
}

func TestMemoryStore_IncrBy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	n, err := s.IncrBy(ctx, "c", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = s.IncrBy(ctx, "c", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

// =============================================================================
// Supervisor
// =============================================================================

func TestMemoryStore_AdmitWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_000, 0)
	m := NewMemoryStore()
	m.SetClock(func() time.Time { return now })

	for i := range 2 {
		res, err := m.AdmitWindow(ctx, "w", fmt.Sprintf("m%d", i), now, 10*time.Second, 2)
		require.NoError(t, err)
		assert.True(t, res.Admitted)
		assert.Equal(t, int64(i), res.Count)
		now = now.Add(time.Second)
	}

	res, err := m.AdmitWindow(ctx, "w", "m2", now, 10*time.Second, 2)
	require.NoError(t, err)
	assert.False(t, res.Admitted)
	assert.Equal(t, float64(time.Unix(1_000, 0).UnixMilli()), res.Oldest)

	// The first member falls out of the window.
	now = time.Unix(1_010, 0)
	res, err = m.AdmitWindow(ctx, "w", "m3", now, 10*time.Second, 2)
	require.NoError(t, err)
	assert.True(t, res.Admitted)
	assert.Equal(t, int64(1), res.Count)
}

func TestShouldFailover(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("ERR max requests limit exceeded. Limit: 10000"), true},
		{&net.DNSError{Err: "no such host", Name: "redis.internal"}, true},
		{fmt.Errorf("dial: %w", errors.New("connect: connection refused")), true},
		{ErrNil, false},
		{context.Canceled, false},
		{errors.New("WRONGTYPE Operation against a key"), false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldFailover(tt.err), "err: %v", tt.err)
	}
}

func TestSupervisor_FailsOverOnQuota(t *testing.T) {
	ctx := context.Background()
	primary := &brokenStore{MemoryStore: NewMemoryStore(), err: errors.New("ERR max requests limit exceeded")}
	secondary := NewMemoryStore()
	s := NewSupervisor(primary, secondary)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	assert.Equal(t, "secondary", s.Active())

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
	assert.Equal(t, 1, primary.calls, "primary must not be used after failover")
}

func TestSupervisor_KeepsPrimaryOnOperationError(t *testing.T) {
	ctx := context.Background()
	primary := &brokenStore{MemoryStore: NewMemoryStore(), err: errors.New("WRONGTYPE")}
	s := NewSupervisor(primary, NewMemoryStore())

	_, err := s.Get(ctx, "k")
	assert.Error(t, err)
	assert.Equal(t, "primary", s.Active())
}

func TestSupervisor_NoSecondary(t *testing.T) {
	ctx := context.Background()
	primary := &brokenStore{MemoryStore: NewMemoryStore(), err: errors.New("quota exceeded")}
	s := NewSupervisor(primary, nil)

	err := s.Set(ctx, "k", nil, 0)
	assert.Error(t, err)
	assert.Equal(t, "primary", s.Active())
}
