package kv

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]memEntry
	zsets   map[string]map[string]float64
	zexpiry map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]memEntry),
		zsets:   make(map[string]map[string]float64),
		zexpiry: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock replaces the clock used for expiry.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) expired(t time.Time) bool {
	return !t.IsZero() && !m.now().Before(t)
}

// evict drops key if its expiry has passed. Caller holds mu.
func (m *MemoryStore) evict(key string) {
	if e, ok := m.values[key]; ok && m.expired(e.expiresAt) {
		delete(m.values, key)
	}
	if t, ok := m.zexpiry[key]; ok && m.expired(t) {
		delete(m.zsets, key)
		delete(m.zexpiry, key)
	}
}

func (m *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(key)
	e, ok := m.values[key]
	if !ok {
		return nil, ErrNil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.values[key] = memEntry{value: v, expiresAt: m.deadline(ttl)}
	return nil
}

func (m *MemoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
		delete(m.zsets, k)
		delete(m.zexpiry, k)
	}
	return nil
}

func (m *MemoryStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(key)
	e := m.values[key]
	var cur int64
	if len(e.value) > 0 {
		var err error
		cur, err = strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, err
		}
	}
	cur += n
	e.value = []byte(strconv.FormatInt(cur, 10))
	m.values[key] = e
	return cur, nil
}

func (m *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(key)
	if e, ok := m.values[key]; ok {
		e.expiresAt = m.deadline(ttl)
		m.values[key] = e
	}
	if _, ok := m.zsets[key]; ok {
		m.zexpiry[key] = m.deadline(ttl)
	}
	return nil
}

func (m *MemoryStore) ZAdd(ctx context.Context, key string, members ...ZMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(key)
	set, ok := m.zsets[key]
	if !ok {
		set = make(map[string]float64)
		m.zsets[key] = set
	}
	for _, z := range members {
		set[z.Member] = z.Score
	}
	return nil
}

func (m *MemoryStore) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(key)
	set := m.zsets[key]
	var removed int64
	for _, mem := range members {
		if _, ok := set[mem]; ok {
			delete(set, mem)
			removed++
		}
	}
	return removed, nil
}

// sorted returns members of key ordered by score then member. Caller holds mu.
func (m *MemoryStore) sorted(key string) []ZMember {
	set := m.zsets[key]
	out := make([]ZMember, 0, len(set))
	for mem, score := range set {
		out = append(out, ZMember{Member: mem, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

func (m *MemoryStore) ZRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]ZMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(key)
	var out []ZMember
	for _, z := range m.sorted(key) {
		if z.Score < min || z.Score > max {
			continue
		}
		out = append(out, z)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(key)
	set := m.zsets[key]
	var removed int64
	for mem, score := range set {
		if score >= min && score <= max {
			delete(set, mem)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) ZCard(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(key)
	return int64(len(m.zsets[key])), nil
}

func (m *MemoryStore) AdmitWindow(
	ctx context.Context,
	key, member string,
	now time.Time,
	window time.Duration,
	limit int64,
) (WindowResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(key)

	nowMs := float64(now.UnixMilli())
	cutoff := nowMs - float64(window.Milliseconds())
	set := m.zsets[key]
	for mem, score := range set {
		if score <= cutoff {
			delete(set, mem)
		}
	}

	count := int64(len(set))
	if count >= limit {
		res := WindowResult{Count: count}
		if sorted := m.sorted(key); len(sorted) > 0 {
			res.Oldest = sorted[0].Score
		}
		return res, nil
	}

	if set == nil {
		set = make(map[string]float64)
		m.zsets[key] = set
	}
	set[member] = nowMs
	m.zexpiry[key] = m.deadline(window)
	return WindowResult{Admitted: true, Count: count}, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
