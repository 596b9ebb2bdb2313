package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/interviewer/internal/infra/kv"
)

func TestKey_Normalized(t *testing.T) {
	a := Key("technical_question", map[string]any{"category": "Algorithms", "difficulty": " medium ", "n": 3})
	b := Key("technical_question", map[string]any{"difficulty": "medium", "n": 3, "category": "algorithms"})
	assert.Equal(t, a, b)

	c := Key("technical_question", map[string]any{"category": "algorithms", "difficulty": "hard", "n": 3})
	assert.NotEqual(t, a, c)

	d := Key("hr_question", map[string]any{"category": "algorithms", "difficulty": "medium", "n": 3})
	assert.NotEqual(t, a, d, "operation is part of the key")
}

func TestKey_FreeTextKeepsCase(t *testing.T) {
	a := Key("technical_answer", map[string]any{"question": "What prints?", "answer": "It prints X then x"})
	b := Key("technical_answer", map[string]any{"question": "What prints?", "answer": "it prints x then X"})
	assert.NotEqual(t, a, b)

	c := Key("technical_answer", map[string]any{"question": "What prints?", "answer": "It prints X  then x"})
	assert.NotEqual(t, a, c, "inner whitespace is part of the answer")

	d := Key("technical_answer", map[string]any{"question": " What prints? ", "answer": "It prints X then x\n"})
	assert.Equal(t, a, d)
}

func TestCache_TTLByOperationClass(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	store := kv.NewMemoryStore()
	store.SetClock(func() time.Time { return now })
	c := New(store, Config{EvaluationTTL: time.Minute, GenerationTTL: time.Hour})

	c.Set(ctx, "eval", "k-eval", json.RawMessage(`{"score":7}`), true)
	c.Set(ctx, "gen", "k-gen", json.RawMessage(`{"text":"q"}`), false)

	now = now.Add(2 * time.Minute)

	_, ok := c.Get(ctx, "eval", "k-eval")
	assert.False(t, ok, "evaluation entry should have expired")

	got, ok := c.Get(ctx, "gen", "k-gen")
	require.True(t, ok)
	assert.JSONEq(t, `{"text":"q"}`, string(got))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Writes)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
}
