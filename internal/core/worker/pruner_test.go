package worker

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/kv"
	"github.com/vietddude/interviewer/internal/infra/queue"
)

func TestPruner_Prune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := kv.NewMemoryStore()
	store.SetClock(clock)

	var queues []*queue.Queue
	for _, name := range []string{"answer-evaluation", "hr-evaluation"} {
		q := queue.New(name, store, queue.Config{})
		q.SetClock(clock)
		if _, err := q.Enqueue(ctx, domain.HREvaluationPayload{RoundID: "r", QuestionID: name}, queue.EnqueueOptions{}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		job, err := q.Dequeue(ctx)
		if err != nil || job == nil {
			t.Fatalf("dequeue: %v", err)
		}
		if err := q.Complete(ctx, job, time.Hour); err != nil {
			t.Fatalf("complete: %v", err)
		}
		queues = append(queues, q)
	}

	p := NewPruner(queue.Retention{Completed: time.Hour, Failed: 24 * time.Hour}, queues...)

	if n := p.Prune(ctx); n != 0 {
		t.Errorf("expected nothing pruned yet, got %d", n)
	}

	now = now.Add(2 * time.Hour)
	if n := p.Prune(ctx); n != 2 {
		t.Errorf("expected 2 pruned, got %d", n)
	}
}

func TestPruner_StartDisabled(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewPruner(queue.Retention{}).Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately when retention is disabled")
	}
}
