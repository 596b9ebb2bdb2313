package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/interviewer/internal/infra/queue"
)

// Pruner deletes finished jobs based on the retention policy and refreshes
// the queue depth gauges.
type Pruner struct {
	retention queue.Retention
	queues    []*queue.Queue
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention queue.Retention, queues ...*queue.Queue) *Pruner {
	return &Pruner{
		retention: retention,
		queues:    queues,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	shortest := p.retention.Completed
	if p.retention.Failed > 0 && (shortest <= 0 || p.retention.Failed < shortest) {
		shortest = p.retention.Failed
	}
	if shortest <= 0 {
		return // Retention disabled
	}

	// Check at 10% of the shortest retention, between 1 minute and 1 hour
	interval := min(shortest/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one pass over every queue and returns the removed job count.
func (p *Pruner) Prune(ctx context.Context) int {
	total := 0
	for _, q := range p.queues {
		n, err := q.Prune(ctx, p.retention.Completed, p.retention.Failed)
		if err != nil {
			slog.Error("[Pruner] failed to prune jobs", "queue", q.Name(), "error", err)
			continue
		}
		if n > 0 {
			slog.Info("[Pruner] pruned finished jobs", "queue", q.Name(), "count", n)
		}
		total += n

		if _, err := q.Counts(ctx); err != nil {
			slog.Warn("[Pruner] failed to refresh queue depth", "queue", q.Name(), "error", err)
		}
	}
	return total
}
