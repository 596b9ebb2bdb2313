package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/ai/ratelimit"
	"github.com/vietddude/interviewer/internal/pipeline/metrics"
)

// Handler processes one job. Returning an error retries the job unless the
// error is terminal (see IsTerminal) or the attempts are used up.
type Handler interface {
	Handle(ctx context.Context, job *domain.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *domain.Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *domain.Job) error { return f(ctx, job) }

// Retention is how long finished job records are kept.
type Retention struct {
	Completed time.Duration `yaml:"completed"`
	Failed    time.Duration `yaml:"failed"`
}

// DefaultRetention keeps completed jobs for a day and failed ones for a week.
func DefaultRetention() Retention {
	return Retention{Completed: 24 * time.Hour, Failed: 7 * 24 * time.Hour}
}

// PoolConfig sizes a worker pool.
type PoolConfig struct {
	Concurrency int `yaml:"concurrency"`
	// MaxJobs per Window caps throughput across every process sharing the store.
	MaxJobs      int           `yaml:"max_jobs"`
	Window       time.Duration `yaml:"window"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// RecoverInterval is how often expired leases are checked.
	RecoverInterval time.Duration `yaml:"recover_interval"`
}

// Pool runs Concurrency workers against one queue.
type Pool struct {
	queue     *Queue
	handler   Handler
	limiter   *ratelimit.Limiter
	cfg       PoolConfig
	retention Retention
	log       *slog.Logger
}

// NewPool creates a pool. A nil limiter or zero MaxJobs disables the
// throughput cap.
func NewPool(q *Queue, h Handler, limiter *ratelimit.Limiter, cfg PoolConfig, retention Retention) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.RecoverInterval <= 0 {
		cfg.RecoverInterval = 30 * time.Second
	}
	if limiter != nil && cfg.MaxJobs > 0 && cfg.Window > 0 {
		limiter.SetRule(limiterName(q.Name()), ratelimit.Rule{MaxRequests: cfg.MaxJobs, Window: cfg.Window})
	} else {
		limiter = nil
	}
	return &Pool{
		queue:     q,
		handler:   h,
		limiter:   limiter,
		cfg:       cfg,
		retention: retention,
		log:       slog.Default().With("component", "pool", "queue", q.Name()),
	}
}

func limiterName(queue string) string {
	return "queue:" + queue
}

// Queue returns the queue the pool drains.
func (p *Pool) Queue() *Queue {
	return p.queue
}

// Run blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("Starting worker pool", "concurrency", p.cfg.Concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for i := range p.cfg.Concurrency {
		g.Go(func() error {
			p.work(ctx, i)
			return nil
		})
	}
	g.Go(func() error {
		p.recoverLoop(ctx)
		return nil
	})
	return g.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := p.ProcessOne(ctx)
		if err != nil {
			p.log.Error("Worker iteration failed", "worker", id, "error", err)
		}
		if processed && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

func (p *Pool) recoverLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.RecoverInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := p.queue.RecoverStalled(ctx, p.retention.Failed); err != nil {
				p.log.Error("Stalled job recovery failed", "error", err)
			} else if n > 0 {
				p.log.Info("Recovered stalled jobs", "count", n)
			}
		}
	}
}

// ProcessOne claims and handles at most one job. It reports whether a job
// was claimed.
func (p *Pool) ProcessOne(ctx context.Context) (bool, error) {
	job, err := p.queue.Dequeue(ctx)
	if err != nil || job == nil {
		return false, err
	}
	// Bookkeeping must land even if the worker is shutting down.
	bg := context.WithoutCancel(ctx)
	name := p.queue.Name()

	if p.limiter != nil {
		if d := p.limiter.Check(ctx, limiterName(name)); !d.Allowed {
			p.log.Debug("Throughput cap reached, delaying job", "job", job.ID, "retry_after", d.RetryAfter)
			metrics.JobsProcessedTotal.WithLabelValues(name, "throttled").Inc()
			return true, p.queue.Release(bg, job, d.RetryAfter)
		}
	}

	start := time.Now()
	herr := p.handle(ctx, job)
	metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case herr == nil:
		metrics.JobsProcessedTotal.WithLabelValues(name, "completed").Inc()
		return true, p.queue.Complete(bg, job, p.retention.Completed)

	case IsTerminal(herr) || job.Attempts >= job.MaxAttempts:
		p.log.Error("Job failed",
			"job", job.ID, "kind", job.Kind, "attempts", job.Attempts, "terminal", IsTerminal(herr), "error", herr)
		metrics.JobsProcessedTotal.WithLabelValues(name, "failed").Inc()
		return true, p.queue.Fail(bg, job, herr, p.retention.Failed)

	default:
		p.log.Warn("Job attempt failed, retrying",
			"job", job.ID, "kind", job.Kind, "attempt", job.Attempts, "max", job.MaxAttempts, "error", herr)
		metrics.JobsProcessedTotal.WithLabelValues(name, "retried").Inc()
		return true, p.queue.Retry(bg, job, herr)
	}
}

func (p *Pool) handle(ctx context.Context, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.handler.Handle(ctx, job)
}
