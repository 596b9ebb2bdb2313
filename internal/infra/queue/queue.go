// Package queue is a durable job queue on top of kv.Store sorted sets.
//
// Each queue owns four sets: waiting (score = run-at ms plus priority),
// active (score = lease deadline ms), completed and failed (score = finish
// time ms). Job records live at queue:job:<id>. A worker claims a job by
// removing it from the waiting set; only the worker whose ZRem returned 1
// owns it.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/kv"
	"github.com/vietddude/interviewer/internal/pipeline/metrics"
)

const (
	defaultAttempts = 3
	defaultLease    = 10 * time.Minute
	claimBatch      = 10
)

// Config controls retries and leases of one queue.
type Config struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
	// MaxBackoff caps the exponential delay.
	MaxBackoff time.Duration `yaml:"max_backoff"`
	// Lease is how long an active job may run before it counts as stalled.
	Lease time.Duration `yaml:"lease"`
}

// EnqueueOptions tune a single job.
type EnqueueOptions struct {
	Delay    time.Duration
	Priority int
	Attempts int
}

// Counts is a snapshot of the queue sets.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Queue is one logical queue.
type Queue struct {
	name    string
	store   kv.Store
	cfg     Config
	backoff Backoff
	now     func() time.Time
	log     *slog.Logger
}

// New creates a queue. Zero config values take defaults.
func New(name string, store kv.Store, cfg Config) *Queue {
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaultLease
	}
	backoff := DefaultBackoff()
	if cfg.Backoff > 0 {
		backoff.Initial = cfg.Backoff
	}
	if cfg.MaxBackoff > 0 {
		backoff.Max = cfg.MaxBackoff
	}
	return &Queue{
		name:    name,
		store:   store,
		cfg:     cfg,
		backoff: backoff,
		now:     time.Now,
		log:     slog.Default().With("component", "queue", "queue", name),
	}
}

// SetClock overrides the queue clock.
func (q *Queue) SetClock(now func() time.Time) {
	q.now = now
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

func (q *Queue) key(set string) string {
	return "queue:" + q.name + ":" + set
}

func jobKey(id string) string {
	return "queue:job:" + id
}

func ms(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Enqueue stores a new job for payload and makes it visible to workers
// once its delay has passed.
func (q *Queue) Enqueue(ctx context.Context, payload domain.Payload, opts EnqueueOptions) (*domain.Job, error) {
	if !payload.Kind().Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownJobKind, payload.Kind())
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = q.cfg.Attempts
	}
	now := q.now()
	job := &domain.Job{
		ID:          uuid.NewString(),
		Queue:       q.name,
		Kind:        payload.Kind(),
		Payload:     raw,
		Status:      domain.JobWaiting,
		MaxAttempts: attempts,
		Priority:    opts.Priority,
		Backoff:     q.backoff.Initial,
		CreatedAt:   now,
		RunAt:       now.Add(opts.Delay),
	}

	if err := q.save(ctx, job, 0); err != nil {
		return nil, err
	}
	if err := q.store.ZAdd(ctx, q.key("waiting"), q.waitingMember(job)); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", job.ID, err)
	}
	q.log.Debug("Job enqueued", "job", job.ID, "kind", job.Kind, "run_at", job.RunAt)
	return job, nil
}

func (q *Queue) waitingMember(job *domain.Job) kv.ZMember {
	return kv.ZMember{Member: job.ID, Score: ms(job.RunAt) + float64(job.Priority)}
}

func (q *Queue) save(ctx context.Context, job *domain.Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.store.Set(ctx, jobKey(job.ID), data, ttl); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads a job record.
func (q *Queue) Get(ctx context.Context, id string) (*domain.Job, error) {
	data, err := q.store.Get(ctx, jobKey(id))
	if err != nil {
		return nil, err
	}
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Dequeue claims the next due job, nil when none is due. The claimed job
// counts one attempt and holds a lease until Complete, Retry, Fail or
// Release.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Job, error) {
	now := q.now()
	due, err := q.store.ZRangeByScore(ctx, q.key("waiting"), kv.MinScore, ms(now), claimBatch)
	if err != nil {
		return nil, fmt.Errorf("list waiting: %w", err)
	}

	for _, m := range due {
		removed, err := q.store.ZRem(ctx, q.key("waiting"), m.Member)
		if err != nil {
			return nil, fmt.Errorf("claim %s: %w", m.Member, err)
		}
		if removed == 0 {
			continue // another worker won
		}

		job, err := q.Get(ctx, m.Member)
		if errors.Is(err, kv.ErrNil) {
			q.log.Warn("Dropping waiting entry without job record", "job", m.Member)
			continue
		}
		if err != nil {
			return nil, err
		}

		job.Status = domain.JobActive
		job.Attempts++
		if err := q.save(ctx, job, 0); err != nil {
			return nil, err
		}
		if err := q.store.ZAdd(ctx, q.key("active"), kv.ZMember{
			Member: job.ID,
			Score:  ms(now.Add(q.cfg.Lease)),
		}); err != nil {
			return nil, fmt.Errorf("lease %s: %w", job.ID, err)
		}
		return job, nil
	}
	return nil, nil
}

// Complete records success.
func (q *Queue) Complete(ctx context.Context, job *domain.Job, retention time.Duration) error {
	return q.finish(ctx, job, domain.JobCompleted, "completed", "", retention)
}

// Fail records a terminal failure.
func (q *Queue) Fail(ctx context.Context, job *domain.Job, cause error, retention time.Duration) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return q.finish(ctx, job, domain.JobFailed, "failed", msg, retention)
}

func (q *Queue) finish(
	ctx context.Context,
	job *domain.Job,
	status domain.JobStatus,
	set, lastError string,
	retention time.Duration,
) error {
	now := q.now()
	job.Status = status
	job.FinishedAt = &now
	if lastError != "" {
		job.LastError = lastError
	}

	if _, err := q.store.ZRem(ctx, q.key("active"), job.ID); err != nil {
		return fmt.Errorf("release lease %s: %w", job.ID, err)
	}
	// The record outlives its set entry slightly so the pruner owns deletion.
	ttl := time.Duration(0)
	if retention > 0 {
		ttl = retention + time.Hour
	}
	if err := q.save(ctx, job, ttl); err != nil {
		return err
	}
	if err := q.store.ZAdd(ctx, q.key(set), kv.ZMember{Member: job.ID, Score: ms(now)}); err != nil {
		return fmt.Errorf("record %s %s: %w", set, job.ID, err)
	}
	return nil
}

// Retry schedules another attempt after the backoff delay.
func (q *Queue) Retry(ctx context.Context, job *domain.Job, cause error) error {
	if cause != nil {
		job.LastError = cause.Error()
	}
	return q.requeue(ctx, job, q.backoff.Delay(job.Attempts))
}

// Release returns a claimed job without counting the attempt, for work
// that was never started.
func (q *Queue) Release(ctx context.Context, job *domain.Job, delay time.Duration) error {
	if job.Attempts > 0 {
		job.Attempts--
	}
	return q.requeue(ctx, job, delay)
}

func (q *Queue) requeue(ctx context.Context, job *domain.Job, delay time.Duration) error {
	job.Status = domain.JobWaiting
	job.RunAt = q.now().Add(delay)

	if _, err := q.store.ZRem(ctx, q.key("active"), job.ID); err != nil {
		return fmt.Errorf("release lease %s: %w", job.ID, err)
	}
	if err := q.save(ctx, job, 0); err != nil {
		return err
	}
	if err := q.store.ZAdd(ctx, q.key("waiting"), q.waitingMember(job)); err != nil {
		return fmt.Errorf("requeue %s: %w", job.ID, err)
	}
	return nil
}

// RecoverStalled returns active jobs whose lease expired to the waiting
// set, or fails them when they have no attempts left.
func (q *Queue) RecoverStalled(ctx context.Context, failedRetention time.Duration) (int, error) {
	stalled, err := q.store.ZRangeByScore(ctx, q.key("active"), kv.MinScore, ms(q.now()), 0)
	if err != nil {
		return 0, fmt.Errorf("list active: %w", err)
	}

	recovered := 0
	for _, m := range stalled {
		job, err := q.Get(ctx, m.Member)
		if errors.Is(err, kv.ErrNil) {
			_, _ = q.store.ZRem(ctx, q.key("active"), m.Member)
			continue
		}
		if err != nil {
			return recovered, err
		}

		const cause = "lease expired"
		if job.Attempts >= job.MaxAttempts {
			q.log.Warn("Stalled job out of attempts", "job", job.ID, "attempts", job.Attempts)
			if err := q.Fail(ctx, job, errors.New(cause), failedRetention); err != nil {
				return recovered, err
			}
			continue
		}
		job.LastError = cause
		if err := q.requeue(ctx, job, 0); err != nil {
			return recovered, err
		}
		q.log.Warn("Recovered stalled job", "job", job.ID, "attempts", job.Attempts)
		recovered++
	}
	return recovered, nil
}

// Counts returns the size of each set and updates the depth gauges.
func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, s := range []struct {
		name string
		dst  *int64
	}{
		{"waiting", &c.Waiting},
		{"active", &c.Active},
		{"completed", &c.Completed},
		{"failed", &c.Failed},
	} {
		n, err := q.store.ZCard(ctx, q.key(s.name))
		if err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", s.name, err)
		}
		*s.dst = n
		metrics.QueueDepth.WithLabelValues(q.name, s.name).Set(float64(n))
	}
	return c, nil
}

// Failed returns up to limit most recent failed jobs.
func (q *Queue) Failed(ctx context.Context, limit int64) ([]*domain.Job, error) {
	members, err := q.store.ZRangeByScore(ctx, q.key("failed"), kv.MinScore, kv.MaxScore, 0)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	var jobs []*domain.Job
	for i := len(members) - 1; i >= 0; i-- {
		if limit > 0 && int64(len(jobs)) >= limit {
			break
		}
		job, err := q.Get(ctx, members[i].Member)
		if errors.Is(err, kv.ErrNil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Prune deletes completed jobs older than completed and failed jobs
// older than failed. It returns the number of removed jobs.
func (q *Queue) Prune(ctx context.Context, completed, failed time.Duration) (int, error) {
	total := 0
	for _, p := range []struct {
		set       string
		retention time.Duration
	}{
		{"completed", completed},
		{"failed", failed},
	} {
		if p.retention <= 0 {
			continue
		}
		cutoff := ms(q.now().Add(-p.retention))
		old, err := q.store.ZRangeByScore(ctx, q.key(p.set), kv.MinScore, cutoff, 0)
		if err != nil {
			return total, fmt.Errorf("list %s: %w", p.set, err)
		}
		if len(old) == 0 {
			continue
		}

		keys := make([]string, len(old))
		for i, m := range old {
			keys[i] = jobKey(m.Member)
		}
		if err := q.store.Del(ctx, keys...); err != nil {
			return total, fmt.Errorf("delete %s records: %w", p.set, err)
		}
		n, err := q.store.ZRemRangeByScore(ctx, q.key(p.set), kv.MinScore, cutoff)
		if err != nil {
			return total, fmt.Errorf("trim %s: %w", p.set, err)
		}
		total += int(n)
	}
	return total, nil
}
