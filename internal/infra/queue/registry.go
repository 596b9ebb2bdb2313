package queue

import (
	"context"
	"fmt"

	"github.com/vietddude/interviewer/internal/core/domain"
)

// Registry routes payloads to the queue of their job kind. Queues are
// named after the kind they carry.
type Registry struct {
	queues map[domain.JobKind]*Queue
}

// NewRegistry indexes queues by name.
func NewRegistry(queues ...*Queue) *Registry {
	r := &Registry{queues: make(map[domain.JobKind]*Queue, len(queues))}
	for _, q := range queues {
		r.queues[domain.JobKind(q.Name())] = q
	}
	return r
}

// Queue returns the queue for kind, nil if none is registered.
func (r *Registry) Queue(kind domain.JobKind) *Queue {
	return r.queues[kind]
}

// Queues returns the registered queues in job kind order.
func (r *Registry) Queues() []*Queue {
	out := make([]*Queue, 0, len(r.queues))
	for _, kind := range domain.JobKinds {
		if q, ok := r.queues[kind]; ok {
			out = append(out, q)
		}
	}
	return out
}

// Enqueue adds payload to the queue of its kind.
func (r *Registry) Enqueue(ctx context.Context, payload domain.Payload, opts EnqueueOptions) (*domain.Job, error) {
	q, ok := r.queues[payload.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: no queue for %q", domain.ErrUnknownJobKind, payload.Kind())
	}
	return q.Enqueue(ctx, payload, opts)
}
