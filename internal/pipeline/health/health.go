// Package health provides system health monitoring and the admin surface.
package health

import (
	"github.com/vietddude/interviewer/internal/infra/ai/provider"
	"github.com/vietddude/interviewer/internal/infra/queue"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// worse returns the more severe of two statuses.
func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// ComponentHealth is the state of one dependency.
type ComponentHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// QueueHealth contains the counts of one work queue.
type QueueHealth struct {
	Status SystemStatus `json:"status"`
	queue.Counts
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	StoreBackend string                     `json:"store_backend,omitempty"`
	Components   map[string]ComponentHealth `json:"components"`
	Queues       map[string]QueueHealth     `json:"queues"`
	Providers    []provider.HealthStatus    `json:"providers"`
}
