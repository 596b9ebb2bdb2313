package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/interviewer/internal/infra/ai/provider"
	"github.com/vietddude/interviewer/internal/infra/queue"
)

const (
	checkInterval = 10 * time.Second

	degradedWaiting = 1000
	degradedFailed  = 50
)

// Pinger is a dependency that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// ProviderSource lists the model providers.
type ProviderSource interface {
	Providers() []provider.Provider
}

// QueueSource lists the work queues.
type QueueSource interface {
	Queues() []*queue.Queue
}

// Monitor aggregates health status from the store, database, providers and
// queues. Checks are cached for checkInterval.
type Monitor struct {
	components map[string]Pinger
	providers  ProviderSource
	queues     QueueSource
	backend    func() string
	listeners  []func(SystemStatus)
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.RWMutex
}

// NewMonitor creates a new health monitor. components maps a name such as
// "store" or "database" to its probe; a failing probe is critical.
func NewMonitor(components map[string]Pinger, providers ProviderSource, queues QueueSource) *Monitor {
	return &Monitor{
		components: components,
		providers:  providers,
		queues:     queues,
	}
}

// SetBackendName reports the active key-value backend in health reports.
func (m *Monitor) SetBackendName(fn func() string) {
	m.backend = fn
}

// OnStatus registers fn to receive the system status after every check.
func (m *Monitor) OnStatus(fn func(SystemStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Start runs periodic checks until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		m.refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CheckHealth returns the latest report, re-checking if it is stale.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.RLock()
	if time.Since(m.lastCheck) < checkInterval && m.lastReport.Components != nil {
		report := m.lastReport
		m.mu.RUnlock()
		return report
	}
	m.mu.RUnlock()
	return m.refresh(ctx)
}

func (m *Monitor) refresh(ctx context.Context) HealthReport {
	report := m.check(ctx)

	m.mu.Lock()
	m.lastCheck = time.Now()
	m.lastReport = report
	listeners := append(([]func(SystemStatus))(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(report.SystemStatus)
	}
	return report
}

func (m *Monitor) check(ctx context.Context) HealthReport {
	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.components)),
		Queues:       make(map[string]QueueHealth),
	}
	if m.backend != nil {
		report.StoreBackend = m.backend()
	}

	for name, p := range m.components {
		c := ComponentHealth{Status: StatusHealthy}
		if err := p.Ping(ctx); err != nil {
			c.Status = StatusCritical
			c.Error = err.Error()
			slog.Warn("Health probe failed", "component", name, "error", err)
		}
		report.Components[name] = c
		report.SystemStatus = worse(report.SystemStatus, c.Status)
	}

	// Providers failing only degrades the system: the static bank and
	// pending markers keep rounds moving.
	if m.providers != nil {
		available := 0
		for _, p := range m.providers.Providers() {
			h := p.Health()
			report.Providers = append(report.Providers, h)
			if h.Available {
				available++
			}
		}
		if len(report.Providers) > 0 && available == 0 {
			report.SystemStatus = worse(report.SystemStatus, StatusDegraded)
		}
	}

	if m.queues != nil {
		for _, q := range m.queues.Queues() {
			counts, err := q.Counts(ctx)
			qh := QueueHealth{Status: StatusHealthy, Counts: counts}
			switch {
			case err != nil:
				qh.Status = StatusDegraded
			case counts.Waiting > degradedWaiting || counts.Failed > degradedFailed:
				qh.Status = StatusDegraded
			}
			report.Queues[q.Name()] = qh
			report.SystemStatus = worse(report.SystemStatus, qh.Status)
		}
	}
	return report
}
