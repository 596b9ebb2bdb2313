package provider

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// consecutive failures that open the circuit
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

// BaseProvider implements common provider functionality.
// It handles health tracking and a consecutive-failure circuit breaker.
type BaseProvider struct {
	name string

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	streak       int
	threshold    int
	cooldown     time.Duration
	now          func() time.Time
}

// NewBaseProvider creates a new BaseProvider.
func NewBaseProvider(name string) *BaseProvider {
	return &BaseProvider{
		name: name,
		health: HealthStatus{
			Name:      name,
			Available: true,
		},
		threshold: defaultFailureThreshold,
		cooldown:  defaultCooldown,
		now:       time.Now,
	}
}

// Name returns the provider's name.
func (p *BaseProvider) Name() string {
	return p.name
}

// Health returns the provider's health status.
func (p *BaseProvider) Health() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h := p.health
	h.Available = p.closedLocked()
	return h
}

// IsAvailable reports whether the circuit is closed or its cooldown has passed.
func (p *BaseProvider) IsAvailable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closedLocked()
}

func (p *BaseProvider) closedLocked() bool {
	return p.health.OpenUntil.IsZero() || !p.now().Before(p.health.OpenUntil)
}

func (p *BaseProvider) RecordSuccess(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.health.Requests++
	p.totalLatency += latency
	p.health.LastSuccessAt = p.now()
	p.streak = 0
	p.health.OpenUntil = time.Time{}

	p.health.ErrorRate = float64(p.failureCount) / float64(p.health.Requests)
	p.health.Latency = p.totalLatency / time.Duration(p.successCount)
}

func (p *BaseProvider) RecordFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.health.Requests++
	p.health.Failures = p.failureCount
	p.health.LastFailureAt = p.now()
	p.health.ErrorRate = float64(p.failureCount) / float64(p.health.Requests)
	if IsQuotaError(err) {
		p.health.QuotaHits++
	}

	p.streak++
	if p.streak >= p.threshold {
		p.health.OpenUntil = p.now().Add(p.cooldown)
		p.streak = 0
	}
}

// IsQuotaError reports whether err means the provider's quota is exhausted.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"quota",
		"resource_exhausted",
		"rate limit",
		"too many requests",
		"insufficient_quota",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
