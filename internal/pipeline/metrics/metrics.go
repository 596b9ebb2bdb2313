package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderCallsTotal tracks generation/evaluation attempts per provider
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_provider_calls_total",
			Help: "Total number of model provider calls",
		},
		[]string{"provider", "operation", "outcome"},
	)

	// ProviderLatency tracks provider call latency
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interviewer_provider_latency_seconds",
			Help:    "Model provider call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"provider", "operation"},
	)

	// FallbackServedTotal tracks which tier ultimately served a request
	FallbackServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_fallback_served_total",
			Help: "Requests served per fallback tier",
		},
		[]string{"operation", "source"},
	)

	// RateLimitedTotal tracks requests denied by the sliding window limiter
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_rate_limited_total",
			Help: "Requests denied by the rate limiter",
		},
		[]string{"limiter"},
	)

	// CacheRequestsTotal tracks response cache lookups
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_cache_requests_total",
			Help: "Response cache lookups by result",
		},
		[]string{"operation", "result"},
	)

	// JobsProcessedTotal tracks job outcomes per queue
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_jobs_processed_total",
			Help: "Total number of jobs processed",
		},
		[]string{"queue", "status"},
	)

	// JobDuration tracks handler duration per queue
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interviewer_job_duration_seconds",
			Help:    "Job handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	// QueueDepth tracks jobs per queue and state
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "interviewer_queue_depth",
			Help: "Number of jobs per queue and state",
		},
		[]string{"queue", "state"},
	)

	// JudgeSubmissionsTotal tracks code execution verdicts
	JudgeSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_judge_submissions_total",
			Help: "Test case executions by verdict",
		},
		[]string{"language", "verdict"},
	)

	// RoundsCompletedTotal tracks completed rounds per type
	RoundsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_rounds_completed_total",
			Help: "Total number of completed rounds",
		},
		[]string{"type"},
	)

	// InterviewReportsTotal tracks generated reports per hiring decision
	InterviewReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_interview_reports_total",
			Help: "Total number of interview reports generated",
		},
		[]string{"decision"},
	)

	// VersionConflictsTotal tracks optimistic concurrency retries
	VersionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_version_conflicts_total",
			Help: "Conditional writes retried after a version conflict",
		},
		[]string{"entity"},
	)

	// StoreFailovers tracks primary to secondary store swaps
	StoreFailovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interviewer_store_failovers_total",
			Help: "Key-value store failovers to the secondary backend",
		},
	)

	// StoreActiveBackend is 1 for the backend currently serving requests
	StoreActiveBackend = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "interviewer_store_active_backend",
			Help: "Active key-value store backend",
		},
		[]string{"backend"},
	)

	// DBConnectionPoolUsage tracks the database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "interviewer_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
