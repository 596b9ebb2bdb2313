package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/ai/cache"
	"github.com/vietddude/interviewer/internal/infra/ai/provider"
	"github.com/vietddude/interviewer/internal/infra/kv"
	"github.com/vietddude/interviewer/internal/infra/queue"
)

// =============================================================================
// Mocks
// =============================================================================

type stubProvider struct {
	*provider.BaseProvider
}

func (s *stubProvider) Complete(ctx context.Context, p provider.Prompt) (string, error) {
	return "", nil
}

type stubProviders struct {
	list []provider.Provider
}

func (s *stubProviders) Providers() []provider.Provider { return s.list }

type stubQueues struct {
	list []*queue.Queue
}

func (s *stubQueues) Queues() []*queue.Queue { return s.list }

type stubCache struct{}

func (stubCache) CacheStats() cache.Stats { return cache.Stats{Hits: 3, Misses: 1, HitRate: 0.75} }

type stubRetrigger struct {
	limit int
	n     int
	err   error
}

func (s *stubRetrigger) Retrigger(ctx context.Context, limit int) (int, error) {
	s.limit = limit
	return s.n, s.err
}

func okPing(ctx context.Context) error { return nil }

func newQueues(t *testing.T) *stubQueues {
	t.Helper()
	store := kv.NewMemoryStore()
	q := queue.New(string(domain.JobAnswerEvaluation), store, queue.Config{})
	if _, err := q.Enqueue(context.Background(), domain.AnswerEvaluationPayload{RoundID: "r", QuestionID: "q"}, queue.EnqueueOptions{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return &stubQueues{list: []*queue.Queue{q}}
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	monitor := NewMonitor(
		map[string]Pinger{"store": PingFunc(okPing)},
		&stubProviders{list: []provider.Provider{&stubProvider{provider.NewBaseProvider("primary")}}},
		newQueues(t),
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if got := report.Queues[string(domain.JobAnswerEvaluation)].Waiting; got != 1 {
		t.Errorf("expected 1 waiting job, got %d", got)
	}
	if len(report.Providers) != 1 || !report.Providers[0].Available {
		t.Errorf("expected one available provider, got %+v", report.Providers)
	}
}

func TestMonitor_Degraded(t *testing.T) {
	p := provider.NewBaseProvider("primary")
	for range 5 {
		p.RecordFailure(errors.New("boom"))
	}
	monitor := NewMonitor(
		map[string]Pinger{"store": PingFunc(okPing)},
		&stubProviders{list: []provider.Provider{&stubProvider{p}}},
		nil,
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
}

func TestMonitor_Critical(t *testing.T) {
	monitor := NewMonitor(
		map[string]Pinger{
			"store":    PingFunc(okPing),
			"database": PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
		},
		nil,
		nil,
	)

	var notified SystemStatus
	monitor.OnStatus(func(s SystemStatus) { notified = s })

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if report.Components["database"].Error == "" {
		t.Error("expected database error to be reported")
	}
	if notified != StatusCritical {
		t.Errorf("expected listener to see critical, got %q", notified)
	}
}

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name     string
		ping     PingFunc
		wantCode int
	}{
		{"healthy", okPing, http.StatusOK},
		{"critical", func(ctx context.Context) error { return errors.New("down") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := NewMonitor(map[string]Pinger{"store": tt.ping}, nil, nil)
			srv := NewServer(monitor, 0, nil, nil, nil)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}

func TestServer_AdminEndpoints(t *testing.T) {
	monitor := NewMonitor(map[string]Pinger{"store": PingFunc(okPing)}, nil, nil)
	retrigger := &stubRetrigger{n: 4}
	srv := NewServer(monitor, 0, newQueues(t), stubCache{}, retrigger)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/queues", nil))
	var counts map[string]queue.Counts
	if err := json.NewDecoder(rec.Body).Decode(&counts); err != nil {
		t.Fatalf("decode queues: %v", err)
	}
	if counts[string(domain.JobAnswerEvaluation)].Waiting != 1 {
		t.Errorf("unexpected counts %+v", counts)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/cache", nil))
	if !strings.Contains(rec.Body.String(), `"hits":3`) {
		t.Errorf("unexpected cache body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/retrigger?limit=10", nil))
	if rec.Code != http.StatusOK || retrigger.limit != 10 {
		t.Errorf("retrigger: code %d limit %d", rec.Code, retrigger.limit)
	}
	if !strings.Contains(rec.Body.String(), `"enqueued":4`) {
		t.Errorf("unexpected retrigger body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/retrigger?limit=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/retrigger", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET retrigger, got %d", rec.Code)
	}
}

func TestGRPCServer_Update(t *testing.T) {
	s := NewGRPCServer(0)
	ctx := context.Background()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING before first update, got %s", got)
	}
	s.Update(StatusDegraded)
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING when degraded, got %s", got)
	}
	s.Update(StatusCritical)
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING when critical, got %s", got)
	}
}
