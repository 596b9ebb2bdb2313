package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/interviewer/internal/core/config"
	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/queue"
)

func loadTestConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 0\n"), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func poolFor(t *testing.T, a *App, kind domain.JobKind) *queue.Pool {
	t.Helper()
	for _, p := range a.pools {
		if p.Queue().Name() == string(kind) {
			return p
		}
	}
	t.Fatalf("no pool for %s", kind)
	return nil
}

func TestApp_InMemoryWiring(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, loadTestConfig(t), Options{Workers: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(ctx) })

	assert.Len(t, a.pools, len(domain.JobKinds))
	assert.Nil(t, a.grpcServer)

	iv, err := a.Orchestrator().CreateInterview(ctx, "candidate-1", domain.Options{})
	require.NoError(t, err)

	r, err := a.Orchestrator().StartTechnical(ctx, iv.ID)
	require.NoError(t, err)
	require.Len(t, r.Questions, 1)

	snap, err := a.Rounds().Current(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Questions[0].ID, snap.Question.ID)
	assert.Equal(t, domain.SourceBank, r.Questions[0].Source)

	gen := a.Registry().Queue(domain.JobItemGeneration)
	counts, err := gen.Counts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts.Waiting)

	// Priority offsets run time by a few milliseconds.
	time.Sleep(10 * time.Millisecond)
	claimed, err := poolFor(t, a, domain.JobItemGeneration).ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, claimed)

	counts, err = gen.Counts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Waiting)
	assert.EqualValues(t, 1, counts.Completed)
}

func TestApp_HealthEndpoint(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, loadTestConfig(t), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(ctx) })

	assert.Empty(t, a.pools)

	rec := httptest.NewRecorder()
	a.healthServer.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_GracefulShutdown(t *testing.T) {
	a, err := New(context.Background(), loadTestConfig(t), Options{Workers: true})
	require.NoError(t, err)

	// Two prefetch jobs are waiting when the pools start.
	iv, err := a.Orchestrator().CreateInterview(context.Background(), "candidate-1", domain.Options{})
	require.NoError(t, err)
	_, err = a.Orchestrator().StartTechnical(context.Background(), iv.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Start(ctx))

	// Let the pools poll at least once.
	time.Sleep(200 * time.Millisecond)
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	assert.NoError(t, a.Stop(stopCtx))

	select {
	case <-a.done:
	default:
		t.Fatal("Stop returned before the workers did")
	}

	counts, err := a.Registry().Queue(domain.JobItemGeneration).Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.Active, "no job may be left claimed after shutdown")
	assert.EqualValues(t, 2, counts.Waiting+counts.Completed)
}
