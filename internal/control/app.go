package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/interviewer/internal/core/config"
	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/core/worker"
	"github.com/vietddude/interviewer/internal/infra/ai/cache"
	"github.com/vietddude/interviewer/internal/infra/ai/provider"
	"github.com/vietddude/interviewer/internal/infra/ai/ratelimit"
	"github.com/vietddude/interviewer/internal/infra/ai/routing"
	"github.com/vietddude/interviewer/internal/infra/judge"
	"github.com/vietddude/interviewer/internal/infra/kv"
	"github.com/vietddude/interviewer/internal/infra/queue"
	redisclient "github.com/vietddude/interviewer/internal/infra/redis"
	"github.com/vietddude/interviewer/internal/infra/storage"
	"github.com/vietddude/interviewer/internal/infra/storage/memory"
	"github.com/vietddude/interviewer/internal/infra/storage/postgres"
	"github.com/vietddude/interviewer/internal/pipeline/evaluation"
	"github.com/vietddude/interviewer/internal/pipeline/health"
	"github.com/vietddude/interviewer/internal/pipeline/orchestrator"
	"github.com/vietddude/interviewer/internal/pipeline/round"
)

// Options selects which parts of the application run in this process.
type Options struct {
	// Workers enables the queue worker pools. API-only processes leave it
	// off and only enqueue.
	Workers bool
	// Migrate applies pending database migrations on startup.
	Migrate bool
}

// App owns every long-lived component of the pipeline.
type App struct {
	store        kv.Store
	db           *postgres.DB
	router       *routing.Router
	registry     *queue.Registry
	rounds       *round.Service
	orchestrator *orchestrator.Orchestrator
	retrigger    *evaluation.Retriggerer
	pools        []*queue.Pool
	pruner       *worker.Pruner
	healthMon    *health.Monitor
	healthServer *health.Server
	grpcServer   *health.GRPCServer
	log          *slog.Logger

	// cancel stops the background tasks; done closes once they returned.
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an App with all dependencies initialized.
func New(ctx context.Context, cfg *config.AppConfig, opts Options) (*App, error) {
	a := &App{log: slog.Default().With("component", "app")}

	// 1. Key-value store
	store, err := newStore(cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.store = store

	// 2. Storage
	var interviews storage.InterviewRepository
	var roundRepo storage.RoundRepository
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if opts.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				_ = store.Close()
				return nil, fmt.Errorf("failed to migrate db: %w", err)
			}
		}
		a.db = db
		interviews = postgres.NewInterviewRepo(db)
		roundRepo = postgres.NewRoundRepo(db)
		a.log.Info("Using PostgreSQL storage")
	} else {
		mem := memory.NewMemoryStorage()
		interviews = memory.NewInterviewRepo(mem)
		roundRepo = memory.NewRoundRepo(mem)
		a.log.Info("Using Memory storage")
	}

	// 3. Provider chain
	limiter := ratelimit.New(store, nil)
	var providers []provider.Provider
	for _, pc := range cfg.Providers.List() {
		p, err := provider.New(pc)
		if err != nil {
			a.closeBackends()
			return nil, fmt.Errorf("failed to create provider %s: %w", pc.Name, err)
		}
		if pc.MaxRequests > 0 && pc.Window > 0 {
			limiter.SetRule(p.Name(), ratelimit.Rule{MaxRequests: pc.MaxRequests, Window: pc.Window})
		}
		providers = append(providers, p)
		a.log.Info("Provider configured", "provider", p.Name(), "kind", pc.Kind, "model", pc.Model)
	}
	if len(providers) == 0 {
		a.log.Warn("No model providers configured, serving static questions and pending evaluations")
	}
	a.router = routing.NewRouter(limiter, cache.New(store, cfg.Cache), cfg.Providers.CallTimeout, providers...)

	// 4. Queues
	queues := make([]*queue.Queue, 0, len(domain.JobKinds))
	for _, kind := range domain.JobKinds {
		queues = append(queues, queue.New(string(kind), store, cfg.Queues[string(kind)].Queue()))
	}
	a.registry = queue.NewRegistry(queues...)

	// 5. Pipeline
	a.rounds = round.NewService(roundRepo, a.router, a.registry, cfg.Rounds)
	a.orchestrator = orchestrator.New(interviews, a.rounds)
	a.retrigger = evaluation.NewRetriggerer(roundRepo, a.registry)

	if opts.Workers {
		dispatcher := evaluation.NewDispatcher(a.rounds, a.router, judge.NewClient(cfg.Judge), a.orchestrator)
		for _, q := range queues {
			a.pools = append(a.pools, queue.NewPool(q, dispatcher, limiter, cfg.Queues[q.Name()].Pool(), cfg.Retention))
		}
		a.pruner = worker.NewPruner(cfg.Retention, queues...)
	}

	// 6. Health
	components := map[string]health.Pinger{"store": store}
	if a.db != nil {
		components["database"] = health.PingFunc(a.db.Health)
	}
	a.healthMon = health.NewMonitor(components, a.router, a.registry)
	if sup, ok := store.(*kv.Supervisor); ok {
		a.healthMon.SetBackendName(sup.Active)
	}
	a.healthServer = health.NewServer(a.healthMon, cfg.Server.Port, a.registry, a.router, a.retrigger)
	if cfg.Admin.GRPCPort > 0 {
		a.grpcServer = health.NewGRPCServer(cfg.Admin.GRPCPort)
		a.healthMon.OnStatus(a.grpcServer.Update)
	}

	return a, nil
}

// newStore connects the configured Redis endpoints behind a supervisor, or
// falls back to an in-process store when none is configured.
func newStore(cfg config.RedisConfig) (kv.Store, error) {
	if cfg.Primary.URL == "" {
		slog.Info("Using in-memory key-value store")
		return kv.NewMemoryStore(), nil
	}

	primary, err := redisclient.NewClient("primary", cfg.Primary)
	if err != nil {
		return nil, err
	}

	var secondary kv.Store
	if cfg.Secondary.URL != "" {
		client, err := redisclient.NewClient("secondary", cfg.Secondary)
		if err != nil {
			slog.Warn("Secondary store unavailable, running without failover", "error", err)
		} else {
			secondary = client
		}
	}
	slog.Info("Using Redis key-value store", "failover", secondary != nil)
	return kv.NewSupervisor(primary, secondary), nil
}

// Orchestrator returns the interview lifecycle entry point.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orchestrator
}

// Rounds returns the round state machines.
func (a *App) Rounds() *round.Service {
	return a.rounds
}

// Registry returns the work queues.
func (a *App) Registry() *queue.Registry {
	return a.registry
}

// Retriggerer returns the recovery scan for unevaluated items.
func (a *App) Retriggerer() *evaluation.Retriggerer {
	return a.retrigger
}

// Start starts the servers and background workers. It returns immediately;
// everything stops when ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	// Start Health Server
	go func() {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.grpcServer != nil {
		go func() {
			if err := a.grpcServer.Start(); err != nil {
				a.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Background tasks share one group so Stop can wait for in-flight jobs
	// to finish their bookkeeping before the store is closed.
	ctx, a.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.healthMon.Start(gctx)
		return nil
	})

	// Start DB Metrics Collector
	if a.db != nil {
		a.db.StartMetricsCollector(gctx)
	}

	for _, p := range a.pools {
		g.Go(func() error {
			return p.Run(gctx)
		})
	}

	if a.pruner != nil {
		g.Go(func() error {
			a.pruner.Start(gctx)
			return nil
		})
	}

	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		if err := g.Wait(); err != nil {
			a.log.Error("Background task failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts down the servers, waits for the workers to drain, then closes
// backends.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping interviewer...")

	if a.grpcServer != nil {
		a.grpcServer.Stop()
	}
	err := a.healthServer.Stop(ctx)

	if a.cancel != nil {
		a.cancel()
		select {
		case <-a.done:
		case <-ctx.Done():
			a.log.Warn("Timed out waiting for workers, closing backends anyway")
		}
	}

	a.closeBackends()
	return err
}

func (a *App) closeBackends() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close store", "error", err)
	}
}
