package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/taskgate/taskgate/pkg/api"
	"github.com/taskgate/taskgate/pkg/config"
	"github.com/taskgate/taskgate/pkg/events"
	"github.com/taskgate/taskgate/pkg/log"
	"github.com/taskgate/taskgate/pkg/processor"
	"github.com/taskgate/taskgate/pkg/repository"
	"github.com/taskgate/taskgate/pkg/scheduler"
	"github.com/taskgate/taskgate/pkg/service"
)

const shutdownTimeout = 15 * time.Second

// App is the composition root. It owns every long-lived component and
// is the only place that knows their construction and shutdown order.
type App struct {
	cfg       *config.Config
	provider  *repository.Provider
	repo      *repository.RedisRepository
	queue     *events.Queue
	sched     *scheduler.Client
	proc      *processor.Processor
	listener  *repository.ExpirationListener
	tasks     *service.TaskService
	apiServer *api.Server

	started bool
}

// New builds the full component graph. A failure at any step closes
// everything already constructed; the store being unreachable at
// startup is fatal by design.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	provider, err := repository.NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	repo, err := repository.NewRedisRepository(provider.Writer(), provider.Reader(), cfg.TaskTTL())
	if err != nil {
		provider.Close()
		return nil, err
	}

	sched := scheduler.NewClient(cfg)
	queue := events.NewQueue()

	proc, err := processor.New(queue, repo, sched, cfg.EventWorkerCount)
	if err != nil {
		sched.Close()
		provider.Close()
		return nil, err
	}

	listener := repository.NewExpirationListener(provider.Reader(), repo, provider.DB())
	tasks := service.New(repo, queue)
	apiServer := api.NewServer(cfg, tasks, provider)

	return &App{
		cfg:       cfg,
		provider:  provider,
		repo:      repo,
		queue:     queue,
		sched:     sched,
		proc:      proc,
		listener:  listener,
		tasks:     tasks,
		apiServer: apiServer,
	}, nil
}

// Tasks exposes the task service for embedding callers
func (a *App) Tasks() *service.TaskService {
	return a.tasks
}

// Run starts the processor, the expiration listener, and the HTTP
// server, then blocks until the context is cancelled or the server
// fails. Shutdown is performed before returning.
func (a *App) Run(ctx context.Context) error {
	a.proc.Start()
	a.listener.Start()
	a.started = true

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.apiServer.Start()
	}()

	log.WithComponent("app").Info().
		Str("addr", a.cfg.APIAddr).
		Int("workers", a.cfg.EventWorkerCount).
		Msg("taskgate started")

	var runErr error
	select {
	case <-ctx.Done():
		log.WithComponent("app").Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	if err := a.Close(); err != nil {
		runErr = multierror.Append(runErr, err).ErrorOrNil()
	}
	return runErr
}

// Close stops everything in reverse construction order: HTTP server
// first so no new work arrives, then the processor (draining queued
// events), the listener, and finally the outbound clients. Safe to
// call after a failed Run.
func (a *App) Close() error {
	var result *multierror.Error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http server shutdown: %w", err))
	}

	if a.started {
		a.proc.Stop()
		a.listener.Stop()
		a.started = false
	} else {
		a.queue.Close()
	}

	a.sched.Close()
	if err := a.provider.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("store close: %w", err))
	}

	log.WithComponent("app").Info().Msg("taskgate stopped")
	return result.ErrorOrNil()
}
