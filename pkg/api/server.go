package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/taskgate/taskgate/pkg/config"
	"github.com/taskgate/taskgate/pkg/log"
	"github.com/taskgate/taskgate/pkg/metrics"
	"github.com/taskgate/taskgate/pkg/types"
)

// TaskService is the lifecycle surface the handlers need
type TaskService interface {
	Create(ctx context.Context, service, userID string, parameters map[string]any) (*types.TaskRecord, error)
	Get(ctx context.Context, taskID, service, userID string) (*types.TaskRecord, error)
	Cancel(ctx context.Context, taskID, service, userID string) (*types.TaskRecord, error)
	Cleanup(ctx context.Context, taskID, service, userID string) (*types.TaskRecord, error)
	ListAll(ctx context.Context) ([]*types.TaskRecord, error)
	ListByService(ctx context.Context, service string) ([]*types.TaskRecord, error)
	ListByServiceAndUser(ctx context.Context, service, userID string) ([]*types.TaskRecord, error)
	ListUsers(ctx context.Context, service string) ([]string, error)
}

// StorePinger verifies store connectivity for the health endpoint
type StorePinger interface {
	Ping(ctx context.Context) error
}

// Server is the inbound HTTP API. Task routes live under the
// configured prefix and require the operator token; the meta endpoints
// (healthz, help, metrics) are unprefixed and unauthenticated.
type Server struct {
	tasks  TaskService
	store  StorePinger
	router *mux.Router
	server *http.Server
}

// NewServer creates the API server and wires up all routes
func NewServer(cfg *config.Config, tasks TaskService, store StorePinger) *Server {
	s := &Server{
		tasks:  tasks,
		store:  store,
		router: mux.NewRouter(),
	}

	s.router.Use(requestIDMiddleware, observeMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/help", s.handleHelp).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := s.router.PathPrefix(cfg.APIPrefix).Subrouter()
	v1.Use(authMiddleware(cfg.OperatorToken))

	v1.HandleFunc("/services/{service}/users", s.handleListUsers).Methods(http.MethodGet)
	v1.HandleFunc("/services/{service}/users/{user_id}/tasks", s.handleListUserTasks).Methods(http.MethodGet)
	v1.HandleFunc("/services/{service}/users/{user_id}/tasks", s.handleCreateTask).Methods(http.MethodPost)
	v1.HandleFunc("/services/{service}/tasks/{task_id}", s.handleGetTask).Methods(http.MethodGet)
	v1.HandleFunc("/services/{service}/tasks/{task_id}/cancel", s.handleCancelTask).Methods(http.MethodPost)
	v1.HandleFunc("/services/{service}/tasks/{task_id}", s.handleDeleteTask).Methods(http.MethodDelete)

	v1.HandleFunc("/admin/tasks", s.handleAdminListTasks).Methods(http.MethodGet)
	v1.HandleFunc("/admin/services/{service}/tasks", s.handleAdminListServiceTasks).Methods(http.MethodGet)
	v1.HandleFunc("/admin/tasks/{task_id}/cancel", s.handleAdminCancelTask).Methods(http.MethodPost)
	v1.HandleFunc("/admin/tasks/{task_id}", s.handleAdminDeleteTask).Methods(http.MethodDelete)

	s.server = &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener closes. It returns nil after a
// graceful Shutdown.
func (s *Server) Start() error {
	log.WithComponent("api").Info().
		Str("addr", s.server.Addr).
		Msg("Starting HTTP API")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	log.WithComponent("api").Info().Msg("Shutting down HTTP API")
	return s.server.Shutdown(ctx)
}
