package stub

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/taskgate/taskgate/pkg/log"
)

// Server is the local stand-in for the external scheduler. It accepts
// every well-formed submission, records it, and answers the same
// shapes the real scheduler does.
type Server struct {
	store  *Store
	router *mux.Router
	server *http.Server
}

// NewServer creates a stub scheduler bound to addr, persisting
// submissions at dbPath
func NewServer(addr, dbPath string) (*Server, error) {
	store, err := OpenStore(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:  store,
		router: mux.NewRouter(),
	}

	s.router.HandleFunc("/task", s.handleSubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodPost)
	s.router.HandleFunc("/tasks", s.handleList).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener closes
func (s *Server) Start() error {
	log.WithComponent("stub").Info().
		Str("addr", s.server.Addr).
		Msg("Starting stub scheduler")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the store
func (s *Server) Shutdown(ctx context.Context) error {
	log.WithComponent("stub").Info().Msg("Shutting down stub scheduler")
	err := s.server.Shutdown(ctx)
	if closeErr := s.store.Close(); err == nil {
		err = closeErr
	}
	return err
}

type submitRequest struct {
	TaskID     string         `json:"task_id"`
	Service    string         `json:"service"`
	UserID     string         `json:"user_id"`
	Parameters map[string]any `json:"parameters"`
}

type cancelRequest struct {
	TaskID  string `json:"task_id"`
	Service string `json:"service"`
	UserID  string `json:"user_id"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "task_id is required"})
		return
	}

	sub := &Submission{
		TaskID:     req.TaskID,
		Service:    req.Service,
		UserID:     req.UserID,
		Parameters: req.Parameters,
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.store.Save(sub); err != nil {
		log.WithComponent("stub").Error().Err(err).Msg("Failed to record submission")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "storage failure"})
		return
	}

	log.WithComponent("stub").Info().
		Str("task_id", req.TaskID).
		Str("service", req.Service).
		Str("user_id", req.UserID).
		Msg("Accepted task submission")
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted", "task_id": req.TaskID})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "task_id is required"})
		return
	}

	known, err := s.store.MarkCancelled(req.TaskID)
	if err != nil {
		log.WithComponent("stub").Error().Err(err).Msg("Failed to record cancellation")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "storage failure"})
		return
	}
	if !known {
		// The real scheduler tolerates cancels for tasks it never saw
		log.WithComponent("stub").Warn().
			Str("task_id", req.TaskID).
			Msg("Cancellation for unknown task")
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "task_id": req.TaskID})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "storage failure"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*Submission{"tasks": subs})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
