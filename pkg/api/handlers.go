package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskgate/taskgate/pkg/log"
	"github.com/taskgate/taskgate/pkg/repository"
	"github.com/taskgate/taskgate/pkg/types"
)

// errorResponse is the body of every non-2xx answer
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithComponent("api").Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeTaskOrError maps a service result to the response. A missing
// task and an ownership mismatch both answer 404.
func writeTaskOrError(w http.ResponseWriter, task *types.TaskRecord, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	case err != nil:
		log.WithComponent("api").Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, map[string]*types.TaskRecord{"task": task})
	}
}

func writeTasksOrError(w http.ResponseWriter, tasks []*types.TaskRecord, err error) {
	if err != nil {
		log.WithComponent("api").Error().Err(err).Msg("Listing failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if tasks == nil {
		tasks = []*types.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, map[string][]*types.TaskRecord{"tasks": tasks})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.tasks.ListUsers(r.Context(), mux.Vars(r)["service"])
	if err != nil {
		log.WithComponent("api").Error().Err(err).Msg("User listing failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"users": users})
}

func (s *Server) handleListUserTasks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tasks, err := s.tasks.ListByServiceAndUser(r.Context(), vars["service"], vars["user_id"])
	writeTasksOrError(w, tasks, err)
}

// handleCreateTask accepts a submission. Task parameters arrive as
// query parameters; repeated keys keep the first value.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	parameters := map[string]any{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			parameters[key] = values[0]
		}
	}

	task, err := s.tasks.Create(r.Context(), vars["service"], vars["user_id"], parameters)
	if err != nil {
		log.WithComponent("api").Error().Err(err).Msg("Task creation failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": task.TaskID,
		"status":  string(task.Status),
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	task, err := s.tasks.Get(r.Context(), vars["task_id"], vars["service"], userID)
	writeTaskOrError(w, task, err)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	task, err := s.tasks.Cancel(r.Context(), vars["task_id"], vars["service"], userID)
	writeTaskOrError(w, task, err)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	task, err := s.tasks.Cleanup(r.Context(), vars["task_id"], vars["service"], userID)
	writeTaskOrError(w, task, err)
}

func (s *Server) handleAdminListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListAll(r.Context())
	writeTasksOrError(w, tasks, err)
}

func (s *Server) handleAdminListServiceTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListByService(r.Context(), mux.Vars(r)["service"])
	writeTasksOrError(w, tasks, err)
}

// Admin routes skip ownership filters entirely
func (s *Server) handleAdminCancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Cancel(r.Context(), mux.Vars(r)["task_id"], "", "")
	writeTaskOrError(w, task, err)
}

func (s *Server) handleAdminDeleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Cleanup(r.Context(), mux.Vars(r)["task_id"], "", "")
	writeTaskOrError(w, task, err)
}
