package api

import (
	"context"
	"net/http"
	"time"

	"github.com/taskgate/taskgate/pkg/log"
)

const healthCheckTimeout = 5 * time.Second

// healthResponse is the body of the /healthz endpoint
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHealthz reports store connectivity. A failing ping degrades
// the answer to 503 so load balancers stop routing here.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		log.WithComponent("api").Warn().Err(err).Msg("Health check failed store ping")
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "degraded",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}

// handleHelp returns the endpoint catalog for operators poking around
// with curl
func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "taskgate",
		"endpoints": []string{
			"GET    /healthz",
			"GET    /help",
			"GET    /metrics",
			"GET    {prefix}/services/{service}/users",
			"GET    {prefix}/services/{service}/users/{user_id}/tasks",
			"POST   {prefix}/services/{service}/users/{user_id}/tasks",
			"GET    {prefix}/services/{service}/tasks/{task_id}?user_id=",
			"POST   {prefix}/services/{service}/tasks/{task_id}/cancel?user_id=",
			"DELETE {prefix}/services/{service}/tasks/{task_id}?user_id=",
			"GET    {prefix}/admin/tasks",
			"GET    {prefix}/admin/services/{service}/tasks",
			"POST   {prefix}/admin/tasks/{task_id}/cancel",
			"DELETE {prefix}/admin/tasks/{task_id}",
		},
	})
}
