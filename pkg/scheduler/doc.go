// Package scheduler provides the HTTP client for the external
// scheduler service that actually executes tasks.
//
// taskgate never runs workloads itself. Created tasks are posted to
// the scheduler's task endpoint as {task_id, service, user_id,
// parameters}, and cancellations are posted to its cancel endpoint as
// {task_id, service, user_id}. Both endpoints and the base URL come
// from the service configuration.
//
// # Error Model
//
// Callers branch on the failure mode, so the client reports failures
// as typed errors rather than sentinel values:
//
//	*UnavailableError  transport-level failure: refused connection,
//	                   DNS error, or client timeout. The scheduler
//	                   never saw the request.
//	*ResponseError     the scheduler answered with a non-2xx status.
//	                   Carries the status code and response body.
//
// Any other returned error is a local encoding or request-building
// failure. The event processor maps these errors onto task state:
// an unreachable scheduler fails a submission outright, while a
// rejected cancellation may only be logged depending on the status
// code.
//
// # Usage
//
//	client := scheduler.NewClient(cfg)
//
//	payload := scheduler.SubmitPayload{
//		TaskID:     task.TaskID,
//		Service:    task.Service,
//		UserID:     task.UserID,
//		Parameters: task.Parameters,
//	}
//	if err := client.SubmitTask(ctx, payload); err != nil {
//		var unavail *scheduler.UnavailableError
//		if errors.As(err, &unavail) {
//			// scheduler down
//		}
//	}
//
// The underlying http.Client uses pooled transports with a hard
// request timeout, so a hung scheduler cannot wedge the event
// processor workers.
package scheduler
