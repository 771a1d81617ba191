/*
Package api implements taskgate's inbound HTTP surface.

The router (gorilla/mux) exposes two groups of endpoints. The task routes
live under the configured API prefix (default /api/v1) and require the
shared operator token in the X-Operator-Token header; a mismatch answers
401 before any handler runs. The meta endpoints /healthz, /help, and
/metrics are unprefixed and unauthenticated so load balancers and
Prometheus can reach them.

Handlers depend on a narrow TaskService interface rather than the concrete
service type, which keeps them testable with an in-memory fake. Every
error answer has the shape {"detail": "..."}; a missing task and an
ownership mismatch are both reported as 404 "Task not found" so callers
cannot probe for other users' tasks.

Each request is tagged with a request id (caller-supplied X-Request-ID or
a fresh UUID), logged once on completion, and counted in the Prometheus
request metrics. /healthz pings the store and degrades to 503 when the
ping fails.
*/
package api
