/*
Package log provides structured logging for taskgate built on zerolog.

All components log through a single global logger configured once at startup
by the composition root. Output is JSON by default (one object per line,
suitable for log aggregation in Kubernetes) with an optional human-readable
console mode for local development.

# Usage

Initialize once at startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Component loggers carry a stable "component" field so that a single stream
can be filtered per subsystem:

	logger := log.WithComponent("processor")
	logger.Info().Str("task_id", taskID).Msg("Dispatching to scheduler")

Child logger helpers exist for the fields that recur throughout the
codebase: WithComponent, WithTaskID, WithService, WithRequestID.

# Conventions

  - Levels: debug for request/response payload detail, info for lifecycle
    milestones, warn for degraded-but-recovering conditions (listener
    reconnects), error for failures needing operator attention.
  - The HTTP layer excludes /healthz from request logging to keep probe
    noise out of the stream.
  - Fatal is reserved for startup failures before the composition root is
    serving.
*/
package log
