/*
Package config resolves taskgate's runtime configuration.

Values are layered lowest to highest precedence:

 1. Built-in defaults (Default)
 2. An optional YAML file passed via --config
 3. TASKGATE_* environment variables

The resolved Config is validated once at load time; anything that would
break at runtime (non-positive TTL, zero workers, unknown log level) is
rejected before the process starts serving.

# Keys

	api_addr                    TASKGATE_API_ADDR                    0.0.0.0:8000
	api_prefix                  TASKGATE_API_PREFIX                  /api/v1
	redis_write_url             TASKGATE_REDIS_WRITE_URL             redis://localhost:6379/0
	redis_read_url              TASKGATE_REDIS_READ_URL              (falls back to write URL)
	redis_task_ttl_seconds      TASKGATE_REDIS_TASK_TTL_SECONDS      7776000 (90 days)
	scheduler_base_url          TASKGATE_SCHEDULER_BASE_URL          http://localhost:9000
	scheduler_task_endpoint     TASKGATE_SCHEDULER_TASK_ENDPOINT     /task
	scheduler_cancel_endpoint   TASKGATE_SCHEDULER_CANCEL_ENDPOINT   /cancel
	operator_token              TASKGATE_OPERATOR_TOKEN              changeme
	event_worker_count          TASKGATE_EVENT_WORKER_COUNT          4
	request_timeout_seconds     TASKGATE_REQUEST_TIMEOUT_SECONDS     10
	log_level                   TASKGATE_LOG_LEVEL                   info
	log_json                    TASKGATE_LOG_JSON                    true

# Usage

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	client := scheduler.NewClient(cfg)

Separate read and write Redis URLs support deployments that front replicas
with a read balancer; single-instance deployments set only the write URL and
ReadURL falls back to it.
*/
package config
