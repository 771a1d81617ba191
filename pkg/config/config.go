package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all environment variable overrides
const EnvPrefix = "TASKGATE_"

// Config holds the full runtime configuration for taskgate.
// Values are resolved in order: defaults, optional YAML file, environment.
type Config struct {
	APIAddr   string `yaml:"api_addr"`
	APIPrefix string `yaml:"api_prefix"`

	RedisWriteURL       string `yaml:"redis_write_url"`
	RedisReadURL        string `yaml:"redis_read_url"`
	RedisTaskTTLSeconds int    `yaml:"redis_task_ttl_seconds"`

	SchedulerBaseURL        string `yaml:"scheduler_base_url"`
	SchedulerTaskEndpoint   string `yaml:"scheduler_task_endpoint"`
	SchedulerCancelEndpoint string `yaml:"scheduler_cancel_endpoint"`

	OperatorToken string `yaml:"operator_token"`

	EventWorkerCount      int `yaml:"event_worker_count"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the built-in configuration defaults
func Default() *Config {
	return &Config{
		APIAddr:                 "0.0.0.0:8000",
		APIPrefix:               "/api/v1",
		RedisWriteURL:           "redis://localhost:6379/0",
		RedisReadURL:            "",
		RedisTaskTTLSeconds:     90 * 24 * 60 * 60,
		SchedulerBaseURL:        "http://localhost:9000",
		SchedulerTaskEndpoint:   "/task",
		SchedulerCancelEndpoint: "/cancel",
		OperatorToken:           "changeme",
		EventWorkerCount:        4,
		RequestTimeoutSeconds:   10,
		LogLevel:                "info",
		LogJSON:                 true,
	}
}

// Load resolves the configuration from defaults, an optional YAML file, and
// TASKGATE_* environment variables, then validates the result. An empty path
// skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides fields from TASKGATE_* environment variables
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	var envErr error
	setInt := func(key string, dst *int) {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			envErr = fmt.Errorf("invalid integer for %s%s: %q", EnvPrefix, key, v)
			return
		}
		*dst = n
	}
	setBool := func(key string, dst *bool) {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			envErr = fmt.Errorf("invalid boolean for %s%s: %q", EnvPrefix, key, v)
			return
		}
		*dst = b
	}

	setString("API_ADDR", &c.APIAddr)
	setString("API_PREFIX", &c.APIPrefix)
	setString("REDIS_WRITE_URL", &c.RedisWriteURL)
	setString("REDIS_READ_URL", &c.RedisReadURL)
	setInt("REDIS_TASK_TTL_SECONDS", &c.RedisTaskTTLSeconds)
	setString("SCHEDULER_BASE_URL", &c.SchedulerBaseURL)
	setString("SCHEDULER_TASK_ENDPOINT", &c.SchedulerTaskEndpoint)
	setString("SCHEDULER_CANCEL_ENDPOINT", &c.SchedulerCancelEndpoint)
	setString("OPERATOR_TOKEN", &c.OperatorToken)
	setInt("EVENT_WORKER_COUNT", &c.EventWorkerCount)
	setInt("REQUEST_TIMEOUT_SECONDS", &c.RequestTimeoutSeconds)
	setString("LOG_LEVEL", &c.LogLevel)
	setBool("LOG_JSON", &c.LogJSON)

	return envErr
}

// Validate checks the configuration for values that would break at runtime
func (c *Config) Validate() error {
	if c.APIAddr == "" {
		return fmt.Errorf("api_addr must not be empty")
	}
	if c.RedisWriteURL == "" {
		return fmt.Errorf("redis_write_url must not be empty")
	}
	if c.RedisTaskTTLSeconds <= 0 {
		return fmt.Errorf("redis_task_ttl_seconds must be a positive integer")
	}
	if c.SchedulerBaseURL == "" {
		return fmt.Errorf("scheduler_base_url must not be empty")
	}
	if c.OperatorToken == "" {
		return fmt.Errorf("operator_token must not be empty")
	}
	if c.EventWorkerCount < 1 {
		return fmt.Errorf("event_worker_count must be at least 1")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	return nil
}

// ReadURL returns the Redis reader URL, falling back to the writer URL when
// no dedicated reader is configured
func (c *Config) ReadURL() string {
	if c.RedisReadURL != "" {
		return c.RedisReadURL
	}
	return c.RedisWriteURL
}

// SchedulerURL joins the scheduler base URL with an endpoint path
func (c *Config) SchedulerURL(endpoint string) string {
	base := strings.TrimRight(c.SchedulerBaseURL, "/")
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

// RequestTimeout returns the outbound HTTP timeout as a duration
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// TaskTTL returns the task record TTL as a duration
func (c *Config) TaskTTL() time.Duration {
	return time.Duration(c.RedisTaskTTLSeconds) * time.Second
}

// Dump renders the configuration as YAML for "taskgate config show"
func (c *Config) Dump() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(data), nil
}
