package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	cleanhttp "github.com/hashicorp/go-cleanhttp"

	"github.com/taskgate/taskgate/pkg/config"
	"github.com/taskgate/taskgate/pkg/metrics"
)

// Error bodies are kept for status messages, so cap what we read
const maxErrorBodyBytes = 64 * 1024

// SubmitPayload is the JSON body posted to the scheduler task endpoint
type SubmitPayload struct {
	TaskID     string         `json:"task_id"`
	Service    string         `json:"service"`
	UserID     string         `json:"user_id"`
	Parameters map[string]any `json:"parameters"`
}

// CancelPayload is the JSON body posted to the scheduler cancel endpoint
type CancelPayload struct {
	TaskID  string `json:"task_id"`
	Service string `json:"service"`
	UserID  string `json:"user_id"`
}

// Client is the HTTP client for the external scheduler service
type Client struct {
	taskURL    string
	cancelURL  string
	httpClient *http.Client
}

// NewClient creates a scheduler client from the service configuration
func NewClient(cfg *config.Config) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = cfg.RequestTimeout()

	return &Client{
		taskURL:    cfg.SchedulerURL(cfg.SchedulerTaskEndpoint),
		cancelURL:  cfg.SchedulerURL(cfg.SchedulerCancelEndpoint),
		httpClient: httpClient,
	}
}

// TaskURL returns the resolved submission endpoint
func (c *Client) TaskURL() string {
	return c.taskURL
}

// CancelURL returns the resolved cancellation endpoint
func (c *Client) CancelURL() string {
	return c.cancelURL
}

// SubmitTask posts a task submission to the scheduler. A nil return
// means the scheduler acknowledged with a 2xx status. Failures are
// reported as *UnavailableError when the scheduler could not be
// reached and *ResponseError for non-2xx answers.
func (c *Client) SubmitTask(ctx context.Context, payload SubmitPayload) error {
	timer := metrics.NewTimer()
	err := c.post(ctx, "submit", c.taskURL, payload)
	timer.ObserveOn(metrics.SchedulerRequestDuration.WithLabelValues("submit"))
	return err
}

// CancelTask posts a cancellation request to the scheduler. Error
// semantics match SubmitTask.
func (c *Client) CancelTask(ctx context.Context, payload CancelPayload) error {
	timer := metrics.NewTimer()
	err := c.post(ctx, "cancel", c.cancelURL, payload)
	timer.ObserveOn(metrics.SchedulerRequestDuration.WithLabelValues("cancel"))
	return err
}

// Close releases pooled connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) post(ctx context.Context, operation, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.SchedulerRequests.WithLabelValues(operation, "unavailable").Inc()
		return &UnavailableError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		metrics.SchedulerRequests.WithLabelValues(operation, "rejected").Inc()
		return &ResponseError{URL: url, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	// Drain the body so the pooled connection can be reused
	io.Copy(io.Discard, resp.Body)
	metrics.SchedulerRequests.WithLabelValues(operation, "ok").Inc()
	return nil
}
