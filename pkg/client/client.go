package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"

	"github.com/taskgate/taskgate/pkg/api"
	"github.com/taskgate/taskgate/pkg/types"
)

// Client talks to a running taskgate instance over its HTTP API
type Client struct {
	baseURL    string
	prefix     string
	token      string
	httpClient *http.Client
}

// Options configures a Client
type Options struct {
	// BaseURL is the scheme://host:port of the taskgate instance
	BaseURL string
	// Prefix is the API prefix, defaulting to /api/v1
	Prefix string
	// Token is the operator token sent with every request
	Token string
	// Timeout bounds each request, defaulting to 10s
	Timeout time.Duration
}

// New creates a client with pooled connections
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api base url must not be empty")
	}
	if opts.Prefix == "" {
		opts.Prefix = "/api/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = opts.Timeout

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		prefix:     "/" + strings.Trim(opts.Prefix, "/"),
		token:      opts.Token,
		httpClient: httpClient,
	}, nil
}

// Close releases pooled connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

// CreateTask submits a task and returns its assigned id and status
func (c *Client) CreateTask(ctx context.Context, service, userID string, parameters map[string]string) (taskID, status string, err error) {
	query := url.Values{}
	for key, value := range parameters {
		query.Set(key, value)
	}
	path := fmt.Sprintf("/services/%s/users/%s/tasks", url.PathEscape(service), url.PathEscape(userID))

	var body struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, path, query, &body); err != nil {
		return "", "", err
	}
	return body.TaskID, body.Status, nil
}

// GetTask fetches a task scoped to its owner
func (c *Client) GetTask(ctx context.Context, service, userID, taskID string) (*types.TaskRecord, error) {
	path := fmt.Sprintf("/services/%s/tasks/%s", url.PathEscape(service), url.PathEscape(taskID))
	return c.taskRequest(ctx, http.MethodGet, path, userQuery(userID))
}

// CancelTask requests cancellation of a task
func (c *Client) CancelTask(ctx context.Context, service, userID, taskID string) (*types.TaskRecord, error) {
	path := fmt.Sprintf("/services/%s/tasks/%s/cancel", url.PathEscape(service), url.PathEscape(taskID))
	return c.taskRequest(ctx, http.MethodPost, path, userQuery(userID))
}

// DeleteTask cancels and removes a task, returning its last record
func (c *Client) DeleteTask(ctx context.Context, service, userID, taskID string) (*types.TaskRecord, error) {
	path := fmt.Sprintf("/services/%s/tasks/%s", url.PathEscape(service), url.PathEscape(taskID))
	return c.taskRequest(ctx, http.MethodDelete, path, userQuery(userID))
}

// ListUserTasks lists the tasks a user owns within a service
func (c *Client) ListUserTasks(ctx context.Context, service, userID string) ([]*types.TaskRecord, error) {
	path := fmt.Sprintf("/services/%s/users/%s/tasks", url.PathEscape(service), url.PathEscape(userID))
	return c.tasksRequest(ctx, path)
}

// ListServiceTasks lists every task in a service (admin scope)
func (c *Client) ListServiceTasks(ctx context.Context, service string) ([]*types.TaskRecord, error) {
	return c.tasksRequest(ctx, fmt.Sprintf("/admin/services/%s/tasks", url.PathEscape(service)))
}

// ListAllTasks lists every live task (admin scope)
func (c *Client) ListAllTasks(ctx context.Context) ([]*types.TaskRecord, error) {
	return c.tasksRequest(ctx, "/admin/tasks")
}

// ListUsers lists the users with live tasks in a service
func (c *Client) ListUsers(ctx context.Context, service string) ([]string, error) {
	var body struct {
		Users []string `json:"users"`
	}
	path := fmt.Sprintf("/services/%s/users", url.PathEscape(service))
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Users, nil
}

func userQuery(userID string) url.Values {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	return query
}

func (c *Client) taskRequest(ctx context.Context, method, path string, query url.Values) (*types.TaskRecord, error) {
	var body struct {
		Task *types.TaskRecord `json:"task"`
	}
	if err := c.do(ctx, method, path, query, &body); err != nil {
		return nil, err
	}
	return body.Task, nil
}

func (c *Client) tasksRequest(ctx context.Context, path string) ([]*types.TaskRecord, error) {
	var body struct {
		Tasks []*types.TaskRecord `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Tasks, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, dst any) error {
	endpoint := c.baseURL + c.prefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(api.OperatorTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach taskgate at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &detail) == nil && detail.Detail != "" {
			apiErr.Detail = detail.Detail
		}
		return apiErr
	}

	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
