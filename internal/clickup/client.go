package clickup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.clickup.com/api/v2"

// Client is an HTTP TaskSource backed by the ClickUp v2 API. It pages
// through list endpoints until the API reports the last page and retries
// transient failures with exponential backoff.
type Client struct {
	httpc      *http.Client
	baseURL    string
	token      string
	maxRetries int
	retryBase  time.Duration
}

type ClientOption func(*Client)

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpc = h }
}

// WithRetry configures the retry budget and base backoff delay.
func WithRetry(maxRetries int, base time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryBase = base
	}
}

func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		httpc:      &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		maxRetries: 3,
		retryBase:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listTasksResponse struct {
	Tasks    []Task `json:"tasks"`
	LastPage bool   `json:"last_page"`
}

type commentsResponse struct {
	Comments []Comment `json:"comments"`
}

// ListTasks fetches every page of a list and returns the concatenation.
func (c *Client) ListTasks(ctx context.Context, p ListTasksParams) ([]Task, error) {
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var all []Task
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("subtasks", "true")
		if p.IncludeClosed {
			q.Set("include_closed", "true")
		}

		var resp listTasksResponse
		endpoint := fmt.Sprintf("%s/list/%s/task?%s", c.baseURL, p.ListID, q.Encode())
		if err := c.getJSON(ctx, endpoint, &resp); err != nil {
			return nil, fmt.Errorf("list tasks page %d: %w", page, err)
		}

		all = append(all, resp.Tasks...)
		if resp.LastPage || len(resp.Tasks) == 0 {
			break
		}
	}

	slog.DebugContext(ctx, "Fetched task list", "list_id", p.ListID, "tasks", len(all))
	return all, nil
}

// GetTaskComments fetches all comments for a task.
func (c *Client) GetTaskComments(ctx context.Context, taskID string) ([]Comment, error) {
	var resp commentsResponse
	endpoint := fmt.Sprintf("%s/task/%s/comment", c.baseURL, taskID)
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("get comments for task %s: %w", taskID, err)
	}
	return resp.Comments, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * c.retryBase
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = c.doOnce(ctx, endpoint, v)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func isRetryable(err error) bool {
	if se, ok := err.(*httpStatusError); ok {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	// Network-level errors are worth retrying.
	return true
}

func (c *Client) doOnce(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &httpStatusError{status: resp.StatusCode, body: string(b)}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
