// Package client is the HTTP consumer of the backend job API. It maps wire
// responses onto job.Record snapshots and HTTP failures onto the engine's
// error taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sellsync/sellsync/internal/job"
)

// RestartPolicy is an opaque hint forwarded to the backend. The client never
// predicts which units the backend will actually skip.
type RestartPolicy string

const (
	PolicySkipCompleted RestartPolicy = "skip_completed"
	PolicyFullReplay    RestartPolicy = "full_replay"
)

// CreateJobParams describe the job to create.
type CreateJobParams struct {
	ResourceKey string         `json:"resource_key"`
	Kind        job.Kind       `json:"kind"`
	Config      map[string]any `json:"config,omitempty"`
}

type restartRequest struct {
	Policy RestartPolicy `json:"policy"`
}

// SubmitResult is the outcome of a single queue-item submission.
type SubmitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type listJobsResponse struct {
	Jobs []*job.Record `json:"jobs"`
}

// Client talks to one backend instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) CreateJob(ctx context.Context, params CreateJobParams) (*job.Record, error) {
	if params.ResourceKey == "" {
		return nil, &ValidationError{Message: "resource key is required"}
	}

	var record job.Record
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", params, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

func (c *Client) StartJob(ctx context.Context, jobID string) (*job.Record, error) {
	return c.lifecycleCommand(ctx, jobID, "start")
}

func (c *Client) StopJob(ctx context.Context, jobID string) (*job.Record, error) {
	return c.lifecycleCommand(ctx, jobID, "stop")
}

func (c *Client) CancelJob(ctx context.Context, jobID string) (*job.Record, error) {
	return c.lifecycleCommand(ctx, jobID, "cancel")
}

func (c *Client) lifecycleCommand(ctx context.Context, jobID, verb string) (*job.Record, error) {
	if jobID == "" {
		return nil, &ValidationError{Message: "job id is required"}
	}

	var record job.Record
	path := fmt.Sprintf("/v1/jobs/%s/%s", url.PathEscape(jobID), verb)
	if err := c.do(ctx, http.MethodPost, path, nil, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

// RestartJob asks the backend for a fresh record. The old terminal record is
// never mutated.
func (c *Client) RestartJob(ctx context.Context, jobID string, policy RestartPolicy) (*job.Record, error) {
	if jobID == "" {
		return nil, &ValidationError{Message: "job id is required"}
	}

	var record job.Record
	path := fmt.Sprintf("/v1/jobs/%s/restart", url.PathEscape(jobID))
	if err := c.do(ctx, http.MethodPost, path, restartRequest{Policy: policy}, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*job.Record, error) {
	var record job.Record
	path := "/v1/jobs/" + url.PathEscape(jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

// ListJobs fetches current snapshots; resourceKey "" lists all. The endpoint
// is an idempotent GET and safe to poll.
func (c *Client) ListJobs(ctx context.Context, resourceKey string) ([]*job.Record, error) {
	path := "/v1/jobs"
	if resourceKey != "" {
		path += "?resource_key=" + url.QueryEscape(resourceKey)
	}

	var response listJobsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}

	return response.Jobs, nil
}

// SubmitQueueItem performs the side-effecting submission for one confirmation
// queue item.
func (c *Client) SubmitQueueItem(ctx context.Context, itemKey string) (*SubmitResult, error) {
	if itemKey == "" {
		return nil, &ValidationError{Message: "item key is required"}
	}

	var result SubmitResult
	path := fmt.Sprintf("/v1/queue-items/%s/submit", url.PathEscape(itemKey))
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Warn("backend request failed", "method", method, "path", path, "err", err)
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusConflict {
		return &ConflictError{Message: readErrorBody(response.Body)}
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s: %s", method, path, response.Status, readErrorBody(response.Body))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func readErrorBody(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(raw))
}
