// Package circleci triggers builds through the CircleCI REST API.
//
// Two trigger styles are supported: the legacy v1.1 job endpoint used for
// lane runs, and pipeline runs which create a pipeline through the same
// v1.1 tree endpoint and then poll the v2 pipeline API for the workflow
// that gives the run a stable link.
package circleci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alekspetrov/shipbot/internal/trigger"
)

const (
	circleCIBaseURL = "https://circleci.com"

	defaultPollAttempts = 1
	defaultPollDelay    = 2 * time.Second
)

// Client is a CircleCI API client
type Client struct {
	token        string
	baseURL      string // For testing - defaults to circleCIBaseURL
	httpClient   *http.Client
	pollAttempts int
	pollDelay    time.Duration
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithPolling sets how many times a freshly created pipeline is polled for
// its workflows, and the wait between attempts. Attempts below one keep
// the single-poll default.
func WithPolling(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.pollAttempts = attempts
		}
		if delay > 0 {
			c.pollDelay = delay
		}
	}
}

// WithTimeout overrides the HTTP timeout for API calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient creates a new CircleCI client
func NewClient(token string, opts ...Option) *Client {
	return NewClientWithBaseURL(token, circleCIBaseURL, opts...)
}

// NewClientWithBaseURL creates a new CircleCI client with a custom base URL (for testing)
func NewClientWithBaseURL(token, baseURL string, opts ...Option) *Client {
	c := &Client{
		token:        token,
		baseURL:      baseURL,
		pollAttempts: defaultPollAttempts,
		pollDelay:    defaultPollDelay,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JobResponse is the legacy v1.1 job trigger response
type JobResponse struct {
	Branch   string `json:"branch"`
	BuildURL string `json:"build_url"`
}

// Pipeline identifies a pipeline created through the v1.1 tree endpoint
type Pipeline struct {
	ID string `json:"id"`
}

// PipelineVCS carries the VCS details reported for a pipeline
type PipelineVCS struct {
	Branch string `json:"branch"`
}

// Workflow is a workflow registered under a pipeline
type Workflow struct {
	ID string `json:"id"`
}

// PipelineStatus is the v2 pipeline poll response. Workflows is empty when
// the poll lands before CircleCI has registered any.
type PipelineStatus struct {
	VCS       PipelineVCS `json:"vcs"`
	Workflows []Workflow  `json:"workflows"`
}

type pipelineRequest struct {
	Branch     string               `json:"branch"`
	Parameters trigger.ParameterSet `json:"parameters"`
}

// doRequest performs an HTTP request to the CircleCI API
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// treePath builds the v1.1 project tree path shared by job and pipeline
// triggers. The branch is escaped so release branches containing slashes
// stay a single path segment.
func (c *Client) treePath(project, branch string) string {
	return fmt.Sprintf("/api/v1.1/project/github/%s/tree/%s?circle-token=%s",
		project, url.PathEscape(branch), url.QueryEscape(c.token))
}

// TriggerJob fires a build through the legacy v1.1 job API. Parameters are
// flattened to strings, which is all that endpoint accepts.
func (c *Client) TriggerJob(ctx context.Context, req *trigger.Request) (*trigger.Result, error) {
	body := map[string]map[string]string{
		"build_parameters": req.Parameters.Strings(),
	}
	var job JobResponse
	if err := c.doRequest(ctx, http.MethodPost, c.treePath(req.Project, req.Branch), body, &job); err != nil {
		return nil, err
	}
	return &trigger.Result{Branch: job.Branch, BuildURL: job.BuildURL}, nil
}

// CreatePipeline starts a pipeline run on a branch. The v1.1 tree endpoint
// accepts typed pipeline parameters even though its response carries only
// the new pipeline's ID.
func (c *Client) CreatePipeline(ctx context.Context, req *trigger.Request) (*Pipeline, error) {
	body := pipelineRequest{Branch: req.Branch, Parameters: req.Parameters}
	var pipeline Pipeline
	if err := c.doRequest(ctx, http.MethodPost, c.treePath(req.Project, req.Branch), body, &pipeline); err != nil {
		return nil, err
	}
	if pipeline.ID == "" {
		return nil, fmt.Errorf("pipeline response missing id")
	}
	return &pipeline, nil
}

// GetPipeline fetches a pipeline's VCS branch and registered workflows
// through the v2 API.
func (c *Client) GetPipeline(ctx context.Context, id string) (*PipelineStatus, error) {
	path := fmt.Sprintf("/api/v2/pipeline/%s?circle-token=%s", url.PathEscape(id), url.QueryEscape(c.token))
	var status PipelineStatus
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TriggerPipeline creates a pipeline and polls it for the workflow that
// gives the run its link. The poll is only issued once creation succeeds.
func (c *Client) TriggerPipeline(ctx context.Context, req *trigger.Request) (*trigger.Result, error) {
	pipeline, err := c.CreatePipeline(ctx, req)
	if err != nil {
		return nil, err
	}

	status, err := c.pollPipeline(ctx, pipeline.ID)
	if err != nil {
		return nil, err
	}

	branch := status.VCS.Branch
	if branch == "" {
		branch = req.Branch
	}
	return &trigger.Result{Branch: branch, BuildURL: c.workflowURL(status)}, nil
}

// pollPipeline polls a pipeline until a workflow shows up or attempts run
// out, returning the last status seen either way.
func (c *Client) pollPipeline(ctx context.Context, id string) (*PipelineStatus, error) {
	var status *PipelineStatus
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pollDelay):
			}
		}

		var err error
		status, err = c.GetPipeline(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(status.Workflows) > 0 {
			return status, nil
		}
	}
	return status, nil
}

// workflowURL is the link reported back to the user: the first workflow of
// the pipeline, or the bare CircleCI URL when no workflow is registered yet.
func (c *Client) workflowURL(status *PipelineStatus) string {
	if len(status.Workflows) == 0 {
		return c.baseURL
	}
	return fmt.Sprintf("%s/workflow-run/%s", c.baseURL, status.Workflows[0].ID)
}
