// Package runpod implements the submit/poll protocol for serverless
// endpoints. A job is created by one POST; if the synchronous response
// already carries a terminal status polling is skipped, otherwise the job is
// polled on a fixed interval up to a fixed ceiling.
package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"voicebridge/internal/provider"
)

// DefaultBaseURL is the RunPod serverless API root.
const DefaultBaseURL = "https://api.runpod.ai/v2"

const (
	defaultPollInterval = 1 * time.Second
	defaultMaxPolls     = 60
)

// Job statuses reported by the API.
const (
	StatusQueued     = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// ErrJobFailed indicates the remote job reached the FAILED state. Terminal.
var ErrJobFailed = errors.New("job failed")

// ErrPollTimeout indicates the poll ceiling was exceeded without a terminal
// state. The wrapped message carries the job id for out-of-band inspection.
var ErrPollTimeout = errors.New("job polling timed out")

// Client runs jobs against RunPod serverless endpoints.
type Client struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
}

// New constructs a client. Zero values select the documented defaults:
// the public API root, a 1 second poll interval and a 60 poll ceiling.
func New(client *http.Client, baseURL string, pollInterval time.Duration, maxPolls int) *Client {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if maxPolls <= 0 {
		maxPolls = defaultMaxPolls
	}
	return &Client{
		baseURL:      baseURL,
		client:       client,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
	}
}

type job struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// Run submits input to the endpoint and waits for the job's output.
func (c *Client) Run(ctx context.Context, endpointID, apiKey string, input any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("marshal job input: %w", err)
	}

	submitURL := fmt.Sprintf("%s/%s/runsync", c.baseURL, endpointID)
	j, err := c.do(ctx, http.MethodPost, submitURL, apiKey, body, endpointID)
	if err != nil {
		return nil, err
	}

	if out, done, err := terminal(j); done {
		return out, err
	}

	statusURL := fmt.Sprintf("%s/%s/status/%s", c.baseURL, endpointID, j.ID)
	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		polled, err := c.do(ctx, http.MethodGet, statusURL, apiKey, nil, endpointID)
		if err != nil {
			return nil, err
		}
		if out, done, err := terminal(polled); done {
			return out, err
		}
	}

	return nil, fmt.Errorf("%w: job %s after %d polls", ErrPollTimeout, j.ID, c.maxPolls)
}

func terminal(j *job) (json.RawMessage, bool, error) {
	switch j.Status {
	case StatusCompleted:
		return j.Output, true, nil
	case StatusFailed:
		return nil, true, fmt.Errorf("%w: job %s: %s", ErrJobFailed, j.ID, j.Error)
	}
	return nil, false, nil
}

func (c *Client) do(ctx context.Context, method, url, apiKey string, body []byte, endpointID string) (*job, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runpod request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, provider.ReadUpstreamError("runpod:"+endpointID, resp)
	}

	var j job
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	return &j, nil
}
