// Package jobplatform talks to the crowd task platform that renders images and
// speech. Work is submitted as planned tasks on a job and polled through the
// job's applicant list.
package jobplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"highbid/internal/infra"
)

const DefaultBaseURL = "https://xgodo.com/api/v2"

var (
	ErrMissingToken = errors.New("jobplatform: api token is required")
	ErrMissingJobID = errors.New("jobplatform: job id is required")
	ErrSubmit       = errors.New("jobplatform: submit failed")
	ErrPoll         = errors.New("jobplatform: poll failed")
)

// SubmitError is a non-2xx answer to a task submission.
type SubmitError struct {
	Status int
	Body   string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("jobplatform: submit status %d", e.Status)
}

func (e *SubmitError) Is(target error) bool { return target == ErrSubmit }

// Message is the text stored on the failed generation.
func (e *SubmitError) Message() string {
	return fmt.Sprintf("Failed to submit task: %d", e.Status)
}

// Options configures the client. A zero PollInterval or MaxAttempts falls back
// to 30 seconds and 15 attempts; InitialDelay is used as given.
type Options struct {
	APIToken          string
	BaseURL           string
	InitialDelay      time.Duration
	PollInterval      time.Duration
	MaxAttempts       int
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	HTTPClient        *http.Client
	Logger            *infra.Logger
}

// Client submits and polls tasks.
type Client struct {
	token        string
	baseURL      string
	initialDelay time.Duration
	pollInterval time.Duration
	maxAttempts  int
	limiter      *rate.Limiter
	httpClient   *http.Client
	logger       *infra.Logger
}

func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.APIToken)
	if token == "" {
		return nil, ErrMissingToken
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	initialDelay := opts.InitialDelay
	if initialDelay < 0 {
		initialDelay = 0
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 15
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		token:        token,
		baseURL:      baseURL,
		initialDelay: initialDelay,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		limiter:      rate.NewLimiter(limit, 1),
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// MaxWait is the longest a Poll can take before it reports a timeout.
func (c *Client) MaxWait() time.Duration {
	return c.initialDelay + time.Duration(c.maxAttempts)*c.pollInterval
}

type submitRequest struct {
	JobID  string   `json:"job_id"`
	Inputs []string `json:"inputs"`
}

type applicantsRequest struct {
	JobID string `json:"job_id"`
}

// Submit creates one planned task on jobID. It is never retried: a second
// submission would create a second task.
func (c *Client) Submit(ctx context.Context, jobID string, in Input) error {
	if strings.TrimSpace(jobID) == "" {
		return ErrMissingJobID
	}
	encoded, err := in.Encode()
	if err != nil {
		return err
	}
	status, body, err := c.post(ctx, "/planned_tasks/submit", submitRequest{JobID: jobID, Inputs: []string{encoded}})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	if status < 200 || status >= 300 {
		c.logger.Warn().Int("status", status).Str("job_id", jobID).Msg("jobplatform submit rejected")
		return &SubmitError{Status: status, Body: truncate(body, 512)}
	}
	c.logger.Debug().Str("job_id", jobID).Str("field", in.Field).Msg("jobplatform task submitted")
	return nil
}

// Applicants fetches the current task list of jobID.
func (c *Client) Applicants(ctx context.Context, jobID string) ([]Task, error) {
	status, body, err := c.post(ctx, "/jobs/applicants", applicantsRequest{JobID: jobID})
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("jobplatform: applicants status %d: %s", status, truncate(body, 256))
	}
	return ParseTasks(body)
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
