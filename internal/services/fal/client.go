package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultQueueURL     = "https://queue.fal.run"
	defaultPollInterval = 500 * time.Millisecond
	defaultHTTPTimeout  = 60 * time.Second
	maxErrorBody        = 2048
)

// Queue statuses reported by the status endpoint.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// Config captures the runtime settings required to talk to the queue.
type Config struct {
	APIKey         string
	QueueURL       string
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// Client wraps the fal queue endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPollInterval overrides the status polling interval.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.cfg.PollInterval = interval
		}
	}
}

// NewClient constructs a queue client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			QueueURL:       strings.TrimRight(strings.TrimSpace(cfg.QueueURL), "/"),
			PollInterval:   cfg.PollInterval,
			RequestTimeout: cfg.RequestTimeout,
		},
		httpClient: &http.Client{},
	}
	if client.cfg.QueueURL == "" {
		client.cfg.QueueURL = defaultQueueURL
	}
	if client.cfg.PollInterval <= 0 {
		client.cfg.PollInterval = defaultPollInterval
	}
	if client.cfg.RequestTimeout <= 0 {
		client.cfg.RequestTimeout = defaultHTTPTimeout
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Request identifies a submitted queue request.
type Request struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

// Status is one status poll result.
type Status struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	Error         string `json:"error,omitempty"`
}

// SubscribeOptions tunes one Subscribe call.
type SubscribeOptions struct {
	// Timeout bounds each HTTP round trip; zero uses the client default.
	Timeout time.Duration
	// OnStatus observes every status poll.
	OnStatus func(Status)
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("fal request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// StatusCode extracts the HTTP status from a client error, or 0.
func StatusCode(err error) int {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// Subscribe submits input to endpoint and blocks until the response is available.
func (c *Client) Subscribe(ctx context.Context, endpoint string, input any, opts SubscribeOptions) (json.RawMessage, error) {
	req, err := c.Submit(ctx, endpoint, input, opts.Timeout)
	if err != nil {
		return nil, err
	}
	for {
		status, err := c.Status(ctx, endpoint, req, opts.Timeout)
		if err != nil {
			return nil, err
		}
		if opts.OnStatus != nil {
			opts.OnStatus(status)
		}
		switch status.Status {
		case StatusCompleted:
			if status.Error != "" {
				return nil, fmt.Errorf("fal request %s: %s", req.RequestID, status.Error)
			}
			return c.Result(ctx, endpoint, req, opts.Timeout)
		case StatusInQueue, StatusInProgress:
		default:
			return nil, fmt.Errorf("fal request %s: unexpected status %q", req.RequestID, status.Status)
		}
		if err := sleep(ctx, c.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}

// Submit enqueues input on endpoint.
func (c *Client) Submit(ctx context.Context, endpoint string, input any, timeout time.Duration) (Request, error) {
	var req Request
	if c.cfg.APIKey == "" {
		return req, errors.New("fal submit: api key required")
	}
	endpoint = strings.Trim(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return req, errors.New("fal submit: endpoint required")
	}
	target, err := url.JoinPath(c.cfg.QueueURL, endpoint)
	if err != nil {
		return req, fmt.Errorf("fal submit: build url: %w", err)
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return req, fmt.Errorf("fal submit: encode body: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, target, encoded, timeout)
	if err != nil {
		return req, fmt.Errorf("fal submit %s: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("fal submit %s: decode response: %w", endpoint, err)
	}
	if req.RequestID == "" {
		return req, fmt.Errorf("fal submit %s: response missing request_id", endpoint)
	}
	return req, nil
}

// Status polls the request status once.
func (c *Client) Status(ctx context.Context, endpoint string, req Request, timeout time.Duration) (Status, error) {
	var status Status
	target := req.StatusURL
	if target == "" {
		var err error
		target, err = url.JoinPath(c.cfg.QueueURL, endpointBase(endpoint), "requests", req.RequestID, "status")
		if err != nil {
			return status, fmt.Errorf("fal status: build url: %w", err)
		}
	}
	body, err := c.do(ctx, http.MethodGet, target, nil, timeout)
	if err != nil {
		return status, fmt.Errorf("fal status %s: %w", req.RequestID, err)
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return status, fmt.Errorf("fal status %s: decode response: %w", req.RequestID, err)
	}
	return status, nil
}

// Result fetches the response payload of a completed request.
func (c *Client) Result(ctx context.Context, endpoint string, req Request, timeout time.Duration) (json.RawMessage, error) {
	target := req.ResponseURL
	if target == "" {
		var err error
		target, err = url.JoinPath(c.cfg.QueueURL, endpointBase(endpoint), "requests", req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("fal result: build url: %w", err)
		}
	}
	body, err := c.do(ctx, http.MethodGet, target, nil, timeout)
	if err != nil {
		return nil, fmt.Errorf("fal result %s: %w", req.RequestID, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("fal result %s: response is not JSON", req.RequestID)
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// endpointBase strips a sub-path from an endpoint id: status and response
// URLs live under "owner/app" even when the request went to "owner/app/path".
func endpointBase(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "/")
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
