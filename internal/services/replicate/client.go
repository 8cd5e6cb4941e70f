package replicate

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
	defaultBaseURL      = "https://api.replicate.com"
	defaultPollInterval = time.Second
	defaultHTTPTimeout  = 60 * time.Second
	maxErrorBody        = 2048
)

// Prediction statuses.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIToken       string
	BaseURL        string
	RequestTimeout time.Duration
}

// Client wraps the predictions endpoints.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	pollInterval time.Duration
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

// WithPollInterval overrides the one-second polling interval.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient constructs a predictions client.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIToken:       strings.TrimSpace(cfg.APIToken),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			RequestTimeout: cfg.RequestTimeout,
		},
		httpClient:   &http.Client{},
		pollInterval: defaultPollInterval,
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.RequestTimeout <= 0 {
		client.cfg.RequestTimeout = defaultHTTPTimeout
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Prediction is the subset of the prediction object the pipeline reads.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	Logs   string          `json:"logs,omitempty"`
}

// Terminal reports whether the prediction will not change further.
func (p Prediction) Terminal() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// ErrorText renders the prediction error field, which may be a string or an object.
func (p Prediction) ErrorText() string {
	raw := bytes.TrimSpace(p.Error)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

// OutputURLs normalizes output that is either a string or a list of strings.
func (p Prediction) OutputURLs() ([]string, error) {
	raw := bytes.TrimSpace(p.Output)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil, nil
		}
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("prediction %s: unsupported output shape: %w", p.ID, err)
	}
	out := many[:0]
	for _, u := range many {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("replicate request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// StatusCode extracts the HTTP status from a client error, or 0.
func StatusCode(err error) int {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// Create starts a prediction. With version set it posts to /v1/predictions;
// otherwise it targets the model's official endpoint.
func (c *Client) Create(ctx context.Context, model, version string, input map[string]any, timeout time.Duration) (Prediction, error) {
	var pred Prediction
	if c.cfg.APIToken == "" {
		return pred, errors.New("replicate create: api token required")
	}
	model = strings.Trim(strings.TrimSpace(model), "/")
	version = strings.TrimSpace(version)

	payload := map[string]any{"input": input}
	var target string
	var err error
	if version != "" {
		payload["version"] = version
		target, err = url.JoinPath(c.cfg.BaseURL, "v1", "predictions")
	} else {
		if model == "" {
			return pred, errors.New("replicate create: model required")
		}
		target, err = url.JoinPath(c.cfg.BaseURL, "v1", "models", model, "predictions")
	}
	if err != nil {
		return pred, fmt.Errorf("replicate create: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return pred, fmt.Errorf("replicate create: encode body: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, target, encoded, timeout, &pred); err != nil {
		return pred, fmt.Errorf("replicate create: %w", err)
	}
	if pred.ID == "" {
		return pred, errors.New("replicate create: response missing id")
	}
	return pred, nil
}

// Get fetches the current state of a prediction.
func (c *Client) Get(ctx context.Context, id string, timeout time.Duration) (Prediction, error) {
	var pred Prediction
	target, err := url.JoinPath(c.cfg.BaseURL, "v1", "predictions", id)
	if err != nil {
		return pred, fmt.Errorf("replicate get: build url: %w", err)
	}
	if err := c.do(ctx, http.MethodGet, target, nil, timeout, &pred); err != nil {
		return pred, fmt.Errorf("replicate get %s: %w", id, err)
	}
	return pred, nil
}

// Wait polls pred until it is terminal. Any terminal state other than
// succeeded is returned as an error carrying the prediction's error text.
func (c *Client) Wait(ctx context.Context, pred Prediction, timeout time.Duration) (Prediction, error) {
	for !pred.Terminal() {
		if err := sleep(ctx, c.pollInterval); err != nil {
			return pred, err
		}
		next, err := c.Get(ctx, pred.ID, timeout)
		if err != nil {
			return pred, err
		}
		pred = next
	}
	if pred.Status != StatusSucceeded {
		detail := pred.ErrorText()
		if detail == "" {
			detail = "no error detail"
		}
		return pred, fmt.Errorf("replicate prediction %s %s: %s", pred.ID, pred.Status, detail)
	}
	return pred, nil
}

// Run creates a prediction and waits for it.
func (c *Client) Run(ctx context.Context, model, version string, input map[string]any, timeout time.Duration) (Prediction, error) {
	pred, err := c.Create(ctx, model, version, input, timeout)
	if err != nil {
		return pred, err
	}
	return c.Wait(ctx, pred, timeout)
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte, timeout time.Duration, out any) error {
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
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return &httpStatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
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
