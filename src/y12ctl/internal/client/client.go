package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/bitswalk/y12/src/common/logs"
)

// DefaultTimeout bounds JSON calls. Streams and file transfers are only
// bounded by their context.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP client for the y12d API
type Client struct {
	BaseURL string
	// Secret is sent as a bearer token on upload and progress calls
	Secret    string
	UserAgent string
	Timeout   time.Duration

	http *retryablehttp.Client
}

// Options tunes the retrying transport
type Options struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       *logs.Logger
}

// ErrorResponse is the error body returned by y12d
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// APIError represents a structured API error
type APIError struct {
	StatusCode int
	// Reason is the "<domain>.<code>" string of the server
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	var base string
	if e.Reason != "" {
		base = fmt.Sprintf("%s: %s (HTTP %d)", e.Reason, e.Message, e.StatusCode)
	} else {
		base = fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}

	switch e.StatusCode {
	case http.StatusUnauthorized:
		return base + "\nHint: set build_secret in the config file or pass --secret."
	case http.StatusNotFound:
		return base + "\nHint: jobs expire after 7 days. Verify the build ID."
	case http.StatusTooManyRequests:
		return base + "\nHint: build creation is rate limited, retry in a minute."
	}
	if e.Reason == "job.not_complete" {
		return base + "\nHint: the build is still running. Use 'y12ctl build watch'."
	}
	return base
}

// New creates a new API client with default retry settings
func New(baseURL string) *Client {
	return NewWithOptions(baseURL, Options{RetryMax: 3})
}

// NewWithOptions creates a client with explicit retry settings
func NewWithOptions(baseURL string, opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Logger != nil {
		rc.Logger = opts.Logger.Leveled()
	} else {
		rc.Logger = nil
	}
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: DefaultTimeout,
		http:    rc,
	}
}

// checkRetry retries transport errors and server errors but never a rate
// limit answer, which would otherwise block for the Retry-After minute
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	return req, nil
}

func (c *Client) authorize(req *retryablehttp.Request) {
	if c.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.Secret)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var payload any
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = jsonBody
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return handleResponse(resp, result)
}

// RawGet performs a GET request and returns the response for streaming.
// The caller is responsible for closing the body.
func (c *Client) RawGet(ctx context.Context, path string, accept string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func handleResponse(resp *http.Response, result any) error {
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Reason:     errResp.Reason,
			Message:    errResp.Message,
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
