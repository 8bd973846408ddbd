package kconfig

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

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultAnthropicEndpoint = "https://api.anthropic.com"
	DefaultAnthropicModel    = "claude-sonnet-4-20250514"
	anthropicVersion         = "2023-06-01"
)

// AnthropicConfig configures the messages API client
type AnthropicConfig struct {
	APIKey   string
	Model    string
	Endpoint string
	// MaxRetries applies to 429 and 5xx answers
	MaxRetries int
	UserAgent  string
}

// AnthropicClient is a Completer backed by the Anthropic messages API
type AnthropicClient struct {
	cfg    AnthropicConfig
	client *retryablehttp.Client
}

// NewAnthropicClient creates a client for cfg
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultAnthropicEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	c := retryablehttp.NewClient()
	c.RetryMax = cfg.MaxRetries
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.Logger = log.Leveled()
	// hand the last response back so status errors keep their body
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &AnthropicClient{cfg: cfg, client: c}
}

// Model returns the configured model name
func (a *AnthropicClient) Model() string {
	return a.cfg.Model
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Complete sends one messages request and returns the first text block
func (a *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     a.cfg.Model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Messages:  req.Messages,
	})
	if err != nil {
		return "", &CompletionError{Kind: KindMalformed, Message: "failed to encode request", Err: err}
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", &CompletionError{Kind: KindTransport, Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")
	if a.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", a.cfg.UserAgent)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &CompletionError{Kind: KindTimeout, Message: "completion request timed out", Err: err}
		}
		return "", &CompletionError{Kind: KindTransport, Message: "completion request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &CompletionError{Kind: KindTimeout, Message: "reading completion timed out", Err: err}
		}
		return "", &CompletionError{Kind: KindTransport, Message: "failed to read response", Err: err}
	}

	var parsed messagesResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", &CompletionError{Kind: KindStatus, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", &CompletionError{Kind: KindMalformed, Message: "response is not valid JSON", Err: decodeErr}
	}
	if parsed.Error != nil {
		return "", &CompletionError{Kind: KindStatus, StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	for _, block := range parsed.Content {
		if block.Type == "text" || block.Type == "" {
			return block.Text, nil
		}
	}
	return "", &CompletionError{Kind: KindMalformed, Message: fmt.Sprintf("no text block in %d content blocks", len(parsed.Content))}
}
