// Package dispatch hands build jobs to the external image runner and
// authenticates what the runner sends back.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bitswalk/y12/src/common/logs"
	"github.com/hashicorp/go-retryablehttp"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the dispatch package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Dispatcher starts the external image build of a job.
// Trigger returns false with a nil error when dispatch is not configured.
type Dispatcher interface {
	Trigger(ctx context.Context, jobID string) (bool, error)
	Enabled() bool
}

const (
	DefaultGitHubAPI = "https://api.github.com"
	DefaultWorkflow  = "build-iso.yml"
	DefaultRef       = "main"
	DefaultTimeout   = 15 * time.Second
)

// GitHubConfig configures workflow_dispatch
type GitHubConfig struct {
	Token    string
	Repo     string
	Workflow string
	Ref      string
	APIURL   string
	// CallbackURL is the API base the runner reports to, passed as api_url
	CallbackURL string
	UserAgent   string
	Timeout     time.Duration
}

// GitHubDispatcher triggers a GitHub Actions workflow per job
type GitHubDispatcher struct {
	cfg    GitHubConfig
	client *retryablehttp.Client
	tokens *TokenIssuer
}

// NewGitHubDispatcher creates a dispatcher. tokens may be nil, then no
// callback token is passed to the workflow.
func NewGitHubDispatcher(cfg GitHubConfig, tokens *TokenIssuer) *GitHubDispatcher {
	if cfg.Workflow == "" {
		cfg.Workflow = DefaultWorkflow
	}
	if cfg.Ref == "" {
		cfg.Ref = DefaultRef
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultGitHubAPI
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := retryablehttp.NewClient()
	// a repeated dispatch would start a second workflow run
	c.RetryMax = 0
	c.Logger = log.Leveled()
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.HTTPClient.Timeout = cfg.Timeout

	return &GitHubDispatcher{cfg: cfg, client: c, tokens: tokens}
}

// Enabled reports whether a token and repository are configured
func (d *GitHubDispatcher) Enabled() bool {
	return d.cfg.Token != "" && d.cfg.Repo != ""
}

// Repo returns the configured owner/name
func (d *GitHubDispatcher) Repo() string {
	return d.cfg.Repo
}

type dispatchRequest struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs"`
}

// Trigger posts a workflow_dispatch event for jobID
func (d *GitHubDispatcher) Trigger(ctx context.Context, jobID string) (bool, error) {
	if !d.Enabled() {
		log.Debug("Dispatch not configured, skipping", "job_id", jobID)
		return false, nil
	}

	inputs := map[string]string{
		"job_id":  jobID,
		"api_url": d.cfg.CallbackURL,
	}
	if d.tokens != nil {
		token, err := d.tokens.Mint(jobID)
		if err != nil {
			return false, fmt.Errorf("failed to mint callback token: %w", err)
		}
		inputs["callback_token"] = token
	}

	body, err := json.Marshal(dispatchRequest{Ref: d.cfg.Ref, Inputs: inputs})
	if err != nil {
		return false, fmt.Errorf("failed to encode dispatch request: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/actions/workflows/%s/dispatches", d.cfg.APIURL, d.cfg.Repo, d.cfg.Workflow)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		log.Error("Workflow dispatch failed", "job_id", jobID, "repo", d.cfg.Repo, "error", err)
		return false, fmt.Errorf("failed to dispatch workflow: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error("Workflow dispatch rejected", "job_id", jobID, "repo", d.cfg.Repo, "status", resp.StatusCode)
		return false, fmt.Errorf("workflow dispatch returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	log.Info("Workflow dispatched", "job_id", jobID, "repo", d.cfg.Repo, "workflow", d.cfg.Workflow)
	return true, nil
}
