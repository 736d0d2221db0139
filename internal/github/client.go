// ABOUTME: GitHub REST client for repository create/delete operations.
// ABOUTME: Maps upstream status codes to sentinel errors for the dispatcher.

package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gogithub "github.com/google/go-github/v79/github"
)

// ErrRepositoryExists indicates a repository with the same name already exists.
var ErrRepositoryExists = errors.New("repository already exists")

// ErrRepositoryNotFound indicates the repository does not exist.
var ErrRepositoryNotFound = errors.New("repository not found")

// ErrUnauthorized indicates the token was rejected or lacks the required scope.
var ErrUnauthorized = errors.New("unauthorized")

// UpstreamError wraps an unexpected non-2xx response from the GitHub API.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github api error (status %d): %s", e.StatusCode, e.Message)
}

// DefaultTimeout bounds every outbound GitHub call.
const DefaultTimeout = 30 * time.Second

// Repository is the subset of the upstream repository resource we report back.
type Repository struct {
	FullName string
	HTMLURL  string
	CloneURL string
}

// CreateRepositoryParams are the parameters for CreateRepository.
type CreateRepositoryParams struct {
	Name        string
	Private     bool
	Description string
	AutoInit    bool
}

// Config holds configuration for the GitHub client.
type Config struct {
	Token   string        // bearer token, required
	BaseURL string        // override for tests; empty means api.github.com
	Timeout time.Duration // per-call HTTP timeout; DefaultTimeout if zero
	Logger  *slog.Logger
}

// Client wraps the GitHub REST API for repository management.
// The token is fixed at construction and never re-read.
type Client struct {
	gh     *gogithub.Client
	logger *slog.Logger

	mu    sync.Mutex
	login string // cached authenticated-user login for delete paths
}

// NewClient creates a new GitHub client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("token is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gh := gogithub.NewClient(&http.Client{Timeout: timeout}).WithAuthToken(cfg.Token)

	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		gh.BaseURL = u
	}

	return &Client{
		gh:     gh,
		logger: logger.With("component", "github"),
	}, nil
}

// CreateRepository creates a repository for the authenticated user.
// Exactly one repository call is made; there are no retries.
func (c *Client) CreateRepository(ctx context.Context, params CreateRepositoryParams) (*Repository, error) {
	repo := &gogithub.Repository{
		Name:     gogithub.Ptr(params.Name),
		Private:  gogithub.Ptr(params.Private),
		AutoInit: gogithub.Ptr(params.AutoInit),
	}
	if params.Description != "" {
		repo.Description = gogithub.Ptr(params.Description)
	}

	created, resp, err := c.gh.Repositories.Create(ctx, "", repo)
	if err != nil {
		status, msg := upstreamDetail(resp, err)
		c.logger.Warn("create repository failed",
			"name", params.Name,
			"status", status,
			"error", err,
		)
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		case http.StatusUnprocessableEntity:
			return nil, fmt.Errorf("%w: %s", ErrRepositoryExists, msg)
		}
		return nil, &UpstreamError{StatusCode: status, Message: msg}
	}

	c.logger.Info("repository created",
		"full_name", created.GetFullName(),
		"private", params.Private,
	)

	return &Repository{
		FullName: created.GetFullName(),
		HTMLURL:  created.GetHTMLURL(),
		CloneURL: created.GetCloneURL(),
	}, nil
}

// DeleteRepository deletes the named repository owned by the authenticated user.
func (c *Client) DeleteRepository(ctx context.Context, name string) error {
	owner, err := c.authenticatedLogin(ctx)
	if err != nil {
		return err
	}

	resp, err := c.gh.Repositories.Delete(ctx, owner, name)
	if err != nil {
		status, msg := upstreamDetail(resp, err)
		c.logger.Warn("delete repository failed",
			"owner", owner,
			"name", name,
			"status", status,
			"error", err,
		)
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, owner, name)
		}
		return &UpstreamError{StatusCode: status, Message: msg}
	}

	c.logger.Info("repository deleted", "owner", owner, "name", name)
	return nil
}

// authenticatedLogin resolves the token owner's login, caching it for the
// client lifetime. The token cannot change mid-run, so one lookup suffices.
func (c *Client) authenticatedLogin(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.login != "" {
		return c.login, nil
	}

	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		status, msg := upstreamDetail(resp, err)
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return "", fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return "", &UpstreamError{StatusCode: status, Message: msg}
	}

	c.login = user.GetLogin()
	return c.login, nil
}

// upstreamDetail extracts the status code and upstream message from a failed
// go-github call so errors carry diagnostics.
func upstreamDetail(resp *gogithub.Response, err error) (int, string) {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	msg := err.Error()
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Message != "" {
		msg = ghErr.Message
	}
	return status, msg
}
