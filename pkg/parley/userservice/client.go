// Package userservice talks to the remote user service that owns user
// profiles and access tokens.
package userservice

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

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/repository"
	"github.com/tsarna/parley/pkg/parley/result"
)

const (
	DefaultTimeout = 5 * time.Second
	maxBodySize    = 1 << 20
)

// Client implements repository.UserDirectory and repository.TokenValidator
// against the user service's HTTP API. Remote replies are already shaped as
// {status, message, data} and are passed through unchanged.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ repository.UserDirectory  = (*Client)(nil)
	_ repository.TokenValidator = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(cl *Client) {
		if timeout > 0 {
			cl.httpClient = &http.Client{Timeout: timeout, Transport: cl.httpClient.Transport}
		}
	}
}

// New returns a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid user service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("user service url must be http or https")
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetUserByID fetches GET {base}/users/{id}.
func (c *Client) GetUserByID(ctx context.Context, userID string) result.Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return result.Failure(http.StatusInternalServerError, "Failed to fetch user by id from remote service: "+err.Error())
	}

	r, err := c.do(req)
	if err != nil {
		c.logger.Warn("User lookup failed", zap.String("user_id", userID), zap.Error(err))
		return result.Failure(http.StatusInternalServerError, "Failed to fetch user by id from remote service: "+err.Error())
	}
	return r
}

// ValidateAccessToken posts the token to {base}/validate-access-token.
func (c *Client) ValidateAccessToken(ctx context.Context, token string) result.Result {
	const prefix = "An error occurred during the validation of the user's token: "

	body, err := json.Marshal(struct {
		AccessToken string `json:"accessToken"`
	}{token})
	if err != nil {
		return result.FromError(prefix, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate-access-token", bytes.NewReader(body))
	if err != nil {
		return result.FromError(prefix, err)
	}
	req.Header.Set("Content-Type", "application/json")

	r, err := c.do(req)
	if err != nil {
		c.logger.Warn("Token validation request failed", zap.Error(err))
		return result.FromError(prefix, err)
	}
	return r
}

func (c *Client) do(req *http.Request) (result.Result, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return result.Result{}, err
	}

	c.logger.Debug("User service response",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("http_status", resp.StatusCode),
	)

	return result.Parse(body), nil
}
