// SPDX-License-Identifier: Apache-2.0

// Package adapter implements the HTTP transport the client sync engine
// speaks to a zann server, on top of resty.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zann-sh/zann/models"
)

// Transport-level failures surfaced to the sync engine.
var (
	ErrUnauthorized = errors.New("client unauthorized")
	ErrServer       = errors.New("server error")
)

// HTTPClientConfig configures the server adapter.
type HTTPClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// ServerAdapter is the resty-backed implementation of the sync transport.
type ServerAdapter struct {
	client *resty.Client

	mu    sync.RWMutex
	token string
}

// NewServerAdapter constructs a [ServerAdapter] for one server.
func NewServerAdapter(cfg HTTPClientConfig) *ServerAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &ServerAdapter{client: cli, token: strings.TrimSpace(cfg.Token)}
}

// SetToken replaces the bearer credential presented on every request.
func (a *ServerAdapter) SetToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = strings.TrimSpace(token)
}

func (a *ServerAdapter) bearer() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Pull implements the sync transport against POST /v1/sync/pull.
func (a *ServerAdapter) Pull(ctx context.Context, req *models.SyncPullRequest) (*models.SyncPullResponse, error) {
	out := &models.SyncPullResponse{}
	if err := a.postJSON(ctx, "/v1/sync/pull", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Push implements the sync transport against POST /v1/sync/push.
func (a *ServerAdapter) Push(ctx context.Context, req *models.SyncPushRequest) (*models.SyncPushResponse, error) {
	out := &models.SyncPushResponse{}
	if err := a.postJSON(ctx, "/v1/sync/push", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Meta fetches the server identity from GET /v1/meta.
func (a *ServerAdapter) Meta(ctx context.Context) (*models.MetaResponse, error) {
	out := &models.MetaResponse{}
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(out).
		Get("/v1/meta")
	if err != nil {
		return nil, fmt.Errorf("meta request: %w", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *ServerAdapter) postJSON(ctx context.Context, path string, body, out any) error {
	request := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(out)
	if token := a.bearer(); token != "" {
		request.SetHeader("Authorization", "Bearer "+token)
	}

	resp, err := request.Post(path)
	if err != nil {
		return fmt.Errorf("%s request: %w", path, err)
	}
	return mapHTTPError(resp)
}

func mapHTTPError(resp *resty.Response) error {
	switch {
	case resp.StatusCode() < 400:
		return nil
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status())
	default:
		return fmt.Errorf("%w: %s: %s", ErrServer, resp.Status(), strings.TrimSpace(string(resp.Body())))
	}
}
