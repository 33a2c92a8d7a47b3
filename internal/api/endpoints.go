package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Health checks server reachability.
func (c *Client) Health(ctx context.Context) error {
	return c.Do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// GetAuthParams fetches the public KDF parameters for an account.
func (c *Client) GetAuthParams(ctx context.Context, email string) (*AuthParams, error) {
	var params AuthParams
	path := fmt.Sprintf("/api/auth/params?email=%s", url.QueryEscape(email))
	if err := c.Do(ctx, http.MethodGet, path, nil, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// Register creates a new account and installs the returned session token.
func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.Do(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// Login authenticates with a verifier and installs the session token.
func (c *Client) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.Do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// Logout invalidates the current session token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// UpdateAccountKeys replaces the account's authentication material and
// rewrapped keys in a single request. The server applies it atomically.
func (c *Client) UpdateAccountKeys(ctx context.Context, req *UpdateKeysRequest) error {
	return c.Do(ctx, http.MethodPut, "/api/auth/keys", req, nil)
}

// VerifyRecovery checks a recovery phrase hash and returns a short-lived
// session token scoped to the key update that follows.
func (c *Client) VerifyRecovery(ctx context.Context, req *VerifyRecoveryRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.Do(ctx, http.MethodPost, "/api/auth/recover", req, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// SyncStatus fetches the account's current sync version. It is the
// lightweight call polling uses to detect changes without pulling.
func (c *Client) SyncStatus(ctx context.Context) (*SyncStatusResponse, error) {
	var resp SyncStatusResponse
	if err := c.Do(ctx, http.MethodGet, "/api/sync/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OpenEventStream opens the server-sent events stream of change hints.
// The caller owns the response body and must close it.
func (c *Client) OpenEventStream(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sync/events", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Event streams bypass the client timeout; they stay open until the
	// context is canceled.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err, URL: req.URL.String()}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseErrorResponse(resp)
	}
	return resp, nil
}

// PullChanges fetches every entity changed after sinceVersion.
func (c *Client) PullChanges(ctx context.Context, sinceVersion uint64) (*PullResponse, error) {
	var resp PullResponse
	path := fmt.Sprintf("/api/sync/pull?since=%d", sinceVersion)
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PushChanges uploads modified entities and returns the arbitration result.
func (c *Client) PushChanges(ctx context.Context, req *PushRequest) (*PushResponse, error) {
	var resp PushResponse
	if err := c.Do(ctx, http.MethodPost, "/api/sync/push", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
