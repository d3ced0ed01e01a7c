package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// refreshLeeway triggers a proactive token refresh shortly before the
// access token actually expires, avoiding a guaranteed 401 round trip.
const refreshLeeway = 30 * time.Second

// Client is the request layer shared by live calls and queue drains. Every
// call resolves a base URL first; a network error or 502/503/504 against
// the primary is retried once against the fixed fallback base.
type Client struct {
	Resolver   *Resolver
	HTTPClient *http.Client
	// Tokens is optional; when set, requests carry a bearer token and a
	// single 401 triggers one refresh-and-retry.
	Tokens TokenSource
	// OnAuthInvalid is invoked after a failed refresh cleared the tokens.
	OnAuthInvalid func()
	// DeviceID, when set, is sent as X-Device-Id on every request.
	DeviceID string
}

// New creates a Client over the given resolver.
func New(resolver *Resolver) *Client {
	return &Client{
		Resolver:   resolver,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Get performs a GET and returns the response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, nil, "", nil)
}

// Post performs a JSON POST and returns the response body. A nil body
// sends an empty request body.
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	return c.Do(ctx, http.MethodPost, path, body, contentType, nil)
}

// Upload posts a raw binary payload using the backend's attachment
// contract: the payload as the body, its media type as Content-Type and
// the original file name in x-filename.
func (c *Client) Upload(ctx context.Context, path, fileName, contentType string, data []byte) ([]byte, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extra := http.Header{}
	extra.Set("x-filename", fileName)
	return c.Do(ctx, http.MethodPost, path, data, contentType, extra)
}

// Do performs one call with resolver-driven failover. The body is a byte
// slice, not a reader, so the failover retry can replay it.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, contentType string, extra http.Header) ([]byte, error) {
	base := c.Resolver.BaseURL(ctx)
	data, err := c.doOnce(ctx, base, method, path, body, contentType, extra)
	if err == nil {
		return data, nil
	}
	fallback := c.Resolver.FallbackURL()
	if base != fallback && (IsNetworkError(err) || IsServerUnavailable(err)) {
		c.Resolver.MarkUnavailable(base)
		return c.doOnce(ctx, fallback, method, path, body, contentType, extra)
	}
	return nil, err
}

// doOnce performs one call against one base, handling the 401
// refresh-and-retry cycle. Auth failures are never queued: a failed
// refresh clears the tokens, notifies, and surfaces a 401.
func (c *Client) doOnce(ctx context.Context, base, method, path string, body []byte, contentType string, extra http.Header) ([]byte, error) {
	if c.Tokens != nil {
		if tok := c.Tokens.AccessToken(); tok != "" && TokenExpired(tok, refreshLeeway) {
			c.Tokens.RefreshAccessToken(ctx)
		}
	}

	data, status, err := c.send(ctx, base, method, path, body, contentType, extra)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && c.Tokens != nil {
		if !c.Tokens.RefreshAccessToken(ctx) {
			c.Tokens.ClearTokens()
			if c.OnAuthInvalid != nil {
				c.OnAuthInvalid()
			}
			return nil, &Error{Status: http.StatusUnauthorized, Message: "unauthorized"}
		}
		data, status, err = c.send(ctx, base, method, path, body, contentType, extra)
		if err != nil {
			return nil, err
		}
	}

	if status >= 400 {
		return nil, parseError(status, data)
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, base, method, path string, body []byte, contentType string, extra http.Header) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Tokens != nil {
		if tok := c.Tokens.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-Id", c.DeviceID)
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}
