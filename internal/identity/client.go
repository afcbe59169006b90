package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"highway_monitor/internal/model"
)

// ErrTransport marks failures that never produced a provider answer
var ErrTransport = errors.New("identity provider unreachable")

// APIError is a provider answer that did not yield a session
type APIError struct {
	StatusCode int
	Details    map[string]any
}

func (e *APIError) Error() string {
	if msg, ok := e.Details["error_description"].(string); ok {
		return fmt.Sprintf("identity provider returned %d: %s", e.StatusCode, msg)
	}
	if msg, ok := e.Details["msg"].(string); ok {
		return fmt.Sprintf("identity provider returned %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("identity provider returned %d", e.StatusCode)
}

// Client talks to the hosted auth endpoints of the identity provider
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
}

func NewClient(baseURL, anonKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, anonKey: anonKey, http: httpClient}
}

// AuthorizeURL is where the browser goes to start an OAuth sign-in with provider
func (c *Client) AuthorizeURL(provider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// ExchangeCode trades an OAuth authorization code for a token pair
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*model.TokenPair, error) {
	return c.token(ctx, "pkce", map[string]string{"code": code, "redirect_uri": redirectURI})
}

// RefreshSession rotates a refresh token into a new token pair
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (c *Client) token(ctx context.Context, grantType string, payload map[string]string) (*model.TokenPair, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	endpoint := c.baseURL + "/auth/v1/token?grant_type=" + url.QueryEscape(grantType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read token response: %v", ErrTransport, err)
	}

	var details map[string]any
	_ = json.Unmarshal(raw, &details)

	var pair model.TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil || resp.StatusCode >= 300 || pair.AccessToken == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Details: details}
	}
	return &pair, nil
}

// SignOut revokes the session behind accessToken
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("failed to build logout request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnauthorized {
		var details map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&details)
		return &APIError{StatusCode: resp.StatusCode, Details: details}
	}
	return nil
}
