// Package token fetches provider access tokens from the platform's OAuth
// subsystem. Refresh and storage of grants live there; this client only asks
// for a currently-valid token for a user+provider pair.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// expiryMargin is subtracted from the reported lifetime so a token is never
// handed out moments before it expires mid-request.
const expiryMargin = 30 * time.Second

type Client struct {
	baseURL string
	client  *http.Client
	clock   func() time.Time

	mu    sync.Mutex
	cache map[cacheKey]cachedToken
}

type cacheKey struct {
	userID   uuid.UUID
	provider string
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		clock:   time.Now,
		cache:   make(map[cacheKey]cachedToken),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// AccessToken returns a valid access token for the user and provider,
// serving from the in-process cache when the cached token is still fresh.
func (c *Client) AccessToken(ctx context.Context, userID uuid.UUID, provider string) (string, error) {
	key := cacheKey{userID: userID, provider: provider}

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok && c.clock().Before(cached.expiresAt) {
		c.mu.Unlock()
		return cached.token, nil
	}
	c.mu.Unlock()

	reqURL := fmt.Sprintf("%s/tokens?user_id=%s&provider=%s",
		c.baseURL, userID.String(), url.QueryEscape(provider))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("token: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token: status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("token: decode: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token: empty access_token for user=%s provider=%s", userID, provider)
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl > expiryMargin {
		c.mu.Lock()
		c.cache[key] = cachedToken{
			token:     tr.AccessToken,
			expiresAt: c.clock().Add(ttl - expiryMargin),
		}
		c.mu.Unlock()
	}

	return tr.AccessToken, nil
}
