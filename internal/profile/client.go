// Package profile looks up user display data for join enrichment.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Profile is the subset of a user profile the coordinator cares about.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Lookup resolves display name and avatar for a user id.
type Lookup interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// Client implements Lookup against the user-profile service REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a profile client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// GetProfile implements Lookup. GET {base}/users/:id/profile.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	u := fmt.Sprintf("%s/users/%s/profile", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile service: unexpected status %d for user %s", resp.StatusCode, userID)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("profile service: decode: %w", err)
	}
	return &p, nil
}
