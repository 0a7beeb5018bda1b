package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/okulcms/be-content-moderation/internal/repository"
)

// IdentityClient resolves requester/reviewer display identity from the
// platform identity service. The workflow only needs read-only display data
// (id, name, email); authentication itself is handled upstream.
type IdentityClient struct {
	baseURL string
	http    *http.Client
}

// NewIdentityClient creates a client for the identity service.
func NewIdentityClient(baseURL string) *IdentityClient {
	return &IdentityClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// GetUser returns display identity for a user.
func (c *IdentityClient) GetUser(ctx context.Context, userID string) (*repository.Identity, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/get?id=%s", c.baseURL, url.QueryEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call identity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity service returned status %d for user %s", resp.StatusCode, userID)
	}

	var ident repository.Identity
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if ident.ID == "" {
		ident.ID = userID
	}
	return &ident, nil
}
