// Package supabase resolves caller sessions issued by the Supabase auth server.
package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
)

// AuthClient proves sessions by asking the auth server who the bearer is.
type AuthClient struct {
	url     string
	anonKey string
	client  *http.Client
}

var _ gateway.IdentityResolver = (*AuthClient)(nil)

func NewAuthClient(baseURL, anonKey string, timeout time.Duration) *AuthClient {
	return &AuthClient{
		url:     strings.TrimRight(baseURL, "/") + "/auth/v1/user",
		anonKey: anonKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type authUser struct {
	ID          string                 `json:"id"`
	Email       string                 `json:"email"`
	Role        string                 `json:"role"`
	AppMetadata map[string]interface{} `json:"app_metadata"`
}

func (c *AuthClient) Resolve(ctx context.Context, token string) (gateway.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return gateway.Identity{}, errors.Wrap(err, "building request")
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return gateway.Identity{}, errors.Wrap(err, "calling auth server")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return gateway.Identity{}, ErrInvalidToken
	}
	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return gateway.Identity{}, errors.Errorf("auth server responded %d", resp.StatusCode)
	}

	var usr authUser
	if err = json.NewDecoder(resp.Body).Decode(&usr); err != nil {
		return gateway.Identity{}, errors.Wrap(err, "decoding user")
	}
	if usr.ID == "" {
		return gateway.Identity{}, errors.Wrap(ErrMissingClaim, "id")
	}
	role := usr.Role
	if role == "" {
		role = "authenticated"
	}
	return gateway.Identity{
		UserID: usr.ID,
		Email:  usr.Email,
		Role:   role,
		Claims: map[string]interface{}{"sub": usr.ID, "email": usr.Email, "role": role, "app_metadata": usr.AppMetadata},
	}, nil
}

// NewIdentityResolver verifies sessions locally when a JWT secret is configured,
// and against the auth server otherwise.
func NewIdentityResolver(conf *core.Config) gateway.IdentityResolver {
	if conf.Supabase.JWTSecret != "" {
		return NewJWTVerifier(conf.Supabase.JWTSecret)
	}
	return NewAuthClient(conf.Supabase.URL, conf.Supabase.AnonKey, conf.Gateway.UpstreamTimeout)
}
