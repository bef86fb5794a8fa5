package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// SessionCookie is the credential cookie issued by the identity provider.
const SessionCookie = "__session"

// IdentityClient talks to the external auth server.
type IdentityClient interface {
	FetchSession(ctx context.Context, token string) (map[string]any, error)
	Logout(ctx context.Context, token string) error
}

type identityClient struct {
	sessionURL string
	logoutURL  string
	timeout    time.Duration
}

// NewIdentityClient builds a client for the auth server endpoints. An empty
// sessionURL disables the client.
func NewIdentityClient(sessionURL, logoutURL string, timeout time.Duration) IdentityClient {
	if sessionURL == "" {
		return nil
	}
	return &identityClient{sessionURL: sessionURL, logoutURL: logoutURL, timeout: timeout}
}

func (c *identityClient) FetchSession(ctx context.Context, token string) (map[string]any, error) {
	agent := fiber.Get(c.sessionURL).
		Cookie(SessionCookie, token).
		Timeout(boundedTimeout(ctx, c.timeout))

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("auth server returned status %d", code)
	}

	claims := map[string]any{}
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("decode auth server response: %w", err)
	}
	return claims, nil
}

func (c *identityClient) Logout(ctx context.Context, token string) error {
	if c.logoutURL == "" {
		return nil
	}
	agent := fiber.Post(c.logoutURL).
		Cookie(SessionCookie, token).
		Timeout(boundedTimeout(ctx, c.timeout))

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code >= 400 {
		return fmt.Errorf("auth server logout returned status %d", code)
	}
	return nil
}

// boundedTimeout clamps timeout to the context deadline.
func boundedTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			return remaining
		}
	}
	return timeout
}
