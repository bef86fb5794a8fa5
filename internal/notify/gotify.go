package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// GotifyChannel pushes messages to a Gotify server.
type GotifyChannel struct {
	baseURL string
	token   string
	timeout time.Duration
}

// NewGotifyChannel returns nil when no token is configured.
func NewGotifyChannel(baseURL, token string, timeout time.Duration) *GotifyChannel {
	if token == "" || baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GotifyChannel{baseURL: strings.TrimRight(baseURL, "/"), token: token, timeout: timeout}
}

func (g *GotifyChannel) Name() string { return "gotify" }

func (g *GotifyChannel) Send(ctx context.Context, msg Message) error {
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	endpoint := g.baseURL + "/message"
	query := "token=" + url.QueryEscape(g.token)
	agent := fiber.Post(endpoint).
		QueryString(query).
		JSON(fiber.Map{
			"title":    msg.Title,
			"message":  msg.Body,
			"priority": msg.Priority,
		}).
		Timeout(timeout)

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("gotify returned status %d", code)
	}
	return nil
}
