package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Placeholder values returned when a user cannot be resolved. The directory
// only resolves organizer accounts by id.
const (
	PlaceholderName  = "User"
	PlaceholderEmail = ""
)

const maxConcurrentLookups = 8

// Info is what the directory knows about one user.
type Info struct {
	Name        string
	Email       string
	IsOrganizer bool
}

// Client resolves user ids to names and emails. Lookups never fail; unknown
// users resolve to placeholders.
type Client interface {
	Lookup(ctx context.Context, userID string) Info
	LookupMany(ctx context.Context, userIDs []string) map[string]Info
}

type client struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient builds a directory client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout, logger: logger}
}

func placeholder() Info {
	return Info{Name: PlaceholderName, Email: PlaceholderEmail}
}

func (c *client) Lookup(ctx context.Context, userID string) Info {
	if userID == "" || c.baseURL == "" {
		return placeholder()
	}
	info, err := c.fetchOrganizer(ctx, userID)
	if err != nil {
		c.logger.Debug("directory lookup fell back to placeholder", zap.String("user_id", userID), zap.Error(err))
		return placeholder()
	}
	return info
}

func (c *client) LookupMany(ctx context.Context, userIDs []string) map[string]Info {
	result := make(map[string]Info, len(userIDs))
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, maxConcurrentLookups)
	)
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		mu.Lock()
		_, seen := result[id]
		if !seen {
			result[id] = placeholder()
		}
		mu.Unlock()
		if seen {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			info := c.Lookup(ctx, id)
			mu.Lock()
			result[id] = info
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return result
}

func (c *client) fetchOrganizer(ctx context.Context, userID string) (Info, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Info{}, ctx.Err()
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Get(c.baseURL + "/organizers/" + url.PathEscape(userID)).Timeout(timeout)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return Info{}, errors.Join(errs...)
	}
	if code < 200 || code >= 300 {
		return Info{}, fmt.Errorf("directory returned status %d", code)
	}

	var payload struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Info{}, fmt.Errorf("decode organizer: %w", err)
	}
	return Info{
		Name:        strings.TrimSpace(payload.FirstName + " " + payload.LastName),
		Email:       payload.Email,
		IsOrganizer: true,
	}, nil
}
