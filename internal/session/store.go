package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/mentor-queue/internal/domain"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Data is the server-side state kept for one browser session.
type Data struct {
	UserID     string            `json:"user_id"`
	UserName   string            `json:"user_name"`
	UserEmail  string            `json:"user_email"`
	Privilege  int               `json:"privilege"`
	Trust      domain.TrustLevel `json:"trust"`
	OAuthState string            `json:"oauth_state,omitempty"`
}

// Authenticated reports whether the session carries a resolved identity.
func (d *Data) Authenticated() bool {
	return d != nil && d.UserID != ""
}

// Store persists session data keyed by an opaque id.
type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Save(ctx context.Context, id string, data *Data) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// NewStore returns a Redis-backed store, or an in-memory one when client is nil.
func NewStore(client *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if client == nil {
		return NewMemoryStore(ttl)
	}
	return &redisStore{client: client, ttl: ttl}
}

// NewID generates a fresh session id.
func NewID() string {
	return uuid.NewString()
}
