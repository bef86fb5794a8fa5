package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/mentor-queue/internal/domain"
	"github.com/spec-kit/mentor-queue/internal/repository"
	"github.com/spec-kit/mentor-queue/internal/session"
	apperrors "github.com/spec-kit/mentor-queue/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. It is the explicit context
// object handed from the HTTP layer to services.
type Principal struct {
	SessionID string
	UserID    string
	Name      string
	Email     string
	Role      domain.Role
	Privilege int
	Trust     domain.TrustLevel
}

// IsStaff reports whether the caller may work the queue.
func (p *Principal) IsStaff() bool {
	return p != nil && (p.Role == domain.RoleMentor || p.Role == domain.RoleAdmin)
}

// IdentityResolver resolves a provider token into an identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Identity, error)
}

// MiddlewareConfig holds session cookie and access settings.
type MiddlewareConfig struct {
	CookieName   string
	CookieSecure bool
	TTL          time.Duration
	MinAccess    int
	MinAdmin     int
	LoginURL     string
}

// AuthMiddleware loads principals from the server-side session, falling back
// to the provider session cookie.
type AuthMiddleware struct {
	resolver IdentityResolver
	sessions session.Store
	users    repository.UserRepository
	cfg      MiddlewareConfig
	logger   *zap.Logger
}

// AuthMiddlewareDependencies bundles constructor inputs.
type AuthMiddlewareDependencies struct {
	Resolver IdentityResolver
	Sessions session.Store
	Users    repository.UserRepository
	Config   MiddlewareConfig
	Logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(deps AuthMiddlewareDependencies) *AuthMiddleware {
	cfg := deps.Config
	if cfg.CookieName == "" {
		cfg.CookieName = "mq_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		resolver: deps.Resolver,
		sessions: deps.Sessions,
		users:    deps.Users,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.Authenticate(c)
	if err != nil {
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Authenticate returns the caller's principal, establishing a session from
// the provider cookie when there is none yet.
func (m *AuthMiddleware) Authenticate(c *fiber.Ctx) (*Principal, error) {
	if sid := c.Cookies(m.cfg.CookieName); sid != "" {
		if principal, ok := m.fromSession(c.UserContext(), sid); ok {
			return principal, nil
		}
	}

	token := c.Cookies(SessionCookie)
	if token == "" {
		return nil, apperrors.NewUnauthenticated("login required", map[string]any{"login_url": m.cfg.LoginURL})
	}
	return m.Establish(c, token)
}

// Establish resolves the provider token, enforces the access level, syncs the
// local user row and writes a fresh server-side session.
func (m *AuthMiddleware) Establish(c *fiber.Ctx, token string) (*Principal, error) {
	ctx := c.UserContext()
	identity, err := m.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if !HasAccess(identity.Privilege, m.cfg.MinAccess) {
		m.logger.Info("access denied",
			zap.String("subject_id", identity.SubjectID),
			zap.Int("privilege", identity.Privilege),
			zap.Int("required", m.cfg.MinAccess))
		return nil, apperrors.NewInsufficientPrivilege(m.cfg.MinAccess, identity.Privilege)
	}

	name := identity.DisplayName
	if name == unknownUser {
		name = ""
	}
	user := &domain.User{
		ID:    identity.SubjectID,
		Role:  RoleForPrivilege(identity.Privilege, m.cfg.MinAdmin),
		Name:  name,
		Email: identity.Email,
	}
	if err := m.users.Upsert(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	sid := c.Cookies(m.cfg.CookieName)
	if sid == "" {
		sid = session.NewID()
	}
	data := &session.Data{
		UserID:    user.ID,
		UserName:  identity.DisplayName,
		UserEmail: identity.Email,
		Privilege: identity.Privilege,
		Trust:     identity.Trust,
	}
	if err := m.sessions.Save(ctx, sid, data); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	m.setCookie(c, sid, time.Now().Add(m.cfg.TTL))

	return principalFor(sid, data, user), nil
}

// ClearSession removes the server-side session and expires its cookie.
func (m *AuthMiddleware) ClearSession(c *fiber.Ctx) error {
	sid := c.Cookies(m.cfg.CookieName)
	if sid != "" {
		if err := m.sessions.Delete(c.UserContext(), sid); err != nil {
			return err
		}
	}
	m.setCookie(c, "", time.Unix(0, 0))
	return nil
}

func (m *AuthMiddleware) fromSession(ctx context.Context, sid string) (*Principal, bool) {
	data, err := m.sessions.Get(ctx, sid)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			m.logger.Warn("session lookup failed", zap.Error(err))
		}
		return nil, false
	}
	if !data.Authenticated() {
		return nil, false
	}
	user, err := m.users.GetByID(ctx, data.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			m.logger.Warn("session user lookup failed", zap.Error(err))
		}
		return nil, false
	}
	return principalFor(sid, data, user), true
}

func (m *AuthMiddleware) setCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func principalFor(sid string, data *session.Data, user *domain.User) *Principal {
	name := user.Name
	if name == "" {
		name = data.UserName
	}
	email := user.Email
	if email == "" {
		email = data.UserEmail
	}
	return &Principal{
		SessionID: sid,
		UserID:    user.ID,
		Name:      name,
		Email:     email,
		Role:      user.Role,
		Privilege: data.Privilege,
		Trust:     data.Trust,
	}
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
