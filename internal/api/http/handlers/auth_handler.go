package handlers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/mentor-queue/internal/api/dto"
	"github.com/spec-kit/mentor-queue/internal/auth"
	"github.com/spec-kit/mentor-queue/internal/service"
	"github.com/spec-kit/mentor-queue/internal/session"
	apperrors "github.com/spec-kit/mentor-queue/pkg/util/errorutil"
)

// AuthURLs are the redirect targets used by the login flow. BackendURL must
// include any path prefix the API is served under.
type AuthURLs struct {
	FrontendURL string
	BackendURL  string
	LoginURL    string
}

// AuthHandler serves the session lifecycle and profile endpoints.
type AuthHandler struct {
	middleware *auth.AuthMiddleware
	identity   auth.IdentityClient
	sessions   session.Store
	accounts   *service.AccountService
	urls       AuthURLs
	logger     *zap.Logger
}

// AuthHandlerDependencies bundles constructor inputs.
type AuthHandlerDependencies struct {
	Middleware *auth.AuthMiddleware
	Identity   auth.IdentityClient
	Sessions   session.Store
	Accounts   *service.AccountService
	URLs       AuthURLs
	Logger     *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(deps AuthHandlerDependencies) *AuthHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		middleware: deps.Middleware,
		identity:   deps.Identity,
		sessions:   deps.Sessions,
		accounts:   deps.Accounts,
		urls:       deps.URLs,
		logger:     logger,
	}
}

// Login GET /auth/login sends the browser to the identity provider, or
// straight back when a session already exists.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	returnURL := h.returnURL(c)
	if _, err := h.middleware.Authenticate(c); err == nil {
		return c.Redirect(returnURL)
	}
	callback := h.urls.BackendURL + "/auth/callback?" + url.Values{"return_url": {returnURL}}.Encode()
	return c.Redirect(h.urls.LoginURL + "?" + url.Values{"returnTo": {callback}}.Encode())
}

// Callback GET /auth/callback establishes a session from the provider cookie.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	token := c.Cookies(auth.SessionCookie)
	if token == "" {
		h.logger.Info("login callback without provider session")
		return c.Redirect(h.loginFailedURL())
	}
	if _, err := h.middleware.Establish(c, token); err != nil {
		h.logger.Info("login callback failed", zap.Error(err))
		return c.Redirect(h.loginFailedURL())
	}
	return c.Redirect(h.returnURL(c))
}

// Logout GET|POST /auth/logout ends both the provider and the local session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if token := c.Cookies(auth.SessionCookie); token != "" && h.identity != nil {
		if err := h.identity.Logout(c.UserContext(), token); err != nil {
			h.logger.Warn("provider logout failed", zap.Error(err))
		}
	}
	if err := h.middleware.ClearSession(c); err != nil {
		h.logger.Warn("clear session failed", zap.Error(err))
	}
	return c.Redirect(h.urls.FrontendURL)
}

// WhoAmI GET /auth/whoami.
func (h *AuthHandler) WhoAmI(c *fiber.Ctx) error {
	principal, err := h.middleware.Authenticate(c)
	if err != nil {
		resp := dto.LoggedOutResponse{LoggedIn: false}
		if domainErr := apperrors.ToDomainError(err); domainErr.Code == apperrors.CodeForbidden {
			resp.Error = "Insufficient permissions"
		}
		return c.JSON(resp)
	}
	user, err := h.accounts.Profile(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(dto.WhoAmIResponse{
		UserResponse: dto.NewUserResponse(*user, principal.Name, principal.Email),
		LoggedIn:     true,
	})
}

// Update POST /auth/update edits the caller's profile.
func (h *AuthHandler) Update(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ProfileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	if _, err := h.accounts.UpdateProfile(c.UserContext(), principal, service.ProfileUpdateInput{
		Role:      req.Role,
		Password:  req.Password,
		Location:  req.Location,
		ZoomLink:  req.ZoomLink,
		Discord:   req.Discord,
		Phone:     req.Phone,
		Preferred: req.Preferred,
	}); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Your information has been updated!"})
}

// DiscordLogin GET /auth/discord/login starts account linking.
func (h *AuthHandler) DiscordLogin(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	state := uuid.NewString()
	if err := h.updateSession(c, principal, func(d *session.Data) { d.OAuthState = state }); err != nil {
		return err
	}
	target, err := h.accounts.DiscordAuthURL(state)
	if err != nil {
		return c.Redirect(h.discordFailedURL())
	}
	return c.Redirect(target)
}

// DiscordCallback GET /auth/discord/callback completes account linking.
func (h *AuthHandler) DiscordCallback(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	data, err := h.sessions.Get(c.UserContext(), principal.SessionID)
	if err != nil || data.OAuthState == "" || data.OAuthState != c.Query("state") {
		h.logger.Info("discord callback state mismatch", zap.String("user_id", principal.UserID))
		return c.Redirect(h.discordFailedURL())
	}
	if err := h.updateSession(c, principal, func(d *session.Data) { d.OAuthState = "" }); err != nil {
		h.logger.Warn("clear oauth state failed", zap.Error(err))
	}

	if _, err := h.accounts.LinkDiscord(c.UserContext(), principal, c.Query("code")); err != nil {
		h.logger.Warn("discord link failed", zap.String("user_id", principal.UserID), zap.Error(err))
		return c.Redirect(h.discordFailedURL())
	}
	return c.Redirect(h.urls.FrontendURL + "/home")
}

// DiscordExchange POST /auth/discord/exchange-token links an account from a
// code obtained by the frontend.
func (h *AuthHandler) DiscordExchange(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ExchangeTokenRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ExchangeTokenResponse{Error: "Missing authorization code"})
	}

	tag, err := h.accounts.LinkDiscord(c.UserContext(), principal, req.Code)
	if err != nil {
		h.logger.Warn("discord exchange failed", zap.String("user_id", principal.UserID), zap.Error(err))
		status := fiber.StatusBadGateway
		if errors.Is(err, service.ErrDiscordDisabled) {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(dto.ExchangeTokenResponse{Error: err.Error()})
	}
	return c.JSON(dto.ExchangeTokenResponse{Success: true, DiscordTag: tag})
}

func (h *AuthHandler) updateSession(c *fiber.Ctx, principal *auth.Principal, mutate func(*session.Data)) error {
	ctx := c.UserContext()
	data, err := h.sessions.Get(ctx, principal.SessionID)
	if err != nil {
		return apperrors.NewUnauthenticated("session expired", nil)
	}
	mutate(data)
	return h.sessions.Save(ctx, principal.SessionID, data)
}

// returnURL keeps redirects on the frontend origin.
func (h *AuthHandler) returnURL(c *fiber.Ctx) string {
	fallback := h.urls.FrontendURL + "/home"
	target := strings.TrimSpace(c.Query("return_url"))
	if target == "" {
		return fallback
	}
	if target != h.urls.FrontendURL && !strings.HasPrefix(target, h.urls.FrontendURL+"/") {
		return fallback
	}
	return target
}

func (h *AuthHandler) loginFailedURL() string {
	return h.urls.FrontendURL + "/?" + url.Values{
		"error":   {"login_failed"},
		"message": {"Authentication failed"},
	}.Encode()
}

func (h *AuthHandler) discordFailedURL() string {
	return h.urls.FrontendURL + "/home?error=discord_failed"
}
