package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/mentor-queue/internal/auth"
	"github.com/spec-kit/mentor-queue/internal/domain"
	"github.com/spec-kit/mentor-queue/internal/repository"
	apperrors "github.com/spec-kit/mentor-queue/pkg/util/errorutil"
)

// ErrDiscordDisabled is returned when Discord linking is not configured.
var ErrDiscordDisabled = errors.New("discord linking is not configured")

// DiscordLinker exchanges an OAuth code for a Discord handle.
type DiscordLinker interface {
	Enabled() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// AccountService manages the caller's own profile.
type AccountService struct {
	users      repository.UserRepository
	passphrase *auth.MentorPassphrase
	discord    DiscordLinker
	logger     *zap.Logger
}

// AccountDependencies bundles collaborators for the account service.
type AccountDependencies struct {
	UserRepo   repository.UserRepository
	Passphrase *auth.MentorPassphrase
	Discord    DiscordLinker
	Logger     *zap.Logger
}

// ProfileUpdateInput is the body of a profile update.
type ProfileUpdateInput struct {
	Role      string
	Password  string
	Location  string
	ZoomLink  string
	Discord   string
	Phone     string
	Preferred string
}

// NewAccountService constructs the service.
func NewAccountService(deps AccountDependencies) *AccountService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		users:      deps.UserRepo,
		passphrase: deps.Passphrase,
		discord:    deps.Discord,
		logger:     logger,
	}
}

// Profile loads the caller's user row.
func (s *AccountService) Profile(ctx context.Context, actor *auth.Principal) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, apperrors.NewUnauthenticated("login required", nil)
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile applies a profile edit. A hacker becomes a mentor only with
// the mentor passphrase; a mentor may step back to hacker.
func (s *AccountService) UpdateProfile(ctx context.Context, actor *auth.Principal, input ProfileUpdateInput) (*domain.User, error) {
	user, err := s.Profile(ctx, actor)
	if err != nil {
		return nil, err
	}

	role := user.Role
	switch domain.Role(strings.TrimSpace(input.Role)) {
	case domain.RoleMentor:
		if user.Role == domain.RoleHacker {
			if input.Password == "" {
				return nil, apperrors.NewForbidden("Missing password!")
			}
			if !s.passphrase.Matches(input.Password) {
				s.logger.Info("mentor upgrade rejected", zap.String("user_id", user.ID))
				return nil, apperrors.NewForbidden("Incorrect password!")
			}
			role = domain.RoleMentor
		}
	case domain.RoleHacker:
		if user.Role == domain.RoleMentor {
			role = domain.RoleHacker
		}
	}

	location := strings.TrimSpace(input.Location)
	if location == "" {
		location = user.Location
	}
	zoom := strings.TrimSpace(input.ZoomLink)
	if location == domain.LocationVirtual && zoom == "" {
		return nil, apperrors.NewValidationError("Missing video call link!", map[string]any{"zoomlink": "required"})
	}
	discord := strings.TrimSpace(input.Discord)
	if discord == "" {
		return nil, apperrors.NewValidationError("Missing discord!", map[string]any{"discord": "required"})
	}

	preferred := user.Preferred
	if p := strings.TrimSpace(input.Preferred); p != "" {
		contact := domain.PreferredContact(p)
		switch contact {
		case domain.ContactEmail, domain.ContactPhone, domain.ContactDiscord:
		default:
			return nil, apperrors.NewValidationError("Unknown contact preference", map[string]any{"preferred": p})
		}
		preferred = &contact
	}
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		phone = user.Phone
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, domain.UserProfile{
		Role:      role,
		Location:  location,
		ZoomLink:  zoom,
		Discord:   discord,
		Phone:     phone,
		Preferred: preferred,
	})
	if err != nil {
		return nil, err
	}
	if role != user.Role {
		s.logger.Info("user role changed",
			zap.String("user_id", user.ID),
			zap.String("from", string(user.Role)),
			zap.String("to", string(role)))
	}
	return updated, nil
}

// DiscordEnabled reports whether account linking is available.
func (s *AccountService) DiscordEnabled() bool {
	return s.discord != nil && s.discord.Enabled()
}

// DiscordAuthURL is the consent URL carrying state.
func (s *AccountService) DiscordAuthURL(state string) (string, error) {
	if !s.DiscordEnabled() {
		return "", ErrDiscordDisabled
	}
	return s.discord.AuthCodeURL(state), nil
}

// LinkDiscord exchanges code and stores the resulting handle on the caller.
func (s *AccountService) LinkDiscord(ctx context.Context, actor *auth.Principal, code string) (string, error) {
	if !s.DiscordEnabled() {
		return "", ErrDiscordDisabled
	}
	tag, err := s.discord.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	if err := s.users.SetDiscord(ctx, actor.UserID, tag); err != nil {
		return "", err
	}
	s.logger.Info("discord linked", zap.String("user_id", actor.UserID))
	return tag, nil
}
