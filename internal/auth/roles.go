package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/mentor-queue/internal/domain"
	apperrors "github.com/spec-kit/mentor-queue/pkg/util/errorutil"
)

// MentorPrivilege is the lowest privilege level mapped to the mentor role.
const MentorPrivilege = 2

// RoleForPrivilege maps a provider privilege level to a local role.
func RoleForPrivilege(privilege, minAdmin int) domain.Role {
	switch {
	case privilege >= minAdmin:
		return domain.RoleAdmin
	case privilege >= MentorPrivilege:
		return domain.RoleMentor
	default:
		return domain.RoleHacker
	}
}

// HasAccess reports whether privilege clears the minimum access level.
func HasAccess(privilege, minAccess int) bool {
	return privilege >= minAccess
}

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	names := make([]string, 0, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
		names = append(names, string(role))
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("login required", nil)
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewInsufficientRole(names, string(principal.Role))
		}
		return c.Next()
	}
}

// RequireAdmin ensures the principal's provider privilege clears minAdmin.
func RequireAdmin(minAdmin int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("login required", nil)
		}
		if principal.Privilege < minAdmin {
			return apperrors.NewInsufficientPrivilege(minAdmin, principal.Privilege)
		}
		return c.Next()
	}
}
