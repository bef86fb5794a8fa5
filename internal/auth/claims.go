package auth

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/spec-kit/mentor-queue/internal/domain"
)

const unknownUser = "Unknown User"

// IdentityFromClaims extracts an identity from provider claims. The
// privilege is read from the claim named after the deployment environment.
func IdentityFromClaims(claims map[string]any, environment string, trust domain.TrustLevel) (*domain.Identity, error) {
	uid := firstString(claims, "uid", "user_id", "sub", "id")
	if uid == "" {
		return nil, errors.New("claims carry no subject id")
	}
	email := stringClaim(claims, "email")
	return &domain.Identity{
		SubjectID:   uid,
		DisplayName: displayName(claims, email),
		Email:       email,
		Privilege:   ExtractPrivilege(claims, environment),
		Trust:       trust,
	}, nil
}

// HasSubject reports whether the claims identify a user.
func HasSubject(claims map[string]any) bool {
	return firstString(claims, "uid", "user_id") != ""
}

// ExtractPrivilege returns customClaims[env] or claims[env], defaulting to 0.
func ExtractPrivilege(claims map[string]any, environment string) int {
	if custom, ok := claims["customClaims"].(map[string]any); ok {
		if v, ok := custom[environment]; ok {
			return toInt(v)
		}
	}
	if v, ok := claims[environment]; ok {
		return toInt(v)
	}
	return 0
}

func displayName(claims map[string]any, email string) string {
	name := firstString(claims, "name", "displayName")
	if name == "" {
		name = strings.TrimSpace(stringClaim(claims, "firstName") + " " + stringClaim(claims, "lastName"))
	}
	if name == "" && email != "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if name == "" {
		return unknownUser
	}
	return name
}

func firstString(claims map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := stringClaim(claims, key); v != "" {
			return v
		}
	}
	return ""
}

func stringClaim(claims map[string]any, key string) string {
	switch v := claims[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(math.Floor(n))
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}
