package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/mentor-queue/internal/domain"
	apperrors "github.com/spec-kit/mentor-queue/pkg/util/errorutil"
)

func newRoleApp(principal *Principal) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		if principal != nil {
			c.Locals(principalKey, principal)
		}
		return c.Next()
	})
	app.Post("/ticket/claim", RequireRole(domain.RoleMentor, domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app
}

func TestRequireRoleNamesAllowedAndActualRole(t *testing.T) {
	app := newRoleApp(&Principal{UserID: "h1", Role: domain.RoleHacker, Privilege: 2})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/ticket/claim", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, apperrors.CodeForbidden, body.Error.Code)
	assert.Equal(t, "This service requires one of the roles: mentor, admin. Your current role: hacker", body.Error.Message)
}

func TestRequireRoleAllowsListedRole(t *testing.T) {
	app := newRoleApp(&Principal{UserID: "m1", Role: domain.RoleMentor, Privilege: 2})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/ticket/claim", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireRoleWithoutPrincipal(t *testing.T) {
	app := newRoleApp(nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/ticket/claim", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
