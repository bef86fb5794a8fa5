package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIN_ACCESS_ROLE", "")
	t.Setenv("FRONTEND_URL", "http://localhost:6001/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Auth.MinAccessRole)
	assert.Equal(t, 3, cfg.Auth.MinAdminRole)
	assert.Equal(t, "http://localhost:6001", cfg.App.FrontendURL)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL())
	assert.Equal(t, 5*time.Second, cfg.Directory.Timeout())
}

func TestLoadRejectsBadRoleThreshold(t *testing.T) {
	t.Setenv("MIN_ADMIN_ROLE", "three")

	_, err := Load()
	assert.ErrorContains(t, err, "MIN_ADMIN_ROLE")
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("SESSION_TTL_HOURS", "soon")
	t.Setenv("SESSION_COOKIE_SECURE", "maybe")

	assert.Equal(t, 24, getEnvAsInt("SESSION_TTL_HOURS", 24))
	assert.True(t, getEnvAsBool("SESSION_COOKIE_SECURE", true))
	assert.Equal(t, time.Duration(0), AppConfig{}.RequestTimeout())
}
