package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvOnlySecrets(t *testing.T) {
	t.Setenv("PARKIT_AUTH_ACCESS_SECRET", "env-access")
	t.Setenv("PARKIT_AUTH_REFRESH_SECRET", "env-refresh")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-access", cfg.Auth.AccessSecret)
	assert.Equal(t, "env-refresh", cfg.Auth.RefreshSecret)
	assert.Empty(t, cfg.Auth.ResetSecret)

	// Defaults still apply around the env-provided values.
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 5, cfg.RateLimit.AuthMax)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("PARKIT_AUTH_ACCESS_SECRET", "env-access")
	t.Setenv("PARKIT_AUTH_REFRESH_SECRET", "env-refresh")
	t.Setenv("PARKIT_AUTH_RESET_SECRET", "env-reset")
	t.Setenv("PARKIT_AUTH_ACCESS_TTL", "5m")
	t.Setenv("PARKIT_RATELIMIT_AUTH_MAX", "9")
	t.Setenv("PARKIT_SERVER_HTTP_ADDR", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-reset", cfg.Auth.ResetSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 9, cfg.RateLimit.AuthMax)
	assert.Equal(t, ":9999", cfg.Server.HTTPAddr)
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	t.Setenv("PARKIT_AUTH_ACCESS_SECRET", "")
	t.Setenv("PARKIT_AUTH_REFRESH_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsSharedSecrets(t *testing.T) {
	t.Setenv("PARKIT_AUTH_ACCESS_SECRET", "same")
	t.Setenv("PARKIT_AUTH_REFRESH_SECRET", "same")

	_, err := Load("")
	require.Error(t, err)
}
