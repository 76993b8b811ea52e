package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CHAT_RECONNECT_DELAY", "CHAT_HTTP_TIMEOUT", "CHAT_IDENTITY_SOURCE", "CHAT_CACHE_DRIVER", "DEBUG_ROUTES"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.DebugRoutes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAT_RECONNECT_DELAY", "500ms")
	t.Setenv("CHAT_IDENTITY_SOURCE", "TOKEN")
	t.Setenv("CHAT_CACHE_DRIVER", "postgres")
	t.Setenv("DEBUG_ROUTES", "true")
	t.Setenv("PORT", "9999")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, IdentityToken, cfg.IdentitySource)
	assert.Equal(t, "postgres", cfg.CacheDriver)
	assert.True(t, cfg.DebugRoutes)
	assert.Equal(t, "9999", cfg.Port)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"CHAT_RECONNECT_DELAY": "soon",
		"CHAT_HTTP_TIMEOUT":    "-1s",
		"CHAT_IDENTITY_SOURCE": "ldap",
		"CHAT_CACHE_DRIVER":    "mysql",
		"DEBUG_ROUTES":         "maybe",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
