package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-value-at-least-32-chars!")

	LoadConfig()
	require.NotNil(t, Cfg)

	assert.Equal(t, "8080", Cfg.Port)
	assert.Equal(t, "./balanco.db", Cfg.DatabasePath)
	assert.Equal(t, "db/migrations", Cfg.MigrationsPath)
	assert.Equal(t, "info", Cfg.LogLevel)
	assert.Equal(t, 60*time.Minute, Cfg.AccessTokenExpiry)
	assert.Equal(t, 168*time.Hour, Cfg.RefreshTokenExpiry)
	assert.Equal(t, 5000, Cfg.MaxStatementLines)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-value-at-least-32-chars!")
	t.Setenv("PORT", "9090")
	t.Setenv("MIGRATIONS_PATH", "/srv/balanco/db/migrations")
	t.Setenv("MAX_STATEMENT_LINES", "250")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "15m")

	LoadConfig()
	require.NotNil(t, Cfg)

	assert.Equal(t, "9090", Cfg.Port)
	assert.Equal(t, "/srv/balanco/db/migrations", Cfg.MigrationsPath)
	assert.Equal(t, 250, Cfg.MaxStatementLines)
	assert.Equal(t, 15*time.Minute, Cfg.AccessTokenExpiry)
}
