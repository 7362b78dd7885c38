package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://lending@localhost/lending?sslmode=disable")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("LOGIN_RATE_LIMIT", "3")
	t.Setenv("SWEEP_OPERATOR_ID", "42")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://lending@localhost/lending?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.LoginLimit.Limit)
	assert.Equal(t, 5*time.Minute, cfg.LoginLimit.Window)
	assert.Equal(t, 42, cfg.Sweep.OperatorID)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresDatabaseAndSecret(t *testing.T) {
	cfg := &Config{}
	assert.EqualError(t, cfg.Validate(), "DATABASE_URL environment variable is not set")

	cfg.DatabaseURL = "postgres://"
	assert.EqualError(t, cfg.Validate(), "JWT_SECRET environment variable is not set")
}
