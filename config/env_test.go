package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("RP_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SESSION_TTL", "2h")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.CeremonyTTL)
	assert.Len(t, cfg.RPOrigins, 2)
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "soon")

	_, err := Parse()
	assert.ErrorContains(t, err, "parse env")
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5432", DBSSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.PostgresDSN())
}

func TestSecureCookies(t *testing.T) {
	assert.True(t, Config{WebOrigin: "https://loaner.example"}.SecureCookies())
	assert.False(t, Config{WebOrigin: "http://localhost:3000"}.SecureCookies())
}
