package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MONGO_DB_NAME", "")
	t.Setenv("TOKEN_TTL", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "oinkbank", cfg.MongoDBName)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TOKEN_TTL", "15m")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	t.Setenv("TOKEN_TTL", "soon")
	cfg := Load()
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}
