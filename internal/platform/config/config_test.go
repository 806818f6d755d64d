package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("SCORING_TIMEOUT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_AUDIT_TOPIC", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.True(t, cfg.IsDevelopment())
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 480*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 20*time.Second, cfg.Scoring.Timeout)
	assert.Equal(t, "gemini-1.5-flash-latest", cfg.Scoring.Model)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
	assert.Empty(t, cfg.Events.KafkaBrokers)
	assert.Equal(t, "miriesgo.audit", cfg.Events.AuditTopic)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "risk")
	t.Setenv("DB_PASSWORD", "p@ss")
	t.Setenv("DB_NAME", "credit")
	t.Setenv("SCORING_TIMEOUT", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.co, https://b.co")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "60")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres://risk:p%40ss@db:5432/credit?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 5*time.Second, cfg.Scoring.Timeout)
	assert.Equal(t, []string{"https://a.co", "https://b.co"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}

func TestFromEnvRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("UPLOAD_WORKERS", "four")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPLOAD_WORKERS")
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SECRET_KEY", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "SECRET_KEY must be set")

	cfg.Auth.SecretKey = "a-long-enough-production-secret"
	assert.NoError(t, cfg.Validate())
}
