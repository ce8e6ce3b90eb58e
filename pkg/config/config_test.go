package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, PersistencePostgres, cfg.Persistence.Type)
	assert.Equal(t, uint16(5432), cfg.Database.Port)
	assert.Equal(t, 10*time.Minute, cfg.TwoFA.CodeTTL)
	assert.True(t, cfg.TwoFA.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.JWT.AccessTokenExpiry)
	assert.False(t, cfg.Telegram.IsConfigured())
	assert.False(t, cfg.Redis.IsConfigured())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "PERSISTENCE_TYPE=memory\nTWOFA_CODE_TTL=5m\nTELEGRAM_BOT_TOKEN=123:abc\nLOCKOUT_MAX_ATTEMPTS=3\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"PERSISTENCE_TYPE", "TWOFA_CODE_TTL", "TELEGRAM_BOT_TOKEN", "LOCKOUT_MAX_ATTEMPTS"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, PersistenceMemory, cfg.Persistence.Type)
	assert.Equal(t, 5*time.Minute, cfg.TwoFA.CodeTTL)
	assert.True(t, cfg.Telegram.IsConfigured())
	assert.Equal(t, 3, cfg.RateLimit.ToAttemptPolicy().MaxAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PERSISTENCE_TYPE", "nosql")
	t.Setenv("TWOFA_CODE_TTL", "0s")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load("")
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"PERSISTENCE_TYPE", "TWOFA_CODE_TTL", "JWT_SECRET"}, fields)
}

func TestTwoFAConfig_DisabledSkipsValidation(t *testing.T) {
	assert.Empty(t, TwoFAConfig{Enabled: false}.Validate())
	assert.NotEmpty(t, TwoFAConfig{Enabled: true}.Validate())
}

func TestRateLimitConfig_ToMiddlewareConfig(t *testing.T) {
	rl := RateLimitConfig{PerIPEnabled: true, PerIPCapacity: 50, LoginCapacity: 3, LoginRefillRate: 0.5}
	cfg := rl.ToMiddlewareConfig("POST /api/auth/login", "POST /api/2fa/verify")

	assert.Equal(t, 50, cfg.PerIPCapacity)
	require.Len(t, cfg.EndpointLimits, 2)
	assert.Equal(t, 3, cfg.EndpointLimits["POST /api/2fa/verify"].Capacity)
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "A", Message: "is required"},
		{Field: "B", Message: "is bad"},
	}
	assert.Equal(t, "configuration validation failed:\n  - A: is required\n  - B: is bad", errs.Error())
	assert.Equal(t, "A: is required", errs[:1].Error())
}
